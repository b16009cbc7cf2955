package asana

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"taskbridge/server/internal/modules"
	"taskbridge/server/internal/secrets"
	"taskbridge/server/pkg/asanaapi"
)

// fakeAPI implements clientAPI with canned responses and call counting.
type fakeAPI struct {
	mu sync.Mutex

	meCalls     int
	getCalls    int
	createCalls int
	updateCalls int
	listCalls   int
	searchCalls int

	me       *asanaapi.User
	task     *asanaapi.Task
	projects []asanaapi.Project
	tasks    []asanaapi.Task

	lastFields asanaapi.TaskFields
	lastSearch asanaapi.SearchQuery

	err error
}

func (f *fakeAPI) Me(context.Context) (*asanaapi.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.meCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.me, nil
}

func (f *fakeAPI) GetTask(_ context.Context, gid string) (*asanaapi.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.task, nil
}

func (f *fakeAPI) CreateTask(_ context.Context, fields asanaapi.TaskFields) (*asanaapi.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	f.lastFields = fields
	if f.err != nil {
		return nil, f.err
	}
	return f.task, nil
}

func (f *fakeAPI) UpdateTask(_ context.Context, gid string, fields asanaapi.TaskFields) (*asanaapi.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	f.lastFields = fields
	if f.err != nil {
		return nil, f.err
	}
	return f.task, nil
}

func (f *fakeAPI) ListProjects(_ context.Context, ownerGID string) ([]asanaapi.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.projects, nil
}

func (f *fakeAPI) SearchTasks(_ context.Context, workspaceGID string, q asanaapi.SearchQuery) ([]asanaapi.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchCalls++
	f.lastSearch = q
	if f.err != nil {
		return nil, f.err
	}
	return f.tasks, nil
}

// storeFunc adapts a function to the secrets.Store interface.
type storeFunc func(ctx context.Context, name string) (string, error)

func (f storeFunc) Get(ctx context.Context, name string) (string, error) {
	return f(ctx, name)
}

// newTestModule wires a module with a pre-resolved fake client.
func newTestModule(fake *fakeAPI) *Module {
	m := New(storeFunc(func(context.Context, string) (string, error) {
		return `{"token":"tok"}`, nil
	}))
	m.clients.client = fake
	return m
}

func sampleTask() *asanaapi.Task {
	return &asanaapi.Task{
		GID:       "1111",
		Name:      "Write report",
		Completed: false,
		DueOn:     "2026-09-01",
	}
}

func TestCreateTask_PriorityRejectedBeforeAnyCall(t *testing.T) {
	modules.ResetRegistry()
	fake := &fakeAPI{task: sampleTask()}

	resolutions := 0
	m := New(storeFunc(func(context.Context, string) (string, error) {
		resolutions++
		return `{"token":"tok"}`, nil
	}))
	m.clients.client = fake
	modules.RegisterModule(m)

	result, err := modules.Run(context.Background(), "create_task", map[string]any{
		"name":     "Write report",
		"priority": "urgent",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result")
	}
	if !strings.Contains(result.Content[0].Text, "must be one of low, medium, high") {
		t.Errorf("unexpected message: %q", result.Content[0].Text)
	}
	if fake.createCalls != 0 {
		t.Errorf("adapter was called %d times, want 0", fake.createCalls)
	}
	if resolutions != 0 {
		t.Errorf("credential resolved %d times, want 0", resolutions)
	}
}

func TestCreateTask_MapsFieldsAndConfirms(t *testing.T) {
	fake := &fakeAPI{task: sampleTask()}
	m := newTestModule(fake)

	out, err := m.createTask(context.Background(), map[string]any{
		"name":         "Write report",
		"notes":        "quarterly numbers",
		"project_gid":  "p1",
		"assignee_gid": "u7",
		"due_date":     "2026-09-01",
		"priority":     "high",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(out, "Created task 1111") {
		t.Errorf("missing confirmation line: %q", out)
	}

	f := fake.lastFields
	if f.Name == nil || *f.Name != "Write report" {
		t.Errorf("name not set: %+v", f)
	}
	if f.Notes == nil || *f.Notes != "quarterly numbers" {
		t.Errorf("notes not set: %+v", f)
	}
	if len(f.ProjectGIDs) != 1 || f.ProjectGIDs[0] != "p1" {
		t.Errorf("projects not set: %+v", f)
	}
	if f.AssigneeGID == nil || *f.AssigneeGID != "u7" {
		t.Errorf("assignee not set: %+v", f)
	}
	if f.DueOn == nil || *f.DueOn != "2026-09-01" {
		t.Errorf("due_on not set: %+v", f)
	}
	if f.Priority == nil || *f.Priority != "High" {
		t.Errorf("priority not mapped: %+v", f)
	}
}

func TestUpdateTask_NoFieldsIsReadOnly(t *testing.T) {
	fake := &fakeAPI{task: sampleTask()}
	m := newTestModule(fake)

	out, err := m.updateTask(context.Background(), map[string]any{"task_gid": "1111"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fake.updateCalls != 0 {
		t.Errorf("update issued %d writes, want 0", fake.updateCalls)
	}
	if fake.getCalls != 1 {
		t.Errorf("expected 1 read, got %d", fake.getCalls)
	}
	if !strings.Contains(out, "unchanged") {
		t.Errorf("expected unchanged notice, got %q", out)
	}
}

func TestUpdateTask_NormalizesCompleted(t *testing.T) {
	fake := &fakeAPI{task: sampleTask()}
	m := newTestModule(fake)

	if _, err := m.updateTask(context.Background(), map[string]any{
		"task_gid":  "1111",
		"completed": "true",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fake.updateCalls != 1 {
		t.Fatalf("expected 1 write, got %d", fake.updateCalls)
	}
	if fake.lastFields.Completed == nil || !*fake.lastFields.Completed {
		t.Errorf("completed not normalized to bool: %+v", fake.lastFields)
	}
}

func TestGetTask_NotFound(t *testing.T) {
	fake := &fakeAPI{err: &asanaapi.Error{StatusCode: 404, Message: "Not Found"}}
	m := newTestModule(fake)

	_, err := m.getTask(context.Background(), map[string]any{"task_gid": "9999"})
	if err == nil {
		t.Fatal("expected error")
	}
	if err.Error() != "task not found: 9999" {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestSearchTasks_EmptyQueryAllowed(t *testing.T) {
	fake := &fakeAPI{
		me:    &asanaapi.User{GID: "u1", Workspaces: []asanaapi.Workspace{{GID: "w1"}}},
		tasks: []asanaapi.Task{*sampleTask()},
	}
	m := newTestModule(fake)

	out, err := m.searchTasks(context.Background(), map[string]any{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fake.searchCalls != 1 {
		t.Fatalf("expected 1 search, got %d", fake.searchCalls)
	}
	if fake.lastSearch.Text != "" {
		t.Errorf("expected empty search text, got %q", fake.lastSearch.Text)
	}
	if fake.lastSearch.Completed == nil || *fake.lastSearch.Completed {
		t.Errorf("expected completed=false default, got %+v", fake.lastSearch.Completed)
	}
	if !strings.Contains(out, "1111") {
		t.Errorf("expected task in output, got %q", out)
	}
}

func TestListProjects_UsesOwner(t *testing.T) {
	fake := &fakeAPI{
		me:       &asanaapi.User{GID: "u1"},
		projects: []asanaapi.Project{{GID: "p1", Name: "Roadmap"}},
	}
	m := newTestModule(fake)

	out, err := m.listProjects(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fake.meCalls != 1 || fake.listCalls != 1 {
		t.Errorf("expected me+list calls, got me=%d list=%d", fake.meCalls, fake.listCalls)
	}
	if !strings.Contains(out, "Roadmap") {
		t.Errorf("expected project in output, got %q", out)
	}
}

func TestProvider_ResolvesOnce(t *testing.T) {
	var mu sync.Mutex
	resolutions := 0
	p := newProvider(storeFunc(func(context.Context, string) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		resolutions++
		return `{"token":"tok"}`, nil
	}))

	const n = 10
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.get(context.Background()); err != nil {
				t.Errorf("get failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if resolutions != 1 {
		t.Errorf("credential resolved %d times across %d concurrent calls, want 1", resolutions, n)
	}
}

func TestProvider_RetriesAfterFailure(t *testing.T) {
	attempts := 0
	p := newProvider(storeFunc(func(context.Context, string) (string, error) {
		attempts++
		if attempts == 1 {
			return "", fmt.Errorf("connection refused")
		}
		return `{"token":"tok"}`, nil
	}))

	if _, err := p.get(context.Background()); err == nil {
		t.Fatal("expected first resolution to fail")
	} else {
		var credErr *secrets.CredentialError
		if !errors.As(err, &credErr) {
			t.Errorf("expected *secrets.CredentialError, got %T", err)
		}
	}

	client, err := p.get(context.Background())
	if err != nil {
		t.Fatalf("second resolution should succeed: %v", err)
	}
	if client == nil {
		t.Fatal("expected client after retry")
	}
	if attempts != 2 {
		t.Errorf("expected 2 store reads, got %d", attempts)
	}
}
