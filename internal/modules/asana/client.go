package asana

import (
	"context"
	"sync"

	"taskbridge/server/internal/secrets"
	"taskbridge/server/pkg/asanaapi"
)

// clientAPI is the surface of the Asana client used by tool handlers.
// Tests substitute a fake.
type clientAPI interface {
	Me(ctx context.Context) (*asanaapi.User, error)
	GetTask(ctx context.Context, gid string) (*asanaapi.Task, error)
	CreateTask(ctx context.Context, fields asanaapi.TaskFields) (*asanaapi.Task, error)
	UpdateTask(ctx context.Context, gid string, fields asanaapi.TaskFields) (*asanaapi.Task, error)
	ListProjects(ctx context.Context, ownerGID string) ([]asanaapi.Project, error)
	SearchTasks(ctx context.Context, workspaceGID string, q asanaapi.SearchQuery) ([]asanaapi.Task, error)
}

// provider resolves the access token on first use, builds one client, and
// memoizes it for the process lifetime. A failed resolution caches nothing,
// so the next call retries against the store.
type provider struct {
	store secrets.Store
	build func(token string) clientAPI

	mu     sync.Mutex
	client clientAPI
}

func newProvider(store secrets.Store) *provider {
	return &provider{
		store: store,
		build: func(token string) clientAPI {
			return asanaapi.NewClient(token)
		},
	}
}

func (p *provider) get(ctx context.Context) (clientAPI, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		return p.client, nil
	}

	token, err := secrets.ResolveToken(ctx, p.store, secrets.AsanaTokenName)
	if err != nil {
		return nil, err
	}

	p.client = p.build(token)
	return p.client, nil
}
