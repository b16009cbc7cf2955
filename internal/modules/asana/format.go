package asana

import (
	"fmt"
	"strings"

	"taskbridge/server/pkg/asanaapi"
)

// =============================================================================
// Compact formatters — tasks render as Markdown detail blocks, lists as CSV
// =============================================================================

// taskToCompact: single task detail
func taskToCompact(t *asanaapi.Task) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s\n", t.Name))
	sb.WriteString(fmt.Sprintf("- **GID**: %s\n", t.GID))
	if t.Completed {
		sb.WriteString("- **Completed**: true\n")
	}
	if t.Assignee != nil && t.Assignee.Name != "" {
		sb.WriteString(fmt.Sprintf("- **Assignee**: %s\n", t.Assignee.Name))
	}
	if t.DueOn != "" {
		sb.WriteString(fmt.Sprintf("- **Due**: %s\n", t.DueOn))
	}
	if len(t.Projects) > 0 {
		names := make([]string, 0, len(t.Projects))
		for _, p := range t.Projects {
			if p.Name != "" {
				names = append(names, p.Name)
			}
		}
		if len(names) > 0 {
			sb.WriteString(fmt.Sprintf("- **Projects**: %s\n", strings.Join(names, ", ")))
		}
	}
	if t.CreatedAt != "" {
		sb.WriteString(fmt.Sprintf("- **Created**: %s\n", t.CreatedAt))
	}
	if t.ModifiedAt != "" {
		sb.WriteString(fmt.Sprintf("- **Modified**: %s\n", t.ModifiedAt))
	}
	if t.PermalinkURL != "" {
		sb.WriteString(fmt.Sprintf("- **URL**: %s\n", t.PermalinkURL))
	}
	if t.Notes != "" {
		notes := t.Notes
		if len(notes) > 2000 {
			notes = notes[:2000] + "...(truncated)"
		}
		sb.WriteString(fmt.Sprintf("\n## Notes\n%s\n", notes))
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

// tasksToCSV: gid,name,completed,due_on,assignee
func tasksToCSV(tasks []asanaapi.Task) string {
	if len(tasks) == 0 {
		return "# 0 tasks"
	}
	var sb strings.Builder
	sb.WriteString("```csv\ngid,name,completed,due_on,assignee\n")
	for _, t := range tasks {
		assignee := ""
		if t.Assignee != nil {
			assignee = t.Assignee.Name
		}
		sb.WriteString(fmt.Sprintf("%s,%s,%v,%s,%s\n",
			csvEscape(t.GID),
			csvEscape(t.Name),
			t.Completed,
			t.DueOn,
			csvEscape(assignee),
		))
	}
	sb.WriteString("```")
	return sb.String()
}

// projectsToCSV: gid,name,archived,color
func projectsToCSV(projects []asanaapi.Project) string {
	if len(projects) == 0 {
		return "# 0 projects"
	}
	var sb strings.Builder
	sb.WriteString("```csv\ngid,name,archived,color\n")
	for _, p := range projects {
		sb.WriteString(fmt.Sprintf("%s,%s,%v,%s\n",
			csvEscape(p.GID),
			csvEscape(p.Name),
			p.Archived,
			p.Color,
		))
	}
	sb.WriteString("```")
	return sb.String()
}

func csvEscape(s string) string {
	if s == "" {
		return ""
	}
	if strings.ContainsAny(s, ",\"\n\r") {
		return "\"" + strings.ReplaceAll(s, "\"", "\"\"") + "\""
	}
	return s
}
