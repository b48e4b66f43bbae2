package store

import (
	"sort"
	"strings"

	"github.com/estateops/taskdesk/models"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// TaskFilter describes one read-side query: free text, per-dimension sets,
// and pagination. Dimensions combine with logical AND; an empty dimension
// matches everything.
type TaskFilter struct {
	// Query matches case-insensitively against title, description, and
	// labels; a task matches when any of the three contains the substring.
	Query string
	// Statuses and Priorities are case-insensitive membership sets.
	Statuses   []string
	Priorities []string
	// Assignees and Labels match when any of the task's values appears in
	// the set. Assignee identity is case-sensitive.
	Assignees []string
	Labels    []string
	// Categories is a case-insensitive membership set.
	Categories []string
	// Page is 1-indexed; PageSize defaults to 50 and is clamped to [1, 200].
	Page     int
	PageSize int
}

// TaskPage is one slice of filtered results. Total counts matches before
// pagination.
type TaskPage struct {
	Page     int           `json:"page"`
	PageSize int           `json:"pageSize"`
	Total    int           `json:"total"`
	Items    []models.Task `json:"items"`
}

// Apply filters, sorts, and paginates the given collection. Tasks are
// ordered by createdAt descending (most recent first), ties broken by id for
// a stable page boundary.
func (f TaskFilter) Apply(tasks []models.Task) TaskPage {
	matched := make([]models.Task, 0, len(tasks))
	for _, task := range tasks {
		if f.matches(task) {
			matched = append(matched, task)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	page := f.Page
	if page < 1 {
		page = 1
	}
	pageSize := f.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	total := len(matched)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	return TaskPage{
		Page:     page,
		PageSize: pageSize,
		Total:    total,
		Items:    matched[start:end],
	}
}

func (f TaskFilter) matches(task models.Task) bool {
	if f.Query != "" && !matchesFreeText(task, f.Query) {
		return false
	}
	if len(f.Statuses) > 0 && !containsFold(f.Statuses, string(task.Status)) {
		return false
	}
	if len(f.Priorities) > 0 && !containsFold(f.Priorities, string(task.Priority)) {
		return false
	}
	if len(f.Categories) > 0 && !containsFold(f.Categories, task.Category) {
		return false
	}
	if len(f.Assignees) > 0 && !intersects(f.Assignees, task.Assignees) {
		return false
	}
	if len(f.Labels) > 0 && !intersects(f.Labels, task.Labels) {
		return false
	}
	return true
}

func matchesFreeText(task models.Task, query string) bool {
	q := strings.ToLower(query)
	if strings.Contains(strings.ToLower(task.Title), q) {
		return true
	}
	if strings.Contains(strings.ToLower(task.Description), q) {
		return true
	}
	for _, label := range task.Labels {
		if strings.Contains(strings.ToLower(label), q) {
			return true
		}
	}
	return false
}

func containsFold(set []string, value string) bool {
	for _, s := range set {
		if strings.EqualFold(s, value) {
			return true
		}
	}
	return false
}

func intersects(set, values []string) bool {
	for _, v := range values {
		for _, s := range set {
			if s == v {
				return true
			}
		}
	}
	return false
}
