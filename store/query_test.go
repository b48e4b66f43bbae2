package store

import (
	"fmt"
	"testing"
	"time"

	"github.com/estateops/taskdesk/models"
)

func taskAt(id, title string, created time.Time) models.Task {
	task := models.NewTask(id, title)
	task.CreatedAt = created
	task.UpdatedAt = created
	return *task
}

func TestTaskFilter_FreeText(t *testing.T) {
	now := time.Now().UTC()
	tasks := []models.Task{
		taskAt("t1", "Fix boiler in 4B", now),
		taskAt("t2", "Paint hallway", now.Add(-time.Hour)),
		taskAt("t3", "Annual review", now.Add(-2*time.Hour)),
	}
	tasks[1].Description = "boiler room access required"
	tasks[2].Labels = []string{"boiler-service"}

	page := TaskFilter{Query: "BOILER"}.Apply(tasks)
	if page.Total != 3 {
		t.Errorf("free text should match title, description, and labels; got %d matches", page.Total)
	}

	page = TaskFilter{Query: "hallway"}.Apply(tasks)
	if page.Total != 1 || page.Items[0].ID != "t2" {
		t.Errorf("expected only t2 to match, got %+v", page.Items)
	}
}

func TestTaskFilter_DimensionsCombineWithAND(t *testing.T) {
	now := time.Now().UTC()
	a := taskAt("t1", "A", now)
	a.Status = models.StatusOpen
	a.Priority = models.PriorityHigh
	a.Assignees = []string{"alex"}

	b := taskAt("t2", "B", now)
	b.Status = models.StatusOpen
	b.Priority = models.PriorityLow
	b.Assignees = []string{"alex"}

	c := taskAt("t3", "C", now)
	c.Status = models.StatusDone
	c.Priority = models.PriorityHigh
	c.Assignees = []string{"sam"}

	tasks := []models.Task{a, b, c}

	page := TaskFilter{
		Statuses:   []string{"open"},
		Priorities: []string{"high"},
		Assignees:  []string{"alex"},
	}.Apply(tasks)
	if page.Total != 1 || page.Items[0].ID != "t1" {
		t.Errorf("expected only t1, got %+v", page.Items)
	}
}

func TestTaskFilter_StatusCaseInsensitive(t *testing.T) {
	now := time.Now().UTC()
	a := taskAt("t1", "A", now)
	a.Status = models.StatusInProgress

	page := TaskFilter{Statuses: []string{"IN_PROGRESS"}}.Apply([]models.Task{a})
	if page.Total != 1 {
		t.Errorf("status matching should be case-insensitive, got %d", page.Total)
	}
}

func TestTaskFilter_AssigneeIdentityCaseSensitive(t *testing.T) {
	now := time.Now().UTC()
	a := taskAt("t1", "A", now)
	a.Assignees = []string{"Alex"}

	page := TaskFilter{Assignees: []string{"alex"}}.Apply([]models.Task{a})
	if page.Total != 0 {
		t.Errorf("assignee identity is case-sensitive, got %d matches", page.Total)
	}
	page = TaskFilter{Assignees: []string{"Alex"}}.Apply([]models.Task{a})
	if page.Total != 1 {
		t.Errorf("exact assignee should match, got %d", page.Total)
	}
}

func TestTaskFilter_LabelsIntersect(t *testing.T) {
	now := time.Now().UTC()
	a := taskAt("t1", "A", now)
	a.Labels = []string{"plumbing", "urgent-fix"}
	b := taskAt("t2", "B", now)
	b.Labels = []string{"garden"}

	page := TaskFilter{Labels: []string{"plumbing", "electrical"}}.Apply([]models.Task{a, b})
	if page.Total != 1 || page.Items[0].ID != "t1" {
		t.Errorf("expected label intersection to match only t1, got %+v", page.Items)
	}
}

func TestTaskFilter_SortNewestFirst(t *testing.T) {
	now := time.Now().UTC()
	tasks := []models.Task{
		taskAt("t1", "Oldest", now.Add(-2*time.Hour)),
		taskAt("t3", "Newest", now),
		taskAt("t2", "Middle", now.Add(-time.Hour)),
	}

	page := TaskFilter{}.Apply(tasks)
	if len(page.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(page.Items))
	}
	for i, want := range []string{"t3", "t2", "t1"} {
		if page.Items[i].ID != want {
			t.Errorf("position %d: expected %s, got %s", i, want, page.Items[i].ID)
		}
	}
}

func TestTaskFilter_Pagination(t *testing.T) {
	now := time.Now().UTC()
	tasks := make([]models.Task, 0, 25)
	for i := 0; i < 25; i++ {
		tasks = append(tasks, taskAt(fmt.Sprintf("t%02d", i), "Task", now.Add(-time.Duration(i)*time.Minute)))
	}

	page := TaskFilter{Page: 2, PageSize: 10}.Apply(tasks)
	if page.Page != 2 || page.PageSize != 10 {
		t.Errorf("pagination echo mismatch: %+v", page)
	}
	if page.Total != 25 {
		t.Errorf("total must count matches before pagination, got %d", page.Total)
	}
	if len(page.Items) != 10 {
		t.Errorf("expected 10 items on page 2, got %d", len(page.Items))
	}
	if page.Items[0].ID != "t10" {
		t.Errorf("page 2 should start at the 11th newest, got %s", page.Items[0].ID)
	}

	page = TaskFilter{Page: 3, PageSize: 10}.Apply(tasks)
	if len(page.Items) != 5 {
		t.Errorf("last partial page should hold 5 items, got %d", len(page.Items))
	}

	page = TaskFilter{Page: 9, PageSize: 10}.Apply(tasks)
	if len(page.Items) != 0 || page.Total != 25 {
		t.Errorf("out-of-range page should be empty with total intact, got %d items, total %d", len(page.Items), page.Total)
	}
}

func TestTaskFilter_PaginationClamps(t *testing.T) {
	now := time.Now().UTC()
	tasks := []models.Task{taskAt("t1", "A", now)}

	page := TaskFilter{Page: 0, PageSize: 0}.Apply(tasks)
	if page.Page != 1 {
		t.Errorf("page 0 should clamp to 1, got %d", page.Page)
	}
	if page.PageSize != 50 {
		t.Errorf("pageSize 0 should default to 50, got %d", page.PageSize)
	}

	page = TaskFilter{Page: -3, PageSize: 500}.Apply(tasks)
	if page.Page != 1 {
		t.Errorf("negative page should clamp to 1, got %d", page.Page)
	}
	if page.PageSize != 200 {
		t.Errorf("pageSize 500 should clamp to 200, got %d", page.PageSize)
	}
}

func TestTaskFilter_EmptyMatchesAll(t *testing.T) {
	now := time.Now().UTC()
	tasks := []models.Task{taskAt("t1", "A", now), taskAt("t2", "B", now)}

	page := TaskFilter{}.Apply(tasks)
	if page.Total != 2 {
		t.Errorf("empty filter must match everything, got %d", page.Total)
	}
}
