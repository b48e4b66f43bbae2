package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/estateops/taskdesk/models"
	"github.com/estateops/taskdesk/types"
)

// setupTestStore initializes a FileTaskStore backed by a temp directory and
// a memory fs for attachment blobs.
func setupTestStore(t *testing.T) *FileTaskStore {
	t.Helper()
	tmpDir := t.TempDir()
	s := NewFileTaskStore()
	s.SetBlobFS(afero.NewMemMapFs())
	err := s.Initialize(map[string]string{
		"dataFile":       filepath.Join(tmpDir, "tasks.json"),
		"dataFileFormat": "json",
		"attachmentsDir": filepath.Join(tmpDir, "attachments"),
	})
	if err != nil {
		t.Fatalf("Failed to initialize store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func mustCreate(t *testing.T, s *FileTaskStore, task models.Task) models.Task {
	t.Helper()
	created, err := s.CreateTask(task)
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	return created
}

func TestCreateTask_AppliesDefaults(t *testing.T) {
	s := setupTestStore(t)

	created := mustCreate(t, s, models.Task{Title: "Inspect roof"})

	if created.ID == "" {
		t.Error("expected a generated id")
	}
	if created.Status != models.StatusOpen {
		t.Errorf("expected default status %q, got %q", models.StatusOpen, created.Status)
	}
	if created.Priority != models.PriorityMedium {
		t.Errorf("expected default priority %q, got %q", models.PriorityMedium, created.Priority)
	}
	if created.Thread == nil || created.Participants == nil || created.Attachments == nil {
		t.Error("nested collections should be empty, not nil")
	}
}

func TestCreateTask_ConflictOnDuplicateID(t *testing.T) {
	s := setupTestStore(t)

	mustCreate(t, s, models.Task{ID: "task-1", Title: "First"})
	_, err := s.CreateTask(models.Task{ID: "task-1", Title: "Second"})
	if !errors.Is(err, types.ErrConflict) {
		t.Errorf("expected conflict error, got: %v", err)
	}
}

func TestGetTask_NotFoundDoesNotMaterialize(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.GetTask("missing")
	if !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("expected not-found error, got: %v", err)
	}

	// The strict read must not have created a record as a side effect.
	page, err := s.ListTasks(TaskFilter{})
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if page.Total != 0 {
		t.Errorf("expected empty store after failed lookup, got %d tasks", page.Total)
	}
}

func TestPatchTask_UpsertsMissingID(t *testing.T) {
	s := setupTestStore(t)

	patched, err := s.PatchTask("task-77", map[string]interface{}{"status": "done"})
	if err != nil {
		t.Fatalf("PatchTask failed: %v", err)
	}
	if patched.ID != "task-77" {
		t.Errorf("expected id task-77, got %q", patched.ID)
	}
	if patched.Status != models.StatusDone {
		t.Errorf("expected status done, got %q", patched.Status)
	}
	if patched.Title == "" {
		t.Error("materialized record should carry a placeholder title")
	}

	fetched, err := s.GetTask("task-77")
	if err != nil {
		t.Fatalf("GetTask after upsert failed: %v", err)
	}
	if fetched.Status != models.StatusDone {
		t.Errorf("upserted record not persisted, status %q", fetched.Status)
	}
}

func TestPatchTask_PreservesOmittedFields(t *testing.T) {
	s := setupTestStore(t)

	created := mustCreate(t, s, models.Task{
		ID:          "task-1",
		Title:       "Replace boiler",
		Description: "Unit 4B, ground floor",
		Assignees:   []string{"alex", "sam"},
		Labels:      []string{"plumbing"},
	})

	patched, err := s.PatchTask("task-1", map[string]interface{}{"status": "in_progress"})
	if err != nil {
		t.Fatalf("PatchTask failed: %v", err)
	}

	if patched.Title != created.Title {
		t.Errorf("title changed by unrelated patch: %q", patched.Title)
	}
	if patched.Description != created.Description {
		t.Errorf("description changed by unrelated patch: %q", patched.Description)
	}
	if len(patched.Assignees) != 2 {
		t.Errorf("assignees changed by unrelated patch: %v", patched.Assignees)
	}
	if patched.Status != models.StatusInProgress {
		t.Errorf("patched status not applied: %q", patched.Status)
	}
}

func TestPatchTask_ReplacesArraysWholesale(t *testing.T) {
	s := setupTestStore(t)

	mustCreate(t, s, models.Task{ID: "task-1", Title: "Paint hallway", Assignees: []string{"alex", "sam"}})

	// Decoded JSON arrives as []interface{}.
	patched, err := s.PatchTask("task-1", map[string]interface{}{
		"assignees": []interface{}{"jordan"},
	})
	if err != nil {
		t.Fatalf("PatchTask failed: %v", err)
	}
	if len(patched.Assignees) != 1 || patched.Assignees[0] != "jordan" {
		t.Errorf("expected assignees replaced with [jordan], got %v", patched.Assignees)
	}
}

func TestPatchTask_ImmutableFieldsIgnored(t *testing.T) {
	s := setupTestStore(t)

	created := mustCreate(t, s, models.Task{ID: "task-1", Title: "Fix gate"})

	patched, err := s.PatchTask("task-1", map[string]interface{}{
		"id":        "task-2",
		"createdAt": "2001-01-01T00:00:00Z",
		"title":     "Fix gate latch",
	})
	if err != nil {
		t.Fatalf("PatchTask failed: %v", err)
	}
	if patched.ID != "task-1" {
		t.Errorf("id must not change, got %q", patched.ID)
	}
	if !patched.CreatedAt.Equal(created.CreatedAt) {
		t.Errorf("createdAt must not change, got %v", patched.CreatedAt)
	}
	if patched.Title != "Fix gate latch" {
		t.Errorf("patchable field not applied, title %q", patched.Title)
	}
}

func TestPatchTask_BumpsUpdatedAt(t *testing.T) {
	s := setupTestStore(t)

	created := mustCreate(t, s, models.Task{ID: "task-1", Title: "Clean gutters"})
	time.Sleep(5 * time.Millisecond)

	patched, err := s.PatchTask("task-1", map[string]interface{}{"priority": "high"})
	if err != nil {
		t.Fatalf("PatchTask failed: %v", err)
	}
	if !patched.UpdatedAt.After(created.UpdatedAt) {
		t.Errorf("updatedAt not bumped: was %v, now %v", created.UpdatedAt, patched.UpdatedAt)
	}
	if !patched.CreatedAt.Equal(created.CreatedAt) {
		t.Error("createdAt must survive mutation")
	}
}

func TestAppendThreadMessage_AppendOnly(t *testing.T) {
	s := setupTestStore(t)

	mustCreate(t, s, models.Task{ID: "task-1", Title: "Tenant complaint"})

	first, err := s.AppendThreadMessage("task-1", "alex", "Spoke with the tenant")
	if err != nil {
		t.Fatalf("AppendThreadMessage failed: %v", err)
	}
	second, err := s.AppendThreadMessage("task-1", "sam", "Contractor booked for Friday")
	if err != nil {
		t.Fatalf("AppendThreadMessage failed: %v", err)
	}

	if len(first.Thread) != 1 || len(second.Thread) != 2 {
		t.Fatalf("expected thread to grow 1 then 2, got %d then %d", len(first.Thread), len(second.Thread))
	}
	if second.Thread[0].Text != "Spoke with the tenant" {
		t.Errorf("earlier message mutated: %q", second.Thread[0].Text)
	}
	if second.Thread[1].ID == "" || second.Thread[1].At.IsZero() {
		t.Error("appended message missing generated id or timestamp")
	}
}

func TestAppendThreadMessage_RejectsEmptyText(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.AppendThreadMessage("task-1", "alex", "   ")
	if !errors.Is(err, types.ErrValidation) {
		t.Errorf("expected validation error for blank text, got: %v", err)
	}
}

func TestAppendThreadMessage_UpsertsMissingTask(t *testing.T) {
	s := setupTestStore(t)

	task, err := s.AppendThreadMessage("task-9", "alex", "First note")
	if err != nil {
		t.Fatalf("AppendThreadMessage failed: %v", err)
	}
	if task.ID != "task-9" || len(task.Thread) != 1 {
		t.Errorf("expected materialized task-9 with one message, got %q / %d", task.ID, len(task.Thread))
	}
}

func TestAddParticipant(t *testing.T) {
	s := setupTestStore(t)

	mustCreate(t, s, models.Task{ID: "task-1", Title: "Lease renewal"})

	task, err := s.AddParticipant("task-1", models.Participant{Name: "Dana", Email: "dana@example.com"})
	if err != nil {
		t.Fatalf("AddParticipant failed: %v", err)
	}
	if len(task.Participants) != 1 {
		t.Fatalf("expected one participant, got %d", len(task.Participants))
	}
	p := task.Participants[0]
	if p.ID == "" || p.InvitedAt.IsZero() {
		t.Error("participant missing generated id or invitedAt")
	}

	_, err = s.AddParticipant("task-1", models.Participant{Name: ""})
	if !errors.Is(err, types.ErrValidation) {
		t.Errorf("expected validation error for empty name, got: %v", err)
	}
}

func TestSetLink_OverwriteAndClear(t *testing.T) {
	s := setupTestStore(t)

	mustCreate(t, s, models.Task{ID: "task-1", Title: "Invoice dispute"})

	task, err := s.SetLink("task-1", &models.LinkedEntity{Type: "invoice", ID: "inv-204"})
	if err != nil {
		t.Fatalf("SetLink failed: %v", err)
	}
	if task.Link == nil || task.Link.ID != "inv-204" {
		t.Fatalf("link not set: %+v", task.Link)
	}

	task, err = s.SetLink("task-1", &models.LinkedEntity{Type: "property", ID: "prop-7"})
	if err != nil {
		t.Fatalf("SetLink overwrite failed: %v", err)
	}
	if task.Link.Type != "property" {
		t.Errorf("link not overwritten wholesale: %+v", task.Link)
	}

	task, err = s.SetLink("task-1", nil)
	if err != nil {
		t.Fatalf("SetLink clear failed: %v", err)
	}
	if task.Link != nil {
		t.Errorf("expected cleared link, got %+v", task.Link)
	}

	_, err = s.SetLink("task-1", &models.LinkedEntity{Type: "invoice"})
	if !errors.Is(err, types.ErrValidation) {
		t.Errorf("expected validation error for partial link, got: %v", err)
	}
}

func TestDeleteTask(t *testing.T) {
	s := setupTestStore(t)

	mustCreate(t, s, models.Task{ID: "task-1", Title: "One-off"})

	if err := s.DeleteTask("task-1"); err != nil {
		t.Fatalf("DeleteTask failed: %v", err)
	}
	if _, err := s.GetTask("task-1"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("expected not-found after delete, got: %v", err)
	}
	if err := s.DeleteTask("task-1"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("expected not-found on second delete, got: %v", err)
	}
}

func TestDeleteTasks_SkipsUnknownIDs(t *testing.T) {
	s := setupTestStore(t)

	mustCreate(t, s, models.Task{ID: "task-1", Title: "A"})
	mustCreate(t, s, models.Task{ID: "task-2", Title: "B"})

	n, err := s.DeleteTasks([]string{"task-1", "ghost", "task-2"})
	if err != nil {
		t.Fatalf("DeleteTasks failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 deletions, got %d", n)
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := map[string]string{
		"dataFile":       filepath.Join(tmpDir, "tasks.json"),
		"dataFileFormat": "json",
		"attachmentsDir": filepath.Join(tmpDir, "attachments"),
	}

	s1 := NewFileTaskStore()
	s1.SetBlobFS(afero.NewMemMapFs())
	if err := s1.Initialize(cfg); err != nil {
		t.Fatalf("Failed to initialize first store: %v", err)
	}
	if _, err := s1.CreateTask(models.Task{ID: "task-1", Title: "Survives restart"}); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if err := s1.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	s2 := NewFileTaskStore()
	s2.SetBlobFS(afero.NewMemMapFs())
	if err := s2.Initialize(cfg); err != nil {
		t.Fatalf("Failed to initialize second store: %v", err)
	}
	defer func() { _ = s2.Close() }()

	task, err := s2.GetTask("task-1")
	if err != nil {
		t.Fatalf("GetTask after reopen failed: %v", err)
	}
	if task.Title != "Survives restart" {
		t.Errorf("reloaded task mismatch: %q", task.Title)
	}
}

func TestYAMLFormatRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := map[string]string{
		"dataFile":       filepath.Join(tmpDir, "tasks.yaml"),
		"dataFileFormat": "yaml",
		"attachmentsDir": filepath.Join(tmpDir, "attachments"),
	}

	s1 := NewFileTaskStore()
	s1.SetBlobFS(afero.NewMemMapFs())
	if err := s1.Initialize(cfg); err != nil {
		t.Fatalf("Failed to initialize yaml store: %v", err)
	}
	if _, err := s1.CreateTask(models.Task{ID: "task-1", Title: "YAML backed"}); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if err := s1.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	s2 := NewFileTaskStore()
	s2.SetBlobFS(afero.NewMemMapFs())
	if err := s2.Initialize(cfg); err != nil {
		t.Fatalf("Failed to reopen yaml store: %v", err)
	}
	defer func() { _ = s2.Close() }()

	if _, err := s2.GetTask("task-1"); err != nil {
		t.Errorf("GetTask from yaml store failed: %v", err)
	}
}

func TestCorruptDataFile_QuarantinedAndReinitialized(t *testing.T) {
	tmpDir := t.TempDir()
	dataFile := filepath.Join(tmpDir, "tasks.json")
	if err := os.WriteFile(dataFile, []byte("{this is not json"), 0o644); err != nil {
		t.Fatalf("failed to seed corrupt file: %v", err)
	}

	s := NewFileTaskStore()
	s.SetBlobFS(afero.NewMemMapFs())
	err := s.Initialize(map[string]string{
		"dataFile":       dataFile,
		"dataFileFormat": "json",
		"attachmentsDir": filepath.Join(tmpDir, "attachments"),
	})
	if err != nil {
		t.Fatalf("Initialize must self-heal, got error: %v", err)
	}
	defer func() { _ = s.Close() }()

	page, err := s.ListTasks(TaskFilter{})
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if page.Total != 0 {
		t.Errorf("expected empty collection after quarantine, got %d", page.Total)
	}

	quarantined, err := filepath.Glob(dataFile + ".corrupt-*")
	if err != nil {
		t.Fatalf("glob failed: %v", err)
	}
	if len(quarantined) != 1 {
		t.Fatalf("expected one quarantined file, found %v", quarantined)
	}

	// The store keeps working after self-healing.
	if _, err := s.CreateTask(models.Task{Title: "Post-recovery"}); err != nil {
		t.Errorf("CreateTask after recovery failed: %v", err)
	}
}

func TestChecksumMismatch_Quarantined(t *testing.T) {
	tmpDir := t.TempDir()
	dataFile := filepath.Join(tmpDir, "tasks.json")
	cfg := map[string]string{
		"dataFile":       dataFile,
		"dataFileFormat": "json",
		"attachmentsDir": filepath.Join(tmpDir, "attachments"),
	}

	s1 := NewFileTaskStore()
	s1.SetBlobFS(afero.NewMemMapFs())
	if err := s1.Initialize(cfg); err != nil {
		t.Fatalf("Failed to initialize store: %v", err)
	}
	if _, err := s1.CreateTask(models.Task{ID: "task-1", Title: "Will be tampered"}); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if err := s1.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Tamper with the data file without updating the checksum sidecar.
	if err := os.WriteFile(dataFile, []byte(`{"tasks": []}`), 0o644); err != nil {
		t.Fatalf("failed to tamper with data file: %v", err)
	}

	s2 := NewFileTaskStore()
	s2.SetBlobFS(afero.NewMemMapFs())
	if err := s2.Initialize(cfg); err != nil {
		t.Fatalf("Initialize must self-heal on checksum mismatch, got: %v", err)
	}
	defer func() { _ = s2.Close() }()

	quarantined, _ := filepath.Glob(dataFile + ".corrupt-*")
	if len(quarantined) != 1 {
		t.Errorf("expected quarantined file after checksum mismatch, found %v", quarantined)
	}
}

func TestReloadIfChanged(t *testing.T) {
	s := setupTestStore(t)

	mustCreate(t, s, models.Task{ID: "task-1", Title: "Local write"})

	// The store's own save must not count as an external change.
	changed, err := s.ReloadIfChanged()
	if err != nil {
		t.Fatalf("ReloadIfChanged failed: %v", err)
	}
	if changed {
		t.Error("own atomic save must not trigger a reload")
	}

	// Simulate another process replacing the document and its checksum.
	doc := []byte(`{
  "tasks": [
    {
      "id": "ext-1",
      "title": "Written by another process",
      "status": "open",
      "priority": "low",
      "createdAt": "2026-01-02T03:04:05Z",
      "updatedAt": "2026-01-02T03:04:05Z"
    }
  ]
}`)
	if err := os.WriteFile(s.DataFilePath(), doc, 0o644); err != nil {
		t.Fatalf("failed to replace data file: %v", err)
	}
	if err := os.WriteFile(s.DataFilePath()+".checksum", []byte(calculateChecksum(doc)), 0o644); err != nil {
		t.Fatalf("failed to replace checksum file: %v", err)
	}

	changed, err = s.ReloadIfChanged()
	if err != nil {
		t.Fatalf("ReloadIfChanged after external write failed: %v", err)
	}
	if !changed {
		t.Fatal("external replacement must trigger a reload")
	}
	if _, err := s.GetTask("ext-1"); err != nil {
		t.Errorf("externally written task not visible after reload: %v", err)
	}

	// And the new content is now the known state.
	changed, err = s.ReloadIfChanged()
	if err != nil {
		t.Fatalf("ReloadIfChanged failed: %v", err)
	}
	if changed {
		t.Error("unchanged file must not reload again")
	}
}

func TestBackupAndRestore(t *testing.T) {
	tmpDir := t.TempDir()
	s := NewFileTaskStore()
	s.SetBlobFS(afero.NewMemMapFs())
	err := s.Initialize(map[string]string{
		"dataFile":       filepath.Join(tmpDir, "tasks.json"),
		"dataFileFormat": "json",
		"attachmentsDir": filepath.Join(tmpDir, "attachments"),
	})
	if err != nil {
		t.Fatalf("Failed to initialize store: %v", err)
	}
	defer func() { _ = s.Close() }()

	mustCreate(t, s, models.Task{ID: "task-1", Title: "Backed up"})

	backupPath := filepath.Join(tmpDir, "backup.json")
	if err := s.Backup(backupPath); err != nil {
		t.Fatalf("Backup failed: %v", err)
	}

	if err := s.DeleteTask("task-1"); err != nil {
		t.Fatalf("DeleteTask failed: %v", err)
	}
	if err := s.Restore(backupPath); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	task, err := s.GetTask("task-1")
	if err != nil {
		t.Fatalf("GetTask after restore failed: %v", err)
	}
	if task.Title != "Backed up" {
		t.Errorf("restored task mismatch: %q", task.Title)
	}
}
