package store

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	yaml "gopkg.in/yaml.v3"

	"github.com/estateops/taskdesk/internal/logger"
	"github.com/estateops/taskdesk/models"
	"github.com/estateops/taskdesk/types"
)

const (
	defaultDataFile       = "tasks.json" // Default filename if only format implies extension
	dataFileKey           = "dataFile"
	dataFileFormatKey     = "dataFileFormat"
	attachmentsDirKey     = "attachmentsDir"
	defaultAttachmentsDir = "attachments"
	defaultDataFormat     = "json"
	formatJSON            = "json"
	formatYAML            = "yaml"
	formatTOML            = "toml"
	checksumSuffix        = ".checksum"
)

// FileTaskStore implements the TaskStore interface using a file backend.
// The whole collection is one document, loaded once and kept resident;
// every mutation rewrites the document through a temp-file-and-rename cycle.
// A process-wide mutex serializes the read-mutate-persist cycle and a file
// lock keeps other processes out for the lifetime of the store.
type FileTaskStore struct {
	mu       sync.RWMutex
	filePath string
	tasks    map[string]models.Task
	flk      *flock.Flock
	format   string // "json", "yaml", or "toml"

	// lastChecksum is the checksum of the document content this store most
	// recently wrote or loaded. The data file watcher compares against it to
	// tell the store's own atomic saves apart from external writers.
	lastChecksum string

	// Attachment blobs go through afero so tests can run on a memory fs.
	blobFS          afero.Fs
	attachmentsRoot string
}

// NewFileTaskStore creates a new instance of FileTaskStore.
// It does not initialize the store; Initialize must be called separately.
func NewFileTaskStore() *FileTaskStore {
	return &FileTaskStore{
		tasks:  make(map[string]models.Task),
		blobFS: afero.NewOsFs(),
	}
}

// SetBlobFS swaps the filesystem used for attachment blobs. Intended for
// tests; must be called before Initialize.
func (s *FileTaskStore) SetBlobFS(fsys afero.Fs) {
	s.blobFS = fsys
}

// Initialize configures the FileTaskStore.
// It expects a 'dataFile' key in the config map specifying the path to the
// data file, an optional 'dataFileFormat' (json, yaml, toml) and an optional
// 'attachmentsDir'. It loads the collection into memory and takes an
// exclusive file lock that is held until Close.
func (s *FileTaskStore) Initialize(config map[string]string) error {
	if val, ok := config[dataFileKey]; ok && val != "" {
		s.filePath = val
	} else {
		s.filePath = defaultDataFile
	}

	if val, ok := config[dataFileFormatKey]; ok && val != "" {
		formatLower := strings.ToLower(val)
		switch formatLower {
		case formatJSON, formatYAML, formatTOML:
			s.format = formatLower
		default:
			return fmt.Errorf("unsupported dataFileFormat: %s. Supported formats are json, yaml, toml", val)
		}
	} else {
		s.format = defaultDataFormat
	}

	// If filePath was the default and format is not JSON, adjust the default
	// extension. Users providing a full filePath own its extension.
	if s.filePath == defaultDataFile && s.format != formatJSON {
		ext := filepath.Ext(s.filePath)
		s.filePath = strings.TrimSuffix(s.filePath, ext) + "." + s.format
	}

	if val, ok := config[attachmentsDirKey]; ok && val != "" {
		s.attachmentsRoot = val
	} else {
		s.attachmentsRoot = filepath.Join(filepath.Dir(s.filePath), defaultAttachmentsDir)
	}

	dir := filepath.Dir(s.filePath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	// The lock is held for the lifetime of the store: the resident cache is
	// only sound while this process is the sole writer.
	s.flk = flock.New(s.filePath)
	locked, err := s.flk.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock for %s: %w", s.filePath, err)
	}
	if !locked {
		if err := s.flk.Lock(); err != nil {
			return fmt.Errorf("failed to acquire blocking lock for %s: %w", s.filePath, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = make(map[string]models.Task)
	return s.loadTasksFromFileInternal()
}

// calculateChecksum computes the SHA256 checksum of the given data.
func calculateChecksum(data []byte) string {
	hasher := sha256.New()
	hasher.Write(data) // Write never returns an error
	return hex.EncodeToString(hasher.Sum(nil))
}

// quarantineCorruptFile moves a damaged data file aside so operators can
// inspect it, and logs loudly: reinitializing an unreadable store is a
// potential data-loss event, never a silent one.
func (s *FileTaskStore) quarantineCorruptFile(reason string) {
	quarantinePath := fmt.Sprintf("%s.corrupt-%s", s.filePath, time.Now().UTC().Format("20060102T150405"))
	renameErr := os.Rename(s.filePath, quarantinePath)
	log := logger.Get()
	evt := log.Warn().
		Str("dataFile", s.filePath).
		Str("quarantine", quarantinePath).
		Str("reason", reason)
	if renameErr != nil {
		evt = evt.AnErr("quarantineError", renameErr)
	}
	evt.Msg("corrupt task store detected; reinitializing empty collection")
	_ = os.Remove(s.filePath + checksumSuffix)
}

// decodeTaskList unmarshals the collection document in the configured format
// and rejects documents whose shape is not {tasks: [...]}.
func (s *FileTaskStore) decodeTaskList(data []byte) (models.TaskList, error) {
	var taskList models.TaskList
	switch s.format {
	case formatJSON:
		if err := json.Unmarshal(data, &taskList); err != nil {
			return taskList, fmt.Errorf("failed to unmarshal JSON from %s: %w", s.filePath, err)
		}
		if taskList.Tasks == nil {
			// Distinguish {"tasks": []} from a document missing the key.
			var shape map[string]json.RawMessage
			if err := json.Unmarshal(data, &shape); err != nil {
				return taskList, fmt.Errorf("collection document %s is not an object", s.filePath)
			}
			if _, ok := shape["tasks"]; !ok {
				return taskList, fmt.Errorf("collection document %s has no tasks array", s.filePath)
			}
		}
	case formatYAML:
		if err := yaml.Unmarshal(data, &taskList); err != nil {
			return taskList, fmt.Errorf("failed to unmarshal YAML from %s: %w", s.filePath, err)
		}
	case formatTOML:
		if err := toml.Unmarshal(data, &taskList); err != nil {
			return taskList, fmt.Errorf("failed to unmarshal TOML from %s: %w", s.filePath, err)
		}
	default:
		return taskList, fmt.Errorf("unsupported data format for loading: %s", s.format)
	}
	return taskList, nil
}

// loadTasksFromFileInternal reads the collection document, verifies its
// checksum, and unmarshals it into the resident cache. A corrupt document is
// quarantined and replaced with a fresh empty collection. Callers must hold
// the mutex.
func (s *FileTaskStore) loadTasksFromFileInternal() error {
	checksumFilePath := s.filePath + checksumSuffix

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.tasks = make(map[string]models.Task)
			_ = os.Remove(checksumFilePath)
			return s.saveTasksToFileInternal()
		}
		return fmt.Errorf("failed to read data file %s: %w", s.filePath, err)
	}

	if len(data) == 0 {
		s.tasks = make(map[string]models.Task)
		s.lastChecksum = calculateChecksum(nil)
		_ = os.WriteFile(checksumFilePath, []byte(s.lastChecksum), 0o644) // best effort
		return nil
	}

	// Verify checksum if the sidecar exists. Data written before checksums
	// were introduced loads without one; the next save creates it.
	if _, statErr := os.Stat(checksumFilePath); statErr == nil {
		expectedChecksumBytes, readErr := os.ReadFile(checksumFilePath)
		if readErr != nil {
			return fmt.Errorf("failed to read checksum file %s: %w", checksumFilePath, readErr)
		}
		expectedChecksum := strings.TrimSpace(string(expectedChecksumBytes))
		if actual := calculateChecksum(data); actual != expectedChecksum {
			s.quarantineCorruptFile(fmt.Sprintf("checksum mismatch: expected %s, got %s", expectedChecksum, actual))
			s.tasks = make(map[string]models.Task)
			return s.saveTasksToFileInternal()
		}
	} else if !os.IsNotExist(statErr) {
		return fmt.Errorf("error checking checksum file %s: %w", checksumFilePath, statErr)
	}

	taskList, err := s.decodeTaskList(data)
	if err != nil {
		s.quarantineCorruptFile(err.Error())
		s.tasks = make(map[string]models.Task)
		return s.saveTasksToFileInternal()
	}

	s.tasks = make(map[string]models.Task, len(taskList.Tasks))
	for _, task := range taskList.Tasks {
		s.tasks[task.ID] = normalizeTask(task)
	}
	s.lastChecksum = calculateChecksum(data)
	return nil
}

// normalizeTask replaces nil sub-collections with empty ones so that
// serialized records always carry their arrays.
func normalizeTask(task models.Task) models.Task {
	if task.Assignees == nil {
		task.Assignees = []string{}
	}
	if task.Labels == nil {
		task.Labels = []string{}
	}
	if task.Thread == nil {
		task.Thread = []models.ThreadItem{}
	}
	if task.Participants == nil {
		task.Participants = []models.Participant{}
	}
	if task.Attachments == nil {
		task.Attachments = []models.Attachment{}
	}
	return task
}

// saveTasksToFileInternal writes the collection to disk atomically, then
// writes its checksum sidecar. Callers must hold the mutex.
func (s *FileTaskStore) saveTasksToFileInternal() error {
	taskList := models.TaskList{
		Tasks: make([]models.Task, 0, len(s.tasks)),
	}
	for _, task := range s.tasks {
		taskList.Tasks = append(taskList.Tasks, task)
	}
	// Deterministic document order keeps diffs and backups readable.
	sort.Slice(taskList.Tasks, func(i, j int) bool {
		a, b := taskList.Tasks[i], taskList.Tasks[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	var marshaledData []byte
	var err error

	switch s.format {
	case formatJSON:
		marshaledData, err = json.MarshalIndent(taskList, "", "  ")
	case formatYAML:
		marshaledData, err = yaml.Marshal(taskList)
	case formatTOML:
		buf := new(bytes.Buffer)
		if encodeErr := toml.NewEncoder(buf).Encode(taskList); encodeErr == nil {
			marshaledData = buf.Bytes()
		} else {
			err = fmt.Errorf("failed to marshal TOML: %w", encodeErr)
		}
	default:
		return fmt.Errorf("unsupported data format for saving: %s", s.format)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal tasks to %s: %w", s.format, err)
	}

	tempFilePath := s.filePath + ".tmp"
	checksumFilePath := s.filePath + checksumSuffix
	tempChecksumFilePath := checksumFilePath + ".tmp"

	defer func() { _ = os.Remove(tempFilePath) }()
	defer func() { _ = os.Remove(tempChecksumFilePath) }()

	if err := os.WriteFile(tempFilePath, marshaledData, 0o644); err != nil {
		return fmt.Errorf("failed to write to temporary data file %s: %w", tempFilePath, err)
	}

	actualChecksum := calculateChecksum(marshaledData)
	if err := os.WriteFile(tempChecksumFilePath, []byte(actualChecksum), 0o644); err != nil {
		return fmt.Errorf("failed to write to temporary checksum file %s: %w", tempChecksumFilePath, err)
	}

	if err := os.Rename(tempFilePath, s.filePath); err != nil {
		return fmt.Errorf("failed to rename temporary data file %s to %s: %w", tempFilePath, s.filePath, err)
	}
	if err := os.Rename(tempChecksumFilePath, checksumFilePath); err != nil {
		return fmt.Errorf("CRITICAL: data file %s updated, but failed to update checksum file %s: %w - store may be inconsistent", s.filePath, checksumFilePath, err)
	}

	s.lastChecksum = actualChecksum
	return nil
}

// generateID creates a new universally unique identifier string.
func generateID() string {
	return uuid.NewString()
}

// applyCreateDefaults fills a caller-supplied task skeleton with the store's
// required defaults, leaving provided fields intact.
func applyCreateDefaults(task models.Task) models.Task {
	if task.ID == "" {
		task.ID = generateID()
	}
	seeded := models.NewTask(task.ID, task.Title)
	if task.Description != "" {
		seeded.Description = task.Description
	}
	if task.Status != "" {
		seeded.Status = task.Status
	}
	if task.Priority != "" {
		seeded.Priority = task.Priority
	}
	seeded.Category = task.Category
	seeded.DueDate = task.DueDate
	if task.Assignees != nil {
		seeded.Assignees = task.Assignees
	}
	if task.Labels != nil {
		seeded.Labels = task.Labels
	}
	seeded.Owner = task.Owner
	seeded.CC = task.CC
	seeded.Link = task.Link
	seeded.CalendarEvent = task.CalendarEvent
	return *seeded
}

// CreateTask adds a new task to the store, defaulting any missing fields.
func (s *FileTaskStore) CreateTask(task models.Task) (models.Task, error) {
	created, err := s.CreateTasks([]models.Task{task})
	if err != nil {
		return models.Task{}, err
	}
	return created[0], nil
}

// CreateTasks adds a batch of tasks within one persist cycle.
func (s *FileTaskStore) CreateTasks(tasks []models.Task) ([]models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	created := make([]models.Task, 0, len(tasks))
	addedIDs := make([]string, 0, len(tasks))
	for _, task := range tasks {
		task = applyCreateDefaults(task)
		if _, exists := s.tasks[task.ID]; exists {
			s.rollback(addedIDs, nil)
			return nil, types.NewConflictError(fmt.Sprintf("task with ID '%s' already exists", task.ID), nil)
		}
		if err := models.ValidateStruct(task); err != nil {
			s.rollback(addedIDs, nil)
			return nil, types.NewValidationError(err.Error(), nil)
		}
		s.tasks[task.ID] = task
		addedIDs = append(addedIDs, task.ID)
		created = append(created, task)
	}

	if err := s.saveTasksToFileInternal(); err != nil {
		s.rollback(addedIDs, nil)
		return nil, fmt.Errorf("failed to save new tasks: %w", err)
	}
	return created, nil
}

// rollback undoes in-memory changes after a failed save: ids in addedIDs are
// removed, entries in replaced are restored to their prior value.
func (s *FileTaskStore) rollback(addedIDs []string, replaced map[string]models.Task) {
	for _, id := range addedIDs {
		delete(s.tasks, id)
	}
	for id, prior := range replaced {
		s.tasks[id] = prior
	}
}

// GetTask retrieves a task by its unique identifier. Unlike the mutators it
// never materializes a record for an unknown id.
func (s *FileTaskStore) GetTask(id string) (models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[id]
	if !ok {
		return models.Task{}, types.NewNotFoundError(fmt.Sprintf("task with ID %s not found", id), nil)
	}
	return task, nil
}

// getOrMaterialize returns the task under id, synthesizing a default record
// when none exists. The bool reports whether the task pre-existed. Callers
// must hold the write lock.
func (s *FileTaskStore) getOrMaterialize(id string) (models.Task, bool) {
	if task, ok := s.tasks[id]; ok {
		return task, true
	}
	return *models.NewTask(id, ""), false
}

// mutateTask runs fn against the task under id (materializing it when
// missing), bumps updatedAt, validates, and persists. On a failed save the
// prior in-memory state is restored.
func (s *FileTaskStore) mutateTask(id string, fn func(*models.Task) error) (models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, existed := s.getOrMaterialize(id)
	prior := task

	if err := fn(&task); err != nil {
		return models.Task{}, err
	}
	task.UpdatedAt = time.Now().UTC()

	if err := models.ValidateStruct(task); err != nil {
		return models.Task{}, types.NewValidationError(err.Error(), nil)
	}

	s.tasks[id] = task
	if err := s.saveTasksToFileInternal(); err != nil {
		if existed {
			s.tasks[id] = prior
		} else {
			delete(s.tasks, id)
		}
		return models.Task{}, fmt.Errorf("failed to save task %s: %w", id, err)
	}
	return task, nil
}

// PatchTask applies a partial update. A patch addressed at an unknown id
// materializes a default record first; this upsert-by-id behavior is the
// documented contract of the store.
func (s *FileTaskStore) PatchTask(id string, updates map[string]interface{}) (models.Task, error) {
	return s.mutateTask(id, func(task *models.Task) error {
		return applyPatch(task, updates)
	})
}

// AppendThreadMessage appends an immutable conversation entry.
func (s *FileTaskStore) AppendThreadMessage(id, author, text string) (models.Task, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return models.Task{}, types.NewValidationError("thread message text must not be empty", nil)
	}
	return s.mutateTask(id, func(task *models.Task) error {
		task.Thread = append(task.Thread, models.ThreadItem{
			ID:     generateID(),
			Author: author,
			Text:   trimmed,
			At:     time.Now().UTC(),
		})
		return nil
	})
}

// AddParticipant appends a participant invitation.
func (s *FileTaskStore) AddParticipant(id string, p models.Participant) (models.Task, error) {
	if strings.TrimSpace(p.Name) == "" {
		return models.Task{}, types.NewValidationError("participant name must not be empty", nil)
	}
	return s.mutateTask(id, func(task *models.Task) error {
		p.ID = generateID()
		p.InvitedAt = time.Now().UTC()
		task.Participants = append(task.Participants, p)
		return nil
	})
}

// SetLink overwrites the linked-entity pointer wholesale, last write wins.
func (s *FileTaskStore) SetLink(id string, link *models.LinkedEntity) (models.Task, error) {
	if link != nil && (link.Type == "" || link.ID == "") {
		return models.Task{}, types.NewValidationError("link requires both type and id", nil)
	}
	return s.mutateTask(id, func(task *models.Task) error {
		task.Link = link
		return nil
	})
}

// DeleteTask removes a task from the store by its unique identifier.
// Attachment blobs under the task's directory are removed with it.
func (s *FileTaskStore) DeleteTask(id string) error {
	n, err := s.DeleteTasks([]string{id})
	if err != nil {
		return err
	}
	if n == 0 {
		return types.NewNotFoundError(fmt.Sprintf("task with ID '%s' not found", id), nil)
	}
	return nil
}

// DeleteTasks removes a list of tasks in a single persist cycle and returns
// the number actually deleted. Unknown ids are skipped, not errors.
func (s *FileTaskStore) DeleteTasks(ids []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := make(map[string]models.Task, len(ids))
	for _, id := range ids {
		if task, ok := s.tasks[id]; ok {
			removed[id] = task
			delete(s.tasks, id)
		}
	}
	if len(removed) == 0 {
		return 0, nil
	}

	if err := s.saveTasksToFileInternal(); err != nil {
		s.rollback(nil, removed)
		return 0, fmt.Errorf("failed to save after deleting tasks: %w", err)
	}

	// Blob cleanup is best effort: the metadata is already gone, and a
	// leftover directory cannot be resolved again.
	for id := range removed {
		_ = s.blobFS.RemoveAll(s.taskAttachmentDir(id))
	}
	return len(removed), nil
}

// ListTasks runs the filter engine over the resident collection.
func (s *FileTaskStore) ListTasks(filter TaskFilter) (TaskPage, error) {
	s.mu.RLock()
	taskList := make([]models.Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		taskList = append(taskList, task)
	}
	s.mu.RUnlock()

	return filter.Apply(taskList), nil
}

// Backup creates a copy of the current collection document at the
// destination path.
func (s *FileTaskStore) Backup(destinationPath string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	input, err := os.ReadFile(s.filePath)
	if err != nil {
		return fmt.Errorf("failed to read source file %s for backup: %w", s.filePath, err)
	}
	if err = os.WriteFile(destinationPath, input, 0o644); err != nil {
		return fmt.Errorf("failed to write backup file to %s: %w", destinationPath, err)
	}
	return nil
}

// Restore replaces the current collection document with data from the source
// path and reloads the resident cache from it.
func (s *FileTaskStore) Restore(sourcePath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sourceData, err := os.ReadFile(sourcePath)
	if err != nil {
		return fmt.Errorf("failed to read source backup file %s: %w", sourcePath, err)
	}

	tempFilePath := s.filePath + ".tmp_restore"
	defer func() { _ = os.Remove(tempFilePath) }()

	if err = os.WriteFile(tempFilePath, sourceData, 0o644); err != nil {
		return fmt.Errorf("failed to write restored data to temporary file %s: %w", tempFilePath, err)
	}
	if err = os.Rename(tempFilePath, s.filePath); err != nil {
		return fmt.Errorf("failed to atomically replace file %s with restored data from %s: %w", s.filePath, sourcePath, err)
	}

	// The restored data predates the current checksum; a fresh one is
	// generated on the next save.
	_ = os.Remove(s.filePath + checksumSuffix)

	return s.loadTasksFromFileInternal()
}

// ReloadIfChanged re-reads the collection document when its content differs
// from what this store last wrote or loaded. The data file watcher calls it
// on every event; the checksum comparison keeps the store's own atomic saves
// from triggering redundant re-parses. Returns whether a reload happened.
func (s *FileTaskStore) ReloadIfChanged() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err == nil && calculateChecksum(data) == s.lastChecksum {
		return false, nil
	}
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("failed to read data file %s: %w", s.filePath, err)
	}
	return true, s.loadTasksFromFileInternal()
}

// DataFilePath returns the path of the collection document.
func (s *FileTaskStore) DataFilePath() string {
	return s.filePath
}

// Close releases the file lock held since Initialize.
// flock.Unlock() is idempotent and safe to call when the lock is not held.
func (s *FileTaskStore) Close() error {
	if s.flk != nil {
		return s.flk.Unlock()
	}
	return nil
}
