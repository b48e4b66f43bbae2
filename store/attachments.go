package store

import (
	"encoding/base64"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/estateops/taskdesk/models"
	"github.com/estateops/taskdesk/types"
)

// AttachmentUpload is the write-side payload for a new attachment.
type AttachmentUpload struct {
	Name          string `json:"name"`
	Type          string `json:"type,omitempty"`
	Size          int64  `json:"size,omitempty"`
	ContentBase64 string `json:"contentBase64"`
}

// ResolvedAttachment carries what a caller needs to stream a blob back:
// the on-disk path, the display name, and the MIME type.
type ResolvedAttachment struct {
	Path string
	Name string
	Type string
	Size int64
}

var unsafePathChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// sanitizeFileName reduces user-supplied input to a safe path segment.
// Anything outside [a-zA-Z0-9._-] collapses to an underscore and leading
// dots are stripped, so neither task ids nor original filenames can escape
// the attachments root.
func sanitizeFileName(name string) string {
	name = filepath.Base(name)
	name = unsafePathChars.ReplaceAllString(name, "_")
	name = strings.TrimLeft(name, ".")
	if name == "" {
		name = "file"
	}
	return name
}

// taskAttachmentDir returns the per-task blob directory.
func (s *FileTaskStore) taskAttachmentDir(taskID string) string {
	return filepath.Join(s.attachmentsRoot, sanitizeFileName(taskID))
}

// AddAttachment decodes the payload, writes the blob under the task's
// directory, and appends the metadata entry. The on-disk filename combines
// the generated attachment id with the sanitized original name; the display
// name is never used for path construction.
func (s *FileTaskStore) AddAttachment(taskID string, upload AttachmentUpload) (models.Attachment, error) {
	if strings.TrimSpace(upload.Name) == "" {
		return models.Attachment{}, types.NewValidationError("attachment name must not be empty", nil)
	}
	if upload.ContentBase64 == "" {
		return models.Attachment{}, types.NewValidationError("attachment payload must not be empty", nil)
	}

	payload, err := base64.StdEncoding.DecodeString(upload.ContentBase64)
	if err != nil {
		return models.Attachment{}, types.NewValidationError("attachment payload is not valid base64", map[string]interface{}{"cause": err.Error()})
	}

	dir := s.taskAttachmentDir(taskID)
	if err := s.blobFS.MkdirAll(dir, 0o755); err != nil {
		return models.Attachment{}, fmt.Errorf("failed to create attachment directory %s: %w", dir, err)
	}

	attID := generateID()
	fileName := fmt.Sprintf("%s-%s", attID, sanitizeFileName(upload.Name))
	blobPath := filepath.Join(dir, fileName)

	if err := afero.WriteFile(s.blobFS, blobPath, payload, 0o644); err != nil {
		return models.Attachment{}, fmt.Errorf("failed to write attachment blob %s: %w", blobPath, err)
	}

	size := upload.Size
	if size <= 0 {
		size = int64(len(payload))
	}

	attachment := models.Attachment{
		ID:         attID,
		Name:       upload.Name,
		Type:       upload.Type,
		Size:       size,
		File:       fileName,
		UploadedAt: time.Now().UTC(),
	}

	if _, err := s.mutateTask(taskID, func(task *models.Task) error {
		task.Attachments = append(task.Attachments, attachment)
		return nil
	}); err != nil {
		// The record never saw the metadata; don't leave an orphan blob.
		_ = s.blobFS.Remove(blobPath)
		return models.Attachment{}, err
	}

	return attachment, nil
}

// ResolveAttachment locates the blob for streaming. The task, the metadata
// entry, and the backing file must all exist; a gap in any of the three is
// not-found, not an internal error.
func (s *FileTaskStore) ResolveAttachment(taskID, attachmentID string) (*ResolvedAttachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return nil, types.NewNotFoundError(fmt.Sprintf("task with ID %s not found", taskID), nil)
	}

	for _, att := range task.Attachments {
		if att.ID != attachmentID {
			continue
		}
		blobPath := filepath.Join(s.taskAttachmentDir(taskID), att.File)
		exists, err := afero.Exists(s.blobFS, blobPath)
		if err != nil {
			return nil, fmt.Errorf("failed to stat attachment blob %s: %w", blobPath, err)
		}
		if !exists {
			return nil, types.NewNotFoundError(fmt.Sprintf("attachment %s has no backing file", attachmentID), nil)
		}
		return &ResolvedAttachment{Path: blobPath, Name: att.Name, Type: att.Type, Size: att.Size}, nil
	}
	return nil, types.NewNotFoundError(fmt.Sprintf("attachment %s not found on task %s", attachmentID, taskID), nil)
}

// OpenAttachment resolves an attachment and opens its blob for reading.
func (s *FileTaskStore) OpenAttachment(taskID, attachmentID string) (afero.File, *ResolvedAttachment, error) {
	resolved, err := s.ResolveAttachment(taskID, attachmentID)
	if err != nil {
		return nil, nil, err
	}
	f, err := s.blobFS.Open(resolved.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open attachment blob %s: %w", resolved.Path, err)
	}
	return f, resolved, nil
}

// RemoveAttachment deletes the blob and the metadata entry. A blob already
// missing from disk is tolerated; metadata removal proceeds regardless.
func (s *FileTaskStore) RemoveAttachment(taskID, attachmentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return types.NewNotFoundError(fmt.Sprintf("task with ID %s not found", taskID), nil)
	}

	idx := -1
	for i, att := range task.Attachments {
		if att.ID == attachmentID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return types.NewNotFoundError(fmt.Sprintf("attachment %s not found on task %s", attachmentID, taskID), nil)
	}

	prior := task
	removed := task.Attachments[idx]

	attachments := make([]models.Attachment, 0, len(task.Attachments)-1)
	attachments = append(attachments, task.Attachments[:idx]...)
	attachments = append(attachments, task.Attachments[idx+1:]...)
	task.Attachments = attachments
	task.UpdatedAt = time.Now().UTC()
	s.tasks[taskID] = task

	if err := s.saveTasksToFileInternal(); err != nil {
		s.tasks[taskID] = prior
		return fmt.Errorf("failed to save after removing attachment: %w", err)
	}

	blobPath := filepath.Join(s.taskAttachmentDir(taskID), removed.File)
	_ = s.blobFS.Remove(blobPath) // missing blob is not fatal
	return nil
}
