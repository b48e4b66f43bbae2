package store

import (
	"github.com/spf13/afero"

	"github.com/estateops/taskdesk/models"
)

// TaskStore defines the interface for task persistence.
// It outlines the contract for managing task records, their append-only
// sub-collections, attachment blobs, and the read-side query engine.
type TaskStore interface {
	// Initialize configures the store with necessary parameters, such as
	// file path, data format, and the attachments root directory.
	// It should be called before any other store operations.
	Initialize(config map[string]string) error

	// CreateTask adds a new task to the store.
	// Missing fields are defaulted (generated id and title, open status,
	// medium priority, empty collections). It returns the created task or an
	// error if a task with the given id already exists.
	CreateTask(task models.Task) (models.Task, error)

	// CreateTasks adds a batch of tasks in a single load/persist cycle.
	// It returns the created tasks in input order.
	CreateTasks(tasks []models.Task) ([]models.Task, error)

	// GetTask retrieves a task by its unique identifier.
	// It is the one lookup with strict semantics: a missing id returns a
	// not-found error and never materializes a record.
	GetTask(id string) (models.Task, error)

	// PatchTask applies a partial update to the task with the given id.
	// If no task exists under that id, a default record is synthesized first
	// (upsert-by-id). Only fields present in the updates map are touched;
	// array-valued fields are replaced wholesale. The task's id and createdAt
	// never change; updatedAt always does.
	PatchTask(id string, updates map[string]interface{}) (models.Task, error)

	// AppendThreadMessage appends an immutable message to the task's
	// conversation thread. Empty or whitespace-only text is rejected.
	AppendThreadMessage(id, author, text string) (models.Task, error)

	// AddParticipant appends a participant invitation to the task.
	// An empty name is rejected.
	AddParticipant(id string, p models.Participant) (models.Task, error)

	// SetLink overwrites the task's linked-entity pointer wholesale.
	// A nil link clears it.
	SetLink(id string, link *models.LinkedEntity) (models.Task, error)

	// AddAttachment decodes the base64 payload, writes the blob under the
	// task's attachment directory, and appends the resulting metadata.
	AddAttachment(taskID string, upload AttachmentUpload) (models.Attachment, error)

	// ResolveAttachment returns streaming metadata for an attachment blob.
	// A missing task, missing metadata, or missing backing file all yield a
	// not-found error.
	ResolveAttachment(taskID, attachmentID string) (*ResolvedAttachment, error)

	// OpenAttachment resolves an attachment and opens its blob for reading.
	OpenAttachment(taskID, attachmentID string) (afero.File, *ResolvedAttachment, error)

	// RemoveAttachment deletes the blob (best effort) and the metadata entry.
	// It returns a not-found error when no matching metadata exists.
	RemoveAttachment(taskID, attachmentID string) error

	// DeleteTask removes a task from the store by its unique identifier.
	DeleteTask(id string) error

	// DeleteTasks removes a list of tasks in a single load/persist cycle.
	// It returns the number of tasks actually deleted.
	DeleteTasks(ids []string) (int, error)

	// ListTasks runs the filter engine over the full collection and returns
	// one page of results plus the pre-pagination total.
	ListTasks(filter TaskFilter) (TaskPage, error)

	// Backup creates a copy of the current collection document at the
	// destination path.
	Backup(destinationPath string) error

	// Restore replaces the current collection document with data from the
	// source path. This operation may be destructive to current data.
	Restore(sourcePath string) error

	// Close releases any resources held by the store, such as file locks.
	Close() error
}
