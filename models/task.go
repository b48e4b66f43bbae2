package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// TaskStatus represents the possible statuses of a task.
type TaskStatus string

const (
	StatusOpen       TaskStatus = "open"
	StatusInProgress TaskStatus = "in_progress"
	StatusBlocked    TaskStatus = "blocked"
	StatusDone       TaskStatus = "done"
)

// TaskPriority represents the priority levels of a task.
type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
	PriorityUrgent TaskPriority = "urgent"
)

// Person identifies someone reachable by email or WhatsApp. Used for the
// task owner and the cc list; notification routing happens outside the store.
type Person struct {
	Name     string `json:"name" validate:"required,min=1"`
	Email    string `json:"email,omitempty" validate:"omitempty,email"`
	WhatsApp string `json:"whatsapp,omitempty"`
}

// ThreadItem is a single message in a task's conversation log.
// Once appended it is never edited or removed.
type ThreadItem struct {
	ID     string    `json:"id" validate:"required"`
	Author string    `json:"author"` // free text, not a user reference
	Text   string    `json:"text" validate:"required"`
	At     time.Time `json:"at" validate:"required"`
}

// Participant is a person invited to follow a task. Append-only, like the
// thread: the store offers no edit or removal for historical entries.
type Participant struct {
	ID        string    `json:"id" validate:"required"`
	Name      string    `json:"name" validate:"required,min=1"`
	Email     string    `json:"email,omitempty" validate:"omitempty,email"`
	WhatsApp  string    `json:"whatsapp,omitempty"`
	InvitedAt time.Time `json:"invitedAt" validate:"required"`
}

// Attachment is the JSON-side descriptor of a binary stored on disk.
// Name is the display label only; File is the sanitized on-disk filename and
// is the single field ever used to resolve the blob.
type Attachment struct {
	ID         string    `json:"id" validate:"required"`
	Name       string    `json:"name" validate:"required,min=1"`
	Type       string    `json:"type,omitempty"`
	Size       int64     `json:"size"`
	File       string    `json:"file" validate:"required"`
	UploadedAt time.Time `json:"uploadedAt" validate:"required"`
}

// LinkedEntity is a weak, typed pointer to an external domain object such as
// a property or an invoice. The store never dereferences it.
type LinkedEntity struct {
	Type string `json:"type" validate:"required,min=1"`
	ID   string `json:"id" validate:"required,min=1"`
}

// CalendarEvent is a derived sub-record written by calendar-integration
// callers. The store treats it as opaque payload.
type CalendarEvent struct {
	ID        string    `json:"id,omitempty"`
	Provider  string    `json:"provider,omitempty"`
	EventURL  string    `json:"eventUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// Task represents a unit of work tracked against a property portfolio.
type Task struct {
	ID            string         `json:"id" validate:"required"`
	Title         string         `json:"title" validate:"required,min=1,max=255"`
	Description   string         `json:"description,omitempty"`
	Status        TaskStatus     `json:"status" validate:"required,oneof=open in_progress blocked done"`
	Priority      TaskPriority   `json:"priority" validate:"required,oneof=low medium high urgent"`
	Category      string         `json:"category,omitempty"`
	DueDate       string         `json:"dueDate,omitempty"`
	Assignees     []string       `json:"assignees"`
	Labels        []string       `json:"labels"`
	Owner         *Person        `json:"owner,omitempty"`
	CC            []Person       `json:"cc,omitempty" validate:"omitempty,dive"`
	Thread        []ThreadItem   `json:"thread"`
	Participants  []Participant  `json:"participants"`
	Attachments   []Attachment   `json:"attachments"`
	CalendarEvent *CalendarEvent `json:"calendarEvent,omitempty"`
	Link          *LinkedEntity  `json:"link,omitempty"`
	CreatedAt     time.Time      `json:"createdAt" validate:"required"`
	UpdatedAt     time.Time      `json:"updatedAt" validate:"required"`
}

// TaskList represents the persisted collection: the entire store is one
// document of this shape.
type TaskList struct {
	Tasks []Task `json:"tasks" validate:"dive"`
}

// global validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// ValidateStruct performs validation on any struct that has validation tags.
func ValidateStruct(s interface{}) error {
	if validate == nil {
		// Safeguard for tests running in isolation.
		validate = validator.New()
	}
	err := validate.Struct(s)
	if err != nil {
		validationErrors := err.(validator.ValidationErrors)
		var errorMessages []string
		for _, e := range validationErrors {
			errorMessages = append(errorMessages, fmt.Sprintf("Validation failed on field '%s': rule '%s' (value: '%v')", e.StructNamespace(), e.Tag(), e.Value()))
		}
		return fmt.Errorf("%s", strings.Join(errorMessages, "; "))
	}
	return nil
}

// NewTask builds a task with the store's required defaults: open status,
// medium priority, both timestamps set to now, and every nested collection
// initialized empty rather than nil.
func NewTask(id, title string) *Task {
	now := time.Now().UTC()
	if title == "" {
		title = "Task " + shortID(id)
	}
	return &Task{
		ID:           id,
		Title:        title,
		Status:       StatusOpen,
		Priority:     PriorityMedium,
		Assignees:    []string{},
		Labels:       []string{},
		Thread:       []ThreadItem{},
		Participants: []Participant{},
		Attachments:  []Attachment{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
