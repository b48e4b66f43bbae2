package models

import "time"

// ArchiveEntry is a snapshot of a finished task, taken when it is moved out
// of the live collection.
type ArchiveEntry struct {
	ID           string       `json:"id"`
	ArchivedAt   time.Time    `json:"archivedAt"`
	TaskID       string       `json:"taskId"`
	Title        string       `json:"title"`
	Description  string       `json:"description,omitempty"`
	Priority     TaskPriority `json:"priority"`
	Category     string       `json:"category,omitempty"`
	Assignees    []string     `json:"assignees,omitempty"`
	Labels       []string     `json:"labels,omitempty"`
	Link         *LinkedEntity `json:"link,omitempty"`
	Thread       []ThreadItem  `json:"thread,omitempty"`
	Participants []Participant `json:"participants,omitempty"`
	// Attachment display names only; blobs stay under the attachments root
	// until removed explicitly.
	AttachmentNames []string  `json:"attachmentNames,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	CompletedAt     time.Time `json:"completedAt"`
}

// ArchiveIndex summarizes archive entries for fast listing and basic search.
type ArchiveIndex struct {
	Archives   []ArchiveIndexItem `json:"archives"`
	Statistics struct {
		TotalArchives int `json:"totalArchives"`
	} `json:"statistics"`
}

// ArchiveIndexItem is a compact record of an archive entry stored on disk.
type ArchiveIndexItem struct {
	ID         string    `json:"id"`
	Date       string    `json:"date"`
	Title      string    `json:"title"`
	FilePath   string    `json:"filePath"`
	Labels     []string  `json:"labels,omitempty"`
	Summary    string    `json:"summary,omitempty"`
	ArchivedAt time.Time `json:"archivedAt"`
}
