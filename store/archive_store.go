package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/estateops/taskdesk/models"
	"github.com/estateops/taskdesk/types"
)

// ArchiveStore defines the interface for archiving finished tasks.
// Archiving snapshots a done task into its own JSON file and removes it from
// the live collection's concern; the index keeps listing and search cheap.
type ArchiveStore interface {
	Initialize(config map[string]string) error
	CreateFromTask(task models.Task) (models.ArchiveEntry, error)
	GetByID(id string) (models.ArchiveEntry, string, error)
	List() ([]models.ArchiveIndexItem, error)
	Search(query string, filters ArchiveSearchFilters) ([]models.ArchiveIndexItem, error)
	Purge(opts PurgeOptions) (PurgeResult, error)
	Close() error
}

// ArchiveSearchFilters contains optional filters for search.
type ArchiveSearchFilters struct {
	DateFrom *time.Time
	DateTo   *time.Time
	Labels   []string
}

// PurgeOptions controls retention behavior.
type PurgeOptions struct {
	DryRun    bool
	OlderThan *time.Duration // e.g. 90 days
}

type PurgeResult struct {
	DryRun          bool
	FilesConsidered int
	FilesDeleted    int
	BytesFreed      int64
}

// FileArchiveStore is a file-based archive using per-entry JSON files under
// <archiveDir>/<year>/<month>/ plus an index.json.
type FileArchiveStore struct {
	baseDir   string
	indexPath string
	flk       *flock.Flock
}

func NewFileArchiveStore() *FileArchiveStore {
	return &FileArchiveStore{}
}

func (s *FileArchiveStore) Initialize(config map[string]string) error {
	base, ok := config["archiveDir"]
	if !ok || base == "" {
		base = filepath.Join(".taskdesk", "archive")
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return fmt.Errorf("failed to create archive dir %s: %w", base, err)
	}
	s.baseDir = base
	s.indexPath = filepath.Join(base, "index.json")
	s.flk = flock.New(s.indexPath)
	if _, err := os.Stat(s.indexPath); errors.Is(err, os.ErrNotExist) {
		idx := models.ArchiveIndex{Archives: []models.ArchiveIndexItem{}}
		if err := s.writeIndex(idx); err != nil {
			return err
		}
	}
	return nil
}

func (s *FileArchiveStore) Close() error {
	if s.flk != nil {
		return s.flk.Unlock()
	}
	return nil
}

func (s *FileArchiveStore) readIndex() (models.ArchiveIndex, error) {
	data, err := os.ReadFile(s.indexPath)
	if err != nil {
		return models.ArchiveIndex{}, fmt.Errorf("read index: %w", err)
	}
	var idx models.ArchiveIndex
	if len(data) == 0 {
		idx.Archives = []models.ArchiveIndexItem{}
		return idx, nil
	}
	if err := json.Unmarshal(data, &idx); err != nil {
		return models.ArchiveIndex{}, fmt.Errorf("parse index: %w", err)
	}
	return idx, nil
}

func (s *FileArchiveStore) writeIndex(idx models.ArchiveIndex) error {
	b, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}
	if err := os.WriteFile(s.indexPath, b, 0o644); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}

var slugUnsafe = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(title string) string {
	lower := strings.ToLower(strings.TrimSpace(title))
	slug := slugUnsafe.ReplaceAllString(lower, "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "task"
	}
	if len(slug) > 64 { // keep file paths readable
		truncated := slug[:64]
		if lastDash := strings.LastIndex(truncated, "-"); lastDash > 40 {
			truncated = truncated[:lastDash]
		}
		slug = strings.Trim(truncated, "-")
	}
	return slug
}

func (s *FileArchiveStore) entryPath(t time.Time, title, id string) (string, error) {
	dirPath := filepath.Join(s.baseDir, t.Format("2006"), t.Format("01"))
	if err := os.MkdirAll(dirPath, 0o755); err != nil {
		return "", fmt.Errorf("failed to create archive directory %s: %w", dirPath, err)
	}
	short := id
	if len(short) > 8 {
		short = id[:8]
	}
	name := fmt.Sprintf("%s_%s-%s.json", t.Format("2006-01-02"), slugify(title), short)
	return filepath.Join(dirPath, name), nil
}

// CreateFromTask snapshots a done task into the archive. Only done tasks can
// be archived; archiving does not touch the live collection, the caller
// decides whether to delete the source record afterwards.
func (s *FileArchiveStore) CreateFromTask(task models.Task) (models.ArchiveEntry, error) {
	if task.Status != models.StatusDone {
		return models.ArchiveEntry{}, types.NewValidationError(fmt.Sprintf("task %s is not done and cannot be archived", task.ID), nil)
	}
	if err := s.flk.Lock(); err != nil {
		return models.ArchiveEntry{}, fmt.Errorf("lock index: %w", err)
	}
	defer func() { _ = s.flk.Unlock() }()

	idx, err := s.readIndex()
	if err != nil {
		return models.ArchiveEntry{}, err
	}

	now := time.Now().UTC()
	attachmentNames := make([]string, 0, len(task.Attachments))
	for _, att := range task.Attachments {
		attachmentNames = append(attachmentNames, att.Name)
	}
	entry := models.ArchiveEntry{
		ID:              uuid.NewString(),
		ArchivedAt:      now,
		TaskID:          task.ID,
		Title:           task.Title,
		Description:     task.Description,
		Priority:        task.Priority,
		Category:        task.Category,
		Assignees:       task.Assignees,
		Labels:          task.Labels,
		Link:            task.Link,
		Thread:          task.Thread,
		Participants:    task.Participants,
		AttachmentNames: attachmentNames,
		CreatedAt:       task.CreatedAt,
		CompletedAt:     task.UpdatedAt,
	}

	path, err := s.entryPath(now, task.Title, entry.ID)
	if err != nil {
		return models.ArchiveEntry{}, err
	}
	if err := writeJSON(path, entry); err != nil {
		return models.ArchiveEntry{}, err
	}

	item := models.ArchiveIndexItem{
		ID:         entry.ID,
		Date:       now.Format("2006-01-02"),
		Title:      task.Title,
		FilePath:   relPath(s.baseDir, path),
		Labels:     task.Labels,
		Summary:    summarize(task.Description, 140),
		ArchivedAt: now,
	}
	idx.Archives = append(idx.Archives, item)
	sort.SliceStable(idx.Archives, func(i, j int) bool { return idx.Archives[i].ArchivedAt.After(idx.Archives[j].ArchivedAt) })
	idx.Statistics.TotalArchives = len(idx.Archives)
	if err := s.writeIndex(idx); err != nil {
		return models.ArchiveEntry{}, err
	}
	return entry, nil
}

// GetByID loads a full archive entry. Short id prefixes are accepted.
func (s *FileArchiveStore) GetByID(id string) (models.ArchiveEntry, string, error) {
	if err := s.flk.Lock(); err != nil {
		return models.ArchiveEntry{}, "", fmt.Errorf("lock index: %w", err)
	}
	defer func() { _ = s.flk.Unlock() }()

	idx, err := s.readIndex()
	if err != nil {
		return models.ArchiveEntry{}, "", err
	}
	for _, it := range idx.Archives {
		if it.ID == id || strings.HasPrefix(it.ID, id) {
			abs := filepath.Join(s.baseDir, it.FilePath)
			var e models.ArchiveEntry
			if err := readJSON(abs, &e); err != nil {
				return models.ArchiveEntry{}, "", err
			}
			return e, abs, nil
		}
	}
	return models.ArchiveEntry{}, "", types.NewNotFoundError(fmt.Sprintf("archive id not found: %s", id), nil)
}

func (s *FileArchiveStore) List() ([]models.ArchiveIndexItem, error) {
	if err := s.flk.Lock(); err != nil {
		return nil, fmt.Errorf("lock index: %w", err)
	}
	defer func() { _ = s.flk.Unlock() }()

	idx, err := s.readIndex()
	if err != nil {
		return nil, err
	}
	return idx.Archives, nil
}

// Search filters the index by free text (title/summary), labels, and
// archive date range.
func (s *FileArchiveStore) Search(query string, filters ArchiveSearchFilters) ([]models.ArchiveIndexItem, error) {
	items, err := s.List()
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]models.ArchiveIndexItem, 0, len(items))
	for _, it := range items {
		if q != "" &&
			!strings.Contains(strings.ToLower(it.Title), q) &&
			!strings.Contains(strings.ToLower(it.Summary), q) {
			continue
		}
		if len(filters.Labels) > 0 && !intersects(filters.Labels, it.Labels) {
			continue
		}
		if filters.DateFrom != nil && it.ArchivedAt.Before(*filters.DateFrom) {
			continue
		}
		if filters.DateTo != nil && it.ArchivedAt.After(*filters.DateTo) {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

// Purge removes entries older than the retention window. With DryRun set it
// only reports what would be deleted.
func (s *FileArchiveStore) Purge(opts PurgeOptions) (PurgeResult, error) {
	if err := s.flk.Lock(); err != nil {
		return PurgeResult{}, fmt.Errorf("lock index: %w", err)
	}
	defer func() { _ = s.flk.Unlock() }()

	idx, err := s.readIndex()
	if err != nil {
		return PurgeResult{}, err
	}

	result := PurgeResult{DryRun: opts.DryRun}
	var cutoff time.Time
	if opts.OlderThan != nil {
		cutoff = time.Now().UTC().Add(-*opts.OlderThan)
	}

	kept := make([]models.ArchiveIndexItem, 0, len(idx.Archives))
	for _, it := range idx.Archives {
		result.FilesConsidered++
		expired := opts.OlderThan != nil && it.ArchivedAt.Before(cutoff)
		if !expired {
			kept = append(kept, it)
			continue
		}
		abs := filepath.Join(s.baseDir, it.FilePath)
		if info, statErr := os.Stat(abs); statErr == nil {
			result.BytesFreed += info.Size()
		}
		result.FilesDeleted++
		if opts.DryRun {
			kept = append(kept, it)
			continue
		}
		_ = os.Remove(abs)
	}

	if !opts.DryRun && result.FilesDeleted > 0 {
		idx.Archives = kept
		idx.Statistics.TotalArchives = len(kept)
		if err := s.writeIndex(idx); err != nil {
			return result, err
		}
	}
	return result, nil
}

func writeJSON(path string, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func readJSON(path string, v interface{}) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func relPath(base, full string) string {
	rel, err := filepath.Rel(base, full)
	if err != nil {
		return full
	}
	return rel
}

func summarize(text string, max int) string {
	text = strings.TrimSpace(text)
	if len(text) <= max {
		return text
	}
	return strings.TrimSpace(text[:max]) + "…"
}
