package store

import (
	"encoding/json"
	"fmt"

	"github.com/estateops/taskdesk/models"
	"github.com/estateops/taskdesk/types"
)

// Patchable task fields, keyed by their JSON names. id, createdAt and
// updatedAt are deliberately absent: the first two are immutable and the
// store owns the third. The thread, participants and attachments collections
// have their own operations and cannot be replaced through a patch.
var patchableFields = map[string]struct{}{
	"title":         {},
	"description":   {},
	"status":        {},
	"priority":      {},
	"category":      {},
	"dueDate":       {},
	"assignees":     {},
	"labels":        {},
	"owner":         {},
	"cc":            {},
	"link":          {},
	"calendarEvent": {},
}

// applyPatch overlays the updates map onto the task. Only keys present in
// the map are touched; a key set to nil clears the corresponding optional
// field. Array-valued fields are replaced wholesale, never merged.
func applyPatch(task *models.Task, updates map[string]interface{}) error {
	for key, value := range updates {
		if _, ok := patchableFields[key]; !ok {
			// Unknown and immutable keys are ignored rather than rejected,
			// matching partial-update semantics at the HTTP boundary.
			continue
		}

		var err error
		switch key {
		case "title":
			var v string
			if v, err = coerceString(key, value); err == nil && v != "" {
				task.Title = v
			}
		case "description":
			task.Description, err = coerceString(key, value)
		case "status":
			var v string
			if v, err = coerceString(key, value); err == nil {
				task.Status = models.TaskStatus(v)
			}
		case "priority":
			var v string
			if v, err = coerceString(key, value); err == nil {
				task.Priority = models.TaskPriority(v)
			}
		case "category":
			task.Category, err = coerceString(key, value)
		case "dueDate":
			task.DueDate, err = coerceString(key, value)
		case "assignees":
			var v []string
			if v, err = coerceStringSlice(key, value); err == nil {
				task.Assignees = v
			}
		case "labels":
			var v []string
			if v, err = coerceStringSlice(key, value); err == nil {
				task.Labels = v
			}
		case "owner":
			var v *models.Person
			if v, err = coerceStruct[models.Person](key, value); err == nil {
				task.Owner = v
			}
		case "cc":
			var v []models.Person
			if v, err = coerceStructSlice[models.Person](key, value); err == nil {
				task.CC = v
			}
		case "link":
			var v *models.LinkedEntity
			if v, err = coerceStruct[models.LinkedEntity](key, value); err == nil {
				task.Link = v
			}
		case "calendarEvent":
			var v *models.CalendarEvent
			if v, err = coerceStruct[models.CalendarEvent](key, value); err == nil {
				task.CalendarEvent = v
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func coerceString(key string, value interface{}) (string, error) {
	if value == nil {
		return "", nil
	}
	v, ok := value.(string)
	if !ok {
		return "", types.NewValidationError(fmt.Sprintf("field '%s' must be a string", key), nil)
	}
	return v, nil
}

// coerceStringSlice accepts both []string and the []interface{} that
// encoding/json produces for arrays.
func coerceStringSlice(key string, value interface{}) ([]string, error) {
	switch v := value.(type) {
	case nil:
		return []string{}, nil
	case []string:
		return v, nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, types.NewValidationError(fmt.Sprintf("field '%s' must be an array of strings", key), nil)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, types.NewValidationError(fmt.Sprintf("field '%s' must be an array of strings", key), nil)
	}
}

// coerceStruct round-trips a decoded JSON object (or a typed value) into T.
func coerceStruct[T any](key string, value interface{}) (*T, error) {
	if value == nil {
		return nil, nil
	}
	if v, ok := value.(T); ok {
		return &v, nil
	}
	if v, ok := value.(*T); ok {
		return v, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, types.NewValidationError(fmt.Sprintf("field '%s' has an invalid shape", key), nil)
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, types.NewValidationError(fmt.Sprintf("field '%s' has an invalid shape", key), nil)
	}
	return &out, nil
}

func coerceStructSlice[T any](key string, value interface{}) ([]T, error) {
	if value == nil {
		return nil, nil
	}
	if v, ok := value.([]T); ok {
		return v, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, types.NewValidationError(fmt.Sprintf("field '%s' has an invalid shape", key), nil)
	}
	var out []T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, types.NewValidationError(fmt.Sprintf("field '%s' has an invalid shape", key), nil)
	}
	return out, nil
}
