// Package export holds the thin read-only adapters that render task records
// for external consumers: ICS calendars, printable HTML, and XLSX sheets.
package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/estateops/taskdesk/models"
)

const icsTimeLayout = "20060102T150405Z"

// ICSCalendar renders one VEVENT per task, keyed by task id. A task without
// a due date falls back to the render time so every event stays valid.
func ICSCalendar(tasks []models.Task, now time.Time) string {
	var b strings.Builder
	b.WriteString("BEGIN:VCALENDAR\r\n")
	b.WriteString("VERSION:2.0\r\n")
	b.WriteString("PRODID:-//taskdesk//tasks//EN\r\n")
	for _, task := range tasks {
		writeEvent(&b, task, now)
	}
	b.WriteString("END:VCALENDAR\r\n")
	return b.String()
}

func writeEvent(b *strings.Builder, task models.Task, now time.Time) {
	start := eventStart(task, now)
	b.WriteString("BEGIN:VEVENT\r\n")
	fmt.Fprintf(b, "UID:%s\r\n", escapeICS(task.ID))
	fmt.Fprintf(b, "DTSTAMP:%s\r\n", now.UTC().Format(icsTimeLayout))
	fmt.Fprintf(b, "DTSTART:%s\r\n", start.UTC().Format(icsTimeLayout))
	fmt.Fprintf(b, "SUMMARY:%s\r\n", escapeICS(task.Title))
	if task.Description != "" {
		fmt.Fprintf(b, "DESCRIPTION:%s\r\n", escapeICS(task.Description))
	}
	if len(task.Labels) > 0 {
		fmt.Fprintf(b, "CATEGORIES:%s\r\n", escapeICS(strings.Join(task.Labels, ",")))
	}
	fmt.Fprintf(b, "STATUS:%s\r\n", icsStatus(task.Status))
	b.WriteString("END:VEVENT\r\n")
}

func eventStart(task models.Task, now time.Time) time.Time {
	if task.DueDate != "" {
		for _, layout := range []string{time.RFC3339, "2006-01-02"} {
			if t, err := time.Parse(layout, task.DueDate); err == nil {
				return t
			}
		}
	}
	return now
}

func icsStatus(status models.TaskStatus) string {
	if status == models.StatusDone {
		return "COMPLETED"
	}
	return "CONFIRMED"
}

// escapeICS escapes the characters RFC 5545 treats specially in text values.
func escapeICS(s string) string {
	r := strings.NewReplacer(
		"\\", "\\\\",
		";", "\\;",
		",", "\\,",
		"\r\n", "\\n",
		"\n", "\\n",
	)
	return r.Replace(s)
}
