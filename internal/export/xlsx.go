package export

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/estateops/taskdesk/models"
)

const tasksSheet = "Tasks"

var xlsxHeader = []string{"ID", "Title", "Status", "Priority", "Category", "Assignees", "Labels", "Due", "Created", "Updated"}

// XLSXBytes renders the task collection as a single-sheet workbook.
func XLSXBytes(tasks []models.Task) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	index, err := f.NewSheet(tasksSheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("drop default sheet: %w", err)
	}

	for col, name := range xlsxHeader {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(tasksSheet, cell, name); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
	}

	for row, task := range tasks {
		values := []interface{}{
			task.ID,
			task.Title,
			string(task.Status),
			string(task.Priority),
			task.Category,
			strings.Join(task.Assignees, ", "),
			strings.Join(task.Labels, ", "),
			task.DueDate,
			task.CreatedAt.Format("2006-01-02 15:04"),
			task.UpdatedAt.Format("2006-01-02 15:04"),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := f.SetCellValue(tasksSheet, cell, v); err != nil {
				return nil, fmt.Errorf("write row %d: %w", row+2, err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}
