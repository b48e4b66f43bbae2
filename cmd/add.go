package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/estateops/taskdesk/models"
)

var addFlags struct {
	description string
	priority    string
	status      string
	category    string
	dueDate     string
	assignees   []string
	labels      []string
}

var addCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a new task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		taskStore, err := GetStore()
		if err != nil {
			return err
		}
		defer func() { _ = taskStore.Close() }()

		task := models.Task{
			Title:       args[0],
			Description: addFlags.description,
			Priority:    models.TaskPriority(addFlags.priority),
			Status:      models.TaskStatus(addFlags.status),
			Category:    addFlags.category,
			DueDate:     addFlags.dueDate,
			Assignees:   addFlags.assignees,
			Labels:      addFlags.labels,
		}
		created, err := taskStore.CreateTask(task)
		if err != nil {
			return err
		}
		fmt.Printf("Created task %s: %s\n", created.ID, created.Title)
		return nil
	},
}

func init() {
	addCmd.Flags().StringVarP(&addFlags.description, "description", "d", "", "task description")
	addCmd.Flags().StringVar(&addFlags.priority, "priority", "", "priority (low, medium, high, urgent)")
	addCmd.Flags().StringVar(&addFlags.status, "status", "", "status (open, in_progress, blocked, done)")
	addCmd.Flags().StringVar(&addFlags.category, "category", "", "category")
	addCmd.Flags().StringVar(&addFlags.dueDate, "due", "", "due date (YYYY-MM-DD)")
	addCmd.Flags().StringSliceVar(&addFlags.assignees, "assignee", nil, "assignee (repeatable)")
	addCmd.Flags().StringSliceVar(&addFlags.labels, "label", nil, "label (repeatable)")
	rootCmd.AddCommand(addCmd)
}
