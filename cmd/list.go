package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/estateops/taskdesk/store"
)

var listFlags struct {
	query      string
	statuses   []string
	priorities []string
	assignees  []string
	categories []string
	labels     []string
	page       int
	pageSize   int
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks, optionally filtered",
	RunE: func(cmd *cobra.Command, args []string) error {
		taskStore, err := GetStore()
		if err != nil {
			return err
		}
		defer func() { _ = taskStore.Close() }()

		page, err := taskStore.ListTasks(store.TaskFilter{
			Query:      listFlags.query,
			Statuses:   listFlags.statuses,
			Priorities: listFlags.priorities,
			Assignees:  listFlags.assignees,
			Categories: listFlags.categories,
			Labels:     listFlags.labels,
			Page:       listFlags.page,
			PageSize:   listFlags.pageSize,
		})
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tPRIORITY\tDUE")
		for _, task := range page.Items {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", task.ID, task.Title, task.Status, task.Priority, task.DueDate)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Printf("\nPage %d (%d of %d tasks)\n", page.Page, len(page.Items), page.Total)
		return nil
	},
}

func init() {
	listCmd.Flags().StringVarP(&listFlags.query, "query", "q", "", "free-text search across title, description and labels")
	listCmd.Flags().StringSliceVar(&listFlags.statuses, "status", nil, "filter by status (repeatable)")
	listCmd.Flags().StringSliceVar(&listFlags.priorities, "priority", nil, "filter by priority (repeatable)")
	listCmd.Flags().StringSliceVar(&listFlags.assignees, "assignee", nil, "filter by assignee (repeatable)")
	listCmd.Flags().StringSliceVar(&listFlags.categories, "category", nil, "filter by category (repeatable)")
	listCmd.Flags().StringSliceVar(&listFlags.labels, "label", nil, "filter by label (repeatable)")
	listCmd.Flags().IntVar(&listFlags.page, "page", 1, "page number (1-indexed)")
	listCmd.Flags().IntVar(&listFlags.pageSize, "page-size", 50, "page size (max 200)")
	rootCmd.AddCommand(listCmd)
}
