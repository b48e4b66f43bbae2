package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/estateops/taskdesk/internal/export"
	"github.com/estateops/taskdesk/models"
	"github.com/estateops/taskdesk/store"
)

var exportFlags struct {
	format string
	out    string
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the task collection as ICS or XLSX",
	RunE: func(cmd *cobra.Command, args []string) error {
		taskStore, err := GetStore()
		if err != nil {
			return err
		}
		defer func() { _ = taskStore.Close() }()

		var all []models.Task
		for page := 1; ; page++ {
			result, err := taskStore.ListTasks(store.TaskFilter{Page: page, PageSize: 200})
			if err != nil {
				return err
			}
			all = append(all, result.Items...)
			if len(all) >= result.Total || len(result.Items) == 0 {
				break
			}
		}

		var data []byte
		switch exportFlags.format {
		case "ics":
			data = []byte(export.ICSCalendar(all, time.Now().UTC()))
		case "xlsx":
			data, err = export.XLSXBytes(all)
			if err != nil {
				return err
			}
		default:
			return fmt.Errorf("unsupported export format: %s (expected ics or xlsx)", exportFlags.format)
		}

		if exportFlags.out == "" || exportFlags.out == "-" {
			_, err = os.Stdout.Write(data)
			return err
		}
		if err := os.WriteFile(exportFlags.out, data, 0o644); err != nil {
			return err
		}
		fmt.Printf("Exported %d tasks to %s\n", len(all), exportFlags.out)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportFlags.format, "format", "f", "ics", "export format: ics or xlsx")
	exportCmd.Flags().StringVarP(&exportFlags.out, "out", "o", "", "output file ('-' for stdout)")
	rootCmd.AddCommand(exportCmd)
}
