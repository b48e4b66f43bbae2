package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/estateops/taskdesk/store"
)

var archiveFlags struct {
	list           bool
	purgeOlderThan time.Duration
	dryRun         bool
}

var archiveCmd = &cobra.Command{
	Use:   "archive [task-id]",
	Short: "Archive a done task, list the archive, or purge old entries",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		archiveStore, err := GetArchiveStore()
		if err != nil {
			return err
		}
		defer func() { _ = archiveStore.Close() }()

		if archiveFlags.list {
			items, err := archiveStore.List()
			if err != nil {
				return err
			}
			for _, it := range items {
				fmt.Printf("%s  %s  %s\n", it.ID[:8], it.Date, it.Title)
			}
			fmt.Printf("\n%d archived tasks\n", len(items))
			return nil
		}

		if archiveFlags.purgeOlderThan > 0 {
			result, err := archiveStore.Purge(store.PurgeOptions{
				DryRun:    archiveFlags.dryRun,
				OlderThan: &archiveFlags.purgeOlderThan,
			})
			if err != nil {
				return err
			}
			verb := "deleted"
			if result.DryRun {
				verb = "would delete"
			}
			fmt.Printf("%s %d of %d entries (%d bytes)\n", verb, result.FilesDeleted, result.FilesConsidered, result.BytesFreed)
			return nil
		}

		if len(args) == 0 {
			return fmt.Errorf("a task id is required unless --list or --purge-older-than is given")
		}

		taskStore, err := GetStore()
		if err != nil {
			return err
		}
		defer func() { _ = taskStore.Close() }()

		task, err := taskStore.GetTask(args[0])
		if err != nil {
			return err
		}
		entry, err := archiveStore.CreateFromTask(task)
		if err != nil {
			return err
		}
		if err := taskStore.DeleteTask(task.ID); err != nil {
			return err
		}
		fmt.Printf("Archived task %s as %s\n", task.ID, entry.ID)
		return nil
	},
}

func init() {
	archiveCmd.Flags().BoolVar(&archiveFlags.list, "list", false, "list archived tasks")
	archiveCmd.Flags().DurationVar(&archiveFlags.purgeOlderThan, "purge-older-than", 0, "purge entries older than this duration (e.g. 2160h for 90 days)")
	archiveCmd.Flags().BoolVar(&archiveFlags.dryRun, "dry-run", false, "report what a purge would delete without deleting")
	rootCmd.AddCommand(archiveCmd)
}
