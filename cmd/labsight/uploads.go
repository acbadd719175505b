package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"labsight/gateway/pkg/cli"
	"labsight/gateway/pkg/upload"
	"labsight/gateway/pkg/upload/history"
)

var uploadsFlags struct {
	limit    int
	status   string
	output   string
	schedule bool
}

var uploadsCmd = &cobra.Command{
	Use:   "uploads",
	Short: "List uploads recorded in the local history",
	Long: `List uploads made with "labsight upload", newest first.

Examples:
  labsight uploads
  labsight uploads --status error --output json
  labsight uploads recent
  labsight uploads prune`,
	Args: cobra.NoArgs,
	RunE: runUploadsList,
}

var uploadsRecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Show the backend's most recent ingestion statuses",
	Args:  cobra.NoArgs,
	RunE:  runUploadsRecent,
}

var uploadsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove settled uploads older than history.retention_days",
	Long: `Remove settled uploads older than history.retention_days from the local
history. With --schedule the command keeps running and prunes on
history.prune_schedule until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runUploadsPrune,
}

func init() {
	rootCmd.AddCommand(uploadsCmd)
	uploadsCmd.AddCommand(uploadsRecentCmd)
	uploadsCmd.AddCommand(uploadsPruneCmd)

	uploadsCmd.PersistentFlags().StringVarP(&uploadsFlags.output, "output", "o", "text", "output format (text, json, csv)")
	uploadsCmd.Flags().IntVarP(&uploadsFlags.limit, "limit", "n", 20, "maximum number of uploads to show")
	uploadsCmd.Flags().StringVar(&uploadsFlags.status, "status", "", "only show uploads in this state")
	uploadsPruneCmd.Flags().BoolVar(&uploadsFlags.schedule, "schedule", false, "keep running and prune on history.prune_schedule")
}

func runUploadsList(cmd *cobra.Command, _ []string) error {
	format, err := cli.ParseOutputFormat(uploadsFlags.output)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := history.Open(cfg.History.Path)
	if err != nil {
		return cli.NewCommandError("uploads", err)
	}
	defer store.Close()

	entries, err := store.List(cmd.Context(), history.ListOptions{
		Limit:  uploadsFlags.limit,
		Status: uploadsFlags.status,
	})
	if err != nil {
		return cli.NewCommandError("uploads", err)
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), historyTable(entries))
}

func runUploadsRecent(cmd *cobra.Command, _ []string) error {
	format, err := cli.ParseOutputFormat(uploadsFlags.output)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Backend.Timeout)
	defer cancel()

	statuses, err := upload.NewClient(cfg.Client.BaseURL, nil).Recent(ctx)
	if err != nil {
		return cli.NewCommandError("uploads recent", err)
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), statusTable(statuses))
}

func runUploadsPrune(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := history.Open(cfg.History.Path)
	if err != nil {
		return cli.NewCommandError("uploads prune", err)
	}
	defer store.Close()

	pruner := history.NewPruner(store, cfg.History)
	if !uploadsFlags.schedule {
		deleted, err := pruner.Prune(cmd.Context())
		if err != nil {
			return cli.NewCommandError("uploads prune", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s removed %d uploads\n", cli.StyleSuccess.Render(cli.IconSuccess), deleted)
		return nil
	}

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	scheduler := history.NewScheduler(pruner)
	if err := scheduler.Start(ctx); err != nil {
		return cli.NewConfigError("history.prune_schedule", err.Error())
	}
	if !scheduler.IsRunning() {
		return cli.NewConfigError("history.prune_schedule", "no schedule configured")
	}
	if next := scheduler.NextRun(); next != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "next prune at %s\n", next.Format(time.RFC3339))
	}

	<-ctx.Done()
	scheduler.Stop()
	return nil
}

// historyTable renders history entries.
type historyTable []history.Entry

func (t historyTable) Header() []string {
	return []string{"UPLOADED", "FILE", "OBJECT", "SIZE", "STATUS", "CHUNKS", "ATTEMPTS", "ERROR"}
}

func (t historyTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, e := range t {
		rows = append(rows, []string{
			e.UploadedAt.Local().Format(time.DateTime),
			e.FileName,
			e.ObjectName,
			formatBytes(e.SizeBytes),
			e.Status,
			strconv.Itoa(e.ChunkCount),
			strconv.Itoa(e.Attempts),
			e.ErrorMessage,
		})
	}
	return rows
}

func (t historyTable) Records() any {
	if t == nil {
		return []history.Entry{}
	}
	return []history.Entry(t)
}

// statusTable renders backend ingestion statuses.
type statusTable []upload.Status

func (t statusTable) Header() []string {
	return []string{"FILE", "TYPE", "STATUS", "CHUNKS", "TIME", "ERROR"}
}

func (t statusTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, s := range t {
		elapsed := ""
		if s.TotalTimeMs > 0 {
			elapsed = (time.Duration(s.TotalTimeMs * float64(time.Millisecond))).Round(time.Millisecond).String()
		}
		rows = append(rows, []string{
			s.FileName,
			s.FileType,
			string(s.Status),
			strconv.Itoa(s.ChunkCount),
			elapsed,
			s.ErrorMessage,
		})
	}
	return rows
}

func (t statusTable) Records() any {
	if t == nil {
		return []upload.Status{}
	}
	return []upload.Status(t)
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
