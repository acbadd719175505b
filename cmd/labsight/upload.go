package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"labsight/gateway/pkg/cli"
	"labsight/gateway/pkg/config"
	"labsight/gateway/pkg/upload"
	"labsight/gateway/pkg/upload/history"
)

// maxConcurrentUploads bounds the files in flight at once.
const maxConcurrentUploads = 4

var uploadFlags struct {
	noWait bool
}

var uploadCmd = &cobra.Command{
	Use:   "upload FILE...",
	Short: "Upload files and follow their ingestion",
	Long: `Upload each file to POST /api/upload on the gateway, record it in the local
history and poll GET /api/upload/status until ingestion finishes, fails or
the attempt bound (poller.max_attempts × poller.interval) is reached.

Examples:
  labsight upload runbook.md

  # Upload without waiting for ingestion
  labsight upload --no-wait logs/*.log`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpload,
}

func init() {
	rootCmd.AddCommand(uploadCmd)

	uploadCmd.Flags().BoolVar(&uploadFlags.noWait, "no-wait", false, "do not poll ingestion status")
}

func runUpload(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	store, err := history.Open(cfg.History.Path)
	if err != nil {
		return cli.NewCommandError("upload", err)
	}
	defer store.Close()

	u := newUploadRun(cfg, store, upload.NewClient(cfg.Client.BaseURL, nil), cli.NewPollReporter(cmd.ErrOrStderr()))
	defer u.tracker.Close()

	failed := u.run(ctx, args, !uploadFlags.noWait)
	if ctx.Err() != nil {
		return cli.NewCommandError("upload", ctx.Err())
	}
	if failed > 0 {
		return cli.NewCommandError("upload", fmt.Errorf("%d of %d files failed", failed, len(args)))
	}
	return nil
}

// uploadClient is the part of upload.Client the command needs.
type uploadClient interface {
	upload.StatusFetcher
	Upload(ctx context.Context, fileName string, r io.Reader) (upload.Receipt, error)
}

type uploadRun struct {
	client   uploadClient
	store    *history.Store
	tracker  *upload.Tracker
	progress *cli.PollReporter
}

func newUploadRun(cfg *config.Config, store *history.Store, client uploadClient, progress *cli.PollReporter) *uploadRun {
	return &uploadRun{
		client:   client,
		store:    store,
		tracker:  upload.NewTracker(upload.NewPoller(client, cfg.Poller, nil)),
		progress: progress,
	}
}

// run uploads every file, following each one when wait is set, and
// returns how many did not succeed. One file failing does not stop the
// others.
func (u *uploadRun) run(ctx context.Context, files []string, wait bool) int {
	var failed atomic.Int32

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentUploads)
	for _, file := range files {
		g.Go(func() error {
			if err := u.one(ctx, file, wait); err != nil {
				failed.Add(1)
				u.progress.Finish(filepath.Base(file), "failed", err.Error())
			}
			return nil
		})
	}
	_ = g.Wait()
	return int(failed.Load())
}

func (u *uploadRun) one(ctx context.Context, file string, wait bool) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	receipt, err := u.client.Upload(ctx, filepath.Base(file), f)
	if err != nil {
		return err
	}

	entry, err := u.store.Record(ctx, history.Entry{
		FileName:   receipt.FileName,
		ObjectName: receipt.ObjectName,
		Bucket:     receipt.Bucket,
		SizeBytes:  receipt.SizeBytes,
		Status:     history.StateUploaded,
	})
	if err != nil {
		slog.WarnContext(ctx, "failed to record upload", "object", receipt.ObjectName, "error", err)
	}

	if !wait {
		u.progress.Finish(receipt.ObjectName, receipt.Status, "")
		return nil
	}

	target := receipt.ObjectName
	results, err := u.tracker.Start(ctx, target, func(s upload.PollSession, st upload.Status) {
		u.progress.Update(target, s.Attempt, s.Bound, string(st.Status))
	})
	if err != nil {
		return err
	}
	res := <-results

	if upd, ok := historyUpdate(res); ok && entry.ID != "" {
		if err := u.store.Apply(context.WithoutCancel(ctx), entry.ID, upd); err != nil {
			slog.WarnContext(ctx, "failed to update upload history", "id", entry.ID, "error", err)
		}
	}

	if res.Outcome == upload.OutcomeFailed || (res.Last != nil && res.Last.Status == upload.StateError) {
		return fmt.Errorf("%s: %s", target, resultDetail(res))
	}
	if res.Outcome == upload.OutcomeCanceled {
		return res.Err
	}
	outcome := string(res.Outcome)
	if res.Last != nil && res.Outcome == upload.OutcomeSettled {
		outcome = string(res.Last.Status)
	}
	u.progress.Finish(target, outcome, resultDetail(res))
	return nil
}

// historyUpdate maps a poll result to the history entry update. A cancelled
// session leaves the entry as uploaded.
func historyUpdate(res upload.Result) (history.Update, bool) {
	upd := history.Update{Attempts: res.Session.Attempt}
	switch res.Outcome {
	case upload.OutcomeSettled:
		upd.Status = string(res.Last.Status)
		upd.ChunkCount = res.Last.ChunkCount
		upd.ErrorMessage = res.Last.ErrorMessage
	case upload.OutcomeTimeout:
		upd.Status = history.StateTimeout
		if res.Last != nil {
			upd.ChunkCount = res.Last.ChunkCount
		}
	case upload.OutcomeFailed:
		upd.Status = history.StateFailed
		if res.Err != nil {
			upd.ErrorMessage = res.Err.Error()
		}
	default:
		return history.Update{}, false
	}
	return upd, true
}

func resultDetail(res upload.Result) string {
	switch {
	case res.Err != nil:
		return res.Err.Error()
	case res.Last == nil:
		return fmt.Sprintf("no status after %d attempts", res.Session.Attempt)
	case res.Last.ErrorMessage != "":
		return res.Last.ErrorMessage
	case res.Outcome == upload.OutcomeTimeout:
		return fmt.Sprintf("still %s after %d attempts", res.Last.Status, res.Session.Attempt)
	case res.Last.ChunkCount > 0:
		return fmt.Sprintf("%d chunks", res.Last.ChunkCount)
	}
	return ""
}
