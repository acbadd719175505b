/*
Package cli provides command-line interface utilities for the labsight
command.

The cli package includes output formatters, upload progress reporting,
signal handling and the error types commands return.

Output Formatting:

Tabular results implement Table and render as a bordered text table, JSON
or CSV:

	format, err := cli.ParseOutputFormat(outputFlag)
	if err != nil {
		return err
	}
	if err := cli.NewFormatter(format).FormatTo(os.Stdout, uploads); err != nil {
		return err
	}

Progress Reporting:

Upload polling reports each attempt through a PollReporter, which is safe
for concurrent sessions:

	progress := cli.NewPollReporter(os.Stderr)
	progress.Update(target, attempt, bound, "processing")
	progress.Finish(target, "settled", "12 chunks")

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()

Exit codes come from ExitCode: 2 for configuration errors, 130 after an
interrupt, 1 otherwise.
*/
package cli
