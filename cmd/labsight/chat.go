package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"labsight/gateway/pkg/cli"
	"labsight/gateway/pkg/stream"
)

var chatFlags struct {
	noStream    bool
	showSources bool
}

var chatCmd = &cobra.Command{
	Use:   "chat QUERY...",
	Short: "Ask the assistant a question through a running gateway",
	Long: `Send a query to POST /api/chat on the gateway at client.base_url and print
the answer as it streams in.

Examples:
  labsight chat "which pipelines failed last night?"

  # Wait for the whole answer instead of streaming
  labsight chat --no-stream "summarize the last deploy"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().BoolVar(&chatFlags.noStream, "no-stream", false, "request the whole answer at once")
	chatCmd.Flags().BoolVar(&chatFlags.showSources, "sources", true, "print cited sources after the answer")
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	session := stream.NewSession(
		stream.NewClient(cfg.Client.BaseURL, nil),
		stream.WithStreaming(!chatFlags.noStream),
		stream.WithMaxQueryLength(cfg.Client.MaxQueryLength),
	)

	snapshots, err := session.Submit(ctx, strings.Join(args, " "))
	if err != nil {
		var vErr *stream.ValidationError
		if errors.As(err, &vErr) {
			return cli.NewCommandError("chat", errors.New(vErr.Reason))
		}
		return cli.NewCommandError("chat", err)
	}

	final := renderTranscript(cmd.OutOrStdout(), cmd.ErrOrStderr(), snapshots)

	answer := final.Last()
	if chatFlags.showSources && len(answer.Sources) > 0 {
		printSources(cmd.OutOrStdout(), answer.Sources)
	}
	if answer.Model != "" {
		fmt.Fprintln(cmd.ErrOrStderr(), cli.StyleMuted.Render(
			fmt.Sprintf("%s · %s · %.0f ms", answer.Model, answer.QueryMode, answer.LatencyMs)))
	}

	if final.Err != nil {
		return cli.NewCommandError("chat", final.Err)
	}
	if ctx.Err() != nil {
		return cli.NewCommandError("chat", ctx.Err())
	}
	return nil
}

// renderTranscript prints the answer as it grows and tool activity as it
// changes, returning the final snapshot.
func renderTranscript(out, status io.Writer, snapshots <-chan stream.Transcript) stream.Transcript {
	var (
		final   stream.Transcript
		printed int
		tool    string
	)
	for snap := range snapshots {
		final = snap

		if snap.ActiveTool != tool {
			tool = snap.ActiveTool
			if tool != "" {
				fmt.Fprintln(status, cli.StyleMuted.Render("→ running "+tool))
			}
		}

		// Assistant content only grows.
		content := snap.Last().Content
		if len(content) > printed {
			fmt.Fprint(out, content[printed:])
			printed = len(content)
		}
	}
	if printed > 0 {
		fmt.Fprintln(out)
	}
	return final
}

func printSources(w io.Writer, sources []stream.Source) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, cli.StyleBold.Render("Sources"))
	for _, src := range sources {
		excerpt := strings.Join(strings.Fields(src.Content), " ")
		if r := []rune(excerpt); len(r) > 100 {
			excerpt = string(r[:100]) + "…"
		}
		fmt.Fprintf(w, "  [%d] %s %s\n", src.Index, excerpt,
			cli.StyleMuted.Render(fmt.Sprintf("(%.2f)", src.SimilarityScore)))
	}
}
