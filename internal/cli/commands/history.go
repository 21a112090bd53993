package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/leapstack-labs/ajanta/internal/cli/output"
	"github.com/leapstack-labs/ajanta/internal/state"
	"github.com/spf13/cobra"
)

// HistoryOptions holds options for the history command.
type HistoryOptions struct {
	Limit int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	opts := &HistoryOptions{}
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent builds",
		Long: `List recent pipeline runs recorded in the build history database,
newest first. Failed runs show the stage they stopped in.`,
		Example: `  ajanta history
  ajanta history --limit 5 -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistory(cmd, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "Number of builds to show (0 for all)")

	return cmd
}

func runHistory(cmd *cobra.Command, opts *HistoryOptions) error {
	cc := NewCommandContext(cmd)
	r := cc.Renderer

	if _, err := os.Stat(cc.Cfg.History.Path); os.IsNotExist(err) {
		if r.EffectiveMode() == output.ModeJSON {
			return r.JSON([]*state.Build{})
		}
		r.Println(r.Styles().Muted.Render("no builds recorded yet"))
		return nil
	}

	store, err := openHistory(cc.Cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	builds, err := store.ListBuilds(cmd.Context(), opts.Limit)
	if err != nil {
		return err
	}

	if r.EffectiveMode() == output.ModeJSON {
		if builds == nil {
			builds = []*state.Build{}
		}
		return r.JSON(builds)
	}

	if len(builds) == 0 {
		r.Println(r.Styles().Muted.Render("no builds recorded yet"))
		return nil
	}

	s := r.Styles()
	t := r.Table("", "Started", "Source", "Frontend", "Stage", "Duration", "Output")
	for _, b := range builds {
		status := s.StatusSuccess.String()
		detail := b.Output
		if b.Status == state.BuildStatusFailed {
			status = s.StatusFailed.String()
			detail = b.Error
		}
		t.AppendRow(table.Row{
			status,
			b.StartedAt.Local().Format(time.DateTime),
			b.Source,
			b.Frontend,
			b.Stage,
			b.Duration().Round(time.Millisecond),
			truncate(detail, 60),
		})
	}
	t.Render()
	r.Println(s.Muted.Render(fmt.Sprintf("%d build(s)", len(builds))))
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
