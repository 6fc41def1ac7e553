package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	"git.home.luguber.info/inful/assetpipe/internal/eventstore"
	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
)

// HistoryCmd prints the most recent task runs from the history store.
type HistoryCmd struct {
	Limit int  `short:"n" help:"Number of runs to show" default:"20"`
	JSON  bool `help:"Print JSON instead of a table"`
}

func (c *HistoryCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	if cfg.History.Disabled {
		return ferrors.ConfigError("build history is disabled (history.disabled)").Build()
	}
	store, err := eventstore.Open(cfg.History.StateDir)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	summaries, err := eventstore.History(g.context(), store, c.Limit)
	if err != nil {
		return err
	}
	if c.JSON {
		enc := json.NewEncoder(g.out())
		enc.SetIndent("", "  ")
		return enc.Encode(summaries)
	}
	renderHistory(g.out(), summaries)
	return nil
}

func renderHistory(w io.Writer, summaries []eventstore.BuildSummary) {
	if len(summaries) == 0 {
		_, _ = fmt.Fprintln(w, "No task runs recorded.")
		return
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Build", "Task", "Status", "Started", "Duration", "Transforms", "Files", "Failures", "Commit", "Error"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetAutoWrapText(false)
	for _, s := range summaries {
		errText := s.ErrorMessage
		if s.ErrorStage != "" {
			errText = s.ErrorStage + ": " + errText
		}
		table.Append([]string{
			short(s.BuildID, 8),
			s.Task,
			s.Status,
			s.StartedAt.Local().Format(time.DateTime),
			s.Duration.Round(time.Millisecond).String(),
			strconv.Itoa(s.Transforms),
			strconv.Itoa(s.FileCount),
			strconv.Itoa(s.Failures),
			short(s.Commit, 7),
			errText,
		})
	}
	table.Render()
}

func short(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
