package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func init() {
	viewed := &cobra.Command{
		Use:   "viewed <memo-id>",
		Short: "Record that a memo was reviewed",
		Args:  cobra.ExactArgs(1),
		Run:   runViewed,
	}
	viewed.Flags().String("day", "", "Day as YYYY-MM-DD (default: today)")

	history := &cobra.Command{
		Use:   "history",
		Short: "Show review history, most recent first",
		Run:   runHistory,
	}
	history.Flags().IntP("limit", "l", 20, "Max entries (0 for all)")

	RootCmd.AddCommand(viewed, history)
}

func runViewed(cmd *cobra.Command, args []string) {
	day, _ := cmd.Flags().GetString("day")

	a := mustApp()
	defer a.Close()

	entry, err := a.engine.MarkViewed(cmd.Context(), args[0], day)
	if err != nil {
		exitErr("viewed", err)
	}

	if textOutput() {
		fmt.Printf("%s shown %d times, last on %s\n", args[0], entry.ShownCount, entry.LastShownDay)
		return
	}
	printJSON(map[string]any{
		"id":             args[0],
		"last_shown_day": entry.LastShownDay,
		"shown_count":    entry.ShownCount,
	})
}

type historyRow struct {
	ID           string `json:"id"`
	LastShownDay string `json:"last_shown_day,omitempty"`
	ShownCount   int    `json:"shown_count"`
}

func runHistory(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")

	a := mustApp()
	defer a.Close()

	h := a.engine.History(cmd.Context())
	rows := make([]historyRow, 0, len(h))
	for id, e := range h {
		rows = append(rows, historyRow{ID: id, LastShownDay: e.LastShownDay, ShownCount: e.ShownCount})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].LastShownDay != rows[j].LastShownDay {
			return rows[i].LastShownDay > rows[j].LastShownDay
		}
		return rows[i].ID < rows[j].ID
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	if textOutput() {
		for _, r := range rows {
			fmt.Printf("%-12s %-24s x%d\n", r.LastShownDay, r.ID, r.ShownCount)
		}
		return
	}
	printJSON(rows)
}
