package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/memos-daily-review/internal/deck"
	"github.com/rcliao/memos-daily-review/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "pool",
		Short: "Inspect or refresh the candidate pool",
	}

	refresh := &cobra.Command{
		Use:   "refresh",
		Short: "Re-fetch the pool from the memo source",
		Run:   runPoolRefresh,
	}
	refresh.Flags().StringP("range", "r", "", "Time range (default: saved setting)")

	show := &cobra.Command{
		Use:   "show",
		Short: "List memos in the cached pool",
		Run:   runPoolShow,
	}
	show.Flags().StringP("range", "r", "", "Time range (default: saved setting)")
	show.Flags().StringP("query", "q", "", "Only memos whose content contains this text")
	show.Flags().StringP("tag", "t", "", "Only memos with this tag")
	show.Flags().Int("sample", 0, "Show a reproducible random sample of this size")
	show.Flags().Bool("ids-only", false, "Only output memo ids")

	cmd.AddCommand(refresh, show)
	RootCmd.AddCommand(cmd)
}

func poolRange(cmd *cobra.Command, a *app) model.TimeRange {
	rangeStr, _ := cmd.Flags().GetString("range")
	if rangeStr == "" {
		return a.engine.Settings(cmd.Context()).TimeRange
	}
	tr, err := model.ParseTimeRange(rangeStr)
	if err != nil {
		exitErr("pool", err)
	}
	return tr
}

func runPoolRefresh(cmd *cobra.Command, args []string) {
	a := mustApp()
	defer a.Close()

	tr := poolRange(cmd, a)
	memos, err := a.engine.RefreshPool(cmd.Context(), tr)
	if err != nil {
		exitErr("pool refresh", userError(err))
	}
	fmt.Printf(`{"ok":true,"time_range":%q,"memos":%d}`+"\n", tr, len(memos))
}

func runPoolShow(cmd *cobra.Command, args []string) {
	query, _ := cmd.Flags().GetString("query")
	tag, _ := cmd.Flags().GetString("tag")
	sample, _ := cmd.Flags().GetInt("sample")
	idsOnly, _ := cmd.Flags().GetBool("ids-only")

	a := mustApp()
	defer a.Close()

	tr := poolRange(cmd, a)
	pool, ok := a.engine.Pool(cmd.Context(), tr)
	if !ok {
		exitErr("pool show", fmt.Errorf("no fresh pool cached for range %s (run `pool refresh`)", tr))
	}

	memos := filterPool(pool.Memos, query, tag)
	if sample > 0 {
		memos = deck.Sample(memos, sample, a.engine.Today())
	}

	if idsOnly {
		for _, m := range memos {
			fmt.Println(m.ID)
		}
		return
	}
	if textOutput() {
		fmt.Printf("%d memos (range=%s, fetched %s)\n", len(memos), pool.TimeRange, pool.FetchedAt.Format("2006-01-02 15:04"))
		for _, m := range memos {
			fmt.Printf("%s  %s  %s\n", m.ID, m.CreateTime.Format(model.DayLayout), firstLine(m.Content, 60))
		}
		return
	}
	printJSON(memos)
}

// filterPool keeps memos whose content contains query (case-insensitive)
// and that carry tag.
func filterPool(memos []model.Memo, query, tag string) []model.Memo {
	query = strings.ToLower(query)
	var out []model.Memo
	for _, m := range memos {
		if query != "" && !strings.Contains(strings.ToLower(m.Content), query) {
			continue
		}
		if tag != "" && !hasTag(m, tag) {
			continue
		}
		out = append(out, m)
	}
	return out
}

func hasTag(m model.Memo, tag string) bool {
	for _, t := range m.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}
