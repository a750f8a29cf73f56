package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/memos-daily-review/internal/engine"
	"github.com/rcliao/memos-daily-review/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "deck",
		Short: "Show the review deck",
		Long:  "Show the deck for today and the saved settings. Pass --range, --count or --batch to request a specific deck.",
		Run:   runDeck,
	}

	cmd.Flags().String("day", "", "Day as YYYY-MM-DD (default: today)")
	cmd.Flags().StringP("range", "r", "", "Time range: all, 1y, 6m, 3m, 1m")
	cmd.Flags().IntP("count", "n", 0, "Number of memos")
	cmd.Flags().IntP("batch", "b", 0, "Batch number")

	shuffle := &cobra.Command{
		Use:   "shuffle",
		Short: "Build a new deck for today",
		Run:   runShuffle,
	}
	shuffle.Flags().String("day", "", "Day as YYYY-MM-DD (default: today)")

	RootCmd.AddCommand(cmd, shuffle)
}

func runDeck(cmd *cobra.Command, args []string) {
	day, _ := cmd.Flags().GetString("day")
	rangeStr, _ := cmd.Flags().GetString("range")
	count, _ := cmd.Flags().GetInt("count")
	batch, _ := cmd.Flags().GetInt("batch")

	a := mustApp()
	defer a.Close()
	ctx := cmd.Context()

	var (
		res engine.Result
		err error
	)
	if !cmd.Flags().Changed("range") && !cmd.Flags().Changed("count") && !cmd.Flags().Changed("batch") {
		res, err = a.engine.Current(ctx, day)
	} else {
		s := a.engine.Settings(ctx)
		req := engine.Request{Day: day, TimeRange: s.TimeRange, Count: s.Count, Batch: batch}
		if rangeStr != "" {
			tr, perr := model.ParseTimeRange(rangeStr)
			if perr != nil {
				exitErr("deck", perr)
			}
			req.TimeRange = tr
		}
		if cmd.Flags().Changed("count") {
			req.Count = count
		}
		res, err = a.engine.GetDeck(ctx, req)
	}
	if err != nil {
		exitErr("deck", userError(err))
	}

	printDeck(res)
}

func runShuffle(cmd *cobra.Command, args []string) {
	day, _ := cmd.Flags().GetString("day")

	a := mustApp()
	defer a.Close()

	res, err := a.engine.Shuffle(cmd.Context(), day)
	if err != nil {
		exitErr("shuffle", userError(err))
	}
	printDeck(res)
}

func printDeck(res engine.Result) {
	if !textOutput() {
		printJSON(res)
		return
	}

	d := res.Deck
	fmt.Printf("%s  range=%s count=%d batch=%d  [%s]\n", d.Day, d.TimeRange, d.Count, d.Batch, res.State)
	if res.State == model.StateEmpty {
		fmt.Println("No memos to review.")
		return
	}
	for i, m := range d.Memos {
		fmt.Printf("%2d. %s  %s  %s\n", i+1, m.ID, m.CreateTime.Format(model.DayLayout), firstLine(m.Content, 60))
	}
}

func firstLine(s string, limit int) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if r := []rune(s); len(r) > limit {
		s = string(r[:limit]) + "…"
	}
	return s
}

// userError replaces a classified source failure with its category message.
func userError(err error) error {
	cat := model.CategoryOf(err)
	if cat == model.CategoryGeneric {
		return err
	}
	return fmt.Errorf("%s (%s)", model.UserMessage(cat), cat)
}
