package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/memos-daily-review/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change deck settings",
		Run:   runSettings,
	}

	cmd.Flags().StringP("range", "r", "", "Time range: all, 1y, 6m, 3m, 1m")
	cmd.Flags().IntP("count", "n", 0, fmt.Sprintf("Number of memos (%d-%d)", model.MinCount, model.MaxCount))

	RootCmd.AddCommand(cmd)
}

func runSettings(cmd *cobra.Command, args []string) {
	rangeStr, _ := cmd.Flags().GetString("range")
	count, _ := cmd.Flags().GetInt("count")

	a := mustApp()
	defer a.Close()
	ctx := cmd.Context()

	s := a.engine.Settings(ctx)
	if cmd.Flags().Changed("range") || cmd.Flags().Changed("count") {
		if cmd.Flags().Changed("range") {
			tr, err := model.ParseTimeRange(rangeStr)
			if err != nil {
				exitErr("settings", err)
			}
			s.TimeRange = tr
		}
		if cmd.Flags().Changed("count") {
			s.Count = count
		}
		if err := a.engine.ApplySettings(ctx, s); err != nil {
			exitErr("settings", err)
		}
	}

	if textOutput() {
		fmt.Printf("range=%s count=%d\n", s.TimeRange, s.Count)
		return
	}
	printJSON(s)
}
