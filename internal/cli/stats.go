package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show storage and review statistics",
		Run:   runStats,
	}

	RootCmd.AddCommand(cmd)
}

func runStats(cmd *cobra.Command, args []string) {
	a := mustApp()
	defer a.Close()
	ctx := cmd.Context()

	stats, err := a.store.Stats(ctx)
	if err != nil {
		exitErr("stats", err)
	}

	if textOutput() {
		fmt.Printf("db: %s (%d bytes on disk)\n", stats.DBPath, stats.DBSizeBytes)
		fmt.Printf("used: %d of %d bytes\n", stats.UsedBytes, stats.QuotaBytes)
		for _, k := range stats.Keys {
			fmt.Printf("  %-32s %8d  %s\n", k.Key, k.Bytes, k.UpdatedAt)
		}
		return
	}

	printJSON(map[string]any{
		"storage":       stats,
		"settings":      a.engine.Settings(ctx),
		"history_size":  len(a.engine.History(ctx)),
		"last_deck_key": a.cache.LastKey(ctx),
	})
}
