package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/memos-daily-review/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export persisted review state as JSON",
		Long:  "Export every persisted blob (settings, pool, decks, history) as JSON for backup.",
		Run:   runExport,
	}

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	s, _, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	blobs, err := store.ExportAll(cmd.Context(), s)
	if err != nil {
		exitErr("export", err)
	}
	printJSON(blobs)
}
