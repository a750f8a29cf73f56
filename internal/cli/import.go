package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/memos-daily-review/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import review state from JSON",
		Long:  "Import review state from JSON on stdin. Expects the format produced by export.",
		Run:   runImport,
	}

	RootCmd.AddCommand(cmd)
}

func runImport(cmd *cobra.Command, args []string) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		exitErr("read stdin", err)
	}

	var blobs []store.Blob
	if err := json.Unmarshal(data, &blobs); err != nil {
		exitErr("parse json", err)
	}

	s, _, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	imported, err := store.Import(cmd.Context(), s, blobs)
	if err != nil {
		exitErr("import", err)
	}

	fmt.Printf(`{"ok":true,"imported":%d}`+"\n", imported)
}
