package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	db "github.com/sydneycally-inclane-2812/temp-monitor-site/internal/db"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending action journal migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			conn, err := db.Open(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close(conn) }()

			applied, err := db.Migrate(conn)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				return printJSON(out, map[string]any{"applied": applied})
			}
			if len(applied) == 0 {
				fmt.Fprintln(out, "Database is up to date.")
				return nil
			}
			fmt.Fprintf(out, "Applied %d migration(s): %s\n", len(applied), strings.Join(applied, ", "))
			return nil
		},
	}
}
