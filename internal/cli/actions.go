package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	db "github.com/sydneycally-inclane-2812/temp-monitor-site/internal/db"
	controlrepo "github.com/sydneycally-inclane-2812/temp-monitor-site/internal/modules/control/repository"
)

func newActionsCmd(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "actions",
		Short: "List recent power trigger attempts from the journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			conn, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close(conn) }()

			actions, err := controlrepo.NewRepository(conn).ListRecent(cmd.Context(), limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				return printJSON(out, actions)
			}
			if len(actions) == 0 {
				fmt.Fprintln(out, "No control actions yet.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "TIME\tSOURCE\tMODE\tOUTCOME\tSTATUS\tMESSAGE")
			fmt.Fprintln(w, "----\t------\t----\t-------\t------\t-------")
			for _, a := range actions {
				status := "-"
				if a.HTTPStatus != 0 {
					status = fmt.Sprint(a.HTTPStatus)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					a.Time.Local().Format("2006-01-02 15:04:05"), a.Source, a.Mode, a.Outcome, status, a.Message)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of actions to show")
	return cmd
}
