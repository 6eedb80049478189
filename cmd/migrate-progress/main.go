package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/conorfennell/decktools/internal/cli"
	"github.com/conorfennell/decktools/internal/config"
	"github.com/conorfennell/decktools/internal/migrate"
)

func main() {
	cli.Execute(newCommand())
}

func newCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate-progress OLD NEW OUTPUT",
		Short: "Copy review progress from an old deck onto a new one",
		Long: `Writes to OUTPUT a copy of NEW in which every card matching a card of OLD, by
note sort field and card role, carries OLD's review progress.

The old deck's card types are mapped with --old-primary (English card, copied
to ordinal 0), --old-character (character card, copied to ordinals 1 and 2)
and --old-auxiliary (pinyin card, copied to ordinal 3). Pinyin progress is not
copied unless --old-auxiliary is given.`,
	}
	flags := cli.Bind(cmd)
	config.RegisterMigrateFlags(cmd.Flags())

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadMigrate(cmd.Flags(), flags.Config, args)
		if err != nil {
			return err
		}

		opts := migrate.Options{
			Old:          cfg.Old,
			New:          cfg.New,
			Output:       cfg.Output,
			Roles:        cfg.Roles(),
			RawSortField: cfg.RawSortField,
		}
		if cfg.Progress {
			opts.Progress = cmd.ErrOrStderr()
		}

		report, err := migrate.Run(cmd.Context(), opts)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Updated %s cards from %s old cards (%s without a role); wrote %s\n",
			humanize.Comma(report.Updated),
			humanize.Comma(int64(report.Records)),
			humanize.Comma(int64(report.Skipped)),
			cfg.Output,
		)
		if report.Unmatched > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "%s updates matched no card in the new deck.\n",
				humanize.Comma(int64(report.Unmatched)))
		}
		return nil
	}
	return cmd
}
