package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/conorfennell/decktools/internal/cli"
	"github.com/conorfennell/decktools/internal/config"
	"github.com/conorfennell/decktools/internal/subtract"
)

func main() {
	cli.Execute(newCommand())
}

func newCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deck-subtract MINUEND SUBTRAHEND OUTPUT",
		Short: "Write the notes of one deck that do not appear in another",
		Long: `Writes to OUTPUT a deck holding every note of MINUEND whose sort field does not
appear in SUBTRAHEND, with its cards. Media files are dropped. The deck title
and configuration are copied from MINUEND.`,
	}
	flags := cli.Bind(cmd)
	config.RegisterSubtractFlags(cmd.Flags())

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadSubtract(cmd.Flags(), flags.Config, args)
		if err != nil {
			return err
		}

		report, err := subtract.Run(cmd.Context(), subtract.Options{
			Minuend:       cfg.Minuend,
			Subtrahend:    cfg.Subtrahend,
			Output:        cfg.Output,
			RawFieldMatch: cfg.RawFieldMatch,
		})
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s notes and %s cards; wrote %s\n",
			humanize.Comma(report.NotesDeleted+report.RawNotesDeleted),
			humanize.Comma(report.CardsDeleted),
			cfg.Output,
		)
		if report.Unmatched > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "%s of %s sort fields matched no note.\n",
				humanize.Comma(int64(report.Unmatched)),
				humanize.Comma(int64(report.SortFields)),
			)
		}
		return nil
	}
	return cmd
}
