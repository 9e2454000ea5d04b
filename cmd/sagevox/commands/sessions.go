package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sagevox/sagevox-go/pkg/cli"
	"github.com/sagevox/sagevox-go/pkg/journal"
)

var sessionsFlags struct {
	book   string
	output string
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List recorded voice sessions from the local journal",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.DataDir == "" {
			return fmt.Errorf("no journal: set data_dir in config to record sessions")
		}

		j, err := journal.OpenBadger(journal.BadgerOptions{Dir: cfg.DataDir})
		if err != nil {
			return err
		}
		defer j.Close()

		seq := j.All(cmd.Context())
		if sessionsFlags.book != "" {
			seq = j.ByBook(cmd.Context(), sessionsFlags.book)
		}

		var recs []*journal.Record
		for rec, err := range seq {
			if err != nil {
				return err
			}
			recs = append(recs, rec)
		}
		return cli.Output(recs, cli.OutputOptions{Format: cli.OutputFormat(sessionsFlags.output)})
	},
}

func init() {
	sessionsCmd.Flags().StringVar(&sessionsFlags.book, "book", "", "only sessions for this book id")
	sessionsCmd.Flags().StringVarP(&sessionsFlags.output, "output", "o", "yaml", "output format (yaml, json)")
	rootCmd.AddCommand(sessionsCmd)
}
