package commands

import (
	"github.com/spf13/cobra"

	"github.com/sagevox/sagevox-go/pkg/book"
	"github.com/sagevox/sagevox-go/pkg/cli"
)

var booksFlags struct {
	output string
}

var booksCmd = &cobra.Command{
	Use:   "books [id]",
	Short: "List the book library, or show one book",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		base, err := requireBackend(cfg)
		if err != nil {
			return err
		}

		lib := &book.Client{BaseURL: base}
		opts := cli.OutputOptions{Format: cli.OutputFormat(booksFlags.output)}

		if len(args) == 1 {
			b, err := lib.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return cli.Output(b, opts)
		}

		books, err := lib.List(cmd.Context())
		if err != nil {
			return err
		}
		return cli.Output(books, opts)
	},
}

func init() {
	booksCmd.Flags().StringVarP(&booksFlags.output, "output", "o", "yaml", "output format (yaml, json)")
	rootCmd.AddCommand(booksCmd)
}
