package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/beachbev/beachbev-site/internal/errors"
)

func explainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explain [code]",
		Short: "Describe an error code",
		Long: `Describe the error codes beachbev reports.

Without arguments every code is listed. With a code its explanation
and hint are printed.

Examples:
  beachbev explain
  beachbev explain B021`,
		Args: cobra.MaximumNArgs(1),
		// Error codes need neither config nor logger.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 1 {
				if _, ok := errors.Lookup(args[0]); !ok {
					return errors.New(errors.CodeInvalidArgument).
						WithDetail("unknown error code " + args[0]).
						WithSuggestion("Run `beachbev explain` to list the codes.")
				}
				fmt.Fprint(out, errors.New(args[0]).Format())
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CODE\tCATEGORY\tMESSAGE")
			for _, code := range errors.Codes() {
				t, _ := errors.Lookup(code)
				fmt.Fprintf(w, "%s\t%s\t%s\n", code, t.Category, t.Message)
			}
			return w.Flush()
		},
	}
	return cmd
}
