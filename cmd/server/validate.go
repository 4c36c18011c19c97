package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"marketroles/internal/messaging/cim"
)

var errInvalidDocument = errors.New("document is invalid")

// newValidateCmd checks a CIM document offline. No IDs are registered.
func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a CIM market document without processing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			doc, err := cim.Parse(cmd.Context(), f)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			rejected := doc.Rejected()
			fmt.Fprintf(out, "%s %s from %s: %d valid, %d rejected\n",
				doc.Header.Kind, doc.Header.MessageID, doc.Header.SenderID, len(doc.Transactions)-len(rejected), len(rejected))
			for _, e := range doc.Errors {
				fmt.Fprintf(out, "  %s\n", e)
			}
			for _, r := range rejected {
				for _, e := range r.Errors {
					fmt.Fprintf(out, "  %s: %s\n", r.TransactionID, e)
				}
			}
			if !doc.Valid() || len(rejected) > 0 {
				return errInvalidDocument
			}
			return nil
		},
	}
}
