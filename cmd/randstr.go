package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/pagegate/internal/randutil"
)

func newRandStrCommand() *cobra.Command {
	var codes bool
	cmd := &cobra.Command{
		Use:   "randstr <length>",
		Short: "Print a random alphabetic string",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("length must be an integer: %w", err)
			}
			gen := randutil.ASCIIString
			if codes {
				gen = randutil.CodePoints
			}
			s, err := gen(n)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), s)
			return nil
		},
	}
	cmd.Flags().BoolVar(&codes, "codes", false, "print decimal code points instead of characters")
	return cmd
}
