package main

import (
	"fmt"
	"strings"

	"github.com/modfin/mimex/header"
	"github.com/spf13/cobra"
)

func newEncodeWordCmd() *cobra.Command {
	var cs string
	var decode bool
	cmd := &cobra.Command{
		Use:   "encode-word TEXT...",
		Short: "Encode text as an RFC 2047 encoded word, or decode one with --decode",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if decode {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), header.Decode([]byte(text), cs))
				return err
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), header.EncodeWord(text, cs))
			return err
		},
	}
	cmd.Flags().StringVar(&cs, "charset", "utf-8", "charset of the encoded word")
	cmd.Flags().BoolVar(&decode, "decode", false, "decode the encoded words in TEXT")
	return cmd
}
