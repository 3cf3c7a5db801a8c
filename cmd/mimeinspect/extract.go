package main

import (
	"io"

	"github.com/spf13/cobra"
)

func newExtractCmd(o *rootOptions) *cobra.Command {
	var decode bool
	cmd := &cobra.Command{
		Use:   "extract FILE SECTION",
		Short: "Write the body of one part to stdout",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := o.parse(cmd, args[0])
			if err != nil {
				return err
			}
			p, err := lookup(msg, args[1])
			if err != nil {
				return err
			}
			body := p.Body()
			if decode {
				body = p.DecodedBody()
			}
			_, err = io.Copy(cmd.OutOrStdout(), body)
			return err
		},
	}
	cmd.Flags().BoolVarP(&decode, "decode", "d", false, "remove the transfer encoding")
	return cmd
}
