package main

import (
	"fmt"

	"github.com/modfin/mimex/mime"
	"github.com/spf13/cobra"
)

func newHeadersCmd(o *rootOptions) *cobra.Command {
	var raw bool
	var section string
	cmd := &cobra.Command{
		Use:   "headers FILE",
		Short: "Print the headers of the message or of one part",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := o.parse(cmd, args[0])
			if err != nil {
				return err
			}
			p, err := lookup(msg, section)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if raw {
				_, err = p.Headers().WriteTo(w)
				return err
			}
			for _, h := range p.Headers().All() {
				if _, err := fmt.Fprintf(w, "%s: %s\n", h.Name(), h.Decode(o.charset)); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print the header lines as received")
	cmd.Flags().StringVarP(&section, "section", "s", "", "IMAP section number of the part, such as 1.2")
	return cmd
}

func lookup(msg *mime.Message, section string) (*mime.Part, error) {
	p := msg.Part(section)
	if p == nil {
		return nil, fmt.Errorf("no part %q", section)
	}
	return p, nil
}
