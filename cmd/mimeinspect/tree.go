package main

import (
	"fmt"
	"strings"

	"github.com/modfin/mimex/mime"
	"github.com/spf13/cobra"
)

func newTreeCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tree FILE",
		Short: "Print the part tree with section numbers and offsets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := o.parse(cmd, args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			return msg.Walk(func(p *mime.Part, depth int) error {
				id := p.ID()
				if id == "" {
					id = "-"
				}
				if p.IsMessage() && p.Parent() != nil {
					id += " (message)"
				}
				ct := "text/plain"
				if p.ContentType() != nil {
					ct = p.ContentType().BaseType()
				}
				start, end := p.BodyRange()
				line := fmt.Sprintf("%s%s %s body=[%d,%d) lines=%d",
					strings.Repeat("  ", depth), id, ct, start, end, p.Lines())
				if name := p.Filename(); name != "" {
					line += fmt.Sprintf(" filename=%q", name)
				}
				if p.IsMultipart() {
					line += flags(p)
				}
				_, err := fmt.Fprintln(w, line)
				return err
			})
		},
	}
}

func flags(p *mime.Part) string {
	var fl []string
	if p.ImplicitBoundary() {
		fl = append(fl, "implicit-boundary")
	}
	if p.Deferred() {
		fl = append(fl, "encoded")
	} else if !p.Complete() {
		fl = append(fl, "unterminated")
	}
	if len(fl) == 0 {
		return ""
	}
	return " [" + strings.Join(fl, ",") + "]"
}
