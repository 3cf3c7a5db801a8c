package main

import (
	"fmt"
	"log/slog"

	"github.com/modfin/mimex/envelope"
	"github.com/modfin/mimex/middleware"
	"github.com/spf13/cobra"
)

func newCheckCmd(o *rootOptions) *cobra.Command {
	var (
		require  []string
		maxParts int
		strict   bool
	)
	cmd := &cobra.Command{
		Use:   "check FILE",
		Short: "Run a message through the acceptance middlewares",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := o.engine(cmd)
			if err != nil {
				return err
			}
			g.Use(middleware.Recover)
			if o.verbose {
				g.Use(middleware.Logger(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))))
			}
			g.Use(
				middleware.Structure(maxParts, strict),
				middleware.RequireHeaders(require...),
				middleware.AddMessageID,
			)

			r, err := open(cmd, args[0])
			if err != nil {
				return err
			}
			defer r.Close()

			return g.Handle(cmd.Context(), nil, r, func(e *envelope.Envelope) error {
				headers, err := e.ParseHeaders()
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "ok message-id=%s subject=%q\n",
					headers.Get("Message-Id"), envelope.HeaderSubject(headers))
				return err
			})
		},
	}
	cmd.Flags().StringSliceVar(&require, "require", []string{"From"}, "top level headers that must be present")
	cmd.Flags().IntVar(&maxParts, "max-parts", 0, "reject messages with more parts, 0 for no limit")
	cmd.Flags().BoolVar(&strict, "strict", false, "reject multiparts without a closing boundary")
	return cmd
}
