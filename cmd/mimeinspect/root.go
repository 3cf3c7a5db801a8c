package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/modfin/mimex"
	"github.com/modfin/mimex/mime"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	charset string
	maxSize int64
	verbose bool
}

func newRootCmd() *cobra.Command {
	o := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "mimeinspect",
		Short:         "Inspect MIME messages",
		Version:       mimex.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&o.charset, "default-charset", "", "charset of unlabeled 8bit text (default iso-8859-1)")
	cmd.PersistentFlags().Int64Var(&o.maxSize, "max-size", 0, "largest message accepted, in bytes (default 10MiB)")
	cmd.PersistentFlags().BoolVarP(&o.verbose, "verbose", "v", false, "log parser anomalies to stderr")

	cmd.AddCommand(
		newTreeCmd(o),
		newHeadersCmd(o),
		newExtractCmd(o),
		newCheckCmd(o),
		newEncodeWordCmd(),
	)
	return cmd
}

func (o *rootOptions) engine(cmd *cobra.Command) (*mimex.Engine, error) {
	cfg := mimex.Config{
		DefaultCharset: o.charset,
		MaxSize:        o.maxSize,
	}
	if o.verbose {
		cfg.Log = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return mimex.New(cfg)
}

// parse reads the message named by path, or stdin for "-".
func (o *rootOptions) parse(cmd *cobra.Command, path string) (*mime.Message, error) {
	g, err := o.engine(cmd)
	if err != nil {
		return nil, err
	}
	r, err := open(cmd, path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return g.ParseReader(r)
}

func open(cmd *cobra.Command, path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(cmd.InOrStdin()), nil
	}
	return os.Open(path)
}
