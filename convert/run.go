// Package convert drives conversion of man page sources into a single
// self-contained HTML document.
package convert

import (
	"context"
	"errors"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"mth/man"
	"mth/state"
)

// metadataFromConfig composes the document metadata record: values
// from the configuration file first, command line flags override.
func metadataFromConfig(ctx context.Context, cmd *cli.Command) man.Metadata {
	doc := state.EnvFromContext(ctx).Cfg.Document
	meta := man.Metadata{
		Author:     doc.Author,
		Chapter:    doc.Chapter,
		Copyright:  doc.Copyright,
		Stylesheet: doc.Stylesheet,
		Subject:    doc.Subject,
		Title:      doc.Title,
	}
	for _, o := range []struct {
		flag string
		dst  *string
	}{
		{"author", &meta.Author},
		{"chapter", &meta.Chapter},
		{"copyright", &meta.Copyright},
		{"css", &meta.Stylesheet},
		{"subject", &meta.Subject},
		{"title", &meta.Title},
	} {
		if cmd.IsSet(o.flag) {
			*o.dst = cmd.String(o.flag)
		}
	}
	return meta
}

func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("convert")

	if cmd.NArg() == 0 {
		return errors.New("no input files have been specified")
	}

	out := os.Stdout
	dst := cmd.String("output")
	if len(dst) > 0 {
		var f *os.File
		if f, err = os.Create(dst); err != nil {
			return fmt.Errorf("unable to create output file '%s': %w", dst, err)
		}
		out = f
		defer func() {
			if e := f.Close(); e != nil {
				err = multierr.Append(err, fmt.Errorf("unable to close output file: %w", e))
			}
		}()
	}

	conv := man.NewConverter(metadataFromConfig(ctx, cmd), out, log)

	// strictly in the order given, sharing one output stream
	for _, src := range cmd.Args().Slice() {
		log.Debug("Converting man source", zap.String("file", src))
		if err := conv.ConvertFile(src); err != nil {
			return err
		}
	}

	if !conv.HeaderWritten() {
		return errors.New("no man pages were converted, output is empty")
	}
	if err := conv.Finish(); err != nil {
		return fmt.Errorf("unable to finalize output: %w", err)
	}

	if len(dst) > 0 {
		env.Rpt.Store("output.html", dst)
	}
	log.Info("Conversion done", zap.Int("files", cmd.NArg()))
	return nil
}
