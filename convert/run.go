package convert

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"podthread/config"
	"podthread/state"
	"podthread/thread"
)

// podExtensions lists source suffixes recognized when walking directories.
// Single file conversion accepts any name.
var podExtensions = []string{".pod", ".pm", ".pl"}

func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("convert")

	applyFlagOverrides(cmd, env)

	src := cmd.Args().Get(0)
	dst := cmd.Args().Get(1)
	if cmd.Args().Len() > 2 {
		log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[2:]))
	}

	if len(src) == 0 {
		// filter style invocation, read stdin and write stdout
		return processDocument(ctx, os.Stdin, "<stdin>", dst, log)
	}
	if src, err = filepath.Abs(src); err != nil {
		return err
	}

	fi, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("input source was not found (%s): %w", src, err)
	}

	if fi.Mode().IsDir() {
		if len(dst) == 0 {
			if dst, err = os.Getwd(); err != nil {
				return fmt.Errorf("unable to get working directory: %w", err)
			}
		}
		if dst, err = filepath.Abs(dst); err != nil {
			return err
		}

		log.Info("Processing starting", zap.String("source", src), zap.String("destination", dst))
		defer func(start time.Time) {
			log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)))
		}(time.Now())

		return processDir(ctx, src, dst, log)
	}

	if !fi.Mode().IsRegular() {
		return fmt.Errorf("unexpected path mode for (%s)", src)
	}

	file, err := os.Open(src)
	if err != nil {
		return err
	}
	defer file.Close()

	return processDocument(ctx, file, filepath.Base(src), dst, log)
}

// applyFlagOverrides superimposes command line flags on top of loaded
// configuration, flags always win.
func applyFlagOverrides(cmd *cli.Command, env *state.LocalEnv) {
	doc := &env.Cfg.Document
	if cmd.Bool("contents") {
		doc.Contents = true
	}
	if cmd.Bool("navbar") {
		doc.Navbar = true
	}
	if s := cmd.String("style"); len(s) > 0 {
		doc.Style = s
	}
	if s := cmd.String("title"); len(s) > 0 {
		doc.Title = s
	}
	if s := cmd.String("id"); len(s) > 0 {
		doc.ID = s
	}
	env.NoDirs, env.Overwrite = cmd.Bool("nodirs"), cmd.Bool("overwrite")
}

func documentOptions(doc *config.DocumentConfig) thread.Options {
	return thread.Options{
		Contents:  doc.Contents,
		Navbar:    doc.Navbar,
		Style:     doc.Style,
		Title:     doc.Title,
		ID:        doc.ID,
		WrapWidth: doc.WrapWidth,
	}
}

// processDir walks directory tree finding POD files and processes them.
func processDir(ctx context.Context, dir, dst string, log *zap.Logger) (err error) {
	count := 0
	defer func() {
		if err == nil && count == 0 {
			log.Debug("Nothing to process", zap.String("dir", dir))
		}
	}()

	err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err != nil {
			log.Warn("Skipping path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		if !slices.Contains(podExtensions, strings.ToLower(filepath.Ext(path))) {
			log.Debug("Skipping file, not recognized as POD source", zap.String("file", path))
			return nil
		}

		count++

		file, err := os.Open(path)
		if err != nil {
			log.Error("Unable to process file", zap.String("file", path), zap.Error(err))
			return nil
		}
		defer file.Close()

		src := strings.TrimPrefix(strings.TrimPrefix(path, dir), string(filepath.Separator))
		if err := processDocument(ctx, file, src, dst, log); err != nil {
			log.Error("Unable to process file", zap.String("file", path), zap.Error(err))
		}
		return nil
	})
	return err
}

// processDocument converts a single POD document. "src" is part of the source
// path (always including file name) relative to the original path. When actual
// file was specified it will be just base file name without a path. "dst" is
// either empty or "-" for stdout, an existing directory to generate output
// name in, or an explicit output file path. Syntactically broken POD still
// produces output, conversion error is reported after the result has been
// written out.
func processDocument(ctx context.Context, r io.Reader, src, dst string, log *zap.Logger) (rerr error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)

	var outputName string
	log.Info("Conversion starting", zap.String("from", src))
	defer func(start time.Time) {
		log.Info("Conversion completed", zap.Duration("elapsed", time.Since(start)), zap.String("to", outputName))
	}(time.Now())

	conv := thread.New(documentOptions(&env.Cfg.Document), log)

	// Conversion output is complete even when cerr reports syntax errors.
	var buf bytes.Buffer
	cerr := conv.Convert(r, src, &buf)

	if len(dst) == 0 || dst == "-" {
		outputName = "<stdout>"
		if _, err := os.Stdout.Write(buf.Bytes()); err != nil {
			return multierr.Append(cerr, err)
		}
		return cerr
	}

	if fi, err := os.Stat(dst); err == nil && fi.IsDir() {
		outputName = buildOutputPath(conv.Title(), src, dst, env)
	} else {
		outputName = dst
	}

	// Check if output file already exists
	if _, err := os.Stat(outputName); err == nil {
		if !env.Overwrite {
			return multierr.Append(cerr, fmt.Errorf("output file already exists: %s", outputName))
		}
		log.Warn("Overwriting existing file", zap.String("file", outputName))
		if err = os.Remove(outputName); err != nil {
			return multierr.Append(cerr, err)
		}
	} else if !os.IsNotExist(err) {
		return multierr.Append(cerr, err)
	} else if err := os.MkdirAll(filepath.Dir(outputName), 0755); err != nil {
		return multierr.Append(cerr, fmt.Errorf("unable to create output directory: %w", err))
	}

	if err := os.WriteFile(outputName, buf.Bytes(), 0644); err != nil {
		return multierr.Append(cerr, fmt.Errorf("unable to write output: %w", err))
	}
	return cerr
}
