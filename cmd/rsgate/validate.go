package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/hanpama/rsgate/internal/bootstrap"
	"github.com/hanpama/rsgate/internal/checker"
	"github.com/hanpama/rsgate/internal/config"
	"github.com/hanpama/rsgate/internal/logging"
	"github.com/hanpama/rsgate/internal/rss"
	"github.com/hanpama/rsgate/internal/schema"
)

func cmdValidate(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer) error {
	if cfg.GraphQL.RegistrationsFile == "" {
		fmt.Fprint(stderr, validateUsage)
		return fmt.Errorf("%w: graphql.registrations_file is required", errUsage)
	}
	logger := logging.NewLogger(logging.Config{
		Level:  cfg.Observability.Logging.Level,
		Format: cfg.Observability.Logging.Format,
		Output: stderr,
	})

	sch, err := loadSchema(cfg.GraphQL.SchemaFile)
	if err != nil {
		return err
	}
	transport := newTransport(cfg.Remote)
	defer transport.Close()

	regs, err := bootstrap.LoadFile(ctx, sch, cfg.GraphQL.RegistrationsFile, bootstrap.Options{
		Logger: logger.Logger,
		Remote: transport,
	})
	if err != nil {
		return err
	}

	checked := 0
	regs.Checkers.Each(func(rss.Coordinate, checker.Executor) { checked++ })
	fmt.Fprintf(stdout, "ok: %s (%d coordinates with required selections, %d checked coordinates)\n",
		cfg.GraphQL.RegistrationsFile, len(regs.Selections.Coordinates()), checked)
	return nil
}

func cmdPrintSchema(cfg *config.Config, out string, stdout io.Writer) error {
	sch, err := loadSchema(cfg.GraphQL.SchemaFile)
	if err != nil {
		return err
	}
	sdl := schema.Render(sch)
	if out == "" {
		_, err := io.WriteString(stdout, sdl)
		return err
	}
	return os.WriteFile(out, []byte(sdl), 0o644)
}
