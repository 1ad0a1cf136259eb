package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/loykin/pnrwatch"
	"github.com/loykin/pnrwatch/internal/logger"
)

type command struct {
	global *GlobalFlags
}

// setup loads the config and builds the diagnostics logger.
func (c command) setup(stderr io.Writer) (*pnrwatch.Config, *slog.Logger, io.Closer, error) {
	cfg, err := pnrwatch.LoadConfig(c.global.ConfigPath)
	if err != nil {
		return nil, nil, nil, err
	}
	log, closer, err := logger.New(cfg.Log, stderr)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, log, closer, nil
}

// Check runs one pass over the tracking list.
func (c command) Check(ctx context.Context, stdout, stderr io.Writer, f CheckFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, log, closer, err := c.setup(stderr)
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()

	if len(f.References) > 0 {
		cfg.SetReferences(f.References)
	}
	if f.StatusFile != "" {
		cfg.StatusFile = f.StatusFile
	}

	tr, err := pnrwatch.NewTracker(cfg, pnrwatch.Options{Out: stdout, Logger: log})
	if err != nil {
		return err
	}
	defer func() { _ = tr.Close() }()

	sum, err := tr.Run(ctx)
	if err != nil {
		return err
	}
	log.Debug("run finished", "successful", sum.Successful, "failed", sum.Failed, "changed", sum.Changed)
	return nil
}

// Show prints the status file, or one entry of it, as indented JSON or YAML.
func (c command) Show(stdout, stderr io.Writer, f ShowFlags) error {
	cfg, log, closer, err := c.setup(stderr)
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()

	path := cfg.StatusFile
	if f.StatusFile != "" {
		path = f.StatusFile
	}
	recs, err := pnrwatch.LoadStatus(path, log)
	if err != nil {
		return err
	}

	var v any = recs
	if f.Reference != "" {
		rec, ok := recs[f.Reference]
		if !ok {
			return fmt.Errorf("no stored status for PNR %s", f.Reference)
		}
		v = rec
	}
	switch f.Output {
	case "", "json":
		return printJSON(stdout, v)
	case "yaml", "yml":
		return printYAML(stdout, v)
	default:
		return fmt.Errorf("unknown output format %q", f.Output)
	}
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

// printYAML goes through JSON first so the field names match the status file.
func printYAML(w io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var generic any
	if err := json.Unmarshal(b, &generic); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return err
	}
	return enc.Close()
}
