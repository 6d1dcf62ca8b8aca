package main

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/acksell/refcache"
	"github.com/acksell/refcache/dynamodb/config"
	"github.com/acksell/refcache/dynamodb/ddbstore"
	"github.com/acksell/refcache/dynamodb/engine"
	"github.com/acksell/refcache/dynamodb/remote"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/spf13/cobra"
)

// app holds the global flags and the collaborators built from them.
type app struct {
	configPath string
	local      bool
	dbPath     string
	verbose    bool

	cfg    config.Config
	logger *slog.Logger
	engine *engine.Engine
	close  func() error
}

func (a *app) loadConfig(cmd *cobra.Command) error {
	var err error
	if a.configPath != "" {
		a.cfg, err = config.LoadFile(a.configPath)
	} else {
		a.cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if a.dbPath != "" {
		a.cfg.DataDir = a.dbPath
	}
	level := a.cfg.Level()
	if a.verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	return nil
}

// setup builds the engine. Local mode uses a BadgerDB store and no remote
// functions; otherwise AWS clients are built from the default credentials.
func (a *app) setup(cmd *cobra.Command) error {
	if err := a.loadConfig(cmd); err != nil {
		return err
	}
	opts := []engine.Option{
		engine.WithLogger(a.logger),
		engine.WithTables(a.cfg.Tables()),
		engine.WithFunctions(a.cfg.EngineFunctions()),
	}

	if a.local {
		store, err := ddbstore.New(ddbstore.StoreOptions{
			Path:     a.cfg.DataDir,
			InMemory: a.cfg.DataDir == "",
			Logger:   a.logger,
		}, a.cfg.Tables().Definitions()...)
		if err != nil {
			return fmt.Errorf("failed to open local store: %w", err)
		}
		a.engine = engine.New(nil, store, opts...)
		a.close = store.Close
		return nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to load AWS config: %w", err)
	}
	a.engine = engine.New(
		remote.NewLambdaInvoker(lambda.NewFromConfig(awsCfg)),
		dynamodb.NewFromConfig(awsCfg),
		opts...,
	)
	a.close = func() error { return nil }
	return nil
}

// run wraps a command body with setup and teardown. Each run is one
// logical operation sharing a correlation id.
func (a *app) run(op string, fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := a.setup(cmd); err != nil {
			return err
		}
		defer func() {
			if err := a.close(); err != nil {
				a.logger.Warn("failed to close store", "error", err)
			}
		}()
		meta := refcache.NewOperationMeta(op)
		cmd.SetContext(refcache.ContextWithMeta(cmd.Context(), meta))
		a.logger.Debug("running command", meta.LogAttr())
		return fn(cmd, args)
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return err
}

func printResponse(cmd *cobra.Command, res remote.Response) error {
	if res.Accepted || len(res.Payload) == 0 {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), "accepted")
		return err
	}
	return printJSON(cmd, res.Payload)
}
