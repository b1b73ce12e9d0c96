package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/alkem-io/server-sub004/config"
	"github.com/alkem-io/server-sub004/lifecycle"
	"github.com/alkem-io/server-sub004/logger"
	"github.com/alkem-io/server-sub004/telemetry"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

// app carries flags and the resources commands share within one invocation.
type app struct {
	envFiles   []string
	store      string
	sqlitePath string
	jsonOut    bool

	cfg       config.Config
	registry  *lifecycle.Registry
	providers *telemetry.Providers
	engine    *lifecycle.Engine
	closers   []func(context.Context) error
	styles    styles
}

// execute runs the CLI and returns the process exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{}

	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if closeErr := a.close(closeCtx); closeErr != nil {
		logger.Get(ctx).Warn("Failed to release resources", "error", closeErr)
	}

	if err != nil {
		logger.Get(ctx).Debug("Command failed", "error", err)

		st := newStyles(lipgloss.NewRenderer(stderr))
		fmt.Fprintln(stderr, st.failure.Render("error:"), err)

		return 1
	}

	return 0
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:               "lifecyclectl",
		Short:             "Inspect lifecycle templates and drive lifecycle records",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	flags := root.PersistentFlags()
	flags.StringSliceVar(&a.envFiles, "env-file", nil, "env files to load before reading the environment")
	flags.StringVar(&a.store, "store", "",
		"storage backend, overrides LIFECYCLE_STORE ("+strings.Join(config.Stores, "|")+")")
	flags.StringVar(&a.sqlitePath, "sqlite-path", "", "SQLite database file, overrides LIFECYCLE_SQLITE_PATH")
	flags.BoolVar(&a.jsonOut, "json", false, "print JSON instead of text")

	root.AddCommand(
		a.templatesCmd(),
		a.validateCmd(),
		a.diagramCmd(),
		a.createCmd(),
		a.dispatchCmd(),
		a.describeCmd(),
		a.deleteCmd(),
	)

	return root
}

// setup loads configuration and installs logging and telemetry.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load(a.envFiles...)
	if err != nil {
		return err
	}

	if a.store != "" {
		cfg.Store = a.store
	}

	if a.sqlitePath != "" {
		cfg.SQLite.Path = a.sqlitePath
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	logOpts, err := cfg.LoggerOptions("lifecyclectl")
	if err != nil {
		return err
	}

	// Follow the command's writers so output can be redirected.
	if strings.EqualFold(cfg.Log.Output, "stdout") {
		logOpts.Output = cmd.OutOrStdout()
	} else {
		logOpts.Output = cmd.ErrOrStderr()
	}

	providers, err := telemetry.Initialize(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}

	a.providers = providers
	a.closers = append(a.closers, providers.Shutdown)

	if handler := providers.LogHandler(); handler != nil {
		logOpts.Extra = append(logOpts.Extra, handler)
	}

	logger.ConfigureLogging(logOpts)

	registry, err := cfg.Registry()
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.registry = registry
	a.styles = newStyles(lipgloss.NewRenderer(cmd.OutOrStdout()))

	return nil
}

// lifecycleEngine opens storage on first use.
func (a *app) lifecycleEngine(ctx context.Context) (*lifecycle.Engine, error) {
	if a.engine != nil {
		return a.engine, nil
	}

	storage, closeStorage, err := openStorage(ctx, a.cfg)
	if err != nil {
		return nil, err
	}

	a.closers = append(a.closers, closeStorage)

	opts := append(a.cfg.EngineOptions(),
		lifecycle.WithLogger(lifecycle.NewDefaultLogger(logger.Get(ctx))))

	a.engine = lifecycle.NewEngine(a.registry, storage, opts...)

	return a.engine, nil
}

// close releases resources in reverse order of acquisition.
func (a *app) close(ctx context.Context) error {
	var errs []error

	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}

	a.closers = nil

	return errors.Join(errs...)
}
