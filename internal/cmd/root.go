/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/Digital-Shane/mediameta/internal/config"
	"github.com/Digital-Shane/mediameta/internal/provider"
	"github.com/Digital-Shane/mediameta/internal/provider/catalog"
	"github.com/Digital-Shane/mediameta/internal/store"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mediameta",
	Short: "Query and manage pluggable media metadata sources",
	Long: `mediameta loads a fixed catalog of metadata sources (360, bangumi, douban,
imdb, omdb, tmdb, tvdb), keeps their settings in a local SQLite database and routes
search, details and custom actions to them.

Sources enabled for auxiliary search are queried together to collect alias
titles for a keyword. The serve command exposes the same operations over HTTP
together with the route bundles individual sources provide.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

var (
	v = config.NewViper()

	// discover is the source catalog the registry loads from
	discover = catalog.Builtin

	userID   int64
	userName string

	app *environment
)

// environment holds everything a command needs once setup has run
type environment struct {
	settings config.Settings
	log      *zap.SugaredLogger
	logger   *zap.Logger
	store    *store.Store
	config   *config.Manager
	registry *provider.Registry
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to the SQLite database (default ~/.mediameta/mediameta.db)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().Int64Var(&userID, "user-id", 0, "Id of the user the request is made for")
	rootCmd.PersistentFlags().StringVar(&userName, "username", "", "Name of the user the request is made for")

	bindFlags(v, rootCmd, map[string]string{
		config.KeyDatabase: "db",
		config.KeyLogLevel: "log-level",
	})

	cobra.OnFinalize(teardown)
}

// bindFlags binds settings keys to flags of cmd. Binding only fails for an
// unknown flag, which is a programming error.
func bindFlags(v *viper.Viper, cmd *cobra.Command, flags map[string]string) {
	for key, name := range flags {
		flag := cmd.PersistentFlags().Lookup(name)
		if flag == nil {
			flag = cmd.Flags().Lookup(name)
		}
		if err := v.BindPFlag(key, flag); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s to %s: %v", name, key, err))
		}
	}
}

// setup loads settings and opens the store, configuration and registry.
func setup(cmd *cobra.Command, _ []string) error {
	settings, err := config.Load(v)
	if err != nil {
		return err
	}

	logger, err := newLogger(settings.LogLevel)
	if err != nil {
		return err
	}
	zap.ReplaceGlobals(logger)
	log := logger.Sugar()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if settings.Database != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(settings.Database), 0o755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	st, err := store.Open(ctx, settings.Database)
	if err != nil {
		return err
	}

	cfg := config.NewManager(st, config.DefaultCacheTTL)
	registry := provider.NewRegistry(st, cfg, discover, log.Named("registry"))
	registry.Reload(ctx)

	app = &environment{
		settings: settings,
		log:      log,
		logger:   logger,
		store:    st,
		config:   cfg,
		registry: registry,
	}
	log.Debugw("sources loaded", "sources", registry.LoadedNames(), "database", settings.Database)
	return nil
}

// teardown releases what setup opened. It is safe to call more than once.
func teardown() {
	if app == nil {
		return
	}
	app.registry.Close()
	if err := app.store.Close(); err != nil {
		app.log.Warnw("failed to close store", "error", err)
	}
	_ = app.logger.Sync()
	app = nil
}

// newLogger builds a console logger writing to stderr at the given level.
func newLogger(level string) (*zap.Logger, error) {
	if level == "" {
		level = "info"
	}
	atom, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = atom
	cfg.Encoding = "console"
	cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.DisableStacktrace = true
	return cfg.Build()
}

// currentUser returns the user the command acts for
func currentUser() provider.User {
	return provider.User{ID: userID, Username: userName}
}
