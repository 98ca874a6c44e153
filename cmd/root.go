// Package cmd defines and implements the CLI commands of the oppcrawler
// executable.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/opportunity-crawler/internal/app"
	"github.com/JakeFAU/opportunity-crawler/internal/config"
	"github.com/JakeFAU/opportunity-crawler/internal/logging"
)

const closeTimeout = 10 * time.Second

// appFactory builds the application services. Tests swap it for one that
// injects fakes.
type appFactory func(cfg config.Config, logger *zap.Logger) (*app.App, error)

func defaultAppFactory(cfg config.Config, logger *zap.Logger) (*app.App, error) {
	return app.New(cfg, logger)
}

// root carries state shared by the subcommands of one invocation.
type root struct {
	v       *viper.Viper
	cfgFile string
	newApp  appFactory

	cfg    config.Config
	logger *zap.Logger
	app    *app.App
}

func newRoot(factory appFactory) *root {
	if factory == nil {
		factory = defaultAppFactory
	}
	return &root{v: config.New(), newApp: factory}
}

// command builds the cobra tree.
func (r *root) command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "oppcrawler",
		Short: "Finds web pages where a product could be advertised.",
		Long: `oppcrawler drives a foundation model through repeated rounds of web
search, page loading, critique and selection, and reports the websites it
judges to be good places to advertise the configured product.`,
		SilenceUsage: true,

		// Config, logger and services are built once, before any subcommand runs.
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return r.setup()
		},
	}
	cmd.PersistentFlags().StringVar(&r.cfgFile, "config", "",
		"config file (default is ./config.yaml, $HOME/.oppcrawler/config.yaml or /etc/oppcrawler/config.yaml)")

	cmd.AddCommand(r.runCommand(), r.serveCommand())
	return cmd
}

func (r *root) setup() error {
	cfg, err := config.LoadWith(r.v, r.cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.NewWithLevel(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	r.cfg, r.logger = cfg, logger
	if used := r.v.ConfigFileUsed(); used != "" {
		logger.Info("using config file", zap.String("path", used))
	}

	a, err := r.newApp(cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize application services: %w", err)
	}
	r.app = a
	return nil
}

// close releases the services even when the subcommand failed.
func (r *root) close() {
	if r.app != nil {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := r.app.Close(ctx); err != nil {
			r.logger.Warn("close application services", zap.Error(err))
		}
		r.app = nil
	}
	if r.logger != nil {
		_ = r.logger.Sync()
	}
}

func (r *root) execute(ctx context.Context, args []string, out io.Writer) error {
	cmd := r.command()
	cmd.SetArgs(args)
	cmd.SetOut(out)
	defer r.close()
	return cmd.ExecuteContext(ctx)
}

// Execute is the main entry point.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := newRoot(nil)
	if err := r.execute(ctx, os.Args[1:], os.Stdout); err != nil {
		if r.logger != nil {
			r.logger.Error("command execution failed", zap.Error(err))
		}
		stop()
		os.Exit(1)
	}
}
