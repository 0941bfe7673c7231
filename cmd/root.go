// Package cmd defines and implements the CLI commands for the rankcheck executable.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/admissions-rank/internal/admission"
	"github.com/JakeFAU/admissions-rank/internal/app"
	"github.com/JakeFAU/admissions-rank/internal/config"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// Runner checks a list of URLs and returns one result per URL.
type Runner interface {
	Run(ctx context.Context, urls []string) []admission.CheckResult
}

// App defines the application interface that commands will use.
// This allows us to inject a mock app during tests.
type App interface {
	Close()
	GetLogger() *zap.Logger
	GetConfig() config.Config
	NewRunner(out io.Writer) (Runner, error)
}

type appAdapter struct {
	*app.App
}

func (a appAdapter) NewRunner(out io.Writer) (Runner, error) {
	return a.NewWorker(out)
}

// newApp is the application factory. It's a variable so we can
// replace it with a mock factory in our tests.
var newApp = func(ctx context.Context, cfg config.Config) (App, error) {
	a, err := app.NewApp(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return appAdapter{a}, nil
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	v := config.New()
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "rankcheck",
		Short: "Checks an applicant's position on admissions ranking lists.",
		Long: `rankcheck renders each configured ranking page in a headless browser,
extracts the applicant table, keeps the priority-1 rows plus the configured
applicant, and reports the applicant's place in that roster.`,
		SilenceUsage: true,

		// Loads configuration and injects the application before any subcommand runs.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Read(v, cfgFile)
			if err != nil {
				return err
			}
			appInstance, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	cmd.PersistentFlags().Bool("verbose", false, "enable debug logging")
	mustBind(v, "logging.verbose", cmd.PersistentFlags().Lookup("verbose"))

	cmd.AddCommand(newCheckCmd(v))
	return cmd
}

// Execute is the main entry point.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, fmt.Errorf("application not initialized")
	}
	return appInstance, nil
}

// mustBind ties a flag to a config key; it only fails on a nil flag.
func mustBind(v *viper.Viper, key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", key, err))
	}
}
