package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/admissions-rank/internal/worker"
)

// errAllFailed is returned when no URL produced a result.
var errAllFailed = errors.New("every ranking list check failed")

// newCheckCmd creates the 'check' subcommand.
func newCheckCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Checks the applicant's rank on every configured list",
		Long: `Fetches each ranking list in turn, retrying browser sessions that hang or
fail, and prints the program name, budget seats, roster size, and the
applicant's place and priority. A failing list does not stop the others.`,
		Example: `  rankcheck check --applicant-id 4242424 --url https://abit.example/list/1 --table`,
		RunE:    runCheckCommand,
	}

	flags := cmd.Flags()
	flags.StringSlice("url", nil, "ranking list URL (repeatable)")
	flags.String("applicant-id", "", "applicant code to look for")
	flags.Bool("table", false, "print the filtered roster table")
	flags.Bool("static-probe", false, "try a plain HTTP fetch before the browser")
	mustBind(v, "check.urls", flags.Lookup("url"))
	mustBind(v, "check.applicant_id", flags.Lookup("applicant-id"))
	mustBind(v, "report.show_table", flags.Lookup("table"))
	mustBind(v, "http.static_probe", flags.Lookup("static-probe"))
	return cmd
}

func runCheckCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	// Deferred so failed runs still flush logs.
	defer appInstance.Close()
	logger := appInstance.GetLogger()
	cfg := appInstance.GetConfig()

	runner, err := appInstance.NewRunner(cmd.OutOrStdout())
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	logger.Info("checking ranking lists",
		zap.Int("urls", len(cfg.Check.URLs)),
		zap.String("applicant_id", cfg.Check.ApplicantID),
	)
	results := runner.Run(cmd.Context(), cfg.Check.URLs)

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	logger.Info("check command finished", zap.Int("checked", len(results)), zap.Int("failed", failed))

	if worker.AllFailed(results) {
		return errAllFailed
	}
	return nil
}
