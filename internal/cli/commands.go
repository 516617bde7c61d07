package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/dewbox/contribution-service/internal/app"
	"github.com/dewbox/contribution-service/internal/domain"
	"github.com/dewbox/contribution-service/internal/ledger"
	"github.com/dewbox/contribution-service/internal/policy"
	"github.com/dewbox/contribution-service/internal/store"
	"github.com/spf13/cobra"
)

const commandTimeout = 10 * time.Minute

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the ledger schema (safe to repeat)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is required")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			pool, err := store.NewPool(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := store.Migrate(ctx, pool); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	}
}

type classifyOutput struct {
	RegistrationDay int                     `json:"registration_day"`
	Date            string                  `json:"date"`
	OverrideMode    domain.OverrideMode     `json:"override_mode"`
	CycleStart      string                  `json:"cycle_start"`
	DayOfCycle      int                     `json:"day_of_cycle"`
	Type            domain.ContributionType `json:"type"`
}

func newClassifyCommand(opts *rootOptions) *cobra.Command {
	var (
		registrationDay int
		date            string
		mode            string
	)

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Show which bucket a contribution would land in",
		Long: `Classify a contribution date for a registration day using the configured policy.

Examples:
  dewbox-admin classify --registration-day 5 --date 2026-03-08
  dewbox-admin classify --registration-day 31 --date 2026-02-28 --mode ALL_ICA`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			serviceOpts, err := app.OptionsFromConfig(cfg)
			if err != nil {
				return err
			}

			overrideMode, err := domain.ParseOverrideMode(mode)
			if err != nil {
				return err
			}

			day := time.Now().In(serviceOpts.Location)
			if date != "" {
				day, err = time.ParseInLocation("2006-01-02", date, serviceOpts.Location)
				if err != nil {
					return fmt.Errorf("invalid --date %q, expected YYYY-MM-DD", date)
				}
			}

			ctype, err := serviceOpts.Policy.Classify(registrationDay, day, overrideMode)
			if err != nil {
				return err
			}

			return writeJSON(cmd.OutOrStdout(), classifyOutput{
				RegistrationDay: registrationDay,
				Date:            day.Format("2006-01-02"),
				OverrideMode:    overrideMode,
				CycleStart:      policy.CycleStart(registrationDay, day).Format("2006-01-02"),
				DayOfCycle:      policy.DayOfCycle(registrationDay, day),
				Type:            ctype,
			})
		},
	}

	cmd.Flags().IntVar(&registrationDay, "registration-day", 0, "subscriber registration day (1-31)")
	cmd.Flags().StringVar(&date, "date", "", "contribution date as YYYY-MM-DD (default today in BUSINESS_TIMEZONE)")
	cmd.Flags().StringVar(&mode, "mode", string(domain.OverrideAuto), "override mode (AUTO or ALL_ICA)")
	_ = cmd.MarkFlagRequired("registration-day")
	return cmd
}

func newApplyInterestCommand(opts *rootOptions) *cobra.Command {
	var (
		rate string
		year int
	)

	cmd := &cobra.Command{
		Use:   "apply-interest",
		Short: "Credit yearly interest on ICA balances",
		Long: `Credit rate% of every positive ICA balance for a year. Each subscriber is credited
at most once per year, so an interrupted run can be repeated.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			percentage, err := ledger.ParsePercentage(rate)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			sess, err := opts.openSession(ctx, commandLogger(cmd))
			if err != nil {
				return err
			}
			defer sess.close()

			credits, err := sess.service.ApplyYearlyInterest(ctx, percentage, year)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), credits)
		},
	}

	cmd.Flags().StringVar(&rate, "rate", "", "interest rate in percent, e.g. 7.5")
	cmd.Flags().IntVar(&year, "year", 0, "interest year (default current year in BUSINESS_TIMEZONE)")
	_ = cmd.MarkFlagRequired("rate")
	return cmd
}

func newSummaryCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Print ICA and piggy totals with the admin wallet balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			sess, err := opts.openSession(ctx, commandLogger(cmd))
			if err != nil {
				return err
			}
			defer sess.close()

			summary, err := sess.service.AdminSummary(ctx)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), summary)
		},
	}
}
