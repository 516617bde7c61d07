package app

import (
	"fmt"
	"time"

	"github.com/dewbox/contribution-service/internal/config"
	"github.com/dewbox/contribution-service/internal/ledger"
	"github.com/dewbox/contribution-service/internal/policy"
)

// OptionsFromConfig builds service options from the loaded configuration.
func OptionsFromConfig(cfg config.Config) (Options, error) {
	loc, err := time.LoadLocation(cfg.BusinessTimezone)
	if err != nil {
		return Options{}, fmt.Errorf("invalid BUSINESS_TIMEZONE %q: %w", cfg.BusinessTimezone, err)
	}

	pol, err := policy.New(cfg.ClassifyFeeDays, cfg.ClassifyICADays, cfg.OverrideAppliesToFeeDay)
	if err != nil {
		return Options{}, fmt.Errorf("invalid classification policy: %w", err)
	}

	return Options{
		Policy:              pol,
		Location:            loc,
		PiggyWalletTransfer: cfg.PiggyWalletMode == config.PiggyWalletModeTransfer,
		MaxAttempts:         cfg.ContentionMaxAttempts,
		GatewayCallbackURL:  cfg.PaystackCallbackURL,
	}, nil
}

// InterestJobRate parses INTEREST_JOB_RATE. It returns a zero Percentage when the job is off.
func InterestJobRate(cfg config.Config) (ledger.Percentage, error) {
	if cfg.InterestJobSchedule == "" {
		return ledger.Percentage{}, nil
	}
	rate, err := ledger.ParsePercentage(cfg.InterestJobRate)
	if err != nil {
		return ledger.Percentage{}, fmt.Errorf("invalid INTEREST_JOB_RATE: %w", err)
	}
	return rate, nil
}
