package policy

import (
	"errors"
	"testing"
	"time"

	"github.com/dewbox/contribution-service/internal/domain"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 10, 30, 0, 0, time.UTC)
}

func TestClassify_Scenarios(t *testing.T) {
	p := Default()
	tests := []struct {
		name            string
		registrationDay int
		today           time.Time
		mode            domain.OverrideMode
		want            domain.ContributionType
	}{
		{name: "anniversary day is the fee day", registrationDay: 5, today: date(2026, time.March, 5), mode: domain.OverrideAuto, want: domain.ContributionFee},
		{name: "three days in is ICA", registrationDay: 5, today: date(2026, time.March, 8), mode: domain.OverrideAuto, want: domain.ContributionICA},
		{name: "fifteen days in is PIGGY", registrationDay: 5, today: date(2026, time.March, 20), mode: domain.OverrideAuto, want: domain.ContributionPiggy},
		{name: "first ICA day", registrationDay: 5, today: date(2026, time.March, 6), mode: domain.OverrideAuto, want: domain.ContributionICA},
		{name: "last ICA day", registrationDay: 5, today: date(2026, time.March, 15), mode: domain.OverrideAuto, want: domain.ContributionICA},
		{name: "first PIGGY day", registrationDay: 5, today: date(2026, time.March, 16), mode: domain.OverrideAuto, want: domain.ContributionPiggy},
		{name: "day before next anniversary is PIGGY", registrationDay: 5, today: date(2026, time.April, 4), mode: domain.OverrideAuto, want: domain.ContributionPiggy},
		{name: "early month belongs to previous cycle", registrationDay: 20, today: date(2026, time.March, 2), mode: domain.OverrideAuto, want: domain.ContributionPiggy},
		{name: "cycle crosses year boundary", registrationDay: 28, today: date(2026, time.January, 3), mode: domain.OverrideAuto, want: domain.ContributionICA},
		{name: "ALL_ICA turns PIGGY day into ICA", registrationDay: 5, today: date(2026, time.March, 20), mode: domain.OverrideAllICA, want: domain.ContributionICA},
		{name: "ALL_ICA keeps fee day as FEE by default", registrationDay: 5, today: date(2026, time.March, 5), mode: domain.OverrideAllICA, want: domain.ContributionFee},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Classify(tt.registrationDay, tt.today, tt.mode)
			if err != nil {
				t.Fatalf("Classify returned error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestClassify_ShortMonthsAnchorOnLastDay(t *testing.T) {
	p := Default()
	tests := []struct {
		name            string
		registrationDay int
		today           time.Time
		wantDelta       int
		want            domain.ContributionType
	}{
		{name: "31st in a 30-day month", registrationDay: 31, today: date(2026, time.September, 30), wantDelta: 0, want: domain.ContributionFee},
		{name: "day after clamped anniversary", registrationDay: 31, today: date(2026, time.October, 1), wantDelta: 1, want: domain.ContributionICA},
		{name: "31st in a 31-day month", registrationDay: 31, today: date(2026, time.October, 31), wantDelta: 0, want: domain.ContributionFee},
		{name: "30th in a common-year february", registrationDay: 30, today: date(2026, time.February, 28), wantDelta: 0, want: domain.ContributionFee},
		{name: "29th in a leap-year february", registrationDay: 29, today: date(2028, time.February, 29), wantDelta: 0, want: domain.ContributionFee},
		{name: "longest cycle reaches day 30", registrationDay: 31, today: date(2026, time.February, 27), wantDelta: 27, want: domain.ContributionPiggy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if delta := DayOfCycle(tt.registrationDay, tt.today); delta != tt.wantDelta {
				t.Fatalf("expected delta %d, got %d", tt.wantDelta, delta)
			}
			got, err := p.Classify(tt.registrationDay, tt.today, domain.OverrideAuto)
			if err != nil {
				t.Fatalf("Classify returned error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestClassify_TotalAndDeterministic(t *testing.T) {
	p := Default()
	start := date(2027, time.December, 1)
	end := date(2029, time.January, 31)

	for day := 1; day <= 31; day++ {
		feeDays := 0
		for today := start; !today.After(end); today = today.AddDate(0, 0, 1) {
			first, err := p.Classify(day, today, domain.OverrideAuto)
			if err != nil {
				t.Fatalf("registration day %d on %s: unexpected error %v", day, today.Format("2006-01-02"), err)
			}
			switch first {
			case domain.ContributionFee, domain.ContributionICA, domain.ContributionPiggy:
			default:
				t.Fatalf("registration day %d on %s: unexpected type %q", day, today.Format("2006-01-02"), first)
			}

			second, _ := p.Classify(day, today, domain.OverrideAuto)
			if first != second {
				t.Fatalf("registration day %d on %s: non-deterministic %s vs %s", day, today.Format("2006-01-02"), first, second)
			}

			delta := DayOfCycle(day, today)
			if delta < 0 || delta > 30 {
				t.Fatalf("registration day %d on %s: delta %d out of range", day, today.Format("2006-01-02"), delta)
			}
			if today.Year() == 2028 && first == domain.ContributionFee {
				feeDays++
			}
		}
		if feeDays != 12 {
			t.Fatalf("registration day %d: expected one fee day per month in 2028, got %d", day, feeDays)
		}
	}
}

func TestClassify_IgnoresTimeOfDay(t *testing.T) {
	p := Default()
	morning := time.Date(2026, time.March, 5, 0, 0, 1, 0, time.UTC)
	night := time.Date(2026, time.March, 5, 23, 59, 59, 0, time.UTC)

	a, _ := p.Classify(5, morning, domain.OverrideAuto)
	b, _ := p.Classify(5, night, domain.OverrideAuto)
	if a != domain.ContributionFee || b != domain.ContributionFee {
		t.Fatalf("expected FEE for both times of day, got %s and %s", a, b)
	}
}

func TestClassify_OverrideCanIncludeFeeDay(t *testing.T) {
	p, err := New(DefaultFeeDays, DefaultICADays, true)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	got, err := p.Classify(5, date(2026, time.March, 5), domain.OverrideAllICA)
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if got != domain.ContributionICA {
		t.Fatalf("expected ICA on fee day with override flag, got %s", got)
	}

	got, _ = p.Classify(5, date(2026, time.March, 5), domain.OverrideAuto)
	if got != domain.ContributionFee {
		t.Fatalf("expected AUTO to keep FEE, got %s", got)
	}
}

func TestClassify_CustomBoundaries(t *testing.T) {
	p, err := New(2, 5, false)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	cases := map[int]domain.ContributionType{
		10: domain.ContributionFee,
		11: domain.ContributionFee,
		12: domain.ContributionICA,
		16: domain.ContributionICA,
		17: domain.ContributionPiggy,
	}
	for day, want := range cases {
		got, err := p.Classify(10, date(2026, time.May, day), domain.OverrideAuto)
		if err != nil {
			t.Fatalf("Classify returned error: %v", err)
		}
		if got != want {
			t.Fatalf("May %d: expected %s, got %s", day, want, got)
		}
	}
}

func TestClassify_RejectsInvalidInput(t *testing.T) {
	p := Default()
	tests := []struct {
		name  string
		day   int
		today time.Time
		mode  domain.OverrideMode
		field string
	}{
		{name: "day zero", day: 0, today: date(2026, time.March, 5), mode: domain.OverrideAuto, field: "registration_day"},
		{name: "day 32", day: 32, today: date(2026, time.March, 5), mode: domain.OverrideAuto, field: "registration_day"},
		{name: "zero date", day: 5, today: time.Time{}, mode: domain.OverrideAuto, field: "date"},
		{name: "unknown mode", day: 5, today: date(2026, time.March, 5), mode: "SOMETIMES", field: "override_mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Classify(tt.day, tt.today, tt.mode)
			if !errors.Is(err, ErrClassificationInput) {
				t.Fatalf("expected ErrClassificationInput, got %v", err)
			}
			var inputErr *ClassificationInputError
			if !errors.As(err, &inputErr) || inputErr.Field != tt.field {
				t.Fatalf("expected field %q, got %+v", tt.field, inputErr)
			}
		})
	}
}

func TestNew_ValidatesBoundaries(t *testing.T) {
	if _, err := New(0, 10, false); err == nil {
		t.Fatal("expected error for zero fee days")
	}
	if _, err := New(1, -1, false); err == nil {
		t.Fatal("expected error for negative ica days")
	}
	if _, err := New(10, 20, false); err == nil {
		t.Fatal("expected error when windows exceed the shortest month")
	}
}
