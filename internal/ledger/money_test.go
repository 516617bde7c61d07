package ledger

import (
	"errors"
	"math"
	"testing"
)

func TestApplyDelta(t *testing.T) {
	tests := []struct {
		name    string
		balance Money
		delta   Money
		floor   Money
		want    Money
		wantErr error
	}{
		{name: "credit", balance: 10000, delta: 5000, want: 15000},
		{name: "debit within balance", balance: 10000, delta: -4000, want: 6000},
		{name: "debit to exactly zero", balance: 2000, delta: -2000, want: 0},
		{name: "debit below zero", balance: 1999, delta: -2000, want: 1999, wantErr: ErrInsufficientFunds},
		{name: "debit above custom floor", balance: 5000, delta: -3000, floor: 1000, want: 2000},
		{name: "debit below custom floor", balance: 5000, delta: -4500, floor: 1000, want: 5000, wantErr: ErrInsufficientFunds},
		{name: "zero delta", balance: 700, delta: 0, want: 700},
		{name: "credit overflow", balance: Money(math.MaxInt64 - 1), delta: 2, want: Money(math.MaxInt64 - 1), wantErr: ErrAmountOverflow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ApplyDelta(tt.balance, tt.delta, tt.floor)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected balance %d, got %d", tt.want, got)
			}
		})
	}
}

func TestApplyDelta_InsufficientFundsCarriesAmounts(t *testing.T) {
	_, err := ApplyDelta(300, -500, 0)

	var insufficient *InsufficientFundsError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected *InsufficientFundsError, got %T", err)
	}
	if insufficient.Balance != 300 || insufficient.Required != 500 {
		t.Fatalf("unexpected error fields: %+v", insufficient)
	}
}

func TestCreditAndDebitRejectNegativeAmounts(t *testing.T) {
	if _, err := Credit(100, -1); !errors.Is(err, ErrInvalidMoney) {
		t.Fatalf("expected ErrInvalidMoney from negative credit, got %v", err)
	}
	if _, err := Debit(100, -1); !errors.Is(err, ErrInvalidMoney) {
		t.Fatalf("expected ErrInvalidMoney from negative debit, got %v", err)
	}
}

func TestParseMoney(t *testing.T) {
	tests := []struct {
		input   string
		want    Money
		wantErr bool
	}{
		{input: "50", want: 5000},
		{input: "50.25", want: 5025},
		{input: "0.1", want: 10},
		{input: "0.01", want: 1},
		{input: "1000000.00", want: 100000000},
		{input: "0.005", wantErr: true},
		{input: "abc", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseMoney(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidMoney) {
					t.Fatalf("expected ErrInvalidMoney, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %d kobo, got %d", tt.want, got)
			}
		})
	}
}

func TestMoneyString(t *testing.T) {
	if got := Money(5025).String(); got != "50.25" {
		t.Fatalf("expected 50.25, got %q", got)
	}
	if got := Money(7).String(); got != "0.07" {
		t.Fatalf("expected 0.07, got %q", got)
	}
}

func TestPercentageApply(t *testing.T) {
	tests := []struct {
		name    string
		rate    string
		balance Money
		want    Money
	}{
		{name: "whole percent", rate: "10", balance: 100000, want: 10000},
		{name: "fractional percent", rate: "7.5", balance: 200000, want: 15000},
		{name: "half kobo rounds to even down", rate: "10", balance: 1005, want: 100},
		{name: "half kobo rounds to even up", rate: "10", balance: 1015, want: 102},
		{name: "tiny balance rounds to zero", rate: "1", balance: 10, want: 0},
		{name: "full rate", rate: "100", balance: 4321, want: 4321},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rate, err := ParsePercentage(tt.rate)
			if err != nil {
				t.Fatalf("ParsePercentage returned error: %v", err)
			}
			if got := rate.Apply(tt.balance); got != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestParsePercentageRejectsOutOfRange(t *testing.T) {
	for _, raw := range []string{"0", "-1", "100.01", "nope"} {
		if _, err := ParsePercentage(raw); err == nil {
			t.Fatalf("expected error for rate %q", raw)
		}
	}
}
