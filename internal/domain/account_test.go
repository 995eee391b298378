package domain

import (
	"errors"
	"testing"
)

func TestAccountCanTransitionTo(t *testing.T) {
	tests := []struct {
		from    AccountStatus
		to      AccountStatus
		allowed bool
	}{
		{AccountStatusActive, AccountStatusFrozen, true},
		{AccountStatusActive, AccountStatusClosed, true},
		{AccountStatusFrozen, AccountStatusActive, true},
		{AccountStatusFrozen, AccountStatusClosed, true},
		{AccountStatusClosed, AccountStatusActive, false},
		{AccountStatusClosed, AccountStatusFrozen, false},
		{AccountStatusActive, AccountStatusActive, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			a := &Account{Status: tt.from}
			if got := a.CanTransitionTo(tt.to); got != tt.allowed {
				t.Errorf("CanTransitionTo(%s) from %s = %v, want %v", tt.to, tt.from, got, tt.allowed)
			}
		})
	}
}

func TestAccountValidateDelta(t *testing.T) {
	tests := []struct {
		name    string
		account Account
		delta   int64
		wantErr error
	}{
		{
			name:    "debit within balance",
			account: Account{Status: AccountStatusActive, Balance: 100},
			delta:   -100,
		},
		{
			name:    "debit below zero rejected",
			account: Account{Status: AccountStatusActive, Balance: 100},
			delta:   -101,
			wantErr: ErrInsufficientFunds,
		},
		{
			name:    "overdraft limit honored",
			account: Account{Status: AccountStatusActive, Balance: 0, MinBalance: -200},
			delta:   -200,
		},
		{
			name:    "credit on frozen account rejected",
			account: Account{Status: AccountStatusFrozen, Balance: 0},
			delta:   50,
			wantErr: ErrAccountNotActive,
		},
		{
			name:    "debit on closed account rejected",
			account: Account{Status: AccountStatusClosed, Balance: 100},
			delta:   -10,
			wantErr: ErrAccountNotActive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.account.ValidateDelta(tt.delta)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestCurrencyExponent(t *testing.T) {
	exp, err := CurrencyExponent("USD")
	if err != nil || exp != 2 {
		t.Errorf("USD: expected exponent 2, got %d (err=%v)", exp, err)
	}

	exp, err = CurrencyExponent("JPY")
	if err != nil || exp != 0 {
		t.Errorf("JPY: expected exponent 0, got %d (err=%v)", exp, err)
	}

	if _, err := CurrencyExponent("XXX"); !errors.Is(err, ErrInvalidCurrency) {
		t.Errorf("expected ErrInvalidCurrency, got %v", err)
	}
}
