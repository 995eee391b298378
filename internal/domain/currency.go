package domain

import (
	"fmt"
	"strings"
)

// Minor-unit exponents for supported ISO 4217 currencies. Amounts move
// through the engine as integer minor units; the exponent only matters at
// the API boundary where decimal amounts are converted.
var currencyExponents = map[string]int32{
	"USD": 2, "EUR": 2, "GBP": 2, "JPY": 0,
	"CNY": 2, "AUD": 2, "CAD": 2, "CHF": 2,
	"SEK": 2, "NZD": 2, "KRW": 0, "SGD": 2,
	"NOK": 2, "MXN": 2, "INR": 2, "BRL": 2,
	"ZAR": 2, "TRY": 2, "HKD": 2, "KWD": 3,
}

// ValidateCurrency checks that code is a supported ISO 4217 currency.
func ValidateCurrency(code string) error {
	if _, ok := currencyExponents[strings.ToUpper(strings.TrimSpace(code))]; !ok {
		return fmt.Errorf("%w: %s", ErrInvalidCurrency, code)
	}
	return nil
}

// CurrencyExponent returns the number of minor-unit digits for code.
func CurrencyExponent(code string) (int32, error) {
	exp, ok := currencyExponents[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrInvalidCurrency, code)
	}
	return exp, nil
}
