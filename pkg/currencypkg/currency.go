// Package currencypkg provides common currency related functionality for apps.
package currencypkg

import "github.com/shopspring/decimal"

// Constants for frequently referenced currencies.
const (
	USD = "USD"
	EUR = "EUR"
	GBP = "GBP"
	KES = "KES"
	NGN = "NGN"
	PHP = "PHP"
	INR = "INR"
	JPY = "JPY"
	KWD = "KWD"
)

// SupportedCurrencies holds all the currencies accounts may be denominated in.
var SupportedCurrencies = []string{
	USD, EUR, GBP, KES, NGN, PHP, INR, JPY, KWD,
}

// IsSupportedCurrency returns true if the currency is supported.
func IsSupportedCurrency(currency string) bool {
	for _, c := range SupportedCurrencies {
		if c == currency {
			return true
		}
	}

	return false
}

// zeroDecimal and threeDecimal list the ISO 4217 exceptions to the default
// two minor-unit digits.
var (
	zeroDecimal  = map[string]bool{"JPY": true, "KRW": true, "VND": true, "CLP": true, "ISK": true}
	threeDecimal = map[string]bool{"KWD": true, "BHD": true, "OMR": true, "JOD": true, "TND": true}
)

// MinorUnits returns the number of minor-unit digits for the currency.
func MinorUnits(currency string) int32 {
	switch {
	case zeroDecimal[currency]:
		return 0
	case threeDecimal[currency]:
		return 3
	}

	return 2
}

// RoundMinor rounds a non-negative amount to the currency's minor-unit
// precision, half up.
func RoundMinor(amount decimal.Decimal, currency string) decimal.Decimal {
	return amount.Round(MinorUnits(currency))
}
