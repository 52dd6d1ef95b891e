package payment

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var ErrAmountMismatch = errors.New("payment: settled amount differs from session")

// zeroDecimal currencies are charged in whole units.
var zeroDecimal = map[string]bool{
	"IDR": true,
	"JPY": true,
	"KRW": true,
	"VND": true,
}

// Exponent is the number of decimal places currency is charged in.
func Exponent(currency string) int {
	if zeroDecimal[strings.ToUpper(currency)] {
		return 0
	}
	return 2
}

func scale(currency string) int64 {
	s := int64(1)
	for range Exponent(currency) {
		s *= 10
	}
	return s
}

// ToMinor converts a fee in major units to the integer amount charged.
func ToMinor(amount float64, currency string) int64 {
	return int64(math.Round(amount * float64(scale(currency))))
}

// FromMinor is the major-unit value of a minor amount.
func FromMinor(minor int64, currency string) float64 {
	return float64(minor) / float64(scale(currency))
}

// FormatMinor renders minor as a decimal string with the currency's
// precision, e.g. 3040 USD is "30.40".
func FormatMinor(minor int64, currency string) string {
	exp := Exponent(currency)
	if exp == 0 {
		return strconv.FormatInt(minor, 10)
	}
	s := scale(currency)
	sign := ""
	if minor < 0 {
		sign, minor = "-", -minor
	}
	return fmt.Sprintf("%s%d.%0*d", sign, minor/s, exp, minor%s)
}

// ParseGross reads a provider gross_amount such as "30.40" or "30000.00"
// into minor units without going through float. Digits past the currency's
// precision must be zero.
func ParseGross(gross, currency string) (int64, error) {
	gross = strings.TrimSpace(gross)
	whole, frac, _ := strings.Cut(gross, ".")
	if whole == "" || strings.HasPrefix(whole, "-") {
		return 0, fmt.Errorf("payment: invalid gross amount %q", gross)
	}
	exp := Exponent(currency)
	if len(frac) > exp {
		if strings.Trim(frac[exp:], "0") != "" {
			return 0, fmt.Errorf("payment: gross amount %q is finer than %s precision", gross, currency)
		}
		frac = frac[:exp]
	}
	frac += strings.Repeat("0", exp-len(frac))
	units, err := strconv.ParseInt(whole+frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("payment: invalid gross amount %q: %w", gross, err)
	}
	return units, nil
}

// MatchesGross reports whether a provider gross_amount equals want minor
// units of currency.
func MatchesGross(gross string, want int64, currency string) error {
	got, err := ParseGross(gross, currency)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAmountMismatch, err)
	}
	if got != want {
		return fmt.Errorf("%w: charged %s %s, expected %s", ErrAmountMismatch,
			FormatMinor(got, currency), currency, FormatMinor(want, currency))
	}
	return nil
}
