// Package pricing renders ticket prices for display.  The seat inventory
// never depends on it; only the HTTP layer prints prices.
package pricing

import (
	"fmt"
	"math"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Default ticket price shown after a successful reservation.
const (
	DefaultTicketPrice = 10
	DefaultCurrency    = "USD"
)

// Price pairs an amount with an ISO 4217 currency code.
type Price struct {
	Amount   float64
	Currency string
}

// Format renders p with FormatCurrency.
func (p Price) Format() (string, error) {
	return FormatCurrency(p.Amount, p.Currency)
}

var printer = message.NewPrinter(language.AmericanEnglish)

// FormatCurrency renders amount in the en-US locale using the symbol and
// standard number of fraction digits of the currency, e.g. 1234.5 USD becomes
// "$1,234.50".  Codes without a symbol are separated from the digits by a
// space, e.g. "CHF 10.00".  Negative amounts are prefixed with a minus sign
// before the symbol.  Unknown currency codes return an error.
func FormatCurrency(amount float64, code string) (string, error) {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return "", fmt.Errorf("unknown currency %q: %w", code, err)
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return "", fmt.Errorf("invalid amount %v", amount)
	}
	scale, _ := currency.Standard.Rounding(unit)

	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	symbol := printer.Sprint(currency.Symbol(unit))
	if r, _ := utf8.DecodeLastRuneInString(symbol); unicode.IsLetter(r) {
		symbol += " "
	}
	digits := printer.Sprint(number.Decimal(amount, number.Scale(scale)))
	return sign + symbol + digits, nil
}
