package catalog

import (
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Currency is the unit every catalog price is expressed in. Amounts are whole naira.
var Currency = currency.MustParseISO("NGN")

// FormatPrice renders an amount the way the storefront shows it, e.g. ₦45,000.
func FormatPrice(amount int64) string {
	return "₦" + message.NewPrinter(language.English).Sprintf("%d", amount)
}
