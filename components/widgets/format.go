package widgets

import (
	"fmt"
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// NotAvailable is shown for KPIs without a value.
const NotAvailable = "N/A"

// Formatter renders KPI values with locale number grouping.
type Formatter struct {
	printer *message.Printer
}

// NewFormatter builds a formatter for tag.
func NewFormatter(tag language.Tag) Formatter {
	return Formatter{printer: message.NewPrinter(tag)}
}

var defaultFormatter = NewFormatter(language.AmericanEnglish)

// FormatValue formats a KPI value with the default (en-US) formatter.
func FormatValue(value *float64, format Format) string {
	return defaultFormatter.Format(value, format)
}

// Format applies the display hint: currency is "$" plus a grouped number,
// percentage has two decimals, anything else is a grouped number with up to
// three fraction digits.
func (f Formatter) Format(value *float64, format Format) string {
	if value == nil || math.IsNaN(*value) {
		return NotAvailable
	}
	v := *value
	switch format {
	case FormatCurrency:
		return "$" + f.grouped(v)
	case FormatPercentage:
		return fmt.Sprintf("%.2f%%", v)
	default:
		return f.grouped(v)
	}
}

func (f Formatter) grouped(v float64) string {
	if f.printer == nil {
		f = defaultFormatter
	}
	return f.printer.Sprintf("%v", number.Decimal(v, number.MaxFractionDigits(3)))
}
