package widgets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestFormatValue(t *testing.T) {
	cases := []struct {
		name   string
		value  *float64
		format Format
		want   string
	}{
		{"currency grouped", ptr(1234.5), FormatCurrency, "$1,234.5"},
		{"percentage two decimals", ptr(12.345), FormatPercentage, "12.35%"},
		{"number grouped", ptr(1234567.0), FormatNumber, "1,234,567"},
		{"absent format", ptr(0.12345), "", "0.123"},
		{"unknown format", ptr(42.0), "ratio", "42"},
		{"missing value", nil, FormatCurrency, "N/A"},
		{"missing value no format", nil, "", "N/A"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FormatValue(tc.value, tc.format))
		})
	}
}

func TestFormatterLocale(t *testing.T) {
	german := NewFormatter(language.German)
	assert.Equal(t, "1.234,5", german.Format(ptr(1234.5), FormatNumber))
	assert.Equal(t, "N/A", Formatter{}.Format(nil, FormatNumber))
	assert.Equal(t, "1,000", Formatter{}.Format(ptr(1000.0), FormatNumber))
}
