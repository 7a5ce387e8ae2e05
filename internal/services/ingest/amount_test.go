package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmountCents(t *testing.T) {
	tests := []struct {
		raw  string
		want int64
	}{
		{"1500", 150000},
		{"15.00", 1500},
		{"1.2", 120},
		{"0.5", 50},
		{"1,234.56", 123456},
		{"1.234,56", 123456},
		{"1,50", 150},
		{"$1,234.56", 123456},
		{"€ 1.234,56", 123456},
		{"£99.99", 9999},
		{"1,500", 150000},   // trailing three-digit group is a thousands separator
		{"12.345", 1234500}, // same rule for dots
		{"1.234.567", 123456700},
		{"-45.67", -4567},
		{"(100.00)", -10000},
		{" 250.00 ", 25000},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseAmountCents(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseAmountCentsRejects(t *testing.T) {
	for _, raw := range []string{"", "abc", "12.3456", "1.2.3,4,5", "$", "--5", "12x"} {
		t.Run(raw, func(t *testing.T) {
			_, err := ParseAmountCents(raw)
			assert.Error(t, err)
		})
	}
}

func TestParseDate(t *testing.T) {
	for _, raw := range []string{"2024-01-15", "15/01/2024", "15-01-2024", "15.01.2024", "2024/01/15"} {
		t.Run(raw, func(t *testing.T) {
			got, err := ParseDate(raw)
			require.NoError(t, err)
			assert.Equal(t, 2024, got.Year())
			assert.Equal(t, 15, got.Day())
		})
	}

	_, err := ParseDate("01/15/2024") // month-first is not accepted
	assert.Error(t, err)
	_, err = ParseDate("soon")
	assert.Error(t, err)
}
