package core

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.0", "1", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"0.01", "0.01", true},
		{"1.005", "1.01", true},
		{" 2.50 ", "2.5", true},
		{"-12,34", "-12.34", true},
		{"+7", "7", true},
		{".5", "0.5", true},
		{"0", "0", true},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"", "", false},
		{"-", "", false},
		{".", "", false},
		{"1e3", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseAmount(tc.in)
			if !tc.ok {
				assert.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tc.out)), "got %s", got)
		})
	}
}

func TestParsePositiveAmount(t *testing.T) {
	_, err := ParsePositiveAmount("0")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = ParsePositiveAmount("-3")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	got, err := ParsePositiveAmount("3,50")
	require.NoError(t, err)
	assert.Equal(t, "3.50", FormatAmount(got))
}

func TestPercent(t *testing.T) {
	assert.True(t, Percent(decimal.NewFromInt(2500), decimal.NewFromInt(4000)).Equal(decimal.RequireFromString("62.5")))
	assert.True(t, Percent(decimal.NewFromInt(10), decimal.Zero).IsZero())
	assert.True(t, PercentOf(decimal.NewFromInt(4000), decimal.NewFromInt(50)).Equal(decimal.NewFromInt(2000)))
}
