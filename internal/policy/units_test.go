package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfire/firemarket/internal/domain"
)

func TestParseCommissionPercent(t *testing.T) {
	ok := map[string]uint64{
		"2.5":    250,
		" 2.5% ": 250,
		"0":      0,
		"100":    10000,
		"0.01":   1,
		"12":     1200,
	}
	for in, want := range ok {
		got, err := ParseCommissionPercent(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"", "abc", "-1", "100.01", "0.001"} {
		_, err := ParseCommissionPercent(in)
		assert.Error(t, err, in)
	}
	_, err := ParseCommissionPercent("0.005")
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestFormatPercent(t *testing.T) {
	assert.Equal(t, "2.5", FormatPercent(250))
	assert.Equal(t, "100", FormatPercent(10000))
	assert.Equal(t, "0", FormatPercent(0))
}

func TestAmounts(t *testing.T) {
	assert.Equal(t, "1", FormatAmount(1_000_000_000_000_000_000, 18))
	assert.Equal(t, "0.000000000000005", FormatAmount(5000, 18))
	assert.Equal(t, "5000", FormatAmount(5000, 0))

	v, err := ParseAmount("1.5", 18)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_500_000_000_000_000_000), v)

	v, err = ParseAmount("5009", 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(5009), v)

	_, err = ParseAmount("0.5", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	_, err = ParseAmount("-1", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	_, err = ParseAmount("100", 18)
	assert.ErrorIs(t, err, domain.ErrOverflow)
}
