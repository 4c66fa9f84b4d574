package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePrice_IgnoresSurroundingFormatting(t *testing.T) {
	inputs := []string{
		"$12.990",
		"$ 12,990",
		"12990",
		"  $12 990 ",
		"CLP $12.990",
		"$ 12.990",
		"12.990 pesos",
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			got := NormalizePrice(in)
			require.NotNil(t, got)
			assert.Equal(t, int64(12990), *got)
		})
	}
}

func TestNormalizePrice_NoDigits(t *testing.T) {
	for _, in := range []string{"", "$", "Agotado", " - ", "$ ,."} {
		assert.Nil(t, NormalizePrice(in), "input %q", in)
	}
}

func TestNormalizePrice_LeadingZerosAndZero(t *testing.T) {
	got := NormalizePrice("$0")
	require.NotNil(t, got)
	assert.Equal(t, int64(0), *got)

	got = NormalizePrice("007")
	require.NotNil(t, got)
	assert.Equal(t, int64(7), *got)
}

func TestNormalizePrice_Overflow(t *testing.T) {
	assert.Nil(t, NormalizePrice("99999999999999999999999"))
}
