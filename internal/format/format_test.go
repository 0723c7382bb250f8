package format

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFmtPrice(t *testing.T) {
	cases := []struct {
		amount   float64
		currency string
		want     string
	}{
		{12.5, "EUR", "12.50 €"},
		{12.5, "", "12.50 €"},
		{0, "eur", "0.00 €"},
		{19.999, "EUR", "20.00 €"},
		{7, "USD", "7.00 $"},
		{3.1, "SEK", "3.10 SEK"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, FmtPrice(tc.amount, tc.currency, "fr"))
	}
}
