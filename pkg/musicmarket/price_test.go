package musicmarket_test

import (
	"math/big"
	"testing"

	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEther(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1", "1000000000000000000"},
		{"0.5", "500000000000000000"},
		{" 2.25 ", "2250000000000000000"},
		{"0.000000000000000001", "1"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			wei, err := musicmarket.ParseEther(tt.in)
			require.NoError(t, err)
			want, _ := new(big.Int).SetString(tt.want, 10)
			assert.Equal(t, want, wei)
		})
	}

	for _, bad := range []string{"", "0", "0.0", "-1", "abc", "1/2", "0.0000000000000000001",
		"0x10", "1e3", "0b1", "0o7", "1_000", "+1", ".5", "1.", "1,5", "Inf"} {
		t.Run("invalid "+bad, func(t *testing.T) {
			_, err := musicmarket.ParseEther(bad)
			assert.ErrorIs(t, err, musicmarket.ErrInvalidPrice)
		})
	}
}

func TestFormatEther(t *testing.T) {
	wei, _ := new(big.Int).SetString("2250000000000000000", 10)
	assert.Equal(t, "2.25", musicmarket.FormatEther(wei))
	assert.Equal(t, "1", musicmarket.FormatEther(big.NewInt(1e18)))
	assert.Equal(t, "0", musicmarket.FormatEther(nil))
	assert.Equal(t, "0", musicmarket.FormatEther(new(big.Int)))
}
