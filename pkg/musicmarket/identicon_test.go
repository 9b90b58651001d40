package musicmarket_test

import (
	"bytes"
	"encoding/base64"
	"image/png"
	"strings"
	"testing"

	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdenticonDataURI(t *testing.T) {
	uri, err := musicmarket.IdenticonDataURI("Song A0.5bafk", 0)
	require.NoError(t, err)

	const prefix = "data:image/png;base64,"
	require.True(t, strings.HasPrefix(uri, prefix))

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, prefix))
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 330, img.Bounds().Dx())
	assert.Equal(t, 330, img.Bounds().Dy())

	// the margin is background coloured
	r, g, b, _ := img.At(1, 1).RGBA()
	assert.Equal(t, []uint32{240, 240, 240}, []uint32{r >> 8, g >> 8, b >> 8})

	again, err := musicmarket.IdenticonDataURI("Song A0.5bafk", musicmarket.DefaultIdenticonSize)
	require.NoError(t, err)
	assert.Equal(t, uri, again)

	other, err := musicmarket.IdenticonDataURI("Song B0.5bafk", musicmarket.DefaultIdenticonSize)
	require.NoError(t, err)
	assert.NotEqual(t, uri, other)
}

func TestIdenticonDataURI_Mirrored(t *testing.T) {
	uri, err := musicmarket.IdenticonDataURI("mirror", 100)
	require.NoError(t, err)
	raw, _ := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, "data:image/png;base64,"))
	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)

	// centres of the cells in columns 0 and 1 against columns 4 and 3
	for _, y := range []int{16, 33, 50, 66, 83} {
		for _, x := range []int{16, 33} {
			assert.Equal(t, img.At(x, y), img.At(99-x, y), "pixel (%d,%d)", x, y)
		}
	}
}
