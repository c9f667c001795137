package heatmap

import (
	"bytes"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwaldner/bsheat/internal/blackscholes"
)

func callSurface(t *testing.T, resolution int) *blackscholes.Surface {
	t.Helper()
	q := blackscholes.Quote{Strike: 100, Expiry: 1, Rate: 0.05, Type: blackscholes.Call}
	s, err := blackscholes.BuildSurface(q, blackscholes.DefaultVolRange, blackscholes.DefaultSpotRange, resolution)
	require.NoError(t, err)
	return s
}

func TestRenderProducesDecodablePNG(t *testing.T) {
	s := callSurface(t, blackscholes.DefaultResolution)
	opts := DefaultOptions()

	data, err := RenderBytes(s, opts)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	b := img.Bounds()
	assert.Equal(t, marginLeft+20*opts.CellSize+marginRight, b.Dx())
	assert.Equal(t, marginTop+20*opts.CellSize+marginBottom, b.Dy())
}

func TestRenderColoursFollowPrice(t *testing.T) {
	s := callSurface(t, 5)
	img, err := Draw(s, Options{CellSize: 20})
	require.NoError(t, err)

	// call is cheapest at low spot and low vol (top-left) and dearest bottom-right
	topLeft := img.RGBAAt(marginLeft+1, marginTop+1)
	bottomRight := img.RGBAAt(marginLeft+5*20-2, marginTop+5*20-2)
	assert.Equal(t, RdYlGn(0), topLeft)
	assert.Equal(t, RdYlGn(1), bottomRight)
}

func TestRenderRejectsEmptySurface(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, Render(&buf, nil, DefaultOptions()))
	assert.Error(t, Render(&buf, &blackscholes.Surface{}, DefaultOptions()))
	assert.Zero(t, buf.Len())
}

func TestRenderRejectsMismatchedPrices(t *testing.T) {
	short := callSurface(t, 3)
	short.Prices = short.Prices[:2]
	_, err := Draw(short, DefaultOptions())
	assert.Error(t, err)

	ragged := callSurface(t, 3)
	ragged.Prices[1] = ragged.Prices[1][:1]
	_, err = Draw(ragged, DefaultOptions())
	assert.Error(t, err)
}

func TestRdYlGn(t *testing.T) {
	assert.Equal(t, color.RGBA{0xa5, 0x00, 0x26, 0xff}, RdYlGn(0))
	assert.Equal(t, color.RGBA{0xff, 0xff, 0xbf, 0xff}, RdYlGn(0.5))
	assert.Equal(t, color.RGBA{0x00, 0x68, 0x37, 0xff}, RdYlGn(1))
	assert.Equal(t, RdYlGn(0), RdYlGn(-3))
	assert.Equal(t, RdYlGn(1), RdYlGn(42))
}

func TestLabelStride(t *testing.T) {
	vals := []float64{100.25, 150.5}
	assert.Equal(t, 1, labelStride(vals, 60))
	assert.Greater(t, labelStride(vals, 8), 1)
}

func TestRound2(t *testing.T) {
	assert.Equal(t, "10.45", round2(10.450583572185565))
	assert.Equal(t, "0.10", round2(0.1))
}
