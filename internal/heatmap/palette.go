package heatmap

import (
	"image/color"
	"math"
)

// rdYlGn holds the eleven anchor colours of the ColorBrewer RdYlGn scheme,
// from low (red) to high (green).
var rdYlGn = []color.RGBA{
	{0xa5, 0x00, 0x26, 0xff},
	{0xd7, 0x30, 0x27, 0xff},
	{0xf4, 0x6d, 0x43, 0xff},
	{0xfd, 0xae, 0x61, 0xff},
	{0xfe, 0xe0, 0x8b, 0xff},
	{0xff, 0xff, 0xbf, 0xff},
	{0xd9, 0xef, 0x8b, 0xff},
	{0xa6, 0xd9, 0x6a, 0xff},
	{0x66, 0xbd, 0x63, 0xff},
	{0x1a, 0x98, 0x50, 0xff},
	{0x00, 0x68, 0x37, 0xff},
}

// RdYlGn maps t in [0, 1] onto the diverging red-yellow-green scale by linear
// interpolation between anchors. t is clamped; NaN maps to the midpoint.
func RdYlGn(t float64) color.RGBA {
	if math.IsNaN(t) {
		t = 0.5
	}
	t = math.Max(0, math.Min(1, t))

	pos := t * float64(len(rdYlGn)-1)
	i := int(math.Floor(pos))
	if i >= len(rdYlGn)-1 {
		return rdYlGn[len(rdYlGn)-1]
	}
	f := pos - float64(i)
	a, b := rdYlGn[i], rdYlGn[i+1]
	return color.RGBA{
		R: lerp(a.R, b.R, f),
		G: lerp(a.G, b.G, f),
		B: lerp(a.B, b.B, f),
		A: 0xff,
	}
}

func lerp(a, b uint8, f float64) uint8 {
	return uint8(math.Round(float64(a) + (float64(b)-float64(a))*f))
}
