package render

import (
	"fmt"
	"image/color"
	"math"
)

// paletteSize is the number of distinct hues lines cycle through.
const paletteSize = 10

// boundaryColor is the filter box stroke.
var boundaryColor = color.NRGBA{R: 0, G: 0, B: 255, A: 255}

var palette = generateColors(paletteSize)

// lineColor returns the palette colour for line i with the given opacity.
func lineColor(i int, alpha float64) color.NRGBA {
	c := palette[i%len(palette)]
	c.A = uint8(math.Round(clamp01(alpha) * 255))
	return c
}

// hexColor renders c as "#rrggbb" for the HTML chart; opacity is passed
// separately there.
func hexColor(c color.NRGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// generateColors spaces n hues evenly around the colour wheel.
func generateColors(n int) []color.NRGBA {
	if n <= 0 {
		return nil
	}
	colors := make([]color.NRGBA, n)
	for i := 0; i < n; i++ {
		hue := float64(i) / float64(n)
		r, g, b := hslToRGB(hue, 0.7, 0.45)
		colors[i] = color.NRGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

// hslToRGB converts HSL to RGB (0-255 range)
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	var rf, gf, bf float64

	if s == 0 {
		rf, gf, bf = l, l, l
	} else {
		var q float64
		if l < 0.5 {
			q = l * (1 + s)
		} else {
			q = l + s - l*s
		}
		p := 2*l - q
		rf = hueToRGB(p, q, h+1.0/3.0)
		gf = hueToRGB(p, q, h)
		bf = hueToRGB(p, q, h-1.0/3.0)
	}

	return uint8(math.Round(rf * 255)), uint8(math.Round(gf * 255)), uint8(math.Round(bf * 255))
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	switch {
	case t < 1.0/6.0:
		return p + (q-p)*6*t
	case t < 1.0/2.0:
		return q
	case t < 2.0/3.0:
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
