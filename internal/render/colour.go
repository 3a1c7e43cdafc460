// Package render turns kinematic samples into charts and map models.
package render

import (
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"
)

// SpeedScale maps speeds onto a cool-to-warm colour ramp.
type SpeedScale struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Avg  float64 `json:"avg"`
	cmap palette.ColorMap
}

// NewSpeedScale builds a scale over [min, max]. A degenerate range is widened
// so every speed still maps to a colour.
func NewSpeedScale(lo, hi, avg float64) *SpeedScale {
	cmap := moreland.SmoothBlueRed()
	top := hi
	if !(top > lo) {
		top = lo + 1
	}
	cmap.SetMax(top)
	cmap.SetMin(lo)
	return &SpeedScale{Min: lo, Max: hi, Avg: avg, cmap: cmap}
}

// Color returns the ramp colour for speed, clamped to the scale.
func (s *SpeedScale) Color(speed float64) color.Color {
	v := math.Min(math.Max(speed, s.cmap.Min()), s.cmap.Max())
	c, err := s.cmap.At(v)
	if err != nil {
		return color.Gray{Y: 128}
	}
	return c
}

// Hex returns Color as a #rrggbb string.
func (s *SpeedScale) Hex(speed float64) string {
	return hex(s.Color(speed))
}

// Ramp returns n evenly spaced ramp colours from slow to fast.
func (s *SpeedScale) Ramp(n int) []string {
	out := make([]string, 0, n)
	for _, c := range s.cmap.Palette(n).Colors() {
		out = append(out, hex(c))
	}
	return out
}

func hex(c color.Color) string {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return fmt.Sprintf("#%02x%02x%02x", n.R, n.G, n.B)
}
