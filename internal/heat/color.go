// Package heat grades amounts on a green to yellow to red scale
// normalized against a percentile clipped population.
package heat

import (
	"fmt"
	"math"
	"sort"
)

// Percentile selects the population value used as the top of the scale.
const Percentile = 0.99

// Color is an RGBA heat grade; A is the 0 to 1 opacity.
type Color struct {
	R uint8   `json:"r"`
	G uint8   `json:"g"`
	B uint8   `json:"b"`
	A float64 `json:"a"`
}

var (
	White      = Color{R: 255, G: 255, B: 255, A: 1}
	PaleYellow = Color{R: 255, G: 255, B: 200, A: 1}
)

// CSS renders rgb() for opaque colours and rgba() otherwise.
func (c Color) CSS() string {
	if c.A >= 1 {
		return fmt.Sprintf("rgb(%d, %d, %d)", c.R, c.G, c.B)
	}
	return fmt.Sprintf("rgba(%d, %d, %d, %g)", c.R, c.G, c.B, c.A)
}

// Opaque blends c over a white background.
func (c Color) Opaque() Color {
	if c.A >= 1 {
		return c
	}
	a := math.Max(0, c.A)
	blend := func(v uint8) uint8 { return channel(a*float64(v) + (1-a)*255) }
	return Color{R: blend(c.R), G: blend(c.G), B: blend(c.B), A: 1}
}

func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Scale is the min and clipped max of a population. Build one with NewScale.
type Scale struct {
	min, max float64
	empty    bool
}

// NewScale sorts a copy of population; the caller's slice is left untouched.
func NewScale(population []float64) Scale {
	if len(population) == 0 {
		return Scale{empty: true}
	}
	sorted := make([]float64, len(population))
	copy(sorted, population)
	sort.Float64s(sorted)
	idx := int(math.Floor(Percentile * float64(len(sorted))))
	if idx > len(sorted)-1 {
		idx = len(sorted) - 1
	}
	return Scale{min: sorted[0], max: sorted[idx]}
}

func (s Scale) Min() float64 { return s.min }
func (s Scale) Max() float64 { return s.max }

// Color grades value against the scale.
func (s Scale) Color(value float64) Color {
	if s.empty || value <= 0 {
		return White
	}
	if s.min == s.max {
		return PaleYellow
	}
	t := (value - s.min) / (s.max - s.min)
	t = math.Max(0, math.Min(1, t))
	if t < 0.5 {
		return Color{R: channel(200 + 55*(t/0.5)), G: 255, B: 200, A: 0.3}
	}
	return Color{R: 255, G: channel(255 - 55*((t-0.5)/0.5)), B: 200, A: 0.9}
}

// Compute grades a single value. Prefer NewScale when colouring many values
// against the same population.
func Compute(value float64, population []float64) Color {
	return NewScale(population).Color(value)
}

// GrandTotal is the colour of a grand total cell, which never joins a population.
func GrandTotal() Color {
	return White
}

func channel(v float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(255, v))))
}
