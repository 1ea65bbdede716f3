package render

import (
	"fmt"
	"image/color"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// Palette holds the three colours of a stimulus image.
type Palette struct {
	Background color.NRGBA
	Primary    color.NRGBA
	Secondary  color.NRGBA
}

var named = map[string]color.NRGBA{
	"yellow": {R: 255, G: 255, B: 0, A: 255},
	"blue":   {R: 0, G: 0, B: 255, A: 255},
	"red":    {R: 255, G: 0, B: 0, A: 255},
	"green":  {R: 0, G: 128, B: 0, A: 255},
	"black":  {R: 0, G: 0, B: 0, A: 255},
	"white":  {R: 255, G: 255, B: 255, A: 255},
	"gray":   {R: 128, G: 128, B: 128, A: 255},
	"grey":   {R: 128, G: 128, B: 128, A: 255},
}

// ParseColour accepts a colour name (yellow, blue, red, green, black, white,
// gray) or a #rrggbb hex string.
func ParseColour(s string) (color.NRGBA, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if c, ok := named[key]; ok {
		return c, nil
	}
	if strings.HasPrefix(key, "#") {
		c, err := colorful.Hex(key)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("invalid hex colour %q: %w", s, err)
		}
		r, g, b := c.RGB255()
		return color.NRGBA{R: r, G: g, B: b, A: 255}, nil
	}
	return color.NRGBA{}, fmt.Errorf("unknown colour: %s", s)
}

// NewPalette parses the three colour names.
func NewPalette(background, primary, secondary string) (Palette, error) {
	var p Palette
	var err error
	if p.Background, err = ParseColour(background); err != nil {
		return Palette{}, fmt.Errorf("background: %w", err)
	}
	if p.Primary, err = ParseColour(primary); err != nil {
		return Palette{}, fmt.Errorf("primary: %w", err)
	}
	if p.Secondary, err = ParseColour(secondary); err != nil {
		return Palette{}, fmt.Errorf("secondary: %w", err)
	}
	return p, nil
}

// DefaultPalette is yellow and blue dots on black.
func DefaultPalette() Palette {
	return Palette{
		Background: named["black"],
		Primary:    named["yellow"],
		Secondary:  named["blue"],
	}
}
