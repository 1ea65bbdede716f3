package render

import (
	"image"
	"image/color"
	"math"

	"github.com/cwbudde/cogstim/internal/dots"
	"github.com/disintegration/imaging"
)

// Renderer rasterizes point sets onto square canvases.
type Renderer struct {
	palette   Palette
	oneColour bool
}

// NewRenderer creates a renderer. In one-colour mode every circle is drawn
// with the primary colour.
func NewRenderer(p Palette, oneColour bool) *Renderer {
	return &Renderer{palette: p, oneColour: oneColour}
}

// Palette returns the renderer colours.
func (r *Renderer) Palette() Palette {
	return r.palette
}

// Render draws every circle of set as a filled disc on a fresh canvas.
func (r *Renderer) Render(set dots.PointSet) *image.NRGBA {
	size := set.Canvas().Size
	img := imaging.New(size, size, r.palette.Background)

	for i := 0; i < set.Len(); i++ {
		c := set.At(i)
		fillCircle(img, c, r.colour(c.Group))
	}
	return img
}

func (r *Renderer) colour(g dots.Group) color.NRGBA {
	if g == dots.Secondary && !r.oneColour {
		return r.palette.Secondary
	}
	return r.palette.Primary
}

// fillCircle composites a disc onto the image, scanning its bounding box.
func fillCircle(img *image.NRGBA, c dots.Circle, col color.NRGBA) {
	b := img.Bounds()
	x, y, rad := c.Center.X, c.Center.Y, c.Radius

	minX := int(math.Max(float64(b.Min.X), math.Floor(x-rad)))
	maxX := int(math.Min(float64(b.Max.X-1), math.Ceil(x+rad)))
	minY := int(math.Max(float64(b.Min.Y), math.Floor(y-rad)))
	maxY := int(math.Min(float64(b.Max.Y-1), math.Ceil(y+rad)))

	r2 := rad * rad
	for py := minY; py <= maxY; py++ {
		for px := minX; px <= maxX; px++ {
			dx := float64(px) - x
			dy := float64(py) - y
			if dx*dx+dy*dy > r2 {
				continue
			}
			blend(img, px, py, col)
		}
	}
}

// blend applies col over the pixel at (x, y) with the Porter-Duff "over"
// operator. Opaque colours simply overwrite.
func blend(img *image.NRGBA, x, y int, col color.NRGBA) {
	i := img.PixOffset(x, y)
	if col.A == 255 {
		img.Pix[i+0], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = col.R, col.G, col.B, 255
		return
	}

	fgA := float64(col.A) / 255
	bgA := float64(img.Pix[i+3]) / 255
	outA := fgA + bgA*(1-fgA)
	if outA == 0 {
		return
	}

	mix := func(fg uint8, bg uint8) uint8 {
		v := (float64(fg)/255*fgA + float64(bg)/255*bgA*(1-fgA)) / outA
		return uint8(math.Round(v * 255))
	}
	img.Pix[i+0] = mix(col.R, img.Pix[i+0])
	img.Pix[i+1] = mix(col.G, img.Pix[i+1])
	img.Pix[i+2] = mix(col.B, img.Pix[i+2])
	img.Pix[i+3] = uint8(math.Round(outA * 255))
}
