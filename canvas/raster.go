package canvas

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strconv"

	"github.com/dayzy/notes/models"
	"golang.org/x/image/vector"
)

const capSegments = 24

var ErrInvalidColor = errors.New("invalid color")

// ParseHexColor parses "#RRGGBB".
func ParseHexColor(s string) (color.RGBA, error) {
	if !models.ValidColor(s) {
		return color.RGBA{}, ErrInvalidColor
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return color.RGBA{}, ErrInvalidColor
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

type rasterizer struct {
	z *vector.Rasterizer
}

func newRasterizer(w, h int) *rasterizer {
	return &rasterizer{z: vector.NewRasterizer(w, h)}
}

// fillPolygon composites a closed polygon onto dst. Each shape gets its own
// pass so overlapping shapes of opposite winding never cancel out.
func (r *rasterizer) fillPolygon(dst *image.RGBA, src image.Image, pts []models.Point) {
	if len(pts) < 3 {
		return
	}
	b := dst.Bounds()
	r.z.Reset(b.Dx(), b.Dy())
	r.z.DrawOp = draw.Over
	r.z.MoveTo(float32(pts[0].X), float32(pts[0].Y))
	for _, p := range pts[1:] {
		r.z.LineTo(float32(p.X), float32(p.Y))
	}
	r.z.ClosePath()
	r.z.Draw(dst, b, src, image.Point{})
}

func (r *rasterizer) fillCircle(dst *image.RGBA, src image.Image, c models.Point, radius float64) {
	if radius <= 0 {
		return
	}
	pts := make([]models.Point, capSegments)
	for i := range pts {
		a := 2 * math.Pi * float64(i) / capSegments
		pts[i] = models.Point{X: c.X + radius*math.Cos(a), Y: c.Y + radius*math.Sin(a)}
	}
	r.fillPolygon(dst, src, pts)
}

// strokeSegment draws a line from a to b of the given width with a round
// cap at b. Consecutive segments share caps, which gives round joins.
func (r *rasterizer) strokeSegment(dst *image.RGBA, c color.RGBA, a, b models.Point, width float64) {
	half := width / 2
	src := image.NewUniform(c)

	dx, dy := b.X-a.X, b.Y-a.Y
	length := math.Hypot(dx, dy)
	if length > 0 {
		nx, ny := -dy/length*half, dx/length*half
		r.fillPolygon(dst, src, []models.Point{
			{X: a.X + nx, Y: a.Y + ny},
			{X: b.X + nx, Y: b.Y + ny},
			{X: b.X - nx, Y: b.Y - ny},
			{X: a.X - nx, Y: a.Y - ny},
		})
	}
	r.fillCircle(dst, src, b, half)
}

// eraseSquare clears an axis-aligned square of side 2*size centred at p.
func eraseSquare(dst *image.RGBA, p models.Point, size float64) {
	rect := image.Rect(
		int(math.Floor(p.X-size)),
		int(math.Floor(p.Y-size)),
		int(math.Ceil(p.X+size)),
		int(math.Ceil(p.Y+size)),
	).Intersect(dst.Bounds())
	if rect.Empty() {
		return
	}
	draw.Draw(dst, rect, image.Transparent, image.Point{}, draw.Src)
}

func fillWhite(dst *image.RGBA) {
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
}
