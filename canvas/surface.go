// Package canvas renders freehand strokes onto a page bitmap and converts
// bitmaps to and from data URLs.
package canvas

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"log"
	"sync"
	"time"

	"github.com/dayzy/notes/models"
)

const (
	DefaultWidth  = 700
	DefaultHeight = 900

	loadTimeout = 10 * time.Second
)

type Tool int

const (
	ToolDraw Tool = iota
	ToolErase
	ToolText
)

func (t Tool) String() string {
	switch t {
	case ToolDraw:
		return "draw"
	case ToolErase:
		return "erase"
	case ToolText:
		return "text"
	}
	return "unknown"
}

func ParseTool(s string) (Tool, bool) {
	switch s {
	case "draw":
		return ToolDraw, true
	case "erase":
		return ToolErase, true
	case "text":
		return ToolText, true
	}
	return 0, false
}

var (
	ErrInvalidTool = errors.New("strokes need the draw or erase tool")
	ErrNotStroking = errors.New("no stroke in progress")
)

// Brush is the stroke configuration captured when a stroke begins.
type Brush struct {
	Tool  Tool
	Color color.RGBA
	Size  float64
}

// Surface is the bitmap of the current page. All methods are safe for
// concurrent use; page loads decode in the background and only the most
// recent load is applied.
type Surface struct {
	mu       sync.Mutex
	img      *image.RGBA
	raster   *rasterizer
	fetch    Fetcher
	stroking bool
	brush    Brush
	last     models.Point

	generation uint64
	loading    chan struct{}
}

func NewSurface(width, height int, fetch Fetcher) *Surface {
	s := &Surface{
		img:    image.NewRGBA(image.Rect(0, 0, width, height)),
		raster: newRasterizer(width, height),
		fetch:  fetch,
	}
	fillWhite(s.img)
	return s
}

func (s *Surface) Bounds() image.Rectangle {
	return s.img.Bounds()
}

// LoadPage replaces the surface contents with page. A blank page fills
// white immediately. Otherwise the surface is cleared and the image is
// decoded asynchronously; the returned channel closes when this load has
// finished or has been superseded. Decode failures leave a white surface.
func (s *Surface) LoadPage(page models.Page) <-chan struct{} {
	done := make(chan struct{})

	s.mu.Lock()
	s.generation++
	gen := s.generation
	size := s.img.Bounds().Size()
	s.stroking = false

	if page.Blank() {
		fillWhite(s.img)
		s.loading = nil
		s.mu.Unlock()
		close(done)
		return done
	}

	clear(s.img.Pix)
	s.loading = done
	s.mu.Unlock()

	go func() {
		defer close(done)

		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()
		img, err := DecodeImageData(ctx, page.ImageData, size, s.fetch)

		s.mu.Lock()
		defer s.mu.Unlock()

		if gen != s.generation {
			return
		}
		if err != nil {
			log.Printf("Failed to load page image: %v", err)
			fillWhite(s.img)
		} else {
			draw.Draw(s.img, s.img.Bounds(), img, img.Bounds().Min, draw.Src)
		}
		s.loading = nil
	}()

	return done
}

// Wait blocks until no page load is pending.
func (s *Surface) Wait() {
	for {
		s.mu.Lock()
		ch := s.loading
		s.mu.Unlock()
		if ch == nil {
			return
		}
		<-ch
	}
}

// Loading reports whether a page decode is still pending.
func (s *Surface) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading != nil
}

// BeginStroke records the starting point of a stroke. Nothing is painted
// until the pointer moves.
func (s *Surface) BeginStroke(p models.Point, brush Brush) error {
	if brush.Tool != ToolDraw && brush.Tool != ToolErase {
		return ErrInvalidTool
	}
	s.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stroking = true
	s.brush = brush
	s.last = p
	return nil
}

// ExtendStroke paints from the last point to p, or clears a square around p
// in erase mode. It returns false when no stroke is in progress.
func (s *Surface) ExtendStroke(p models.Point) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.stroking {
		return false
	}
	switch s.brush.Tool {
	case ToolDraw:
		s.raster.strokeSegment(s.img, s.brush.Color, s.last, p, s.brush.Size)
	case ToolErase:
		eraseSquare(s.img, p, s.brush.Size)
	}
	s.last = p
	return true
}

// EndStroke finishes the stroke and returns the encoded surface.
func (s *Surface) EndStroke() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.stroking {
		return "", ErrNotStroking
	}
	s.stroking = false
	return EncodeDataURL(s.img)
}

func (s *Surface) Stroking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stroking
}

// Encode returns the current surface as a data URL.
func (s *Surface) Encode() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return EncodeDataURL(s.img)
}

// Image returns a copy of the current bitmap.
func (s *Surface) Image() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := image.NewRGBA(s.img.Bounds())
	copy(out.Pix, s.img.Pix)
	return out
}
