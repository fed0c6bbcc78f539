package canvas

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"sync"

	"github.com/dayzy/notes/models"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

type faceKey struct {
	size   int
	bold   bool
	italic bool
}

var (
	fontsOnce sync.Once
	fonts     map[[2]bool]*opentype.Font
	fontsErr  error

	facesMu sync.Mutex
	faces   = map[faceKey]font.Face{}
)

func loadFonts() {
	sources := map[[2]bool][]byte{
		{false, false}: goregular.TTF,
		{true, false}:  gobold.TTF,
		{false, true}:  goitalic.TTF,
		{true, true}:   gobolditalic.TTF,
	}
	fonts = make(map[[2]bool]*opentype.Font, len(sources))
	for k, ttf := range sources {
		f, err := opentype.Parse(ttf)
		if err != nil {
			fontsErr = fmt.Errorf("parse font: %w", err)
			return
		}
		fonts[k] = f
	}
}

func labelFace(l models.TextLabel) (font.Face, error) {
	fontsOnce.Do(loadFonts)
	if fontsErr != nil {
		return nil, fontsErr
	}

	key := faceKey{size: models.ClampFontSize(l.FontSize), bold: l.Bold, italic: l.Italic}

	facesMu.Lock()
	defer facesMu.Unlock()

	if face, ok := faces[key]; ok {
		return face, nil
	}
	face, err := opentype.NewFace(fonts[[2]bool{key.bold, key.italic}], &opentype.FaceOptions{
		Size:    float64(key.size),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, err
	}
	faces[key] = face
	return face, nil
}

// Compose flattens a page and its labels onto a white background. Labels
// are drawn with their baseline at (X, Y).
func Compose(ctx context.Context, page models.Page, labels []models.TextLabel, width, height int, fetch Fetcher) (*image.RGBA, error) {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	fillWhite(dst)

	if !page.Blank() {
		img, err := DecodeImageData(ctx, page.ImageData, dst.Bounds().Size(), fetch)
		if err != nil {
			return nil, err
		}
		draw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, draw.Over)
	}

	for _, l := range labels {
		if err := DrawLabel(dst, l); err != nil {
			return nil, err
		}
	}
	return dst, nil
}

func DrawLabel(dst draw.Image, l models.TextLabel) error {
	face, err := labelFace(l)
	if err != nil {
		return err
	}
	c, err := ParseHexColor(l.Color)
	if err != nil {
		c, _ = ParseHexColor(models.DefaultColor)
	}

	facesMu.Lock()
	defer facesMu.Unlock()

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(int(l.X), int(l.Y)),
	}
	d.DrawString(l.Text)
	return nil
}
