package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/dayzy/notes/canvas"
	"github.com/dayzy/notes/models"
)

const (
	pdfMargin = 10.0
	a4Width   = 210.0
	a4Height  = 297.0
)

func PDFFileName(title string) string {
	return strings.TrimSuffix(PageFileName(title, 0), "_p1.png") + ".pdf"
}

// WriteNotePDF writes one A4 page per note page, each holding the flattened
// bitmap scaled to fit inside the margins.
func WriteNotePDF(ctx context.Context, w io.Writer, note models.Note, fetch canvas.Fetcher) error {
	p := gofpdf.New("P", "mm", "A4", "")
	p.SetTitle(note.Title, true)
	p.SetCreator("DayZy", true)

	imgW, imgH := fitInto(float64(canvas.DefaultWidth), float64(canvas.DefaultHeight),
		a4Width-2*pdfMargin, a4Height-2*pdfMargin)
	x := (a4Width - imgW) / 2
	y := (a4Height - imgH) / 2

	for i, page := range note.Pages {
		if err := ctx.Err(); err != nil {
			return err
		}

		img, err := canvas.Compose(ctx, page, note.TextObjects, canvas.DefaultWidth, canvas.DefaultHeight, fetch)
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := canvas.EncodePNG(&buf, img); err != nil {
			return err
		}

		name := fmt.Sprintf("page%d", i+1)
		opts := gofpdf.ImageOptions{ImageType: "PNG"}
		p.RegisterImageOptionsReader(name, opts, &buf)

		p.AddPage()
		p.ImageOptions(name, x, y, imgW, imgH, false, opts, 0, "")
	}

	if err := p.Error(); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return p.Output(w)
}

// fitInto scales w x h to the largest size inside maxW x maxH keeping the
// aspect ratio.
func fitInto(w, h, maxW, maxH float64) (float64, float64) {
	scale := min(maxW/w, maxH/h)
	return w * scale, h * scale
}
