package export

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dayzy/notes/canvas"
	"github.com/dayzy/notes/models"
)

// PageFileName names a page export: title_pN.png, N counting from 1.
func PageFileName(title string, page int) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', '"', '\n', '\r':
			return '_'
		}
		return r
	}, strings.TrimSpace(title))
	if name == "" {
		name = "note"
	}
	return fmt.Sprintf("%s_p%d.png", name, page+1)
}

// WritePagePNG flattens one page and every label of the note into a PNG.
func WritePagePNG(ctx context.Context, w io.Writer, note models.Note, page int, fetch canvas.Fetcher) error {
	if page < 0 || page >= len(note.Pages) {
		return fmt.Errorf("page %d of %d: %w", page+1, len(note.Pages), ErrPageOutOfRange)
	}
	img, err := canvas.Compose(ctx, note.Pages[page], note.TextObjects, canvas.DefaultWidth, canvas.DefaultHeight, fetch)
	if err != nil {
		return err
	}
	return canvas.EncodePNG(w, img)
}
