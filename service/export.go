package service

import (
	"context"
	"io"

	"github.com/dayzy/notes/export"
	"github.com/dayzy/notes/models"
)

// ExportDataset writes every task and note of the user in format f.
func (s *Service) ExportDataset(ctx context.Context, user models.User, f export.Format, w io.Writer) error {
	tasks, err := s.Store.GetTasks(ctx, user.Id)
	if err != nil {
		return err
	}
	notes, err := s.Store.GetNotes(ctx, user.Id)
	if err != nil {
		return err
	}
	return export.Write(w, export.NewDataset(tasks, notes, s.ShareLink), f)
}

// ExportPage writes one page of a note, labels included, as PNG and
// returns the download file name.
func (s *Service) ExportPage(ctx context.Context, user models.User, noteId string, page int, w io.Writer) (string, error) {
	note, err := s.GetNote(ctx, user, noteId)
	if err != nil {
		return "", err
	}
	if err := export.WritePagePNG(ctx, w, note, page, s.Fetch); err != nil {
		return "", err
	}
	return export.PageFileName(note.Title, page), nil
}

// ExportPDF writes the whole note as a PDF and returns the file name.
func (s *Service) ExportPDF(ctx context.Context, user models.User, noteId string, w io.Writer) (string, error) {
	note, err := s.GetNote(ctx, user, noteId)
	if err != nil {
		return "", err
	}
	if err := export.WriteNotePDF(ctx, w, note, s.Fetch); err != nil {
		return "", err
	}
	return export.PDFFileName(note.Title), nil
}
