package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/gofrs/uuid/v5"

	"github.com/dayzy/notes/models"
	"github.com/dayzy/notes/mq"
	"github.com/dayzy/notes/store"
)

var ErrNoteNotFound = errors.New("note not found")

func (s *Service) ListNotes(ctx context.Context, user models.User) ([]models.Note, error) {
	return s.Store.GetNotes(ctx, user.Id)
}

func (s *Service) GetNote(ctx context.Context, user models.User, noteId string) (models.Note, error) {
	if err := ValidateNoteId(noteId); err != nil {
		return models.Note{}, err
	}
	note, err := s.Store.GetNote(ctx, user.Id, noteId)
	if errors.Is(err, store.ErrItemNotFound) {
		return models.Note{}, ErrNoteNotFound
	}
	return note, err
}

// CreateNote adds an untitled note holding one blank page.
func (s *Service) CreateNote(ctx context.Context, user models.User) (models.Note, error) {
	existing, err := s.Store.GetNotes(ctx, user.Id)
	if err != nil {
		return models.Note{}, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return models.Note{}, err
	}

	now := s.Now().UTC()
	note := models.Note{
		Id:          id.String(),
		OwnerId:     user.Id,
		Title:       fmt.Sprintf("Note %d", len(existing)+1),
		Pages:       []models.Page{{}},
		TextObjects: []models.TextLabel{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.Store.SaveNotes(ctx, user.Id, []models.Note{note}, nil); err != nil {
		return models.Note{}, err
	}
	return note, nil
}

// RenameNote sets the title. A blank title leaves the note unchanged.
func (s *Service) RenameNote(ctx context.Context, user models.User, noteId string, title string) (models.Note, error) {
	note, err := s.GetNote(ctx, user, noteId)
	if err != nil {
		return models.Note{}, err
	}

	title, ok := NormalizeTitle(title)
	if !ok || title == note.Title {
		return note, nil
	}

	note.Title = title
	note.UpdatedAt = s.Now().UTC()
	fields := []string{models.FieldTitle, models.FieldUpdatedAt}
	if err := s.Store.SaveNotes(ctx, user.Id, []models.Note{note}, fields); err != nil {
		return models.Note{}, err
	}
	return note, nil
}

// DeleteNote removes the owner's copy right away and queues removal of its
// publication.
func (s *Service) DeleteNote(ctx context.Context, user models.User, noteId string) error {
	note, err := s.GetNote(ctx, user, noteId)
	if err != nil {
		return err
	}

	if err := s.Store.DeleteNote(ctx, user.Id, noteId); err != nil {
		return err
	}

	if note.ShareCode == "" {
		return nil
	}

	body, err := mq.EncodeCleanup(mq.CleanupRequest{OwnerId: user.Id, Codes: []string{note.ShareCode}})
	if err != nil {
		return err
	}
	if err := s.MQ.Send(ctx, body); err != nil {
		log.Printf("Failed to queue removal of publication %s: %v", note.ShareCode, err)
	}
	return nil
}
