package service

import (
	"context"
	"errors"

	"github.com/dayzy/notes/canvas"
	"github.com/dayzy/notes/editor"
	"github.com/dayzy/notes/models"
	"github.com/dayzy/notes/notesync"
	"github.com/dayzy/notes/store"
)

// syncStore is the persistence an editor loop writes through. Publication
// writes also refresh the cache and announce the change.
type syncStore struct {
	s *Service
}

func (p syncStore) SaveNotes(ctx context.Context, ownerId string, notes []models.Note, fields []string) error {
	return p.s.Store.SaveNotes(ctx, ownerId, notes, fields)
}

func (p syncStore) GetPublication(ctx context.Context, code string) (models.SharePublication, error) {
	return p.s.Store.GetPublication(ctx, code)
}

func (p syncStore) CreatePublication(ctx context.Context, pub models.SharePublication) (bool, error) {
	created, err := p.s.Store.CreatePublication(ctx, pub)
	if created {
		p.s.publicationChanged(ctx, pub)
	}
	return created, err
}

func (p syncStore) SetPublication(ctx context.Context, pub models.SharePublication, fields []string) error {
	if err := p.s.Store.SetPublication(ctx, pub, fields); err != nil {
		return err
	}
	p.s.publicationChanged(ctx, pub)
	return nil
}

func (s *Service) newLoop(note models.Note, role editor.Role, listener notesync.Listener) *notesync.Loop {
	session := editor.NewSession(note, editor.Options{
		Role:   role,
		Width:  canvas.DefaultWidth,
		Height: canvas.DefaultHeight,
		Fetch:  s.Fetch,
	})
	return notesync.NewLoop(session, syncStore{s: s}, listener, s.SyncConfig)
}

// OpenOwnerSession opens the user's own note for editing. The caller runs
// the returned loop and closes it when the editor goes away.
func (s *Service) OpenOwnerSession(ctx context.Context, user models.User, noteId string, listener notesync.Listener) (*notesync.Loop, error) {
	note, err := s.GetNote(ctx, user, noteId)
	if err != nil {
		return nil, err
	}
	return s.newLoop(note, editor.RoleOwner, listener), nil
}

// OpenViewerSession opens a shared note by code. Viewer edits go straight
// to the publication and cannot be undone.
func (s *Service) OpenViewerSession(ctx context.Context, code string, listener notesync.Listener) (*notesync.Loop, error) {
	code, err := normalizeShareCode(code)
	if err != nil {
		return nil, err
	}

	pub, err := s.Store.GetPublication(ctx, code)
	if errors.Is(err, store.ErrItemNotFound) {
		return nil, ErrShareNotFound
	}
	if err != nil {
		return nil, err
	}

	note := models.Note{
		Id:          pub.NoteId,
		OwnerId:     pub.OwnerId,
		Title:       pub.Title,
		Pages:       pub.Pages,
		TextObjects: pub.TextObjects,
		ShareCode:   pub.Code,
		CreatedAt:   pub.CreatedAt,
		UpdatedAt:   pub.UpdatedAt,
	}
	return s.newLoop(note, editor.RoleViewer, listener), nil
}
