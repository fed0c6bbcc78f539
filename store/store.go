package store

import (
	"context"
	"errors"

	"github.com/dayzy/notes/models"
)

// NotesStore is the document persistence adapter. Writes that take a field
// list merge: only the named fields are written and a missing document is
// created. A nil field list writes the whole document.
type NotesStore interface {
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	GetUser(ctx context.Context, provider string, providerId string) (models.User, error)
	DeleteUser(ctx context.Context, provider string, providerId string) error

	// GetNotes returns the owner's notes, most recently updated first.
	GetNotes(ctx context.Context, ownerId string) ([]models.Note, error)
	GetNote(ctx context.Context, ownerId string, noteId string) (models.Note, error)
	SaveNotes(ctx context.Context, ownerId string, notes []models.Note, fields []string) error
	DeleteNote(ctx context.Context, ownerId string, noteId string) error

	GetPublication(ctx context.Context, code string) (models.SharePublication, error)
	// CreatePublication writes pub only if its code is unused and reports
	// whether it did.
	CreatePublication(ctx context.Context, pub models.SharePublication) (bool, error)
	// SetPublication merges fields into an existing publication. A removed
	// publication stays removed: ErrItemNotFound is returned instead.
	SetPublication(ctx context.Context, pub models.SharePublication, fields []string) error
	DeletePublication(ctx context.Context, code string) error

	GetTasks(ctx context.Context, owner string) ([]models.Task, error)
	CreateTask(ctx context.Context, task models.Task) error
	UpdateTask(ctx context.Context, task models.Task, fields []string) error
	DeleteTask(ctx context.Context, owner string, taskId string) error
}

// Custom error types for clarity
var (
	ErrItemNotFound    = errors.New("item does not exist")
	ErrConditionFailed = errors.New("condition not met")
)
