package service

import (
	"context"
	"errors"
	"time"

	"github.com/dayzy/notes/models"
	"github.com/dayzy/notes/notesync"
	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
)

const (
	ticketAudience = "dayzy-editor"
	ticketTTL      = time.Minute
)

var ErrTicketScope = errors.New("ticket names neither a note nor a share")

// EditorTicket admits one websocket to one editor. It names either the
// owner's note or a share code, never both. Viewer tickets carry the
// viewer's identity only when they were signed in.
type EditorTicket struct {
	NoteId     string `json:"note,omitempty"`
	ShareCode  string `json:"share,omitempty"`
	Provider   string `json:"provider,omitempty"`
	ProviderId string `json:"providerId,omitempty"`
	jwt.RegisteredClaims
}

func (s *Service) issueTicket(t EditorTicket) (string, error) {
	now := s.Now()
	t.Issuer = tokenIssuer
	t.Audience = jwt.ClaimStrings{ticketAudience}
	t.IssuedAt = jwt.NewNumericDate(now)
	t.ExpiresAt = jwt.NewNumericDate(now.Add(ticketTTL))
	t.ID = uuid.Must(uuid.NewV4()).String()
	return s.sign(t)
}

// IssueNoteTicket lets the owner open their note in an editor.
func (s *Service) IssueNoteTicket(ctx context.Context, user models.User, noteId string) (string, error) {
	if _, err := s.GetNote(ctx, user, noteId); err != nil {
		return "", err
	}
	return s.issueTicket(EditorTicket{
		NoteId:           noteId,
		Provider:         user.Provider,
		ProviderId:       user.ProviderId,
		RegisteredClaims: jwt.RegisteredClaims{Subject: user.Id},
	})
}

// IssueShareTicket lets anyone holding a share code open the shared note.
// viewer is the zero User for anonymous visitors.
func (s *Service) IssueShareTicket(ctx context.Context, viewer models.User, code string) (string, error) {
	pub, err := s.GetPublication(ctx, code)
	if err != nil {
		return "", err
	}
	return s.issueTicket(EditorTicket{
		ShareCode:        pub.Code,
		Provider:         viewer.Provider,
		ProviderId:       viewer.ProviderId,
		RegisteredClaims: jwt.RegisteredClaims{Subject: viewer.Id},
	})
}

// ResolveTicket verifies a ticket and loads the user it was issued to.
func (s *Service) ResolveTicket(ctx context.Context, raw string) (EditorTicket, models.User, error) {
	var t EditorTicket
	if err := s.parse(raw, ticketAudience, &t); err != nil {
		return EditorTicket{}, models.User{}, err
	}
	if (t.NoteId == "") == (t.ShareCode == "") {
		return EditorTicket{}, models.User{}, ErrTicketScope
	}
	if t.Provider == "" {
		if t.NoteId != "" {
			return EditorTicket{}, models.User{}, ErrInvalidToken
		}
		return t, models.User{}, nil
	}

	user, err := s.lookupUser(ctx, t.Subject, t.Provider, t.ProviderId)
	if err != nil {
		return EditorTicket{}, models.User{}, err
	}
	return t, user, nil
}

// OpenEditor opens the session a resolved ticket names.
func (s *Service) OpenEditor(ctx context.Context, t EditorTicket, user models.User, listener notesync.Listener) (*notesync.Loop, error) {
	if t.NoteId != "" {
		return s.OpenOwnerSession(ctx, user, t.NoteId, listener)
	}
	return s.OpenViewerSession(ctx, t.ShareCode, listener)
}
