package service

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"

	"github.com/dayzy/notes/cache"
	"github.com/dayzy/notes/models"
	"github.com/dayzy/notes/notesync"
	"github.com/dayzy/notes/store"
)

var (
	ErrInvalidShareCode = notesync.ErrInvalidShareCode
	ErrShareNotFound    = errors.New("shared note not found")
)

func (s *Service) ShareLink(code string) string {
	return notesync.ShareLink(s.Origin, code)
}

func (s *Service) ParseShareCode(link string) (string, error) {
	return notesync.ParseShareCode(link)
}

func normalizeShareCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !models.ValidShareCode(code) {
		return "", ErrInvalidShareCode
	}
	return code, nil
}

// GetPublication reads a publication through the cache. Editor loops poll
// the store directly; this path serves read-only fetches.
func (s *Service) GetPublication(ctx context.Context, code string) (models.SharePublication, error) {
	code, err := normalizeShareCode(code)
	if err != nil {
		return models.SharePublication{}, err
	}

	data, err := s.Cache.GetPublication(ctx, code)
	switch {
	case err == nil:
		var pub models.SharePublication
		if err := json.Unmarshal(data, &pub); err == nil {
			return pub, nil
		}
		log.Printf("Dropping unreadable cached publication %s", code)
	case !errors.Is(err, cache.ErrCacheMiss):
		log.Printf("Failed to read cached publication %s: %v", code, err)
	}

	pub, err := s.Store.GetPublication(ctx, code)
	if errors.Is(err, store.ErrItemNotFound) {
		return models.SharePublication{}, ErrShareNotFound
	}
	if err != nil {
		return models.SharePublication{}, err
	}

	if data, err := json.Marshal(pub); err == nil {
		if err := s.Cache.SetPublication(ctx, code, data); err != nil {
			log.Printf("Failed to cache publication %s: %v", code, err)
		}
	}
	return pub, nil
}

// PublishNote shares a note that has no open editor and returns its code.
func (s *Service) PublishNote(ctx context.Context, user models.User, noteId string) (string, error) {
	loop, err := s.OpenOwnerSession(ctx, user, noteId, nil)
	if err != nil {
		return "", err
	}
	return loop.Publish(ctx, user.Username)
}

// publicationChanged drops the cached copy and lets subscribed editors know.
func (s *Service) publicationChanged(ctx context.Context, pub models.SharePublication) {
	if err := s.Cache.InvalidatePublications(ctx, []string{pub.Code}); err != nil {
		log.Printf("Failed to invalidate publication %s: %v", pub.Code, err)
	}
	if s.ShareNotifier != nil {
		s.ShareNotifier.Notify(pub.Code, pub.UpdatedAt)
	}
}
