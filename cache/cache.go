package cache

import (
	"context"
	"errors"
	"time"
)

var ErrCacheMiss = errors.New("cache miss")

const (
	ShareEventUpdated = "updated"
	ShareEventDeleted = "deleted"
)

// ShareEvent is published on a publication's channel whenever it changes.
type ShareEvent struct {
	Type      string `json:"type"`
	Code      string `json:"code"`
	UpdatedAt int64  `json:"updatedAt,omitempty"`
}

func ShareChannel(code string) string {
	return "share:" + code
}

type NotesCache interface {
	Publish(ctx context.Context, channel string, message []byte) error
	Subscribe(ctx context.Context, channel string, handler func(message []byte)) error

	// Publication read-through cache, keyed by share code.
	GetPublication(ctx context.Context, code string) ([]byte, error)
	SetPublication(ctx context.Context, code string, data []byte) error
	InvalidatePublications(ctx context.Context, codes []string) error

	// IncrementWindow counts a hit in the fixed window that key belongs to
	// and returns the count so far.
	IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, error)
}
