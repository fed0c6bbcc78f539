package worker

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/dayzy/notes/cache"
)

type ShareUpdate struct {
	Code      string
	UpdatedAt time.Time
}

// ShareNotifier coalesces publication writes and announces each changed
// publication once per tick on its pub/sub channel, so connected sessions
// poll right away.
type ShareNotifier struct {
	UpdateCh           chan ShareUpdate
	notesCache         cache.NotesCache
	tickerMilliseconds int
}

func NewShareNotifier(notesCache cache.NotesCache, tickerMilliseconds int) *ShareNotifier {
	return &ShareNotifier{
		UpdateCh:           make(chan ShareUpdate, 1024),
		notesCache:         notesCache,
		tickerMilliseconds: tickerMilliseconds,
	}
}

// Notify queues an update without blocking. When the buffer is full the
// update is dropped; the regular poll still picks the change up.
func (n *ShareNotifier) Notify(code string, updatedAt time.Time) {
	select {
	case n.UpdateCh <- ShareUpdate{Code: code, UpdatedAt: updatedAt}:
	default:
	}
}

func (n *ShareNotifier) Run(shutdownCtx context.Context) {
	ticker := time.NewTicker(time.Duration(n.tickerMilliseconds) * time.Millisecond)
	defer ticker.Stop()

	// Latest update per share code
	latest := make(map[string]time.Time)

	flush := func() {
		for code, updatedAt := range latest {
			event, _ := json.Marshal(cache.ShareEvent{
				Type:      cache.ShareEventUpdated,
				Code:      code,
				UpdatedAt: updatedAt.UnixMilli(),
			})
			go func(channel string, msg []byte) {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := n.notesCache.Publish(ctx, channel, msg); err != nil {
					log.Printf("Failed to announce update of %s: %v", channel, err)
				}
			}(cache.ShareChannel(code), event)
		}
		clear(latest)
	}

	for {
		select {
		case update := <-n.UpdateCh:
			if update.UpdatedAt.After(latest[update.Code]) {
				latest[update.Code] = update.UpdatedAt
			}

			if len(latest) >= 100 {
				flush()
			}

		case <-ticker.C:
			flush()

		case <-shutdownCtx.Done():
			flush()
			return
		}
	}
}
