package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/dayzy/notes/cache"
	"github.com/dayzy/notes/mq"
	"github.com/dayzy/notes/store"
)

// Allow up to 5 minutes to remove every note of an account
const visibilityTimeout = 300

// Messages that keep failing are dropped after this many deliveries
const maxReceives = 5

type ShareCleanupConsumer struct {
	queue      mq.MessageQueue
	notesStore store.NotesStore
	notesCache cache.NotesCache
}

func NewShareCleanupConsumer(queue mq.MessageQueue, notesStore store.NotesStore, notesCache cache.NotesCache) *ShareCleanupConsumer {
	return &ShareCleanupConsumer{
		queue:      queue,
		notesStore: notesStore,
		notesCache: notesCache,
	}
}

func (c *ShareCleanupConsumer) Run(shutdownCtx context.Context) {
	for {
		msg, err := c.queue.Receive(shutdownCtx, visibilityTimeout)

		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			log.Printf("shareCleanupConsumer receive error: %v", err)
			continue
		}

		if msg == nil {
			continue
		}

		c.process(msg)
	}
}

func (c *ShareCleanupConsumer) process(msg *mq.Message) {
	req, err := mq.DecodeCleanup(msg.Body)
	if err != nil || req.OwnerId == "" {
		log.Printf("Dropping malformed cleanup message: %q", msg.Body)
		c.ack(msg)
		return
	}

	// timeout should be a little less than queue visibility timeout
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(visibilityTimeout-1)*time.Second)
	defer cancel()

	if err := c.Handle(ctx, req); err != nil {
		if msg.ReceiveCount >= maxReceives {
			log.Printf("Giving up on cleanup for owner %s after %d attempts: %v", req.OwnerId, msg.ReceiveCount, err)
			c.ack(msg)
			return
		}
		log.Printf("Cleanup for owner %s failed, will retry: %v", req.OwnerId, err)
		delay := int32(30 * max(msg.ReceiveCount, 1))
		if err := c.queue.Retry(context.Background(), msg, delay); err != nil {
			log.Printf("shareCleanupConsumer retry error: %v", err)
		}
		return
	}

	c.ack(msg)
}

func (c *ShareCleanupConsumer) ack(msg *mq.Message) {
	if err := c.queue.Delete(context.Background(), msg); err != nil {
		log.Printf("shareCleanupConsumer delete error: %v", err)
	}
}

// Handle removes the publications named by req. With DeleteAll it also
// removes every note and task of the owner.
func (c *ShareCleanupConsumer) Handle(ctx context.Context, req mq.CleanupRequest) error {
	codes := append([]string{}, req.Codes...)

	var noteIds []string
	if req.DeleteAll {
		notes, err := c.notesStore.GetNotes(ctx, req.OwnerId)
		if err != nil {
			return err
		}
		for _, n := range notes {
			noteIds = append(noteIds, n.Id)
			if n.ShareCode != "" {
				codes = append(codes, n.ShareCode)
			}
		}
	}

	deleted := make([]string, 0, len(codes))
	seen := make(map[string]bool, len(codes))
	for _, code := range codes {
		if seen[code] {
			continue
		}
		seen[code] = true

		err := c.notesStore.DeletePublication(ctx, code)
		if err != nil && !errors.Is(err, store.ErrItemNotFound) {
			return err
		}
		deleted = append(deleted, code)
	}

	if len(deleted) > 0 {
		if err := c.notesCache.InvalidatePublications(ctx, deleted); err != nil {
			log.Printf("Failed to invalidate publications: %v", err)
		}
		for _, code := range deleted {
			event, _ := json.Marshal(cache.ShareEvent{Type: cache.ShareEventDeleted, Code: code})
			if err := c.notesCache.Publish(ctx, cache.ShareChannel(code), event); err != nil {
				log.Printf("Failed to announce deletion of %s: %v", code, err)
			}
		}
	}

	if !req.DeleteAll {
		return nil
	}

	for _, id := range noteIds {
		if err := c.notesStore.DeleteNote(ctx, req.OwnerId, id); err != nil && !errors.Is(err, store.ErrItemNotFound) {
			return err
		}
	}

	tasks, err := c.notesStore.GetTasks(ctx, req.OwnerId)
	if err != nil {
		return err
	}
	for _, task := range tasks {
		if err := c.notesStore.DeleteTask(ctx, req.OwnerId, task.Id); err != nil && !errors.Is(err, store.ErrItemNotFound) {
			return err
		}
	}

	log.Printf("Removed %d notes, %d publications and %d tasks of owner %s", len(noteIds), len(deleted), len(tasks), req.OwnerId)
	return nil
}
