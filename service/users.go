package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/dayzy/notes/models"
	"github.com/dayzy/notes/mq"
)

// UserDeletedChannel carries UserDeletedMessage so every instance can drop
// the user's open editors.
const UserDeletedChannel = "user-deleted"

type UserDeletedMessage struct {
	UserId string `json:"userId"`
}

// DeleteUser removes the profile, then queues removal of every note, task
// and publication the user owns.
func (s *Service) DeleteUser(ctx context.Context, user models.User) error {
	if err := s.Store.DeleteUser(ctx, user.Provider, user.ProviderId); err != nil {
		return err
	}

	// Async side-effects - return to caller as soon as the store operation is done
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if msg, err := json.Marshal(UserDeletedMessage{UserId: user.Id}); err == nil {
			if err := s.Cache.Publish(ctx, UserDeletedChannel, msg); err != nil {
				log.Printf("Failed to announce deletion of user %s: %v", user.Id, err)
			}
		}

		body, err := mq.EncodeCleanup(mq.CleanupRequest{OwnerId: user.Id, DeleteAll: true})
		if err != nil {
			return
		}
		if err := s.MQ.Send(ctx, body); err != nil {
			log.Printf("Failed to queue cleanup for user %s: %v", user.Id, err)
		}
	}()

	return nil
}
