package mq

import (
	"context"
	"encoding/json"
)

type MessageQueue interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, visibilityTimeout int32) (*Message, error)
	Delete(ctx context.Context, msg *Message) error
	// Retry makes msg visible again after delaySeconds.
	Retry(ctx context.Context, msg *Message, delaySeconds int32) error
}

type Message struct {
	Id   string
	Body string
	// ReceiveCount is how many times the queue has handed out this message.
	ReceiveCount int
}

// CleanupRequest asks the cleanup worker to remove share publications.
// DeleteAll removes every note and publication of the owner.
type CleanupRequest struct {
	OwnerId   string   `json:"ownerId"`
	Codes     []string `json:"codes,omitempty"`
	DeleteAll bool     `json:"deleteAll,omitempty"`
}

func EncodeCleanup(req CleanupRequest) (string, error) {
	b, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func DecodeCleanup(body string) (CleanupRequest, error) {
	var req CleanupRequest
	err := json.Unmarshal([]byte(body), &req)
	return req, err
}
