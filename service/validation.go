package service

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gofrs/uuid/v5"
)

const (
	maxTitleLength   = 200
	maxMessageLength = 2000
	dateLayout       = "2006-01-02"
)

var (
	ErrInvalidNoteId  = errors.New("invalid note id")
	ErrInvalidMessage = errors.New("invalid message")
)

var (
	priorities = map[string]bool{"low": true, "medium": true, "high": true}
	categories = map[string]bool{"work": true, "personal": true, "meeting": true, "other": true}
)

// ValidateNoteId accepts the uuids this service hands out.
func ValidateNoteId(id string) error {
	if _, err := uuid.FromString(id); err != nil {
		return ErrInvalidNoteId
	}
	return nil
}

// NormalizeTitle trims title and cuts it to the maximum length. It reports
// false when nothing is left, which callers treat as a no-op.
func NormalizeTitle(title string) (string, bool) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", false
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		title = string([]rune(title)[:maxTitleLength])
	}
	return title, true
}

func ValidateChatMessage(message string) error {
	message = strings.TrimSpace(message)
	if message == "" || utf8.RuneCountInString(message) > maxMessageLength {
		return ErrInvalidMessage
	}
	return nil
}

func ValidPriority(p string) bool {
	return priorities[p]
}

func ValidCategory(c string) bool {
	return categories[c]
}

func ValidDate(d string) bool {
	_, err := time.Parse(dateLayout, d)
	return err == nil
}
