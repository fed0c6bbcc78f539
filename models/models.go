package models

import "time"

type User struct {
	Id         string
	Username   string
	Provider   string
	ProviderId string
	Created    int64
}

// Page holds one canvas surface. ImageData is a data URL of the whole
// bitmap, never a diff. Empty means a blank page.
type Page struct {
	ImageData string `json:"imageData,omitempty"`
}

func (p Page) Blank() bool {
	return p.ImageData == ""
}

type TextLabel struct {
	Id       string  `json:"id"`
	Text     string  `json:"text"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	FontSize int     `json:"fontSize"`
	Color    string  `json:"color"`
	Bold     bool    `json:"bold"`
	Italic   bool    `json:"italic"`
}

type Note struct {
	Id          string      `json:"id"`
	OwnerId     string      `json:"ownerId"`
	Title       string      `json:"title"`
	Pages       []Page      `json:"pages"`
	TextObjects []TextLabel `json:"textObjects"`
	ShareCode   string      `json:"shareCode,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// SharePublication is the code-addressed copy of a note that any holder of
// the code may read and write.
type SharePublication struct {
	Code        string      `json:"code"`
	NoteId      string      `json:"noteId"`
	OwnerId     string      `json:"ownerId"`
	OwnerName   string      `json:"ownerName"`
	Title       string      `json:"title"`
	Pages       []Page      `json:"pages"`
	TextObjects []TextLabel `json:"textObjects"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// Snapshot is an independent copy of the mutable content of a note.
type Snapshot struct {
	Pages       []Page      `json:"pages"`
	TextObjects []TextLabel `json:"textObjects"`
}

func (s Snapshot) Clone() Snapshot {
	return Snapshot{
		Pages:       ClonePages(s.Pages),
		TextObjects: CloneLabels(s.TextObjects),
	}
}

func ClonePages(pages []Page) []Page {
	if pages == nil {
		return nil
	}
	out := make([]Page, len(pages))
	copy(out, pages)
	return out
}

func CloneLabels(labels []TextLabel) []TextLabel {
	if labels == nil {
		return nil
	}
	out := make([]TextLabel, len(labels))
	copy(out, labels)
	return out
}

type Task struct {
	Id          string    `json:"id"`
	Owner       string    `json:"owner"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Date        string    `json:"date"`
	Priority    string    `json:"priority"`
	Category    string    `json:"category"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Field names understood by merge writes in the store.
const (
	FieldTitle       = "Title"
	FieldPages       = "Pages"
	FieldTextObjects = "TextObjects"
	FieldShareCode   = "ShareCode"
	FieldCreatedAt   = "CreatedAt"
	FieldUpdatedAt   = "UpdatedAt"
	FieldNoteId      = "NoteId"
	FieldOwnerId     = "OwnerId"
	FieldOwnerName   = "OwnerName"

	FieldDescription = "Description"
	FieldDate        = "Date"
	FieldPriority    = "Priority"
	FieldCategory    = "Category"
	FieldCompleted   = "Completed"
)

// Point is a position in canvas pixel space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}
