package mongostore

import (
	"time"

	"github.com/dayzy/notes/models"
)

type mongoUser struct {
	Key        string `bson:"_id"`
	Id         string `bson:"id"`
	Provider   string `bson:"provider"`
	ProviderId string `bson:"provider_id"`
	Username   string `bson:"username"`
	Created    int64  `bson:"created"`
}

func userKey(provider string, providerId string) string {
	return provider + "#" + providerId
}

type mongoLabel struct {
	Id       string  `bson:"id"`
	Text     string  `bson:"text"`
	X        float64 `bson:"x"`
	Y        float64 `bson:"y"`
	FontSize int     `bson:"font_size"`
	Color    string  `bson:"color"`
	Bold     bool    `bson:"bold"`
	Italic   bool    `bson:"italic"`
}

type mongoPage struct {
	ImageData string `bson:"image_data,omitempty"`
}

type mongoNote struct {
	Id          string       `bson:"_id"`
	OwnerId     string       `bson:"owner_id"`
	Title       string       `bson:"title"`
	Pages       []mongoPage  `bson:"pages"`
	TextObjects []mongoLabel `bson:"text_objects"`
	ShareCode   string       `bson:"share_code"`
	CreatedAt   time.Time    `bson:"created_at"`
	UpdatedAt   time.Time    `bson:"updated_at"`
}

type mongoPublication struct {
	Code        string       `bson:"_id"`
	NoteId      string       `bson:"note_id"`
	OwnerId     string       `bson:"owner_id"`
	OwnerName   string       `bson:"owner_name"`
	Title       string       `bson:"title"`
	Pages       []mongoPage  `bson:"pages"`
	TextObjects []mongoLabel `bson:"text_objects"`
	CreatedAt   time.Time    `bson:"created_at"`
	UpdatedAt   time.Time    `bson:"updated_at"`
}

type mongoTask struct {
	Id          string    `bson:"_id"`
	Owner       string    `bson:"owner"`
	Title       string    `bson:"title"`
	Description string    `bson:"description"`
	Date        string    `bson:"date"`
	Priority    string    `bson:"priority"`
	Category    string    `bson:"category"`
	Completed   bool      `bson:"completed"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

// fieldKeys maps merge field names onto document keys
var fieldKeys = map[string]string{
	models.FieldTitle:       "title",
	models.FieldPages:       "pages",
	models.FieldTextObjects: "text_objects",
	models.FieldShareCode:   "share_code",
	models.FieldCreatedAt:   "created_at",
	models.FieldUpdatedAt:   "updated_at",
	models.FieldNoteId:      "note_id",
	models.FieldOwnerId:     "owner_id",
	models.FieldOwnerName:   "owner_name",
	models.FieldDescription: "description",
	models.FieldDate:        "date",
	models.FieldPriority:    "priority",
	models.FieldCategory:    "category",
	models.FieldCompleted:   "completed",
}

func pagesToMongo(pages []models.Page) []mongoPage {
	out := make([]mongoPage, len(pages))
	for i, p := range pages {
		out[i] = mongoPage{ImageData: p.ImageData}
	}
	return out
}

func pagesFromMongo(pages []mongoPage) []models.Page {
	out := make([]models.Page, len(pages))
	for i, p := range pages {
		out[i] = models.Page{ImageData: p.ImageData}
	}
	return out
}

func labelsToMongo(labels []models.TextLabel) []mongoLabel {
	out := make([]mongoLabel, len(labels))
	for i, l := range labels {
		out[i] = mongoLabel(l)
	}
	return out
}

func labelsFromMongo(labels []mongoLabel) []models.TextLabel {
	out := make([]models.TextLabel, len(labels))
	for i, l := range labels {
		out[i] = models.TextLabel(l)
	}
	return out
}

func noteToMongo(ownerId string, n models.Note) mongoNote {
	return mongoNote{
		Id:          n.Id,
		OwnerId:     ownerId,
		Title:       n.Title,
		Pages:       pagesToMongo(n.Pages),
		TextObjects: labelsToMongo(n.TextObjects),
		ShareCode:   n.ShareCode,
		CreatedAt:   n.CreatedAt,
		UpdatedAt:   n.UpdatedAt,
	}
}

func noteFromMongo(mn mongoNote) models.Note {
	return models.Note{
		Id:          mn.Id,
		OwnerId:     mn.OwnerId,
		Title:       mn.Title,
		Pages:       pagesFromMongo(mn.Pages),
		TextObjects: labelsFromMongo(mn.TextObjects),
		ShareCode:   mn.ShareCode,
		CreatedAt:   mn.CreatedAt.UTC(),
		UpdatedAt:   mn.UpdatedAt.UTC(),
	}
}

func publicationToMongo(p models.SharePublication) mongoPublication {
	return mongoPublication{
		Code:        p.Code,
		NoteId:      p.NoteId,
		OwnerId:     p.OwnerId,
		OwnerName:   p.OwnerName,
		Title:       p.Title,
		Pages:       pagesToMongo(p.Pages),
		TextObjects: labelsToMongo(p.TextObjects),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func publicationFromMongo(mp mongoPublication) models.SharePublication {
	return models.SharePublication{
		Code:        mp.Code,
		NoteId:      mp.NoteId,
		OwnerId:     mp.OwnerId,
		OwnerName:   mp.OwnerName,
		Title:       mp.Title,
		Pages:       pagesFromMongo(mp.Pages),
		TextObjects: labelsFromMongo(mp.TextObjects),
		CreatedAt:   mp.CreatedAt.UTC(),
		UpdatedAt:   mp.UpdatedAt.UTC(),
	}
}

func taskToMongo(t models.Task) mongoTask {
	return mongoTask{
		Id:          t.Id,
		Owner:       t.Owner,
		Title:       t.Title,
		Description: t.Description,
		Date:        t.Date,
		Priority:    t.Priority,
		Category:    t.Category,
		Completed:   t.Completed,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func taskFromMongo(mt mongoTask) models.Task {
	return models.Task{
		Id:          mt.Id,
		Owner:       mt.Owner,
		Title:       mt.Title,
		Description: mt.Description,
		Date:        mt.Date,
		Priority:    mt.Priority,
		Category:    mt.Category,
		Completed:   mt.Completed,
		CreatedAt:   mt.CreatedAt.UTC(),
		UpdatedAt:   mt.UpdatedAt.UTC(),
	}
}
