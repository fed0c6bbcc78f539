package dynamo

import (
	"time"

	"github.com/dayzy/notes/models"
)

func userKey(provider string, providerId string) string {
	return "USER#" + provider + "#" + providerId
}

func notesKey(ownerId string) string {
	return "NOTES#" + ownerId
}

func noteSortKey(noteId string) string {
	return "NOTE#" + noteId
}

func shareKey(code string) string {
	return "SHARE#" + code
}

func tasksKey(owner string) string {
	return "TASKS#" + owner
}

func taskSortKey(taskId string) string {
	return "TASK#" + taskId
}

const (
	profileSortKey     = "PROFILE"
	publicationSortKey = "PUBLICATION"
)

// Timestamps are stored as unix milliseconds; zero means unset.
func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

type dynamoUser struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	Id         string `dynamodbav:"Id"`
	Provider   string `dynamodbav:"Provider"`
	ProviderId string `dynamodbav:"ProviderId"`
	Username   string `dynamodbav:"Username"`
	Created    int64  `dynamodbav:"Created"`
}

// Map domain User -> Dynamo
func userToDynamo(u models.User) dynamoUser {
	return dynamoUser{
		PK:         userKey(u.Provider, u.ProviderId),
		SK:         profileSortKey,
		Id:         u.Id,
		Provider:   u.Provider,
		ProviderId: u.ProviderId,
		Username:   u.Username,
		Created:    u.Created,
	}
}

// Map Dynamo -> domain User
func userFromDynamo(du dynamoUser) models.User {
	return models.User{
		Id:         du.Id,
		Username:   du.Username,
		Provider:   du.Provider,
		ProviderId: du.ProviderId,
		Created:    du.Created,
	}
}

type dynamoPage struct {
	ImageData string `dynamodbav:"ImageData,omitempty"`
}

type dynamoLabel struct {
	Id       string  `dynamodbav:"Id"`
	Text     string  `dynamodbav:"Text"`
	X        float64 `dynamodbav:"X"`
	Y        float64 `dynamodbav:"Y"`
	FontSize int     `dynamodbav:"FontSize"`
	Color    string  `dynamodbav:"Color"`
	Bold     bool    `dynamodbav:"Bold"`
	Italic   bool    `dynamodbav:"Italic"`
}

func pagesToDynamo(pages []models.Page) []dynamoPage {
	out := make([]dynamoPage, len(pages))
	for i, p := range pages {
		out[i] = dynamoPage{ImageData: p.ImageData}
	}
	return out
}

func pagesFromDynamo(pages []dynamoPage) []models.Page {
	out := make([]models.Page, len(pages))
	for i, p := range pages {
		out[i] = models.Page{ImageData: p.ImageData}
	}
	return out
}

func labelsToDynamo(labels []models.TextLabel) []dynamoLabel {
	out := make([]dynamoLabel, len(labels))
	for i, l := range labels {
		out[i] = dynamoLabel(l)
	}
	return out
}

func labelsFromDynamo(labels []dynamoLabel) []models.TextLabel {
	out := make([]models.TextLabel, len(labels))
	for i, l := range labels {
		out[i] = models.TextLabel(l)
	}
	return out
}

type dynamoNote struct {
	PK          string        `dynamodbav:"PK"`
	SK          string        `dynamodbav:"SK"`
	Id          string        `dynamodbav:"Id"`
	OwnerId     string        `dynamodbav:"OwnerId"`
	Title       string        `dynamodbav:"Title"`
	Pages       []dynamoPage  `dynamodbav:"Pages"`
	TextObjects []dynamoLabel `dynamodbav:"TextObjects"`
	ShareCode   string        `dynamodbav:"ShareCode"`
	CreatedAt   int64         `dynamodbav:"CreatedAt"`
	UpdatedAt   int64         `dynamodbav:"UpdatedAt"`
}

func noteToDynamo(ownerId string, n models.Note) dynamoNote {
	return dynamoNote{
		PK:          notesKey(ownerId),
		SK:          noteSortKey(n.Id),
		Id:          n.Id,
		OwnerId:     ownerId,
		Title:       n.Title,
		Pages:       pagesToDynamo(n.Pages),
		TextObjects: labelsToDynamo(n.TextObjects),
		ShareCode:   n.ShareCode,
		CreatedAt:   toMillis(n.CreatedAt),
		UpdatedAt:   toMillis(n.UpdatedAt),
	}
}

func noteFromDynamo(dn dynamoNote) models.Note {
	return models.Note{
		Id:          dn.Id,
		OwnerId:     dn.OwnerId,
		Title:       dn.Title,
		Pages:       pagesFromDynamo(dn.Pages),
		TextObjects: labelsFromDynamo(dn.TextObjects),
		ShareCode:   dn.ShareCode,
		CreatedAt:   fromMillis(dn.CreatedAt),
		UpdatedAt:   fromMillis(dn.UpdatedAt),
	}
}

type dynamoPublication struct {
	PK          string        `dynamodbav:"PK"`
	SK          string        `dynamodbav:"SK"`
	Code        string        `dynamodbav:"Code"`
	NoteId      string        `dynamodbav:"NoteId"`
	OwnerId     string        `dynamodbav:"OwnerId"`
	OwnerName   string        `dynamodbav:"OwnerName"`
	Title       string        `dynamodbav:"Title"`
	Pages       []dynamoPage  `dynamodbav:"Pages"`
	TextObjects []dynamoLabel `dynamodbav:"TextObjects"`
	CreatedAt   int64         `dynamodbav:"CreatedAt"`
	UpdatedAt   int64         `dynamodbav:"UpdatedAt"`
}

func publicationToDynamo(p models.SharePublication) dynamoPublication {
	return dynamoPublication{
		PK:          shareKey(p.Code),
		SK:          publicationSortKey,
		Code:        p.Code,
		NoteId:      p.NoteId,
		OwnerId:     p.OwnerId,
		OwnerName:   p.OwnerName,
		Title:       p.Title,
		Pages:       pagesToDynamo(p.Pages),
		TextObjects: labelsToDynamo(p.TextObjects),
		CreatedAt:   toMillis(p.CreatedAt),
		UpdatedAt:   toMillis(p.UpdatedAt),
	}
}

func publicationFromDynamo(dp dynamoPublication) models.SharePublication {
	return models.SharePublication{
		Code:        dp.Code,
		NoteId:      dp.NoteId,
		OwnerId:     dp.OwnerId,
		OwnerName:   dp.OwnerName,
		Title:       dp.Title,
		Pages:       pagesFromDynamo(dp.Pages),
		TextObjects: labelsFromDynamo(dp.TextObjects),
		CreatedAt:   fromMillis(dp.CreatedAt),
		UpdatedAt:   fromMillis(dp.UpdatedAt),
	}
}

type dynamoTask struct {
	PK          string `dynamodbav:"PK"`
	SK          string `dynamodbav:"SK"`
	Id          string `dynamodbav:"Id"`
	Owner       string `dynamodbav:"Owner"`
	Title       string `dynamodbav:"Title"`
	Description string `dynamodbav:"Description"`
	Date        string `dynamodbav:"Date"`
	Priority    string `dynamodbav:"Priority"`
	Category    string `dynamodbav:"Category"`
	Completed   bool   `dynamodbav:"Completed"`
	CreatedAt   int64  `dynamodbav:"CreatedAt"`
	UpdatedAt   int64  `dynamodbav:"UpdatedAt"`
}

func taskToDynamo(t models.Task) dynamoTask {
	return dynamoTask{
		PK:          tasksKey(t.Owner),
		SK:          taskSortKey(t.Id),
		Id:          t.Id,
		Owner:       t.Owner,
		Title:       t.Title,
		Description: t.Description,
		Date:        t.Date,
		Priority:    t.Priority,
		Category:    t.Category,
		Completed:   t.Completed,
		CreatedAt:   toMillis(t.CreatedAt),
		UpdatedAt:   toMillis(t.UpdatedAt),
	}
}

func taskFromDynamo(dt dynamoTask) models.Task {
	return models.Task{
		Id:          dt.Id,
		Owner:       dt.Owner,
		Title:       dt.Title,
		Description: dt.Description,
		Date:        dt.Date,
		Priority:    dt.Priority,
		Category:    dt.Category,
		Completed:   dt.Completed,
		CreatedAt:   fromMillis(dt.CreatedAt),
		UpdatedAt:   fromMillis(dt.UpdatedAt),
	}
}
