package mongostore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dayzy/notes/models"
)

func TestSetFieldsPicksNamedKeys(t *testing.T) {
	doc := noteToMongo("u1", models.Note{
		Id:        "n1",
		Title:     "Groceries",
		ShareCode: "ABC123",
		Pages:     []models.Page{{ImageData: "data:image/png;base64,AA=="}},
		UpdatedAt: time.UnixMilli(1700000000000).UTC(),
	})

	set, err := setFields(doc, []string{models.FieldPages, models.FieldUpdatedAt})
	require.NoError(t, err)
	assert.Len(t, set, 2)
	assert.Contains(t, set, "pages")
	assert.Contains(t, set, "updated_at")
	assert.NotContains(t, set, "title")
	assert.NotContains(t, set, "_id")
}

func TestSetFieldsRejectsUnknownField(t *testing.T) {
	_, err := setFields(noteToMongo("u1", models.Note{Id: "n1"}), []string{"Bogus"})
	assert.Error(t, err)
}

func TestSetFieldsNeedsSomethingToWrite(t *testing.T) {
	// Notes keep their id in _id, so NoteId has nothing to pick
	_, err := setFields(noteToMongo("u1", models.Note{Id: "n1"}), []string{models.FieldNoteId})
	assert.Error(t, err)
}

func TestTaskFieldsMapOntoTaskKeys(t *testing.T) {
	set, err := setFields(taskToMongo(models.Task{Id: "t1", Owner: "u1", Title: "Call", Completed: true}),
		[]string{models.FieldTitle, models.FieldPriority, models.FieldCompleted})
	require.NoError(t, err)
	assert.Equal(t, "Call", set["title"])
	assert.Equal(t, true, set["completed"])
	assert.Contains(t, set, "priority")
}
