package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/dayzy/notes/cache"
	"github.com/dayzy/notes/editor"
	"github.com/dayzy/notes/models"
	"github.com/dayzy/notes/service"
	"github.com/dayzy/notes/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func samplePublication() models.SharePublication {
	return models.SharePublication{
		Code:        "ABC123",
		NoteId:      noteId,
		OwnerId:     owner.Id,
		OwnerName:   owner.Username,
		Title:       "Sketches",
		Pages:       []models.Page{{}},
		TextObjects: []models.TextLabel{},
		CreatedAt:   fixedNow.Add(-time.Hour),
		UpdatedAt:   fixedNow.Add(-time.Minute),
	}
}

func TestShareLinkAndParse(t *testing.T) {
	svc, _, _, _, _ := setupService(t)

	link := svc.ShareLink("ABC123")
	assert.Equal(t, "https://dayzy.app/notes?share=ABC123", link)

	code, err := svc.ParseShareCode(link)
	require.NoError(t, err)
	assert.Equal(t, "ABC123", code)

	code, err = svc.ParseShareCode("https://dayzy.app/notes#share=xyz789")
	require.NoError(t, err)
	assert.Equal(t, "XYZ789", code)
}

func TestGetPublication_CacheHit(t *testing.T) {
	svc, mockStore, mockCache, _, _ := setupService(t)
	ctx := context.Background()

	data, _ := json.Marshal(samplePublication())
	mockCache.On("GetPublication", ctx, "ABC123").Return(data, nil)

	pub, err := svc.GetPublication(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, "Sketches", pub.Title)
	mockStore.AssertNotCalled(t, "GetPublication", mock.Anything, mock.Anything)
}

func TestGetPublication_MissReadsStoreAndFills(t *testing.T) {
	svc, mockStore, mockCache, _, _ := setupService(t)
	ctx := context.Background()

	mockCache.On("GetPublication", ctx, "ABC123").Return(nil, cache.ErrCacheMiss)
	mockStore.On("GetPublication", ctx, "ABC123").Return(samplePublication(), nil)
	mockCache.On("SetPublication", ctx, "ABC123", mock.Anything).Return(nil)

	pub, err := svc.GetPublication(ctx, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, noteId, pub.NoteId)
	mockCache.AssertExpectations(t)
}

func TestGetPublication_CacheDownFallsBackToStore(t *testing.T) {
	svc, mockStore, mockCache, _, _ := setupService(t)
	ctx := context.Background()

	mockCache.On("GetPublication", ctx, "ABC123").Return(nil, errors.New("redis down"))
	mockStore.On("GetPublication", ctx, "ABC123").Return(samplePublication(), nil)
	mockCache.On("SetPublication", ctx, "ABC123", mock.Anything).Return(errors.New("redis down"))

	_, err := svc.GetPublication(ctx, "ABC123")
	assert.NoError(t, err)
}

func TestGetPublication_NotFound(t *testing.T) {
	svc, mockStore, mockCache, _, _ := setupService(t)
	ctx := context.Background()

	mockCache.On("GetPublication", ctx, "ABC123").Return(nil, cache.ErrCacheMiss)
	mockStore.On("GetPublication", ctx, "ABC123").Return(models.SharePublication{}, store.ErrItemNotFound)

	_, err := svc.GetPublication(ctx, "ABC123")
	assert.ErrorIs(t, err, service.ErrShareNotFound)
}

func TestGetPublication_InvalidCode(t *testing.T) {
	svc, _, mockCache, _, _ := setupService(t)

	_, err := svc.GetPublication(context.Background(), "ABC-12")
	assert.ErrorIs(t, err, service.ErrInvalidShareCode)
	mockCache.AssertNotCalled(t, "GetPublication", mock.Anything, mock.Anything)
}

func TestOpenViewerSession_NotFound(t *testing.T) {
	svc, mockStore, _, _, _ := setupService(t)
	ctx := context.Background()

	mockStore.On("GetPublication", ctx, "ABC123").Return(models.SharePublication{}, store.ErrItemNotFound)

	_, err := svc.OpenViewerSession(ctx, "ABC123", nil)
	assert.ErrorIs(t, err, service.ErrShareNotFound)
}

func TestViewerEdit_WritesPublicationAndAnnounces(t *testing.T) {
	svc, mockStore, mockCache, _, _ := setupService(t)
	svc.SyncConfig.Now = func() time.Time { return fixedNow }
	ctx := context.Background()

	mockStore.On("GetPublication", ctx, "ABC123").Return(samplePublication(), nil)

	loop, err := svc.OpenViewerSession(ctx, "abc123", nil)
	require.NoError(t, err)
	session := loop.Session()
	assert.Equal(t, editor.RoleViewer, session.Role())
	assert.Equal(t, "ABC123", session.ShareCode())

	mockStore.On("SetPublication", mock.Anything, mock.MatchedBy(func(pub models.SharePublication) bool {
		return pub.Code == "ABC123" && len(pub.TextObjects) == 1 && pub.UpdatedAt.Equal(fixedNow)
	}), mock.Anything).Return(nil)
	mockCache.On("InvalidatePublications", mock.Anything, []string{"ABC123"}).Return(nil)

	_, outcome := session.AddLabel("guest")
	require.Equal(t, editor.OutcomeCommit, outcome)
	loop.Autosave(ctx)

	mockStore.AssertExpectations(t)
	mockCache.AssertExpectations(t)
	mockStore.AssertNotCalled(t, "SaveNotes", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	select {
	case update := <-svc.ShareNotifier.UpdateCh:
		assert.Equal(t, "ABC123", update.Code)
		assert.True(t, update.UpdatedAt.Equal(fixedNow))
	case <-time.After(time.Second):
		assert.Fail(t, "no share update queued")
	}
}

func TestOwnerSession_UndoAvailable(t *testing.T) {
	svc, mockStore, _, _, _ := setupService(t)
	ctx := context.Background()

	mockStore.On("GetNote", ctx, owner.Id, noteId).Return(models.Note{
		Id: noteId, OwnerId: owner.Id, Title: "Sketches", Pages: []models.Page{{}},
	}, nil)

	loop, err := svc.OpenOwnerSession(ctx, owner, noteId, nil)
	require.NoError(t, err)
	session := loop.Session()
	assert.Equal(t, editor.RoleOwner, session.Role())

	session.AddLabel("hello")
	outcome, err := session.Undo()
	require.NoError(t, err)
	assert.Equal(t, editor.OutcomeCommit, outcome)
	assert.Empty(t, session.Document().Note.TextObjects)
}

func TestPublishNote_CreatesPublicationAndRecordsCode(t *testing.T) {
	svc, mockStore, mockCache, _, _ := setupService(t)
	svc.SyncConfig.NewCode = func() (string, error) { return "QWE789", nil }
	ctx := context.Background()

	mockStore.On("GetNote", ctx, owner.Id, noteId).Return(models.Note{
		Id: noteId, OwnerId: owner.Id, Title: "Sketches", Pages: []models.Page{{}},
	}, nil)
	mockStore.On("CreatePublication", ctx, mock.MatchedBy(func(pub models.SharePublication) bool {
		return pub.Code == "QWE789" && pub.OwnerName == "ada" && pub.Title == "Sketches"
	})).Return(true, nil)
	mockCache.On("InvalidatePublications", ctx, []string{"QWE789"}).Return(nil)
	mockStore.On("SaveNotes", ctx, owner.Id, mock.MatchedBy(func(notes []models.Note) bool {
		return notes[0].ShareCode == "QWE789"
	}), []string{models.FieldShareCode}).Return(nil)

	code, err := svc.PublishNote(ctx, owner, noteId)
	require.NoError(t, err)
	assert.Equal(t, "QWE789", code)
	mockStore.AssertExpectations(t)
}
