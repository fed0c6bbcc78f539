package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	cachemocks "github.com/dayzy/notes/cache/mocks"
	llmmocks "github.com/dayzy/notes/llm/mocks"
	"github.com/dayzy/notes/models"
	mqmocks "github.com/dayzy/notes/mq/mocks"
	"github.com/dayzy/notes/service"
	"github.com/dayzy/notes/store"
	storemocks "github.com/dayzy/notes/store/mocks"
	"github.com/dayzy/notes/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func setupService(t *testing.T) (*service.Service, *storemocks.MockStore, *cachemocks.MockCache, *mqmocks.MockMQ, *llmmocks.MockCompleter) {
	mockStore := new(storemocks.MockStore)
	mockCache := new(cachemocks.MockCache)
	mockMQ := new(mqmocks.MockMQ)
	mockLLM := new(llmmocks.MockCompleter)

	// Real notifier; tests read its channel instead of running it
	shareNotifier := worker.NewShareNotifier(mockCache, 1000)

	svc, err := service.NewService(
		mockStore,
		mockCache,
		mockMQ,
		shareNotifier,
		mockLLM,
		nil,
		[]byte("secret"),
		"https://dayzy.app",
	)
	assert.NoError(t, err)
	svc.Now = func() time.Time { return fixedNow }

	return svc, mockStore, mockCache, mockMQ, mockLLM
}

// Helper that creates a channel and wraps a mock call to signal when it's called
func wrapMockWithSignal(call *mock.Call) chan struct{} {
	done := make(chan struct{})
	call.Run(func(args mock.Arguments) {
		close(done)
	})
	return done
}

const noteId = "0190d6b2-7c1e-7b3a-9a3e-2f1c4d5e6f70"

var owner = models.User{Id: "user1", Username: "ada", Provider: "github", ProviderId: "42"}

func TestCreateNote_NumbersTitleAndStartsBlank(t *testing.T) {
	svc, mockStore, _, _, _ := setupService(t)
	ctx := context.Background()

	mockStore.On("GetNotes", ctx, owner.Id).Return([]models.Note{{Id: "a"}, {Id: "b"}}, nil)
	mockStore.On("SaveNotes", ctx, owner.Id, mock.MatchedBy(func(notes []models.Note) bool {
		return len(notes) == 1 && notes[0].Title == "Note 3"
	}), []string(nil)).Return(nil)

	note, err := svc.CreateNote(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, "Note 3", note.Title)
	assert.Equal(t, owner.Id, note.OwnerId)
	require.Len(t, note.Pages, 1)
	assert.True(t, note.Pages[0].Blank())
	assert.Empty(t, note.TextObjects)
	assert.Empty(t, note.ShareCode)
	assert.Equal(t, fixedNow, note.CreatedAt)
	assert.NoError(t, service.ValidateNoteId(note.Id))
	mockStore.AssertExpectations(t)
}

func TestCreateNote_StoreFails(t *testing.T) {
	svc, mockStore, _, _, _ := setupService(t)
	ctx := context.Background()

	mockStore.On("GetNotes", ctx, owner.Id).Return([]models.Note{}, nil)
	mockStore.On("SaveNotes", ctx, owner.Id, mock.Anything, mock.Anything).Return(errors.New("write failed"))

	_, err := svc.CreateNote(ctx, owner)
	assert.Error(t, err)
}

func TestGetNote_InvalidId(t *testing.T) {
	svc, mockStore, _, _, _ := setupService(t)

	_, err := svc.GetNote(context.Background(), owner, "../etc")
	assert.ErrorIs(t, err, service.ErrInvalidNoteId)
	mockStore.AssertNotCalled(t, "GetNote", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetNote_NotFound(t *testing.T) {
	svc, mockStore, _, _, _ := setupService(t)
	ctx := context.Background()

	mockStore.On("GetNote", ctx, owner.Id, noteId).Return(models.Note{}, store.ErrItemNotFound)

	_, err := svc.GetNote(ctx, owner, noteId)
	assert.ErrorIs(t, err, service.ErrNoteNotFound)
}

func TestRenameNote_BlankTitleIsIgnored(t *testing.T) {
	svc, mockStore, _, _, _ := setupService(t)
	ctx := context.Background()

	mockStore.On("GetNote", ctx, owner.Id, noteId).Return(models.Note{Id: noteId, OwnerId: owner.Id, Title: "Old"}, nil)

	note, err := svc.RenameNote(ctx, owner, noteId, "   ")
	require.NoError(t, err)
	assert.Equal(t, "Old", note.Title)
	mockStore.AssertNotCalled(t, "SaveNotes", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRenameNote_MergesTitle(t *testing.T) {
	svc, mockStore, _, _, _ := setupService(t)
	ctx := context.Background()

	mockStore.On("GetNote", ctx, owner.Id, noteId).Return(models.Note{Id: noteId, OwnerId: owner.Id, Title: "Old"}, nil)
	mockStore.On("SaveNotes", ctx, owner.Id, mock.MatchedBy(func(notes []models.Note) bool {
		return notes[0].Title == "Groceries" && notes[0].UpdatedAt.Equal(fixedNow)
	}), []string{models.FieldTitle, models.FieldUpdatedAt}).Return(nil)

	note, err := svc.RenameNote(ctx, owner, noteId, "  Groceries ")
	require.NoError(t, err)
	assert.Equal(t, "Groceries", note.Title)
	mockStore.AssertExpectations(t)
}

func TestDeleteNote_SharedQueuesPublicationRemoval(t *testing.T) {
	svc, mockStore, _, mockMQ, _ := setupService(t)
	ctx := context.Background()

	mockStore.On("GetNote", ctx, owner.Id, noteId).Return(models.Note{Id: noteId, OwnerId: owner.Id, ShareCode: "ABC123"}, nil)
	mockStore.On("DeleteNote", ctx, owner.Id, noteId).Return(nil)
	mockMQ.On("Send", ctx, mock.MatchedBy(func(body string) bool {
		return strings.Contains(body, `"codes":["ABC123"]`) && !strings.Contains(body, "deleteAll")
	})).Return(nil)

	require.NoError(t, svc.DeleteNote(ctx, owner, noteId))
	mockStore.AssertExpectations(t)
	mockMQ.AssertExpectations(t)
}

func TestDeleteNote_PrivateSkipsQueue(t *testing.T) {
	svc, mockStore, _, mockMQ, _ := setupService(t)
	ctx := context.Background()

	mockStore.On("GetNote", ctx, owner.Id, noteId).Return(models.Note{Id: noteId, OwnerId: owner.Id}, nil)
	mockStore.On("DeleteNote", ctx, owner.Id, noteId).Return(nil)

	require.NoError(t, svc.DeleteNote(ctx, owner, noteId))
	mockMQ.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestDeleteNote_QueueFailureStillDeletes(t *testing.T) {
	svc, mockStore, _, mockMQ, _ := setupService(t)
	ctx := context.Background()

	mockStore.On("GetNote", ctx, owner.Id, noteId).Return(models.Note{Id: noteId, OwnerId: owner.Id, ShareCode: "ABC123"}, nil)
	mockStore.On("DeleteNote", ctx, owner.Id, noteId).Return(nil)
	mockMQ.On("Send", ctx, mock.Anything).Return(errors.New("queue down"))

	assert.NoError(t, svc.DeleteNote(ctx, owner, noteId))
}
