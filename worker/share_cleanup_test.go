package worker

import (
	"context"
	"errors"
	"testing"

	cachemocks "github.com/dayzy/notes/cache/mocks"
	"github.com/dayzy/notes/models"
	"github.com/dayzy/notes/mq"
	mqmocks "github.com/dayzy/notes/mq/mocks"
	"github.com/dayzy/notes/store"
	storemocks "github.com/dayzy/notes/store/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func setupConsumer() (*ShareCleanupConsumer, *mqmocks.MockMQ, *storemocks.MockStore, *cachemocks.MockCache) {
	mockMQ := new(mqmocks.MockMQ)
	mockStore := new(storemocks.MockStore)
	mockCache := new(cachemocks.MockCache)
	return NewShareCleanupConsumer(mockMQ, mockStore, mockCache), mockMQ, mockStore, mockCache
}

func TestHandle_SinglePublication(t *testing.T) {
	consumer, _, mockStore, mockCache := setupConsumer()
	ctx := context.Background()

	mockStore.On("DeletePublication", ctx, "ABC123").Return(nil)
	mockCache.On("InvalidatePublications", ctx, []string{"ABC123"}).Return(nil)
	mockCache.On("Publish", ctx, "share:ABC123", mock.MatchedBy(func(msg []byte) bool {
		return string(msg) == `{"type":"deleted","code":"ABC123"}`
	})).Return(nil)

	err := consumer.Handle(ctx, mq.CleanupRequest{OwnerId: "user1", Codes: []string{"ABC123"}})
	require.NoError(t, err)

	mockStore.AssertExpectations(t)
	mockCache.AssertExpectations(t)
	mockStore.AssertNotCalled(t, "GetNotes", mock.Anything, mock.Anything)
}

func TestHandle_MissingPublicationIsFine(t *testing.T) {
	consumer, _, mockStore, mockCache := setupConsumer()
	ctx := context.Background()

	mockStore.On("DeletePublication", ctx, "ABC123").Return(store.ErrItemNotFound)
	mockCache.On("InvalidatePublications", ctx, []string{"ABC123"}).Return(nil)
	mockCache.On("Publish", ctx, "share:ABC123", mock.Anything).Return(nil)

	assert.NoError(t, consumer.Handle(ctx, mq.CleanupRequest{OwnerId: "user1", Codes: []string{"ABC123"}}))
}

func TestHandle_DeleteAll(t *testing.T) {
	consumer, _, mockStore, mockCache := setupConsumer()
	ctx := context.Background()

	mockStore.On("GetNotes", ctx, "user1").Return([]models.Note{
		{Id: "n1", ShareCode: "AAAAAA"},
		{Id: "n2"},
	}, nil)
	mockStore.On("DeletePublication", ctx, "AAAAAA").Return(nil)
	mockCache.On("InvalidatePublications", ctx, []string{"AAAAAA"}).Return(nil)
	mockCache.On("Publish", ctx, "share:AAAAAA", mock.Anything).Return(nil)
	mockStore.On("DeleteNote", ctx, "user1", "n1").Return(nil)
	mockStore.On("DeleteNote", ctx, "user1", "n2").Return(nil)
	mockStore.On("GetTasks", ctx, "user1").Return([]models.Task{{Id: "t1", Owner: "user1"}}, nil)
	mockStore.On("DeleteTask", ctx, "user1", "t1").Return(nil)

	err := consumer.Handle(ctx, mq.CleanupRequest{OwnerId: "user1", DeleteAll: true})
	require.NoError(t, err)
	mockStore.AssertExpectations(t)
}

func TestProcess_FailureRetriesThenGivesUp(t *testing.T) {
	consumer, mockMQ, mockStore, _ := setupConsumer()

	mockStore.On("DeletePublication", mock.Anything, "ABC123").Return(errors.New("throttled"))

	body, _ := mq.EncodeCleanup(mq.CleanupRequest{OwnerId: "user1", Codes: []string{"ABC123"}})

	first := &mq.Message{Id: "r1", Body: body, ReceiveCount: 1}
	mockMQ.On("Retry", mock.Anything, first, int32(30)).Return(nil)
	consumer.process(first)
	mockMQ.AssertCalled(t, "Retry", mock.Anything, first, int32(30))
	mockMQ.AssertNotCalled(t, "Delete", mock.Anything, first)

	last := &mq.Message{Id: "r2", Body: body, ReceiveCount: maxReceives}
	mockMQ.On("Delete", mock.Anything, last).Return(nil)
	consumer.process(last)
	mockMQ.AssertCalled(t, "Delete", mock.Anything, last)
}

func TestProcess_MalformedMessageDropped(t *testing.T) {
	consumer, mockMQ, _, _ := setupConsumer()

	msg := &mq.Message{Id: "r1", Body: "not json"}
	mockMQ.On("Delete", mock.Anything, msg).Return(nil)

	consumer.process(msg)
	mockMQ.AssertExpectations(t)
}
