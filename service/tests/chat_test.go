package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/dayzy/notes/models"
	"github.com/dayzy/notes/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func chatRequest(message string) service.ChatRequest {
	return service.ChatRequest{
		Message: message,
		Context: &service.ChatContext{UserEmail: "ada@example.com"},
		UserId:  owner.Id,
	}
}

var existingTasks = []models.Task{
	{Id: "t1", Owner: owner.Id, Title: "Dentist", Date: "2025-06-03", Priority: "high", Category: "personal"},
}

func TestChat_MissingFields(t *testing.T) {
	svc, _, _, _, _ := setupService(t)

	for _, req := range []service.ChatRequest{
		{Context: &service.ChatContext{}, UserId: owner.Id},
		{Message: "hi", UserId: owner.Id},
		{Message: "hi", Context: &service.ChatContext{}},
	} {
		_, err := svc.Chat(context.Background(), owner, req)
		assert.ErrorIs(t, err, service.ErrMissingChatFields)
	}
}

func TestChat_UserMismatch(t *testing.T) {
	svc, _, _, _, _ := setupService(t)

	req := chatRequest("hi")
	req.UserId = "someone-else"
	_, err := svc.Chat(context.Background(), owner, req)
	assert.ErrorIs(t, err, service.ErrChatUserMismatch)
}

func TestChat_RateLimited(t *testing.T) {
	svc, _, mockCache, _, mockLLM := setupService(t)
	ctx := context.Background()

	mockCache.On("IncrementWindow", ctx, "chat:"+owner.Id, mock.Anything).Return(int64(31), nil)

	_, err := svc.Chat(ctx, owner, chatRequest("hi"))
	assert.ErrorIs(t, err, service.ErrRateLimited)
	mockLLM.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything)
}

func TestChat_PlainReply(t *testing.T) {
	svc, mockStore, mockCache, _, mockLLM := setupService(t)
	ctx := context.Background()

	mockCache.On("IncrementWindow", ctx, mock.Anything, mock.Anything).Return(int64(30), nil)
	mockStore.On("GetTasks", ctx, owner.Id).Return(existingTasks, nil)
	mockLLM.On("Complete", ctx, mock.MatchedBy(func(system string) bool {
		return assert.Contains(t, system, "- [t1] Dentist (2025-06-03)") &&
			assert.Contains(t, system, "User: ada@example.com")
	}), "hello").Return("Hi there, how can I help?", nil)

	resp, err := svc.Chat(ctx, owner, chatRequest("hello"))
	require.NoError(t, err)
	assert.Equal(t, "Hi there, how can I help?", resp)
	mockStore.AssertNotCalled(t, "CreateTask", mock.Anything, mock.Anything)
}

func TestChat_CreateFillsDefaults(t *testing.T) {
	svc, mockStore, mockCache, _, mockLLM := setupService(t)
	ctx := context.Background()

	mockCache.On("IncrementWindow", ctx, mock.Anything, mock.Anything).Return(int64(1), nil)
	mockStore.On("GetTasks", ctx, owner.Id).Return([]models.Task{}, nil)
	mockLLM.On("Complete", ctx, mock.Anything, mock.Anything).
		Return("Sure!\n```json\n{\"action\":\"create\",\"response\":\"Added it\",\"taskData\":{\"priority\":\"urgent\"}}\n```", nil)
	mockStore.On("CreateTask", ctx, mock.MatchedBy(func(task models.Task) bool {
		return task.Title == "New Task" && task.Date == "2025-06-01" && task.Priority == "medium" &&
			task.Category == "work" && !task.Completed && task.Owner == owner.Id && task.Id != ""
	})).Return(nil)

	resp, err := svc.Chat(ctx, owner, chatRequest("add a task"))
	require.NoError(t, err)
	assert.Equal(t, "Added it", resp)
	mockStore.AssertExpectations(t)
}

func TestChat_UpdateWritesOnlyGivenFields(t *testing.T) {
	svc, mockStore, mockCache, _, mockLLM := setupService(t)
	ctx := context.Background()

	mockCache.On("IncrementWindow", ctx, mock.Anything, mock.Anything).Return(int64(1), nil)
	mockStore.On("GetTasks", ctx, owner.Id).Return(existingTasks, nil)
	mockLLM.On("Complete", ctx, mock.Anything, mock.Anything).
		Return(`{"action":"update","response":"Done","taskData":{"taskId":"t1","completed":true,"date":"2030-01-01"}}`, nil)
	mockStore.On("UpdateTask", ctx, mock.MatchedBy(func(task models.Task) bool {
		return task.Id == "t1" && task.Completed
	}), []string{models.FieldUpdatedAt, models.FieldCompleted}).Return(nil)

	_, err := svc.Chat(ctx, owner, chatRequest("mark dentist done"))
	require.NoError(t, err)
	mockStore.AssertExpectations(t)
}

func TestChat_DeleteIgnoresForeignTask(t *testing.T) {
	svc, mockStore, mockCache, _, mockLLM := setupService(t)
	ctx := context.Background()

	mockCache.On("IncrementWindow", ctx, mock.Anything, mock.Anything).Return(int64(1), nil)
	mockStore.On("GetTasks", ctx, owner.Id).Return(existingTasks, nil)
	mockLLM.On("Complete", ctx, mock.Anything, mock.Anything).
		Return(`{"action":"delete","response":"Removed","taskData":{"taskId":"not-mine"}}`, nil)

	resp, err := svc.Chat(ctx, owner, chatRequest("delete it"))
	require.NoError(t, err)
	assert.Equal(t, "Removed", resp)
	mockStore.AssertNotCalled(t, "DeleteTask", mock.Anything, mock.Anything, mock.Anything)
}

func TestChat_DeleteOwnedTask(t *testing.T) {
	svc, mockStore, mockCache, _, mockLLM := setupService(t)
	ctx := context.Background()

	mockCache.On("IncrementWindow", ctx, mock.Anything, mock.Anything).Return(int64(1), nil)
	mockStore.On("GetTasks", ctx, owner.Id).Return(existingTasks, nil)
	mockLLM.On("Complete", ctx, mock.Anything, mock.Anything).
		Return(`{"action":"delete","response":"Removed","taskData":{"taskId":"t1"}}`, nil)
	mockStore.On("DeleteTask", ctx, owner.Id, "t1").Return(nil)

	_, err := svc.Chat(ctx, owner, chatRequest("delete dentist"))
	require.NoError(t, err)
	mockStore.AssertExpectations(t)
}

func TestChat_CompletionFails(t *testing.T) {
	svc, mockStore, mockCache, _, mockLLM := setupService(t)
	ctx := context.Background()

	mockCache.On("IncrementWindow", ctx, mock.Anything, mock.Anything).Return(int64(1), nil)
	mockStore.On("GetTasks", ctx, owner.Id).Return([]models.Task{}, nil)
	mockLLM.On("Complete", ctx, mock.Anything, mock.Anything).Return("", errors.New("quota"))

	_, err := svc.Chat(ctx, owner, chatRequest("hi"))
	assert.Error(t, err)
}

func TestChat_CounterDownStillAnswers(t *testing.T) {
	svc, mockStore, mockCache, _, mockLLM := setupService(t)
	ctx := context.Background()

	mockCache.On("IncrementWindow", ctx, mock.Anything, mock.Anything).Return(int64(0), errors.New("redis down"))
	mockStore.On("GetTasks", ctx, owner.Id).Return([]models.Task{}, nil)
	mockLLM.On("Complete", ctx, mock.Anything, mock.Anything).Return("hello", nil)

	resp, err := svc.Chat(ctx, owner, chatRequest("hi"))
	require.NoError(t, err)
	assert.Equal(t, "hello", resp)
}

func TestParseChatReply(t *testing.T) {
	tests := []struct {
		name     string
		reply    string
		action   string
		response string
	}{
		{"Bare JSON", `{"action":"delete","response":"ok","taskData":{"taskId":"t1"}}`, "delete", "ok"},
		{"Wrapped in prose", "Here you go: {\"action\":\"create\",\"response\":\"made\"} enjoy", "create", "made"},
		{"Not JSON", "just words", "chat", "just words"},
		{"Broken JSON", `{"action": "create", "response": }`, "chat", `{"action": "create", "response": }`},
		{"Missing action", `{"response":"hey"}`, "chat", "hey"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := service.ParseChatReply(tc.reply)
			assert.Equal(t, tc.action, got.Action)
			assert.Equal(t, tc.response, got.Response)
		})
	}
}
