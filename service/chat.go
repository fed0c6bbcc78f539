package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/dayzy/notes/models"
)

const (
	chatWindow      = time.Minute
	chatWindowLimit = 30
)

const (
	ChatActionChat   = "chat"
	ChatActionCreate = "create"
	ChatActionUpdate = "update"
	ChatActionDelete = "delete"
)

var (
	ErrRateLimited       = errors.New("rate limit exceeded")
	ErrMissingChatFields = errors.New("missing required data")
	ErrChatUnavailable   = errors.New("chat assistant is not configured")
	ErrChatUserMismatch  = errors.New("userId does not match the signed in user")
)

// ChatContext is what the dashboard sends along with a message.
type ChatContext struct {
	UserEmail string        `json:"userEmail"`
	Projects  []ChatProject `json:"projects"`
}

type ChatProject struct {
	Name    string `json:"name"`
	Members int    `json:"members"`
}

type ChatRequest struct {
	Message string       `json:"message"`
	Context *ChatContext `json:"context"`
	UserId  string       `json:"userId"`
}

// ChatAction is the reply shape the model is told to produce.
type ChatAction struct {
	Action   string   `json:"action"`
	Response string   `json:"response"`
	TaskData TaskData `json:"taskData"`
}

type TaskData struct {
	TaskId      string `json:"taskId"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Date        string `json:"date"`
	Priority    string `json:"priority"`
	Category    string `json:"category"`
	Completed   *bool  `json:"completed"`
}

func (s *Service) checkChatRate(ctx context.Context, userId string) error {
	count, err := s.Cache.IncrementWindow(ctx, "chat:"+userId, chatWindow)
	if err != nil {
		// Counting is best effort
		log.Printf("Failed to count chat request for %s: %v", userId, err)
		return nil
	}
	if count > chatWindowLimit {
		return ErrRateLimited
	}
	return nil
}

// Chat sends the message with the user's tasks to the language model and
// applies the task action it answers with.
func (s *Service) Chat(ctx context.Context, user models.User, req ChatRequest) (string, error) {
	if strings.TrimSpace(req.Message) == "" || req.Context == nil || req.UserId == "" {
		return "", ErrMissingChatFields
	}
	if req.UserId != user.Id {
		return "", ErrChatUserMismatch
	}
	if err := ValidateChatMessage(req.Message); err != nil {
		return "", err
	}
	if s.LLM == nil {
		return "", ErrChatUnavailable
	}
	if err := s.checkChatRate(ctx, user.Id); err != nil {
		return "", err
	}

	tasks, err := s.Store.GetTasks(ctx, user.Id)
	if err != nil {
		return "", err
	}

	reply, err := s.LLM.Complete(ctx, buildChatPrompt(tasks, *req.Context, user), req.Message)
	if err != nil {
		return "", fmt.Errorf("completion failed: %w", err)
	}

	action := ParseChatReply(reply)
	if err := s.applyChatAction(ctx, user, tasks, action); err != nil {
		log.Printf("Chat action %s for %s failed: %v", action.Action, user.Id, err)
		return "", err
	}
	return action.Response, nil
}

// ParseChatReply reads the outermost {...} of reply as a ChatAction. Anything
// unreadable becomes a plain chat answer holding the whole reply.
func ParseChatReply(reply string) ChatAction {
	reply = strings.TrimSpace(reply)
	fallback := ChatAction{Action: ChatActionChat, Response: reply}

	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return fallback
	}

	var action ChatAction
	if err := json.Unmarshal([]byte(reply[start:end+1]), &action); err != nil {
		return fallback
	}
	if action.Action == "" {
		action.Action = ChatActionChat
	}
	return action
}

func (s *Service) applyChatAction(ctx context.Context, user models.User, tasks []models.Task, action ChatAction) error {
	now := s.Now().UTC()
	data := action.TaskData

	switch action.Action {
	case ChatActionCreate:
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		task := models.Task{
			Id:          id.String(),
			Owner:       user.Id,
			Title:       orDefault(strings.TrimSpace(data.Title), "New Task"),
			Description: data.Description,
			Date:        now.Format(dateLayout),
			Priority:    "medium",
			Category:    "work",
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if ValidDate(data.Date) {
			task.Date = data.Date
		}
		if ValidPriority(data.Priority) {
			task.Priority = data.Priority
		}
		if ValidCategory(data.Category) {
			task.Category = data.Category
		}
		return s.Store.CreateTask(ctx, task)

	case ChatActionUpdate:
		if !ownsTask(tasks, data.TaskId) {
			return nil
		}
		task := models.Task{Id: data.TaskId, Owner: user.Id, UpdatedAt: now}
		fields := []string{models.FieldUpdatedAt}
		if title := strings.TrimSpace(data.Title); title != "" {
			task.Title = title
			fields = append(fields, models.FieldTitle)
		}
		if ValidPriority(data.Priority) {
			task.Priority = data.Priority
			fields = append(fields, models.FieldPriority)
		}
		if data.Completed != nil {
			task.Completed = *data.Completed
			fields = append(fields, models.FieldCompleted)
		}
		return s.Store.UpdateTask(ctx, task, fields)

	case ChatActionDelete:
		if !ownsTask(tasks, data.TaskId) {
			return nil
		}
		return s.Store.DeleteTask(ctx, user.Id, data.TaskId)
	}
	return nil
}

func ownsTask(tasks []models.Task, id string) bool {
	if id == "" {
		return false
	}
	for _, t := range tasks {
		if t.Id == id {
			return true
		}
	}
	return false
}

func orDefault(s string, def string) string {
	if s == "" {
		return def
	}
	return s
}

func buildChatPrompt(tasks []models.Task, chatCtx ChatContext, user models.User) string {
	var b strings.Builder
	b.WriteString(`You are DayZy AI Assistant - a smart task manager.
Respond with ONLY JSON (no markdown, no extra text):
{
  "action": "chat|create|delete|update",
  "response": "Message to user",
  "taskData": {
    "taskId": "id for delete/update",
    "title": "task title for create",
    "date": "YYYY-MM-DD",
    "priority": "low|medium|high",
    "category": "work|personal|meeting|other",
    "completed": true/false
  }
}

ALL TASKS:
`)
	if len(tasks) == 0 {
		b.WriteString("No tasks\n")
	}
	for _, t := range tasks {
		fmt.Fprintf(&b, "- [%s] %s (%s) %s\n", t.Id, t.Title, t.Date, doneMark(t.Completed))
	}

	b.WriteString(`
Rules:
1. For DELETE: Find task by title, extract ID
2. For CREATE: Extract title and date from message
3. For UPDATE: Find task and toggle/update
4. Default: "chat" action with helpful response

User Data:
`)
	email := chatCtx.UserEmail
	if email == "" {
		email = user.Username
	}
	fmt.Fprintf(&b, "User: %s\n\nTASKS (%d):\n", email, len(tasks))
	if len(tasks) == 0 {
		b.WriteString("No tasks\n")
	}
	for _, t := range tasks {
		status := "Pending"
		if t.Completed {
			status = "Done"
		}
		fmt.Fprintf(&b, "- %s (%s) - %s - %s\n", t.Title, t.Priority, t.Date, status)
	}

	fmt.Fprintf(&b, "\nPROJECTS (%d):\n", len(chatCtx.Projects))
	if len(chatCtx.Projects) == 0 {
		b.WriteString("No projects\n")
	}
	for _, p := range chatCtx.Projects {
		fmt.Fprintf(&b, "- %s (%d members)\n", p.Name, p.Members)
	}
	return b.String()
}

func doneMark(done bool) string {
	if done {
		return "[x]"
	}
	return "[ ]"
}
