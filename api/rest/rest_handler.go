package rest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/dayzy/notes/export"
	"github.com/dayzy/notes/models"
	"github.com/dayzy/notes/notesync"
	"github.com/dayzy/notes/service"
)

type Handler struct {
	Service *service.Service
}

func NewHandler(svc *service.Service) *Handler {
	return &Handler{Service: svc}
}

type loginRequest struct {
	Provider string `json:"provider"`
	Code     string `json:"code"`
}

type loginResponse struct {
	Username string `json:"username"`
	Id       string `json:"id"`
	Provider string `json:"provider"`
	Token    string `json:"token"`
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	user, token, err := h.Service.Login(r.Context(), req.Provider, req.Code)
	if err != nil {
		log.Printf("Login failed: %v", err)
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}

	resp := loginResponse{
		Username: user.Username,
		Id:       user.Id,
		Provider: user.Provider,
		Token:    token,
	}
	h.sendResponse(w, resp)
}

type getUserResponse struct {
	Username string `json:"username"`
	Id       string `json:"id"`
	Provider string `json:"provider"`
}

func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.sendResponse(w, getUserResponse{Username: user.Username, Id: user.Id, Provider: user.Provider})

	case http.MethodDelete:
		if err := h.Service.DeleteUser(r.Context(), user); err != nil {
			http.Error(w, "failed to delete user", http.StatusInternalServerError)
			return
		}
		h.sendResponse(w, successResponse{Success: true})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type successResponse struct {
	Success bool `json:"success"`
}

type renameRequest struct {
	Title string `json:"title"`
}

type publishResponse struct {
	Code string `json:"code"`
	Link string `json:"link"`
}

func (h *Handler) HandleNotes(w http.ResponseWriter, r *http.Request) {
	user, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		notes, err := h.Service.ListNotes(r.Context(), user)
		if err != nil {
			h.sendError(w, "list notes", err)
			return
		}
		h.sendResponse(w, notes)

	case http.MethodPost:
		note, err := h.Service.CreateNote(r.Context(), user)
		if err != nil {
			h.sendError(w, "create note", err)
			return
		}
		w.WriteHeader(http.StatusCreated)
		h.sendResponse(w, note)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) HandleNote(w http.ResponseWriter, r *http.Request) {
	user, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	noteId := r.PathValue("id")

	switch r.Method {
	case http.MethodGet:
		note, err := h.Service.GetNote(r.Context(), user, noteId)
		if err != nil {
			h.sendError(w, "get note", err)
			return
		}
		h.sendResponse(w, note)

	case http.MethodPatch:
		var req renameRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		note, err := h.Service.RenameNote(r.Context(), user, noteId, req.Title)
		if err != nil {
			h.sendError(w, "rename note", err)
			return
		}
		h.sendResponse(w, note)

	case http.MethodDelete:
		if err := h.Service.DeleteNote(r.Context(), user, noteId); err != nil {
			h.sendError(w, "delete note", err)
			return
		}
		h.sendResponse(w, successResponse{Success: true})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) HandlePublish(w http.ResponseWriter, r *http.Request) {
	user, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	code, err := h.Service.PublishNote(r.Context(), user, r.PathValue("id"))
	if err != nil {
		h.sendError(w, "publish note", err)
		return
	}
	h.sendResponse(w, publishResponse{Code: code, Link: h.Service.ShareLink(code)})
}

type ticketResponse struct {
	Ticket string `json:"ticket"`
}

// HandleNoteTicket issues the ticket the owner's editor connects with.
func (h *Handler) HandleNoteTicket(w http.ResponseWriter, r *http.Request) {
	user, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	ticket, err := h.Service.IssueNoteTicket(r.Context(), user, r.PathValue("id"))
	if err != nil {
		h.sendError(w, "issue ticket", err)
		return
	}
	h.sendResponse(w, ticketResponse{Ticket: ticket})
}

// HandleShareTicket issues a viewer ticket for a share code. Signing in is
// optional; a bearer token that is sent must be valid.
func (h *Handler) HandleShareTicket(w http.ResponseWriter, r *http.Request) {
	var viewer models.User
	if h.getTokenFromAuthHeader(r) != "" {
		var ok bool
		if viewer, ok = h.authenticate(w, r); !ok {
			return
		}
	}

	ticket, err := h.Service.IssueShareTicket(r.Context(), viewer, r.PathValue("code"))
	if err != nil {
		h.sendError(w, "issue ticket", err)
		return
	}
	h.sendResponse(w, ticketResponse{Ticket: ticket})
}

// HandleShare serves a shared note read-only. No sign in needed.
func (h *Handler) HandleShare(w http.ResponseWriter, r *http.Request) {
	pub, err := h.Service.GetPublication(r.Context(), r.PathValue("code"))
	if err != nil {
		h.sendError(w, "get shared note", err)
		return
	}
	h.sendResponse(w, pub)
}

func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	user, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	f, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", f.ContentType())
	setAttachment(w, f.FileName())
	if err := h.Service.ExportDataset(r.Context(), user, f, w); err != nil {
		// Headers are out already
		log.Printf("Export for %s failed: %v", user.Id, err)
	}
}

// HandleNoteExport serves one page as PNG (format=png, page counted
// from 1) or the whole note as PDF (format=pdf).
func (h *Handler) HandleNoteExport(w http.ResponseWriter, r *http.Request) {
	user, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	noteId := r.PathValue("id")

	var buf bytes.Buffer
	var name, contentType string
	var err error
	switch r.URL.Query().Get("format") {
	case "png":
		page := 1
		if p := r.URL.Query().Get("page"); p != "" {
			page, err = strconv.Atoi(p)
			if err != nil {
				http.Error(w, "invalid page", http.StatusBadRequest)
				return
			}
		}
		contentType = "image/png"
		name, err = h.Service.ExportPage(r.Context(), user, noteId, page-1, &buf)

	case "pdf":
		contentType = "application/pdf"
		name, err = h.Service.ExportPDF(r.Context(), user, noteId, &buf)

	default:
		http.Error(w, "format must be png or pdf", http.StatusBadRequest)
		return
	}
	if err != nil {
		h.sendError(w, "export note", err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	setAttachment(w, name)
	buf.WriteTo(w)
}

type chatResponse struct {
	Response string `json:"response"`
}

func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	user, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	var req service.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.Service.Chat(r.Context(), user, req)
	if err != nil {
		h.sendError(w, "chat", err)
		return
	}
	h.sendResponse(w, chatResponse{Response: resp})
}

func setAttachment(w http.ResponseWriter, name string) {
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
}

// statusFor maps service errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrNoteNotFound), errors.Is(err, service.ErrShareNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidNoteId), errors.Is(err, service.ErrInvalidShareCode),
		errors.Is(err, service.ErrInvalidMessage), errors.Is(err, service.ErrMissingChatFields),
		errors.Is(err, export.ErrPageOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidToken), errors.Is(err, service.ErrTokenMissing):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrChatUserMismatch), errors.Is(err, notesync.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, service.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, service.ErrChatUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) sendError(w http.ResponseWriter, action string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("Failed to %s: %v", action, err)
		http.Error(w, "failed to "+action, status)
		return
	}
	http.Error(w, err.Error(), status)
}

func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request) (models.User, bool) {
	user, err := h.Service.AuthenticateToken(r.Context(), h.getTokenFromAuthHeader(r))
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return models.User{}, false
	}
	return user, true
}

func (h *Handler) sendResponse(w http.ResponseWriter, resp any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

func (h *Handler) getTokenFromAuthHeader(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(authHeader, prefix) {
		return ""
	}
	return strings.TrimPrefix(authHeader, prefix)
}
