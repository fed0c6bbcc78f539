package api

import (
	"context"
	"log"
	"net/http"

	"github.com/dayzy/notes/api/rest"
	"github.com/dayzy/notes/api/ws"
	"github.com/dayzy/notes/cache"
	"github.com/dayzy/notes/canvas"
	"github.com/dayzy/notes/llm"
	"github.com/dayzy/notes/mq"
	"github.com/dayzy/notes/service"
	"github.com/dayzy/notes/store"
	"github.com/dayzy/notes/worker"
	"golang.org/x/oauth2"
)

type Config struct {
	OAuthConfigs map[string]*oauth2.Config
	JWTSecret    []byte
	// Origin is where the web app is served; share links and the websocket
	// origin check use it.
	Origin string
	// AllowRemoteImages lets pages reference http(s) images.
	AllowRemoteImages bool
}

type NotesAPI struct {
	restHandler *rest.Handler
	wsHandler   *ws.Handler
	shutdownCtx context.Context
}

func NewNotesAPI(
	notesStore store.NotesStore,
	shareCleanupQueue mq.MessageQueue,
	notesCache cache.NotesCache,
	completer llm.Completer,
	cfg Config,
	shutdownCtx context.Context,
) (*NotesAPI, error) {
	wsHub := ws.NewHub(notesCache)
	err := wsHub.InitSubscriptions(shutdownCtx)
	if err != nil {
		log.Printf("Failed to start WS Hub subscriptions service: %v", err)
		return &NotesAPI{}, err
	}
	go wsHub.Run()

	shareNotifier := worker.NewShareNotifier(notesCache, 250)
	go shareNotifier.Run(shutdownCtx)

	cleanupConsumer := worker.NewShareCleanupConsumer(shareCleanupQueue, notesStore, notesCache)
	go cleanupConsumer.Run(shutdownCtx)

	svc, err := service.NewService(
		notesStore,
		notesCache,
		shareCleanupQueue,
		shareNotifier,
		completer,
		cfg.OAuthConfigs,
		cfg.JWTSecret,
		cfg.Origin,
	)
	if err != nil {
		log.Printf("Failed to create service: %v", err)
		return &NotesAPI{}, err
	}
	if cfg.AllowRemoteImages {
		svc.Fetch = canvas.HTTPFetcher
	}

	return &NotesAPI{
		restHandler: rest.NewHandler(svc),
		wsHandler:   ws.NewHandler(svc, wsHub),
		shutdownCtx: shutdownCtx,
	}, nil
}

func (notesAPI *NotesAPI) RegisterRoutes(mux *http.ServeMux, requiredOrigin string) {
	// Health check endpoint (no auth required)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	h := notesAPI.restHandler
	mux.HandleFunc("/login", h.HandleLogin)
	mux.HandleFunc("/me", h.HandleMe)
	mux.HandleFunc("/notes", h.HandleNotes)
	mux.HandleFunc("/notes/{id}", h.HandleNote)
	mux.HandleFunc("POST /notes/{id}/publish", h.HandlePublish)
	mux.HandleFunc("GET /notes/{id}/export", h.HandleNoteExport)
	mux.HandleFunc("POST /notes/{id}/ticket", h.HandleNoteTicket)
	mux.HandleFunc("GET /shares/{code}", h.HandleShare)
	mux.HandleFunc("POST /shares/{code}/ticket", h.HandleShareTicket)
	mux.HandleFunc("GET /export", h.HandleExport)
	mux.HandleFunc("/api/ai-chat", h.HandleChat)

	wsUpgrader := notesAPI.wsHandler.NewWsUpgrader(requiredOrigin)
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		notesAPI.wsHandler.ServeWS(wsUpgrader, w, r, notesAPI.shutdownCtx)
	})
}
