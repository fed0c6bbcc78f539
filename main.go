package main

import (
	"context"
	"encoding/base64"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dayzy/notes/api"
	"github.com/dayzy/notes/cache/redis"
	"github.com/dayzy/notes/llm"
	"github.com/dayzy/notes/llm/gemini"
	"github.com/dayzy/notes/mq/sqsmq"
	"github.com/dayzy/notes/store"
	"github.com/dayzy/notes/store/dynamo"
	mongostore "github.com/dayzy/notes/store/mongo"
	"golang.org/x/oauth2"
)

const (
	DynamoDBTable   = "DayZy"
	MongoDBDatabase = "dayzy"
)

func newStore(ctx context.Context, devMode bool) (store.NotesStore, error) {
	switch driver := os.Getenv("STORE_DRIVER"); driver {
	case "", "dynamo":
		return dynamo.NewDynamoNotesStore(ctx, devMode, os.Getenv("DYNAMODB_ENDPOINT"), DynamoDBTable)
	case "mongo":
		return mongostore.NewMongoNotesStore(ctx, os.Getenv("MONGODB_URI"), MongoDBDatabase)
	default:
		log.Fatalf("Unknown STORE_DRIVER %q", driver)
		return nil, nil
	}
}

func main() {
	ctx := context.Background()
	devMode := os.Getenv("DEV_MODE") == "true"

	notesStore, err := newStore(ctx, devMode)
	if err != nil {
		log.Fatalf("Failed to create store: %v", err)
	}

	shareCleanupQueue, err := sqsmq.NewSQSMessageQueue(ctx, devMode, os.Getenv("SQS_ENDPOINT"), sqsmq.ShareCleanupQueue)
	if err != nil {
		log.Fatalf("Failed to create SQS MQ: %v", err)
	}

	notesCache, err := redis.NewRedisNotesCache(ctx, devMode, os.Getenv("REDIS_ENDPOINT"))
	if err != nil {
		log.Fatalf("Failed to create redis cache: %v", err)
	}

	var completer llm.Completer
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		completer, err = gemini.NewGeminiCompleter(ctx, apiKey, os.Getenv("GEMINI_MODEL"))
		if err != nil {
			log.Fatalf("Failed to create gemini client: %v", err)
		}
	} else {
		log.Printf("GEMINI_API_KEY not set, chat assistant disabled")
	}

	origin := os.Getenv("APP_ORIGIN")
	if origin == "" {
		origin = "http://localhost:5173"
	}

	var oauthConfigs = map[string]*oauth2.Config{
		"github": {
			ClientID:     os.Getenv("GITHUB_CLIENT_ID"),
			ClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
			RedirectURL:  origin + "/auth/callback",
		},
		"google": {
			ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
			ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
			RedirectURL:  origin + "/auth/callback",
		},
	}

	jwtSecret, err := base64.StdEncoding.DecodeString(os.Getenv("JWT_SECRET"))
	if err != nil {
		log.Fatalf("Failed to decode base64 jwtSecret: %v", err)
	}

	shutdownCtx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	notesApi, err := api.NewNotesAPI(notesStore, shareCleanupQueue, notesCache, completer, api.Config{
		OAuthConfigs:      oauthConfigs,
		JWTSecret:         jwtSecret,
		Origin:            origin,
		AllowRemoteImages: os.Getenv("ALLOW_REMOTE_IMAGES") == "true",
	}, shutdownCtx)
	if err != nil {
		log.Fatalf("Failed to create notes api: %v", err)
	}

	mux := http.NewServeMux()
	notesApi.RegisterRoutes(mux, origin)

	hostPort := "8080"
	if p := os.Getenv("HOST_PORT"); p != "" {
		hostPort = p
	}
	server := &http.Server{Addr: ":" + hostPort, Handler: mux}
	go func() {
		<-shutdownCtx.Done()
		log.Printf("Server shutting down...")
		server.Shutdown(context.Background())
	}()

	log.Printf("Starting server on host port: %s\n", hostPort)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}
