package service

import (
	"time"

	"github.com/dayzy/notes/cache"
	"github.com/dayzy/notes/canvas"
	"github.com/dayzy/notes/llm"
	"github.com/dayzy/notes/mq"
	"github.com/dayzy/notes/notesync"
	"github.com/dayzy/notes/store"
	"github.com/dayzy/notes/worker"
	"golang.org/x/oauth2"
)

type Service struct {
	Store         store.NotesStore
	Cache         cache.NotesCache
	MQ            mq.MessageQueue
	ShareNotifier *worker.ShareNotifier
	LLM           llm.Completer
	OAuthConfigs  map[string]*oauth2.Config
	JWTSecret     []byte
	// Origin prefixes share links, e.g. https://dayzy.app
	Origin string
	// Fetch loads page images stored as http(s) URLs. Nil refuses them.
	Fetch canvas.Fetcher
	// SyncConfig is handed to every editor loop this service opens.
	SyncConfig notesync.Config
	Now        func() time.Time
}

func NewService(
	store store.NotesStore,
	cache cache.NotesCache,
	mq mq.MessageQueue,
	shareNotifier *worker.ShareNotifier,
	completer llm.Completer,
	oauthConfigs map[string]*oauth2.Config,
	jwtSecret []byte,
	origin string,
) (*Service, error) {
	oauthConfigs, err := withProviderEndpoints(oauthConfigs)
	if err != nil {
		return nil, err
	}

	return &Service{
		Store:         store,
		Cache:         cache,
		MQ:            mq,
		ShareNotifier: shareNotifier,
		LLM:           completer,
		OAuthConfigs:  oauthConfigs,
		JWTSecret:     jwtSecret,
		Origin:        origin,
		SyncConfig:    notesync.DefaultConfig(),
		Now:           time.Now,
	}, nil
}
