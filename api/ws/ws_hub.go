package ws

import (
	"context"
	"encoding/json"
	"log"

	"github.com/dayzy/notes/cache"
	"github.com/dayzy/notes/notesync"
	"github.com/dayzy/notes/service"
)

type watch struct {
	client *Client
	code   string
}

// Hub tracks open editors by user and by share code and relays the
// publication events of each watched code to the editors showing it.
type Hub struct {
	notesCache     cache.NotesCache
	OpenCh         chan *Client
	CloseCh        chan *Client
	WatchCh        chan watch
	UserDeletedCh  chan string
	ShareEventCh   chan cache.ShareEvent
	userToClients  map[string]map[*Client]struct{}
	shareToClients map[string]map[*Client]struct{}
	shareCancel    map[string]context.CancelFunc
}

func NewHub(notesCache cache.NotesCache) *Hub {
	return &Hub{
		notesCache:     notesCache,
		OpenCh:         make(chan *Client, 256),
		CloseCh:        make(chan *Client, 256),
		WatchCh:        make(chan watch, 256),
		UserDeletedCh:  make(chan string, 64),
		ShareEventCh:   make(chan cache.ShareEvent, 1024),
		userToClients:  make(map[string]map[*Client]struct{}),
		shareToClients: make(map[string]map[*Client]struct{}),
		shareCancel:    make(map[string]context.CancelFunc),
	}
}

const maxConnectionsPerUser = 5

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.OpenCh:
			if client.user.Id != "" {
				if _, ok := h.userToClients[client.user.Id]; !ok {
					h.userToClients[client.user.Id] = make(map[*Client]struct{})
				}
				if len(h.userToClients[client.user.Id]) >= maxConnectionsPerUser {
					log.Printf("User %s reached max connections (%d)", client.user.Id, maxConnectionsPerUser)
					client.kick("Too many open editors")
					continue
				}
				h.userToClients[client.user.Id][client] = struct{}{}
			}
			if code := client.loop.Session().ShareCode(); code != "" {
				h.watch(client, code)
			}

		case client := <-h.CloseCh:
			h.unwatch(client)
			if clients, ok := h.userToClients[client.user.Id]; ok {
				delete(clients, client)
				if len(clients) == 0 {
					delete(h.userToClients, client.user.Id)
				}
			}

		case w := <-h.WatchCh:
			h.watch(w.client, w.code)

		case event := <-h.ShareEventCh:
			for client := range h.shareToClients[event.Code] {
				switch event.Type {
				case cache.ShareEventUpdated:
					client.loop.Nudge()
				case cache.ShareEventDeleted:
					client.sendMessage(responseMessage{Type: "share_deleted", Data: map[string]any{"code": event.Code}})
					client.kick(notesync.ErrPublicationAbsent.Error())
				}
			}

		case userId := <-h.UserDeletedCh:
			for client := range h.userToClients[userId] {
				client.kick("Account deleted")
			}
			delete(h.userToClients, userId)
		}
	}
}

func (h *Hub) watch(client *Client, code string) {
	if client.shareCode == code {
		return
	}
	h.unwatch(client)

	if h.shareToClients[code] == nil {
		ctx, cancel := context.WithCancel(context.Background())
		channel := cache.ShareChannel(code)

		err := h.notesCache.Subscribe(ctx, channel, func(messageBytes []byte) {
			var event cache.ShareEvent
			if err := json.Unmarshal(messageBytes, &event); err != nil {
				log.Printf("Invalid event on %s: %v", channel, err)
				return
			}
			h.ShareEventCh <- event
		})
		if err != nil {
			// The editor still polls on its own timer
			log.Printf("Failed to create redis sub for channel %s: %v", channel, err)
			cancel()
			return
		}

		h.shareToClients[code] = make(map[*Client]struct{})
		h.shareCancel[code] = cancel
	}
	h.shareToClients[code][client] = struct{}{}
	client.shareCode = code
}

func (h *Hub) unwatch(client *Client) {
	code := client.shareCode
	if code == "" {
		return
	}
	client.shareCode = ""

	delete(h.shareToClients[code], client)
	if len(h.shareToClients[code]) == 0 {
		if cancel, ok := h.shareCancel[code]; ok {
			cancel()
			delete(h.shareCancel, code)
		}
		delete(h.shareToClients, code)
	}
}

func (h *Hub) InitSubscriptions(shutdownCtx context.Context) error {
	err := h.notesCache.Subscribe(shutdownCtx, service.UserDeletedChannel, func(message []byte) {
		var userDeletedMsg service.UserDeletedMessage
		if err := json.Unmarshal(message, &userDeletedMsg); err == nil {
			h.UserDeletedCh <- userDeletedMsg.UserId
		}
	})
	if err != nil {
		log.Printf("WS hub failed to subscribe to %s: %v", service.UserDeletedChannel, err)
		return err
	}
	return nil
}
