package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/dayzy/notes/editor"
	"github.com/dayzy/notes/models"
	"github.com/dayzy/notes/notesync"
	"github.com/dayzy/notes/overlay"
	"github.com/dayzy/notes/service"
	"github.com/gorilla/websocket"
)

const subprotocol = "dayzy-v1"

type Handler struct {
	Service *service.Service
	Hub     *Hub
}

func NewHandler(svc *service.Service, hub *Hub) *Handler {
	return &Handler{
		Service: svc,
		Hub:     hub,
	}
}

func (h *Handler) NewWsUpgrader(requiredOrigin string) websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == requiredOrigin
		},
		Subprotocols: []string{subprotocol},
	}
}

// ServeWS opens an editor over a websocket. The editor ticket travels as
// the second subprotocol and decides which note or share is opened.
func (h *Handler) ServeWS(wsUpgrader websocket.Upgrader, w http.ResponseWriter, r *http.Request, shutdownCtx context.Context) {
	protocols := strings.Split(r.Header.Get("Sec-WebSocket-Protocol"), ",")
	ticket := ""
	if len(protocols) == 2 {
		ticket = strings.TrimSpace(protocols[1])
	}

	t, user, authErr := h.Service.ResolveTicket(r.Context(), ticket)

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade ws connection: %v", err)
		return
	}

	// Must upgrade the connection in order to be able to send custom close message
	if authErr != nil {
		closeWithReason(conn, "Unauthenticated")
		return
	}

	client := NewClient(h.Hub, conn, user, h.HandleWsMessage)

	loop, err := h.Service.OpenEditor(r.Context(), t, user, client)
	if err != nil {
		log.Printf("Failed to open editor: %v", err)
		closeWithReason(conn, err.Error())
		return
	}
	client.loop = loop

	h.Hub.OpenCh <- client

	go loop.Run(client.ctx)
	go client.ReadPump()
	go client.WritePump(shutdownCtx)

	client.sendState(true)
}

func closeWithReason(conn *websocket.Conn, reason string) {
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason),
	)
	conn.Close()
}

// Websocket message structs
type message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type labelMessage struct {
	Id   string  `json:"id"`
	Text string  `json:"text"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

type styleMessage struct {
	Id string `json:"id"`
	overlay.StyleToggle
}

type pageMessage struct {
	Page int `json:"page"`
}

type renameMessage struct {
	Title string `json:"title"`
}

func decode(msg message, v any) error {
	if len(msg.Data) == 0 {
		return errors.New("missing data")
	}
	return json.Unmarshal(msg.Data, v)
}

func (h *Handler) HandleWsMessage(client *Client, messageType int, messageBytes []byte) {
	var msg message
	if err := json.Unmarshal(messageBytes, &msg); err != nil {
		log.Printf("Invalid JSON: %v", err)
		return
	}

	session := client.loop.Session()
	outcome := editor.OutcomeNone
	var err error

	switch msg.Type {
	case "tool":
		var settings editor.ToolSettings
		if err = decode(msg, &settings); err == nil {
			outcome, err = session.SetTool(settings)
		}

	case "pointer_down":
		var p models.Point
		if err = decode(msg, &p); err == nil {
			err = session.BeginStroke(p)
		}

	case "pointer_move":
		var p models.Point
		if err = decode(msg, &p); err == nil {
			if session.PointerMove(p) != editor.OutcomeNone {
				// Mid-gesture feedback skips the page image
				client.sendState(false)
			}
			return
		}

	case "pointer_up":
		outcome, err = session.PointerUp()

	case "pointer_leave":
		outcome, err = session.PointerLeave()

	case "add_label":
		var l labelMessage
		if err = decode(msg, &l); err == nil {
			_, outcome = session.AddLabel(l.Text)
		}

	case "label_down":
		var l labelMessage
		if err = decode(msg, &l); err == nil {
			outcome, err = session.BeginLabelDrag(l.Id, models.Point{X: l.X, Y: l.Y})
		}

	case "resize_down":
		var l labelMessage
		if err = decode(msg, &l); err == nil {
			outcome, err = session.BeginLabelResize(l.Id, models.Point{X: l.X, Y: l.Y})
		}

	case "toggle_style":
		var s styleMessage
		if err = decode(msg, &s); err == nil {
			outcome = session.ToggleStyle(s.Id, s.StyleToggle)
		}

	case "delete_label":
		var l labelMessage
		if err = decode(msg, &l); err == nil {
			outcome = session.DeleteLabel(l.Id)
		}

	case "select_label":
		var l labelMessage
		if err = decode(msg, &l); err == nil {
			outcome = session.SelectLabel(l.Id)
		}

	case "undo":
		outcome, err = session.Undo()

	case "redo":
		outcome, err = session.Redo()

	case "select_page":
		var p pageMessage
		if err = decode(msg, &p); err == nil {
			outcome, err = session.SelectPage(p.Page)
		}

	case "add_page":
		outcome, err = session.AddPage()

	case "rename":
		var rn renameMessage
		if err = decode(msg, &rn); err == nil {
			if session.Role() != editor.RoleOwner {
				err = notesync.ErrNotOwner
			} else if title, ok := service.NormalizeTitle(rn.Title); ok {
				outcome = session.SetTitle(title)
			}
		}

	case "publish":
		h.handlePublish(client)
		return

	default:
		log.Printf("Unknown message type: %v", msg.Type)
		return
	}

	if err != nil {
		client.sendMessage(responseMessage{
			Type: "error",
			Data: map[string]any{"request": msg.Type, "error": err.Error()},
		})
		return
	}

	switch outcome {
	case editor.OutcomeCommit:
		client.loop.Commit(client.ctx)
		client.sendState(true)
	case editor.OutcomeView:
		client.sendState(true)
	}
}

func (h *Handler) handlePublish(client *Client) {
	code, err := client.loop.Publish(client.ctx, client.user.Username)
	if err != nil {
		log.Printf("Publish failed: %v", err)
		client.sendMessage(responseMessage{
			Type: "error",
			Data: map[string]any{"request": "publish", "error": err.Error()},
		})
		return
	}

	h.Hub.WatchCh <- watch{client: client, code: code}
	client.sendMessage(responseMessage{
		Type: "share_link",
		Data: map[string]any{"code": code, "link": h.Service.ShareLink(code)},
	})
	client.sendState(false)
}
