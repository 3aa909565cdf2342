// Package websocket pushes export progress to storefront clients over
// socket.io.
package websocket

import (
	"net/http"

	"customizer/core"
	"customizer/handlers/auth"

	"github.com/sirupsen/logrus"
	"github.com/zishang520/engine.io/v2/types"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

const (
	EventPreviewReady   = "preview-ready"
	EventExportFinished = "export-finished"
)

// Hub owns the socket.io server. Clients join a design room with
// "join-design" {token, designId} and receive that design's export events.
type Hub struct {
	io *socketio.Server
}

func NewHub() *Hub {
	opts := socketio.DefaultServerOptions()
	opts.SetMaxHttpBufferSize(1000000)
	opts.SetPath("/socket.io")
	opts.SetAllowEIO3(true)
	opts.SetCors(&types.Cors{
		Origin:      "*",
		Credentials: true,
	})
	h := &Hub{io: socketio.NewServer(nil, opts)}
	h.io.On("connection", h.onConnection)
	return h
}

// Room is the room a user's design events are sent to.
func Room(userID, designID string) socketio.Room {
	return socketio.Room("design:" + userID + ":" + designID)
}

func (h *Hub) Handler() http.Handler {
	return h.io.ServeHandler(nil)
}

func (h *Hub) Close() {
	h.io.Close(nil)
}

type joinPayload struct {
	token    string
	designID string
}

func parseJoin(datas []any) (joinPayload, bool) {
	if len(datas) == 0 {
		return joinPayload{}, false
	}
	m, ok := datas[0].(map[string]any)
	if !ok {
		return joinPayload{}, false
	}
	var p joinPayload
	p.token, _ = m["token"].(string)
	p.designID, _ = m["designId"].(string)
	return p, p.token != "" && p.designID != ""
}

func (h *Hub) onConnection(clients ...any) {
	socket := clients[0].(*socketio.Socket)
	me := socket.Id()
	log := logrus.WithField("socket_id", me)
	log.Debug("socket connected")

	room := func(datas []any) (socketio.Room, bool) {
		p, ok := parseJoin(datas)
		if !ok {
			socket.Emit("join-error", "expected {token, designId}")
			return "", false
		}
		claims, err := auth.ParseJWT(p.token)
		if err != nil {
			socket.Emit("join-error", "invalid token")
			return "", false
		}
		return Room(claims.Subject, p.designID), true
	}

	socket.On("join-design", func(datas ...any) {
		r, ok := room(datas)
		if !ok {
			return
		}
		socket.Join(r)
		log.WithField("room", r).Debug("joined design room")
		socket.Emit("joined", string(r))
	})
	socket.On("leave-design", func(datas ...any) {
		if r, ok := room(datas); ok {
			socket.Leave(r)
		}
	})
	socket.On("disconnect", func(datas ...any) {
		log.Debug("socket disconnected")
		socket.RemoveAllListeners("")
	})
}

type previewEvent struct {
	DesignID string           `json:"designId"`
	Done     int              `json:"done"`
	Total    int              `json:"total"`
	Preview  core.ViewPreview `json:"preview"`
	Error    string           `json:"error,omitempty"`
}

type finishedEvent struct {
	DesignID string             `json:"designId"`
	Previews []core.ViewPreview `json:"previews"`
}

func (h *Hub) PreviewReady(userID, designID string, done, total int, preview core.ViewPreview, err error) {
	ev := previewEvent{DesignID: designID, Done: done, Total: total, Preview: preview}
	if err != nil {
		ev.Error = err.Error()
	}
	h.emit(Room(userID, designID), EventPreviewReady, ev)
}

func (h *Hub) ExportFinished(userID, designID string, previews []core.ViewPreview) {
	h.emit(Room(userID, designID), EventExportFinished, finishedEvent{DesignID: designID, Previews: previews})
}

func (h *Hub) emit(room socketio.Room, event string, payload any) {
	if err := h.io.To(room).Emit(event, payload); err != nil {
		logrus.WithFields(logrus.Fields{
			"error": err,
			"room":  room,
			"event": event,
		}).Warn("Failed to emit socket event")
	}
}
