package server

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"iocgo/internal/ioclog"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The UI is served from the same origin in production; permissive
	// checking keeps development servers on other ports usable.
	CheckOrigin: func(*http.Request) bool { return true },
}

// wsHandler upgrades each connection and runs the endpoint protocol: one
// Initial message with the full requested subset, then an Update message
// per filtered StateUpdate, while inbound text frames are applied as
// input updates. srvCtx is the server module's lifetime (used for the
// subscription), independent of any single request's context.
func wsHandler(srvCtx context.Context, state *State, cfg WebSocketConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := ioclog.For("server").WithField("conn", uuid.NewString()[:8]).WithField("path", cfg.Path)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.WithError(err).Warn("websocket upgrade failed")
			return
		}
		defer conn.Close()
		log.Debug("websocket connected")

		initial, sub, release := state.Subscribe(srvCtx, cfg.Inputs, cfg.Outputs)
		defer release()

		initMsg, err := encodeInitial(initial, state.meta)
		if err != nil {
			log.WithError(err).Error("encode initial state")
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, initMsg); err != nil {
			log.WithError(err).Debug("write initial state")
			return
		}

		// Single-writer: only this goroutine touches the connection's
		// write side after the initial message.
		readerDone := make(chan struct{})
		writerDone := make(chan struct{})
		go func() {
			defer close(writerDone)
			for {
				select {
				case upd, ok := <-sub.Updates:
					if !ok {
						_ = conn.WriteMessage(websocket.CloseMessage,
							websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
						return
					}
					msg, err := encodeUpdate(upd)
					if err != nil {
						log.WithError(err).Error("encode state update")
						continue
					}
					if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
						return
					}
				case <-readerDone:
					return
				case <-srvCtx.Done():
					_ = conn.WriteMessage(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
					return
				}
			}
		}()

		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.WithError(err).Debug("websocket read")
				}
				break
			}
			if msgType != websocket.TextMessage {
				log.WithField("type", msgType).Debug("dropping non-text message")
				continue
			}
			values, err := decodeClientUpdate(data)
			if err != nil {
				log.WithError(err).Warn("dropping malformed client update")
				continue
			}
			// Input side only: Update ignores output names by design,
			// so clients can never write server Outputs.
			state.Update(srvCtx, values)
		}

		close(readerDone)
		<-writerDone
		log.Debug("websocket closed")
	}
}
