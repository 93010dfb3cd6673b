// Package streamws is the thin wire adapter for the one streaming surface
// spec §6 names: "Per-session duplex channel serving the events of §4.K as
// JSON messages, plus client-initiated keepalive pings." Everything else
// about HTTP/websocket transport is out of this core's scope (spec §1) —
// this file exists only so the Progress Bus (internal/bus) has a concrete
// way to reach a client, grounded on the upgrader/ping-pong shape
// C360Studio-semstreams' output/websocket component uses, cut down to the
// single responsibility this spec actually names.
package streamws

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/veritas-audit/veritas/internal/bus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

const (
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// Serve upgrades r to a websocket connection and streams every Progress Bus
// event published for sessionID until the client disconnects or the bus
// closes the session's channel. It also reads (and discards) any
// client-initiated keepalive pings, per spec §4.K/§6.
func Serve(b *bus.Bus, sessionID string, w http.ResponseWriter, r *http.Request) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// Drain client-initiated messages (keepalive pings) on their own
	// goroutine; a read error here just means the client went away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	events := b.Subscribe(sessionID)
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return err
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		}
	}
}
