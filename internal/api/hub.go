package api

import (
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"bingo-platform/internal/service"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	sendBufferSize = 32
)

// EventSnapshot is the type of the first message on a new subscription.
const EventSnapshot service.EventType = "snapshot"

// Hub fans service events out to websocket subscribers of a game or
// raffle. It implements service.Notifier.
type Hub struct {
	mu       sync.RWMutex
	topics   map[string]map[*subscriber]struct{}
	closed   bool
	upgrader websocket.Upgrader
}

type subscriber struct {
	conn  *websocket.Conn
	send  chan []byte
	topic string
}

// NewHub creates a Hub. With no origins listed, every origin may connect.
func NewHub(allowedOrigins []string) *Hub {
	h := &Hub{topics: make(map[string]map[*subscriber]struct{})}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return len(allowedOrigins) == 0 || origin == "" || slices.Contains(allowedOrigins, origin)
		},
	}
	return h
}

func gameTopic(id string) string   { return "game:" + id }
func raffleTopic(id string) string { return "raffle:" + id }

func topicOf(ev service.Event) string {
	switch {
	case ev.Game != nil:
		return gameTopic(ev.Game.ID)
	case ev.Raffle != nil:
		return raffleTopic(ev.Raffle.ID)
	}
	return ""
}

// Notify implements service.Notifier. It never blocks: a subscriber whose
// buffer is full is disconnected.
func (h *Hub) Notify(ev service.Event) {
	topic := topicOf(ev)
	if topic == "" {
		return
	}
	msg, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("type", string(ev.Type)).Msg("Failed to encode event")
		return
	}
	h.broadcast(topic, msg)
}

func (h *Hub) broadcast(topic string, msg []byte) {
	var slow []*subscriber
	h.mu.RLock()
	for s := range h.topics[topic] {
		select {
		case s.send <- msg:
		default:
			slow = append(slow, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range slow {
		log.Warn().Str("topic", topic).Msg("Dropping slow websocket subscriber")
		h.remove(s)
	}
}

// Subscribers returns how many clients watch a topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

func (h *Hub) add(s *subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	subs, ok := h.topics[s.topic]
	if !ok {
		subs = make(map[*subscriber]struct{})
		h.topics[s.topic] = subs
	}
	subs[s] = struct{}{}
	return true
}

// remove unsubscribes s and closes its send channel once.
func (h *Hub) remove(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.topics[s.topic]
	if _, ok := subs[s]; !ok {
		return
	}
	delete(subs, s)
	if len(subs) == 0 {
		delete(h.topics, s.topic)
	}
	close(s.send)
}

// Close disconnects every subscriber and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for topic, subs := range h.topics {
		for s := range subs {
			close(s.send)
		}
		delete(h.topics, topic)
	}
}

// serve upgrades the request, sends the snapshot and streams events for
// topic until the client goes away.
func (h *Hub) serve(c *gin.Context, topic string, snapshot service.Event) {
	first, err := json.Marshal(snapshot)
	if err != nil {
		respondError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Debug().Err(err).Str("topic", topic).Msg("Websocket upgrade failed")
		return
	}

	s := &subscriber{conn: conn, send: make(chan []byte, sendBufferSize), topic: topic}
	s.send <- first
	if !h.add(s) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}
	log.Debug().Str("topic", topic).Msg("Websocket subscriber connected")

	go h.writePump(s)
	h.readPump(s)
}

// readPump discards client messages and keeps the read deadline fresh.
func (h *Hub) readPump(s *subscriber) {
	defer func() {
		h.remove(s)
		_ = s.conn.Close()
	}()

	s.conn.SetReadLimit(512)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Str("topic", s.topic).Msg("Websocket read error")
			}
			return
		}
	}
}

func (h *Hub) writePump(s *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) watchGame(c *gin.Context) {
	g, err := s.deps.Bingo.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	s.deps.Hub.serve(c, gameTopic(g.ID), service.Event{Type: EventSnapshot, Game: g})
}

func (s *Server) watchRaffle(c *gin.Context) {
	rf, err := s.deps.Raffles.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	s.deps.Hub.serve(c, raffleTopic(rf.ID), service.Event{Type: EventSnapshot, Raffle: rf})
}
