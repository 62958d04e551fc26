package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Message is the websocket envelope in both directions.
type Message struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data,omitempty"`
	State *View           `json:"state,omitempty"`
	Error string          `json:"error,omitempty"`
}

// Message types.
const (
	MsgState            = "state"
	MsgError            = "error"
	MsgStep             = "step"
	MsgTurn             = "turn"
	MsgGame             = "game"
	MsgDeclareAttackers = "declare_attackers"
	MsgDeclareBlockers  = "declare_blockers"
	MsgPlayLand         = "play_land"
	MsgCastCreature     = "cast_creature"
	MsgEndMain          = "end_main"
)

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// envelope is a payload for a single client.
type envelope struct {
	to      *client
	payload []byte
}

// Hub fans match state out to every connected websocket client and feeds
// client commands into the session.
type Hub struct {
	session    *Session
	logger     *zap.Logger
	clients    map[*client]bool
	broadcast  chan []byte
	direct     chan envelope
	register   chan *client
	unregister chan *client
	done       chan struct{}
}

// NewHub creates a hub subscribed to session changes. Run must be started
// before the session is mutated.
func NewHub(session *Session, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		session:    session,
		logger:     logger.Named("ws"),
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, sendBuffer),
		direct:     make(chan envelope, sendBuffer),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
	}
	session.OnChange(h.Broadcast)
	return h
}

// Run serves registrations and broadcasts until Stop.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.clients[c] = true
			h.logger.Debug("client registered", zap.Int("clients", len(h.clients)))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.logger.Debug("client unregistered", zap.Int("clients", len(h.clients)))
			}

		case e := <-h.direct:
			if h.clients[e.to] {
				select {
				case e.to.send <- e.payload:
				default:
				}
			}

		case message := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- message:
				default:
					close(c.send)
					delete(h.clients, c)
				}
			}

		case <-h.done:
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			return
		}
	}
}

// Stop ends Run and disconnects all clients.
func (h *Hub) Stop() {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}

// Broadcast pushes a state message to every client.
func (h *Hub) Broadcast(v View) {
	payload, err := json.Marshal(Message{Type: MsgState, State: &v})
	if err != nil {
		h.logger.Error("failed to encode state", zap.Error(err))
		return
	}
	select {
	case h.broadcast <- payload:
	case <-h.done:
	}
}

// ServeWS upgrades the request and registers the client. The current state
// is sent immediately.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	state := h.session.State()
	h.reply(c, Message{Type: MsgState, State: &state})

	go c.writePump()
	go c.readPump(h)
}

func (h *Hub) handleMessage(c *client, msg Message) {
	h.logger.Debug("received message", zap.String("type", msg.Type))

	var err error
	switch msg.Type {
	case MsgState:
		state := h.session.State()
		h.reply(c, Message{Type: MsgState, State: &state})
		return
	case MsgStep:
		h.session.Step()
	case MsgTurn:
		h.session.StepTurn()
	case MsgGame:
		h.session.RunGame()
	case MsgDeclareAttackers:
		var req attackersRequest
		if err = json.Unmarshal(msg.Data, &req); err == nil {
			_, err = h.session.DeclareAttackers(req.Attackers)
		}
	case MsgDeclareBlockers:
		var req blockersRequest
		if err = json.Unmarshal(msg.Data, &req); err == nil {
			_, err = h.session.DeclareBlockers(req.Blocking)
		}
	case MsgPlayLand:
		var req handRequest
		if err = json.Unmarshal(msg.Data, &req); err == nil {
			_, err = h.session.PlayLand(req.Index)
		}
	case MsgCastCreature:
		var req handRequest
		if err = json.Unmarshal(msg.Data, &req); err == nil {
			_, err = h.session.CastCreature(req.Index)
		}
	case MsgEndMain:
		_, err = h.session.EndMain()
	default:
		h.reply(c, Message{Type: MsgError, Error: "unknown message type " + msg.Type})
		return
	}

	// Successful mutations reach every client through the session's change hook.
	if err != nil {
		h.reply(c, Message{Type: MsgError, Error: err.Error()})
	}
}

func (h *Hub) reply(c *client, msg Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to encode reply", zap.Error(err))
		return
	}
	select {
	case h.direct <- envelope{to: c, payload: payload}:
	case <-h.done:
	}
}

func (c *client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read failed", zap.Error(err))
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			h.reply(c, Message{Type: MsgError, Error: "malformed message"})
			continue
		}
		h.handleMessage(c, msg)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
