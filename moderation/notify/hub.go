// moderation/notify/hub.go
package notify

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Ftotnem/MODERATION-SERVICE/moderation/live"
	"github.com/Ftotnem/MODERATION-SERVICE/shared/models"
	"github.com/Ftotnem/MODERATION-SERVICE/shared/timeutil"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 32
)

// Event is the wire format pushed to connected staff clients.
type Event struct {
	Type       string `json:"type"`
	At         int64  `json:"at"` // ms since epoch
	PlayerUUID string `json:"playerUuid,omitempty"`
	PlayerName string `json:"playerName,omitempty"`
	StaffName  string `json:"staffName,omitempty"`
	Kind       string `json:"kind,omitempty"`
	Category   string `json:"category,omitempty"`
	Reason     string `json:"reason,omitempty"`
	DurationMs int64  `json:"durationMs,omitempty"`
	Frozen     bool   `json:"frozen,omitempty"`
	Message    string `json:"message,omitempty"`
}

// client is one connected staff session. Writes go through a buffered channel
// drained by a dedicated writer goroutine; a client that cannot keep up is
// dropped rather than blocking the hub.
type client struct {
	staff live.PlayerRef
	conn  *websocket.Conn
	send  chan []byte
}

// Hub fans moderation events out to connected staff clients over websocket.
// It implements the engine's event sink, and doubles as the staff locator the
// freeze engine consults for logout-ban attribution.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients: make(map[*client]struct{}),
	}
}

// HandleWS upgrades a staff connection and keeps it subscribed until the peer
// goes away. The game server connects on behalf of each online staff member
// with ?uuid= and ?name=.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	staffUUID := r.URL.Query().Get("uuid")
	staffName := r.URL.Query().Get("name")
	if staffUUID == "" {
		http.Error(w, "missing uuid", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WARN: Notify upgrade failed for staff %s: %v", staffUUID, err)
		return
	}

	c := &client{
		staff: live.PlayerRef{UUID: staffUUID, Name: staffName},
		conn:  conn,
		send:  make(chan []byte, sendBufferSize),
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()
	log.Printf("INFO: Staff %s (%s) subscribed to moderation events (%d connected)", staffName, staffUUID, count)

	go c.writeLoop()

	// The read loop only watches for the peer going away; staff clients never
	// send anything the hub acts on.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.drop(c)
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	if ok {
		c.conn.Close()
		log.Printf("INFO: Staff %s (%s) unsubscribed from moderation events", c.staff.Name, c.staff.UUID)
	}
}

func (c *client) writeLoop() {
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// broadcast queues an event for every connected client. Clients whose send
// buffer is full are dropped.
func (h *Hub) broadcast(ev Event) {
	ev.At = timeutil.Now()
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("ERROR: Failed to marshal notify event %q: %v", ev.Type, err)
		return
	}

	h.mu.Lock()
	var slow []*client
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.Unlock()

	for _, c := range slow {
		log.Printf("WARN: Dropping slow notify client %s (%s)", c.staff.Name, c.staff.UUID)
		h.drop(c)
	}
}

// PunishmentIssued pushes a freshly committed punishment to staff clients.
func (h *Hub) PunishmentIssued(p *models.Punishment) {
	h.broadcast(Event{
		Type:       "punishment_issued",
		PlayerUUID: p.PlayerUUID,
		PlayerName: p.PlayerName,
		StaffName:  p.StaffName,
		Kind:       string(p.Kind),
		Reason:     p.Reason,
		DurationMs: p.DurationMs,
	})
}

// PunishmentRevoked pushes a revocation to staff clients.
func (h *Hub) PunishmentRevoked(category models.Category, playerUUID, staffName string) {
	h.broadcast(Event{
		Type:       "punishment_revoked",
		PlayerUUID: playerUUID,
		StaffName:  staffName,
		Category:   string(category),
	})
}

// FreezeToggled pushes freeze state changes to staff clients.
func (h *Hub) FreezeToggled(playerUUID, playerName, staffName string, frozen bool) {
	h.broadcast(Event{
		Type:       "freeze_toggled",
		PlayerUUID: playerUUID,
		PlayerName: playerName,
		StaffName:  staffName,
		Frozen:     frozen,
	})
}

// StaffChat relays a staff-channel chat line to every connected staff client.
func (h *Hub) StaffChat(from live.PlayerRef, message string) {
	h.broadcast(Event{
		Type:       "staff_chat",
		PlayerUUID: from.UUID,
		StaffName:  from.Name,
		Message:    message,
	})
}

// OnlineStaff returns the staff members currently subscribed to the hub.
func (h *Hub) OnlineStaff() []live.PlayerRef {
	h.mu.Lock()
	defer h.mu.Unlock()
	staff := make([]live.PlayerRef, 0, len(h.clients))
	for c := range h.clients {
		staff = append(staff, c.staff)
	}
	return staff
}

// CloseAll disconnects every client. Called on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.drop(c)
	}
}
