package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// ConnectionManager manages websocket connections watching auction rounds
type ConnectionManager struct {
	roundConnections map[uuid.UUID]map[*Connection]bool
	mu               sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig

	broadcastCh chan BroadcastMessage
}

// Viewer identifies who is on the other end of a connection
type Viewer struct {
	Subject  string
	TeamID   string // empty for officials and anonymous viewers
	Official bool
}

// Connection represents a websocket connection to a client
type Connection struct {
	ID      string
	Viewer  Viewer
	RoundID uuid.UUID
	Conn    *websocket.Conn
	Send    chan []byte
	Manager *ConnectionManager

	ConnectedAt time.Time
}

// ConnectionConfig holds configuration for websocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBuffer      int
	CheckOrigin     func(r *http.Request) bool
}

// BroadcastMessage is an event for the connections watching one round.
// A restricted message only reaches officials and the teams in TeamIDs.
type BroadcastMessage struct {
	RoundID    uuid.UUID
	Event      *RoundEvent
	Restricted bool
	TeamIDs    []string
}

// ConnectionStats is a snapshot of the open connections
type ConnectionStats struct {
	TotalConnections int            `json:"total_connections"`
	ActiveRounds     int            `json:"active_rounds"`
	RoundConnections map[string]int `json:"round_connections"`
}

func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBuffer:      256,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	if config.SendBuffer <= 0 {
		config.SendBuffer = DefaultConnectionConfig().SendBuffer
	}
	return &ConnectionManager{
		roundConnections: make(map[uuid.UUID]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan BroadcastMessage, 1000),
	}
}

// Start processes broadcast messages until ctx is done
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			cm.closeAll()
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// UpgradeConnection upgrades an HTTP connection to a websocket watching roundID
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, viewer Viewer, roundID uuid.UUID) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		Viewer:      viewer,
		RoundID:     roundID,
		Conn:        conn,
		Send:        make(chan []byte, cm.config.SendBuffer),
		Manager:     cm,
		ConnectedAt: time.Now(),
	}

	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("subject", viewer.Subject).
		Str("round_id", roundID.String()).
		Msg("websocket connection established")

	return nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.roundConnections[conn.RoundID] == nil {
		cm.roundConnections[conn.RoundID] = make(map[*Connection]bool)
	}
	cm.roundConnections[conn.RoundID][conn] = true

	log.Debug().
		Str("connection_id", conn.ID).
		Str("round_id", conn.RoundID.String()).
		Int("total_connections", len(cm.roundConnections[conn.RoundID])).
		Msg("connection registered")
}

func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	connections, exists := cm.roundConnections[conn.RoundID]
	if !exists {
		return
	}
	if _, exists := connections[conn]; !exists {
		return
	}
	delete(connections, conn)
	close(conn.Send)
	if len(connections) == 0 {
		delete(cm.roundConnections, conn.RoundID)
	}

	log.Info().
		Str("connection_id", conn.ID).
		Str("subject", conn.Viewer.Subject).
		Str("round_id", conn.RoundID.String()).
		Msg("connection unregistered")
}

// BroadcastToRound queues an event for every connection watching the round
func (cm *ConnectionManager) BroadcastToRound(roundID uuid.UUID, event *RoundEvent) {
	cm.enqueue(BroadcastMessage{RoundID: roundID, Event: event})
}

// BroadcastToTeams queues an event for officials and the given teams
// watching the round. With no teams it reaches officials only.
func (cm *ConnectionManager) BroadcastToTeams(roundID uuid.UUID, teamIDs []string, event *RoundEvent) {
	cm.enqueue(BroadcastMessage{RoundID: roundID, Event: event, Restricted: true, TeamIDs: teamIDs})
}

func (cm *ConnectionManager) enqueue(message BroadcastMessage) {
	select {
	case cm.broadcastCh <- message:
	default:
		log.Warn().Str("round_id", message.RoundID.String()).Msg("broadcast channel full, dropping message")
	}
}

func (m BroadcastMessage) admits(v Viewer) bool {
	if !m.Restricted || v.Official {
		return true
	}
	for _, id := range m.TeamIDs {
		if v.TeamID != "" && id == v.TeamID {
			return true
		}
	}
	return false
}

func (cm *ConnectionManager) handleBroadcast(message BroadcastMessage) {
	eventData, err := json.Marshal(message.Event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	// Sends are non-blocking, so they can run under the read lock; slow
	// connections are dropped after it is released.
	var slow []*Connection
	sent := 0
	cm.mu.RLock()
	for conn := range cm.roundConnections[message.RoundID] {
		if !message.admits(conn.Viewer) {
			continue
		}
		select {
		case conn.Send <- eventData:
			sent++
		default:
			slow = append(slow, conn)
		}
	}
	cm.mu.RUnlock()

	for _, conn := range slow {
		log.Warn().
			Str("connection_id", conn.ID).
			Str("subject", conn.Viewer.Subject).
			Msg("connection send buffer full, closing connection")
		cm.unregisterConnection(conn)
		conn.Conn.Close()
	}

	log.Debug().
		Str("event_type", message.Event.Type).
		Str("round_id", message.RoundID.String()).
		Int("connections", sent).
		Msg("event broadcasted")
}

func (cm *ConnectionManager) closeAll() {
	cm.mu.RLock()
	var all []*Connection
	for _, connections := range cm.roundConnections {
		for conn := range connections {
			all = append(all, conn)
		}
	}
	cm.mu.RUnlock()

	for _, conn := range all {
		cm.unregisterConnection(conn)
	}
}

func (cm *ConnectionManager) Stats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	stats := ConnectionStats{
		ActiveRounds:     len(cm.roundConnections),
		RoundConnections: make(map[string]int, len(cm.roundConnections)),
	}
	for roundID, connections := range cm.roundConnections {
		stats.TotalConnections += len(connections)
		stats.RoundConnections[roundID.String()] = len(connections)
	}
	return stats
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to websocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump only keeps the read deadline alive; clients have nothing to say.
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected websocket close error")
			}
			return
		}
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
