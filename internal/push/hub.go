package push

import (
	"sync"

	"go.uber.org/zap"
)

// Publisher is the side channel notification dispatch pushes into. Publish
// to a user with no live connection is a silent no-op.
type Publisher interface {
	Publish(userID int64, payload interface{})
}

const subscriberBuffer = 16

// Hub is the user-id-keyed broadcast room shared across requests. Membership
// mutates on connect/disconnect while dispatches read it concurrently, so
// every access goes through the mutex.
type Hub struct {
	mu     sync.RWMutex
	byUser map[int64]map[string]chan interface{}
	byConn map[string]int64
	logger *zap.Logger
}

// NewHub constructs an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		byUser: make(map[int64]map[string]chan interface{}),
		byConn: make(map[string]int64),
		logger: logger,
	}
}

// Join registers a connection for a user and returns its receive channel.
// A user may hold several connections (multiple tabs/devices).
func (h *Hub) Join(userID int64, connID string) <-chan interface{} {
	ch := make(chan interface{}, subscriberBuffer)

	h.mu.Lock()
	defer h.mu.Unlock()

	conns, ok := h.byUser[userID]
	if !ok {
		conns = make(map[string]chan interface{})
		h.byUser[userID] = conns
	}
	conns[connID] = ch
	h.byConn[connID] = userID
	return ch
}

// Leave deregisters a connection and closes its channel. Unknown connection
// ids are ignored.
func (h *Hub) Leave(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	userID, ok := h.byConn[connID]
	if !ok {
		return
	}
	delete(h.byConn, connID)

	if conns, ok := h.byUser[userID]; ok {
		if ch, ok := conns[connID]; ok {
			close(ch)
			delete(conns, connID)
		}
		if len(conns) == 0 {
			delete(h.byUser, userID)
		}
	}
}

// Publish delivers the payload to every live connection of the user.
// Delivery is best-effort: a full subscriber buffer drops the payload for
// that connection rather than blocking the dispatching request.
func (h *Hub) Publish(userID int64, payload interface{}) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for connID, ch := range h.byUser[userID] {
		select {
		case ch <- payload:
		default:
			h.logger.Warn("dropping live notification for slow subscriber",
				zap.Int64("user_id", userID), zap.String("conn_id", connID))
		}
	}
}

// Connections reports how many live connections a user currently holds.
func (h *Hub) Connections(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser[userID])
}
