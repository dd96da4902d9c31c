package registry

import (
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// maxFanOut caps the sends one Broadcast runs at once.
const maxFanOut = 64

// Conn is the outbound side of a listener connection.
type Conn interface {
	// SendText delivers one text frame.
	SendText(payload []byte) error
}

// Registry tracks live listener connections per channel.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]map[string]Conn // channel -> client id -> conn
	log      *log.Logger

	// OnChange, when set, is called with the channel's new size after
	// every membership change. It runs with the registry locked, so calls
	// arrive in the order the changes were applied; it must not call back
	// into the registry.
	OnChange func(channel string, count int)
}

func New(logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.Default()
	}
	return &Registry{
		channels: make(map[string]map[string]Conn),
		log:      logger.WithPrefix("registry"),
	}
}

// Register stores conn under (channel, clientID), replacing any existing
// handle for that key. The replaced handle is not closed.
func (r *Registry) Register(channel, clientID string, conn Conn) {
	r.mu.Lock()
	members := r.channels[channel]
	if members == nil {
		members = make(map[string]Conn)
		r.channels[channel] = members
	}
	_, replaced := members[clientID]
	members[clientID] = conn
	count := len(members)
	r.changed(channel, count)
	r.mu.Unlock()

	r.log.Info("client registered", "channel", channel, "client_id", clientID, "replaced", replaced, "listeners", count)
}

// Deregister removes (channel, clientID) if present.
func (r *Registry) Deregister(channel, clientID string) {
	r.remove(channel, clientID, nil)
}

// DeregisterConn removes (channel, clientID) only while it still maps to
// conn. A newer registration for the same key is left alone.
func (r *Registry) DeregisterConn(channel, clientID string, conn Conn) {
	r.remove(channel, clientID, conn)
}

func (r *Registry) remove(channel, clientID string, expected Conn) {
	r.mu.Lock()
	members, ok := r.channels[channel]
	if !ok {
		r.mu.Unlock()
		return
	}
	current, ok := members[clientID]
	if !ok || (expected != nil && current != expected) {
		r.mu.Unlock()
		return
	}
	delete(members, clientID)
	count := len(members)
	if count == 0 {
		delete(r.channels, channel)
	}
	r.changed(channel, count)
	r.mu.Unlock()

	r.log.Info("client deregistered", "channel", channel, "client_id", clientID, "listeners", count)
}

// SendPersonal delivers payload to one recipient. A failed send deregisters
// the recipient. It reports whether the payload was delivered.
func (r *Registry) SendPersonal(channel, clientID string, payload []byte) bool {
	r.mu.RLock()
	conn, ok := r.channels[channel][clientID]
	r.mu.RUnlock()
	if !ok {
		return false
	}

	if err := conn.SendText(payload); err != nil {
		r.log.Warn("send failed", "channel", channel, "client_id", clientID, "err", err)
		r.DeregisterConn(channel, clientID, conn)
		return false
	}
	return true
}

// Broadcast delivers payload to every connection registered on channel and
// returns how many sends succeeded and failed. Membership is snapshotted
// before sending and the sends run concurrently, so one slow listener does
// not hold up the rest. Recipients that fail are deregistered after the
// sweep.
func (r *Registry) Broadcast(channel string, payload []byte) (delivered, failed int) {
	r.mu.RLock()
	snapshot := make(map[string]Conn, len(r.channels[channel]))
	for id, conn := range r.channels[channel] {
		snapshot[id] = conn
	}
	r.mu.RUnlock()
	if len(snapshot) == 0 {
		return 0, 0
	}

	var (
		mu   sync.Mutex
		dead = make(map[string]Conn)
		g    errgroup.Group
	)
	g.SetLimit(maxFanOut)
	for id, conn := range snapshot {
		id, conn := id, conn
		g.Go(func() error {
			if err := conn.SendText(payload); err != nil {
				r.log.Warn("broadcast send failed", "channel", channel, "client_id", id, "err", err)
				mu.Lock()
				dead[id] = conn
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	for id, conn := range dead {
		r.DeregisterConn(channel, id, conn)
	}
	return len(snapshot) - len(dead), len(dead)
}

// Count returns the number of listeners on channel.
func (r *Registry) Count(channel string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels[channel])
}

// Has reports whether (channel, clientID) is registered.
func (r *Registry) Has(channel, clientID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.channels[channel][clientID]
	return ok
}

// Channels returns the listener count of every non-empty channel.
func (r *Registry) Channels() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]int, len(r.channels))
	for ch, members := range r.channels {
		out[ch] = len(members)
	}
	return out
}

func (r *Registry) changed(channel string, count int) {
	if r.OnChange != nil {
		r.OnChange(channel, count)
	}
}
