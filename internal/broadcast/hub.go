package broadcast

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/smukkama/energy-workshop/internal/events"
	"github.com/smukkama/energy-workshop/internal/timer"
)

// Publisher delivers events to whoever is listening. Delivery is best
// effort: failures are handled by the publisher, never reported back.
type Publisher interface {
	Broadcast(ctx context.Context, e events.Event)
}

// Multi fans an event out to several publishers in order
type Multi []Publisher

func (m Multi) Broadcast(ctx context.Context, e events.Event) {
	for _, p := range m {
		p.Broadcast(ctx, e)
	}
}

// Sink is one delivery endpoint, usually a WebSocket
type Sink interface {
	Send(data []byte) error
	Close() error
}

// Gauge tracks the live listener count
type Gauge interface {
	Set(float64)
}

// Listener holds information about a connected listener
type Listener struct {
	ID            string
	RemoteAddr    string
	ConnectedAt   time.Time
	LastHeardFrom time.Time
	sink          Sink
	mu            sync.RWMutex
}

// UpdateLastHeardFrom updates the last activity timestamp
func (l *Listener) UpdateLastHeardFrom() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.LastHeardFrom = time.Now()
}

// GetLastHeardFrom returns the last activity timestamp
func (l *Listener) GetLastHeardFrom() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.LastHeardFrom
}

// Send writes data to the listener's sink
func (l *Listener) Send(data []byte) error {
	return l.sink.Send(data)
}

// HubConfig bounds the listener registry
type HubConfig struct {
	MaxListeners int
	IdleTimeout  time.Duration
}

// Hub is the registry of live listeners
type Hub struct {
	listeners map[string]*Listener
	mu        sync.RWMutex
	cfg       HubConfig
	scheduler *timer.Scheduler
	gauge     Gauge
	logger    *slog.Logger
}

// NewHub creates a hub. With a scheduler and a positive idle timeout,
// listeners that stay silent longer than the timeout are evicted.
func NewHub(cfg HubConfig, scheduler *timer.Scheduler, logger *slog.Logger) *Hub {
	return &Hub{
		listeners: make(map[string]*Listener),
		cfg:       cfg,
		scheduler: scheduler,
		logger:    logger.With("component", "hub"),
	}
}

// SetGauge reports the listener count to g from now on
func (h *Hub) SetGauge(g Gauge) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.gauge = g
	g.Set(float64(len(h.listeners)))
}

// Register adds a listener
func (h *Hub) Register(sink Sink, remoteAddr string) (*Listener, error) {
	h.mu.Lock()
	if h.cfg.MaxListeners > 0 && len(h.listeners) >= h.cfg.MaxListeners {
		h.mu.Unlock()
		return nil, ErrMaxListenersReached
	}

	now := time.Now()
	l := &Listener{
		ID:            uuid.New().String(),
		RemoteAddr:    remoteAddr,
		ConnectedAt:   now,
		LastHeardFrom: now,
		sink:          sink,
	}
	h.listeners[l.ID] = l
	h.reportCount()
	h.mu.Unlock()

	h.scheduleEviction(l.ID, now)
	h.logger.Debug("listener registered", "listener_id", l.ID, "remote_addr", remoteAddr)
	return l, nil
}

// Unregister removes a listener and closes its sink
func (h *Hub) Unregister(id string) error {
	h.mu.Lock()
	l, exists := h.listeners[id]
	if !exists {
		h.mu.Unlock()
		return fmt.Errorf("listener %s not found", id)
	}
	delete(h.listeners, id)
	h.reportCount()
	h.mu.Unlock()

	if h.scheduler != nil {
		h.scheduler.Cancel(evictionID(id))
	}
	if err := l.sink.Close(); err != nil {
		h.logger.Debug("closing listener failed", "listener_id", id, "error", err)
	}
	return nil
}

// Get retrieves a listener by id
func (h *Hub) Get(id string) (*Listener, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	l, exists := h.listeners[id]
	return l, exists
}

// UpdateActivity records that a listener was heard from
func (h *Hub) UpdateActivity(id string) error {
	l, exists := h.Get(id)
	if !exists {
		return fmt.Errorf("listener %s not found", id)
	}
	l.UpdateLastHeardFrom()
	return nil
}

// Broadcast encodes e once and writes it to every listener. A listener
// whose write fails is dropped.
func (h *Hub) Broadcast(ctx context.Context, e events.Event) {
	data, err := events.Encode(e)
	if err != nil {
		h.logger.Error("failed to encode event", "type", e.Type, "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*Listener, 0, len(h.listeners))
	for _, l := range h.listeners {
		targets = append(targets, l)
	}
	h.mu.RUnlock()

	for _, l := range targets {
		if err := l.Send(data); err != nil {
			h.logger.Info("dropping listener after failed write", "listener_id", l.ID, "error", err)
			h.Unregister(l.ID)
		}
	}
}

// InactiveListeners returns ids of listeners silent for longer than timeout
func (h *Hub) InactiveListeners(timeout time.Duration) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	now := time.Now()
	var inactive []string
	for id, l := range h.listeners {
		if now.Sub(l.GetLastHeardFrom()) > timeout {
			inactive = append(inactive, id)
		}
	}
	return inactive
}

// Count returns the number of live listeners
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}

// Close unregisters every listener
func (h *Hub) Close() {
	h.mu.RLock()
	ids := make([]string, 0, len(h.listeners))
	for id := range h.listeners {
		ids = append(ids, id)
	}
	h.mu.RUnlock()

	for _, id := range ids {
		h.Unregister(id)
	}
}

// Stats returns statistics about the hub
func (h *Hub) Stats() HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return HubStats{
		Listeners:    len(h.listeners),
		MaxListeners: h.cfg.MaxListeners,
		IdleTimeout:  h.cfg.IdleTimeout.String(),
	}
}

// HubStats contains statistics about the hub
type HubStats struct {
	Listeners    int    `json:"listeners"`
	MaxListeners int    `json:"max_listeners"`
	IdleTimeout  string `json:"idle_timeout"`
}

// reportCount must be called with h.mu held
func (h *Hub) reportCount() {
	if h.gauge != nil {
		h.gauge.Set(float64(len(h.listeners)))
	}
}

func evictionID(listenerID string) string {
	return "evict:" + listenerID
}

// scheduleEviction arms the idle check for a listener relative to its last
// activity. The check re-arms itself while the listener stays active.
func (h *Hub) scheduleEviction(id string, lastHeard time.Time) {
	if h.scheduler == nil || h.cfg.IdleTimeout <= 0 {
		return
	}

	due := lastHeard.Add(h.cfg.IdleTimeout)
	err := h.scheduler.Schedule(evictionID(id), due, func() {
		l, ok := h.Get(id)
		if !ok {
			return
		}
		last := l.GetLastHeardFrom()
		if time.Since(last) >= h.cfg.IdleTimeout {
			h.logger.Info("evicting idle listener", "listener_id", id, "last_heard_from", last)
			h.Unregister(id)
			return
		}
		h.scheduleEviction(id, last)
	})
	if err != nil {
		h.logger.Warn("failed to schedule idle check", "listener_id", id, "error", err)
	}
}

var (
	ErrMaxListenersReached = &HubError{"maximum listeners reached"}
)

// HubError represents a listener registry error
type HubError struct {
	msg string
}

func (e *HubError) Error() string {
	return e.msg
}
