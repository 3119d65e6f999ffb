package event

import (
	"sync"

	"go.uber.org/zap"
)

const listenerBuffer = 1024

// Emitter is implemented by anything that can publish marketplace events.
type Emitter interface {
	EmitEvent(eventType Type, msg interface{})
}

type Listener struct {
	eventType Type
	channel   chan interface{}
}

// Manager fans events out to listeners. Each listener receives its events in
// emission order on its own goroutine.
type Manager struct {
	lk        sync.RWMutex
	listeners []*Listener
	closed    bool
	wg        sync.WaitGroup
}

var _ Emitter = (*Manager)(nil)

func NewManager() *Manager {
	return &Manager{listeners: make([]*Listener, 0)}
}

func (m *Manager) AddEventListener(eventType Type, callback func(msg interface{})) {
	zap.L().With(zap.String("type", string(eventType))).Debug("EventManager: AddListener")

	listener := Listener{
		eventType: eventType,
		channel:   make(chan interface{}, listenerBuffer),
	}

	m.lk.Lock()
	m.listeners = append(m.listeners, &listener)
	m.lk.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for msg := range listener.channel {
			callback(msg)
		}
	}()
}

// AddListenerForAll registers callback for every marketplace event type.
func (m *Manager) AddListenerForAll(callback func(msg interface{})) {
	for _, eventType := range All() {
		m.AddEventListener(eventType, callback)
	}
}

func (m *Manager) EmitEvent(eventType Type, msg interface{}) {
	m.lk.RLock()
	defer m.lk.RUnlock()

	if m.closed {
		zap.L().With(zap.String("type", string(eventType))).Warn("EventManager: Emit after close")
		return
	}
	if len(m.listeners) == 0 {
		zap.L().Debug("No event listeners available")
	}

	for _, listener := range m.listeners {
		if listener.eventType == eventType {
			zap.L().With(zap.String("type", string(eventType))).Debug("EventManager: Emitting event")
			listener.channel <- msg
		}
	}
}

// Close stops accepting events and waits for listeners to drain.
func (m *Manager) Close() {
	m.lk.Lock()
	if m.closed {
		m.lk.Unlock()
		return
	}
	m.closed = true
	for _, listener := range m.listeners {
		close(listener.channel)
	}
	m.lk.Unlock()

	m.wg.Wait()
}
