package hotkey

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// FirstID is the identifier handed to the first registered binding.
const FirstID = 0x1000

// ErrClosed is returned once the manager has been shut down.
var ErrClosed = errors.New("hotkey manager closed")

// Registrar binds shortcuts to integer ids with the operating system and
// reports the id of every press on Events. Close closes the Events channel.
type Registrar interface {
	Register(id int, s Shortcut) error
	Unregister(id int) error
	Events() <-chan int
	Close() error
}

type binding struct {
	id       int
	shortcut Shortcut
}

// Manager owns every global hotkey of the process. Each action id has at
// most one live binding.
type Manager struct {
	mu       sync.Mutex
	reg      Registrar
	nextID   int
	bindings map[string]binding
	actions  map[int]string
	closed   bool

	onPress func(actionID string)
	done    chan struct{}
}

// NewManager starts dispatching presses from reg to onPress.
func NewManager(reg Registrar, onPress func(actionID string)) *Manager {
	m := &Manager{
		reg:      reg,
		nextID:   FirstID,
		bindings: make(map[string]binding),
		actions:  make(map[int]string),
		onPress:  onPress,
		done:     make(chan struct{}),
	}
	go m.dispatch()
	return m
}

func (m *Manager) dispatch() {
	defer close(m.done)
	for id := range m.reg.Events() {
		m.mu.Lock()
		action, ok := m.actions[id]
		m.mu.Unlock()
		if !ok {
			continue
		}
		log.Printf("Hotkey pressed: %s", action)
		if m.onPress != nil {
			m.onPress(action)
		}
	}
}

// Register parses spec and binds it to actionID, replacing any previous
// binding for the same action. It reports success.
func (m *Manager) Register(actionID, spec string) bool {
	s, err := ParseShortcut(spec)
	if err != nil {
		log.Printf("Hotkey %s not registered: %v", actionID, err)
		return false
	}
	if err := m.RegisterShortcut(actionID, s); err != nil {
		log.Printf("Hotkey %s not registered: %v", actionID, err)
		return false
	}
	return true
}

// RegisterShortcut binds s to actionID. The old binding, if any, is released
// before the new one is created.
func (m *Manager) RegisterShortcut(actionID string, s Shortcut) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if old, ok := m.bindings[actionID]; ok {
		if err := m.release(actionID, old); err != nil {
			return err
		}
	}

	id := m.nextID
	m.nextID++
	if err := m.reg.Register(id, s); err != nil {
		return fmt.Errorf("register %s as %s: %w", actionID, s, err)
	}
	m.bindings[actionID] = binding{id: id, shortcut: s}
	m.actions[id] = actionID
	log.Printf("Hotkey %s bound to %s (id 0x%X)", actionID, s, id)
	return nil
}

// Unregister removes the binding for actionID. It returns false when the
// action had no binding or the system refused.
func (m *Manager) Unregister(actionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bindings[actionID]
	if !ok {
		return false
	}
	if err := m.release(actionID, b); err != nil {
		log.Printf("Hotkey %s unregister failed: %v", actionID, err)
		return false
	}
	return true
}

// release drops the binding only once the system has let go of it, so a
// failed unregister leaves it owned and retried by Close.
func (m *Manager) release(actionID string, b binding) error {
	if err := m.reg.Unregister(b.id); err != nil {
		return fmt.Errorf("unregister %s: %w", actionID, err)
	}
	delete(m.bindings, actionID)
	delete(m.actions, b.id)
	return nil
}

// Shortcut returns the live binding for actionID.
func (m *Manager) Shortcut(actionID string) (Shortcut, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bindings[actionID]
	return b.shortcut, ok
}

// Actions lists the bound action ids in sorted order.
func (m *Manager) Actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.bindings))
	for a := range m.bindings {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

func (m *Manager) unregisterAll() error {
	var result *multierror.Error
	for action, b := range m.bindings {
		if err := m.release(action, b); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// Close unregisters every binding and stops the registrar.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	var result *multierror.Error
	if err := m.unregisterAll(); err != nil {
		result = multierror.Append(result, err)
	}
	m.mu.Unlock()

	if err := m.reg.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	<-m.done
	return result.ErrorOrNil()
}
