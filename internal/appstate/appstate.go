// Package appstate holds the shop-wide preferences every component reads and a
// small publish/subscribe hub for change notifications.
package appstate

import (
	"sync"

	"github.com/Simplici0/signworks/internal/model"
)

// Topics published on the hub.
const (
	TopicPreferences = "preferences"
	TopicOrders      = "orders"
	TopicCatalog     = "catalog"
)

// Preferences are the display preferences derived from the stored settings.
type Preferences struct {
	Locale           string     `json:"locale"`
	Currency         string     `json:"currency"`
	Theme            string     `json:"theme"`
	Plan             model.Plan `json:"plan"`
	SidebarCollapsed bool       `json:"sidebar_collapsed"`
}

// FromSettings derives preferences from the settings record.
func FromSettings(s model.Settings) Preferences {
	s.Normalize()
	return Preferences{Locale: s.Locale, Currency: s.Currency, Theme: s.Theme, Plan: s.Plan}
}

// Event is a change notification. EntityID is empty for preference changes.
type Event struct {
	Topic       string
	EntityID    string
	Preferences Preferences
}

// State is safe for concurrent use. The zero value is not usable; call New.
type State struct {
	mu     sync.RWMutex
	prefs  Preferences
	nextID int
	subs   map[int]func(Event)
}

func New(initial Preferences) *State {
	return &State{prefs: initial, subs: make(map[int]func(Event))}
}

// Preferences returns the current preferences.
func (s *State) Preferences() Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs
}

// SetPreferences replaces the preferences and notifies subscribers.
func (s *State) SetPreferences(p Preferences) {
	s.mu.Lock()
	s.prefs = p
	s.mu.Unlock()

	s.Publish(Event{Topic: TopicPreferences, Preferences: p})
}

// Subscribe registers fn for every published event and returns a function that removes it.
func (s *State) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Publish delivers ev to every subscriber synchronously, outside the lock.
func (s *State) Publish(ev Event) {
	s.mu.RLock()
	fns := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}
