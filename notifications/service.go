// Package notifications fans out pipeline events to SSE/WebSocket
// subscribers watching get_system_status.
package notifications

import (
	"sync"
	"time"
)

// EventType identifies what changed.
type EventType string

const (
	EventCaptureTick         EventType = "capture-tick"
	EventSessionOpened       EventType = "session-opened"
	EventSessionClosed       EventType = "session-closed"
	EventAnalysisStateChange EventType = "analysis-state-change"
	EventVideoReady          EventType = "video-ready"
	EventConfigChanged       EventType = "config-changed"
	EventConnected           EventType = "connected"
)

// Event is one notification pushed to every subscriber.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp int64     `json:"timestamp"`
	SessionID *int64    `json:"session_id,omitempty"`
	Data      any       `json:"data,omitempty"`
}

// Service manages subscriptions and event broadcasting for the
// get_system_status websocket/SSE stream.
type Service struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
	done        chan struct{}
}

func NewService() *Service {
	return &Service{
		subscribers: make(map[chan Event]struct{}),
		done:        make(chan struct{}),
	}
}

// Subscribe creates a new subscription channel and returns an unsubscribe
// function the caller must run once done (e.g. on websocket disconnect).
func (s *Service) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 10)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	unsubscribe := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, exists := s.subscribers[ch]; exists {
			delete(s.subscribers, ch)
			close(ch)
		}
	}

	return ch, unsubscribe
}

// Notify broadcasts an event to every subscriber, dropping it for any
// subscriber whose channel is full rather than blocking the pipeline.
func (s *Service) Notify(event Event) {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for ch := range s.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

func (s *Service) NotifySessionOpened(sessionID int64) {
	s.Notify(Event{Type: EventSessionOpened, SessionID: &sessionID})
}

func (s *Service) NotifySessionClosed(sessionID int64) {
	s.Notify(Event{Type: EventSessionClosed, SessionID: &sessionID})
}

// NotifyAnalysisStateChange reports a session's new analysis_state. The
// scheduler sends it when an analysis run ends, with analyzed or failed;
// other state changes send no event. The UI uses this to move a session
// between "pending" and "ready" without polling.
func (s *Service) NotifyAnalysisStateChange(sessionID int64, state string) {
	s.Notify(Event{
		Type:      EventAnalysisStateChange,
		SessionID: &sessionID,
		Data:      map[string]interface{}{"state": state},
	})
}

func (s *Service) NotifyVideoReady(sessionID int64, videoPath string) {
	s.Notify(Event{
		Type:      EventVideoReady,
		SessionID: &sessionID,
		Data:      map[string]interface{}{"video_path": videoPath},
	})
}

func (s *Service) NotifyConfigChanged() {
	s.Notify(Event{Type: EventConfigChanged})
}

// Shutdown closes every subscriber channel.
func (s *Service) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	close(s.done)
	for ch := range s.subscribers {
		close(ch)
	}
	s.subscribers = make(map[chan Event]struct{})
}

func (s *Service) SubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscribers)
}
