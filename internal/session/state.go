package session

import "sync"

type settingsState struct {
	mu        sync.Mutex
	separator string
}

func (s *settingsState) set(separator string) {
	if separator == "" {
		return
	}
	s.mu.Lock()
	s.separator = separator
	s.mu.Unlock()
}

func (s *settingsState) get() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.separator
}

// noticeState holds the transient user-visible message from the last failed
// gateway call. Overwritten by the next failure, cleared on dismissal.
type noticeState struct {
	mu  sync.Mutex
	msg string
}

func (n *noticeState) set(msg string) {
	n.mu.Lock()
	n.msg = msg
	n.mu.Unlock()
}

func (n *noticeState) get() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.msg
}
