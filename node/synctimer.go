package node

import (
	"sync"
	"time"

	"github.com/probeum/spvnode/peer"
)

// syncTimers tracks one time.AfterFunc per peer currently awaiting a
// Headers reply, dropping any peer that never answers within timeout.
//
// Grounded on the teacher's probe/handler.go syncDrop: a one-shot
// time.AfterFunc armed right after a request is sent and stopped as soon
// as a reply (of any shape) arrives. This repo generalizes it from a
// single checkpoint challenge to every outstanding GetHeaders, per
// SPEC_FULL.md SUPPLEMENTED FEATURES #2.
type syncTimers struct {
	mu      sync.Mutex
	timeout time.Duration
	drop    func(peer.Id)
	timers  map[peer.Id]*time.Timer
}

func newSyncTimers(timeout time.Duration, drop func(peer.Id)) *syncTimers {
	return &syncTimers{timeout: timeout, drop: drop, timers: make(map[peer.Id]*time.Timer)}
}

// Arm (re)starts pid's drop timer; called whenever a GetHeaders is sent.
func (s *syncTimers) Arm(pid peer.Id) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[pid]; ok {
		t.Stop()
	}
	s.timers[pid] = time.AfterFunc(s.timeout, func() { s.drop(pid) })
}

// Disarm stops and forgets pid's timer; called once any Headers reply
// arrives, including an empty one.
func (s *syncTimers) Disarm(pid peer.Id) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[pid]; ok {
		t.Stop()
		delete(s.timers, pid)
	}
}

// StopAll cancels every outstanding timer, for use during Node.Stop.
func (s *syncTimers) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for pid, t := range s.timers {
		t.Stop()
		delete(s.timers, pid)
	}
}
