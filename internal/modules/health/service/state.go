package service

import (
	"sync/atomic"
	"time"
)

// State is the process-level health snapshot the admin endpoints read.
type State struct {
	ready     atomic.Bool
	startedAt time.Time

	brokerConnected atomic.Bool
	lastEvalUnix    atomic.Int64 // unix seconds
}

func NewState() *State {
	s := &State{startedAt: time.Now()}
	s.ready.Store(false)
	return s
}

func (s *State) SetReady(v bool) { s.ready.Store(v) }
func (s *State) Ready() bool     { return s.ready.Load() }

func (s *State) SetBrokerConnected(v bool) { s.brokerConnected.Store(v) }
func (s *State) BrokerConnected() bool     { return s.brokerConnected.Load() }

func (s *State) MarkEval(t time.Time) { s.lastEvalUnix.Store(t.Unix()) }

func (s *State) LastEval() time.Time {
	v := s.lastEvalUnix.Load()
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(v, 0)
}

func (s *State) Uptime() time.Duration { return time.Since(s.startedAt) }
