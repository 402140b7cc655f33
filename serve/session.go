/*
Copyright © 2025 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

package serve

import (
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// heartbeatInterval is the independent per-Session ping period. A var
// rather than a const so tests can shrink it instead of waiting out
// the real cadence.
var heartbeatInterval = 5 * time.Second

// SessionState is one of CONNECTING, OPEN, CLOSED.
type SessionState int32

const (
	StateConnecting SessionState = iota
	StateOpen
	StateClosed
)

// Transport abstracts the bidirectional wire beneath a Session, so tests
// can exercise Session logic without a real network connection.
type Transport interface {
	WriteMessage(data []byte) error
	ReadMessage() ([]byte, error)
	Close() error
}

// Session is one per accepted bidirectional connection.
type Session struct {
	transport       Transport
	bus             *Bus
	callbacks       *CallbackRegistry
	openFileCommand string
	logger          Logger
	connCounter     *atomic.Int64
	projectID       string
	buildID         string

	state     atomic.Int32
	writeMu   sync.Mutex
	busSubID  int
	busCh     <-chan Message
	heartbeat *time.Ticker
	done      chan struct{}

	// spawn is overridable in tests; defaults to exec.Command(...).Start().
	spawn func(name string, args []string) error
}

// NewSession constructs a Session in the CONNECTING state.
func NewSession(transport Transport, bus *Bus, callbacks *CallbackRegistry, openFileCommand string, logger Logger, connCounter *atomic.Int64, projectID, buildID string) *Session {
	s := &Session{
		transport:       transport,
		bus:             bus,
		callbacks:       callbacks,
		openFileCommand: openFileCommand,
		logger:          logger,
		connCounter:     connCounter,
		projectID:       projectID,
		buildID:         buildID,
		done:            make(chan struct{}),
	}
	s.spawn = defaultSpawn
	return s
}

// State returns the Session's current state.
func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

// Serve runs the Session until the transport closes, the peer disconnects,
// or Close is called. It blocks in the inbound read loop; callers should
// run it in its own goroutine.
func (s *Session) Serve() {
	s.state.Store(int32(StateOpen))
	if s.connCounter != nil {
		s.connCounter.Add(1)
	}

	s.busSubID, s.busCh = s.bus.Subscribe()
	s.heartbeat = time.NewTicker(heartbeatInterval)

	go s.outboundLoop()

	defer s.close()

	for {
		data, err := s.transport.ReadMessage()
		if err != nil {
			return
		}
		ev, ok := DecodeInbound(data)
		if !ok {
			continue
		}
		s.dispatchInbound(ev)
	}
}

// Close transitions the Session to CLOSED and tears down its resources.
// Safe to call more than once.
func (s *Session) Close() {
	s.close()
}

func (s *Session) close() {
	if !s.state.CompareAndSwap(int32(StateOpen), int32(StateClosed)) {
		s.state.Store(int32(StateClosed))
	}
	select {
	case <-s.done:
		return
	default:
		close(s.done)
	}
	if s.heartbeat != nil {
		s.heartbeat.Stop()
	}
	s.bus.Unsubscribe(s.busSubID)
	if s.connCounter != nil {
		s.connCounter.Add(-1)
	}
	_ = s.transport.Close()
}

func (s *Session) outboundLoop() {
	for {
		select {
		case <-s.done:
			return
		case m, ok := <-s.busCh:
			if !ok {
				return
			}
			if !s.send(withIdentity(m, s.projectID, s.buildID)) {
				return
			}
		case <-s.heartbeat.C:
			if !s.send(NewPingMessage(s.projectID)) {
				return
			}
		}
	}
}

func withIdentity(m Message, projectID, buildID string) Message {
	m.ProjectID = projectID
	m.BuildID = buildID
	return m
}

// send serializes and writes m, closing the Session on failure. Returns
// false if the Session is no longer open.
func (s *Session) send(m Message) bool {
	if s.State() != StateOpen {
		return false
	}
	data, err := Encode(m)
	if err != nil {
		if s.logger != nil {
			s.logger.Warning("failed to encode outbound message %q: %v", m.MsgName, err)
		}
		return true
	}
	s.writeMu.Lock()
	err = s.transport.WriteMessage(data)
	s.writeMu.Unlock()
	if err != nil {
		s.close()
		return false
	}
	return true
}

func (s *Session) dispatchInbound(ev InboundEvent) {
	switch ev.FigwheelEvent {
	case "callback":
		if ev.CallbackName != "" {
			s.callbacks.Invoke(ev.CallbackName, ev.Content)
		}
	case "file-selected":
		s.openFile(ev.FileName, ev.FileLine)
	}
}

// openFile spawns the configured open-file-command, special-casing
// "emacsclient". Spawn failures are logged and
// swallowed.
func (s *Session) openFile(fileName string, fileLine int) {
	if s.openFileCommand == "" {
		return
	}
	var argv []string
	if s.openFileCommand == "emacsclient" {
		argv = []string{"-n", "+" + strconv.Itoa(fileLine), fileName}
	} else {
		argv = []string{fileName, strconv.Itoa(fileLine)}
	}
	if err := s.spawn(s.openFileCommand, argv); err != nil {
		if s.logger != nil {
			s.logger.Warning("failed to spawn open-file-command %q: %v", s.openFileCommand, err)
		}
	}
}

func defaultSpawn(name string, args []string) error {
	cmd := exec.Command(name, args...)
	return cmd.Start()
}
