/*
	Copyright (c) 2022 R. van Twisk
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	session.go: one configured receiver on one serial link
*/

package gps

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/b3nn0/dgpstest/common"
	"github.com/b3nn0/dgpstest/ubx"
	"github.com/tevino/abool/v2"
	"go.uber.org/ratelimit"
)

type SessionConfig struct {
	Name     string // Used for display/logging, e.g. "recv1"
	Endpoint string // Serial device, e.g. /dev/ttyACM0
	Baud     int
	LogPath  string // Raw UBX capture, empty for none
	Receiver ReceiverOptions

	Opener      Opener           // nil means SerialOpener
	Now         func() time.Time // nil means time.Now
	PollTimeout time.Duration
	AckTimeout  time.Duration
	RequireAck  bool // treat a missing ACK like a NAK
	CommandRate int  // configuration frames per second, 0 means CFG_COMMANDS_PER_SEC
	DEBUG       bool
}

// Session owns one receiver link from Open to Close. A stalled session is
// closed and replaced by a new one, never revived.
type Session struct {
	cfg     SessionConfig
	link    Link
	logFile *os.File

	dec     *ubx.Decoder
	rxCh    chan []byte
	pending []ubx.Message

	wd     *common.Watchdog
	eh     *common.ExitHelper
	closed *abool.AtomicBool
	rl     ratelimit.Limiter

	received uint64
}

/**
Open the link, start the reader and push the receiver configuration.
appendLog keeps an existing capture log, which is what a re-open after a
stall wants; the first open of a run truncates it.
*/
func Open(cfg SessionConfig, appendLog bool) (*Session, error) {
	if cfg.Opener == nil {
		cfg.Opener = SerialOpener
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = common.POLL_TIMEOUT
	}
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = common.ACK_TIMEOUT
	}
	if cfg.Baud <= 0 {
		cfg.Baud = common.DEFAULT_BAUD
	}
	if cfg.CommandRate <= 0 {
		cfg.CommandRate = common.CFG_COMMANDS_PER_SEC
	}
	if cfg.Name == "" {
		cfg.Name = cfg.Endpoint
	}

	s := &Session{
		cfg:    cfg,
		dec:    ubx.NewDecoder(),
		rxCh:   make(chan []byte, 64),
		eh:     common.NewExitHelper(),
		closed: abool.New(),
		rl:     ratelimit.New(cfg.CommandRate),
	}

	if cfg.LogPath != "" {
		flags := os.O_CREATE | os.O_WRONLY
		if appendLog {
			flags |= os.O_APPEND
		} else {
			flags |= os.O_TRUNC
		}
		f, err := os.OpenFile(cfg.LogPath, flags, 0644)
		if err != nil {
			return nil, fmt.Errorf("%s: open log: %w", cfg.Name, err)
		}
		s.logFile = f
	}

	link, err := cfg.Opener(cfg.Endpoint, cfg.Baud)
	if err != nil {
		s.closeLog()
		return nil, fmt.Errorf("%s: open %s: %w", cfg.Name, cfg.Endpoint, err)
	}
	s.link = link

	s.eh.Add()
	go s.reader()

	for _, c := range cfg.Receiver.Commands() {
		if err := s.configure(c); err != nil {
			s.Close()
			return nil, err
		}
	}

	s.wd = common.NewWatchDog(cfg.Now())
	log.Printf("gps: %s configured on %s at %d baud\n", cfg.Name, cfg.Endpoint, cfg.Baud)
	return s, nil
}

func (s *Session) Name() string {
	return s.cfg.Name
}

func (s *Session) Endpoint() string {
	return s.cfg.Endpoint
}

// Received is the number of messages returned by Poll so far.
func (s *Session) Received() uint64 {
	return s.received
}

// reader is the only goroutine touching link.Read. It stops when the link
// is closed or fails; a dead link then shows up as a stall.
func (s *Session) reader() {
	defer s.eh.Done()
	buffer := make([]byte, 4096)
	for {
		n, err := s.link.Read(buffer)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buffer[:n])
			select {
			case s.rxCh <- chunk:
			case <-s.eh.C:
				return
			}
		}
		if s.eh.IsExit() {
			return
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				// serial read timeout
				time.Sleep(s.cfg.PollTimeout)
				continue
			}
			if !s.closed.IsSet() {
				log.Printf("gps: %s read error: %s\n", s.cfg.Name, err.Error())
			}
			return
		}
	}
}

func (s *Session) configure(c ubx.Command) error {
	s.rl.Take()
	if _, err := s.link.Write(c.Bytes()); err != nil {
		return &ConfigurationError{Session: s.cfg.Name, Step: c.Step, Class: c.Class, ID: c.ID, Err: err}
	}
	if !c.Acked {
		return nil
	}
	return s.waitAck(c)
}

// waitAck holds on to any other message that shows up so that Poll can
// still hand it out later. The matching ACK goes straight to the capture log.
func (s *Session) waitAck(c ubx.Command) error {
	timer := time.NewTimer(s.cfg.AckTimeout)
	defer timer.Stop()
	for {
		for {
			m, ok := s.dec.Next()
			if !ok {
				break
			}
			if m.Class == ubx.CLASS_ACK {
				if v, err := m.Unpack(); err == nil {
					ack := v.(*ubx.Ack)
					if ack.ClsID == c.Class && ack.MsgID == c.ID {
						s.capture(m)
						if ack.Acked {
							return nil
						}
						return &ConfigurationError{Session: s.cfg.Name, Step: c.Step, Class: c.Class, ID: c.ID, Err: ErrRejected}
					}
				}
			}
			s.pending = append(s.pending, m)
		}
		select {
		case chunk := <-s.rxCh:
			s.dec.Feed(chunk)
		case <-timer.C:
			if s.cfg.RequireAck {
				return &ConfigurationError{Session: s.cfg.Name, Step: c.Step, Class: c.Class, ID: c.ID, Err: ErrNoAck}
			}
			log.Printf("gps: %s no ACK for %s, continuing\n", s.cfg.Name, c.Step)
			return nil
		}
	}
}

/**
Poll hands out the next decoded message. It waits at most PollTimeout for
bytes to arrive so that one silent receiver cannot hold up the others.
*/
func (s *Session) Poll() (ubx.Message, bool) {
	if m, ok := s.next(); ok {
		return m, true
	}
	if s.closed.IsSet() {
		return ubx.Message{}, false
	}
	timer := time.NewTimer(s.cfg.PollTimeout)
	defer timer.Stop()
	for {
		select {
		case chunk := <-s.rxCh:
			s.dec.Feed(chunk)
			if m, ok := s.next(); ok {
				return m, true
			}
		case <-timer.C:
			return ubx.Message{}, false
		}
	}
}

func (s *Session) next() (ubx.Message, bool) {
	var m ubx.Message
	if len(s.pending) > 0 {
		m = s.pending[0]
		s.pending = s.pending[1:]
	} else {
		var ok bool
		if m, ok = s.dec.Next(); !ok {
			return ubx.Message{}, false
		}
	}
	s.received++
	s.wd.Poke(s.cfg.Now())
	s.capture(m)
	return m, true
}

func (s *Session) capture(m ubx.Message) {
	if s.logFile != nil {
		if _, err := s.logFile.Write(m.Bytes()); err != nil {
			log.Printf("gps: %s log write failed: %s\n", s.cfg.Name, err.Error())
		}
	}
	if s.cfg.DEBUG {
		log.Printf("gps: %s received %s\n", s.cfg.Name, m.String())
	}
}

// IsStale reports whether Poll has not produced a message for deadline.
func (s *Session) IsStale(now time.Time, deadline time.Duration) bool {
	return s.wd.Expired(now, deadline)
}

// LastActivity is the time of the last successful Poll, or of Open.
func (s *Session) LastActivity() time.Time {
	return s.wd.Last()
}

// Write sends bytes to the receiver verbatim, e.g. correction messages.
func (s *Session) Write(p []byte) (int, error) {
	if s.closed.IsSet() {
		return 0, fmt.Errorf("%s: session closed", s.cfg.Name)
	}
	return s.link.Write(p)
}

// RequestEphemeris polls AID-EPH for one satellite.
func (s *Session) RequestEphemeris(svid uint8) error {
	_, err := s.Write(ubx.PollEphemeris(svid).Bytes())
	return err
}

/**
Close releases the link and the capture log. Calling it again is a no-op.
*/
func (s *Session) Close() error {
	if !s.closed.SetToIf(false, true) {
		return nil
	}
	if err := s.link.Close(); err != nil && s.cfg.DEBUG {
		log.Printf("gps: %s close: %s\n", s.cfg.Name, err.Error())
	}
	s.eh.Exit()
	s.closeLog()
	return nil
}

func (s *Session) closeLog() {
	if s.logFile == nil {
		return
	}
	if err := s.logFile.Close(); err != nil {
		log.Printf("gps: %s closing log: %s\n", s.cfg.Name, err.Error())
	}
	s.logFile = nil
}
