/*
	Copyright (c) 2022 R. van Twisk
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	ephemeris.go: per satellite AID-EPH request pacing
*/

package dgps

import (
	"log"
	"time"

	"github.com/b3nn0/dgpstest/common"
)

type EphemerisRequester interface {
	RequestEphemeris(svid uint8) error
}

type ephemerisFreshness struct {
	polled        bool
	lastPoll      time.Time
	received      bool
	lastEphemeris time.Time
}

/*
	Scheduler decides when the reference receiver is asked for a satellite's
	ephemeris. A request goes out when the satellite has not been asked for
	within PollPeriod and its ephemeris is missing or at least MaxAge old.
	Entries are created on first sight and never removed; an old ephemeris
	is ignored, not evicted.
*/
type Scheduler struct {
	PollPeriod time.Duration
	MaxAge     time.Duration
	Metrics    *Metrics

	// Resolved on every request, the reference session may have been
	// replaced since the last one.
	requester func() EphemerisRequester
	sats      map[uint8]*ephemerisFreshness
}

func NewScheduler(requester func() EphemerisRequester) *Scheduler {
	return &Scheduler{
		PollPeriod: common.EPHEMERIS_POLL_PERIOD,
		MaxAge:     common.EPHEMERIS_MAX_AGE,
		requester:  requester,
		sats:       make(map[uint8]*ephemerisFreshness),
	}
}

func (s *Scheduler) entry(sv uint8) *ephemerisFreshness {
	f, ok := s.sats[sv]
	if !ok {
		f = &ephemerisFreshness{}
		s.sats[sv] = f
	}
	return f
}

// Due reports whether OnObservation(sv, now) would send a request.
func (s *Scheduler) Due(sv uint8, now time.Time) bool {
	f, ok := s.sats[sv]
	if !ok {
		return true
	}
	if f.polled && now.Sub(f.lastPoll) < s.PollPeriod {
		return false
	}
	if f.received && now.Sub(f.lastEphemeris) < s.MaxAge {
		return false
	}
	return true
}

/*
	OnObservation is called for every satellite of every RXM-RAW. It returns
	true when a request was issued. A failed write still counts as a poll.
*/
func (s *Scheduler) OnObservation(sv uint8, now time.Time) bool {
	if !s.Due(sv, now) {
		return false
	}
	f := s.entry(sv)
	f.polled = true
	f.lastPoll = now

	var r EphemerisRequester
	if s.requester != nil {
		r = s.requester()
	}
	if r == nil {
		log.Printf("dgps: no reference receiver for ephemeris request of SV %d\n", sv)
		return false
	}
	if err := r.RequestEphemeris(sv); err != nil {
		log.Printf("dgps: ephemeris request for SV %d failed: %s\n", sv, err.Error())
		return false
	}
	s.Metrics.ephemerisRequested()
	return true
}

// EphemerisReceived marks sv fresh as of now.
func (s *Scheduler) EphemerisReceived(sv uint8, now time.Time) {
	f := s.entry(sv)
	f.received = true
	f.lastEphemeris = now
}

// LastPoll returns when sv was last asked for, false if never.
func (s *Scheduler) LastPoll(sv uint8) (time.Time, bool) {
	f, ok := s.sats[sv]
	if !ok || !f.polled {
		return time.Time{}, false
	}
	return f.lastPoll, true
}
