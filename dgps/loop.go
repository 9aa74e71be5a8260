/*
	Copyright (c) 2022 R. van Twisk
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	loop.go: the polling and stall recovery loop
*/

package dgps

import (
	"context"
	"io"
	"log"
	"time"

	"github.com/b3nn0/dgpstest/common"
)

/*
	Loop visits every session once per Tick, whether or not the previous one
	produced anything, dispatches finished corrections, then re-opens
	stalled sessions. Re-opening is synchronous. The clock is read again for
	every staleness check, so a slow re-open ages the sessions checked after
	it.
*/
type Loop struct {
	Fleet    *Fleet
	Router   *Router
	Reopen   bool
	Deadline time.Duration // 0 means STALL_DEADLINE
	Out      io.Writer     // re-open markers
	Now      func() time.Time
	Metrics  *Metrics
	Status   *StatusBoard
}

func (l *Loop) now() time.Time {
	if l.Now == nil {
		return time.Now()
	}
	return l.Now()
}

// Tick returns an error only when a re-open fails.
func (l *Loop) Tick() error {
	for _, role := range l.Fleet.Roles() {
		d := l.Fleet.Get(role)
		if m, ok := d.Poll(); ok {
			l.Router.Handle(role, m)
		}
	}
	if l.Router.Pipeline != nil {
		l.Router.Pipeline.Drain()
	}
	if !l.Reopen {
		return nil
	}
	deadline := l.Deadline
	if deadline <= 0 {
		deadline = common.STALL_DEADLINE
	}
	for _, role := range l.Fleet.Roles() {
		if !l.Fleet.Get(role).IsStale(l.now(), deadline) {
			continue
		}
		log.Printf("dgps: %s silent for %s, re-opening\n", role, deadline)
		if _, err := l.Fleet.Reopen(role); err != nil {
			return err
		}
		l.Metrics.reconnected(role)
		l.Status.reconnected(role)
		if l.Out != nil {
			fprintf(l.Out, "%s", role.Marker())
		}
	}
	return nil
}

// Run ticks until ctx is done or a re-open fails, then closes every session.
func (l *Loop) Run(ctx context.Context) error {
	defer l.Fleet.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if err := l.Tick(); err != nil {
			return err
		}
	}
}
