/*
	Copyright (c) 2022 R. van Twisk
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	watchdog.go: last-activity tracking for polled links
*/
package common

import (
	"time"
)

// Watchdog remembers when a link last produced something useful. It does not
// run a timer: the owner polls Expired from its own loop, so the check is a
// pure function of the time handed in.
type Watchdog struct {
	last  time.Time
	pokes uint64
}

func NewWatchDog(now time.Time) *Watchdog {
	return &Watchdog{last: now}
}

/**
* Poke the watchdog
*/
func (w *Watchdog) Poke(now time.Time) {
	w.last = now
	w.pokes++
}

func (w *Watchdog) Last() time.Time {
	return w.last
}

// Pokes is the number of Poke calls since creation.
func (w *Watchdog) Pokes() uint64 {
	return w.pokes
}

func (w *Watchdog) Since(now time.Time) time.Duration {
	return now.Sub(w.last)
}

/**
* True once deadline or more has passed since the last Poke
**/
func (w *Watchdog) Expired(now time.Time, deadline time.Duration) bool {
	return now.Sub(w.last) >= deadline
}
