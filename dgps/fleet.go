/*
	Copyright (c) 2022 R. van Twisk
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	fleet.go: the current session of every receiver role
*/

package dgps

import (
	"fmt"
	"io"
	"log"
	"time"

	"github.com/b3nn0/dgpstest/ubx"
)

// Device is what the loop needs from a receiver session, gps.Session
// implements it.
type Device interface {
	Name() string
	Poll() (ubx.Message, bool)
	IsStale(now time.Time, deadline time.Duration) bool
	Write(p []byte) (int, error)
	RequestEphemeris(svid uint8) error
	Close() error
}

// DeviceOpener opens the session for role. appendLog is set on re-opens.
type DeviceOpener func(role Role, appendLog bool) (Device, error)

// Fleet holds the current session of every configured role. Sessions are
// replaced on re-open, so callers look them up each time instead of keeping
// them.
type Fleet struct {
	open    DeviceOpener
	roles   []Role
	devices map[Role]Device
}

func NewFleet(open DeviceOpener) *Fleet {
	return &Fleet{open: open, devices: make(map[Role]Device)}
}

// Open does the initial open of each role in order, truncating logs.
func (f *Fleet) Open(roles ...Role) error {
	for _, role := range roles {
		if _, ok := f.devices[role]; ok {
			return fmt.Errorf("%s already open", role)
		}
		d, err := f.open(role, false)
		if err != nil {
			return err
		}
		f.devices[role] = d
		f.roles = append(f.roles, role)
	}
	return nil
}

// Add places an already open device, mainly for tests.
func (f *Fleet) Add(role Role, d Device) {
	if _, ok := f.devices[role]; !ok {
		f.roles = append(f.roles, role)
	}
	f.devices[role] = d
}

// Roles in the order they were opened.
func (f *Fleet) Roles() []Role {
	return f.roles
}

func (f *Fleet) Get(role Role) Device {
	return f.devices[role]
}

func (f *Fleet) Writer(role Role) io.Writer {
	d := f.Get(role)
	if d == nil {
		return nil
	}
	return d
}

func (f *Fleet) Requester(role Role) EphemerisRequester {
	d := f.Get(role)
	if d == nil {
		return nil
	}
	return d
}

/*
	Reopen closes the role's session and opens a replacement that appends to
	the same log. On failure the slot keeps the closed session.
*/
func (f *Fleet) Reopen(role Role) (Device, error) {
	old, ok := f.devices[role]
	if !ok {
		return nil, fmt.Errorf("%s not configured", role)
	}
	if err := old.Close(); err != nil {
		log.Printf("dgps: closing %s: %s\n", old.Name(), err.Error())
	}
	d, err := f.open(role, true)
	if err != nil {
		return nil, fmt.Errorf("re-open %s: %w", role, err)
	}
	f.devices[role] = d
	return d, nil
}

func (f *Fleet) Close() {
	for _, role := range f.roles {
		if err := f.devices[role].Close(); err != nil {
			log.Printf("dgps: closing %s: %s\n", role, err.Error())
		}
	}
}
