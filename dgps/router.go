/*
	Copyright (c) 2022 R. van Twisk
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	router.go: per role message dispatch
*/

package dgps

import (
	"fmt"
	"io"
	"log"
	"time"

	"github.com/b3nn0/dgpstest/common"
	"github.com/b3nn0/dgpstest/ubx"
)

type Role int

const (
	RoleReference        Role = iota // recv1, stationary, source of corrections
	RoleCorrectedRover               // recv2, consumes corrections
	RoleUncorrectedRover             // recv3, optional control receiver
)

func (r Role) String() string {
	switch r {
	case RoleReference:
		return "recv1"
	case RoleCorrectedRover:
		return "recv2"
	case RoleUncorrectedRover:
		return "recv3"
	}
	return fmt.Sprintf("role%d", int(r))
}

// Marker is printed when the role's session is re-opened.
func (r Role) Marker() string {
	return fmt.Sprintf("R%d", int(r)+1)
}

// Messages the reference receiver contributes to the aggregate.
func referenceMessages() []string {
	return []string{"RXM_RAW", "NAV_POSECEF", "RXM_SFRB", "AID_EPH", "NAV_SVINFO"}
}

/*
	Router owns the aggregate and decides what each message does to it.
	Nothing a single message carries can stop the loop: decode failures are
	logged, counted and dropped before the state is touched.
*/
type Router struct {
	State     *SatelliteData
	Scheduler *Scheduler
	Pipeline  *Pipeline
	Reporter  *Reporter
	Metrics   *Metrics
	Status    *StatusBoard
	Out       io.Writer // DGPS status lines
	Now       func() time.Time
}

func (r *Router) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

func (r *Router) Handle(role Role, m ubx.Message) {
	now := r.now()
	r.Metrics.message(role, m.Name())
	r.Status.seen(role, m.Name(), now)

	switch role {
	case RoleReference:
		r.handleReference(m, now)
	case RoleCorrectedRover:
		r.handleCorrectedRover(m)
	case RoleUncorrectedRover:
		r.handleUncorrectedRover(m)
	default:
		log.Printf("dgps: message %s from unknown role %d\n", m.Name(), int(role))
	}
}

func (r *Router) unpack(role Role, m ubx.Message) (interface{}, bool) {
	v, err := m.Unpack()
	if err != nil {
		log.Printf("dgps: %s: %s\n", role, err.Error())
		r.Metrics.decodeError(role)
		r.Status.decodeError(role)
		return nil, false
	}
	return v, true
}

func (r *Router) handleReference(m ubx.Message, now time.Time) {
	if !common.StringInSlice(m.Name(), referenceMessages()) {
		return
	}
	v, ok := r.unpack(RoleReference, m)
	if !ok {
		return
	}
	r.State.AddMessage(v, now)

	switch msg := v.(type) {
	case *ubx.AidEph:
		if msg.Valid() && msg.SVID <= 255 && r.Scheduler != nil {
			r.Scheduler.EphemerisReceived(uint8(msg.SVID), now)
		}
	case *ubx.NavPosECEF:
		r.Status.position(RoleReference, *r.State.ReceiverPosition)
	case *ubx.RxmRaw:
		if r.Scheduler != nil {
			for _, rec := range msg.Recs {
				r.Scheduler.OnObservation(rec.SV, now)
			}
		}
		if r.Pipeline != nil {
			r.Pipeline.GenerateAndDispatch(r.State)
		}
	}
}

func (r *Router) handleCorrectedRover(m ubx.Message) {
	switch m.Key() {
	case ubx.CLASS_NAV<<8 | ubx.MSG_NAV_DGPS:
		v, ok := r.unpack(RoleCorrectedRover, m)
		if !ok {
			return
		}
		d := v.(*ubx.NavDGPS)
		if r.Out != nil {
			fprintf(r.Out, "DGPS: age=%d numCh=%d\n", d.Age, d.NumCh)
		}
	case ubx.CLASS_NAV<<8 | ubx.MSG_NAV_POSECEF:
		v, ok := r.unpack(RoleCorrectedRover, m)
		if !ok {
			return
		}
		p := v.(*ubx.NavPosECEF)
		pos := FromECEFcm(p.ECEFX, p.ECEFY, p.ECEFZ)
		r.State.Recv2Position = &pos
		r.Status.position(RoleCorrectedRover, pos)
		if r.State.ReceiverPosition == nil || r.State.AveragePosition == nil {
			return
		}
		if r.Reporter != nil {
			r.Reporter.Report(r.State)
		}
	}
}

func (r *Router) handleUncorrectedRover(m ubx.Message) {
	if m.Key() != ubx.CLASS_NAV<<8|ubx.MSG_NAV_POSECEF {
		return
	}
	v, ok := r.unpack(RoleUncorrectedRover, m)
	if !ok {
		return
	}
	p := v.(*ubx.NavPosECEF)
	pos := FromECEFcm(p.ECEFX, p.ECEFY, p.ECEFZ)
	r.State.Recv3Position = &pos
	r.Status.position(RoleUncorrectedRover, pos)
}
