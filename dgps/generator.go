/*
	Copyright (c) 2022 R. van Twisk
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	generator.go: correction message generation through an external encoder
*/

package dgps

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/b3nn0/dgpstest/common"
)

// RTCM2 message types
const (
	RTCM_TYPE_DIFFERENTIAL      = 1
	RTCM_TYPE_REFERENCE_STATION = 3
	RTCM_TYPE_SATELLITE_HEALTH  = 5
)

// Message types generated after every reference RXM-RAW unless told otherwise.
func DefaultCorrectionTypes() []int {
	return []int{RTCM_TYPE_DIFFERENTIAL, RTCM_TYPE_REFERENCE_STATION, RTCM_TYPE_SATELLITE_HEALTH}
}

var ErrEncoderTimeout = errors.New("encoder timed out")

// Generator produces one kind of correction message from a snapshot of the
// aggregate. An empty payload means there is not enough data yet and is
// not an error. Generate may run on another goroutine than the loop.
type Generator interface {
	Kind() int
	Generate(snap Snapshot) ([]byte, error)
}

type SnapshotSatellite struct {
	SVID      uint8
	PRMes     float64
	CPMes     float64
	DOMes     float32
	MesQI     int8
	CNO       int8
	Elevation *int8    `json:",omitempty"`
	HOW       uint32   `json:",omitempty"`
	SF1       []uint32 `json:",omitempty"`
	SF2       []uint32 `json:",omitempty"`
	SF3       []uint32 `json:",omitempty"`
	Ephemeris time.Time
}

// Snapshot is what an encoder reads. It shares no memory with the
// aggregate it was taken from.
type Snapshot struct {
	Type       int
	ITOW       int32
	Week       int16
	Position   *PosVector `json:",omitempty"`
	Reference  *PosVector `json:",omitempty"`
	Satellites []SnapshotSatellite
}

func copyPos(p *PosVector) *PosVector {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

// NewSnapshot collects the usable satellites of the last RXM-RAW.
func NewSnapshot(kind int, state *SatelliteData) Snapshot {
	snap := Snapshot{
		Type:       kind,
		Position:   copyPos(state.EstimatedPosition),
		Reference:  copyPos(state.ReferencePosition),
		Satellites: []SnapshotSatellite{},
	}
	if state.LastRaw == nil {
		return snap
	}
	snap.ITOW = state.LastRaw.ITOW
	snap.Week = state.LastRaw.Week
	recs := map[uint8]int{}
	for i, rec := range state.LastRaw.Recs {
		recs[rec.SV] = i
	}
	for _, sv := range state.Usable() {
		rec := state.LastRaw.Recs[recs[sv]]
		s := SnapshotSatellite{
			SVID:  sv,
			PRMes: rec.PRMes,
			CPMes: rec.CPMes,
			DOMes: rec.DOMes,
			MesQI: rec.MesQI,
			CNO:   rec.CNO,
		}
		if info, ok := state.Satellites[sv]; ok {
			if info.ElevationKnown {
				elev := info.Elevation
				s.Elevation = &elev
			}
			if info.Ephemeris != nil {
				s.HOW = info.Ephemeris.HOW
				s.SF1 = append([]uint32(nil), info.Ephemeris.SF1[:]...)
				s.SF2 = append([]uint32(nil), info.Ephemeris.SF2[:]...)
				s.SF3 = append([]uint32(nil), info.Ephemeris.SF3[:]...)
				s.Ephemeris = info.TimeEphemeris
			}
		}
		snap.Satellites = append(snap.Satellites, s)
	}
	return snap
}

/*
	ExecGenerator runs Command once per correction, writes the JSON Snapshot
	to its stdin and takes whatever it prints on stdout as the payload. The
	message type is passed as "-type N" after Args. The encoder runs in its
	own process group, which is killed as a whole once Timeout is up.
*/
type ExecGenerator struct {
	Command string
	Args    []string
	Type    int
	Timeout time.Duration // 0 means ENCODER_TIMEOUT
}

// ParseEncoder splits a command line like "rtcm2enc -station 7" into an
// ExecGenerator per message type.
func ParseEncoder(cmdline string, types ...int) ([]Generator, error) {
	fields := strings.Fields(cmdline)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty encoder command")
	}
	gens := make([]Generator, 0, len(types))
	for _, t := range types {
		gens = append(gens, &ExecGenerator{Command: fields[0], Args: fields[1:], Type: t})
	}
	return gens, nil
}

func (g *ExecGenerator) Kind() int {
	return g.Type
}

func (g *ExecGenerator) Generate(snap Snapshot) ([]byte, error) {
	snap.Type = g.Type
	input, err := json.Marshal(snap)
	if err != nil {
		return nil, err
	}
	timeout := g.Timeout
	if timeout <= 0 {
		timeout = common.ENCODER_TIMEOUT
	}

	args := append(append([]string{}, g.Args...), "-type", strconv.Itoa(g.Type))
	cmd := exec.Command(g.Command, args...)
	setProcessGroup(cmd)
	var stdout, stderr bytes.Buffer
	cmd.Stdin = bytes.NewReader(input)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("encoder type %d: %w", g.Type, err)
	}
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case err = <-done:
	case <-timer.C:
		killProcessGroup(cmd)
		select {
		case <-done:
		case <-time.After(common.ENCODER_REAP_DELAY):
			// something outside the group still holds the pipes
			log.Printf("dgps: encoder type %d (pid %d) still running after kill\n", g.Type, cmd.Process.Pid)
		}
		return nil, fmt.Errorf("encoder type %d: %w after %s", g.Type, ErrEncoderTimeout, timeout)
	}
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("encoder type %d: %w: %s", g.Type, err, msg)
		}
		return nil, fmt.Errorf("encoder type %d: %w", g.Type, err)
	}
	return stdout.Bytes(), nil
}
