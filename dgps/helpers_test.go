package dgps

import (
	"encoding/binary"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/b3nn0/dgpstest/ubx"
)

var le = binary.LittleEndian

func rawMsg(svs ...uint8) ubx.Message {
	p := make([]byte, 8+24*len(svs))
	le.PutUint32(p[0:], 345600000)
	le.PutUint16(p[4:], 2230)
	p[6] = uint8(len(svs))
	for i, sv := range svs {
		c := p[8+24*i:]
		le.PutUint64(c[0:], math.Float64bits(1.5e8))
		le.PutUint64(c[8:], math.Float64bits(2.1e7+float64(sv)))
		le.PutUint32(c[16:], math.Float32bits(-1200))
		c[20] = sv
		c[21] = 7
		c[22] = 42
	}
	return ubx.Message{Class: ubx.CLASS_RXM, ID: ubx.MSG_RXM_RAW, Payload: p}
}

func posMsg(p PosVector) ubx.Message {
	b := make([]byte, 20)
	le.PutUint32(b[4:], uint32(int32(math.Round(p.X*100))))
	le.PutUint32(b[8:], uint32(int32(math.Round(p.Y*100))))
	le.PutUint32(b[12:], uint32(int32(math.Round(p.Z*100))))
	return ubx.Message{Class: ubx.CLASS_NAV, ID: ubx.MSG_NAV_POSECEF, Payload: b}
}

// cm rounds to what NAV-POSECEF can carry.
func cm(p PosVector) PosVector {
	return FromECEFcm(int32(math.Round(p.X*100)), int32(math.Round(p.Y*100)), int32(math.Round(p.Z*100)))
}

func aidEphMsg(sv uint8, valid bool) ubx.Message {
	return aidEphMsgSVID(uint32(sv), valid)
}

func aidEphMsgSVID(sv uint32, valid bool) ubx.Message {
	if !valid {
		p := make([]byte, 8)
		le.PutUint32(p, sv)
		return ubx.Message{Class: ubx.CLASS_AID, ID: ubx.MSG_AID_EPH, Payload: p}
	}
	p := make([]byte, 104)
	le.PutUint32(p[0:], sv)
	le.PutUint32(p[4:], 0x12345)
	for i := 8; i < 104; i += 4 {
		le.PutUint32(p[i:], uint32(i))
	}
	return ubx.Message{Class: ubx.CLASS_AID, ID: ubx.MSG_AID_EPH, Payload: p}
}

func svInfoMsg(elev map[uint8]int8) ubx.Message {
	p := make([]byte, 8, 8+12*len(elev))
	p[4] = uint8(len(elev))
	i := 0
	for sv, e := range elev {
		c := make([]byte, 12)
		c[0] = uint8(i)
		c[1] = sv
		c[5] = uint8(e)
		p = append(p, c...)
		i++
	}
	return ubx.Message{Class: ubx.CLASS_NAV, ID: ubx.MSG_NAV_SVINFO, Payload: p}
}

func dgpsMsg(ageMs int32, numCh uint8) ubx.Message {
	p := make([]byte, 16+12*int(numCh))
	le.PutUint32(p[4:], uint32(ageMs))
	p[12] = numCh
	return ubx.Message{Class: ubx.CLASS_NAV, ID: ubx.MSG_NAV_DGPS, Payload: p}
}

// fakeDevice hands out queued messages and records everything written to it.
// Its staleness follows *clock at the time of the last successful Poll.
type fakeDevice struct {
	name       string
	clock      *time.Time
	queue      []ubx.Message
	last       time.Time
	written    [][]byte
	requests   []uint8
	requestErr error
	closed     int
}

func newFakeDevice(name string, clock *time.Time) *fakeDevice {
	return &fakeDevice{name: name, clock: clock, last: *clock}
}

func (d *fakeDevice) Name() string { return d.name }

func (d *fakeDevice) Poll() (ubx.Message, bool) {
	if len(d.queue) == 0 {
		return ubx.Message{}, false
	}
	m := d.queue[0]
	d.queue = d.queue[1:]
	d.last = *d.clock
	return m, true
}

func (d *fakeDevice) IsStale(now time.Time, deadline time.Duration) bool {
	return now.Sub(d.last) >= deadline
}

func (d *fakeDevice) Write(p []byte) (int, error) {
	if d.closed > 0 {
		return 0, errors.New("closed")
	}
	d.written = append(d.written, append([]byte(nil), p...))
	return len(p), nil
}

func (d *fakeDevice) RequestEphemeris(svid uint8) error {
	if d.requestErr != nil {
		return d.requestErr
	}
	d.requests = append(d.requests, svid)
	return nil
}

func (d *fakeDevice) Close() error {
	d.closed++
	return nil
}

type staticGenerator struct {
	kind    int
	payload []byte
	err     error
	calls   int
}

func (g *staticGenerator) Kind() int { return g.kind }

func (g *staticGenerator) Generate(Snapshot) ([]byte, error) {
	g.calls++
	return g.payload, g.err
}

// blockingGenerator holds every Generate call until release is closed.
type blockingGenerator struct {
	kind    int
	payload []byte
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingGenerator(kind int, payload []byte) *blockingGenerator {
	return &blockingGenerator{kind: kind, payload: payload, started: make(chan struct{}), release: make(chan struct{})}
}

func (g *blockingGenerator) Kind() int { return g.kind }

func (g *blockingGenerator) Generate(Snapshot) ([]byte, error) {
	g.once.Do(func() { close(g.started) })
	<-g.release
	return g.payload, nil
}

type fixedEstimator struct {
	pos *PosVector
}

func (e fixedEstimator) Estimate(*SatelliteData) *PosVector { return e.pos }
