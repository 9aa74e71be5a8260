package dgps

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/b3nn0/dgpstest/common"
	"github.com/b3nn0/dgpstest/ubx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type openCall struct {
	role      Role
	appendLog bool
}

type rig struct {
	now      time.Time
	devices  map[Role]*fakeDevice
	opens    []openCall
	openErr  error
	fleet    *Fleet
	router   *Router
	loop     *Loop
	out      bytes.Buffer
	metrics  *Metrics
	status   *StatusBoard
	reporter *Reporter
	errlog   string
}

func newRig(t *testing.T, roles ...Role) *rig {
	t.Helper()
	r := &rig{now: time.Unix(1600000000, 0), devices: map[Role]*fakeDevice{}}
	var err error
	r.metrics, err = NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	r.status = NewStatusBoard()

	r.fleet = NewFleet(func(role Role, appendLog bool) (Device, error) {
		r.opens = append(r.opens, openCall{role, appendLog})
		if r.openErr != nil {
			return nil, r.openErr
		}
		d := newFakeDevice(role.String(), &r.now)
		r.devices[role] = d
		return d, nil
	})
	require.NoError(t, r.fleet.Open(roles...))

	r.errlog = filepath.Join(t.TempDir(), "errlog.txt")
	r.reporter, err = NewReporter(&r.out, r.errlog)
	require.NoError(t, err)
	r.reporter.Metrics = r.metrics
	t.Cleanup(func() { r.reporter.Close() })

	state := NewSatelliteData()
	sched := NewScheduler(func() EphemerisRequester { return r.fleet.Requester(RoleReference) })
	sched.Metrics = r.metrics
	r.router = &Router{
		State:     state,
		Scheduler: sched,
		Reporter:  r.reporter,
		Metrics:   r.metrics,
		Status:    r.status,
		Out:       &r.out,
		Now:       func() time.Time { return r.now },
	}
	r.loop = &Loop{
		Fleet:    r.fleet,
		Router:   r.router,
		Deadline: 5 * time.Second,
		Out:      &r.out,
		Now:      func() time.Time { return r.now },
		Metrics:  r.metrics,
		Status:   r.status,
	}
	return r
}

func (r *rig) queue(role Role, msgs ...ubx.Message) {
	r.devices[role].queue = append(r.devices[role].queue, msgs...)
}

func (r *rig) errlogLines(t *testing.T) []string {
	t.Helper()
	data, err := os.ReadFile(r.errlog)
	require.NoError(t, err)
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func TestThreeSatellitesThreeRequestsInOneTick(t *testing.T) {
	r := newRig(t, RoleReference, RoleCorrectedRover)
	r.queue(RoleReference, rawMsg(3, 7, 12))

	require.NoError(t, r.loop.Tick())
	assert.Equal(t, []uint8{3, 7, 12}, r.devices[RoleReference].requests)
	assert.Equal(t, 3.0, testutil.ToFloat64(r.metrics.EphemerisRequests))

	// same satellites a second later: nothing new
	r.now = r.now.Add(time.Second)
	r.queue(RoleReference, rawMsg(3, 7, 12))
	require.NoError(t, r.loop.Tick())
	assert.Equal(t, []uint8{3, 7, 12}, r.devices[RoleReference].requests)
}

func TestEphemerisMessageMarksSatelliteFresh(t *testing.T) {
	r := newRig(t, RoleReference)
	r.router.Handle(RoleReference, rawMsg(4))
	r.router.Handle(RoleReference, aidEphMsg(4, true))
	r.router.Handle(RoleReference, aidEphMsg(8, false))

	r.now = r.now.Add(time.Minute)
	r.router.Handle(RoleReference, rawMsg(4, 8))
	// 4 has a fresh ephemeris, 8 only reported that it has none
	assert.Equal(t, []uint8{4, 8}, r.devices[RoleReference].requests)
	require.NotNil(t, r.router.State.Satellites[4].Ephemeris)
	assert.Nil(t, r.router.State.Satellites[8].Ephemeris)
}

func TestEphemerisOutOfRangeSVID(t *testing.T) {
	r := newRig(t, RoleReference)
	r.router.Handle(RoleReference, rawMsg(3))
	r.router.Handle(RoleReference, aidEphMsgSVID(259, true))

	r.now = r.now.Add(time.Minute)
	r.router.Handle(RoleReference, rawMsg(3))
	// 259 must not be taken for SV 3
	assert.Equal(t, []uint8{3, 3}, r.devices[RoleReference].requests)
	assert.Nil(t, r.router.State.Satellites[3].Ephemeris)
}

func TestDecodeFailureDoesNotStopProcessing(t *testing.T) {
	r := newRig(t, RoleReference, RoleCorrectedRover, RoleUncorrectedRover)
	good := PosVector{-2712345.12, 4654321.00, 3555123.45}
	short := ubx.Message{Class: ubx.CLASS_NAV, ID: ubx.MSG_NAV_POSECEF, Payload: []byte{1, 2, 3}}
	badRaw := ubx.Message{Class: ubx.CLASS_RXM, ID: ubx.MSG_RXM_RAW, Payload: []byte{0, 0, 0, 0, 0, 0, 5, 0}}

	r.queue(RoleReference, short, badRaw, posMsg(good))
	r.queue(RoleCorrectedRover, short)
	r.queue(RoleUncorrectedRover, short)
	for i := 0; i < 3; i++ {
		require.NoError(t, r.loop.Tick())
	}

	s := r.router.State
	require.NotNil(t, s.ReceiverPosition)
	assert.InDelta(t, good.X, s.ReceiverPosition.X, 1e-6)
	assert.Equal(t, uint64(1), s.Samples())
	assert.Nil(t, s.LastRaw)
	assert.Nil(t, s.Recv2Position)
	assert.Nil(t, s.Recv3Position)
	assert.Empty(t, r.devices[RoleReference].requests)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.metrics.DecodeErrors.WithLabelValues("recv1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.metrics.DecodeErrors.WithLabelValues("recv2")))
	st, ok := r.status.Get(RoleReference)
	require.True(t, ok)
	assert.Equal(t, uint64(3), st.Messages)
	assert.Equal(t, uint64(2), st.DecodeErrors)
}

func TestNoReportBeforeBothPositions(t *testing.T) {
	r := newRig(t, RoleReference, RoleCorrectedRover)
	ref := cm(LLH{-35.363261, 149.165230, 584}.ToECEF())
	r.router.State.ReferencePosition = &ref

	r.router.Handle(RoleCorrectedRover, posMsg(ref))
	assert.Empty(t, r.out.String())
	assert.Equal(t, []string{common.ERR_LOG_HEADER}, r.errlogLines(t))

	r.router.Handle(RoleReference, posMsg(PosVector{ref.X + 3, ref.Y + 4, ref.Z}))
	assert.Empty(t, r.out.String())

	r.router.Handle(RoleCorrectedRover, posMsg(ref))
	assert.Contains(t, r.out.String(), "RECV1<->RECV2")
	assert.Len(t, r.errlogLines(t), 2)
}

func TestReportOrderAndErrorLog(t *testing.T) {
	r := newRig(t, RoleReference, RoleCorrectedRover, RoleUncorrectedRover)
	ref := cm(LLH{51.4778, -0.0015, 45.2}.ToECEF())
	r.router.State.ReferencePosition = &ref

	r.router.Handle(RoleReference, posMsg(PosVector{ref.X + 3, ref.Y + 4, ref.Z}))
	r.router.Handle(RoleUncorrectedRover, posMsg(PosVector{ref.X, ref.Y, ref.Z + 5}))
	assert.Empty(t, r.out.String())
	r.router.Handle(RoleCorrectedRover, posMsg(PosVector{ref.X + 6, ref.Y + 8, ref.Z}))

	var names []string
	for _, line := range strings.Split(strings.TrimSpace(r.out.String()), "\n")[1:] {
		names = append(names, strings.Fields(line)[0])
		assert.Contains(t, line, " gh=gcpu")
	}
	assert.Equal(t, []string{
		"RECV1<->RECV2", "RECV1<->AVG", "AVG<->RECV1", "AVG<->RECV2",
		"REF<->AVG", "RECV1<->REF", "RECV2<->REF", "RECV3<->REF",
	}, names)

	lines := r.errlogLines(t)
	require.Len(t, lines, 2)
	assert.Equal(t, "5.000000 10.000000 0.000000 10.000000", lines[1])
	assert.InDelta(t, 10.0, testutil.ToFloat64(r.metrics.Divergence.WithLabelValues("RECV2<->REF")), 1e-6)
}

func TestErrorLogWithoutControlReceiver(t *testing.T) {
	r := newRig(t, RoleReference, RoleCorrectedRover)
	ref := PosVector{4000000, 1000000, 4800000}
	r.router.State.ReferencePosition = &ref

	r.router.Handle(RoleReference, posMsg(PosVector{ref.X + 3, ref.Y + 4, ref.Z}))
	r.router.Handle(RoleCorrectedRover, posMsg(PosVector{ref.X, ref.Y, ref.Z + 2}))

	lines := r.errlogLines(t)
	require.Len(t, lines, 2)
	assert.Equal(t, "5.000000 2.000000 5.000000 0.000000", lines[1])
	assert.NotContains(t, r.out.String(), "RECV3<->REF")
}

func TestReportWithoutReference(t *testing.T) {
	r := newRig(t, RoleReference, RoleCorrectedRover)
	r.router.Handle(RoleReference, posMsg(PosVector{4000000, 1000000, 4800000}))
	r.router.Handle(RoleCorrectedRover, posMsg(PosVector{4000001, 1000000, 4800000}))

	out := r.out.String()
	assert.Contains(t, out, "AVG<->RECV2")
	assert.NotContains(t, out, "REF")
	assert.Equal(t, []string{common.ERR_LOG_HEADER}, r.errlogLines(t))
}

func TestDGPSStatusLine(t *testing.T) {
	r := newRig(t, RoleReference, RoleCorrectedRover)
	r.router.Handle(RoleCorrectedRover, dgpsMsg(2300, 2))
	assert.Equal(t, "DGPS: age=2300 numCh=2\n", r.out.String())
}

func TestReferenceIgnoresOtherMessages(t *testing.T) {
	r := newRig(t, RoleReference)
	r.router.Handle(RoleReference, dgpsMsg(100, 0))
	r.router.Handle(RoleReference, ubx.Message{Class: ubx.CLASS_NAV, ID: ubx.MSG_NAV_POSLLH, Payload: []byte{1}})
	assert.Equal(t, 0.0, testutil.ToFloat64(r.metrics.DecodeErrors.WithLabelValues("recv1")))
	assert.Empty(t, r.router.State.Satellites)
}

func TestSVInfoElevationMask(t *testing.T) {
	r := newRig(t, RoleReference)
	r.router.Handle(RoleReference, svInfoMsg(map[uint8]int8{2: 5, 6: 45}))
	r.router.Handle(RoleReference, rawMsg(2, 6, 11))

	// 2 is below the mask, 11 has no elevation yet
	assert.Equal(t, []uint8{6, 11}, r.router.State.Usable())
	r.router.State.MinQuality = 8
	assert.Empty(t, r.router.State.Usable())
}

func TestRawDrivesPipeline(t *testing.T) {
	r := newRig(t, RoleReference, RoleCorrectedRover)
	gen := &staticGenerator{kind: RTCM_TYPE_REFERENCE_STATION, payload: []byte{0x66, 0x01}}
	est := PosVector{1, 2, 3}
	r.router.Pipeline = &Pipeline{
		Estimator:  fixedEstimator{&est},
		Generators: []Generator{gen},
		Forward:    true,
		Rover:      func() io.Writer { return r.fleet.Writer(RoleCorrectedRover) },
	}
	r.queue(RoleReference, rawMsg(1, 2, 3, 4))
	require.NoError(t, r.loop.Tick())

	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, [][]byte{{0x66, 0x01}}, r.devices[RoleCorrectedRover].written)
	assert.Equal(t, &est, r.router.State.EstimatedPosition)
}
