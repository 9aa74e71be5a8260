package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"flag"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/b3nn0/dgpstest/common"
	"github.com/b3nn0/dgpstest/dgps"
	"github.com/b3nn0/dgpstest/gps"
	"github.com/b3nn0/dgpstest/ubx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArgsDefaults(t *testing.T) {
	cfg, err := parseArgs(nil, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyACM0", cfg.Recv1.Port)
	assert.Equal(t, "/dev/ttyACM1", cfg.Recv2.Port)
	assert.Empty(t, cfg.Recv3.Port)
	assert.Equal(t, 115200, cfg.Baudrate)
	assert.Equal(t, ubx.DYNAMIC_MODEL_STATIONARY, cfg.Recv1.DynModel)
	assert.Equal(t, ubx.DYNAMIC_MODEL_AIRBORNE4G, cfg.Recv2.DynModel)
	assert.True(t, cfg.UsePPP)
	assert.Equal(t, 10.0, cfg.MinElevation)
	assert.Equal(t, 6, cfg.MinQuality)
	assert.Equal(t, 5*time.Second, cfg.Deadline)
	assert.Equal(t, "rtcm2.dat", cfg.RTCMLog)
	assert.Equal(t, "errlog.txt", cfg.ErrLog)
}

func TestParseArgsFlags(t *testing.T) {
	cfg, err := parseArgs([]string{
		"-port1", "/dev/ttyUSB0", "-port3", "/dev/ttyUSB2", "-reopen", "-nortcm",
		"-usePPP=false", "-dynmodel2", "6", "-reference", "-35.36,149.16,584", "-deadline", "8s",
	}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", cfg.Recv1.Port)
	assert.Equal(t, "/dev/ttyUSB2", cfg.Recv3.Port)
	assert.True(t, cfg.Reopen)
	assert.True(t, cfg.NoRTCM)
	assert.False(t, cfg.UsePPP)
	assert.Equal(t, 6, cfg.Recv2.DynModel)
	assert.Equal(t, 8*time.Second, cfg.Deadline)
}

func TestParseArgsConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dgps.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
recv1:
  port: /dev/serial/by-id/ref
  log: ref.ubx
recv2:
  port: /dev/serial/by-id/rover
  dynmodel: 7
baudrate: 38400
reopen: true
min_quality: 4
deadline: 10s
`), 0644))

	cfg, err := parseArgs([]string{"-config", path, "-baudrate", "9600"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "/dev/serial/by-id/ref", cfg.Recv1.Port)
	assert.Equal(t, "ref.ubx", cfg.Recv1.Log)
	assert.Equal(t, ubx.DYNAMIC_MODEL_STATIONARY, cfg.Recv1.DynModel)
	assert.Equal(t, 7, cfg.Recv2.DynModel)
	assert.Equal(t, 9600, cfg.Baudrate)
	assert.True(t, cfg.Reopen)
	assert.Equal(t, 4, cfg.MinQuality)
	assert.Equal(t, 10*time.Second, cfg.Deadline)
}

func TestParseArgsErrors(t *testing.T) {
	for _, args := range [][]string{
		{"-dynmodel1", "1"},
		{"-dynmodel3", "9"},
		{"-baudrate", "0"},
		{"-reference", "north"},
		{"-port2", ""},
		{"-config", "/nonexistent/dgps.yaml"},
		{"-nosuchflag"},
		{"extra"},
	} {
		_, err := parseArgs(args, io.Discard)
		assert.Error(t, err, "%v", args)
	}
	_, err := parseArgs([]string{"-h"}, io.Discard)
	assert.True(t, errors.Is(err, flag.ErrHelp))
}

func TestPlotErrorLog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "errlog.txt")
	require.NoError(t, os.WriteFile(path, []byte(common.ERR_LOG_HEADER+"\n1.5 0.5 1.0 0.25\n2.5 0.75 2.0 0.5\n"), 0644))

	cols, err := readErrorLog(path)
	require.NoError(t, err)
	require.Len(t, cols[0], 2)
	assert.Equal(t, 0.75, cols[1][1].Y)
	assert.Equal(t, 1.0, cols[3][1].X)

	out := filepath.Join(dir, "errlog.png")
	require.NoError(t, plotErrorLog(path, out))
	st, err := os.Stat(out)
	require.NoError(t, err)
	assert.NotZero(t, st.Size())

	require.NoError(t, os.WriteFile(path, []byte(common.ERR_LOG_HEADER+"\n"), 0644))
	assert.Error(t, plotErrorLog(path, out))
	require.NoError(t, os.WriteFile(path, []byte("1 2 3\n"), 0644))
	_, err = readErrorLog(path)
	assert.Error(t, err)
}

// simLink acknowledges configuration and then keeps reporting one position.
type simLink struct {
	mu     sync.Mutex
	dec    *ubx.Decoder
	out    chan []byte
	done   chan struct{}
	once   sync.Once
	writes [][]byte
}

func newSimLink(pos [3]int32, period time.Duration) *simLink {
	l := &simLink{dec: ubx.NewDecoder(), out: make(chan []byte, 256), done: make(chan struct{})}
	go func() {
		p := make([]byte, 20)
		binary.LittleEndian.PutUint32(p[4:], uint32(pos[0]))
		binary.LittleEndian.PutUint32(p[8:], uint32(pos[1]))
		binary.LittleEndian.PutUint32(p[12:], uint32(pos[2]))
		frame := ubx.Frame(ubx.CLASS_NAV, ubx.MSG_NAV_POSECEF, p)
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-l.done:
				return
			case <-ticker.C:
				select {
				case l.out <- frame:
				default:
				}
			}
		}
	}()
	return l
}

func (l *simLink) Read(p []byte) (int, error) {
	select {
	case b := <-l.out:
		return copy(p, b), nil
	case <-l.done:
		return 0, io.ErrClosedPipe
	}
}

func (l *simLink) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writes = append(l.writes, append([]byte(nil), p...))
	l.dec.Feed(p)
	for {
		m, ok := l.dec.Next()
		if !ok {
			return len(p), nil
		}
		if m.Class == ubx.CLASS_CFG && len(m.Payload) > 1 {
			l.out <- ubx.Frame(ubx.CLASS_ACK, ubx.MSG_ACK_ACK, []byte{m.Class, m.ID})
		}
	}
}

func (l *simLink) Close() error {
	l.once.Do(func() { close(l.done) })
	return nil
}

func TestRunEndToEnd(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Recv1.Log = filepath.Join(dir, "recv1.ubx")
	cfg.RTCMLog = filepath.Join(dir, "rtcm2.dat")
	cfg.ErrLog = filepath.Join(dir, "errlog.txt")
	ref := dgps.LLH{Lat: 51.4778, Lon: -0.0015, Alt: 45.2}
	cfg.Reference = "51.4778,-0.0015,45.2"
	ecef := ref.ToECEF()
	refcm := [3]int32{int32(ecef.X * 100), int32(ecef.Y * 100), int32(ecef.Z * 100)}
	rovercm := [3]int32{refcm[0] + 300, refcm[1] + 400, refcm[2]}

	var mu sync.Mutex
	links := map[string]*simLink{}
	opener := func(endpoint string, baud int) (gps.Link, error) {
		mu.Lock()
		defer mu.Unlock()
		pos := refcm
		if endpoint == cfg.Recv2.Port {
			pos = rovercm
		}
		l := newSimLink(pos, 20*time.Millisecond)
		links[endpoint] = l
		return l, nil
	}

	var out bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 4*time.Second)
	defer cancel()
	require.NoError(t, runWith(ctx, cfg, &out, opener, prometheus.NewRegistry()))

	text := out.String()
	assert.Contains(t, text, "RECV1<->RECV2")
	assert.Contains(t, text, "RECV2<->REF")
	assert.NotContains(t, text, "RECV3<->REF")

	data, err := os.ReadFile(cfg.ErrLog)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Greater(t, len(lines), 1)
	assert.Equal(t, common.ERR_LOG_HEADER, lines[0])
	fields := strings.Fields(lines[1])
	require.Len(t, fields, 4)
	dgpsErr, err := strconv.ParseFloat(fields[1], 64)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, dgpsErr, 0.05)

	capture, err := os.ReadFile(cfg.Recv1.Log)
	require.NoError(t, err)
	assert.NotEmpty(t, capture)

	rtcm, err := os.Stat(cfg.RTCMLog)
	require.NoError(t, err)
	assert.Zero(t, rtcm.Size())
	assert.Len(t, links, 2)
}
