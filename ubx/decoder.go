/*
	Copyright (c) 2022 R. van Twisk
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	decoder.go: UBX byte stream framing
*/

package ubx

import (
	"encoding/binary"
)

// Decoder reassembles UBX frames from an arbitrary chunked byte stream.
// Bytes outside a frame (NMEA chatter, line noise) are skipped, and frames
// with a bad checksum or an absurd length are dropped and counted.
type Decoder struct {
	buf []byte

	BadFrames uint64
	Skipped   uint64
}

func NewDecoder() *Decoder {
	return &Decoder{buf: make([]byte, 0, 1024)}
}

// Feed appends raw link bytes to the reassembly buffer.
func (d *Decoder) Feed(p []byte) {
	d.buf = append(d.buf, p...)
}

// Buffered reports how many bytes are waiting for a complete frame.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Next returns the next complete frame, if the buffer holds one.
func (d *Decoder) Next() (Message, bool) {
	for {
		start := d.sync()
		if start < 0 {
			return Message{}, false
		}
		if len(d.buf) < HEADER_LEN {
			return Message{}, false
		}
		plen := int(binary.LittleEndian.Uint16(d.buf[4:6]))
		if plen > MAX_PAYLOAD {
			d.BadFrames++
			d.drop(2)
			continue
		}
		total := HEADER_LEN + plen + CHECKSUM_LEN
		if len(d.buf) < total {
			return Message{}, false
		}
		a, b := Checksum(d.buf[2 : HEADER_LEN+plen])
		if a != d.buf[HEADER_LEN+plen] || b != d.buf[HEADER_LEN+plen+1] {
			// resync one byte past the bogus sync pair
			d.BadFrames++
			d.drop(2)
			continue
		}
		msg := Message{
			Class:   d.buf[2],
			ID:      d.buf[3],
			Payload: append([]byte(nil), d.buf[HEADER_LEN:HEADER_LEN+plen]...),
		}
		d.drop(total)
		return msg, true
	}
}

// sync discards bytes until the buffer starts with the UBX sync pair.
// Returns -1 when no sync pair is in the buffer yet.
func (d *Decoder) sync() int {
	for i := 0; i+1 < len(d.buf); i++ {
		if d.buf[i] == SYNC1 && d.buf[i+1] == SYNC2 {
			if i > 0 {
				d.Skipped += uint64(i)
				d.drop(i)
			}
			return 0
		}
	}
	// keep a trailing SYNC1, the SYNC2 may be in the next chunk
	keep := 0
	if n := len(d.buf); n > 0 && d.buf[n-1] == SYNC1 {
		keep = 1
	}
	d.Skipped += uint64(len(d.buf) - keep)
	d.drop(len(d.buf) - keep)
	return -1
}

func (d *Decoder) drop(n int) {
	d.buf = append(d.buf[:0], d.buf[n:]...)
}
