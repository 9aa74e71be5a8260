/*
	Copyright (c) 2022 R. van Twisk
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	frame.go: UBX frame construction and checksums
*/

package ubx

import (
	"encoding/binary"
	"fmt"
)

const (
	SYNC1 = 0xB5
	SYNC2 = 0x62

	HEADER_LEN   = 6    // sync1, sync2, class, id, length (2 bytes LE)
	CHECKSUM_LEN = 2    // CK_A, CK_B
	MAX_PAYLOAD  = 4096 // Anything bigger than this is treated as a framing error
)

/*
	Checksum()
		returns the two-byte Fletcher algorithm checksum of byte array msg.
		msg starts at the class byte and ends with the last payload byte.
		See p. 97 of the u-blox M8 Receiver Description.
*/
func Checksum(msg []byte) (byte, byte) {
	var a, b byte
	for i := 0; i < len(msg); i++ {
		a = a + msg[i]
		b = b + a
	}
	return a, b
}

/*
	Frame()
		creates a UBX-formatted package consisting of two sync characters,
		class, ID, payload length in bytes (2-byte little endian), payload, and checksum.
		See p. 95 of the u-blox M8 Receiver Description.
*/
func Frame(class, id byte, payload []byte) []byte {
	ret := make([]byte, HEADER_LEN, HEADER_LEN+len(payload)+CHECKSUM_LEN)
	ret[0] = SYNC1
	ret[1] = SYNC2
	ret[2] = class
	ret[3] = id
	binary.LittleEndian.PutUint16(ret[4:], uint16(len(payload)))
	ret = append(ret, payload...)
	a, b := Checksum(ret[2:])
	return append(ret, a, b)
}

// Message is one complete, checksum-verified UBX frame. The payload is kept
// raw; Unpack turns it into one of the typed bodies in messages.go.
type Message struct {
	Class   byte
	ID      byte
	Payload []byte
}

// Bytes returns the message re-framed exactly as it appeared on the wire.
func (m Message) Bytes() []byte {
	return Frame(m.Class, m.ID, m.Payload)
}

func (m Message) Key() uint16 {
	return uint16(m.Class)<<8 | uint16(m.ID)
}

// Name returns the pyUblox style name, e.g. "RXM_RAW", or CLS_ID in hex for
// messages this package does not know.
func (m Message) Name() string {
	if n, ok := messageNames[m.Key()]; ok {
		return n
	}
	return fmt.Sprintf("UNKNOWN_%02X_%02X", m.Class, m.ID)
}

func (m Message) String() string {
	return fmt.Sprintf("%s(len=%d)", m.Name(), len(m.Payload))
}
