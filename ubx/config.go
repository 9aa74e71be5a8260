/*
	Copyright (c) 2022 R. van Twisk
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	config.go: UBX-CFG payload builders for receiver setup
*/

package ubx

import (
	"encoding/binary"
)

const (
	PORT_DDC     = 0x00
	PORT_SERIAL1 = 0x01
	PORT_SERIAL2 = 0x02
	PORT_USB     = 0x03
	PORT_SPI     = 0x04

	PROTO_UBX  = 0x0001
	PROTO_NMEA = 0x0002
	PROTO_RTCM = 0x0004
	PROTO_ALL  = 0xFFFF
)

// Platform models for UBX-CFG-NAV5 dynModel
const (
	DYNAMIC_MODEL_PORTABLE   = 0
	DYNAMIC_MODEL_STATIONARY = 2
	DYNAMIC_MODEL_PEDESTRIAN = 3
	DYNAMIC_MODEL_AUTOMOTIVE = 4
	DYNAMIC_MODEL_SEA        = 5
	DYNAMIC_MODEL_AIRBORNE1G = 6
	DYNAMIC_MODEL_AIRBORNE2G = 7
	DYNAMIC_MODEL_AIRBORNE4G = 8
)

const (
	nav5MaskDyn  = 0x0001
	nav5MaskDGPS = 0x0080
	navx5MaskPPP = 0x2000
)

// Command is one configuration frame plus whether the receiver answers it
// with ACK-ACK / ACK-NAK. Polls are not acknowledged, CFG writes are.
type Command struct {
	Step    string
	Class   byte
	ID      byte
	Payload []byte
	Acked   bool
}

func (c Command) Bytes() []byte {
	return Frame(c.Class, c.ID, c.Payload)
}

// Poll requests the current value of a message. Some polls take a payload,
// for example CFG-PRT with a port id or AID-EPH with a satellite id.
func Poll(step string, class, id byte, payload ...byte) Command {
	return Command{Step: step, Class: class, ID: id, Payload: payload}
}

// PollEphemeris is the one-byte AID-EPH request for a single satellite.
func PollEphemeris(svid uint8) Command {
	return Poll("poll AID_EPH", CLASS_AID, MSG_AID_EPH, svid)
}

/*
	CfgPort() builds UBX-CFG-PRT.
		UART mode is 8 data bits, no parity, 1 stop bit. Mode and baud rate are
		reserved and left zero for the USB port.
*/
func CfgPort(port byte, inMask, outMask uint16, baud uint32) Command {
	cfg := make([]byte, 20)
	cfg[0] = port
	if port == PORT_SERIAL1 || port == PORT_SERIAL2 {
		//      [   7   ] [   6   ] [   5   ] [   4   ]
		//	0000 0000 0000 0000 0000 10x0 1100 0000
		binary.LittleEndian.PutUint32(cfg[4:], 0x000008C0)
		binary.LittleEndian.PutUint32(cfg[8:], baud)
	}
	binary.LittleEndian.PutUint16(cfg[12:], inMask)
	binary.LittleEndian.PutUint16(cfg[14:], outMask)
	return Command{Step: "configure port", Class: CLASS_CFG, ID: MSG_CFG_PRT, Payload: cfg, Acked: true}
}

// CfgMsgRate uses the short 3-byte UBX-CFG-MSG form which sets the rate on
// the port the command arrives on.
func CfgMsgRate(class, id, rate byte) Command {
	return Command{
		Step:    "message rate " + Message{Class: class, ID: id}.Name(),
		Class:   CLASS_CFG,
		ID:      MSG_CFG_MSG,
		Payload: []byte{class, id, rate},
		Acked:   true,
	}
}

// CfgRate sets the measurement period in ms, one measurement per solution,
// aligned to GPS time (UBX-CFG-RATE payload bytes: little endian!)
func CfgRate(rateMs uint16) Command {
	cfg := make([]byte, 6)
	binary.LittleEndian.PutUint16(cfg[0:], rateMs)
	binary.LittleEndian.PutUint16(cfg[2:], 1)
	binary.LittleEndian.PutUint16(cfg[4:], 1)
	return Command{Step: "solution rate", Class: CLASS_CFG, ID: MSG_CFG_RATE, Payload: cfg, Acked: true}
}

// CfgNav5 applies the dynamic platform model and, when dgpsTimeout is
// non-zero, the age in seconds after which corrections are ignored.
func CfgNav5(dynModel byte, dgpsTimeout byte) Command {
	cfg := make([]byte, 36)
	mask := uint16(nav5MaskDyn)
	cfg[2] = dynModel
	if dgpsTimeout > 0 {
		mask |= nav5MaskDGPS
		cfg[23] = dgpsTimeout
	}
	binary.LittleEndian.PutUint16(cfg[0:], mask)
	return Command{Step: "navigation engine", Class: CLASS_CFG, ID: MSG_CFG_NAV5, Payload: cfg, Acked: true}
}

// CfgNavX5PPP toggles precise point positioning on receivers that support it.
func CfgNavX5PPP(usePPP bool) Command {
	cfg := make([]byte, 40)
	binary.LittleEndian.PutUint16(cfg[2:], navx5MaskPPP)
	if usePPP {
		cfg[26] = 1
	}
	return Command{Step: "navigation expert PPP", Class: CLASS_CFG, ID: MSG_CFG_NAVX5, Payload: cfg, Acked: true}
}
