/*
	Copyright (c) 2022 R. van Twisk
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	messages.go: UBX message names and payload decoding
*/

package ubx

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const (
	CLASS_NAV = 0x01
	CLASS_RXM = 0x02
	CLASS_INF = 0x04
	CLASS_ACK = 0x05
	CLASS_CFG = 0x06
	CLASS_MON = 0x0A
	CLASS_AID = 0x0B

	MSG_NAV_POSECEF = 0x01
	MSG_NAV_POSLLH  = 0x02
	MSG_NAV_STATUS  = 0x03
	MSG_NAV_SOL     = 0x06
	MSG_NAV_VELECEF = 0x11
	MSG_NAV_VELNED  = 0x12
	MSG_NAV_SVINFO  = 0x30
	MSG_NAV_DGPS    = 0x31

	MSG_RXM_RAW  = 0x10
	MSG_RXM_SFRB = 0x11
	MSG_RXM_SVSI = 0x20

	MSG_ACK_NAK = 0x00
	MSG_ACK_ACK = 0x01

	MSG_CFG_PRT   = 0x00
	MSG_CFG_MSG   = 0x01
	MSG_CFG_RATE  = 0x08
	MSG_CFG_USB   = 0x1B
	MSG_CFG_NAVX5 = 0x23
	MSG_CFG_NAV5  = 0x24

	MSG_MON_VER = 0x04
	MSG_MON_HW  = 0x09

	MSG_AID_EPH = 0x31
)

var messageNames = map[uint16]string{
	CLASS_NAV<<8 | MSG_NAV_POSECEF: "NAV_POSECEF",
	CLASS_NAV<<8 | MSG_NAV_POSLLH:  "NAV_POSLLH",
	CLASS_NAV<<8 | MSG_NAV_STATUS:  "NAV_STATUS",
	CLASS_NAV<<8 | MSG_NAV_SOL:     "NAV_SOL",
	CLASS_NAV<<8 | MSG_NAV_VELECEF: "NAV_VELECEF",
	CLASS_NAV<<8 | MSG_NAV_VELNED:  "NAV_VELNED",
	CLASS_NAV<<8 | MSG_NAV_SVINFO:  "NAV_SVINFO",
	CLASS_NAV<<8 | MSG_NAV_DGPS:    "NAV_DGPS",
	CLASS_RXM<<8 | MSG_RXM_RAW:     "RXM_RAW",
	CLASS_RXM<<8 | MSG_RXM_SFRB:    "RXM_SFRB",
	CLASS_RXM<<8 | MSG_RXM_SVSI:    "RXM_SVSI",
	CLASS_ACK<<8 | MSG_ACK_NAK:     "ACK_NAK",
	CLASS_ACK<<8 | MSG_ACK_ACK:     "ACK_ACK",
	CLASS_CFG<<8 | MSG_CFG_PRT:     "CFG_PRT",
	CLASS_CFG<<8 | MSG_CFG_MSG:     "CFG_MSG",
	CLASS_CFG<<8 | MSG_CFG_RATE:    "CFG_RATE",
	CLASS_CFG<<8 | MSG_CFG_USB:     "CFG_USB",
	CLASS_CFG<<8 | MSG_CFG_NAVX5:   "CFG_NAVX5",
	CLASS_CFG<<8 | MSG_CFG_NAV5:    "CFG_NAV5",
	CLASS_MON<<8 | MSG_MON_VER:     "MON_VER",
	CLASS_MON<<8 | MSG_MON_HW:      "MON_HW",
	CLASS_AID<<8 | MSG_AID_EPH:     "AID_EPH",
}

var (
	ErrShortPayload   = errors.New("ubx: payload too short")
	ErrUnknownMessage = errors.New("ubx: no decoder for message")
)

type NavPosECEF struct {
	ITOW  uint32
	ECEFX int32 // cm
	ECEFY int32 // cm
	ECEFZ int32 // cm
	PAcc  uint32
}

type NavDGPSChannel struct {
	SVID  uint8
	Flags uint8
	AgeC  uint16
	PRC   float32
	PRRC  float32
}

type NavDGPS struct {
	ITOW       uint32
	Age        int32 // ms
	BaseID     int16
	BaseHealth int16
	NumCh      uint8
	Status     uint8
	Channels   []NavDGPSChannel
}

type RawRecord struct {
	CPMes float64
	PRMes float64
	DOMes float32
	SV    uint8
	MesQI int8
	CNO   int8
	LLI   uint8
}

type RxmRaw struct {
	ITOW  int32
	Week  int16
	NumSV uint8
	Recs  []RawRecord
}

type RxmSFRB struct {
	Chn   uint8
	SVID  uint8
	Words [10]uint32
}

// AidEph carries no subframes (HOW == 0) when the receiver has no
// ephemeris for the satellite.
type AidEph struct {
	SVID uint32
	HOW  uint32
	SF1  [8]uint32
	SF2  [8]uint32
	SF3  [8]uint32
}

func (e *AidEph) Valid() bool {
	return e.HOW != 0
}

type SVInfoChannel struct {
	Chn     uint8
	SVID    uint8
	Flags   uint8
	Quality uint8
	CNO     uint8
	Elev    int8
	Azim    int16
	PRRes   int32
}

type NavSVInfo struct {
	ITOW        uint32
	NumCh       uint8
	GlobalFlags uint8
	Channels    []SVInfoChannel
}

// Ack is both ACK-ACK and ACK-NAK; Acked tells them apart.
type Ack struct {
	Acked bool
	ClsID uint8
	MsgID uint8
}

func short(name string, want, got int) error {
	return fmt.Errorf("%w: %s needs %d bytes, got %d", ErrShortPayload, name, want, got)
}

// Unpack decodes the payload into its typed body. The returned value is one
// of *NavPosECEF, *NavDGPS, *RxmRaw, *RxmSFRB, *AidEph, *NavSVInfo or *Ack.
func (m Message) Unpack() (interface{}, error) {
	p := m.Payload
	le := binary.LittleEndian
	switch m.Key() {
	case CLASS_NAV<<8 | MSG_NAV_POSECEF:
		if len(p) < 20 {
			return nil, short(m.Name(), 20, len(p))
		}
		return &NavPosECEF{
			ITOW:  le.Uint32(p[0:]),
			ECEFX: int32(le.Uint32(p[4:])),
			ECEFY: int32(le.Uint32(p[8:])),
			ECEFZ: int32(le.Uint32(p[12:])),
			PAcc:  le.Uint32(p[16:]),
		}, nil

	case CLASS_NAV<<8 | MSG_NAV_DGPS:
		if len(p) < 16 {
			return nil, short(m.Name(), 16, len(p))
		}
		d := &NavDGPS{
			ITOW:       le.Uint32(p[0:]),
			Age:        int32(le.Uint32(p[4:])),
			BaseID:     int16(le.Uint16(p[8:])),
			BaseHealth: int16(le.Uint16(p[10:])),
			NumCh:      p[12],
			Status:     p[13],
		}
		if want := 16 + 12*int(d.NumCh); len(p) < want {
			return nil, short(m.Name(), want, len(p))
		}
		for i := 0; i < int(d.NumCh); i++ {
			c := p[16+12*i:]
			d.Channels = append(d.Channels, NavDGPSChannel{
				SVID:  c[0],
				Flags: c[1],
				AgeC:  le.Uint16(c[2:]),
				PRC:   math.Float32frombits(le.Uint32(c[4:])),
				PRRC:  math.Float32frombits(le.Uint32(c[8:])),
			})
		}
		return d, nil

	case CLASS_RXM<<8 | MSG_RXM_RAW:
		if len(p) < 8 {
			return nil, short(m.Name(), 8, len(p))
		}
		r := &RxmRaw{
			ITOW:  int32(le.Uint32(p[0:])),
			Week:  int16(le.Uint16(p[4:])),
			NumSV: p[6],
		}
		if want := 8 + 24*int(r.NumSV); len(p) < want {
			return nil, short(m.Name(), want, len(p))
		}
		for i := 0; i < int(r.NumSV); i++ {
			c := p[8+24*i:]
			r.Recs = append(r.Recs, RawRecord{
				CPMes: math.Float64frombits(le.Uint64(c[0:])),
				PRMes: math.Float64frombits(le.Uint64(c[8:])),
				DOMes: math.Float32frombits(le.Uint32(c[16:])),
				SV:    c[20],
				MesQI: int8(c[21]),
				CNO:   int8(c[22]),
				LLI:   c[23],
			})
		}
		return r, nil

	case CLASS_RXM<<8 | MSG_RXM_SFRB:
		if len(p) < 42 {
			return nil, short(m.Name(), 42, len(p))
		}
		s := &RxmSFRB{Chn: p[0], SVID: p[1]}
		for i := range s.Words {
			s.Words[i] = le.Uint32(p[2+4*i:])
		}
		return s, nil

	case CLASS_AID<<8 | MSG_AID_EPH:
		if len(p) < 8 {
			return nil, short(m.Name(), 8, len(p))
		}
		e := &AidEph{SVID: le.Uint32(p[0:]), HOW: le.Uint32(p[4:])}
		if !e.Valid() {
			return e, nil
		}
		if len(p) < 104 {
			return nil, short(m.Name(), 104, len(p))
		}
		for i := 0; i < 8; i++ {
			e.SF1[i] = le.Uint32(p[8+4*i:])
			e.SF2[i] = le.Uint32(p[40+4*i:])
			e.SF3[i] = le.Uint32(p[72+4*i:])
		}
		return e, nil

	case CLASS_NAV<<8 | MSG_NAV_SVINFO:
		if len(p) < 8 {
			return nil, short(m.Name(), 8, len(p))
		}
		s := &NavSVInfo{ITOW: le.Uint32(p[0:]), NumCh: p[4], GlobalFlags: p[5]}
		if want := 8 + 12*int(s.NumCh); len(p) < want {
			return nil, short(m.Name(), want, len(p))
		}
		for i := 0; i < int(s.NumCh); i++ {
			c := p[8+12*i:]
			s.Channels = append(s.Channels, SVInfoChannel{
				Chn:     c[0],
				SVID:    c[1],
				Flags:   c[2],
				Quality: c[3],
				CNO:     c[4],
				Elev:    int8(c[5]),
				Azim:    int16(le.Uint16(c[6:])),
				PRRes:   int32(le.Uint32(c[8:])),
			})
		}
		return s, nil

	case CLASS_ACK<<8 | MSG_ACK_ACK, CLASS_ACK<<8 | MSG_ACK_NAK:
		if len(p) < 2 {
			return nil, short(m.Name(), 2, len(p))
		}
		return &Ack{Acked: m.ID == MSG_ACK_ACK, ClsID: p[0], MsgID: p[1]}, nil
	}
	return nil, fmt.Errorf("%w %s", ErrUnknownMessage, m.Name())
}
