/*
	Copyright (c) 2022 R. van Twisk
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	state.go: satellite and receiver position aggregate
*/

package dgps

import (
	"sort"
	"time"

	"github.com/b3nn0/dgpstest/common"
	"github.com/b3nn0/dgpstest/ubx"
)

type SatelliteInfo struct {
	SVID             uint8
	TimeLastSeen     time.Time    // Last RXM-RAW carrying this satellite
	Raw              ubx.RawRecord // Measurement from that RXM-RAW
	Elevation        int8         // Degrees, from NAV-SVINFO
	ElevationKnown   bool
	Ephemeris        *ubx.AidEph
	TimeEphemeris    time.Time // When Ephemeris was received
	Subframes        map[uint8][10]uint32
	TimeLastSubframe time.Time
}

/*
	SatelliteData is the aggregate every handler writes to. It is owned by
	the loop goroutine; nothing else may touch it.
*/
type SatelliteData struct {
	Satellites map[uint8]*SatelliteInfo
	LastRaw    *ubx.RxmRaw

	ReceiverPosition  *PosVector // Reference receiver's own solution
	AveragePosition   *PosVector // Running mean of ReceiverPosition
	Recv2Position     *PosVector // Corrected rover
	Recv3Position     *PosVector // Uncorrected rover
	EstimatedPosition *PosVector // Last estimate used for corrections
	ReferencePosition *PosVector // Surveyed ground truth, optional

	MinElevation float64
	MinQuality   int

	samples uint64
}

func NewSatelliteData() *SatelliteData {
	return &SatelliteData{
		Satellites:   make(map[uint8]*SatelliteInfo),
		MinElevation: common.MIN_ELEVATION_DEG,
		MinQuality:   common.MIN_QUALITY,
	}
}

func (s *SatelliteData) satellite(sv uint8) *SatelliteInfo {
	info, ok := s.Satellites[sv]
	if !ok {
		info = &SatelliteInfo{SVID: sv}
		s.Satellites[sv] = info
	}
	return info
}

// AddMessage folds one unpacked reference receiver message into the state.
// Types it does not know are ignored.
func (s *SatelliteData) AddMessage(v interface{}, now time.Time) {
	switch m := v.(type) {
	case *ubx.RxmRaw:
		s.LastRaw = m
		for _, rec := range m.Recs {
			info := s.satellite(rec.SV)
			info.TimeLastSeen = now
			info.Raw = rec
		}
	case *ubx.NavPosECEF:
		pos := FromECEFcm(m.ECEFX, m.ECEFY, m.ECEFZ)
		s.ReceiverPosition = &pos
		s.addSample(pos)
	case *ubx.AidEph:
		if !m.Valid() || m.SVID > 255 {
			return
		}
		info := s.satellite(uint8(m.SVID))
		info.Ephemeris = m
		info.TimeEphemeris = now
	case *ubx.RxmSFRB:
		info := s.satellite(m.SVID)
		if info.Subframes == nil {
			info.Subframes = make(map[uint8][10]uint32)
		}
		// subframe id sits in bits 2..4 of the HOW word (word 1, 24 bit layout)
		id := uint8((m.Words[1] >> 2) & 0x7)
		info.Subframes[id] = m.Words
		info.TimeLastSubframe = now
	case *ubx.NavSVInfo:
		for _, c := range m.Channels {
			info := s.satellite(c.SVID)
			info.Elevation = c.Elev
			info.ElevationKnown = true
		}
	}
}

func (s *SatelliteData) addSample(pos PosVector) {
	s.samples++
	if s.AveragePosition == nil {
		avg := pos
		s.AveragePosition = &avg
		return
	}
	n := float64(s.samples)
	avg := PosVector{
		X: s.AveragePosition.X + (pos.X-s.AveragePosition.X)/n,
		Y: s.AveragePosition.Y + (pos.Y-s.AveragePosition.Y)/n,
		Z: s.AveragePosition.Z + (pos.Z-s.AveragePosition.Z)/n,
	}
	s.AveragePosition = &avg
}

// Samples is the number of own-receiver positions in AveragePosition.
func (s *SatelliteData) Samples() uint64 {
	return s.samples
}

/*
	Usable lists, in ascending order, the satellites of the last RXM-RAW that
	pass the quality and elevation masks. A satellite whose elevation has not
	been reported yet is not held back by the elevation mask.
*/
func (s *SatelliteData) Usable() []uint8 {
	if s.LastRaw == nil {
		return nil
	}
	usable := make([]uint8, 0, len(s.LastRaw.Recs))
	for _, rec := range s.LastRaw.Recs {
		if int(rec.MesQI) < s.MinQuality {
			continue
		}
		if info, ok := s.Satellites[rec.SV]; ok && info.ElevationKnown && float64(info.Elevation) < s.MinElevation {
			continue
		}
		usable = append(usable, rec.SV)
	}
	sort.Slice(usable, func(i, j int) bool { return usable[i] < usable[j] })
	return usable
}
