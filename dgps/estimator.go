/*
	Copyright (c) 2022 R. van Twisk
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	estimator.go: position estimate fed to the correction encoder
*/

package dgps

import "github.com/b3nn0/dgpstest/common"

// Estimator turns the aggregate into a position fix, nil when there is not
// enough data for one.
type Estimator interface {
	Estimate(state *SatelliteData) *PosVector
}

/*
	AverageEstimator reports the averaged own-receiver solution once enough
	satellites pass the quality and elevation masks. It stands in for a
	pseudorange solver and is what the correction encoder is fed by default.
*/
type AverageEstimator struct {
	MinSatellites int // 0 means MIN_SATELLITES
}

func (e AverageEstimator) Estimate(state *SatelliteData) *PosVector {
	min := e.MinSatellites
	if min <= 0 {
		min = common.MIN_SATELLITES
	}
	if state.AveragePosition == nil || len(state.Usable()) < min {
		return nil
	}
	pos := *state.AveragePosition
	return &pos
}
