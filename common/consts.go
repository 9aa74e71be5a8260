/*
	Copyright (c) 2022 R. van Twisk
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	consts.go: timeouts, thresholds and file names
*/

package common

import "time"

const (
	DEFAULT_BAUD          = 115200
	POLL_TIMEOUT          = 10 * time.Millisecond // Longest a single session poll may hold up the loop
	ACK_TIMEOUT           = 1000 * time.Millisecond
	STALL_DEADLINE        = 5 * time.Second        // Silence after which a session gets re-opened
	EPHEMERIS_POLL_PERIOD = 30 * time.Second       // Never ask for the same satellite more often than this
	EPHEMERIS_MAX_AGE     = 1800 * time.Second     // Ephemeris younger than this is considered fresh
	DGPS_TIMEOUT_SECONDS  = 60                     // Rover drops corrections older than this
	CFG_COMMANDS_PER_SEC  = 50                     // Pace of configuration frames written at open
	ENCODER_TIMEOUT       = 100 * time.Millisecond // Per correction message, the solution rate is 5 Hz
	ENCODER_REAP_DELAY    = 500 * time.Millisecond
)

const (
	DEFAULT_RTCM_LOG = "rtcm2.dat"
	DEFAULT_ERR_LOG  = "errlog.txt"
	ERR_LOG_HEADER   = "normal DGPS normal-XY DGPS-XY"
)

const (
	MIN_ELEVATION_DEG = 10.0 // Default satellite elevation mask
	MIN_QUALITY       = 6    // Default RXM-RAW mesQI a satellite needs to count
	MIN_SATELLITES    = 4    // Usable satellites needed before any estimate is attempted
)
