/*
	Copyright (c) 2022 R. van Twisk
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	receiver.go: u-blox receiver setup profiles
*/

package gps

import (
	"github.com/b3nn0/dgpstest/common"
	"github.com/b3nn0/dgpstest/ubx"
)

type MessageRate struct {
	Class byte
	ID    byte
	Rate  byte // solutions per message, 0 disables
}

// ReceiverOptions is everything written to a receiver when its session opens.
type ReceiverOptions struct {
	Baud           uint32 // rate programmed into the UART ports, normally the link rate
	Rates          []MessageRate
	SolutionRateMs uint16
	DynamicModel   byte
	DGPSTimeout    byte // seconds, 0 leaves the receiver default
	UsePPP         bool
	SetupPolls     bool // port/version/hardware polls, only useful for the capture log
}

/*
	ReferenceReceiver is the stationary ground receiver: raw measurements,
	subframes and ephemeris at every solution, 5Hz.
*/
func ReferenceReceiver(baud uint32, dynModel byte, usePPP bool) ReceiverOptions {
	return ReceiverOptions{
		Baud: baud,
		Rates: []MessageRate{
			{ubx.CLASS_NAV, ubx.MSG_NAV_POSLLH, 1},
			{ubx.CLASS_NAV, ubx.MSG_NAV_POSECEF, 1},
			{ubx.CLASS_RXM, ubx.MSG_RXM_RAW, 1},
			{ubx.CLASS_RXM, ubx.MSG_RXM_SFRB, 1},
			{ubx.CLASS_AID, ubx.MSG_AID_EPH, 1},
			{ubx.CLASS_NAV, ubx.MSG_NAV_SVINFO, 1},
		},
		SolutionRateMs: 200,
		DynamicModel:   dynModel,
		UsePPP:         usePPP,
		SetupPolls:     true,
	}
}

/*
	RoverReceiver is a moving receiver reporting position at 1Hz. A corrected
	rover also reports DGPS status and drops corrections older than a minute.
*/
func RoverReceiver(baud uint32, dynModel byte, corrected bool) ReceiverOptions {
	rates := []MessageRate{
		{ubx.CLASS_NAV, ubx.MSG_NAV_POSLLH, 1},
		{ubx.CLASS_NAV, ubx.MSG_NAV_POSECEF, 1},
	}
	if corrected {
		rates = append(rates, MessageRate{ubx.CLASS_NAV, ubx.MSG_NAV_DGPS, 1})
	}
	rates = append(rates,
		MessageRate{ubx.CLASS_NAV, ubx.MSG_NAV_SVINFO, 0},
		MessageRate{ubx.CLASS_NAV, ubx.MSG_NAV_VELECEF, 0},
		MessageRate{ubx.CLASS_NAV, ubx.MSG_NAV_VELNED, 0},
		MessageRate{ubx.CLASS_NAV, ubx.MSG_NAV_SOL, 1},
		MessageRate{ubx.CLASS_RXM, ubx.MSG_RXM_SVSI, 0},
	)
	opts := ReceiverOptions{
		Baud:           baud,
		Rates:          rates,
		SolutionRateMs: 1000,
		DynamicModel:   dynModel,
		SetupPolls:     true,
	}
	if corrected {
		opts.DGPSTimeout = common.DGPS_TIMEOUT_SECONDS
	}
	return opts
}

// Commands lists the configuration frames in the order they are written.
func (o ReceiverOptions) Commands() []ubx.Command {
	cmds := make([]ubx.Command, 0, 32)
	if o.SetupPolls {
		cmds = append(cmds,
			ubx.Poll("poll port", ubx.CLASS_CFG, ubx.MSG_CFG_PRT),
			ubx.Poll("poll usb", ubx.CLASS_CFG, ubx.MSG_CFG_USB),
			ubx.Poll("poll navx5", ubx.CLASS_CFG, ubx.MSG_CFG_NAVX5),
			ubx.Poll("poll hardware", ubx.CLASS_MON, ubx.MSG_MON_HW),
			ubx.Poll("poll dgps", ubx.CLASS_NAV, ubx.MSG_NAV_DGPS),
			ubx.Poll("poll version", ubx.CLASS_MON, ubx.MSG_MON_VER),
		)
	}

	// binary protocol out on every port, anything accepted in
	for _, port := range []byte{ubx.PORT_SERIAL1, ubx.PORT_USB, ubx.PORT_SERIAL2} {
		cmds = append(cmds, ubx.CfgPort(port, ubx.PROTO_ALL, ubx.PROTO_UBX, o.Baud))
	}
	if o.SetupPolls {
		cmds = append(cmds,
			ubx.Poll("poll port", ubx.CLASS_CFG, ubx.MSG_CFG_PRT),
			ubx.Poll("poll port serial1", ubx.CLASS_CFG, ubx.MSG_CFG_PRT, ubx.PORT_SERIAL1),
			ubx.Poll("poll port serial2", ubx.CLASS_CFG, ubx.MSG_CFG_PRT, ubx.PORT_SERIAL2),
			ubx.Poll("poll port usb", ubx.CLASS_CFG, ubx.MSG_CFG_PRT, ubx.PORT_USB),
		)
	}

	for _, r := range o.Rates {
		cmds = append(cmds, ubx.CfgMsgRate(r.Class, r.ID, r.Rate))
	}
	if o.SolutionRateMs > 0 {
		cmds = append(cmds, ubx.CfgRate(o.SolutionRateMs))
	}
	cmds = append(cmds, ubx.CfgNav5(o.DynamicModel, o.DGPSTimeout))
	cmds = append(cmds, ubx.CfgNavX5PPP(o.UsePPP))
	return cmds
}
