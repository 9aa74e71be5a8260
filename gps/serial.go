/*
	Copyright (c) 2022 R. van Twisk
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	serial.go: serial links to the receivers
*/

package gps

import (
	"time"

	"github.com/tarm/serial"
)

// Link is the byte stream to one receiver.
type Link interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

type Opener func(endpoint string, baud int) (Link, error)

// The read timeout only bounds how long the reader goroutine sits in Read;
// Poll never waits on it.
const serialReadTimeout = 500 * time.Millisecond

// SerialOpener opens a real serial port, 8N1.
func SerialOpener(endpoint string, baud int) (Link, error) {
	serialConfig := serial.Config{Name: endpoint, Baud: baud, ReadTimeout: serialReadTimeout}
	p, err := serial.OpenPort(&serialConfig)
	if err != nil {
		return nil, err
	}
	return p, nil
}
