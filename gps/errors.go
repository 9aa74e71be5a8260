/*
	Copyright (c) 2022 R. van Twisk
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	errors.go: receiver configuration errors
*/

package gps

import (
	"errors"
	"fmt"
)

var (
	ErrRejected = errors.New("rejected by receiver (ACK-NAK)")
	ErrNoAck    = errors.New("no acknowledge from receiver")
)

// ConfigurationError is returned by Open when the receiver refuses, or the
// link fails to carry, one of the setup commands.
type ConfigurationError struct {
	Session string
	Step    string
	Class   byte
	ID      byte
	Err     error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: configuration step %q (0x%02X 0x%02X): %v", e.Session, e.Step, e.Class, e.ID, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}
