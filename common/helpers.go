/*
	Copyright (c) 2022 R. van Twisk
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	helpers.go: small shared helpers
*/

package common

import (
	"fmt"
	"os"
	"path/filepath"

	humanize "github.com/dustin/go-humanize"
	"github.com/ricochet2200/go-disk-usage/du"
)

func StringInSlice(a string, list []string) bool {
	// TODO: When we are going to use go 1.21 we can use slices.Contains
	for _, b := range list {
		if b == a {
			return true
		}
	}
	return false
}

// CheckFreeSpace returns an error when the filesystem holding path has less
// than min bytes available. A long capture fills a small SD card quickly.
func CheckFreeSpace(path string, min uint64) error {
	dir := filepath.Dir(path)
	if _, err := os.Stat(dir); err != nil {
		return err
	}
	avail := du.NewDiskUsage(dir).Available()
	if avail < min {
		return fmt.Errorf("only %s available in %s, want at least %s", humanize.Bytes(avail), dir, humanize.Bytes(min))
	}
	return nil
}
