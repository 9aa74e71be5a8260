/*
	Copyright (c) 2022 R. van Twisk
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	plot.go: error log rendering
*/

package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/b3nn0/dgpstest/common"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// readErrorLog returns the four error columns, one point per row.
func readErrorLog(path string) ([4]plotter.XYs, error) {
	var cols [4]plotter.XYs
	f, err := os.Open(path)
	if err != nil {
		return cols, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	row := 0
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" || text == common.ERR_LOG_HEADER {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) != 4 {
			return cols, fmt.Errorf("%s:%d: want 4 columns, got %d", path, line, len(fields))
		}
		for i, field := range fields {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return cols, fmt.Errorf("%s:%d: %w", path, line, err)
			}
			cols[i] = append(cols[i], plotter.XY{X: float64(row), Y: v})
		}
		row++
	}
	return cols, scanner.Err()
}

// plotErrorLog renders the error log as one line per column.
func plotErrorLog(path, out string) error {
	cols, err := readErrorLog(path)
	if err != nil {
		return err
	}
	if len(cols[0]) == 0 {
		return fmt.Errorf("%s: no data rows", path)
	}

	p := plot.New()
	p.Title.Text = "DGPS error"
	p.X.Label.Text = "sample"
	p.Y.Label.Text = "error (m)"

	names := strings.Fields(common.ERR_LOG_HEADER)
	if err := plotutil.AddLines(p,
		names[0], cols[0],
		names[1], cols[1],
		names[2], cols[2],
		names[3], cols[3],
	); err != nil {
		return err
	}
	return p.Save(10*vg.Inch, 5*vg.Inch, out)
}
