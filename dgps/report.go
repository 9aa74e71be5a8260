/*
	Copyright (c) 2022 R. van Twisk
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	report.go: divergence between receiver solutions and the reference
*/

package dgps

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/b3nn0/dgpstest/common"
)

const geohashPrecision = 9

func fprintf(w io.Writer, format string, a ...interface{}) {
	if _, err := fmt.Fprintf(w, format, a...); err != nil {
		log.Printf("dgps: output: %s\n", err.Error())
	}
}

// Divergence is one reported pair.
type Divergence struct {
	Name string
	From PosVector
	To   PosVector
}

func (d Divergence) Err() float64 {
	return d.From.Distance(d.To)
}

func (d Divergence) ErrXY() float64 {
	return d.From.DistanceXY(d.To)
}

type Reporter struct {
	Out     io.Writer
	Metrics *Metrics
	DEBUG   bool // adds the ground distance to every line

	errlog *os.File
}

/*
	NewReporter creates the error log at path and writes its header. An empty
	path disables the error log.
*/
func NewReporter(out io.Writer, path string) (*Reporter, error) {
	r := &Reporter{Out: out}
	if path == "" {
		return r, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("error log: %w", err)
	}
	if _, err := fmt.Fprintln(f, common.ERR_LOG_HEADER); err != nil {
		f.Close()
		return nil, fmt.Errorf("error log: %w", err)
	}
	r.errlog = f
	return r, nil
}

/*
	Divergences lists the pairs in reporting order. It is empty unless both
	the own receiver and the averaged solution are known.
*/
func Divergences(s *SatelliteData) []Divergence {
	if s.ReceiverPosition == nil || s.AveragePosition == nil {
		return nil
	}
	recv1, avg := *s.ReceiverPosition, *s.AveragePosition
	list := make([]Divergence, 0, 9)
	if s.Recv2Position != nil {
		list = append(list, Divergence{"RECV1<->RECV2", recv1, *s.Recv2Position})
	}
	list = append(list,
		Divergence{"RECV1<->AVG", recv1, avg},
		Divergence{"AVG<->RECV1", avg, recv1},
	)
	if s.Recv2Position != nil {
		list = append(list, Divergence{"AVG<->RECV2", avg, *s.Recv2Position})
	}
	if s.ReferencePosition == nil {
		return list
	}
	ref := *s.ReferencePosition
	list = append(list,
		Divergence{"REF<->AVG", ref, avg},
		Divergence{"RECV1<->REF", recv1, ref},
	)
	if s.Recv2Position != nil {
		list = append(list, Divergence{"RECV2<->REF", *s.Recv2Position, ref})
	}
	if s.EstimatedPosition != nil {
		list = append(list, Divergence{"EST<->REF", *s.EstimatedPosition, ref})
	}
	if s.Recv3Position != nil {
		list = append(list, Divergence{"RECV3<->REF", *s.Recv3Position, ref})
	}
	return list
}

// Report prints the divergence block and, with a reference position and a
// corrected rover, appends one error log row.
func (r *Reporter) Report(s *SatelliteData) {
	list := Divergences(s)
	if len(list) == 0 {
		return
	}
	if r.Out != nil {
		fprintf(r.Out, "-----------------\n")
	}
	for _, d := range list {
		r.Metrics.divergence(d.Name, d.Err())
		if r.Out == nil {
			continue
		}
		llh := d.From.ToLLH()
		line := fmt.Sprintf("%13s err: %6.2f errXY: %6.2f pos=%s gh=%s", d.Name, d.Err(), d.ErrXY(), llh, llh.Geohash(geohashPrecision))
		if r.DEBUG {
			line += fmt.Sprintf(" ground: %.2f", d.From.GroundDistance(d.To))
		}
		fprintf(r.Out, "%s\n", line)
	}

	if s.ReferencePosition != nil && s.Recv2Position != nil {
		r.writeErrorRow(s)
	}
}

// The "normal" columns are the uncorrected rover when there is one, else the
// reference receiver's own solution.
func (r *Reporter) writeErrorRow(s *SatelliteData) {
	if r.errlog == nil {
		return
	}
	ref := *s.ReferencePosition
	normal := *s.ReceiverPosition
	if s.Recv3Position != nil {
		normal = *s.Recv3Position
	}
	dgps := *s.Recv2Position
	if _, err := fmt.Fprintf(r.errlog, "%f %f %f %f\n",
		ref.Distance(normal), ref.Distance(dgps), ref.DistanceXY(normal), ref.DistanceXY(dgps)); err != nil {
		log.Printf("dgps: error log write failed: %s\n", err.Error())
		return
	}
	if err := r.errlog.Sync(); err != nil {
		log.Printf("dgps: error log sync failed: %s\n", err.Error())
	}
}

func (r *Reporter) Close() error {
	if r.errlog == nil {
		return nil
	}
	err := r.errlog.Close()
	r.errlog = nil
	return err
}
