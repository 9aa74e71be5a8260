/*
	Copyright (c) 2022 R. van Twisk
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	pipeline.go: correction generation, logging and forwarding
*/

package dgps

import (
	"io"
	"log"

	"github.com/b3nn0/dgpstest/common"
	humanize "github.com/dustin/go-humanize"
)

type Pipeline struct {
	Estimator  Estimator
	Generators []Generator
	Log        io.Writer // Correction log, every payload is appended
	Forward    bool      // Write payloads to the corrected rover
	// Rover resolves the corrected rover at dispatch time, nil result skips
	// forwarding for that payload.
	Rover   func() io.Writer
	Out     io.Writer // "generated type N" lines, nil for none
	Metrics *Metrics
	DEBUG   bool

	jobs    chan []correctionJob
	results chan correctionResult
	eh      *common.ExitHelper
}

type correctionJob struct {
	gen  Generator
	snap Snapshot
}

type correctionResult struct {
	kind    int
	payload []byte
	err     error
}

/*
	Start moves the generators onto a worker goroutine. From then on
	GenerateAndDispatch only hands over snapshots and Drain writes out what
	the worker finished. Without Start everything runs inline.
*/
func (p *Pipeline) Start() {
	if p.eh != nil {
		return
	}
	p.jobs = make(chan []correctionJob, 1)
	p.results = make(chan correctionResult, 16)
	p.eh = common.NewExitHelper()
	p.eh.Add()
	go p.worker()
}

// Stop waits for the worker, results not drained yet are dropped.
func (p *Pipeline) Stop() {
	if p.eh == nil {
		return
	}
	p.eh.Exit()
}

func (p *Pipeline) worker() {
	defer p.eh.Done()
	for {
		select {
		case <-p.eh.C:
			return
		case batch := <-p.jobs:
			for _, j := range batch {
				payload, err := j.gen.Generate(j.snap)
				select {
				case p.results <- correctionResult{kind: j.gen.Kind(), payload: payload, err: err}:
				case <-p.eh.C:
					return
				}
			}
		}
	}
}

/*
	GenerateAndDispatch runs after every reference RXM-RAW. Without a
	position estimate nothing is generated. When the worker is still busy
	with the previous epoch this one is dropped.
*/
func (p *Pipeline) GenerateAndDispatch(state *SatelliteData) {
	if p.Estimator == nil {
		return
	}
	pos := p.Estimator.Estimate(state)
	if pos == nil {
		return
	}
	state.EstimatedPosition = pos
	if len(p.Generators) == 0 {
		return
	}

	batch := make([]correctionJob, 0, len(p.Generators))
	for _, g := range p.Generators {
		batch = append(batch, correctionJob{gen: g, snap: NewSnapshot(g.Kind(), state)})
	}
	if p.jobs == nil {
		for _, j := range batch {
			payload, err := j.gen.Generate(j.snap)
			p.dispatch(correctionResult{kind: j.gen.Kind(), payload: payload, err: err})
		}
		return
	}
	select {
	case p.jobs <- batch:
	default:
		log.Printf("dgps: encoder busy, dropping corrections for this epoch\n")
		p.Metrics.correctionDropped()
	}
}

// Drain dispatches every finished payload without waiting for more.
func (p *Pipeline) Drain() {
	if p.results == nil {
		return
	}
	for {
		select {
		case res := <-p.results:
			p.dispatch(res)
		default:
			return
		}
	}
}

func (p *Pipeline) dispatch(res correctionResult) {
	if res.err != nil {
		log.Printf("dgps: correction type %d: %s\n", res.kind, res.err.Error())
		return
	}
	if len(res.payload) == 0 {
		return
	}
	p.Metrics.correction(res.kind, len(res.payload))
	if p.Out != nil {
		fprintf(p.Out, "generated type %d\n", res.kind)
	}
	if p.DEBUG {
		log.Printf("dgps: correction type %d, %s\n", res.kind, humanize.Bytes(uint64(len(res.payload))))
	}
	if p.Log != nil {
		if _, err := p.Log.Write(res.payload); err != nil {
			log.Printf("dgps: correction log write failed: %s\n", err.Error())
		}
	}
	if !p.Forward || p.Rover == nil {
		return
	}
	rover := p.Rover()
	if rover == nil {
		return
	}
	if _, err := rover.Write(res.payload); err != nil {
		log.Printf("dgps: forwarding correction type %d failed: %s\n", res.kind, err.Error())
	}
}
