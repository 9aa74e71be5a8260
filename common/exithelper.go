/*
	Copyright (c) 2022 R. van Twisk
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.
	exithelper.go: stop background goroutines and wait for them
*/
package common

import (
	"sync"

	"github.com/tevino/abool/v2"
)

// ExitHelper is a one-shot stop signal for a group of goroutines. Each
// goroutine calls Add before starting and Done when it returns, Exit closes
// C and waits until all of them are gone. Exit may be called more than once.
type ExitHelper struct {
	C chan struct{}
	w *sync.WaitGroup
	m sync.Mutex
	b *abool.AtomicBool
}

func NewExitHelper() *ExitHelper {
	return &ExitHelper{
		C: make(chan struct{}),
		w: new(sync.WaitGroup),
		m: sync.Mutex{},
		b: abool.New(),
	}
}

func (a *ExitHelper) Add() {
	a.m.Lock()
	a.w.Add(1)
	a.m.Unlock()
}

func (a *ExitHelper) Done() {
	a.w.Done()
}

func (a *ExitHelper) IsExit() bool {
	return a.b.IsSet()
}

func (a *ExitHelper) Exit() {
	a.m.Lock()
	defer a.m.Unlock()
	if a.b.SetToIf(false, true) {
		close(a.C)
	}
	a.w.Wait()
}
