/*
	Copyright (c) 2022 R. van Twisk
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	status.go: per receiver status table served over HTTP
*/

package dgps

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
)

type ReceiverStatus struct {
	Role         string
	Endpoint     string
	Messages     uint64
	DecodeErrors uint64
	Reconnects   uint64
	LastMessage  time.Time
	LastName     string // Name of the last message
	Position     *LLH   `json:",omitempty"`
}

/*
	StatusBoard is written by the loop goroutine and read by the HTTP
	server, the concurrent map keeps the two apart.
*/
type StatusBoard struct {
	receivers cmap.ConcurrentMap[string, ReceiverStatus]
}

func NewStatusBoard() *StatusBoard {
	return &StatusBoard{receivers: cmap.New[ReceiverStatus]()}
}

func (b *StatusBoard) update(role Role, fn func(*ReceiverStatus)) {
	if b == nil {
		return
	}
	b.receivers.Upsert(role.String(), ReceiverStatus{}, func(exist bool, valueInMap ReceiverStatus, _ ReceiverStatus) ReceiverStatus {
		if !exist {
			valueInMap = ReceiverStatus{Role: role.String()}
		}
		fn(&valueInMap)
		return valueInMap
	})
}

func (b *StatusBoard) Opened(role Role, endpoint string) {
	b.update(role, func(s *ReceiverStatus) { s.Endpoint = endpoint })
}

func (b *StatusBoard) seen(role Role, name string, now time.Time) {
	b.update(role, func(s *ReceiverStatus) {
		s.Messages++
		s.LastMessage = now
		s.LastName = name
	})
}

func (b *StatusBoard) decodeError(role Role) {
	b.update(role, func(s *ReceiverStatus) { s.DecodeErrors++ })
}

func (b *StatusBoard) reconnected(role Role) {
	b.update(role, func(s *ReceiverStatus) { s.Reconnects++ })
}

func (b *StatusBoard) position(role Role, pos PosVector) {
	b.update(role, func(s *ReceiverStatus) {
		llh := pos.ToLLH()
		s.Position = &llh
	})
}

func (b *StatusBoard) Get(role Role) (ReceiverStatus, bool) {
	if b == nil {
		return ReceiverStatus{}, false
	}
	return b.receivers.Get(role.String())
}

// Snapshot returns all entries ordered by role name.
func (b *StatusBoard) Snapshot() []ReceiverStatus {
	if b == nil {
		return nil
	}
	list := make([]ReceiverStatus, 0, b.receivers.Count())
	for entry := range b.receivers.IterBuffered() {
		list = append(list, entry.Val)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Role < list[j].Role })
	return list
}

func (b *StatusBoard) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(b.Snapshot()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
