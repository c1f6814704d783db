// Copyright (c) 2025 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package devserver

import (
	"slices"
	"sync"

	"maunium.net/go/mautrix/id"

	"go.mau.fi/chatroom/pkg/rpc/jsoncmd"
)

const MaxBufferedEvents = 512

type bufferedEvent struct {
	ID      int64
	Command jsoncmd.Name
	Data    any

	// Only the given user receives the event. Empty means everyone.
	OnlyUser id.UserID
	// The given user doesn't receive the event.
	ExceptUser id.UserID
}

func (evt *bufferedEvent) visibleTo(userID id.UserID) bool {
	if evt.OnlyUser != "" && evt.OnlyUser != userID {
		return false
	}
	return evt.ExceptUser != userID
}

func (evt *bufferedEvent) container() *jsoncmd.Container[any] {
	return &jsoncmd.Container[any]{
		Command:   evt.Command,
		RequestID: evt.ID,
		Data:      evt.Data,
	}
}

// EventBuffer keeps the most recent events so that clients reconnecting to
// the same run can receive what they missed.
type EventBuffer struct {
	lock    sync.RWMutex
	events  []*bufferedEvent
	counter int64
	maxSize int
}

func NewEventBuffer(maxSize int) *EventBuffer {
	return &EventBuffer{maxSize: maxSize}
}

// Push assigns an ID to the event and stores it.
func (eb *EventBuffer) Push(evt *bufferedEvent) {
	eb.lock.Lock()
	defer eb.lock.Unlock()
	eb.counter++
	evt.ID = eb.counter
	eb.events = append(eb.events, evt)
	if len(eb.events) > eb.maxSize {
		eb.events = slices.Delete(eb.events, 0, len(eb.events)-eb.maxSize)
	}
}

func (eb *EventBuffer) LastID() int64 {
	eb.lock.RLock()
	defer eb.lock.RUnlock()
	return eb.counter
}

// Since returns the events after the given ID visible to the user. The second
// return value is false if the buffer no longer has all of them.
func (eb *EventBuffer) Since(lastID int64, userID id.UserID) ([]*bufferedEvent, bool) {
	eb.lock.RLock()
	defer eb.lock.RUnlock()
	if lastID > eb.counter {
		return nil, false
	}
	idx, _ := slices.BinarySearchFunc(eb.events, lastID+1, func(evt *bufferedEvent, target int64) int {
		return int(evt.ID - target)
	})
	complete := lastID == eb.counter || (len(eb.events) > 0 && eb.events[0].ID <= lastID+1)
	var visible []*bufferedEvent
	for _, evt := range eb.events[idx:] {
		if evt.visibleTo(userID) {
			visible = append(visible, evt)
		}
	}
	return visible, complete
}
