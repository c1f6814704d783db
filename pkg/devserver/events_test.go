// Copyright (c) 2025 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package devserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"maunium.net/go/mautrix/id"

	"go.mau.fi/chatroom/pkg/rpc/jsoncmd"
)

const (
	alice id.UserID = "@alice:localhost"
	bob   id.UserID = "@bob:localhost"
)

func eventIDs(evts []*bufferedEvent) []int64 {
	ids := make([]int64, len(evts))
	for i, evt := range evts {
		ids[i] = evt.ID
	}
	return ids
}

func TestEventBuffer_Since(t *testing.T) {
	eb := NewEventBuffer(10)
	eb.Push(&bufferedEvent{Command: jsoncmd.EventNewMessage})
	eb.Push(&bufferedEvent{Command: jsoncmd.EventSendComplete, OnlyUser: alice})
	eb.Push(&bufferedEvent{Command: jsoncmd.EventNewMessage, ExceptUser: alice})
	eb.Push(&bufferedEvent{Command: jsoncmd.EventMessageEdited})
	assert.EqualValues(t, 4, eb.LastID())

	evts, complete := eb.Since(1, alice)
	assert.True(t, complete)
	assert.Equal(t, []int64{2, 4}, eventIDs(evts))

	evts, complete = eb.Since(1, bob)
	assert.True(t, complete)
	assert.Equal(t, []int64{3, 4}, eventIDs(evts))

	evts, complete = eb.Since(4, alice)
	assert.True(t, complete)
	assert.Empty(t, evts)

	_, complete = eb.Since(10, alice)
	assert.False(t, complete)
}

func TestEventBuffer_Overflow(t *testing.T) {
	eb := NewEventBuffer(3)
	for range 5 {
		eb.Push(&bufferedEvent{Command: jsoncmd.EventNewMessage})
	}
	evts, complete := eb.Since(2, alice)
	assert.True(t, complete)
	assert.Equal(t, []int64{3, 4, 5}, eventIDs(evts))

	_, complete = eb.Since(1, alice)
	assert.False(t, complete)
}
