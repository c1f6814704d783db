// Copyright (c) 2025 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"maunium.net/go/mautrix/id"

	"go.mau.fi/chatroom/pkg/timeline"
)

const (
	ownUser   id.UserID = "@me:example.com"
	otherUser id.UserID = "@alice:example.com"
)

func makeMessage(evtID id.EventID, sender id.UserID, body string) *timeline.Message {
	return &timeline.Message{
		ID:      evtID,
		RoomID:  "!room:example.com",
		Sender:  sender,
		Content: timeline.MakeTextContent(body),
	}
}

func ids(msgs []*timeline.Message) []id.EventID {
	out := make([]id.EventID, len(msgs))
	for i, msg := range msgs {
		out[i] = msg.ID
	}
	return out
}

func TestRoomStore_ApplyPage(t *testing.T) {
	rs := NewRoomStore("!room:example.com", ownUser)
	var emitted []*timeline.Message
	rs.TimelineCache.Listen(func(msgs []*timeline.Message) {
		emitted = msgs
	})

	rs.ApplyPage([]*timeline.Message{
		makeMessage("$3", otherUser, "three"),
		makeMessage("$2", ownUser, "two"),
	}, true)
	assert.Equal(t, []id.EventID{"$2", "$3"}, ids(emitted))
	assert.True(t, rs.HasMoreHistory())

	rs.ApplyPage([]*timeline.Message{
		makeMessage("$2", ownUser, "two"),
		makeMessage("$1", otherUser, "one"),
	}, false)
	assert.Equal(t, []id.EventID{"$1", "$2", "$3"}, ids(emitted))
	assert.False(t, rs.HasMoreHistory())
}

func TestRoomStore_LocalEcho(t *testing.T) {
	rs := NewRoomStore("!room:example.com", ownUser)
	rs.ApplyPage([]*timeline.Message{makeMessage("$1", otherUser, "hi")}, false)

	echo := makeMessage("", ownUser, "hello")
	echo.TxnID = "txn-1"
	rs.ApplyPending(echo)
	rs.ApplyPending(echo)
	current := rs.TimelineCache.Current()
	require.Len(t, current, 2)
	assert.True(t, current[1].Pending)

	confirmed := makeMessage("$2", ownUser, "hello")
	confirmed.TxnID = "txn-1"
	rs.ApplySendComplete(confirmed, "")
	current = rs.TimelineCache.Current()
	assert.Equal(t, []id.EventID{"$1", "$2"}, ids(current))
	assert.False(t, current[1].Pending)

	failed := makeMessage("", ownUser, "nope")
	failed.TxnID = "txn-2"
	rs.ApplyPending(failed)
	rs.ApplySendComplete(failed, "rate limited")
	current = rs.TimelineCache.Current()
	require.Len(t, current, 3)
	assert.Equal(t, "rate limited", current[2].SendError)
}

func TestRoomStore_ApplyNewMessageReplacesEcho(t *testing.T) {
	rs := NewRoomStore("!room:example.com", ownUser)
	echo := makeMessage("", ownUser, "hello")
	echo.TxnID = "txn-1"
	rs.ApplyPending(echo)

	remote := makeMessage("$9", ownUser, "hello")
	remote.TxnID = "txn-1"
	rs.ApplyNewMessage(remote)
	assert.Equal(t, []id.EventID{"$9"}, ids(rs.TimelineCache.Current()))
}

func TestRoomStore_ApplyEdit(t *testing.T) {
	rs := NewRoomStore("!room:example.com", ownUser)
	rs.ApplyPage([]*timeline.Message{makeMessage("$1", ownUser, "old text")}, false)

	rs.ApplyEdit("$1", "new text")
	assert.Equal(t, "new text", rs.GetMessage("$1").Body())
	assert.Equal(t, "new text", rs.TimelineCache.Current()[0].Body())

	rs.ApplyEdit("$unknown", "ignored")
	assert.Nil(t, rs.GetMessage("$unknown"))
}

func TestRoomStore_LastOwnMessage(t *testing.T) {
	rs := NewRoomStore("!room:example.com", ownUser)
	assert.Nil(t, rs.LastOwnMessage(""))
	rs.ApplyPage([]*timeline.Message{
		makeMessage("$4", otherUser, "four"),
		makeMessage("$3", ownUser, "three"),
		makeMessage("$2", otherUser, "two"),
		makeMessage("$1", ownUser, "one"),
	}, false)
	assert.Equal(t, id.EventID("$3"), rs.LastOwnMessage("").GetID())
	assert.Equal(t, id.EventID("$1"), rs.LastOwnMessage("$3").GetID())
	assert.Nil(t, rs.LastOwnMessage("$1"))
}

func TestRoomStore_Senders(t *testing.T) {
	rs := NewRoomStore("!room:example.com", ownUser)
	rs.ApplyPage([]*timeline.Message{
		makeMessage("$3", otherUser, "three"),
		makeMessage("$2", ownUser, "two"),
		makeMessage("$1", otherUser, "one"),
	}, false)
	assert.Equal(t, []id.UserID{otherUser, ownUser}, rs.Senders())
}

func TestChatStore_GetOrCreateRoom(t *testing.T) {
	cs := NewStore()
	cs.UserID = ownUser
	assert.Nil(t, cs.GetRoom("!room:example.com"))
	room := cs.GetOrCreateRoom("!room:example.com")
	assert.Same(t, room, cs.GetOrCreateRoom("!room:example.com"))
	assert.Equal(t, ownUser, room.OwnUserID)
}

func TestRoomStore_EchoAfterSendComplete(t *testing.T) {
	rs := NewRoomStore("!room:example.com", ownUser)
	confirmed := makeMessage("$2", ownUser, "hello")
	confirmed.TxnID = "txn-1"
	rs.ApplySendComplete(confirmed, "")

	echo := makeMessage("", ownUser, "hello")
	echo.TxnID = "txn-1"
	rs.ApplyPending(echo)
	assert.Equal(t, []id.EventID{"$2"}, ids(rs.TimelineCache.Current()))
}
