// Copyright (c) 2025 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package store

import (
	"slices"
	"sync"
	"sync/atomic"

	badGlobalLog "github.com/rs/zerolog/log"
	"maunium.net/go/mautrix/id"

	"go.mau.fi/chatroom/pkg/timeline"
)

// RoomStore caches the timeline of a single room. Messages are kept oldest first,
// with unconfirmed local echoes after the confirmed ones.
type RoomStore struct {
	ID        id.RoomID
	OwnUserID id.UserID

	lock       sync.RWMutex
	Paginating atomic.Bool

	TimelineCache EventDispatcher[[]*timeline.Message]

	messages       []*timeline.Message
	pending        []*timeline.Message
	byID           map[id.EventID]*timeline.Message
	hasMoreHistory bool
}

func NewRoomStore(roomID id.RoomID, ownUserID id.UserID) *RoomStore {
	return &RoomStore{
		ID:             roomID,
		OwnUserID:      ownUserID,
		byID:           make(map[id.EventID]*timeline.Message),
		hasMoreHistory: true,
	}
}

func (rs *RoomStore) notifyTimelineWatchers() {
	timelineCache := make([]*timeline.Message, 0, len(rs.messages)+len(rs.pending))
	timelineCache = append(timelineCache, rs.messages...)
	timelineCache = append(timelineCache, rs.pending...)
	rs.TimelineCache.Emit(timelineCache)
}

func (rs *RoomStore) HasMoreHistory() bool {
	rs.lock.RLock()
	defer rs.lock.RUnlock()
	return rs.hasMoreHistory
}

// ApplyPage prepends a page of older messages. The page is ordered newest first.
func (rs *RoomStore) ApplyPage(page []*timeline.Message, hasMore bool) {
	rs.lock.Lock()
	defer rs.lock.Unlock()
	rs.hasMoreHistory = hasMore
	older := make([]*timeline.Message, 0, len(page))
	for _, msg := range slices.Backward(page) {
		if _, known := rs.byID[msg.ID]; known {
			continue
		}
		rs.byID[msg.ID] = msg
		older = append(older, msg)
	}
	rs.messages = append(older, rs.messages...)
	rs.notifyTimelineWatchers()
}

func (rs *RoomStore) pendingIndex(txnID string) int {
	if txnID == "" {
		return -1
	}
	return slices.IndexFunc(rs.pending, func(msg *timeline.Message) bool {
		return msg.TxnID == txnID
	})
}

// ApplyPending adds a local echo of a message that hasn't been confirmed by the server yet.
func (rs *RoomStore) ApplyPending(msg *timeline.Message) {
	rs.lock.Lock()
	defer rs.lock.Unlock()
	if rs.pendingIndex(msg.TxnID) != -1 {
		return
	} else if _, known := rs.byID[msg.ID]; known && !msg.IsLocalEcho() {
		return
	} else if msg.TxnID != "" && slices.ContainsFunc(rs.messages, func(confirmed *timeline.Message) bool {
		return confirmed.TxnID == msg.TxnID
	}) {
		// The send completed before the echo was applied
		return
	}
	msg.Pending = true
	rs.pending = append(rs.pending, msg)
	rs.notifyTimelineWatchers()
}

// ApplySendComplete replaces the local echo with the confirmed message, or
// marks the echo as failed if the send errored.
func (rs *RoomStore) ApplySendComplete(msg *timeline.Message, sendError string) {
	rs.lock.Lock()
	defer rs.lock.Unlock()
	idx := rs.pendingIndex(msg.TxnID)
	if sendError != "" {
		if idx != -1 {
			rs.pending[idx].SendError = sendError
			rs.notifyTimelineWatchers()
		}
		return
	}
	if idx != -1 {
		rs.pending = slices.Delete(rs.pending, idx, idx+1)
	}
	rs.appendConfirmed(msg)
	rs.notifyTimelineWatchers()
}

// ApplyNewMessage appends a message received from the server.
func (rs *RoomStore) ApplyNewMessage(msg *timeline.Message) {
	rs.lock.Lock()
	defer rs.lock.Unlock()
	if idx := rs.pendingIndex(msg.TxnID); idx != -1 {
		rs.pending = slices.Delete(rs.pending, idx, idx+1)
	}
	rs.appendConfirmed(msg)
	rs.notifyTimelineWatchers()
}

func (rs *RoomStore) appendConfirmed(msg *timeline.Message) {
	msg.Pending = false
	if existing, known := rs.byID[msg.ID]; known {
		idx := slices.Index(rs.messages, existing)
		if idx != -1 {
			rs.messages[idx] = msg
		}
	} else {
		rs.messages = append(rs.messages, msg)
	}
	rs.byID[msg.ID] = msg
}

// ApplyEdit replaces the body of a known message. Unknown messages are ignored,
// as they'll have the new content when they're paginated in.
func (rs *RoomStore) ApplyEdit(eventID id.EventID, newBody string) {
	rs.lock.Lock()
	defer rs.lock.Unlock()
	existing, ok := rs.byID[eventID]
	if !ok {
		return
	}
	edited, err := existing.WithBody(newBody)
	if err != nil {
		badGlobalLog.Warn().Err(err).Stringer("event_id", eventID).Msg("Failed to apply edit to cached message")
		return
	}
	rs.replaceLocked(existing, edited)
	rs.notifyTimelineWatchers()
}

// ApplyEditedMessage replaces a known message with the edited copy sent by the server.
func (rs *RoomStore) ApplyEditedMessage(eventID id.EventID, msg *timeline.Message) {
	rs.lock.Lock()
	defer rs.lock.Unlock()
	existing, ok := rs.byID[eventID]
	if !ok {
		return
	}
	rs.replaceLocked(existing, msg)
	rs.notifyTimelineWatchers()
}

func (rs *RoomStore) replaceLocked(existing, replacement *timeline.Message) {
	if idx := slices.Index(rs.messages, existing); idx != -1 {
		rs.messages[idx] = replacement
	}
	rs.byID[existing.ID] = replacement
}

func (rs *RoomStore) GetMessage(eventID id.EventID) *timeline.Message {
	if eventID == "" {
		return nil
	}
	rs.lock.RLock()
	defer rs.lock.RUnlock()
	return rs.byID[eventID]
}

// LastOwnMessage finds the newest confirmed message sent by the current user
// that was sent before the given message. An empty before starts from the end.
func (rs *RoomStore) LastOwnMessage(before id.EventID) *timeline.Message {
	rs.lock.RLock()
	defer rs.lock.RUnlock()
	currentFound := before == ""
	for _, msg := range slices.Backward(rs.messages) {
		if !currentFound {
			currentFound = msg.ID == before
			continue
		}
		if msg.Sender == rs.OwnUserID && !msg.Redacted && !msg.IsLocalEcho() {
			return msg
		}
	}
	return nil
}

// Senders returns the distinct senders in the cached timeline, most recent first.
func (rs *RoomStore) Senders() []id.UserID {
	rs.lock.RLock()
	defer rs.lock.RUnlock()
	seen := make(map[id.UserID]struct{})
	var senders []id.UserID
	for _, msg := range slices.Backward(rs.messages) {
		if _, ok := seen[msg.Sender]; ok {
			continue
		}
		seen[msg.Sender] = struct{}{}
		senders = append(senders, msg.Sender)
	}
	return senders
}
