// Copyright (c) 2025 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package chatroom_test

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"maunium.net/go/mautrix/id"

	"go.mau.fi/chatroom/pkg/timeline"
)

type sentMessage struct {
	RoomID    id.RoomID
	MessageID id.EventID
	Text      string
}

type fakeService struct {
	sent      []sentMessage
	edited    []sentMessage
	uploads   []string
	offsets   []int
	history   []*timeline.Message
	sendErr   error
	blockCh   chan struct{}
	startedCh chan struct{}

	pageBlockCh   chan struct{}
	pageStartedCh chan struct{}
}

func (fs *fakeService) Send(ctx context.Context, roomID id.RoomID, text string) error {
	if fs.startedCh != nil {
		close(fs.startedCh)
		<-fs.blockCh
	}
	if fs.sendErr != nil {
		return fs.sendErr
	}
	fs.sent = append(fs.sent, sentMessage{RoomID: roomID, Text: text})
	return nil
}

func (fs *fakeService) Edit(ctx context.Context, roomID id.RoomID, messageID id.EventID, text string) error {
	if fs.sendErr != nil {
		return fs.sendErr
	}
	fs.edited = append(fs.edited, sentMessage{RoomID: roomID, MessageID: messageID, Text: text})
	return nil
}

func (fs *fakeService) LoadPage(ctx context.Context, roomID id.RoomID, offset int) ([]*timeline.Message, error) {
	if fs.pageStartedCh != nil {
		close(fs.pageStartedCh)
		<-fs.pageBlockCh
	}
	fs.offsets = append(fs.offsets, offset)
	if offset >= len(fs.history) {
		return nil, nil
	}
	end := min(offset+30, len(fs.history))
	return fs.history[offset:end], nil
}

func (fs *fakeService) UploadFile(ctx context.Context, roomID id.RoomID, fileRef, caption string) error {
	if caption != "" {
		return errors.New("unexpected caption")
	}
	fs.uploads = append(fs.uploads, fileRef)
	return nil
}

// trackingService reports the server's has_more flag like the RPC client does.
type trackingService struct {
	*fakeService
	serverHasMore bool
}

func (ts *trackingService) HasMoreHistory(roomID id.RoomID) bool {
	return ts.serverHasMore
}

type fakeInput struct {
	text     string
	focused  int
	disabled []bool
}

func (fi *fakeInput) GetText() string { return fi.text }
func (fi *fakeInput) SetText(text string) { fi.text = text }
func (fi *fakeInput) Clear() { fi.text = "" }
func (fi *fakeInput) Focus() { fi.focused++ }
func (fi *fakeInput) SetInputEnabled(e bool) { fi.disabled = append(fi.disabled, !e) }

type fakeBanner struct {
	visible bool
	title   string
	body    string
}

func (fb *fakeBanner) Show(title, body string) {
	fb.visible = true
	fb.title = title
	fb.body = body
}

func (fb *fakeBanner) Dismiss() {
	fb.visible = false
	fb.title = ""
	fb.body = ""
}

type fakeClipboard struct {
	text string
}

func (fc *fakeClipboard) WriteText(text string) error {
	fc.text = text
	return nil
}

type fakeTimeline []*timeline.Message

func (ft fakeTimeline) LastOwnMessage(before id.EventID) *timeline.Message {
	currentFound := before == ""
	for _, msg := range slices.Backward(ft) {
		if !currentFound {
			currentFound = msg.ID == before
		} else if msg.Sender == ownUser {
			return msg
		}
	}
	return nil
}

const (
	testRoom  id.RoomID = "!room:example.com"
	ownUser   id.UserID = "@me:example.com"
	otherUser id.UserID = "@alice:example.com"
)

func makeMessage(evtID id.EventID, sender id.UserID, body string) *timeline.Message {
	return &timeline.Message{
		ID:      evtID,
		RoomID:  testRoom,
		Sender:  sender,
		Content: timeline.MakeTextContent(body),
	}
}

func makeHistory(count int) []*timeline.Message {
	msgs := make([]*timeline.Message, count)
	for i := range msgs {
		msgs[i] = makeMessage(id.EventID(fmt.Sprintf("$%d", i)), otherUser, fmt.Sprintf("message %d", i))
	}
	return msgs
}
