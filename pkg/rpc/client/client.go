// Copyright (c) 2025 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package client

import (
	"context"
	"fmt"

	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"go.mau.fi/chatroom/pkg/chatroom"
	"go.mau.fi/chatroom/pkg/rpc"
	"go.mau.fi/chatroom/pkg/rpc/jsoncmd"
	"go.mau.fi/chatroom/pkg/rpc/store"
	"go.mau.fi/chatroom/pkg/timeline"
)

// ChatClient combines the RPC connection with the local timeline cache.
type ChatClient struct {
	*rpc.ChatRPC
	*store.ChatStore

	EventHandler rpc.EventHandler
}

var _ chatroom.MessageService = (*ChatClient)(nil)
var _ chatroom.HistoryTracker = (*ChatClient)(nil)

func NewChatClient(baseURL string, userID id.UserID) (*ChatClient, error) {
	rpcClient, err := rpc.NewChatRPC(baseURL)
	if err != nil {
		return nil, err
	}
	cc := &ChatClient{
		ChatRPC:   rpcClient,
		ChatStore: store.NewStore(),
	}
	cc.ChatStore.UserID = userID
	rpcClient.EventHandler = cc.handleEvent
	return cc, nil
}

func (cc *ChatClient) handleEvent(ctx context.Context, rawEvt any) {
	switch evt := rawEvt.(type) {
	case *jsoncmd.SendComplete:
		if evt.Message != nil {
			callRoomMethod(cc, evt.Message.RoomID, func(room *store.RoomStore) {
				room.ApplySendComplete(evt.Message, evt.Error)
			})
		}
	case *jsoncmd.NewMessage:
		if evt.Message != nil {
			callRoomMethod(cc, evt.Message.RoomID, func(room *store.RoomStore) {
				room.ApplyNewMessage(evt.Message)
			})
		}
	case *jsoncmd.MessageEdited:
		if evt.Message != nil {
			callRoomMethod(cc, evt.RoomID, func(room *store.RoomStore) {
				room.ApplyEditedMessage(evt.EventID, evt.Message)
			})
		}
	}
	if cc.EventHandler != nil {
		cc.EventHandler(ctx, rawEvt)
	}
}

func callRoomMethod(cc *ChatClient, roomID id.RoomID, fn func(room *store.RoomStore)) {
	room := cc.ChatStore.GetRoom(roomID)
	if room == nil {
		return
	}
	fn(room)
}

func (cc *ChatClient) Send(ctx context.Context, roomID id.RoomID, text string) error {
	room := cc.ChatStore.GetOrCreateRoom(roomID)
	msg, err := cc.ChatRPC.SendMessage(ctx, &jsoncmd.SendMessageParams{
		RoomID: roomID,
		Text:   text,
	})
	if err != nil {
		return err
	} else if msg != nil {
		room.ApplyPending(msg)
	}
	return nil
}

func (cc *ChatClient) Edit(ctx context.Context, roomID id.RoomID, messageID id.EventID, text string) error {
	room := cc.ChatStore.GetOrCreateRoom(roomID)
	_, err := cc.ChatRPC.SendMessage(ctx, &jsoncmd.SendMessageParams{
		RoomID:    roomID,
		Text:      text,
		RelatesTo: (&event.RelatesTo{}).SetReplace(messageID),
	})
	if err != nil {
		return err
	}
	room.ApplyEdit(messageID, text)
	return nil
}

func (cc *ChatClient) LoadPage(ctx context.Context, roomID id.RoomID, offset int) ([]*timeline.Message, error) {
	room := cc.ChatStore.GetOrCreateRoom(roomID)
	if !room.Paginating.CompareAndSwap(false, true) {
		return nil, chatroom.ErrAlreadyPaginating
	}
	defer room.Paginating.Store(false)
	resp, err := cc.ChatRPC.Paginate(ctx, &jsoncmd.PaginateParams{
		RoomID: roomID,
		Offset: offset,
		Limit:  chatroom.PageSize,
	})
	if err != nil {
		return nil, err
	} else if resp == nil {
		return nil, fmt.Errorf("empty pagination response")
	}
	room.ApplyPage(resp.Messages, resp.HasMore)
	return resp.Messages, nil
}

// HasMoreHistory reports the server's has_more flag from the last page loaded
// for the room. Rooms that haven't been paginated yet are assumed to have more.
func (cc *ChatClient) HasMoreHistory(roomID id.RoomID) bool {
	room := cc.ChatStore.GetRoom(roomID)
	if room == nil {
		return true
	}
	return room.HasMoreHistory()
}

func (cc *ChatClient) UploadFile(ctx context.Context, roomID id.RoomID, fileRef, caption string) error {
	room := cc.ChatStore.GetOrCreateRoom(roomID)
	resp, err := cc.ChatRPC.UploadFile(ctx, roomID, fileRef, caption)
	if err != nil {
		return err
	} else if resp.Message == nil {
		return fmt.Errorf("upload response didn't contain a message")
	}
	// Uploads are confirmed synchronously, so there's no local echo stage.
	room.ApplyNewMessage(resp.Message)
	return nil
}
