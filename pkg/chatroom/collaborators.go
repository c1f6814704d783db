// Copyright (c) 2025 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package chatroom

import (
	"context"

	"maunium.net/go/mautrix/id"

	"go.mau.fi/chatroom/pkg/timeline"
)

// MessageService owns sending, editing, pagination and uploads. Implementations
// talk to the backend, the room never does.
type MessageService interface {
	Send(ctx context.Context, roomID id.RoomID, text string) error
	Edit(ctx context.Context, roomID id.RoomID, messageID id.EventID, text string) error
	// LoadPage returns up to PageSize messages, newest first, skipping the
	// offset newest messages.
	LoadPage(ctx context.Context, roomID id.RoomID, offset int) ([]*timeline.Message, error)
	UploadFile(ctx context.Context, roomID id.RoomID, fileRef, caption string) error
}

// HistoryTracker can be implemented by a MessageService that knows whether
// the server has more history than what has been loaded.
type HistoryTracker interface {
	HasMoreHistory(roomID id.RoomID) bool
}

// InputSurface is the text input of the composer.
type InputSurface interface {
	GetText() string
	SetText(text string)
	Clear()
	Focus()
}

// InputToggler can be implemented by an InputSurface that supports being
// disabled while a message is being sent.
type InputToggler interface {
	SetInputEnabled(enabled bool)
}

// ActionBanner shows the active reply or edit above the composer.
type ActionBanner interface {
	Show(title, body string)
	Dismiss()
}

type Clipboard interface {
	WriteText(text string) error
}

// OwnMessageFinder looks up the current user's messages for editing the
// previous message from the keyboard.
type OwnMessageFinder interface {
	LastOwnMessage(before id.EventID) *timeline.Message
}
