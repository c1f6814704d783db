// Copyright (c) 2025 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package jsoncmd

import (
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"go.mau.fi/chatroom/pkg/timeline"
)

type CancelRequestParams struct {
	RequestID int64  `json:"request_id"`
	Reason    string `json:"reason"`
}

type PingParams struct {
	LastReceivedID int64 `json:"last_received_id"`
}

type SendMessageParams struct {
	RoomID id.RoomID `json:"room_id"`
	// The raw text to send. Citations for replies are already included.
	Text string `json:"text"`
	// Standard Matrix `m.relates_to` data. Edits are sent as replacements of the original message.
	RelatesTo *event.RelatesTo `json:"relates_to,omitempty"`
}

type PaginateParams struct {
	RoomID id.RoomID `json:"room_id"`
	// Number of newest messages to skip. Zero fetches the newest page.
	Offset int `json:"offset"`
	// Maximum number of messages to return.
	Limit int `json:"limit"`
}

type PaginationResponse struct {
	// Messages ordered from newest to oldest.
	Messages []*timeline.Message `json:"messages"`
	HasMore  bool                `json:"has_more"`
}

type MarkReadParams struct {
	RoomID  id.RoomID  `json:"room_id"`
	EventID id.EventID `json:"event_id"`
}

type SendComplete struct {
	Message *timeline.Message `json:"message"`
	Error   string            `json:"error,omitempty"`
}

type NewMessage struct {
	Message *timeline.Message `json:"message"`
}

type MessageEdited struct {
	RoomID  id.RoomID         `json:"room_id"`
	EventID id.EventID        `json:"event_id"`
	Message *timeline.Message `json:"message"`
}

type RunData struct {
	RunID string `json:"run_id"`
}

type UploadResponse struct {
	Message *timeline.Message `json:"message"`
}
