// Copyright (c) 2025 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package timeline

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.mau.fi/util/jsontime"
	"maunium.net/go/mautrix/format"
	"maunium.net/go/mautrix/id"
)

type RowID int64

// Message is a single timeline entry as seen by the screen.
type Message struct {
	RowID     RowID              `json:"rowid"`
	ID        id.EventID         `json:"event_id"`
	TxnID     string             `json:"transaction_id,omitempty"`
	RoomID    id.RoomID          `json:"room_id"`
	Sender    id.UserID          `json:"sender"`
	Timestamp jsontime.UnixMilli `json:"timestamp"`
	Content   json.RawMessage    `json:"content"`

	EditedAt jsontime.UnixMilli `json:"edited_at,omitempty"`
	Redacted bool               `json:"redacted,omitempty"`

	Pending   bool   `json:"-"`
	SendError string `json:"send_error,omitempty"`
}

func (msg *Message) GetID() id.EventID {
	if msg == nil {
		return ""
	}
	return msg.ID
}

func (msg *Message) Body() string {
	return gjson.GetBytes(msg.Content, "body").Str
}

func (msg *Message) FormattedBody() string {
	if gjson.GetBytes(msg.Content, "format").Str != "org.matrix.custom.html" {
		return ""
	}
	return gjson.GetBytes(msg.Content, "formatted_body").Str
}

func (msg *Message) MsgType() string {
	return gjson.GetBytes(msg.Content, "msgtype").Str
}

// PlainText returns the message body with any HTML formatting stripped.
func (msg *Message) PlainText() string {
	if formatted := msg.FormattedBody(); formatted != "" {
		return strings.TrimSpace(format.HTMLToText(formatted))
	}
	return msg.Body()
}

func (msg *Message) IsLocalEcho() bool {
	return msg.ID == "" || string(msg.ID) == msg.TxnID
}

// WithBody returns a copy of the message with the body replaced. Formatting is
// dropped, as the new body is raw input text.
func (msg *Message) WithBody(body string) (*Message, error) {
	content, err := sjson.SetBytes(msg.Content, "body", body)
	if err != nil {
		return nil, err
	}
	content, err = sjson.DeleteBytes(content, "formatted_body")
	if err != nil {
		return nil, err
	}
	content, err = sjson.DeleteBytes(content, "format")
	if err != nil {
		return nil, err
	}
	cloned := *msg
	cloned.Content = content
	return &cloned, nil
}

// MakeTextContent builds the raw content of a plain text message.
func MakeTextContent(body string) json.RawMessage {
	content, _ := sjson.SetBytes([]byte(`{"msgtype":"m.text"}`), "body", body)
	return content
}
