// Copyright (c) 2025 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package jsoncmd

import (
	"go.mau.fi/chatroom/pkg/timeline"
)

type Container[T any] struct {
	Command   Name  `json:"command"`
	RequestID int64 `json:"request_id"`
	Data      T     `json:"data"`
}

type Name string

func (n Name) String() string {
	return string(n)
}

const (
	ReqCancel      Name = "cancel"
	ReqSendMessage Name = "send_message"
	ReqPaginate    Name = "paginate"
	ReqMarkRead    Name = "mark_read"

	RespError   Name = "error"
	RespSuccess Name = "response"

	ReqPing  Name = "ping"
	RespPong Name = "pong"

	EventSendComplete  Name = "send_complete"
	EventNewMessage    Name = "new_message"
	EventMessageEdited Name = "message_edited"
	EventRunID         Name = "run_id"
)

var (
	Cancel      = &CommandSpec[*CancelRequestParams, bool]{Name: ReqCancel}
	SendMessage = &CommandSpec[*SendMessageParams, *timeline.Message]{Name: ReqSendMessage}
	Paginate    = &CommandSpec[*PaginateParams, *PaginationResponse]{Name: ReqPaginate}
	MarkRead    = &CommandSpecWithoutResponse[*MarkReadParams]{Name: ReqMarkRead}

	SpecSendComplete  = &EventSpec[*SendComplete]{Name: EventSendComplete}
	SpecNewMessage    = &EventSpec[*NewMessage]{Name: EventNewMessage}
	SpecMessageEdited = &EventSpec[*MessageEdited]{Name: EventMessageEdited}
	SpecRunID         = &EventSpec[*RunData]{Name: EventRunID}
)
