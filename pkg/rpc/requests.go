// Copyright (c) 2025 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package rpc

import (
	"context"

	"go.mau.fi/chatroom/pkg/rpc/jsoncmd"
	"go.mau.fi/chatroom/pkg/timeline"
)

func (gr *ChatRPC) SendMessage(ctx context.Context, params *jsoncmd.SendMessageParams) (*timeline.Message, error) {
	return executeRequest(gr, ctx, jsoncmd.SendMessage, params)
}

func (gr *ChatRPC) Paginate(ctx context.Context, params *jsoncmd.PaginateParams) (*jsoncmd.PaginationResponse, error) {
	return executeRequest(gr, ctx, jsoncmd.Paginate, params)
}

func (gr *ChatRPC) MarkRead(ctx context.Context, params *jsoncmd.MarkReadParams) error {
	return executeRequestNoResponse(gr, ctx, jsoncmd.MarkRead, params)
}
