// Copyright (c) 2025 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package rpc

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mau.fi/util/ptr"

	"go.mau.fi/chatroom/pkg/rpc/jsoncmd"
)

func TestWebsocketURL_Fresh(t *testing.T) {
	gr, err := NewChatRPC("https://chat.example.com")
	require.NoError(t, err)
	wsURL := gr.websocketURL()
	assert.Equal(t, "wss://chat.example.com/_chatroom/websocket", wsURL.String())
}

func TestWebsocketURL_Resume(t *testing.T) {
	gr, err := NewChatRPC("http://localhost:29325")
	require.NoError(t, err)
	gr.runID.Store(ptr.Ptr("run-1"))
	gr.lastReqID.Store(-42)
	runID, lastID := gr.ResumePoint()
	assert.Equal(t, "run-1", runID)
	assert.EqualValues(t, -42, lastID)

	wsURL := gr.websocketURL()
	assert.Equal(t, "ws", wsURL.Scheme)
	assert.Equal(t, "run-1", wsURL.Query().Get("run_id"))
	assert.Equal(t, "-42", wsURL.Query().Get("last_received_event"))
}

func TestWebsocketURL_RunIDWithoutEvents(t *testing.T) {
	gr, err := NewChatRPC("http://localhost:29325")
	require.NoError(t, err)
	gr.runID.Store(ptr.Ptr("run-1"))
	assert.Empty(t, gr.websocketURL().RawQuery)
}

func TestErrorFromResponse(t *testing.T) {
	assert.EqualError(t, errorFromResponse(json.RawMessage(`"room not found"`)), "room not found")
	assert.EqualError(t, errorFromResponse(json.RawMessage(`{"errcode":"X"}`)), `{"errcode":"X"}`)
}

func TestParseEvent(t *testing.T) {
	ctx := context.Background()
	evt := parseEvent(ctx, &jsoncmd.Container[json.RawMessage]{
		Command:   jsoncmd.EventRunID,
		RequestID: -1,
		Data:      json.RawMessage(`{"run_id":"abc"}`),
	})
	require.IsType(t, &jsoncmd.RunData{}, evt)
	assert.Equal(t, "abc", evt.(*jsoncmd.RunData).RunID)

	unknown := &jsoncmd.Container[json.RawMessage]{Command: "typing", Data: json.RawMessage(`{}`)}
	assert.Same(t, unknown, parseEvent(ctx, unknown))

	broken := &jsoncmd.Container[json.RawMessage]{Command: jsoncmd.EventNewMessage, Data: json.RawMessage(`"nope"`)}
	assert.Same(t, broken, parseEvent(ctx, broken))
}
