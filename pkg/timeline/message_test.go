// Copyright (c) 2025 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package timeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestMessage_PlainText(t *testing.T) {
	plain := &Message{Content: MakeTextContent("hello *world*")}
	assert.Equal(t, "hello *world*", plain.PlainText())

	formatted := &Message{Content: []byte(`{
		"msgtype": "m.text",
		"body": "hello **world**",
		"format": "org.matrix.custom.html",
		"formatted_body": "hello <strong>world</strong>"
	}`)}
	assert.Equal(t, "hello **world**", formatted.Body())
	assert.NotContains(t, formatted.PlainText(), "<strong>")
	assert.Contains(t, formatted.PlainText(), "world")
}

func TestMessage_WithBody(t *testing.T) {
	orig := &Message{ID: "$evt", Content: []byte(`{"msgtype":"m.text","body":"old","format":"org.matrix.custom.html","formatted_body":"<b>old</b>"}`)}
	edited, err := orig.WithBody("new")
	require.NoError(t, err)
	assert.Equal(t, "new", edited.Body())
	assert.Empty(t, edited.FormattedBody())
	assert.False(t, gjson.GetBytes(edited.Content, "formatted_body").Exists())
	assert.Equal(t, "m.text", edited.MsgType())
	assert.Equal(t, "old", orig.Body())
}

func TestMessage_IsLocalEcho(t *testing.T) {
	assert.True(t, (&Message{TxnID: "txn1"}).IsLocalEcho())
	assert.True(t, (&Message{ID: "txn1", TxnID: "txn1"}).IsLocalEcho())
	assert.False(t, (&Message{ID: "$evt", TxnID: "txn1"}).IsLocalEcho())
}
