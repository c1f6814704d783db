// Copyright (c) 2025 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package database

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mau.fi/util/jsontime"
	"maunium.net/go/mautrix/id"

	"go.mau.fi/chatroom/pkg/timeline"
)

const (
	testRoom id.RoomID = "!room:localhost"
	testUser id.UserID = "@alice:localhost"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()
	uri := "file:" + filepath.Join(t.TempDir(), "test.db") + "?_txlock=immediate"
	db, err := Open(context.Background(), uri, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func insertText(t *testing.T, db *Database, eventID id.EventID, body string, ts time.Time) *Message {
	t.Helper()
	msg := &Message{Message: timeline.Message{
		ID:        eventID,
		RoomID:    testRoom,
		Sender:    testUser,
		Timestamp: jsontime.UM(ts),
		Content:   timeline.MakeTextContent(body),
	}}
	require.NoError(t, db.Message.Insert(context.Background(), msg))
	require.NotZero(t, msg.RowID)
	return msg
}

func TestMessageQuery_InsertAndGet(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	msg := &Message{Message: timeline.Message{
		ID:        "$abc",
		TxnID:     "txn-1",
		RoomID:    testRoom,
		Sender:    testUser,
		Timestamp: jsontime.UnixMilliNow(),
		Content:   timeline.MakeTextContent("hello"),
	}}
	require.NoError(t, db.Message.Insert(ctx, msg))

	byID, err := db.Message.GetByID(ctx, "$abc")
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "hello", byID.Body())
	assert.Equal(t, "txn-1", byID.TxnID)
	assert.Equal(t, msg.RowID, byID.RowID)
	assert.True(t, byID.EditedAt.IsZero())

	byTxn, err := db.Message.GetByTransactionID(ctx, "txn-1")
	require.NoError(t, err)
	require.NotNil(t, byTxn)
	assert.Equal(t, id.EventID("$abc"), byTxn.ID)

	missing, err := db.Message.GetByID(ctx, "$missing")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMessageQuery_GetPage(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	start := time.UnixMilli(1700000000000)
	for i := range 5 {
		insertText(t, db, id.EventID(fmt.Sprintf("$evt%d", i)), fmt.Sprintf("message %d", i), start.Add(time.Duration(i)*time.Second))
	}

	page, err := db.Message.GetPage(ctx, testRoom, 0, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, id.EventID("$evt4"), page[0].ID)
	assert.Equal(t, id.EventID("$evt3"), page[1].ID)

	page, err = db.Message.GetPage(ctx, testRoom, 4, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, id.EventID("$evt0"), page[0].ID)

	page, err = db.Message.GetPage(ctx, "!other:localhost", 0, 2)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestMessageQuery_UpdateContent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	msg := insertText(t, db, "$edit", "before", time.Now())

	edited, err := msg.WithBody("after")
	require.NoError(t, err)
	edited.EditedAt = jsontime.UnixMilliNow()
	require.NoError(t, db.Message.UpdateContent(ctx, &Message{Message: *edited}))

	fetched, err := db.Message.GetByID(ctx, "$edit")
	require.NoError(t, err)
	assert.Equal(t, "after", fetched.Body())
	assert.False(t, fetched.EditedAt.IsZero())
}

func TestReceiptQuery(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	eventID, err := db.Receipt.Get(ctx, testRoom, testUser)
	require.NoError(t, err)
	assert.Empty(t, eventID)

	require.NoError(t, db.Receipt.Put(ctx, testRoom, testUser, "$first"))
	require.NoError(t, db.Receipt.Put(ctx, testRoom, testUser, "$second"))
	eventID, err = db.Receipt.Get(ctx, testRoom, testUser)
	require.NoError(t, err)
	assert.Equal(t, id.EventID("$second"), eventID)
}

func TestMediaQuery(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	media := &Media{
		ID:        "media1",
		RoomID:    testRoom,
		Uploader:  testUser,
		MimeType:  "text/plain",
		FileName:  "notes.txt",
		Size:      5,
		Data:      []byte("hello"),
		CreatedAt: jsontime.UnixMilliNow(),
	}
	require.NoError(t, db.Media.Put(ctx, media))

	fetched, err := db.Media.Get(ctx, "media1")
	require.NoError(t, err)
	require.NotNil(t, fetched)
	assert.Equal(t, []byte("hello"), fetched.Data)
	assert.Equal(t, "notes.txt", fetched.FileName)

	missing, err := db.Media.Get(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
