// Copyright (c) 2025 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"go.mau.fi/util/dbutil"
	"go.mau.fi/util/jsontime"
	"maunium.net/go/mautrix/id"

	"go.mau.fi/chatroom/pkg/timeline"
)

const (
	getMessageBaseQuery = `
		SELECT rowid, room_id, event_id, transaction_id, sender, timestamp, content, edited_at, redacted
		FROM message
	`
	getMessageByIDQuery  = getMessageBaseQuery + `WHERE event_id = $1`
	getMessageByTxnQuery = getMessageBaseQuery + `WHERE transaction_id = $1`
	getMessagePageQuery  = getMessageBaseQuery + `
		WHERE room_id = $1
		ORDER BY timestamp DESC, rowid DESC
		LIMIT $2 OFFSET $3
	`
	insertMessageQuery = `
		INSERT INTO message (room_id, event_id, transaction_id, sender, timestamp, content, edited_at, redacted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING rowid
	`
	updateMessageContentQuery = `UPDATE message SET content = $2, edited_at = $3 WHERE rowid = $1`
)

type MessageQuery struct {
	*dbutil.QueryHelper[*Message]
}

func (mq *MessageQuery) GetByID(ctx context.Context, eventID id.EventID) (*Message, error) {
	return mq.QueryOne(ctx, getMessageByIDQuery, eventID)
}

func (mq *MessageQuery) GetByTransactionID(ctx context.Context, txnID string) (*Message, error) {
	return mq.QueryOne(ctx, getMessageByTxnQuery, txnID)
}

// GetPage returns up to limit messages in the room, newest first, skipping
// the offset newest messages.
func (mq *MessageQuery) GetPage(ctx context.Context, roomID id.RoomID, offset, limit int) ([]*Message, error) {
	return mq.QueryMany(ctx, getMessagePageQuery, roomID, limit, offset)
}

func (mq *MessageQuery) Insert(ctx context.Context, msg *Message) error {
	return mq.GetDB().QueryRow(ctx, insertMessageQuery, msg.sqlVariables()...).Scan(&msg.RowID)
}

func (mq *MessageQuery) UpdateContent(ctx context.Context, msg *Message) error {
	return mq.Exec(ctx, updateMessageContentQuery, msg.RowID, unsafeJSONString(msg.Content), msg.EditedAt.UnixMilli())
}

// Message is a timeline message as stored by the development backend.
type Message struct {
	timeline.Message
}

func (m *Message) Scan(row dbutil.Scannable) (*Message, error) {
	var transactionID sql.NullString
	var timestamp int64
	var editedAt sql.NullInt64
	err := row.Scan(
		&m.RowID,
		&m.RoomID,
		&m.ID,
		&transactionID,
		&m.Sender,
		&timestamp,
		(*[]byte)(&m.Content),
		&editedAt,
		&m.Redacted,
	)
	if err != nil {
		return nil, err
	}
	m.TxnID = transactionID.String
	m.Timestamp = jsontime.UM(time.UnixMilli(timestamp))
	if editedAt.Valid {
		m.EditedAt = jsontime.UM(time.UnixMilli(editedAt.Int64))
	}
	return m, nil
}

func (m *Message) sqlVariables() []any {
	var editedAt *int64
	if !m.EditedAt.IsZero() {
		ts := m.EditedAt.UnixMilli()
		editedAt = &ts
	}
	return []any{
		m.RoomID,
		m.ID,
		dbutil.StrPtr(m.TxnID),
		m.Sender,
		m.Timestamp.UnixMilli(),
		unsafeJSONString(m.Content),
		editedAt,
		m.Redacted,
	}
}

// AsTimeline returns the wire representation of the message.
func (m *Message) AsTimeline() *timeline.Message {
	return &m.Message
}

func unsafeJSONString(val json.RawMessage) *string {
	if val == nil {
		return nil
	}
	str := string(val)
	return &str
}
