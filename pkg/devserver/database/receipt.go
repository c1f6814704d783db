// Copyright (c) 2025 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.mau.fi/util/dbutil"
	"maunium.net/go/mautrix/id"
)

const (
	upsertReceiptQuery = `
		INSERT INTO read_receipt (room_id, user_id, event_id, read_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (room_id, user_id) DO UPDATE
			SET event_id = excluded.event_id, read_at = excluded.read_at
	`
	getReceiptQuery = `SELECT event_id FROM read_receipt WHERE room_id = $1 AND user_id = $2`
)

type ReceiptQuery struct {
	db *dbutil.Database
}

func (rq *ReceiptQuery) Put(ctx context.Context, roomID id.RoomID, userID id.UserID, eventID id.EventID) error {
	_, err := rq.db.Exec(ctx, upsertReceiptQuery, roomID, userID, eventID, time.Now().UnixMilli())
	return err
}

// Get returns the last message the user has read in the room, or an empty
// string if there's no receipt.
func (rq *ReceiptQuery) Get(ctx context.Context, roomID id.RoomID, userID id.UserID) (eventID id.EventID, err error) {
	err = rq.db.QueryRow(ctx, getReceiptQuery, roomID, userID).Scan(&eventID)
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
	}
	return
}
