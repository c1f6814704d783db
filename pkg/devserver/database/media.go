// Copyright (c) 2025 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package database

import (
	"context"
	"time"

	"go.mau.fi/util/dbutil"
	"go.mau.fi/util/jsontime"
	"maunium.net/go/mautrix/id"
)

const (
	insertMediaQuery = `
		INSERT INTO media (media_id, room_id, uploader, mime_type, file_name, size, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	getMediaQuery = `
		SELECT media_id, room_id, uploader, mime_type, file_name, size, data, created_at
		FROM media WHERE media_id = $1
	`
)

type MediaQuery struct {
	*dbutil.QueryHelper[*Media]
}

func (mq *MediaQuery) Put(ctx context.Context, media *Media) error {
	return mq.Exec(ctx, insertMediaQuery, media.sqlVariables()...)
}

func (mq *MediaQuery) Get(ctx context.Context, mediaID string) (*Media, error) {
	return mq.QueryOne(ctx, getMediaQuery, mediaID)
}

// Media is an uploaded file. Files are small enough in development setups
// that they're kept in the database instead of on disk.
type Media struct {
	ID        string
	RoomID    id.RoomID
	Uploader  id.UserID
	MimeType  string
	FileName  string
	Size      int64
	Data      []byte
	CreatedAt jsontime.UnixMilli
}

func (m *Media) Scan(row dbutil.Scannable) (*Media, error) {
	var createdAt int64
	err := row.Scan(&m.ID, &m.RoomID, &m.Uploader, &m.MimeType, &m.FileName, &m.Size, &m.Data, &createdAt)
	if err != nil {
		return nil, err
	}
	m.CreatedAt = jsontime.UM(time.UnixMilli(createdAt))
	return m, nil
}

func (m *Media) sqlVariables() []any {
	return []any{m.ID, m.RoomID, m.Uploader, m.MimeType, m.FileName, m.Size, m.Data, m.CreatedAt.UnixMilli()}
}
