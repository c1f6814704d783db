// Copyright (c) 2025 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package database

import (
	"context"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"go.mau.fi/util/dbutil"

	"go.mau.fi/chatroom/pkg/devserver/database/upgrades"
)

type Database struct {
	*dbutil.Database

	Message *MessageQuery
	Receipt *ReceiptQuery
	Media   *MediaQuery
}

func New(rawDB *dbutil.Database) *Database {
	rawDB.UpgradeTable = upgrades.Table
	return &Database{
		Database: rawDB,

		Message: &MessageQuery{QueryHelper: dbutil.MakeQueryHelper(rawDB, newMessage)},
		Receipt: &ReceiptQuery{db: rawDB},
		Media:   &MediaQuery{QueryHelper: dbutil.MakeQueryHelper(rawDB, newMedia)},
	}
}

// Open connects to the SQLite database at the given URI and applies the schema.
func Open(ctx context.Context, uri string, log zerolog.Logger) (*Database, error) {
	rawDB, err := dbutil.NewWithDialect(uri, "sqlite3")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	rawDB.Log = dbutil.ZeroLogger(log.With().Str("db_section", "main").Logger())
	db := New(rawDB)
	if err = db.Upgrade(ctx); err != nil {
		_ = rawDB.Close()
		return nil, fmt.Errorf("failed to upgrade database: %w", err)
	}
	return db, nil
}

func newMessage(_ *dbutil.QueryHelper[*Message]) *Message {
	return &Message{}
}

func newMedia(_ *dbutil.QueryHelper[*Media]) *Media {
	return &Media{}
}
