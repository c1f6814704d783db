// Copyright (c) 2025 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package store

import (
	"sync"

	"maunium.net/go/mautrix/id"
)

type ChatStore struct {
	UserID id.UserID

	rooms     map[id.RoomID]*RoomStore
	roomsLock sync.RWMutex
}

func NewStore() *ChatStore {
	return &ChatStore{
		rooms: make(map[id.RoomID]*RoomStore),
	}
}

func (cs *ChatStore) GetRoom(roomID id.RoomID) *RoomStore {
	cs.roomsLock.RLock()
	defer cs.roomsLock.RUnlock()
	return cs.rooms[roomID]
}

func (cs *ChatStore) GetOrCreateRoom(roomID id.RoomID) *RoomStore {
	if room := cs.GetRoom(roomID); room != nil {
		return room
	}
	cs.roomsLock.Lock()
	defer cs.roomsLock.Unlock()
	room, ok := cs.rooms[roomID]
	if !ok {
		room = NewRoomStore(roomID, cs.UserID)
		cs.rooms[roomID] = room
	}
	return room
}
