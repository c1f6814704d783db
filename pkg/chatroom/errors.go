// Copyright (c) 2025 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package chatroom

import (
	"errors"
)

var (
	ErrNotOwnMessage        = errors.New("can't edit messages sent by other users")
	ErrNoMessageToEdit      = errors.New("no message to edit")
	ErrAlreadyPaginating    = errors.New("already paginating room")
	ErrSendInProgress       = errors.New("a message is already being sent")
	ErrClipboardUnavailable = errors.New("clipboard is not available")
	ErrReadOnly             = errors.New("room is read-only")
)
