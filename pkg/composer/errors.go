// Copyright (c) 2025 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package composer

import (
	"errors"
)

var (
	ErrEmptySubmission   = errors.New("message is empty")
	ErrInvalidTransition = errors.New("another action is already in progress")
	ErrMissingCitation   = errors.New("reply citation is empty")
	ErrMissingMessageID  = errors.New("edit target message ID is empty")
)
