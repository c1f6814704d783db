// Copyright (c) 2025 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package composer

import (
	"maunium.net/go/mautrix/id"
)

type Kind string

const (
	KindIdle     Kind = "idle"
	KindReplying Kind = "replying"
	KindEditing  Kind = "editing"
)

func (k Kind) String() string {
	return string(k)
}

// Reply is the context of an in-progress reply.
type Reply struct {
	Author        string
	Citation      string
	QuotedPreview string
}

// Edit is the context of an in-progress edit. MessageID never changes while
// the edit is active.
type Edit struct {
	MessageID    id.EventID
	OriginalText string
}

// Mode is the current composer action. Exactly one of Reply and Edit is set
// depending on Kind, and both are nil when the composer is idle.
type Mode struct {
	Kind  Kind
	Reply *Reply
	Edit  *Edit
}

var Idle = Mode{Kind: KindIdle}

func (m Mode) IsIdle() bool {
	return m.Kind == KindIdle || m.Kind == ""
}

func (m Mode) IsReplying() bool {
	return m.Kind == KindReplying && m.Reply != nil
}

func (m Mode) IsEditing() bool {
	return m.Kind == KindEditing && m.Edit != nil
}
