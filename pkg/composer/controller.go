// Copyright (c) 2025 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package composer

import (
	"fmt"
	"strings"

	"go.mau.fi/util/ptr"
	"maunium.net/go/mautrix/id"
)

// Submission is the payload produced for a submit action. TargetMessageID is
// only set when the submission edits an existing message.
type Submission struct {
	Text            string
	TargetMessageID id.EventID
}

func (s Submission) IsEdit() bool {
	return s.TargetMessageID != ""
}

// ActionController tracks the reply/edit action attached to the composer.
//
// The controller holds no locks: all calls must come from the same logical
// event stream, or be serialized by the owner.
type ActionController struct {
	mode Mode
}

func NewActionController() *ActionController {
	return &ActionController{mode: Idle}
}

// Mode returns a copy of the current mode.
func (ac *ActionController) Mode() Mode {
	mode := ac.mode
	if mode.Reply != nil {
		mode.Reply = ptr.Clone(mode.Reply)
	}
	if mode.Edit != nil {
		mode.Edit = ptr.Clone(mode.Edit)
	}
	return mode
}

func (ac *ActionController) checkIdle(next Kind) error {
	if !ac.mode.IsIdle() {
		return fmt.Errorf("%w: can't start %s while %s", ErrInvalidTransition, next, ac.mode.Kind)
	}
	return nil
}

// BeginReply switches the composer into reply mode. The citation is prepended
// to the next submission.
func (ac *ActionController) BeginReply(author, citation, quotedPreview string) error {
	if citation == "" {
		return ErrMissingCitation
	} else if err := ac.checkIdle(KindReplying); err != nil {
		return err
	}
	ac.mode = Mode{
		Kind: KindReplying,
		Reply: &Reply{
			Author:        author,
			Citation:      citation,
			QuotedPreview: quotedPreview,
		},
	}
	return nil
}

// BeginEdit switches the composer into edit mode for the given message.
// The caller is responsible for seeding the input with originalText.
func (ac *ActionController) BeginEdit(messageID id.EventID, originalText string) error {
	if messageID == "" {
		return ErrMissingMessageID
	} else if err := ac.checkIdle(KindEditing); err != nil {
		return err
	}
	ac.mode = Mode{
		Kind: KindEditing,
		Edit: &Edit{
			MessageID:    messageID,
			OriginalText: originalText,
		},
	}
	return nil
}

func (ac *ActionController) Cancel() {
	ac.mode = Idle
}

// ComposeSubmission computes the outgoing payload for the given raw input.
// It doesn't change the mode: callers cancel after the send is confirmed.
func (ac *ActionController) ComposeSubmission(rawInput string) (Submission, error) {
	if strings.TrimSpace(rawInput) == "" {
		return Submission{}, ErrEmptySubmission
	}
	switch {
	case ac.mode.IsReplying():
		return Submission{Text: ac.mode.Reply.Citation + rawInput}, nil
	case ac.mode.IsEditing():
		return Submission{Text: rawInput, TargetMessageID: ac.mode.Edit.MessageID}, nil
	default:
		return Submission{Text: rawInput}, nil
	}
}
