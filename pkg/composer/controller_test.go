// Copyright (c) 2025 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package composer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"maunium.net/go/mautrix/id"

	"go.mau.fi/chatroom/pkg/composer"
)

func TestComposeSubmission_Idle(t *testing.T) {
	ac := composer.NewActionController()
	for _, text := range []string{"hello", "  padded  ", "multi\nline", "> looks like a quote"} {
		sub, err := ac.ComposeSubmission(text)
		require.NoError(t, err)
		assert.Equal(t, text, sub.Text)
		assert.Empty(t, sub.TargetMessageID)
		assert.False(t, sub.IsEdit())
	}
}

func TestComposeSubmission_ZeroValueIsIdle(t *testing.T) {
	var ac composer.ActionController
	assert.True(t, ac.Mode().IsIdle())
	sub, err := ac.ComposeSubmission("hi")
	require.NoError(t, err)
	assert.Equal(t, composer.Submission{Text: "hi"}, sub)
}

func TestComposeSubmission_Reply(t *testing.T) {
	ac := composer.NewActionController()
	require.NoError(t, ac.BeginReply("alice", "> alice said hi\n", "hi"))

	sub, err := ac.ComposeSubmission("hello back")
	require.NoError(t, err)
	assert.Equal(t, "> alice said hi\nhello back", sub.Text)
	assert.Empty(t, sub.TargetMessageID)

	// Composing doesn't consume the citation or leave reply mode.
	assert.True(t, ac.Mode().IsReplying())
	sub, err = ac.ComposeSubmission("again")
	require.NoError(t, err)
	assert.Equal(t, "> alice said hi\nagain", sub.Text)
}

func TestComposeSubmission_Edit(t *testing.T) {
	ac := composer.NewActionController()
	require.NoError(t, ac.BeginEdit("msg-42", "old text"))

	for _, text := range []string{"new text", "old text", "> not a citation"} {
		sub, err := ac.ComposeSubmission(text)
		require.NoError(t, err)
		assert.Equal(t, composer.Submission{Text: text, TargetMessageID: "msg-42"}, sub)
		assert.True(t, sub.IsEdit())
	}
}

func TestComposeSubmission_Blank(t *testing.T) {
	setups := map[string]func(ac *composer.ActionController) error{
		"idle":     func(ac *composer.ActionController) error { return nil },
		"replying": func(ac *composer.ActionController) error { return ac.BeginReply("bob", "> bob\n", "bob") },
		"editing":  func(ac *composer.ActionController) error { return ac.BeginEdit("$evt", "text") },
	}
	for name, setup := range setups {
		t.Run(name, func(t *testing.T) {
			ac := composer.NewActionController()
			require.NoError(t, setup(ac))
			before := ac.Mode()
			for _, text := range []string{"", "   ", "\n\t "} {
				_, err := ac.ComposeSubmission(text)
				assert.ErrorIs(t, err, composer.ErrEmptySubmission)
			}
			assert.Equal(t, before, ac.Mode())
		})
	}
}

func TestCancel(t *testing.T) {
	ac := composer.NewActionController()
	ac.Cancel()
	assert.True(t, ac.Mode().IsIdle())

	require.NoError(t, ac.BeginReply("alice", "> hi\n", "hi"))
	ac.Cancel()
	assert.Equal(t, composer.Idle, ac.Mode())
	ac.Cancel()
	assert.Equal(t, composer.Idle, ac.Mode())

	require.NoError(t, ac.BeginEdit("$evt", "text"))
	ac.Cancel()
	assert.Equal(t, composer.Idle, ac.Mode())

	sub, err := ac.ComposeSubmission("plain")
	require.NoError(t, err)
	assert.Equal(t, composer.Submission{Text: "plain"}, sub)
}

func TestInvalidTransitions(t *testing.T) {
	ac := composer.NewActionController()
	require.NoError(t, ac.BeginReply("alice", "> hi\n", "hi"))
	err := ac.BeginEdit("$evt", "text")
	assert.ErrorIs(t, err, composer.ErrInvalidTransition)
	err = ac.BeginReply("bob", "> yo\n", "yo")
	assert.ErrorIs(t, err, composer.ErrInvalidTransition)
	mode := ac.Mode()
	require.True(t, mode.IsReplying())
	assert.Equal(t, "alice", mode.Reply.Author)

	ac.Cancel()
	require.NoError(t, ac.BeginEdit("$evt", "text"))
	err = ac.BeginReply("alice", "> hi\n", "hi")
	assert.ErrorIs(t, err, composer.ErrInvalidTransition)
	err = ac.BeginEdit("$other", "other")
	assert.ErrorIs(t, err, composer.ErrInvalidTransition)
	mode = ac.Mode()
	require.True(t, mode.IsEditing())
	assert.Equal(t, id.EventID("$evt"), mode.Edit.MessageID)
}

func TestBeginPreconditions(t *testing.T) {
	ac := composer.NewActionController()
	assert.ErrorIs(t, ac.BeginReply("alice", "", "hi"), composer.ErrMissingCitation)
	assert.ErrorIs(t, ac.BeginEdit("", "text"), composer.ErrMissingMessageID)
	assert.True(t, ac.Mode().IsIdle())
}

func TestModeIsCopy(t *testing.T) {
	ac := composer.NewActionController()
	require.NoError(t, ac.BeginEdit("$evt", "text"))
	mode := ac.Mode()
	mode.Edit.MessageID = "$hijacked"
	sub, err := ac.ComposeSubmission("new")
	require.NoError(t, err)
	assert.Equal(t, id.EventID("$evt"), sub.TargetMessageID)
}
