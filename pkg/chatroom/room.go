// Copyright (c) 2025 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package chatroom

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"maunium.net/go/mautrix/id"

	"go.mau.fi/chatroom/pkg/composer"
	"go.mau.fi/chatroom/pkg/timeline"
)

// PageSize is the number of messages requested per history page.
const PageSize = 30

const EditingBannerTitle = "Editing message"

type Params struct {
	RoomID    id.RoomID
	OwnUserID id.UserID

	Service MessageService
	Input   InputSurface
	Banner  ActionBanner

	Clipboard   Clipboard
	OwnMessages OwnMessageFinder

	PreviewWidth int
	Log          *zerolog.Logger

	// ReadOnly rooms have no composer: sending, replying, editing and
	// uploading all fail with ErrReadOnly.
	ReadOnly bool
}

// Room connects the composer of a single chat room screen to the message service.
type Room struct {
	ID        id.RoomID
	OwnUserID id.UserID

	service     MessageService
	input       InputSurface
	banner      ActionBanner
	clipboard   Clipboard
	ownMessages OwnMessageFinder

	previewWidth int
	readOnly     bool
	log          *zerolog.Logger

	// lock guards actions and the pagination cursor
	lock    sync.Mutex
	actions *composer.ActionController
	// actionGen changes whenever an action starts or is cleared, so that a
	// finished send only clears the action it was composed with.
	actionGen uint64
	page      int
	hasMore   bool

	sending    atomic.Bool
	paginating atomic.Bool
}

func NewRoom(params Params) *Room {
	log := params.Log
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	roomLog := log.With().Stringer("room_id", params.RoomID).Logger()
	return &Room{
		ID:        params.RoomID,
		OwnUserID: params.OwnUserID,

		service:     params.Service,
		input:       params.Input,
		banner:      params.Banner,
		clipboard:   params.Clipboard,
		ownMessages: params.OwnMessages,

		previewWidth: params.PreviewWidth,
		readOnly:     params.ReadOnly,
		log:          &roomLog,

		actions: composer.NewActionController(),
		hasMore: true,
	}
}

// Mode returns the current composer mode.
func (room *Room) Mode() composer.Mode {
	room.lock.Lock()
	defer room.lock.Unlock()
	return room.actions.Mode()
}

func (room *Room) ReadOnly() bool {
	return room.readOnly
}

// StartReply quotes the given message in the composer.
func (room *Room) StartReply(msg *timeline.Message) error {
	if room.readOnly {
		return ErrReadOnly
	}
	author := msg.Sender.String()
	body := msg.Body()
	citation := BuildCitation(author, body)
	preview := QuotedPreview(body, room.previewWidth)

	room.lock.Lock()
	defer room.lock.Unlock()
	if err := room.actions.BeginReply(author, citation, preview); err != nil {
		return err
	}
	room.actionGen++
	room.log.Debug().Stringer("event_id", msg.ID).Msg("Started reply")
	room.banner.Show(author, preview)
	room.input.Focus()
	return nil
}

// StartEdit seeds the composer with the text of one of the user's own messages.
func (room *Room) StartEdit(msg *timeline.Message) error {
	if room.readOnly {
		return ErrReadOnly
	} else if msg.Sender != room.OwnUserID {
		return ErrNotOwnMessage
	}
	room.lock.Lock()
	defer room.lock.Unlock()
	return room.startEditLocked(msg)
}

func (room *Room) startEditLocked(msg *timeline.Message) error {
	originalText := msg.Body()
	if err := room.actions.BeginEdit(msg.ID, originalText); err != nil {
		return err
	}
	room.actionGen++
	room.log.Debug().Stringer("event_id", msg.ID).Msg("Started edit")
	room.banner.Show(EditingBannerTitle, originalText)
	room.input.SetText(originalText)
	room.input.Focus()
	return nil
}

// EditPrevious starts editing the user's newest message, or the one before the
// message currently being edited. It does nothing while replying.
func (room *Room) EditPrevious() error {
	if room.readOnly {
		return ErrReadOnly
	} else if room.ownMessages == nil {
		return ErrNoMessageToEdit
	}
	room.lock.Lock()
	defer room.lock.Unlock()
	mode := room.actions.Mode()
	if mode.IsReplying() {
		return nil
	}
	var current id.EventID
	if mode.IsEditing() {
		current = mode.Edit.MessageID
	}
	msg := room.ownMessages.LastOwnMessage(current)
	if msg == nil {
		return ErrNoMessageToEdit
	}
	room.actions.Cancel()
	return room.startEditLocked(msg)
}

// CancelAction drops the active reply or edit, clears the input and hides the banner.
func (room *Room) CancelAction() {
	room.lock.Lock()
	defer room.lock.Unlock()
	room.clearActionLocked()
}

func (room *Room) clearActionLocked() {
	room.actionGen++
	room.actions.Cancel()
	room.input.Clear()
	room.banner.Dismiss()
}

// NavigateAway resets the composer mode when the screen is left. The draft in
// the input surface is kept.
func (room *Room) NavigateAway() {
	room.lock.Lock()
	defer room.lock.Unlock()
	room.actionGen++
	room.actions.Cancel()
	room.banner.Dismiss()
}

func (room *Room) setInputEnabled(enabled bool) {
	if toggler, ok := room.input.(InputToggler); ok {
		toggler.SetInputEnabled(enabled)
	}
}

// Submit sends the text in the input surface, taking the active reply or edit
// into account. The action is only cleared once the service accepts the
// message: on failure the input and mode are left as-is so the user can retry.
// If a different action was started while the message was being sent, that
// action is left alone.
func (room *Room) Submit(ctx context.Context) error {
	if room.readOnly {
		return ErrReadOnly
	} else if !room.sending.CompareAndSwap(false, true) {
		return ErrSendInProgress
	}
	defer room.sending.Store(false)

	room.lock.Lock()
	sub, err := room.actions.ComposeSubmission(room.input.GetText())
	composedGen := room.actionGen
	room.lock.Unlock()
	if err != nil {
		return err
	}

	log := zerolog.Ctx(ctx).With().
		Stringer("room_id", room.ID).
		Bool("edit", sub.IsEdit()).
		Logger()
	room.setInputEnabled(false)
	defer room.setInputEnabled(true)
	if sub.IsEdit() {
		err = room.service.Edit(ctx, room.ID, sub.TargetMessageID, sub.Text)
	} else {
		err = room.service.Send(ctx, room.ID, sub.Text)
	}
	if err != nil {
		log.Err(err).Msg("Failed to send message")
		return fmt.Errorf("failed to send message: %w", err)
	}
	log.Debug().Msg("Message sent")

	room.lock.Lock()
	defer room.lock.Unlock()
	if room.actionGen == composedGen {
		room.clearActionLocked()
	} else {
		log.Debug().Msg("Composer action changed while sending, not clearing it")
	}
	return nil
}

// LoadMore fetches the next page of older messages. It returns the number of
// messages received, which is zero once the start of the room is reached.
func (room *Room) LoadMore(ctx context.Context) (int, error) {
	if !room.paginating.CompareAndSwap(false, true) {
		return 0, ErrAlreadyPaginating
	}
	defer room.paginating.Store(false)

	room.lock.Lock()
	hasMore, offset := room.hasMore, room.page*PageSize
	room.lock.Unlock()
	if !hasMore {
		return 0, nil
	}
	msgs, err := room.service.LoadPage(ctx, room.ID, offset)
	if err != nil {
		return 0, fmt.Errorf("failed to load messages at offset %d: %w", offset, err)
	}
	zerolog.Ctx(ctx).Debug().
		Stringer("room_id", room.ID).
		Int("offset", offset).
		Int("count", len(msgs)).
		Msg("Loaded history page")

	// A short page means the start of the room was reached, but the service
	// may know that earlier if it tracks the server's has_more flag.
	reachedStart := len(msgs) < PageSize
	if tracker, ok := room.service.(HistoryTracker); ok && !tracker.HasMoreHistory(room.ID) {
		reachedStart = true
	}
	room.lock.Lock()
	room.page++
	if reachedStart {
		room.hasMore = false
	}
	room.lock.Unlock()
	return len(msgs), nil
}

func (room *Room) HasMoreHistory() bool {
	room.lock.Lock()
	defer room.lock.Unlock()
	return room.hasMore
}

// Upload sends a file to the room. Files are sent without a caption.
func (room *Room) Upload(ctx context.Context, fileRef string) error {
	if room.readOnly {
		return ErrReadOnly
	} else if fileRef == "" {
		return errors.New("no file selected")
	}
	err := room.service.UploadFile(ctx, room.ID, fileRef, "")
	if err != nil {
		return fmt.Errorf("failed to upload file: %w", err)
	}
	return nil
}

// Copy puts the plain text of the message on the clipboard.
func (room *Room) Copy(msg *timeline.Message) error {
	if room.clipboard == nil {
		return ErrClipboardUnavailable
	}
	return room.clipboard.WriteText(msg.PlainText())
}
