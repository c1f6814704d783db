// Copyright (c) 2025 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"go.mau.fi/util/exslices"
	"go.mau.fi/util/jsontime"
	"go.mau.fi/util/random"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"go.mau.fi/chatroom/pkg/devserver/database"
	"go.mau.fi/chatroom/pkg/rpc/jsoncmd"
	"go.mau.fi/chatroom/pkg/timeline"
)

const (
	DefaultPageLimit = 30
	MaxPageLimit     = 100
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrMissingRoomID  = errors.New("room ID not provided")
	ErrEmptyMessage   = errors.New("message text is empty")
	ErrUnknownMessage = errors.New("message not found")
	ErrNotOwnMessage  = errors.New("can't edit messages sent by other users")
	ErrMessageDeleted = errors.New("can't edit deleted messages")
	ErrInvalidOffset  = errors.New("pagination offset can't be negative")
)

func (s *Server) handleCommand(ctx context.Context, userID id.UserID, cmd *jsoncmd.Container[json.RawMessage]) (any, error) {
	switch cmd.Command {
	case jsoncmd.ReqSendMessage:
		return jsoncmd.SendMessage.RunCtx(ctx, cmd.Data, func(ctx context.Context, params *jsoncmd.SendMessageParams) (*timeline.Message, error) {
			return s.SendMessage(ctx, userID, params)
		})
	case jsoncmd.ReqPaginate:
		return jsoncmd.Paginate.RunCtx(ctx, cmd.Data, s.Paginate)
	case jsoncmd.ReqMarkRead:
		return jsoncmd.MarkRead.RunCtx(ctx, cmd.Data, func(ctx context.Context, params *jsoncmd.MarkReadParams) error {
			return s.MarkRead(ctx, userID, params)
		})
	default:
		return nil, fmt.Errorf("%w %s", ErrUnknownCommand, cmd.Command)
	}
}

func newEventID() id.EventID {
	return id.EventID("$" + random.String(43))
}

// SendMessage returns a pending copy of the message immediately. The message
// is persisted in the background and the sender is notified with a
// send_complete event, while other users receive new_message.
func (s *Server) SendMessage(ctx context.Context, sender id.UserID, params *jsoncmd.SendMessageParams) (*timeline.Message, error) {
	if params.RoomID == "" {
		return nil, ErrMissingRoomID
	} else if strings.TrimSpace(params.Text) == "" {
		return nil, ErrEmptyMessage
	}
	if params.RelatesTo != nil && params.RelatesTo.Type == event.RelReplace {
		return s.editMessage(ctx, sender, params.RoomID, params.RelatesTo.EventID, params.Text)
	}
	msg := &timeline.Message{
		TxnID:     "chatroom-" + random.String(16),
		RoomID:    params.RoomID,
		Sender:    sender,
		Timestamp: jsontime.UnixMilliNow(),
		Content:   timeline.MakeTextContent(params.Text),
		Pending:   true,
	}
	go s.completeSend(context.WithoutCancel(ctx), *msg)
	return msg, nil
}

func (s *Server) completeSend(ctx context.Context, msg timeline.Message) {
	log := zerolog.Ctx(ctx).With().Str("transaction_id", msg.TxnID).Logger()
	dbMsg := &database.Message{Message: msg}
	dbMsg.ID = newEventID()
	dbMsg.Pending = false
	err := s.DB.Message.Insert(ctx, dbMsg)
	if err != nil {
		log.Err(err).Msg("Failed to save message")
		s.publish(&bufferedEvent{
			Command:  jsoncmd.EventSendComplete,
			Data:     &jsoncmd.SendComplete{Message: &msg, Error: err.Error()},
			OnlyUser: msg.Sender,
		})
		return
	}
	log.Debug().Stringer("event_id", dbMsg.ID).Msg("Message sent")
	s.publish(&bufferedEvent{
		Command:  jsoncmd.EventSendComplete,
		Data:     &jsoncmd.SendComplete{Message: dbMsg.AsTimeline()},
		OnlyUser: msg.Sender,
	})
	s.publish(&bufferedEvent{
		Command:    jsoncmd.EventNewMessage,
		Data:       &jsoncmd.NewMessage{Message: dbMsg.AsTimeline()},
		ExceptUser: msg.Sender,
	})
}

func (s *Server) editMessage(ctx context.Context, sender id.UserID, roomID id.RoomID, targetID id.EventID, text string) (*timeline.Message, error) {
	existing, err := s.DB.Message.GetByID(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to get edit target: %w", err)
	} else if existing == nil || existing.RoomID != roomID {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMessage, targetID)
	} else if existing.Sender != sender {
		return nil, ErrNotOwnMessage
	} else if existing.Redacted {
		return nil, ErrMessageDeleted
	}
	edited, err := existing.WithBody(text)
	if err != nil {
		return nil, fmt.Errorf("failed to update message content: %w", err)
	}
	edited.EditedAt = jsontime.UnixMilliNow()
	if err = s.DB.Message.UpdateContent(ctx, &database.Message{Message: *edited}); err != nil {
		return nil, fmt.Errorf("failed to save edit: %w", err)
	}
	zerolog.Ctx(ctx).Debug().Stringer("event_id", targetID).Msg("Message edited")
	s.publish(&bufferedEvent{
		Command: jsoncmd.EventMessageEdited,
		Data: &jsoncmd.MessageEdited{
			RoomID:  roomID,
			EventID: targetID,
			Message: edited,
		},
	})
	return edited, nil
}

// Paginate returns messages newest first. One extra row is fetched to find
// out whether there's more history.
func (s *Server) Paginate(ctx context.Context, params *jsoncmd.PaginateParams) (*jsoncmd.PaginationResponse, error) {
	if params.RoomID == "" {
		return nil, ErrMissingRoomID
	} else if params.Offset < 0 {
		return nil, ErrInvalidOffset
	}
	limit := params.Limit
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	limit = min(limit, MaxPageLimit)
	msgs, err := s.DB.Message.GetPage(ctx, params.RoomID, params.Offset, limit+1)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	hasMore := len(msgs) > limit
	if hasMore {
		msgs = msgs[:limit]
	}
	return &jsoncmd.PaginationResponse{
		Messages: exslices.CastFunc(msgs, (*database.Message).AsTimeline),
		HasMore:  hasMore,
	}, nil
}

func (s *Server) MarkRead(ctx context.Context, userID id.UserID, params *jsoncmd.MarkReadParams) error {
	msg, err := s.DB.Message.GetByID(ctx, params.EventID)
	if err != nil {
		return fmt.Errorf("failed to get message: %w", err)
	} else if msg == nil || msg.RoomID != params.RoomID {
		return fmt.Errorf("%w: %s", ErrUnknownMessage, params.EventID)
	}
	return s.DB.Receipt.Put(ctx, params.RoomID, userID, params.EventID)
}
