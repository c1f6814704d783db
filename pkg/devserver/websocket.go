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
	"net/http"
	"strconv"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"maunium.net/go/mautrix/id"

	"go.mau.fi/chatroom/pkg/rpc/jsoncmd"
)

const (
	MaxMessageSize     = 50 * 1024 * 1024
	OutgoingBufferSize = 256
)

var ErrClientTooSlow = errors.New("client didn't read events fast enough")

type wsConn struct {
	ws       *websocket.Conn
	userID   id.UserID
	outgoing chan *jsoncmd.Container[any]
	cancel   context.CancelCauseFunc

	requests     map[int64]context.CancelCauseFunc
	requestsLock sync.Mutex
}

// enqueue never blocks: a client that can't keep up is disconnected and
// expected to reconnect and catch up through the replay buffer.
func (c *wsConn) enqueue(data *jsoncmd.Container[any]) {
	select {
	case c.outgoing <- data:
	default:
		c.cancel(ErrClientTooSlow)
	}
}

func (c *wsConn) trackRequest(reqID int64, cancel context.CancelCauseFunc) func() {
	c.requestsLock.Lock()
	c.requests[reqID] = cancel
	c.requestsLock.Unlock()
	return func() {
		c.requestsLock.Lock()
		delete(c.requests, reqID)
		c.requestsLock.Unlock()
	}
}

func (c *wsConn) cancelRequest(params *jsoncmd.CancelRequestParams) bool {
	c.requestsLock.Lock()
	cancelTarget, ok := c.requests[params.RequestID]
	c.requestsLock.Unlock()
	if !ok {
		return false
	}
	if params.Reason == "" {
		cancelTarget(nil)
	} else {
		cancelTarget(errors.New(params.Reason))
	}
	return true
}

func (c *wsConn) writeLoop(ctx context.Context) {
	for {
		select {
		case data := <-c.outgoing:
			if err := wsjson.Write(ctx, c.ws, data); err != nil {
				zerolog.Ctx(ctx).Debug().Err(err).Msg("Failed to write to websocket")
				c.cancel(err)
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	userID := s.getSession(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "M_MISSING_TOKEN", "Not logged in")
		return
	}
	ws, err := websocket.Accept(w, r, nil)
	if err != nil {
		hlog.FromRequest(r).Err(err).Msg("Failed to accept websocket connection")
		return
	}
	ws.SetReadLimit(MaxMessageSize)
	log := hlog.FromRequest(r).With().Stringer("user_id", userID).Logger()
	ctx, cancel := context.WithCancelCause(log.WithContext(r.Context()))
	defer cancel(nil)
	conn := &wsConn{
		ws:       ws,
		userID:   userID,
		outgoing: make(chan *jsoncmd.Container[any], OutgoingBufferSize),
		cancel:   cancel,
		requests: make(map[int64]context.CancelCauseFunc),
	}

	s.connect(ctx, conn, r.URL.Query().Get("run_id"), r.URL.Query().Get("last_received_event"))
	defer s.removeConn(conn)
	defer func() {
		_ = ws.Close(websocket.StatusGoingAway, "Connection closed")
	}()
	go conn.writeLoop(ctx)
	log.Info().Msg("Websocket connection opened")
	for {
		var cmd jsoncmd.Container[json.RawMessage]
		if err = wsjson.Read(ctx, ws, &cmd); err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure || ctx.Err() != nil {
				log.Info().AnErr("cause", context.Cause(ctx)).Msg("Websocket connection closed")
			} else {
				log.Warn().Err(err).Msg("Error reading from websocket")
			}
			return
		}
		switch cmd.Command {
		case jsoncmd.ReqPing:
			conn.enqueue(&jsoncmd.Container[any]{Command: jsoncmd.RespPong, RequestID: cmd.RequestID})
		case jsoncmd.ReqCancel:
			// Cancel requests aren't expected to have a response
			_, _ = jsoncmd.Cancel.RunCtx(ctx, cmd.Data, func(_ context.Context, params *jsoncmd.CancelRequestParams) (bool, error) {
				return conn.cancelRequest(params), nil
			})
		default:
			go s.handleRequest(ctx, conn, &cmd)
		}
	}
}

// connect registers the connection and queues the run ID and any events the
// client missed. Holding connsLock ensures nothing is published in between.
func (s *Server) connect(ctx context.Context, conn *wsConn, runID, lastReceived string) {
	s.connsLock.Lock()
	defer s.connsLock.Unlock()
	lastID := s.Events.LastID()
	var replay []*bufferedEvent
	if runID != "" && runID == s.RunID {
		lastReceivedID, _ := strconv.ParseInt(lastReceived, 10, 64)
		evts, complete := s.Events.Since(lastReceivedID, conn.userID)
		if complete {
			replay = evts
			lastID = lastReceivedID
		} else {
			zerolog.Ctx(ctx).Debug().
				Int64("last_received_event", lastReceivedID).
				Msg("Replay buffer doesn't cover missed events")
		}
	}
	// The run ID is sent with the ID of the newest event the client is
	// guaranteed to have after the replay.
	conn.enqueue(&jsoncmd.Container[any]{
		Command:   jsoncmd.EventRunID,
		RequestID: lastID,
		Data:      &jsoncmd.RunData{RunID: s.RunID},
	})
	for _, evt := range replay {
		conn.enqueue(evt.container())
	}
	if len(replay) > 0 {
		zerolog.Ctx(ctx).Debug().Int("event_count", len(replay)).Msg("Replaying missed events")
	}
	s.conns[conn] = struct{}{}
}

func (s *Server) handleRequest(ctx context.Context, conn *wsConn, cmd *jsoncmd.Container[json.RawMessage]) {
	log := zerolog.Ctx(ctx).With().
		Int64("req_id", cmd.RequestID).
		Stringer("command", cmd.Command).
		Logger()
	ctx, cancel := context.WithCancelCause(log.WithContext(ctx))
	defer cancel(nil)
	defer conn.trackRequest(cmd.RequestID, cancel)()
	log.Trace().Msg("Handling request")
	resp, err := s.handleCommand(ctx, conn.userID, cmd)
	out := &jsoncmd.Container[any]{
		Command:   jsoncmd.RespSuccess,
		RequestID: cmd.RequestID,
		Data:      resp,
	}
	if err != nil {
		log.Debug().Err(err).Msg("Request failed")
		out.Command = jsoncmd.RespError
		out.Data = err.Error()
	}
	conn.enqueue(out)
}
