// Copyright (c) 2025 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"go.mau.fi/chatroom/pkg/rpc/jsoncmd"
)

var (
	ErrNotConnectedToWebsocket               = errors.New("not connected to websocket")
	ErrWebsocketClosedBeforeResponseReceived = errors.New("websocket closed before response received")
)

const (
	MaxMessageSize    = 50 * 1024 * 1024
	MinReconnectDelay = 1 * time.Second
	MaxReconnectDelay = 30 * time.Second
	PingInterval      = 15 * time.Second
	EventBufferSize   = 256
)

type wrappedEvent struct {
	Data  any
	ReqID int64
}

func (gr *ChatRPC) websocketURL() *url.URL {
	wsURL := gr.BuildRawURL(URLPath{"websocket"})
	wsURL.Scheme = strings.Replace(wsURL.Scheme, "http", "ws", 1)
	query := url.Values{}
	if runID, lastID := gr.ResumePoint(); runID != "" && lastID != 0 {
		query.Set("run_id", runID)
		query.Set("last_received_event", strconv.FormatInt(lastID, 10))
	}
	wsURL.RawQuery = query.Encode()
	return wsURL
}

// Connect opens the websocket and starts the read, event and ping loops. If
// the connection drops while ctx is alive, it is reopened in the background
// and the server is asked to replay events after the last one handled.
func (gr *ChatRPC) Connect(ctx context.Context) error {
	connCtx, cancel := context.WithCancel(ctx)
	if stopFn := gr.stop.Swap(&cancel); stopFn != nil {
		(*stopFn)()
	}
	wsURL := gr.websocketURL()
	zerolog.Ctx(ctx).Info().Stringer("url", wsURL).Msg("Connecting to websocket")
	ws, _, err := websocket.Dial(connCtx, wsURL.String(), &websocket.DialOptions{
		HTTPClient: gr.http,
		HTTPHeader: http.Header{"User-Agent": {gr.UserAgent}},
	})
	if err != nil {
		cancel()
		return fmt.Errorf("failed to connect to websocket: %w", err)
	}
	ws.SetReadLimit(MaxMessageSize)
	gr.connCtx.Store(&connCtx)
	gr.conn.Store(ws)

	evtChan := make(chan wrappedEvent, EventBufferSize)
	eventLoopDone := make(chan struct{})
	go func() {
		defer close(eventLoopDone)
		gr.eventLoop(connCtx, evtChan)
	}()
	go gr.readLoop(connCtx, ws, cancel, evtChan, func() {
		// The resume point must not move after the new connection is opened.
		<-eventLoopDone
		gr.reconnectLoop(ctx)
	})
	go gr.pingLoop(connCtx, ws)
	return nil
}

func (gr *ChatRPC) reconnectLoop(ctx context.Context) {
	log := zerolog.Ctx(ctx)
	for delay := MinReconnectDelay; ; delay = min(delay*2, MaxReconnectDelay) {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
		if gr.stop.Load() == nil {
			// Disconnect was called while waiting
			return
		}
		err := gr.Connect(ctx)
		if err == nil {
			log.Info().Msg("Reconnected to websocket")
			return
		}
		log.Warn().Err(err).Dur("retry_in", delay).Msg("Failed to reconnect to websocket")
	}
}

// Disconnect closes the websocket and stops all loops without reconnecting.
// Requests still waiting for a response fail with
// ErrWebsocketClosedBeforeResponseReceived.
func (gr *ChatRPC) Disconnect() {
	log := zerolog.Nop()
	if ctxPtr := gr.connCtx.Swap(nil); ctxPtr != nil {
		log = *zerolog.Ctx(*ctxPtr)
	}
	// conn must be cleared before stopping, otherwise readLoop would see the
	// close as a dropped connection and start reconnecting.
	if ws := gr.conn.Swap(nil); ws != nil {
		if err := ws.Close(websocket.StatusNormalClosure, "Client disconnecting"); err != nil {
			log.Warn().Err(err).Msg("Websocket close handshake failed")
		}
	}
	if stopFn := gr.stop.Swap(nil); stopFn != nil {
		(*stopFn)()
	}
	gr.clearPendingRequests()
}

func writeWebsocketJSON(ctx context.Context, conn *websocket.Conn, data any) error {
	wr, err := conn.Writer(ctx, websocket.MessageText)
	if err != nil {
		return fmt.Errorf("failed to create websocket writer: %w", err)
	} else if err = json.NewEncoder(wr).Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON command: %w", err)
	} else if err = wr.Close(); err != nil {
		return fmt.Errorf("failed to close websocket writer: %w", err)
	}
	return nil
}

// cancelRequest asks the server to abort a request the caller stopped waiting for.
func (gr *ChatRPC) cancelRequest(reqID int64, reason string) {
	ctxPtr, conn := gr.connCtx.Load(), gr.conn.Load()
	if ctxPtr == nil || conn == nil || (*ctxPtr).Err() != nil {
		return
	}
	payload := jsoncmd.Cancel.Format(&jsoncmd.CancelRequestParams{RequestID: reqID, Reason: reason}, 0)
	if err := writeWebsocketJSON(*ctxPtr, conn, payload); err != nil {
		zerolog.Ctx(*ctxPtr).Debug().Err(err).Int64("req_id", reqID).Msg("Failed to send request cancellation")
	}
}

func (gr *ChatRPC) nextRequestID() int64 {
	gr.pendingRequestsLock.Lock()
	defer gr.pendingRequestsLock.Unlock()
	gr.reqIDCounter++
	return gr.reqIDCounter
}

// registerRequest allocates a request ID along with the channel its response
// will be delivered to. The returned function must be called once the caller
// stops waiting.
func (gr *ChatRPC) registerRequest() (int64, chan *jsoncmd.Container[json.RawMessage], func()) {
	ch := make(chan *jsoncmd.Container[json.RawMessage], 1)
	gr.pendingRequestsLock.Lock()
	gr.reqIDCounter++
	reqID := gr.reqIDCounter
	gr.pendingRequests[reqID] = ch
	gr.pendingRequestsLock.Unlock()
	return reqID, ch, func() {
		gr.pendingRequestsLock.Lock()
		defer gr.pendingRequestsLock.Unlock()
		if gr.pendingRequests[reqID] == ch {
			delete(gr.pendingRequests, reqID)
			close(ch)
		}
	}
}

// takePendingRequest removes and returns the response channel of a request.
func (gr *ChatRPC) takePendingRequest(reqID int64) (chan *jsoncmd.Container[json.RawMessage], bool) {
	gr.pendingRequestsLock.Lock()
	defer gr.pendingRequestsLock.Unlock()
	ch, ok := gr.pendingRequests[reqID]
	delete(gr.pendingRequests, reqID)
	return ch, ok
}

func (gr *ChatRPC) clearPendingRequests() {
	gr.pendingRequestsLock.Lock()
	defer gr.pendingRequestsLock.Unlock()
	for reqID, ch := range gr.pendingRequests {
		close(ch)
		delete(gr.pendingRequests, reqID)
	}
}

func executeRequest[Req, Resp any](gr *ChatRPC, ctx context.Context, spec jsoncmd.ClientCommandSpec[Req, Resp], data Req) (Resp, error) {
	reqID, ch, done := gr.registerRequest()
	defer done()
	formatted := spec.Format(data, reqID)
	rawData, err := gr.rawRequest(ctx, formatted, reqID, formatted.Command, ch)
	if err != nil {
		var zero Resp
		return zero, err
	}
	return spec.Parse(rawData)
}

func executeRequestNoResponse[Req any](gr *ChatRPC, ctx context.Context, spec jsoncmd.ClientCommandSpec[Req, *jsoncmd.Empty], data Req) error {
	_, err := executeRequest(gr, ctx, spec, data)
	return err
}

// errorFromResponse converts an error response into a Go error. The server
// sends the message as a JSON string, but anything else is passed through raw.
func errorFromResponse(data json.RawMessage) error {
	var errMsg string
	if json.Unmarshal(data, &errMsg) != nil || errMsg == "" {
		errMsg = string(data)
	}
	return errors.New(errMsg)
}

func (gr *ChatRPC) rawRequest(
	ctx context.Context,
	payload any,
	reqID int64,
	cmd jsoncmd.Name,
	ch <-chan *jsoncmd.Container[json.RawMessage],
) (json.RawMessage, error) {
	conn := gr.conn.Load()
	if conn == nil {
		return nil, ErrNotConnectedToWebsocket
	}
	zerolog.Ctx(ctx).Trace().Int64("req_id", reqID).Stringer("command", cmd).Msg("Sending websocket request")
	if err := writeWebsocketJSON(ctx, conn, payload); err != nil {
		return nil, err
	}
	select {
	case <-ctx.Done():
		cause := context.Cause(ctx)
		go gr.cancelRequest(reqID, cause.Error())
		return nil, fmt.Errorf("context finished while waiting for response: %w", cause)
	case resp := <-ch:
		switch {
		case resp == nil:
			return nil, ErrWebsocketClosedBeforeResponseReceived
		case resp.Command == jsoncmd.RespError:
			return nil, errorFromResponse(resp.Data)
		default:
			return resp.Data, nil
		}
	}
}

// eventLoop hands events to EventHandler in order and advances the resume
// point after each one.
func (gr *ChatRPC) eventLoop(ctx context.Context, evtChan <-chan wrappedEvent) {
	for {
		var evt wrappedEvent
		select {
		case <-ctx.Done():
			return
		case evt = <-evtChan:
		}
		if evt.Data == nil {
			return
		}
		if runData, ok := evt.Data.(*jsoncmd.RunData); ok {
			gr.runID.Store(&runData.RunID)
		}
		gr.handleEvent(ctx, evt.Data)
		gr.lastReqID.Store(evt.ReqID)
	}
}

func (gr *ChatRPC) handleEvent(ctx context.Context, evt any) {
	defer func() {
		if rvr := recover(); rvr != nil {
			logEvt := zerolog.Ctx(ctx).Error().Bytes(zerolog.ErrorStackFieldName, debug.Stack())
			if err, ok := rvr.(error); ok {
				logEvt = logEvt.Err(err)
			} else {
				logEvt = logEvt.Any(zerolog.ErrorFieldName, rvr)
			}
			logEvt.Msg("Panic in event handler")
		}
	}()
	gr.EventHandler(ctx, evt)
}

func (gr *ChatRPC) pingLoop(ctx context.Context, ws *websocket.Conn) {
	ticker := time.NewTicker(PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		_, lastID := gr.ResumePoint()
		ping := &jsoncmd.Container[jsoncmd.PingParams]{
			Command:   jsoncmd.ReqPing,
			RequestID: gr.nextRequestID(),
			Data:      jsoncmd.PingParams{LastReceivedID: lastID},
		}
		if err := writeWebsocketJSON(ctx, ws, ping); err != nil {
			zerolog.Ctx(ctx).Err(err).Msg("Failed to send ping over websocket")
		}
	}
}

func (gr *ChatRPC) readLoop(
	ctx context.Context,
	ws *websocket.Conn,
	cancelFunc context.CancelFunc,
	evtChan chan<- wrappedEvent,
	reconnect func(),
) {
	log := zerolog.Ctx(ctx)
	for {
		cmd, err := readWebsocketJSON(ctx, log, ws)
		if err != nil {
			log.Err(err).Msg("Error reading from websocket")
			break
		} else if cmd != nil && !gr.dispatch(ctx, log, cmd, evtChan) {
			break
		}
	}
	close(evtChan)
	cancelFunc()
	// Disconnect swaps the connection out before closing it, so still owning
	// it here means the connection dropped on its own.
	if gr.conn.CompareAndSwap(ws, nil) {
		gr.connCtx.Store(nil)
		gr.clearPendingRequests()
		go reconnect()
	}
}

var newlineBytes = []byte("\n")

// readWebsocketJSON reads one message. Messages that can't be decoded are
// logged and returned as nil without an error so that the read loop continues.
func readWebsocketJSON(ctx context.Context, log *zerolog.Logger, ws *websocket.Conn) (*jsoncmd.Container[json.RawMessage], error) {
	msgType, reader, err := ws.Reader(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if leftover, _ := io.ReadAll(reader); len(leftover) > 0 && !bytes.Equal(leftover, newlineBytes) {
			log.Warn().Bytes("data", leftover).Msg("Unexpected data in websocket reader")
		}
	}()
	if msgType != websocket.MessageText {
		log.Warn().Stringer("message_type", msgType).Msg("Unexpected message type from websocket")
		return nil, nil
	}
	var cmd jsoncmd.Container[json.RawMessage]
	if err = json.NewDecoder(reader).Decode(&cmd); err != nil {
		log.Err(err).Msg("Failed to decode JSON from websocket")
		return nil, nil
	}
	return &cmd, nil
}

// dispatch routes a message to the request waiting for it or to the event
// loop. It returns false if the connection context ended while the event
// channel was full.
func (gr *ChatRPC) dispatch(ctx context.Context, log *zerolog.Logger, cmd *jsoncmd.Container[json.RawMessage], evtChan chan<- wrappedEvent) bool {
	switch cmd.Command {
	case jsoncmd.RespPong:
		log.Trace().Int64("ping_id", cmd.RequestID).Msg("Received pong from server")
		return true
	case jsoncmd.RespSuccess, jsoncmd.RespError:
		ch, ok := gr.takePendingRequest(cmd.RequestID)
		if !ok {
			log.Warn().
				Int64("request_id", cmd.RequestID).
				RawJSON("response_data", cmd.Data).
				Msg("Received response for unknown request")
			return true
		}
		log.Trace().Int64("request_id", cmd.RequestID).Msg("Received response")
		ch <- cmd
		close(ch)
		return true
	}
	we := wrappedEvent{Data: parseEvent(ctx, cmd), ReqID: cmd.RequestID}
	select {
	case evtChan <- we:
		return true
	default:
	}
	log.Warn().
		Int64("req_id", cmd.RequestID).
		Stringer("command", cmd.Command).
		Msg("Event channel is full, blocking websocket reads")
	select {
	case evtChan <- we:
		return true
	case <-ctx.Done():
		return false
	}
}

var eventPayloads = map[jsoncmd.Name]func() any{
	jsoncmd.EventSendComplete:  func() any { return &jsoncmd.SendComplete{} },
	jsoncmd.EventNewMessage:    func() any { return &jsoncmd.NewMessage{} },
	jsoncmd.EventMessageEdited: func() any { return &jsoncmd.MessageEdited{} },
	jsoncmd.EventRunID:         func() any { return &jsoncmd.RunData{} },
}

// parseEvent decodes the payload of a known event. Unknown events and payloads
// that fail to decode are passed on as the raw container.
func parseEvent(ctx context.Context, evt *jsoncmd.Container[json.RawMessage]) any {
	newPayload, ok := eventPayloads[evt.Command]
	if !ok {
		return evt
	}
	payload := newPayload()
	if err := json.Unmarshal(evt.Data, payload); err != nil {
		zerolog.Ctx(ctx).Err(err).
			Int64("event_id", evt.RequestID).
			Stringer("event_type", evt.Command).
			Msg("Event payload didn't match its type, passing it on raw")
		return evt
	}
	return payload
}
