// Copyright (c) 2025 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/coder/websocket"
	"golang.org/x/net/publicsuffix"

	"go.mau.fi/chatroom/pkg/rpc/jsoncmd"
)

const DefaultUserAgent = "chatroom-terminal/0.1"

type EventHandler func(ctx context.Context, evt any)

// ChatRPC is a websocket JSON RPC client for the chat backend.
type ChatRPC struct {
	BaseURL      *url.URL
	UserAgent    string
	EventHandler EventHandler

	http *http.Client

	stop    atomic.Pointer[context.CancelFunc]
	connCtx atomic.Pointer[context.Context]
	conn    atomic.Pointer[websocket.Conn]

	pendingRequests     map[int64]chan *jsoncmd.Container[json.RawMessage]
	pendingRequestsLock sync.Mutex
	reqIDCounter        int64

	// Resume point for reconnecting. Both are only advanced by the event
	// loop, after the event has been handed to EventHandler.
	runID     atomic.Pointer[string]
	lastReqID atomic.Int64
}

// ResumePoint returns the run ID and the ID of the last event that was fully
// handled. The server replays events after it when reconnecting.
func (gr *ChatRPC) ResumePoint() (runID string, lastEventID int64) {
	if ptr := gr.runID.Load(); ptr != nil {
		runID = *ptr
	}
	return runID, gr.lastReqID.Load()
}

func NewChatRPC(baseURL string) (*ChatRPC, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	return &ChatRPC{
		BaseURL:         parsed,
		UserAgent:       DefaultUserAgent,
		EventHandler:    func(ctx context.Context, evt any) {},
		http:            &http.Client{Jar: jar},
		pendingRequests: make(map[int64]chan *jsoncmd.Container[json.RawMessage]),
	}, nil
}

type URLPath []string

func (gr *ChatRPC) BuildRawURL(path URLPath) *url.URL {
	return gr.BaseURL.JoinPath(append([]string{"_chatroom"}, path...)...)
}

func (gr *ChatRPC) BuildURLWithQuery(path URLPath, query url.Values) string {
	built := gr.BuildRawURL(path)
	built.RawQuery = query.Encode()
	return built.String()
}

func (gr *ChatRPC) newRequest(ctx context.Context, method, reqURL string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare request: %w", err)
	}
	req.Header.Set("User-Agent", gr.UserAgent)
	return req, nil
}

// Authenticate logs into the backend with basic auth. The session cookie is
// stored in the client's cookie jar and reused for the websocket.
func (gr *ChatRPC) Authenticate(ctx context.Context, username, password string) error {
	req, err := gr.newRequest(ctx, http.MethodPost, gr.BuildRawURL(URLPath{"auth"}).String(), nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(username, password)
	resp, err := gr.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send auth request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code %d from auth endpoint", resp.StatusCode)
	}
	return nil
}
