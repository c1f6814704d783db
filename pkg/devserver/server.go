// Copyright (c) 2025 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package devserver implements a small single-process chat backend that
// speaks the same websocket RPC protocol as the terminal client expects.
package devserver

import (
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"go.mau.fi/util/exhttp"
	"go.mau.fi/util/random"
	"go.mau.fi/util/requestlog"
	"maunium.net/go/mautrix/id"

	"go.mau.fi/chatroom/pkg/devserver/database"
)

const SessionCookieName = "chatroom_session"

type Server struct {
	Config *Config
	DB     *database.Database
	Log    *zerolog.Logger
	// Identifies the server process. Clients only get events replayed when
	// they reconnect to the same run.
	RunID  string
	Events *EventBuffer

	sessions     map[string]id.UserID
	sessionsLock sync.RWMutex

	conns     map[*wsConn]struct{}
	connsLock sync.Mutex
}

func New(cfg *Config, db *database.Database, log *zerolog.Logger) *Server {
	return &Server{
		Config:   cfg,
		DB:       db,
		Log:      log,
		RunID:    random.String(16),
		Events:   NewEventBuffer(MaxBufferedEvents),
		sessions: make(map[string]id.UserID),
		conns:    make(map[*wsConn]struct{}),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /_chatroom/auth", s.handleAuth)
	mux.HandleFunc("GET /_chatroom/websocket", s.handleWebsocket)
	mux.HandleFunc("POST /_chatroom/upload", s.handleUpload)
	mux.HandleFunc("GET /_chatroom/media/{mediaID}", s.handleMedia)
	return exhttp.ApplyMiddleware(
		mux,
		hlog.NewHandler(*s.Log),
		requestlog.AccessLogger(requestlog.Options{}),
	)
}

type errorResponse struct {
	ErrCode string `json:"errcode"`
	Error   string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, errcode, message string) {
	exhttp.WriteJSONResponse(w, status, &errorResponse{ErrCode: errcode, Error: message})
}

func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	username, password, ok := r.BasicAuth()
	if !ok {
		w.Header().Set("WWW-Authenticate", `Basic realm="chatroom"`)
		writeError(w, http.StatusUnauthorized, "M_MISSING_TOKEN", "Missing credentials")
		return
	}
	user, found := s.Config.Users[username]
	if !found || !user.CheckPassword(password) {
		hlog.FromRequest(r).Debug().Str("username", username).Msg("Rejected login with invalid credentials")
		writeError(w, http.StatusUnauthorized, "M_FORBIDDEN", "Invalid username or password")
		return
	}
	token := "crs_" + random.String(32)
	s.sessionsLock.Lock()
	s.sessions[token] = user.UserID
	s.sessionsLock.Unlock()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/_chatroom",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	hlog.FromRequest(r).Info().Stringer("user_id", user.UserID).Msg("User logged in")
	exhttp.WriteJSONResponse(w, http.StatusOK, map[string]any{"user_id": user.UserID})
}

func (s *Server) getSession(r *http.Request) id.UserID {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || !strings.HasPrefix(cookie.Value, "crs_") {
		return ""
	}
	s.sessionsLock.RLock()
	defer s.sessionsLock.RUnlock()
	return s.sessions[cookie.Value]
}

// publish stores the event for replay and queues it to every connected client
// allowed to see it.
func (s *Server) publish(evt *bufferedEvent) {
	s.connsLock.Lock()
	defer s.connsLock.Unlock()
	s.Events.Push(evt)
	container := evt.container()
	for conn := range s.conns {
		if evt.visibleTo(conn.userID) {
			conn.enqueue(container)
		}
	}
}

func (s *Server) removeConn(conn *wsConn) {
	s.connsLock.Lock()
	delete(s.conns, conn)
	s.connsLock.Unlock()
}
