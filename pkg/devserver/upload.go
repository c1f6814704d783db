// Copyright (c) 2025 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package devserver

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/hlog"
	"go.mau.fi/util/exhttp"
	"go.mau.fi/util/jsontime"
	"go.mau.fi/util/random"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"go.mau.fi/chatroom/pkg/devserver/database"
	"go.mau.fi/chatroom/pkg/rpc/jsoncmd"
	"go.mau.fi/chatroom/pkg/timeline"
)

const (
	MaxUploadSize = 50 * 1024 * 1024
	MediaServer   = "localhost"
)

func msgTypeForMime(mimeType string) event.MessageType {
	switch strings.Split(mimeType, "/")[0] {
	case "image":
		return event.MsgImage
	case "video":
		return event.MsgVideo
	case "audio":
		return event.MsgAudio
	default:
		return event.MsgFile
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	userID := s.getSession(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "M_MISSING_TOKEN", "Not logged in")
		return
	}
	query := r.URL.Query()
	roomID := id.RoomID(query.Get("room_id"))
	if roomID == "" {
		writeError(w, http.StatusBadRequest, "M_BAD_JSON", "Missing room_id")
		return
	}
	fileName := query.Get("filename")
	if fileName == "" {
		fileName = "file"
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxUploadSize))
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		writeError(w, http.StatusRequestEntityTooLarge, "M_TOO_LARGE", "File is too large")
		return
	} else if err != nil {
		writeError(w, http.StatusBadRequest, "M_UNKNOWN", "Failed to read request body")
		return
	} else if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "M_BAD_JSON", "Empty file")
		return
	}
	mimeType := r.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = mimetype.Detect(data).String()
	}

	media := &database.Media{
		ID:        random.String(24),
		RoomID:    roomID,
		Uploader:  userID,
		MimeType:  mimeType,
		FileName:  fileName,
		Size:      int64(len(data)),
		Data:      data,
		CreatedAt: jsontime.UnixMilliNow(),
	}
	if err = s.DB.Media.Put(r.Context(), media); err != nil {
		log.Err(err).Msg("Failed to save uploaded file")
		writeError(w, http.StatusInternalServerError, "M_UNKNOWN", "Failed to save file")
		return
	}
	content := &event.MessageEventContent{
		MsgType:  msgTypeForMime(mimeType),
		Body:     fileName,
		FileName: fileName,
		URL:      id.ContentURI{Homeserver: MediaServer, FileID: media.ID}.CUString(),
		Info: &event.FileInfo{
			MimeType: mimeType,
			Size:     len(data),
		},
	}
	if caption := query.Get("caption"); caption != "" {
		content.Body = caption
	}
	var hash string
	if content.MsgType == event.MsgImage {
		hash, err = addImageInfo(data, content.Info)
		if err != nil {
			log.Debug().Err(err).Msg("Failed to generate image info")
		}
	}
	rawContent, err := json.Marshal(content)
	if err == nil && hash != "" {
		rawContent, err = setBlurhash(rawContent, hash)
	}
	if err != nil {
		log.Err(err).Msg("Failed to marshal file message content")
		writeError(w, http.StatusInternalServerError, "M_UNKNOWN", "Failed to create message")
		return
	}
	msg := &database.Message{Message: timeline.Message{
		ID:        newEventID(),
		RoomID:    roomID,
		Sender:    userID,
		Timestamp: jsontime.UnixMilliNow(),
		Content:   rawContent,
	}}
	if err = s.DB.Message.Insert(r.Context(), msg); err != nil {
		log.Err(err).Msg("Failed to save file message")
		writeError(w, http.StatusInternalServerError, "M_UNKNOWN", "Failed to save message")
		return
	}
	log.Debug().
		Str("media_id", media.ID).
		Str("mime_type", mimeType).
		Int("size", len(data)).
		Stringer("event_id", msg.ID).
		Msg("File uploaded")
	// The uploader's other sessions need the message too, and applying it twice is harmless.
	s.publish(&bufferedEvent{
		Command: jsoncmd.EventNewMessage,
		Data:    &jsoncmd.NewMessage{Message: msg.AsTimeline()},
	})
	exhttp.WriteJSONResponse(w, http.StatusOK, &jsoncmd.UploadResponse{Message: msg.AsTimeline()})
}

func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	if s.getSession(r) == "" {
		writeError(w, http.StatusUnauthorized, "M_MISSING_TOKEN", "Not logged in")
		return
	}
	media, err := s.DB.Media.Get(r.Context(), r.PathValue("mediaID"))
	if err != nil {
		hlog.FromRequest(r).Err(err).Msg("Failed to get media")
		writeError(w, http.StatusInternalServerError, "M_UNKNOWN", "Failed to get media")
		return
	} else if media == nil {
		writeError(w, http.StatusNotFound, "M_NOT_FOUND", "Media not found")
		return
	}
	w.Header().Set("Content-Type", media.MimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(media.Size, 10))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": media.FileName}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(media.Data)
}
