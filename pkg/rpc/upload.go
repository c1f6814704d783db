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
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"maunium.net/go/mautrix/id"

	"go.mau.fi/chatroom/pkg/rpc/jsoncmd"
)

type UploadParams struct {
	RoomID   id.RoomID
	FileName string
	Caption  string
	Data     []byte
	MimeType string
}

// UploadFile reads a local file and sends it to the room.
func (gr *ChatRPC) UploadFile(ctx context.Context, roomID id.RoomID, path, caption string) (*jsoncmd.UploadResponse, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return gr.Upload(ctx, &UploadParams{
		RoomID:   roomID,
		FileName: filepath.Base(path),
		Caption:  caption,
		Data:     data,
	})
}

func (gr *ChatRPC) Upload(ctx context.Context, params *UploadParams) (*jsoncmd.UploadResponse, error) {
	if params.MimeType == "" {
		params.MimeType = mimetype.Detect(params.Data).String()
	}
	query := url.Values{
		"room_id":  {params.RoomID.String()},
		"filename": {params.FileName},
	}
	if params.Caption != "" {
		query.Set("caption", params.Caption)
	}
	req, err := gr.newRequest(ctx, http.MethodPost, gr.BuildURLWithQuery(URLPath{"upload"}, query), bytes.NewReader(params.Data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", params.MimeType)
	zerolog.Ctx(ctx).Debug().
		Stringer("room_id", params.RoomID).
		Str("filename", params.FileName).
		Str("mime_type", params.MimeType).
		Int("size", len(params.Data)).
		Msg("Uploading file")
	resp, err := gr.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send upload request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d from upload endpoint", resp.StatusCode)
	}
	var uploadResp jsoncmd.UploadResponse
	if err = json.NewDecoder(resp.Body).Decode(&uploadResp); err != nil {
		return nil, fmt.Errorf("failed to decode upload response: %w", err)
	}
	return &uploadResp, nil
}
