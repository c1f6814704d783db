// Copyright (c) 2025 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package devserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/buckket/go-blurhash"
	"github.com/disintegration/imaging"
	"github.com/tidwall/sjson"
	_ "golang.org/x/image/webp"
	"maunium.net/go/mautrix/event"
)

const blurhashPath = `info.xyz\.amorgan\.blurhash`

// addImageInfo fills the dimensions of an uploaded image and returns its
// blurhash. Errors mean the file couldn't be decoded as an image.
func addImageInfo(data []byte, info *event.FileInfo) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}
	bounds := img.Bounds()
	info.Width = bounds.Dx()
	info.Height = bounds.Dy()
	hash, err := blurhash.Encode(4, 3, imaging.Fit(img, 64, 64, imaging.Box))
	if err != nil {
		return "", fmt.Errorf("failed to generate blurhash: %w", err)
	}
	return hash, nil
}

func setBlurhash(content json.RawMessage, hash string) (json.RawMessage, error) {
	return sjson.SetBytes(content, blurhashPath, hash)
}
