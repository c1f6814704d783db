// Copyright (c) 2025 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package devserver

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"maunium.net/go/mautrix/event"
)

func makeTestPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := range width {
		for y := range height {
			img.Set(x, y, color.RGBA{R: uint8(x * 255 / width), G: uint8(y * 255 / height), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestAddImageInfo(t *testing.T) {
	info := &event.FileInfo{}
	hash, err := addImageInfo(makeTestPNG(t, 120, 80), info)
	require.NoError(t, err)
	assert.Equal(t, 120, info.Width)
	assert.Equal(t, 80, info.Height)
	// 4x3 components: size flag, max AC, DC and 11 AC values
	assert.Len(t, hash, 28)

	content, err := setBlurhash([]byte(`{"info":{"w":120}}`), hash)
	require.NoError(t, err)
	assert.Equal(t, hash, gjson.GetBytes(content, `info.xyz\.amorgan\.blurhash`).Str)
	assert.EqualValues(t, 120, gjson.GetBytes(content, "info.w").Int())

	_, err = addImageInfo([]byte("definitely not an image"), &event.FileInfo{})
	assert.Error(t, err)
}
