// Copyright (c) 2025 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package chatroom

import (
	"bytes"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"maunium.net/go/mautrix/format"
)

const DefaultPreviewWidth = 80

var previewMarkdown = goldmark.New(goldmark.WithExtensions(extension.Strikethrough))

// BuildCitation formats the quote that is prepended to a reply.
//
//	> <@alice:example.com> first line
//	> second line
//
// The citation always ends with an empty line, so the reply text starts a new paragraph.
func BuildCitation(author, body string) string {
	var buf strings.Builder
	lines := strings.Split(strings.TrimRight(body, "\n"), "\n")
	for i, line := range lines {
		buf.WriteString("> ")
		if i == 0 {
			buf.WriteString("<")
			buf.WriteString(author)
			buf.WriteString("> ")
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
	return buf.String()
}

// QuotedPreview renders markdown into a single line of plain text that fits in
// the given display width.
func QuotedPreview(markdown string, width int) string {
	if width <= 0 {
		width = DefaultPreviewWidth
	}
	var buf bytes.Buffer
	text := markdown
	if err := previewMarkdown.Convert([]byte(markdown), &buf); err == nil {
		text = format.HTMLToText(buf.String())
	}
	text = strings.Join(strings.Fields(text), " ")
	return runewidth.Truncate(text, width, "…")
}
