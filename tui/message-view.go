// gomuks - A terminal Matrix client written in Go.
// Copyright (C) 2025 Tulir Asokan
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package tui

import (
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gdamore/tcell/v2"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/mattn/go-runewidth"
	"github.com/rivo/uniseg"
	"go.mau.fi/mauview"
	"maunium.net/go/mautrix/id"
	"mvdan.cc/xurls/v2"

	"go.mau.fi/chatroom/pkg/timeline"
	"go.mau.fi/chatroom/tui/config"
)

type messageLine struct {
	msg   *timeline.Message
	first bool
	text  string
}

type MessageView struct {
	parent *RoomView
	config *config.Config
	lock   sync.RWMutex

	SenderWidth     int
	TimestampFormat string
	TimestampWidth  int

	ScrollOffset atomic.Int32
	height       atomic.Uint32
	totalHeight  atomic.Uint32

	dirty     atomic.Bool
	messages  []*timeline.Message
	lineBuf   []messageLine
	prevWidth int
	selected  *timeline.Message
}

func NewMessageView(parent *RoomView) *MessageView {
	view := &MessageView{
		parent: parent,
		config: parent.config,

		SenderWidth:     15,
		TimestampFormat: "15:04:05",
		TimestampWidth:  8,
	}
	view.dirty.Store(true)
	return view
}

// MarkDirty makes the next draw rebuild the line buffer from the timeline cache.
func (view *MessageView) MarkDirty() {
	view.dirty.Store(true)
}

func (view *MessageView) SetSelected(message *timeline.Message) {
	view.lock.Lock()
	view.selected = message
	view.lock.Unlock()
}

func (view *MessageView) GetSelected() *timeline.Message {
	view.lock.RLock()
	defer view.lock.RUnlock()
	return view.selected
}

func selectable(msg *timeline.Message) bool {
	return msg != nil && !msg.IsLocalEcho() && !msg.Redacted
}

// FindMessage returns the closest selectable message after (or before) the
// current one. A nil current message starts from the newest end.
func (view *MessageView) FindMessage(current *timeline.Message, forward bool) *timeline.Message {
	view.lock.RLock()
	defer view.lock.RUnlock()
	msgs := view.messages
	currentFound := current == nil
	for i := 0; i < len(msgs); i++ {
		index := i
		if !forward {
			index = len(msgs) - i - 1
		}
		msg := msgs[index]
		if !selectable(msg) {
			continue
		} else if currentFound {
			return msg
		} else if msg.ID == current.ID {
			currentFound = true
		}
	}
	return nil
}

func (view *MessageView) GetScrollOffset() int {
	return int(view.ScrollOffset.Load())
}

const WheelScrollOffsetDiff = 3

func (view *MessageView) OnMouseEvent(event mauview.MouseEvent) bool {
	if event.HasMotion() {
		return false
	}
	switch event.Buttons() {
	case tcell.WheelUp:
		if view.IsAtTop() {
			go view.parent.LoadHistory()
		} else {
			view.AddScrollOffset(WheelScrollOffsetDiff)
			return true
		}
	case tcell.WheelDown:
		view.AddScrollOffset(-WheelScrollOffsetDiff)
		return true
	case tcell.Button1:
		_, y := event.Position()
		line := view.TotalHeight() - view.GetScrollOffset() - view.Height() + y
		view.lock.RLock()
		if line < 0 || line >= len(view.lineBuf) {
			view.lock.RUnlock()
			return false
		}
		msg := view.lineBuf[line].msg
		view.lock.RUnlock()
		if view.parent.selecting && selectable(msg) {
			view.parent.OnSelect(msg)
			return true
		}
	}
	return false
}

const PaddingAtTop = 5

func (view *MessageView) AddScrollOffset(diff int) {
	totalHeight := view.TotalHeight()
	height := view.Height()
	scrollOffset := view.GetScrollOffset() + diff
	if scrollOffset > totalHeight-height+PaddingAtTop {
		scrollOffset = totalHeight - height + PaddingAtTop
	}
	if scrollOffset < 0 {
		scrollOffset = 0
	}
	view.ScrollOffset.Store(int32(scrollOffset))
}

func (view *MessageView) Height() int {
	return int(view.height.Load())
}

func (view *MessageView) TotalHeight() int {
	return int(view.totalHeight.Load())
}

func (view *MessageView) IsAtTop() bool {
	return view.GetScrollOffset() >= view.TotalHeight()-view.Height()+PaddingAtTop
}

const (
	TimestampSenderGap = 1
	SenderMessageGap   = 3
)

func (view *MessageView) messageX() int {
	x := view.SenderWidth + SenderMessageGap
	if !view.config.Preferences.HideTimestamp {
		x += view.TimestampWidth + TimestampSenderGap
	}
	return x
}

// wrapText splits text into lines no wider than width display cells,
// breaking at spaces where possible and never inside a grapheme cluster.
func wrapText(text string, width int) []string {
	if width <= 0 {
		return nil
	}
	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		lineStart, lineWidth, breakAt, pos := 0, 0, -1, 0
		state := -1
		rest := paragraph
		for len(rest) > 0 {
			var cluster string
			var boundaries int
			cluster, rest, boundaries, state = uniseg.StepString(rest, state)
			clusterWidth := boundaries >> uniseg.ShiftWidth
			if lineWidth+clusterWidth > width && pos > lineStart {
				if cluster == " " {
					lines = append(lines, strings.TrimRight(paragraph[lineStart:pos], " "))
					pos += len(cluster)
					lineStart, lineWidth, breakAt = pos, 0, -1
					continue
				}
				end := pos
				if breakAt > lineStart {
					end = breakAt
				}
				lines = append(lines, strings.TrimRight(paragraph[lineStart:end], " "))
				lineStart, lineWidth, breakAt = end, uniseg.StringWidth(paragraph[end:pos]), -1
			}
			pos += len(cluster)
			lineWidth += clusterWidth
			if cluster == " " {
				breakAt = pos
			}
		}
		lines = append(lines, paragraph[lineStart:])
	}
	return lines
}

func renderBody(msg *timeline.Message) string {
	switch {
	case msg.Redacted:
		return "[message deleted]"
	case msg.MsgType() == "m.file", msg.MsgType() == "m.image", msg.MsgType() == "m.video", msg.MsgType() == "m.audio":
		return fmt.Sprintf("[%s] %s", strings.TrimPrefix(msg.MsgType(), "m."), msg.Body())
	default:
		return msg.PlainText()
	}
}

func (view *MessageView) update(width int) {
	if !view.dirty.Swap(false) && width == view.prevWidth {
		return
	}
	view.prevWidth = width
	view.messages = view.parent.Room.TimelineCache.Current()
	textWidth := width - view.messageX()
	newBuffer := make([]messageLine, 0, len(view.messages)*2)
	for _, msg := range view.messages {
		for i, line := range wrapText(renderBody(msg), textWidth) {
			newBuffer = append(newBuffer, messageLine{msg: msg, first: i == 0, text: line})
		}
	}
	prevHeight := len(view.lineBuf)
	view.lineBuf = newBuffer
	view.totalHeight.Store(uint32(len(newBuffer)))
	// Keep the viewport anchored when older history is prepended.
	if offset := view.GetScrollOffset(); offset > 0 && len(newBuffer) > prevHeight {
		view.ScrollOffset.Store(int32(offset + len(newBuffer) - prevHeight))
	}
}

func (view *MessageView) messageStyle(msg *timeline.Message) tcell.Style {
	style := tcell.StyleDefault.Foreground(mauview.Styles.PrimaryTextColor)
	switch {
	case msg.SendError != "":
		style = style.Foreground(tcell.ColorRed)
	case msg.Pending:
		style = style.Foreground(tcell.ColorGray)
	}
	if msg == view.selected {
		style = style.Reverse(true)
	}
	return style
}

func (view *MessageView) Draw(screen mauview.Screen) {
	view.lock.Lock()
	defer view.lock.Unlock()
	width, height := screen.Size()
	view.height.Store(uint32(height))
	view.update(width)

	if len(view.lineBuf) == 0 {
		mauview.PrintWithStyle(screen, "It's quite empty in here.", 0, height-1, width, mauview.AlignLeft, tcell.StyleDefault)
		return
	}

	usernameX := 0
	if !view.config.Preferences.HideTimestamp {
		usernameX += view.TimestampWidth + TimestampSenderGap
	}
	messageX := view.messageX()

	indexOffset := view.TotalHeight() - view.GetScrollOffset() - height
	viewStart := 0
	if indexOffset < 0 {
		viewStart = -indexOffset
		if indexOffset <= -PaddingAtTop {
			message := "Scroll up to load more messages."
			if view.parent.Room.Paginating.Load() {
				message = "Loading more messages..."
			} else if !view.parent.Chat.HasMoreHistory() {
				message = "This is the start of the room."
			}
			mauview.PrintWithStyle(screen, message, messageX, 0, width-messageX, mauview.AlignLeft, tcell.StyleDefault.Foreground(tcell.ColorGreen))
		}
	}

	for line := viewStart; line < height && indexOffset+line < len(view.lineBuf); line++ {
		entry := view.lineBuf[indexOffset+line]
		msg := entry.msg
		if entry.first || line == viewStart {
			if !view.config.Preferences.HideTimestamp {
				mauview.PrintWithStyle(screen, msg.Timestamp.Time.Format(view.TimestampFormat), 0, line, view.TimestampWidth, mauview.AlignLeft, tcell.StyleDefault.Foreground(tcell.ColorGray))
			}
			sender := runewidth.Truncate(msg.Sender.String(), view.SenderWidth, "…")
			mauview.PrintWithStyle(screen, sender, usernameX, line, view.SenderWidth, mauview.AlignRight, tcell.StyleDefault.Foreground(senderColor(msg.Sender)))
			if !msg.EditedAt.IsZero() {
				screen.SetContent(usernameX+view.SenderWidth, line, '*', nil, tcell.StyleDefault.Foreground(tcell.ColorDarkRed))
			}
		}
		style := view.messageStyle(msg)
		mauview.PrintWithStyle(screen, entry.text, messageX, line, width-messageX, mauview.AlignLeft, style)
		for _, loc := range urlRegex.FindAllStringIndex(entry.text, -1) {
			urlX := messageX + runewidth.StringWidth(entry.text[:loc[0]])
			mauview.PrintWithStyle(screen, entry.text[loc[0]:loc[1]], urlX, line, width-urlX, mauview.AlignLeft, style.Underline(true))
		}
	}
}

var urlRegex = xurls.Strict()

// senderColor picks a stable color for the user from their ID.
func senderColor(userID id.UserID) tcell.Color {
	hash := fnv.New32a()
	_, _ = hash.Write([]byte(userID))
	r, g, b := colorful.Hsl(float64(hash.Sum32()%360), 0.65, 0.6).RGB255()
	return tcell.NewRGBColor(int32(r), int32(g), int32(b))
}
