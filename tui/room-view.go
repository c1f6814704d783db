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
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"go.mau.fi/mauview"
	"maunium.net/go/mautrix/id"

	"go.mau.fi/chatroom/pkg/chatroom"
	"go.mau.fi/chatroom/pkg/composer"
	"go.mau.fi/chatroom/pkg/rpc/store"
	"go.mau.fi/chatroom/pkg/timeline"
	"go.mau.fi/chatroom/tui/config"
	"go.mau.fi/chatroom/tui/debug"
)

type RoomView struct {
	topic   *mauview.TextView
	content *MessageView
	status  *mauview.TextField
	input   *mauview.InputArea
	// Shown in place of the input in read-only rooms.
	readOnlyNotice *mauview.TextField
	Room    *store.RoomStore
	Chat    *chatroom.Room

	topicScreen   *mauview.ProxyScreen
	contentScreen *mauview.ProxyScreen
	statusScreen  *mauview.ProxyScreen
	inputScreen   *mauview.ProxyScreen

	prevScreen mauview.Screen

	parent *ChatroomTUI
	config *config.Config

	selecting    bool
	selectReason SelectReason

	// stateLock guards the banner, the error line and the input toggle,
	// which are written from the goroutines that run room actions.
	stateLock    sync.RWMutex
	bannerTitle  string
	bannerBody   string
	lastError    string
	inputEnabled bool

	completions struct {
		list      []string
		textCache string
		time      time.Time
	}

	unlistenTimeline func()
}

var (
	_ chatroom.InputSurface = (*RoomView)(nil)
	_ chatroom.InputToggler = (*RoomView)(nil)
	_ chatroom.ActionBanner = (*RoomView)(nil)
	_ mauview.Focusable     = (*RoomView)(nil)
)

func NewRoomView(parent *ChatroomTUI, room *store.RoomStore) *RoomView {
	view := &RoomView{
		topic:  mauview.NewTextView(),
		status: mauview.NewTextField(),
		input:  mauview.NewInputArea(),
		Room:   room,

		readOnlyNotice: mauview.NewTextField().SetText("This room is read-only"),

		topicScreen:   &mauview.ProxyScreen{OffsetX: 0, OffsetY: 0, Height: TopicBarHeight},
		contentScreen: &mauview.ProxyScreen{OffsetX: 0, OffsetY: TopicBarHeight},
		statusScreen:  &mauview.ProxyScreen{OffsetX: 0, Height: StatusBarHeight},
		inputScreen:   &mauview.ProxyScreen{OffsetX: 0},

		parent: parent,
		config: parent.Config,

		inputEnabled: true,
	}
	view.content = NewMessageView(view)
	view.Chat = chatroom.NewRoom(chatroom.Params{
		RoomID:       room.ID,
		OwnUserID:    room.OwnUserID,
		Service:      parent.client,
		Input:        view,
		Banner:       view,
		Clipboard:    NewClipboard(parent.Config.Preferences.ClipboardRegister),
		OwnMessages:  room,
		PreviewWidth: parent.Config.Preferences.PreviewWidth,
		Log:          parent.log,
		ReadOnly:     parent.Config.ReadOnly,
	})

	view.input.
		SetTextColor(tcell.ColorDefault).
		SetBackgroundColor(tcell.ColorDefault).
		SetPlaceholder("Send a message...").
		SetPlaceholderTextColor(tcell.ColorGray).
		SetTabCompleteFunc(view.InputTabComplete).
		SetPressKeyUpAtStartFunc(view.EditPrevious)

	view.topic.
		SetTextColor(tcell.ColorWhite).
		SetBackgroundColor(tcell.ColorDarkGreen)
	view.topic.SetText(string(room.ID))

	view.status.SetBackgroundColor(tcell.ColorDimGray)

	view.unlistenTimeline = room.TimelineCache.Listen(func(_ []*timeline.Message) {
		view.content.MarkDirty()
		view.parent.NeedsRender.Store(true)
	})

	return view
}

// Unload detaches the view from the room store and resets the composer mode.
func (view *RoomView) Unload() {
	view.unlistenTimeline()
	view.Chat.NavigateAway()
}

func (view *RoomView) GetText() string {
	return view.input.GetText()
}

func (view *RoomView) SetText(text string) {
	view.input.SetTextAndMoveCursor(text)
}

func (view *RoomView) Clear() {
	view.input.SetTextAndMoveCursor("")
}

func (view *RoomView) Focus() {
	view.input.Focus()
}

func (view *RoomView) Blur() {
	view.StopSelecting()
	view.input.Blur()
}

func (view *RoomView) SetInputEnabled(enabled bool) {
	view.stateLock.Lock()
	view.inputEnabled = enabled
	view.stateLock.Unlock()
	if enabled {
		view.input.SetPlaceholder("Send a message...")
	} else {
		view.input.SetPlaceholder("Sending...")
	}
	view.parent.Render()
}

func (view *RoomView) isInputEnabled() bool {
	view.stateLock.RLock()
	defer view.stateLock.RUnlock()
	return view.inputEnabled
}

func (view *RoomView) Show(title, body string) {
	view.stateLock.Lock()
	view.bannerTitle = title
	view.bannerBody = body
	view.stateLock.Unlock()
}

func (view *RoomView) Dismiss() {
	view.stateLock.Lock()
	view.bannerTitle = ""
	view.bannerBody = ""
	view.stateLock.Unlock()
}

// ShowError puts an error on the status line until the next key press.
func (view *RoomView) ShowError(err error) {
	view.stateLock.Lock()
	view.lastError = err.Error()
	view.stateLock.Unlock()
	view.parent.Render()
}

func (view *RoomView) clearError() {
	view.stateLock.Lock()
	view.lastError = ""
	view.stateLock.Unlock()
}

type SelectReason string

const (
	SelectReply SelectReason = "reply to"
	SelectEdit  SelectReason = "edit"
	SelectCopy  SelectReason = "copy"
)

func (view *RoomView) StartSelecting(reason SelectReason) {
	view.selecting = true
	view.selectReason = reason
	if selected := view.content.GetSelected(); selected != nil {
		view.OnSelect(selected)
	} else {
		view.input.Blur()
		view.SelectPrevious()
	}
}

func (view *RoomView) StopSelecting() {
	view.selecting = false
	view.content.SetSelected(nil)
}

func (view *RoomView) OnSelect(message *timeline.Message) {
	if !view.selecting || message == nil {
		return
	}
	var err error
	switch view.selectReason {
	case SelectReply:
		err = view.Chat.StartReply(message)
	case SelectEdit:
		err = view.Chat.StartEdit(message)
	case SelectCopy:
		err = view.Chat.Copy(message)
	}
	if err != nil {
		debug.Printf("Failed to %s %s: %v", view.selectReason, message.ID, err)
		view.ShowError(err)
	}
	view.StopSelecting()
	view.input.Focus()
}

func (view *RoomView) GetStatus() string {
	var buf strings.Builder

	view.stateLock.RLock()
	lastError, bannerTitle, bannerBody := view.lastError, view.bannerTitle, view.bannerBody
	view.stateLock.RUnlock()

	if lastError != "" {
		buf.WriteString("Error: ")
		buf.WriteString(lastError)
		buf.WriteString(" - ")
	}
	if bannerTitle == chatroom.EditingBannerTitle {
		buf.WriteString(bannerTitle)
		buf.WriteString(" - ")
	} else if bannerTitle != "" {
		buf.WriteString("Replying to ")
		buf.WriteString(bannerTitle)
		if bannerBody != "" {
			buf.WriteString(": ")
			buf.WriteString(bannerBody)
		}
		buf.WriteString(" - ")
	} else if view.selecting {
		buf.WriteString("Selecting message to ")
		buf.WriteString(string(view.selectReason))
		buf.WriteString(" - ")
	}

	if len(view.completions.list) > 0 {
		if view.completions.textCache != view.input.GetText() || view.completions.time.Add(10*time.Second).Before(time.Now()) {
			view.completions.list = []string{}
		} else {
			buf.WriteString(strings.Join(view.completions.list, ", "))
			buf.WriteString(" - ")
		}
	}

	if view.Room.Paginating.Load() {
		buf.WriteString("Loading history - ")
	}

	return strings.TrimSuffix(buf.String(), " - ")
}

// Constants defining the size of the room view grid.
const (
	TopicBarHeight  = 1
	StatusBarHeight = 1

	MaxInputHeight = 5
)

func (view *RoomView) Draw(screen mauview.Screen) {
	width, height := screen.Size()
	if width <= 0 || height <= 0 {
		return
	}

	if view.prevScreen != screen {
		view.topicScreen.Parent = screen
		view.contentScreen.Parent = screen
		view.statusScreen.Parent = screen
		view.inputScreen.Parent = screen
		view.prevScreen = screen
	}

	inputHeight := 1
	if !view.Chat.ReadOnly() {
		view.input.PrepareDraw(width)
		inputHeight = min(max(view.input.GetTextHeight(), 1), MaxInputHeight)
	}
	contentHeight := height - inputHeight - TopicBarHeight - StatusBarHeight

	view.topicScreen.Width = width
	view.contentScreen.Width = width
	view.contentScreen.Height = contentHeight
	view.statusScreen.OffsetY = view.contentScreen.YEnd()
	view.statusScreen.Width = width
	view.inputScreen.Width = width
	view.inputScreen.OffsetY = view.statusScreen.YEnd()
	view.inputScreen.Height = inputHeight

	view.topic.Draw(view.topicScreen)
	view.content.Draw(view.contentScreen)
	view.status.SetText(view.GetStatus())
	view.status.Draw(view.statusScreen)
	if view.Chat.ReadOnly() {
		view.readOnlyNotice.Draw(view.inputScreen)
	} else {
		view.input.Draw(view.inputScreen)
	}
}

func (view *RoomView) ClearAllContext() {
	view.StopSelecting()
	view.Chat.CancelAction()
	view.input.Focus()
}

func (view *RoomView) OnKeyEvent(event mauview.KeyEvent) bool {
	kb := config.Keybind{
		Key: event.Key(),
		Ch:  event.Rune(),
		Mod: event.Modifiers(),
	}
	view.clearError()

	if view.selecting {
		switch view.config.Keybindings.Visual[kb] {
		case "clear":
			view.StopSelecting()
			view.input.Focus()
		case "select_prev":
			view.SelectPrevious()
		case "select_next":
			view.SelectNext()
		case "confirm":
			view.OnSelect(view.content.GetSelected())
		default:
			return false
		}
		return true
	}

	if view.Chat.ReadOnly() {
		return view.onReadOnlyKeyEvent(kb)
	}
	switch view.config.Keybindings.Room[kb] {
	case "clear":
		view.ClearAllContext()
		return true
	case "scroll_up":
		if view.content.IsAtTop() {
			go view.LoadHistory()
		}
		view.content.AddScrollOffset(+view.content.Height() / 2)
		return true
	case "scroll_down":
		view.content.AddScrollOffset(-view.content.Height() / 2)
		return true
	case "edit_previous":
		view.EditPrevious()
		return true
	case "send":
		view.InputSubmit(view.input.GetText())
		return true
	}
	if !view.isInputEnabled() {
		return true
	}
	return view.input.OnKeyEvent(event)
}

// onReadOnlyKeyEvent handles keys when there is no input to type into. Only
// scrolling does anything.
func (view *RoomView) onReadOnlyKeyEvent(kb config.Keybind) bool {
	switch view.config.Keybindings.Room[kb] {
	case "scroll_up":
		if view.content.IsAtTop() {
			go view.LoadHistory()
		}
		view.content.AddScrollOffset(+view.content.Height() / 2)
		return true
	case "scroll_down":
		view.content.AddScrollOffset(-view.content.Height() / 2)
		return true
	}
	return false
}

func (view *RoomView) OnPasteEvent(event mauview.PasteEvent) bool {
	if view.Chat.ReadOnly() || !view.isInputEnabled() {
		return true
	}
	return view.input.OnPasteEvent(event)
}

func (view *RoomView) OnMouseEvent(event mauview.MouseEvent) bool {
	switch {
	case view.contentScreen.IsInArea(event.Position()):
		return view.content.OnMouseEvent(view.contentScreen.OffsetMouseEvent(event))
	case view.topicScreen.IsInArea(event.Position()):
		return view.topic.OnMouseEvent(view.topicScreen.OffsetMouseEvent(event))
	case view.inputScreen.IsInArea(event.Position()) && !view.Chat.ReadOnly():
		return view.input.OnMouseEvent(view.inputScreen.OffsetMouseEvent(event))
	}
	return false
}

func (view *RoomView) SetCompletions(completions []string) {
	view.completions.list = completions
	view.completions.textCache = view.input.GetText()
	view.completions.time = time.Now()
}

func (view *RoomView) EditPrevious() {
	err := view.Chat.EditPrevious()
	if err != nil && !errors.Is(err, chatroom.ErrNoMessageToEdit) {
		view.ShowError(err)
	}
}

func (view *RoomView) SelectNext() {
	if foundMsg := view.content.FindMessage(view.content.GetSelected(), true); foundMsg != nil {
		view.content.SetSelected(foundMsg)
	}
}

func (view *RoomView) SelectPrevious() {
	if foundMsg := view.content.FindMessage(view.content.GetSelected(), false); foundMsg != nil {
		view.content.SetSelected(foundMsg)
	}
}

func (view *RoomView) LoadHistory() {
	ctx := view.parent.log.WithContext(context.TODO())
	count, err := view.Chat.LoadMore(ctx)
	if errors.Is(err, chatroom.ErrAlreadyPaginating) {
		return
	} else if err != nil {
		view.ShowError(err)
		return
	}
	debug.Printf("Loaded %d messages of history in %s", count, view.Room.ID)
	view.parent.Render()
}

func (view *RoomView) InputSubmit(text string) {
	if len(text) == 0 {
		return
	} else if cmd, err := ParseCommand(text); err != nil {
		view.ShowError(err)
	} else if cmd != nil {
		view.input.SetTextAndMoveCursor("")
		view.HandleCommand(cmd)
	} else {
		go view.SendMessage()
	}
}

func (view *RoomView) SendMessage() {
	ctx := view.parent.log.WithContext(context.TODO())
	err := view.Chat.Submit(ctx)
	if err != nil && !errors.Is(err, composer.ErrEmptySubmission) {
		view.ShowError(err)
		return
	}
	view.content.AddScrollOffset(-view.content.GetScrollOffset())
	view.parent.Render()
}

func (view *RoomView) Upload(path string) {
	ctx := view.parent.log.WithContext(context.TODO())
	if err := view.Chat.Upload(ctx, path); err != nil {
		view.ShowError(err)
		return
	}
	view.parent.Render()
}

func (view *RoomView) OwnUserID() id.UserID {
	return view.Room.OwnUserID
}
