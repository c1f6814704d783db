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
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog"
	"github.com/zyedidia/clipboard"
	"go.mau.fi/mauview"
	"go.mau.fi/util/exerrors"
	"go.mau.fi/util/exzerolog"

	"go.mau.fi/chatroom/pkg/rpc/client"
	"go.mau.fi/chatroom/pkg/rpc/jsoncmd"
	"go.mau.fi/chatroom/pkg/timeline"
	"go.mau.fi/chatroom/tui/config"
	"go.mau.fi/chatroom/tui/debug"
)

var ErrMissingCredentials = errors.New("server, username, password, user_id and room_id must be set in terminal.yaml")

type ChatroomTUI struct {
	client *client.ChatClient
	app    *mauview.Application
	log    *zerolog.Logger

	Config *config.Config

	RoomView *RoomView

	NeedsRender atomic.Bool
}

func init() {
	mauview.Styles.PrimitiveBackgroundColor = tcell.ColorDefault
	mauview.Styles.PrimaryTextColor = tcell.ColorDefault
	mauview.Styles.BorderColor = tcell.ColorDefault
	mauview.Styles.ContrastBackgroundColor = tcell.ColorDarkGreen
	if tcellDB := os.Getenv("TCELLDB"); len(tcellDB) == 0 {
		if info, err := os.Stat("/usr/share/tcell/database"); err == nil && info.IsDir() {
			_ = os.Setenv("TCELLDB", "/usr/share/tcell/database")
		}
	}
}

func NewChatroomTUI(configDir string) *ChatroomTUI {
	ui := &ChatroomTUI{
		app:    mauview.NewApplication(),
		Config: config.NewConfig(configDir),
	}
	debug.OnRecover = ui.app.ForceStop
	return ui
}

func (ui *ChatroomTUI) Run() error {
	if err := ui.Config.LoadAll(); err != nil {
		return err
	}
	ui.log = exerrors.Must(ui.Config.LogConfig.Compile())
	exzerolog.SetupDefaults(ui.log)
	if logDir := config.GetLogDirectory(); os.MkdirAll(logDir, 0700) == nil {
		debug.TraceDir = logDir
	}
	cfg := ui.Config
	if cfg.Server == "" || cfg.Username == "" || cfg.Password == "" || cfg.UserID == "" || cfg.RoomID == "" {
		return ErrMissingCredentials
	}
	ctx := ui.log.WithContext(context.Background())
	ui.client = exerrors.Must(client.NewChatClient(cfg.Server, cfg.UserID))
	if err := ui.client.Authenticate(ctx, cfg.Username, cfg.Password); err != nil {
		return err
	}

	mauview.Backspace2RemovesWord = cfg.Backspace2RemovesWord
	mauview.Backspace1RemovesWord = cfg.Backspace1RemovesWord
	ui.app.SetAlwaysClear(cfg.AlwaysClearScreen)
	_ = clipboard.Initialize()
	ui.RoomView = NewRoomView(ui, ui.client.GetOrCreateRoom(cfg.RoomID))
	ui.app.SetRoot(ui.RoomView)
	ui.RoomView.Focus()
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		go ui.Stop()
		<-c
		ui.Finish()
	}()

	go ui.Connect(ctx)
	return ui.app.Start()
}

func (ui *ChatroomTUI) Connect(ctx context.Context) {
	defer debug.Recover()
	ui.client.EventHandler = ui.eventHandler
	if err := ui.client.Connect(ctx); err != nil {
		ui.log.Err(err).Msg("Failed to connect")
		ui.RoomView.ShowError(err)
		return
	}
	ui.RoomView.LoadHistory()
}

func (ui *ChatroomTUI) eventHandler(ctx context.Context, rawEvt any) {
	switch evt := rawEvt.(type) {
	case *jsoncmd.NewMessage:
		if evt.Message != nil && evt.Message.RoomID == ui.RoomView.Room.ID {
			go ui.markRead(context.WithoutCancel(ctx), evt.Message)
		}
		if ui.NeedsRender.Load() {
			ui.Render()
		}
	case *jsoncmd.SendComplete, *jsoncmd.MessageEdited:
		if ui.NeedsRender.Load() {
			ui.Render()
		}
	}
}

func (ui *ChatroomTUI) markRead(ctx context.Context, msg *timeline.Message) {
	defer debug.Recover()
	err := ui.client.MarkRead(ctx, &jsoncmd.MarkReadParams{RoomID: msg.RoomID, EventID: msg.ID})
	if err != nil {
		ui.log.Warn().Err(err).Stringer("event_id", msg.ID).Msg("Failed to send read receipt")
	}
}

func (ui *ChatroomTUI) Stop() {
	debug.Print("Stopping")
	ui.RoomView.Unload()
	ui.client.Disconnect()
	debug.Print("Disconnection complete")
	ui.app.Stop()
	debug.Print("Stopped")
	os.Exit(0)
}

func (ui *ChatroomTUI) Finish() {
	ui.app.ForceStop()
	os.Exit(0)
}

func (ui *ChatroomTUI) Render() {
	ui.app.Redraw()
	ui.NeedsRender.Store(false)
}
