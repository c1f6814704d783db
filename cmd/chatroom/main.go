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

package main

import (
	"errors"
	"fmt"
	"os"

	flag "maunium.net/go/mauflag"
	"maunium.net/go/mautrix/id"

	"go.mau.fi/chatroom/tui"
	"go.mau.fi/chatroom/tui/config"
	"go.mau.fi/chatroom/tui/debug"
)

var (
	Version   = "0.1.0"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var configDir = flag.MakeFull("c", "config", "Directory containing terminal.yaml.", config.GetConfigDirectory()).String()
var roomID = flag.MakeFull("r", "room", "Room to open instead of the one in the config.", "").String()
var server = flag.MakeFull("s", "server", "Backend URL to use instead of the one in the config.", "").String()
var readOnly = flag.MakeFull("", "read-only", "Open the room without a composer.", "false").Bool()
var noPrettyPanic = flag.MakeFull("", "no-pretty-panic", "Re-panic instead of writing crash reports to a file.", "false").Bool()
var version = flag.MakeFull("v", "version", "View version and quit.", "false").Bool()
var wantHelp, _ = flag.MakeHelpFlag()

func main() {
	flag.SetHelpTitles(
		"chatroom - A terminal chat room client.",
		"chatroom [-hv] [-c <path>] [-r <room ID>] [-s <url>] [--read-only] [--no-pretty-panic]",
	)
	err := flag.Parse()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		flag.PrintHelp()
		os.Exit(1)
	} else if *wantHelp {
		flag.PrintHelp()
		os.Exit(0)
	} else if *version {
		fmt.Printf("chatroom %s (commit %s, built at %s)\n", Version, Commit, BuildTime)
		os.Exit(0)
	}
	debug.RecoverPrettyPanic = !*noPrettyPanic

	ui := tui.NewChatroomTUI(*configDir)
	ui.Config.RoomIDOverride = id.RoomID(*roomID)
	ui.Config.ServerOverride = *server
	ui.Config.ForceReadOnly = *readOnly
	err = ui.Run()
	if errors.Is(err, tui.ErrMissingCredentials) {
		_, _ = fmt.Fprintf(os.Stderr, "%v (config directory: %s)\n", err, *configDir)
		os.Exit(2)
	} else if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Fatal error:", err)
		os.Exit(1)
	}
}
