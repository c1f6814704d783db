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

package debug

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
	badGlobalLog "github.com/rs/zerolog/log"
)

var RecoverPrettyPanic = true
var OnRecover func()

func Printf(text string, args ...any) {
	badGlobalLog.Debug().CallerSkipFrame(1).Msgf(text, args...) // zerolog-allow-msgf
}

func Print(text ...any) {
	msg := fmt.Sprintln(text...)
	badGlobalLog.Debug().CallerSkipFrame(1).Msg(msg[:len(msg)-1])
}

// Recover is deferred at the top of UI goroutines. With RecoverPrettyPanic
// set, the panic is written to a trace file in the temp directory and the
// process exits; otherwise it is re-raised after OnRecover has run.
func Recover() {
	if p := recover(); p != nil {
		if OnRecover != nil {
			OnRecover()
		}
		if RecoverPrettyPanic {
			PrettyPanic(p)
		} else {
			panic(p)
		}
	}
}

const Oops = ` __________
< Oh noes! >
 ‾‾‾\‾‾‾‾‾‾
     \   ^__^
      \  (XX)\_______
         (__)\       )\/\
          U  ||----W |
             ||     ||

A fatal error has occurred.

`

// TraceDir is where crash reports are written. Empty means the system temp directory.
var TraceDir string

func writeTrace(panic any, stack []byte) (string, error) {
	dir := TraceDir
	if dir == "" {
		dir = os.TempDir()
	}
	traceFile := filepath.Join(dir, fmt.Sprintf("chatroom-panic-%s.txt", time.Now().Format("2006-01-02--15-04-05")))
	var buf bytes.Buffer
	_, _ = fmt.Fprintln(&buf, panic)
	buf.Write(stack)
	return traceFile, os.WriteFile(traceFile, buf.Bytes(), 0600)
}

func PrettyPanic(panic any) {
	stack := debug.Stack()
	badGlobalLog.Error().
		Any(zerolog.ErrorFieldName, panic).
		Bytes(zerolog.ErrorStackFieldName, stack).
		Msg("Fatal panic")
	fmt.Print(Oops)
	traceFile, err := writeTrace(panic, stack)
	if err != nil {
		fmt.Printf("Saving the stack trace to %s failed: %v\n\n", traceFile, err)
		fmt.Println("Please include the error above and the stack trace below when reporting the crash.")
		fmt.Println("--------------------------------------------------------------------------------")
		fmt.Println(panic)
		_, _ = os.Stdout.Write(stack)
		fmt.Println("--------------------------------------------------------------------------------")
	} else {
		fmt.Println("The stack trace has been saved to", traceFile)
		fmt.Println("Please include the contents of that file when reporting the crash.")
	}
	os.Exit(1)
}
