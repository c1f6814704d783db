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

	"github.com/zyedidia/clipboard"

	"go.mau.fi/chatroom/pkg/chatroom"
)

// Clipboard writes to one of the system clipboard registers.
type Clipboard struct {
	Register string
}

var _ chatroom.Clipboard = (*Clipboard)(nil)

func NewClipboard(register string) *Clipboard {
	if register == "" {
		register = "clipboard"
	}
	return &Clipboard{Register: register}
}

func (cb *Clipboard) WriteText(text string) error {
	if cb.Register != "clipboard" && cb.Register != "primary" {
		return fmt.Errorf("%w: register %q unsupported", chatroom.ErrClipboardUnavailable, cb.Register)
	}
	err := clipboard.WriteAll(text, cb.Register)
	if err != nil {
		return fmt.Errorf("%w: %w", chatroom.ErrClipboardUnavailable, err)
	}
	return nil
}
