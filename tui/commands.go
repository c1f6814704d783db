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
	"errors"
	"fmt"
	"slices"
	"strings"
)

const (
	CmdReply  = "reply"
	CmdEdit   = "edit"
	CmdCopy   = "copy"
	CmdUpload = "upload"
	CmdCancel = "cancel"
	CmdQuit   = "quit"
)

type CommandDefinition struct {
	Name        string
	Aliases     []string
	Description string
	// Whether the command takes the rest of the line as an argument.
	TakesArgument    bool
	ArgumentRequired bool
}

var LocalCommands = []*CommandDefinition{{
	Name:        CmdReply,
	Description: "Select a message to reply to",
}, {
	Name:        CmdEdit,
	Description: "Select one of your messages to edit",
}, {
	Name:        CmdCopy,
	Description: "Copy the text of a message",
}, {
	Name:             CmdUpload,
	Aliases:          []string{"file"},
	Description:      "Upload a file to the room",
	TakesArgument:    true,
	ArgumentRequired: true,
}, {
	Name:        CmdCancel,
	Description: "Cancel the current reply or edit",
}, {
	Name:        CmdQuit,
	Aliases:     []string{"exit"},
	Description: "Quit the chatroom terminal",
}}

type Command struct {
	*CommandDefinition
	Argument string
}

var (
	ErrUnknownCommand     = errors.New("unknown command")
	ErrMissingArgument    = errors.New("missing argument")
	ErrUnexpectedArgument = errors.New("command doesn't take arguments")
)

const cmdSigil = "/"

func findCommand(name string) *CommandDefinition {
	for _, cmd := range LocalCommands {
		if cmd.Name == name || slices.Contains(cmd.Aliases, name) {
			return cmd
		}
	}
	return nil
}

// ParseCommand parses a slash command from the input. It returns nil without
// an error if the input isn't a command.
func ParseCommand(input string) (*Command, error) {
	if !strings.HasPrefix(input, cmdSigil) || strings.HasPrefix(input, cmdSigil+cmdSigil) {
		return nil, nil
	}
	name, argument, _ := strings.Cut(strings.TrimPrefix(input, cmdSigil), " ")
	name = strings.ToLower(name)
	argument = strings.TrimSpace(argument)
	def := findCommand(name)
	if def == nil {
		return nil, fmt.Errorf("%w /%s", ErrUnknownCommand, name)
	} else if def.ArgumentRequired && argument == "" {
		return nil, fmt.Errorf("%w for /%s", ErrMissingArgument, def.Name)
	} else if !def.TakesArgument && argument != "" {
		return nil, fmt.Errorf("%w: /%s", ErrUnexpectedArgument, def.Name)
	}
	return &Command{CommandDefinition: def, Argument: argument}, nil
}

// AutocompleteCommand returns the names of commands starting with the given word.
func AutocompleteCommand(word string) (completions []string) {
	if !strings.HasPrefix(word, cmdSigil) {
		return
	}
	word = strings.TrimPrefix(word, cmdSigil)
	for _, cmd := range LocalCommands {
		if strings.HasPrefix(cmd.Name, word) {
			completions = append(completions, cmdSigil+cmd.Name)
		}
	}
	return
}

func (view *RoomView) HandleCommand(cmd *Command) {
	switch cmd.Name {
	case CmdReply:
		view.StartSelecting(SelectReply)
	case CmdEdit:
		view.StartSelecting(SelectEdit)
	case CmdCopy:
		view.StartSelecting(SelectCopy)
	case CmdUpload:
		go view.Upload(cmd.Argument)
	case CmdCancel:
		view.ClearAllContext()
	case CmdQuit:
		go view.parent.Stop()
	}
}
