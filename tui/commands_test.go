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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"maunium.net/go/mautrix/id"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		command  string
		argument string
		err      error
	}{
		{name: "PlainText", input: "hello world"},
		{name: "EscapedSlash", input: "//not a command"},
		{name: "Reply", input: "/reply", command: CmdReply},
		{name: "UpperCase", input: "/EDIT", command: CmdEdit},
		{name: "UploadWithPath", input: "/upload /tmp/cat picture.png", command: CmdUpload, argument: "/tmp/cat picture.png"},
		{name: "Alias", input: "/file ./a.txt", command: CmdUpload, argument: "./a.txt"},
		{name: "QuitAlias", input: "/exit", command: CmdQuit},
		{name: "UploadWithoutPath", input: "/upload ", err: ErrMissingArgument},
		{name: "Unknown", input: "/shrug", err: ErrUnknownCommand},
		{name: "UnexpectedArgument", input: "/copy primary", err: ErrUnexpectedArgument},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cmd, err := ParseCommand(test.input)
			if test.err != nil {
				assert.ErrorIs(t, err, test.err)
				assert.Nil(t, cmd)
				return
			}
			require.NoError(t, err)
			if test.command == "" {
				assert.Nil(t, cmd)
				return
			}
			require.NotNil(t, cmd)
			assert.Equal(t, test.command, cmd.Name)
			assert.Equal(t, test.argument, cmd.Argument)
		})
	}
}

func TestAutocompleteCommand(t *testing.T) {
	assert.Equal(t, []string{"/reply"}, AutocompleteCommand("/re"))
	assert.ElementsMatch(t, []string{"/copy", "/cancel"}, AutocompleteCommand("/c"))
	assert.Empty(t, AutocompleteCommand("re"))
	assert.Len(t, AutocompleteCommand("/"), len(LocalCommands))
}

func TestAutocompleteUser(t *testing.T) {
	users := []id.UserID{"@alice:example.com", "@bob:example.com", "@alicia:example.org"}

	assert.Equal(t, []string{"@bob:example.com"}, AutocompleteUser("@bob:example.com", users))
	assert.ElementsMatch(t, []string{"@alice:example.com", "@alicia:example.org"}, AutocompleteUser("ali", users))
	assert.Equal(t, []string{"@bob:example.com"}, AutocompleteUser("BOB", users))
	assert.Empty(t, AutocompleteUser("carol", users))
	assert.Empty(t, AutocompleteUser("", users))
}

func TestFindWordToTabComplete(t *testing.T) {
	assert.Equal(t, "@al", findWordToTabComplete("hello @al"))
	assert.Equal(t, "", findWordToTabComplete("hello "))
	assert.Equal(t, "/rep", findWordToTabComplete("/rep"))
}

func TestWrapText(t *testing.T) {
	assert.Equal(t, []string{"hello"}, wrapText("hello", 10))
	assert.Equal(t, []string{"hello", "world"}, wrapText("hello world", 8))
	assert.Equal(t, []string{"line one", "line two"}, wrapText("line one\nline two", 20))
	assert.Equal(t, []string{"abcde", "fghij", "k"}, wrapText("abcdefghijk", 5))
	assert.Equal(t, []string{"日本", "語"}, wrapText("日本語", 4))
	assert.Equal(t, []string{"hello", "world"}, wrapText("hello world", 5))
	assert.Equal(t, []string{"e\u0301e\u0301", "e\u0301"}, wrapText("e\u0301e\u0301e\u0301", 2), "combining marks stay with their base")
	assert.Nil(t, wrapText("anything", 0))
}

func TestSenderColor(t *testing.T) {
	assert.Equal(t, senderColor("@alice:localhost"), senderColor("@alice:localhost"))
	assert.NotEqual(t, senderColor("@alice:localhost"), senderColor("@bob:localhost"))
}

func TestURLRegex(t *testing.T) {
	text := "see https://example.com/docs and http://localhost:8080 too"
	matches := urlRegex.FindAllString(text, -1)
	assert.Equal(t, []string{"https://example.com/docs", "http://localhost:8080"}, matches)
}
