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
	"sort"
	"strings"
	"unicode"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/mattn/go-runewidth"
	"maunium.net/go/mautrix/id"
)

func findWordToTabComplete(text string) string {
	output := ""
	runes := []rune(text)
	for i := len(runes) - 1; i >= 0; i-- {
		if unicode.IsSpace(runes[i]) {
			break
		}
		output = string(runes[i]) + output
	}
	return output
}

// AutocompleteUser ranks the given users by how well they match the word.
// An exact match is returned alone.
func AutocompleteUser(word string, users []id.UserID) []string {
	if len(word) == 0 {
		return nil
	}
	targets := make([]string, len(users))
	for i, user := range users {
		if string(user) == word {
			return []string{string(user)}
		}
		targets[i] = string(user)
	}
	ranks := fuzzy.RankFindFold(word, targets)
	sort.Sort(ranks)
	completions := make([]string, len(ranks))
	for i, rank := range ranks {
		completions[i] = rank.Target
	}
	return completions
}

func (view *RoomView) autocomplete(word string, startIndex int) (strCompletions []string, strCompletion string) {
	if len(word) == 0 {
		return
	}
	if startIndex == 0 {
		strCompletions = AutocompleteCommand(word)
	}
	if len(strCompletions) == 0 {
		strCompletions = AutocompleteUser(word, view.Room.Senders())
		if len(strCompletions) == 1 && startIndex == 0 {
			strCompletion = strCompletions[0] + ":"
			strCompletions = nil
			return
		}
	}
	if len(strCompletions) == 1 {
		strCompletion = strCompletions[0]
		strCompletions = nil
	}
	return
}

func (view *RoomView) InputTabComplete(text string, cursorOffset int) {
	if len(text) == 0 {
		return
	}

	str := runewidth.Truncate(text, cursorOffset, "")
	word := findWordToTabComplete(str)
	startIndex := len(str) - len(word)

	strCompletions, strCompletion := view.autocomplete(word, startIndex)
	if len(strCompletion) > 0 {
		newText := str[:startIndex] + strCompletion + " " + strings.TrimPrefix(text, str)
		view.input.SetTextAndMoveCursor(newText)
	}
	view.SetCompletions(strCompletions)
}
