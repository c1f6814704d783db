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
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteTrace(t *testing.T) {
	TraceDir = t.TempDir()
	t.Cleanup(func() {
		TraceDir = ""
	})
	traceFile, err := writeTrace(errors.New("something broke"), []byte("goroutine 1 [running]:\n"))
	require.NoError(t, err)
	assert.Equal(t, TraceDir, filepath.Dir(traceFile))
	assert.True(t, strings.HasPrefix(filepath.Base(traceFile), "chatroom-panic-"))

	data, err := os.ReadFile(traceFile)
	require.NoError(t, err)
	assert.Equal(t, "something broke\ngoroutine 1 [running]:\n", string(data))
}

func TestWriteTrace_MissingDir(t *testing.T) {
	TraceDir = filepath.Join(t.TempDir(), "does-not-exist")
	t.Cleanup(func() {
		TraceDir = ""
	})
	_, err := writeTrace("oops", nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
