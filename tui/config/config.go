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

package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"codeberg.org/tslocum/cbind"
	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog"
	"go.mau.fi/util/exerrors"
	"go.mau.fi/util/ptr"
	"go.mau.fi/zeroconfig"
	"gopkg.in/yaml.v3"
	"maunium.net/go/mautrix/id"

	"go.mau.fi/chatroom/tui/debug"
)

type UserPreferences struct {
	HideTimestamp bool `yaml:"hide_timestamp"`
	// Maximum display width of the quoted message shown in the reply banner.
	PreviewWidth int `yaml:"preview_width"`
	// Clipboard register used by /copy: clipboard or primary.
	ClipboardRegister string `yaml:"clipboard_register"`
}

type Keybind struct {
	Mod tcell.ModMask
	Key tcell.Key
	Ch  rune
}

type ParsedKeybindings struct {
	Room   map[Keybind]string
	Visual map[Keybind]string
}

type RawKeybindings struct {
	Room   map[string]string `yaml:"room,omitempty"`
	Visual map[string]string `yaml:"visual,omitempty"`
}

// Config contains the main config of the chatroom terminal client.
type Config struct {
	Server   string    `yaml:"server"`
	Username string    `yaml:"username"`
	Password string    `yaml:"password"`
	UserID   id.UserID `yaml:"user_id"`
	RoomID   id.RoomID `yaml:"room_id"`
	// ReadOnly hides the composer and only allows reading the room.
	ReadOnly bool `yaml:"read_only"`

	Backspace1RemovesWord bool `yaml:"backspace1_removes_word"`
	Backspace2RemovesWord bool `yaml:"backspace2_removes_word"`

	AlwaysClearScreen bool `yaml:"always_clear_screen"`

	Preferences UserPreferences `yaml:"preferences"`

	LogConfig zeroconfig.Config `yaml:"log_config"`

	Dir string `yaml:"-"`

	// Set from command-line flags, these take precedence over the file.
	ServerOverride string    `yaml:"-"`
	RoomIDOverride id.RoomID `yaml:"-"`
	ForceReadOnly  bool      `yaml:"-"`

	Keybindings ParsedKeybindings `yaml:"-"`
}

func GetConfigDirectory() string {
	if root := os.Getenv("CHATROOM_ROOT"); root != "" {
		return filepath.Join(root, "config")
	} else if configHome := os.Getenv("CHATROOM_CONFIG_HOME"); configHome != "" {
		return configHome
	}
	return filepath.Join(exerrors.Must(os.UserConfigDir()), "chatroom")
}

func GetLogDirectory() string {
	if root := os.Getenv("CHATROOM_ROOT"); root != "" {
		return filepath.Join(root, "logs")
	} else if logsHome := os.Getenv("CHATROOM_LOGS_HOME"); logsHome != "" {
		return logsHome
	} else if xdgStateHome := os.Getenv("XDG_STATE_HOME"); xdgStateHome != "" {
		return filepath.Join(xdgStateHome, "chatroom")
	} else if runtime.GOOS == "darwin" {
		return filepath.Join(exerrors.Must(os.UserHomeDir()), "Library", "Logs", "chatroom")
	} else if runtime.GOOS == "windows" {
		return filepath.Join(exerrors.Must(os.UserCacheDir()), "logs")
	} else {
		return filepath.Join(exerrors.Must(os.UserHomeDir()), ".local", "state", "chatroom")
	}
}

// NewConfig creates a config that loads data from the given directory.
func NewConfig(dir string) *Config {
	return &Config{
		Dir: dir,

		Backspace1RemovesWord: true,
		AlwaysClearScreen:     true,

		Preferences: UserPreferences{
			PreviewWidth:      60,
			ClipboardRegister: "clipboard",
		},

		LogConfig: zeroconfig.Config{
			Writers: []zeroconfig.WriterConfig{{
				Type:   zeroconfig.WriterTypeFile,
				Format: zeroconfig.LogFormatJSON,
				FileConfig: zeroconfig.FileConfig{
					Filename:   filepath.Join(GetLogDirectory(), "terminal.log"),
					MaxSize:    100,
					MaxBackups: 10,
				},
			}},
			MinLevel: ptr.Ptr(zerolog.DebugLevel),
		},
	}
}

func (config *Config) LoadAll() error {
	if err := config.Load(); err != nil {
		return err
	}
	return config.LoadKeybindings()
}

// Load loads the config from terminal.yaml in the directory given to the config struct.
func (config *Config) Load() error {
	err := config.load("config", config.Dir, "terminal.yaml", config)
	if err != nil {
		return fmt.Errorf("failed to load terminal.yaml: %w", err)
	}
	if config.ServerOverride != "" {
		config.Server = config.ServerOverride
	}
	if config.RoomIDOverride != "" {
		config.RoomID = config.RoomIDOverride
	}
	config.ReadOnly = config.ReadOnly || config.ForceReadOnly
	return nil
}

//go:embed keybindings.yaml
var DefaultKeybindings string

func parseKeybindings(input map[string]string) (map[Keybind]string, error) {
	output := make(map[Keybind]string, len(input))
	for shortcut, action := range input {
		mod, key, ch, err := cbind.Decode(shortcut)
		if err != nil {
			return nil, fmt.Errorf("failed to parse keybinding %s -> %s: %w", shortcut, action, err)
		}
		if key == tcell.KeyEscape {
			ch = 0
		}
		output[Keybind{Mod: mod, Key: key, Ch: ch}] = action
	}
	return output, nil
}

func (config *Config) LoadKeybindings() error {
	var inputConfig RawKeybindings
	err := yaml.Unmarshal([]byte(DefaultKeybindings), &inputConfig)
	if err != nil {
		return fmt.Errorf("failed to unmarshal default keybindings: %w", err)
	}
	err = config.load("keybindings", config.Dir, "terminal-keybindings.yaml", &inputConfig)
	if err != nil {
		return fmt.Errorf("failed to load terminal-keybindings.yaml: %w", err)
	}
	config.Keybindings.Room, err = parseKeybindings(inputConfig.Room)
	if err != nil {
		return err
	}
	config.Keybindings.Visual, err = parseKeybindings(inputConfig.Visual)
	return err
}

func (config *Config) load(name, dir, file string, target any) error {
	path := filepath.Join(dir, file)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		debug.Print("Failed to read", name, "from", path)
		return err
	}
	err = yaml.Unmarshal(data, target)
	if err != nil {
		debug.Print("Failed to parse", name, "at", path)
		return err
	}
	return nil
}
