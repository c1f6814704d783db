// Copyright (c) 2025 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package devserver

import (
	"crypto/subtle"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"go.mau.fi/util/ptr"
	"go.mau.fi/zeroconfig"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
	"maunium.net/go/mautrix/id"
)

type User struct {
	Password string    `yaml:"password"`
	UserID   id.UserID `yaml:"user_id"`
}

// CheckPassword accepts either a bcrypt hash or a plaintext password in the config.
func (u User) CheckPassword(password string) bool {
	if strings.HasPrefix(u.Password, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(u.Password)) == 1
}

type Config struct {
	ListenAddress string            `yaml:"listen_address"`
	DatabaseURI   string            `yaml:"database"`
	Users         map[string]User   `yaml:"users"`
	Logging       zeroconfig.Config `yaml:"logging"`
}

func DefaultConfig() *Config {
	return &Config{
		ListenAddress: "localhost:29325",
		DatabaseURI:   "file:chatroom.db?_txlock=immediate",
		Users:         map[string]User{},
		Logging: zeroconfig.Config{
			MinLevel: ptr.Ptr(zerolog.DebugLevel),
			Writers: []zeroconfig.WriterConfig{{
				Type:   zeroconfig.WriterTypeStdout,
				Format: zeroconfig.LogFormatPrettyColored,
			}},
		},
	}
}

// LoadConfig reads the YAML config at path on top of the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err = yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	for username, user := range cfg.Users {
		if user.Password == "" {
			return nil, fmt.Errorf("user %s doesn't have a password", username)
		} else if user.UserID == "" {
			user.UserID = id.NewUserID(username, "localhost")
			cfg.Users[username] = user
		}
	}
	return cfg, nil
}
