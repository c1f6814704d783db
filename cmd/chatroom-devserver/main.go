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
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.mau.fi/util/exzerolog"
	flag "maunium.net/go/mauflag"

	"go.mau.fi/chatroom/pkg/devserver"
	"go.mau.fi/chatroom/pkg/devserver/database"
)

var configPath = flag.MakeFull("c", "config", "Path to the development server config.", "devserver.yaml").String()
var listenAddr = flag.MakeFull("l", "listen", "Address to listen on instead of the one in the config.", "").String()
var wantHelp, _ = flag.MakeHelpFlag()

func main() {
	flag.SetHelpTitles(
		"chatroom-devserver - A local backend for developing the chatroom client.",
		"chatroom-devserver [-h] [-c <path>] [-l <address>]",
	)
	err := flag.Parse()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		flag.PrintHelp()
		os.Exit(1)
	} else if *wantHelp {
		flag.PrintHelp()
		os.Exit(0)
	}

	cfg, err := devserver.LoadConfig(*configPath)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if *listenAddr != "" {
		cfg.ListenAddress = *listenAddr
	}
	log, err := cfg.Logging.Compile()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Failed to initialize logger:", err)
		os.Exit(2)
	}
	exzerolog.SetupDefaults(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = log.WithContext(ctx)

	db, err := database.Open(ctx, cfg.DatabaseURI, *log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	srv := devserver.New(cfg, db, log)
	httpServer := &http.Server{
		Addr:    cfg.ListenAddress,
		Handler: srv.Handler(),
	}
	go func() {
		<-ctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()
	log.Info().
		Str("listen_address", cfg.ListenAddress).
		Str("run_id", srv.RunID).
		Int("user_count", len(cfg.Users)).
		Msg("Starting server")
	err = httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server closed with error")
	}
	if err = db.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close database")
	}
}
