package main

import (
	"errors"
	"io/fs"
	"log/slog"

	"infojobs-candidatures/cmd/candidatures/commands"
	"infojobs-candidatures/lib/telemetry"
	"infojobs-candidatures/lib/util/serviceutil"

	"github.com/joho/godotenv"
)

func main() {
	telemetry.InitSlog(false)

	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to load .env", "err", err)
	}

	ctx, cancel := serviceutil.SignalContext()
	defer cancel()
	commands.ExecuteContext(ctx)
}
