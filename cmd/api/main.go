package main

import (
	"log/slog"
	"os"

	"github.com/metinatakli/cinema-booking-core/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}
