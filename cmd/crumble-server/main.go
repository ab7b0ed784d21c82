// crumble-server issues the API token the live client authenticates
// with. It reads GEMINI_API_KEY from the environment or ./.env and
// serves POST /token.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/crumble-dev/crumble/internal/dotenv"
	"github.com/crumble-dev/crumble/pkg/token"
)

func main() {
	os.Exit(runMain())
}

func runMain() int {
	if err := dotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "load .env:", err)
		return 2
	}

	defaultAddr := ":3000"
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		defaultAddr = ":" + port
	}

	var addr string
	flag.StringVar(&addr, "addr", defaultAddr, "Listen address (default :3000, or :$PORT)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if strings.TrimSpace(os.Getenv("GEMINI_API_KEY")) == "" {
		logger.Warn("GEMINI_API_KEY not set; /token will return errors until it is")
	}

	handler := token.Handler(func() string { return os.Getenv("GEMINI_API_KEY") })
	logger.Info("token server listening", "addr", addr)
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Error("serve", "error", err)
		return 1
	}
	return 0
}
