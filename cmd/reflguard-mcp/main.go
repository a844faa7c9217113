// reflguard-mcp serves the reflection checker as MCP tools over stdio or SSE.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/server"

	handlers "github.com/phobologic/reflguard/internal/server"
)

var version = "dev"

func main() {
	mode := flag.String("mode", "stdio", "Transport mode: stdio or sse")
	addr := flag.String("addr", ":8080", "HTTP listen address for SSE")
	path := flag.String("path", "/mcp/sse", "HTTP path for SSE connections")
	verbose := flag.Bool("v", false, "log debug output to stderr")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	// stdout carries the protocol in stdio mode, so logs go to stderr.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	s := server.NewMCPServer(
		"reflguard",
		version,
		server.WithToolCapabilities(false),
	)
	h := &handlers.Handlers{Logger: logger}
	h.RegisterTools(s)

	switch *mode {
	case "stdio":
		if err := server.ServeStdio(s); err != nil {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	case "sse":
		sseServer := server.NewSSEServer(s)

		// The message endpoint sits next to the SSE endpoint: /mcp/sse
		// pairs with /mcp/message.
		ssePath := *path
		messagePath := strings.Replace(ssePath, "/sse", "/message", 1)
		if messagePath == ssePath {
			messagePath = strings.TrimRight(ssePath, "/") + "/message"
		}

		mux := http.NewServeMux()
		mux.Handle(ssePath, sseServer.SSEHandler())
		mux.Handle(messagePath, sseServer.MessageHandler())

		logger.Info("starting SSE server",
			slog.String("addr", *addr),
			slog.String("sse", ssePath),
			slog.String("message", messagePath),
		)
		if err := http.ListenAndServe(*addr, mux); err != nil {
			logger.Error("HTTP server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown mode: %s\n", *mode)
		os.Exit(2)
	}
}
