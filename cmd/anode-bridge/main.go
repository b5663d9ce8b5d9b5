// Command anode-bridge relays line-delimited JSON-RPC frames between standard
// input/output and the device server's socket transport. Lines typed before
// the connection is established are queued and flushed once it is up; every
// inbound frame is written to standard output, one envelope per line.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	anode "github.com/lsy1770/anode-mcp-client"
)

func main() {
	host := flag.String("host", "127.0.0.1", "Device server host")
	wsPort := flag.Int("ws-port", anode.DefaultWSPort, "Device server WebSocket port")
	cfgPath := flag.String("config", "", "Path to a YAML config file (overrides host/port flags)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg := anode.Config{Host: *host, WSPort: *wsPort}
	if *cfgPath != "" {
		loaded, err := anode.LoadConfig(*cfgPath)
		if err != nil {
			logger.Error("failed to load config", "err", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "err", err)
		os.Exit(1)
	}

	// Start reading stdin before dialing so lines typed while the
	// connection is coming up are queued rather than lost.
	lines := make(chan string, 64)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			if scanner.Text() == "" {
				continue
			}
			lines <- scanner.Text()
		}
	}()

	url := fmt.Sprintf("ws://%s:%d", cfg.Host, cfg.WSPort)
	transport := anode.NewWSTransport(url, anode.WithWSLogger(logger))

	ctx := context.Background()
	if err := transport.Open(ctx); err != nil {
		logger.Error("failed to connect", "url", url, "err", err)
		os.Exit(1)
	}
	defer transport.Close()
	logger.Info("connected", "url", url)

	done := make(chan struct{})
	go func() {
		defer close(done)
		out := bufio.NewWriter(os.Stdout)
		for msg := range transport.Messages() {
			msgBs, err := json.Marshal(msg)
			if err != nil {
				logger.Error("failed to marshal frame", "err", err)
				continue
			}
			out.Write(msgBs)
			out.WriteByte('\n')
			out.Flush()
		}
	}()

	for {
		select {
		case <-done:
			logger.Info("connection closed", "reason", transport.CloseReason())
			return
		case line, ok := <-lines:
			if !ok {
				// stdin closed; keep relaying inbound frames.
				<-done
				logger.Info("connection closed", "reason", transport.CloseReason())
				return
			}
			var msg anode.JSONRPCMessage
			if err := json.Unmarshal([]byte(line), &msg); err != nil {
				logger.Warn("skipping malformed input line", "err", err)
				continue
			}
			if err := transport.Send(ctx, msg); err != nil {
				logger.Error("failed to send frame", "err", err)
			}
		}
	}
}
