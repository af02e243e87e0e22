package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"strategist/internal/bootstrap"
	"strategist/internal/domain/message"
	"strategist/pkg/logger"
)

const usage = `Commands:
  /extract <text>   extract strategy parameters from text
  /session [id]     show or switch the session
  /stats            language model call counters
  /quit             exit
Anything else is sent to the agents as a chat message.`

func main() {
	c := bootstrap.NewContainer()
	c.MustInit()
	defer logger.Sync()

	c.Start()
	c.Log.Info("System initialized successfully")

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		runConsole(ctx, c, os.Stdin, os.Stdout)
	}()

	select {
	case <-ctx.Done():
		c.Log.Info("Shutdown signal received")
	case <-done:
	}

	c.Shutdown()
}

// runConsole reads one message per line and prints the final reply.
func runConsole(ctx context.Context, c *bootstrap.Container, in io.Reader, out io.Writer) {
	sessionID := uuid.NewString()
	fmt.Fprintf(out, "session %s\n%s\n", sessionID, usage)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		text := line
		flags := map[string]any{}
		switch {
		case line == "/quit":
			return
		case line == "/stats":
			if c.Adapters.LLMStats != nil {
				s := c.Adapters.LLMStats.Snapshot()
				fmt.Fprintf(out, "calls=%d failures=%d last=%s (%s)\n", s.Calls, s.Failures, s.LastOp, s.LastLatency)
			}
			continue
		case strings.HasPrefix(line, "/session"):
			if id := strings.TrimSpace(strings.TrimPrefix(line, "/session")); id != "" {
				sessionID = id
			}
			fmt.Fprintf(out, "session %s\n", sessionID)
			continue
		case strings.HasPrefix(line, "/extract "):
			text = strings.TrimSpace(strings.TrimPrefix(line, "/extract "))
			flags[message.CtxExtractParams] = true
		case strings.HasPrefix(line, "/"):
			fmt.Fprintln(out, usage)
			continue
		}

		reply, err := c.Agents.Router.Handle(ctx, sessionID, text, flags)
		if err != nil {
			c.Log.ErrorWithContext(ctx, err, "input", text)
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		printReply(out, reply)
	}
}

func printReply(out io.Writer, reply *message.Envelope) {
	if text := reply.Text(); text != "" {
		fmt.Fprintln(out, text)
	}
	for _, key := range []string{message.KeyErrors, message.KeyWarnings, message.KeySuggestions, message.KeyKnowledgeHints} {
		if items, ok := reply.Content[key].([]string); ok && len(items) > 0 {
			fmt.Fprintf(out, "%s:\n  - %s\n", key, strings.Join(items, "\n  - "))
		}
	}
	if url, ok := reply.Content[message.KeyVisualization].(string); ok {
		fmt.Fprintf(out, "chart: %s\n", url)
	}
	if params, ok := reply.Content[message.KeyStrategyParams]; ok {
		data, err := json.MarshalIndent(params, "", "  ")
		if err == nil {
			fmt.Fprintf(out, "strategy:\n%s\n", data)
		}
	}
}
