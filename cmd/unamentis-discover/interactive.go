package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/unamentis/unamentis-go/pkg/discovery"
)

// session drives the interactive command loop.
type session struct {
	manager *discovery.Manager
	rl      *readline.Instance
}

func newSession(manager *discovery.Manager) (*session, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "unamentis> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &session{manager: manager, rl: rl}, nil
}

// Stdout returns a writer that coordinates with the readline prompt.
// Use it for log output to avoid mangling the input line.
func (s *session) Stdout() io.Writer {
	return s.rl.Stdout()
}

// Run starts the interactive command loop.
func (s *session) Run(ctx context.Context, cancel context.CancelFunc) {
	defer s.rl.Close()

	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			s.manager.CancelDiscovery()
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			s.printHelp()

		case "discover", "d":
			s.cmdDiscover(ctx)

		case "retry":
			s.cmdRetry(ctx)

		case "cancel":
			s.manager.CancelDiscovery()
			fmt.Fprintln(s.rl.Stdout(), "Cancelled.")

		case "status":
			s.cmdStatus()

		case "servers", "ls":
			s.cmdServers()

		case "manual", "m":
			s.cmdManual(ctx, args)

		case "qr":
			s.cmdQR(ctx, strings.TrimSpace(strings.TrimPrefix(input, parts[0])))

		case "clear-cache":
			if err := s.manager.ClearCache(); err != nil {
				fmt.Fprintf(s.rl.Stdout(), "Failed to clear cache: %v\n", err)
			} else {
				fmt.Fprintln(s.rl.Stdout(), "Cache cleared.")
			}

		case "quit", "exit", "q":
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			s.manager.CancelDiscovery()
			cancel()
			return

		default:
			fmt.Fprintf(s.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

// cmdDiscover runs a discovery attempt in the background so the prompt
// stays responsive for cancel and status.
func (s *session) cmdDiscover(ctx context.Context) {
	fmt.Fprintln(s.rl.Stdout(), "Starting discovery...")
	go func() {
		final := s.manager.StartDiscovery(ctx)
		s.reportFinal(final)
	}()
}

func (s *session) cmdRetry(ctx context.Context) {
	fmt.Fprintln(s.rl.Stdout(), "Retrying discovery...")
	go func() {
		final := s.manager.RetryDiscovery(ctx)
		s.reportFinal(final)
	}()
}

func (s *session) reportFinal(final discovery.State) {
	switch final.Kind {
	case discovery.StateConnected:
		fmt.Fprintf(s.rl.Stdout(), "Connected: %s\n", final.Server)
	case discovery.StateManualConfigRequired:
		fmt.Fprintln(s.rl.Stdout(), "No server found. Use 'manual <host> <port>' to configure one.")
	case discovery.StateIdle:
		fmt.Fprintln(s.rl.Stdout(), "Discovery cancelled.")
	}
}

func (s *session) cmdStatus() {
	out := s.rl.Stdout()
	state := s.manager.State()
	fmt.Fprintf(out, "State:    %s\n", state)
	fmt.Fprintf(out, "Progress: %.0f%%\n", s.manager.Progress()*100)
	if tier, active := s.manager.CurrentTier(); active {
		fmt.Fprintf(out, "Tier:     %s\n", tier.DisplayName())
	}
	if server := s.manager.ConnectedServer(); server != nil {
		fmt.Fprintf(out, "Server:   %s\n", server.BaseURL())
	}
}

func (s *session) cmdServers() {
	servers := s.manager.DiscoveredServers()
	if len(servers) == 0 {
		fmt.Fprintln(s.rl.Stdout(), "No validated servers in the current attempt.")
		return
	}
	for i, server := range servers {
		fmt.Fprintf(s.rl.Stdout(), "%d. %s\n", i+1, server)
	}
}

func (s *session) cmdManual(ctx context.Context, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: manual <host> <port> [name]")
		return
	}
	port, err := strconv.Atoi(args[1])
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Invalid port: %s\n", args[1])
		return
	}
	name := ""
	if len(args) > 2 {
		name = strings.Join(args[2:], " ")
	}

	if err := s.manager.ConfigureManually(ctx, args[0], port, name); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Configuration failed: %v\n", err)
		return
	}
	fmt.Fprintf(s.rl.Stdout(), "Connected: %s\n", s.manager.ConnectedServer())
}

func (s *session) cmdQR(ctx context.Context, payload string) {
	if payload == "" {
		fmt.Fprintln(s.rl.Stdout(), "Usage: qr <json-payload>")
		return
	}
	if err := s.manager.ConfigureFromQRCode(ctx, []byte(payload)); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "QR configuration failed: %v\n", err)
		return
	}
	fmt.Fprintf(s.rl.Stdout(), "Connected: %s\n", s.manager.ConnectedServer())
}

func (s *session) printHelp() {
	fmt.Fprintln(s.rl.Stdout(), `
UnaMentis Discovery Commands:
  discover                  - Run the discovery tier chain
  retry                     - Cancel and restart discovery
  cancel                    - Cancel the running attempt
  status                    - Show state, progress, and connected server
  servers                   - List validated servers from this attempt
  manual <host> <port> [nm] - Configure a server directly
  qr <json>                 - Configure from a QR code payload
  clear-cache               - Forget the cached server
  help                      - Show this help
  quit                      - Exit`)
}
