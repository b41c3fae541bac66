package stream

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"fincore/internal/logger"
	"fincore/internal/pkg/jsonutil"
)

// Controller is the part of a stream a command reader drives.
type Controller interface {
	Subscribe(symbols ...string) error
	Unsubscribe(symbols ...string) error
}

// Command is one line of the control protocol, e.g.
// {"event":"subscribe","symbol":"ETHUSD,SOLUSD"}.
type Command struct {
	Event  string `json:"event"`
	Symbol string `json:"symbol"`
}

// ParseCommand decodes and checks one control line.
func ParseCommand(line string) (Command, error) {
	var cmd Command
	if err := jsonutil.Unmarshal([]byte(line), &cmd); err != nil {
		return Command{}, fmt.Errorf("invalid command %q: %w", line, err)
	}
	cmd.Event = strings.ToLower(strings.TrimSpace(cmd.Event))
	cmd.Symbol = strings.TrimSpace(cmd.Symbol)
	switch cmd.Event {
	case "subscribe", "unsubscribe":
	default:
		return Command{}, fmt.Errorf("unknown event %q", cmd.Event)
	}
	if cmd.Symbol == "" {
		return Command{}, fmt.Errorf("%s: symbol is required", cmd.Event)
	}
	return cmd, nil
}

// Apply runs cmd against ctl.
func (cmd Command) Apply(ctl Controller) error {
	if cmd.Event == "unsubscribe" {
		return ctl.Unsubscribe(cmd.Symbol)
	}
	return ctl.Subscribe(cmd.Symbol)
}

// ReadCommands applies JSON command lines from r until EOF or ctx ends. Bad
// lines are logged and skipped.
func ReadCommands(ctx context.Context, r io.Reader, ctl Controller) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			cmd, err := ParseCommand(line)
			if err != nil {
				logger.Warnf("stream command: %v", err)
				continue
			}
			if err := cmd.Apply(ctl); err != nil {
				logger.Warnf("stream command %s %s: %v", cmd.Event, cmd.Symbol, err)
			}
		}
	}
}
