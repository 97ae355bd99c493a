package terminal

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"algo-dashboard/internal/dashboard"
	"algo-dashboard/internal/interfaces"
	"algo-dashboard/internal/logger"
)

const helpText = `Keys:
  s        first emergency action (square off)
  2..n     further configured actions
  l        log out and quit
  r        repaint
  h        this help
  q        quit`

// Run reads commands from the input until the user quits, logs out, the
// input ends or ctx is done.
func (s *Screen) Run(ctx context.Context, d interfaces.Dashboard) error {
	s.Paint()
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-s.lines:
			if !ok {
				return nil
			}
			if quit := s.handle(ctx, d, line); quit {
				return nil
			}
		}
	}
}

func (s *Screen) handle(ctx context.Context, d interfaces.Dashboard, line string) (quit bool) {
	cmd := strings.ToLower(line)
	switch cmd {
	case "":
		return false
	case "q", "quit", "exit":
		return true
	case "r":
		s.Paint()
		return false
	case "h", "help", "?":
		s.Help()
		return false
	case "l", "logout":
		err := d.Logout(ctx)
		switch {
		case err == nil:
			return true
		case errors.Is(err, dashboard.ErrDeclined):
		default:
			logger.Debug(ctx, "Logout did not complete", "error", err)
		}
		return false
	}

	name, ok := s.actionFor(cmd)
	if !ok {
		s.printf("Unknown command %q, press h for help\n", line)
		return false
	}
	_, err := d.SubmitEmergencyAction(ctx, name)
	switch {
	case err == nil, errors.Is(err, dashboard.ErrDeclined):
	case errors.Is(err, dashboard.ErrActionInFlight):
		s.printf("%s is already in progress\n", name)
	default:
		logger.Debug(ctx, "Action failed", "action", name, "error", err)
	}
	return false
}

func (s *Screen) actionFor(cmd string) (string, bool) {
	if len(s.opts.Actions) == 0 {
		return "", false
	}
	if cmd == "s" {
		return s.opts.Actions[0].Name, true
	}
	n, err := strconv.Atoi(cmd)
	if err != nil || n < 1 || n > len(s.opts.Actions) {
		for _, a := range s.opts.Actions {
			if strings.EqualFold(a.Name, cmd) {
				return a.Name, true
			}
		}
		return "", false
	}
	return s.opts.Actions[n-1].Name, true
}

// Help prints the key list.
func (s *Screen) Help() {
	s.printf("%s\n", helpText)
}
