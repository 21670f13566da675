package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/apandit646/droploc"
	"github.com/chzyer/readline"
)

// agent is the part of *droploc.Engine the console drives.
type agent interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	UpdatePosition(pos droploc.Position) error
	Accept(requestID string) (droploc.RideRequestEvent, error)
	Decline(requestID string) (droploc.RideRequestEvent, error)
	RequestRide(ctx context.Context, providerID, destination string) error
	RideStatus(providerID string) (bool, time.Duration)
	Candidates() []droploc.RankedCandidate
	Current() (droploc.RideRequestEvent, time.Time, bool)
	Pending() []droploc.RideRequestEvent
	CellState() (droploc.SubscriptionState, droploc.CellAddress)
	ConnectionState() droploc.ConnectionState
	Position() (droploc.Position, bool)
}

var _ agent = (*droploc.Engine)(nil)

// Console is the interactive operator prompt.
type Console struct {
	rl        *readline.Instance
	out       io.Writer
	timeout   time.Duration
	closeOnce sync.Once
}

// NewConsole creates a console reading from the terminal.
func NewConsole() (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "droploc> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	return &Console{rl: rl, out: rl.Stdout(), timeout: 10 * time.Second}, nil
}

// Stdout returns a writer that coordinates with the prompt. Route log output
// through it so it does not garble the line being typed.
func (c *Console) Stdout() io.Writer {
	return c.out
}

// Close releases the terminal. Safe to call more than once.
func (c *Console) Close() {
	c.closeOnce.Do(func() {
		if c.rl != nil {
			_ = c.rl.Close()
		}
	})
}

// Run reads commands until quit, EOF or ctx cancellation. It calls cancel on exit
// so the rest of the agent shuts down with it.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc, eng agent) {
	defer c.Close()
	defer cancel()

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			_, _ = fmt.Fprintln(c.out, "Exiting...")

			return
		}

		if !c.execute(ctx, eng, line) {
			_, _ = fmt.Fprintln(c.out, "Exiting...")

			return
		}
	}
}

// execute runs one command line and reports whether the prompt should continue.
func (c *Console) execute(ctx context.Context, eng agent, line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return true
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		c.printHelp()
	case "status", "s":
		c.cmdStatus(eng)
	case "connect":
		c.withTimeout(ctx, eng.Connect)
	case "disconnect":
		c.withTimeout(ctx, eng.Disconnect)
	case "position", "pos":
		c.cmdPosition(eng, args)
	case "candidates", "c":
		c.cmdCandidates(eng)
	case "pending", "p":
		c.cmdPending(eng)
	case "accept", "a":
		c.cmdResolve(eng, eng.Accept, args, "accepted")
	case "decline", "d":
		c.cmdResolve(eng, eng.Decline, args, "declined")
	case "ride":
		c.cmdRide(ctx, eng, args)
	case "quit", "exit", "q":
		return false
	default:
		c.printf("Unknown command: %s (type 'help' for commands)\n", cmd)
	}

	return true
}

func (c *Console) printHelp() {
	c.printf(`
droploc commands:
  Session:
    status              - Show connection, cell and position
    connect             - Open a session
    disconnect          - Close the session

  Location:
    position <lat> <lon> - Report a position fix
    candidates          - List nearby actors by distance

  Requests:
    pending             - Show the displayed request and the backlog
    accept [id]         - Accept the displayed (or given) request
    decline [id]        - Decline the displayed (or given) request
    ride <provider> <destination...> - Request a ride from a provider

    help                - Show this help
    quit                - Exit
`)
}

func (c *Console) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(c.out, format, args...)
}

func (c *Console) withTimeout(ctx context.Context, op func(context.Context) error) {
	opCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := op(opCtx); err != nil {
		c.printf("error: %v\n", err)
		return
	}
	c.printf("ok\n")
}

func (c *Console) cmdStatus(eng agent) {
	state, cell := eng.CellState()
	c.printf("connection: %s\n", eng.ConnectionState())
	c.printf("cell:       %s (%s)\n", orDash(cell.String()), state)
	if pos, ok := eng.Position(); ok {
		c.printf("position:   %s\n", pos)
	} else {
		c.printf("position:   -\n")
	}
}

func (c *Console) cmdPosition(eng agent, args []string) {
	if len(args) != 2 {
		c.printf("usage: position <lat> <lon>\n")
		return
	}

	lat, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		c.printf("invalid latitude %q\n", args[0])
		return
	}
	lon, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		c.printf("invalid longitude %q\n", args[1])
		return
	}

	if err := eng.UpdatePosition(droploc.Position{Latitude: lat, Longitude: lon}); err != nil {
		c.printf("error: %v\n", err)
	}
}

func (c *Console) cmdCandidates(eng agent) {
	ranked := eng.Candidates()
	if len(ranked) == 0 {
		c.printf("no candidates\n")
		return
	}

	for i, rc := range ranked {
		c.printf("%2d. %-20s %-8s %6.2f km  eta %s\n", i+1, rc.Name, rc.Role, rc.DistanceKm, rc.ETA.Round(time.Second))
	}
}

func (c *Console) cmdPending(eng agent) {
	if ev, deadline, ok := eng.Current(); ok {
		c.printf("displayed: %s from %s to %q, %s left\n",
			ev.RequestID, ev.Requester.Name, ev.Destination, time.Until(deadline).Round(time.Second))
	} else {
		c.printf("displayed: -\n")
	}

	for _, ev := range eng.Pending() {
		c.printf("  queued:  %s from %s to %q\n", ev.RequestID, ev.Requester.Name, ev.Destination)
	}
}

func (c *Console) cmdResolve(eng agent, resolve func(string) (droploc.RideRequestEvent, error), args []string, verb string) {
	var id string
	if len(args) > 0 {
		id = args[0]
	} else if ev, _, ok := eng.Current(); ok {
		id = ev.RequestID
	} else {
		c.printf("nothing displayed\n")
		return
	}

	ev, err := resolve(id)
	if err != nil {
		c.printf("error: %v\n", err)
		return
	}
	c.printf("%s %s\n", verb, ev.RequestID)
}

func (c *Console) cmdRide(ctx context.Context, eng agent, args []string) {
	if len(args) < 2 {
		c.printf("usage: ride <provider> <destination...>\n")
		return
	}

	provider := args[0]
	if busy, left := eng.RideStatus(provider); busy {
		c.printf("request to %s already in progress, %s left\n", provider, left.Round(time.Second))
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := eng.RequestRide(opCtx, provider, strings.Join(args[1:], " ")); err != nil {
		c.printf("error: %v\n", err)
		return
	}
	c.printf("ride requested from %s\n", provider)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}

	return s
}
