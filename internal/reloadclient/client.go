package reloadclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/jpalmerr/appletdev/internal/reconnect"
	"github.com/jpalmerr/appletdev/internal/sse"
)

// ErrGivenUp is returned by [Client.Run] once retries are exhausted.
var ErrGivenUp = errors.New("reload server unreachable, giving up")

// Options configures a [Client].
type Options struct {
	// Policy bounds reconnection. Zero value uses reconnect.DefaultPolicy.
	Policy reconnect.Policy

	// Clock schedules retries. Defaults to the real clock.
	Clock clockwork.Clock

	// Logger receives connection diagnostics. Defaults to slog.Default.
	Logger *slog.Logger

	// OnReload is called for every reload frame. Panics are recovered.
	OnReload func()

	// OnState is called after every state change.
	OnState func(reconnect.State)
}

// Client follows a reload channel the way a browser tab does.
//
// It drives a [reconnect.Machine]: reconnecting with linear backoff on
// failure, calling OnReload on a reload frame and then starting over with a
// fresh machine, as a reloaded page would.
type Client struct {
	transport Transport
	policy    reconnect.Policy
	clock     clockwork.Clock
	logger    *slog.Logger
	onReload  func()
	onState   func(reconnect.State)
}

// New creates a [Client] that opens channels through t.
func New(t Transport, opts Options) *Client {
	if opts.Policy == (reconnect.Policy{}) {
		opts.Policy = reconnect.DefaultPolicy()
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Client{
		transport: t,
		policy:    opts.Policy,
		clock:     opts.Clock,
		logger:    opts.Logger,
		onReload:  opts.OnReload,
		onState:   opts.OnState,
	}
}

// Run follows the channel until ctx is cancelled (returning nil) or the
// retry budget is spent (returning [ErrGivenUp]).
func (c *Client) Run(ctx context.Context) error {
	m := reconnect.NewMachine(c.policy)
	action := c.step(m, reconnect.Start)

	for {
		switch action.Kind {
		case reconnect.Connect:
			action = c.connect(ctx, m)

		case reconnect.ScheduleRetry:
			c.logger.Info("reload channel lost, retrying",
				"attempt", m.Attempts(),
				"max_attempts", c.policy.MaxAttempts,
				"delay", action.Delay.String(),
			)
			select {
			case <-c.clock.After(action.Delay):
				action = c.step(m, reconnect.RetryFired)
			case <-ctx.Done():
				action = c.step(m, reconnect.Teardown)
			}

		case reconnect.Reload:
			c.reload()
			m = reconnect.NewMachine(c.policy)
			action = c.step(m, reconnect.Start)

		case reconnect.GiveUp:
			c.logger.Warn("reload channel unreachable, giving up", "attempts", m.Attempts())
			return ErrGivenUp

		case reconnect.Cancel:
			return nil

		default:
			return fmt.Errorf("reload client stalled in state %s", m.State())
		}
	}
}

// connect opens a channel and consumes it until it fails, reloads or ctx
// ends. It returns the next action.
func (c *Client) connect(ctx context.Context, m *reconnect.Machine) reconnect.Action {
	stream, err := c.transport.Open(ctx)
	if ctx.Err() != nil {
		if stream != nil {
			_ = stream.Close()
		}
		return c.step(m, reconnect.Teardown)
	}
	if err != nil {
		c.logger.Debug("reload channel open failed", "error", err)
		return c.step(m, reconnect.Failed)
	}
	defer func() { _ = stream.Close() }()

	c.step(m, reconnect.Opened)

	// unblock Next when ctx ends
	stop := context.AfterFunc(ctx, func() { _ = stream.Close() })
	defer stop()

	for {
		ev, err := stream.Next()
		if ctx.Err() != nil {
			return c.step(m, reconnect.Teardown)
		}
		if err != nil {
			c.logger.Debug("reload channel read failed", "error", err)
			return c.step(m, reconnect.Failed)
		}

		switch ev.Data {
		case sse.TokenConnected:
			c.step(m, reconnect.ConnectedFrame)
			c.logger.Debug("reload channel connected")
		case sse.TokenReload:
			if a := c.step(m, reconnect.ReloadFrame); a.Kind == reconnect.Reload {
				return a
			}
		}
	}
}

// step feeds ev to m and reports state changes.
func (c *Client) step(m *reconnect.Machine, ev reconnect.Event) reconnect.Action {
	before := m.State()
	a := m.Handle(ev)
	if after := m.State(); after != before {
		c.logger.Debug("reload client transition", "event", ev.String(), "from", before.String(), "to", after.String())
		if c.onState != nil {
			c.onState(after)
		}
	}
	return a
}

// reload invokes the reload callback with panic recovery.
// Panics are logged with a correlation id and do not stop the client.
func (c *Client) reload() {
	c.logger.Info("reload received")
	if c.onReload == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("reload callback panicked",
				"correlation_id", uuid.NewString(),
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
		}
	}()
	c.onReload()
}
