package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/nerrad567/gray-logic-weather/internal/protocol"
)

// DefaultPort is the gateway's local API port.
const DefaultPort = 45000

// maxFrameLen bounds a response buffer: marker plus the largest u16 size.
const maxFrameLen = 2 + 0xFFFF

// readChunk is the size of each socket read.
const readChunk = 1024

// Logger defines the logging interface used by the client.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Config holds connection settings for one gateway.
type Config struct {
	// Host is the gateway's IP address or hostname.
	Host string

	// Port defaults to DefaultPort.
	Port int

	// Timeout bounds dial, write and read of a single attempt.
	Timeout time.Duration

	// Tries is the number of attempts per request, at least 1.
	Tries int

	// RetryWait is the pause between attempts.
	RetryWait time.Duration

	// FailureThreshold is the number of consecutive failed requests that
	// opens the circuit breaker. Zero disables the breaker.
	FailureThreshold uint32

	// OpenTimeout is how long the breaker stays open before letting a
	// probe request through.
	OpenTimeout time.Duration
}

// Client issues commands to one gateway.
//
// Thread Safety:
//   - Safe for concurrent use, though the poller only calls it from the
//     gateway's own worker.
type Client struct {
	id      string
	addr    string
	cfg     Config
	breaker *gobreaker.CircuitBreaker
	dialer  net.Dialer
	logger  Logger
}

// New creates a client for the gateway identified by id.
//
// Parameters:
//   - id: Gateway ID used in logs and the breaker name
//   - cfg: Connection settings; zero values take the defaults
//
// Returns:
//   - *Client: Ready to issue requests; no connection is made yet
func New(id string, cfg Config) *Client {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Tries < 1 {
		cfg.Tries = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second //nolint:mnd // gateway default
	}

	c := &Client{
		id:     id,
		addr:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		cfg:    cfg,
		dialer: net.Dialer{Timeout: cfg.Timeout},
		logger: noopLogger{},
	}

	if cfg.FailureThreshold > 0 {
		threshold := cfg.FailureThreshold
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "gateway-" + id,
			Timeout: cfg.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				c.logger.Warn("gateway circuit breaker state changed",
					"breaker", name,
					"from", from.String(),
					"to", to.String(),
				)
			},
		})
	}

	return c
}

// SetLogger sets the logger for retry and breaker messages.
func (c *Client) SetLogger(logger Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// ID returns the gateway ID.
func (c *Client) ID() string {
	return c.id
}

// Addr returns the host:port the client connects to.
func (c *Client) Addr() string {
	return c.addr
}

// BreakerState reports the circuit breaker state ("closed", "open",
// "half-open"), or "disabled" when no breaker is configured.
func (c *Client) BreakerState() string {
	if c.breaker == nil {
		return "disabled"
	}
	return c.breaker.State().String()
}

// Request sends cmd and returns the raw response frame.
//
// The response is not validated beyond its declared length; callers pass
// it to the protocol package.
//
// Returns:
//   - []byte: Raw response bytes
//   - error: Wraps ErrTransportFailure
func (c *Client) Request(ctx context.Context, cmd byte) ([]byte, error) {
	packet, err := protocol.BuildPacket(cmd, nil)
	if err != nil {
		return nil, err
	}

	run := func() (any, error) {
		return c.requestWithRetry(ctx, cmd, packet)
	}

	var result any
	if c.breaker != nil {
		result, err = c.breaker.Execute(run)
	} else {
		result, err = run()
	}

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %w: %s", ErrTransportFailure, ErrCircuitOpen, c.addr)
		}
		return nil, fmt.Errorf("%w: command 0x%02X to %s: %w", ErrTransportFailure, cmd, c.addr, err)
	}
	return result.([]byte), nil //nolint:forcetypeassert // run only returns []byte
}

// requestWithRetry runs up to cfg.Tries attempts with RetryWait between them.
func (c *Client) requestWithRetry(ctx context.Context, cmd byte, packet []byte) ([]byte, error) {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.cfg.RetryWait), uint64(c.cfg.Tries-1)), //nolint:gosec // Tries >= 1
		ctx,
	)

	var resp []byte
	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		raw, err := c.roundTrip(ctx, packet)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		resp = raw
		return nil
	}, policy, func(err error, wait time.Duration) {
		c.logger.Warn("gateway request failed, retrying",
			"gateway_id", c.id,
			"command", fmt.Sprintf("0x%02X", cmd),
			"attempt", attempt,
			"wait", wait,
			"error", err,
		)
	})
	if err != nil {
		return nil, fmt.Errorf("after %d attempts: %w", attempt, err)
	}
	return resp, nil
}

// roundTrip performs one connect, write, read exchange.
func (c *Client) roundTrip(ctx context.Context, packet []byte) ([]byte, error) {
	conn, err := c.dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	deadline := time.Now().Add(c.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, err
	}

	if _, err := conn.Write(packet); err != nil {
		return nil, fmt.Errorf("write: %w", err)
	}

	return readFrame(conn)
}

// readFrame reads until the frame's declared length has arrived, the peer
// closes the connection, or the deadline expires.
//
// A short read that ends with EOF is returned as-is so the decoder can
// report it as a truncated frame.
func readFrame(r io.Reader) ([]byte, error) {
	buf := make([]byte, 0, readChunk)
	chunk := make([]byte, readChunk)

	for {
		if want, ok := protocol.FrameLength(buf); ok && len(buf) >= want {
			return buf[:want], nil
		}
		if len(buf) >= 2 && (buf[0] != 0xFF || buf[1] != 0xFF) {
			// Not a frame; let the decoder say so.
			return buf, nil
		}
		if len(buf) >= maxFrameLen {
			return buf, nil
		}

		n, err := r.Read(chunk)
		buf = append(buf, chunk[:n]...)
		if err != nil {
			if errors.Is(err, io.EOF) {
				if len(buf) == 0 {
					return nil, ErrEmptyResponse
				}
				return buf, nil
			}
			return nil, fmt.Errorf("read: %w", err)
		}
	}
}

// LiveData fetches the raw live-data frame.
func (c *Client) LiveData(ctx context.Context) ([]byte, error) {
	return c.Request(ctx, protocol.CmdLiveData)
}

// SensorInfo fetches and decodes the paired-sensor list.
func (c *Client) SensorInfo(ctx context.Context) ([]protocol.SensorInfo, error) {
	raw, err := c.Request(ctx, protocol.CmdReadSensorIDNew)
	if err != nil {
		return nil, err
	}
	infos, err := protocol.DecodeSensorInfo(raw)
	if err != nil {
		return nil, fmt.Errorf("sensor info from %s: %w", c.id, err)
	}
	return infos, nil
}

// StationMAC fetches the gateway's MAC address.
func (c *Client) StationMAC(ctx context.Context) (string, error) {
	raw, err := c.Request(ctx, protocol.CmdReadStationMAC)
	if err != nil {
		return "", err
	}
	mac, err := protocol.ParseStationMAC(raw)
	if err != nil {
		return "", fmt.Errorf("station mac from %s: %w", c.id, err)
	}
	return mac, nil
}

// Firmware fetches the gateway's firmware version string.
func (c *Client) Firmware(ctx context.Context) (string, error) {
	raw, err := c.Request(ctx, protocol.CmdReadFirmwareVersion)
	if err != nil {
		return "", err
	}
	version, err := protocol.ParseFirmware(raw)
	if err != nil {
		return "", fmt.Errorf("firmware from %s: %w", c.id, err)
	}
	return version, nil
}
