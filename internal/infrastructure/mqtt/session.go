package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/nerrad567/gray-logic-weather/internal/infrastructure/config"
)

// drainPoll is how often Close checks whether the queue has emptied.
const drainPoll = 10 * time.Millisecond

// State is the connection state of a Session.
type State int32

// Session states.
const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Message is one outbound publish.
type Message struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

// MessageHandler is called for each message received on a subscribed topic.
// Returned errors are logged.
type MessageHandler func(topic string, payload []byte) error

// Logger is the logging surface used by the session.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Observer receives session events for metrics.
type Observer interface {
	StateChanged(state State)
	MessageDropped(topic string)
	MessagePublished(topic string, err error)
	QueueDepth(depth int)
}

type noopObserver struct{}

func (noopObserver) StateChanged(State)             {}
func (noopObserver) MessageDropped(string)          {}
func (noopObserver) MessagePublished(string, error) {}
func (noopObserver) QueueDepth(int)                 {}

// Stats is a point-in-time view of the session.
type Stats struct {
	State     State
	Queued    int
	Dropped   uint64
	Published uint64
	ClientID  string
}

type pending struct {
	msg  Message
	done chan error // buffered, receives exactly one result
}

type subscription struct {
	qos     byte
	handler MessageHandler
}

// Session is a long-lived broker connection with an outbound queue.
//
// Publishes are accepted in every state. While disconnected they are queued,
// bounded by Options.QueueSize with the oldest message dropped first, and
// retained messages for the same topic replace each other. A single writer
// goroutine sends queued messages in order once connected. A reconnect loop
// retries with exponential backoff until Close.
//
// Thread Safety: all methods are safe for concurrent use.
type Session struct {
	conn     Conn
	opts     Options
	logger   Logger
	observer Observer
	limiter  *rate.Limiter

	mu        sync.Mutex
	state     State
	queue     []*pending
	inflight  bool
	closing   bool
	subs      map[string]subscription
	dropped   uint64
	published uint64

	wake chan struct{}
	lost chan error

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	startOnce sync.Once
	closeOnce sync.Once
}

// Dial builds a Session backed by a paho client. The session does not
// connect until Start is called.
func Dial(cfg config.MQTTConfig, discoveryPrefix string) *Session {
	opts := OptionsFromConfig(cfg, discoveryPrefix).withDefaults()
	return NewSession(newPahoConn(cfg, opts), opts)
}

// NewSession wraps conn in a Session.
func NewSession(conn Conn, opts Options) *Session {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		conn:     conn,
		opts:     opts,
		logger:   noopLogger{},
		observer: noopObserver{},
		subs:     make(map[string]subscription),
		wake:     make(chan struct{}, 1),
		lost:     make(chan error, 1),
		ctx:      ctx,
		cancel:   cancel,
	}
	if opts.RatePerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), opts.RateBurst)
	}
	conn.SetConnectionLostHandler(s.handleLost)
	return s
}

// SetLogger sets the logger. Call before Start.
func (s *Session) SetLogger(logger Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// SetObserver sets the metrics observer. Call before Start.
func (s *Session) SetObserver(observer Observer) {
	if observer != nil {
		s.observer = observer
	}
}

// Topics returns the topic builder for this session.
func (s *Session) Topics() Topics {
	return s.opts.Topics
}

// ClientID returns the client identifier presented to the broker.
func (s *Session) ClientID() string {
	return s.opts.ClientID
}

// Start launches the connect loop and the writer. It returns immediately;
// use WaitConnected to block until the first connection.
func (s *Session) Start() {
	s.startOnce.Do(func() {
		s.wg.Add(2) //nolint:mnd // connect loop and writer
		go s.connectLoop()
		go s.writeLoop()
	})
}

// WaitConnected blocks until the session is connected or ctx is done.
func (s *Session) WaitConnected(ctx context.Context) error {
	ticker := time.NewTicker(drainPoll)
	defer ticker.Stop()
	for {
		if s.State() == StateConnected {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrBrokerDisconnected, ctx.Err())
		case <-s.ctx.Done():
			return ErrSessionClosed
		case <-ticker.C:
		}
	}
}

// State returns the current connection state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsConnected reports whether the session is connected.
func (s *Session) IsConnected() bool {
	return s.State() == StateConnected
}

// Stats returns queue and delivery counters.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		State:     s.state,
		Queued:    len(s.queue),
		Dropped:   s.dropped,
		Published: s.published,
		ClientID:  s.opts.ClientID,
	}
}

// Publish sends a message to the broker.
//
// While connected it waits for the result, bounded by the publish timeout
// and ctx. While disconnected it queues the message and returns
// ErrBrokerDisconnected at once; the message is delivered after reconnect
// unless it is dropped first.
//
// Parameters:
//   - ctx: bounds the wait for the broker acknowledgment
//   - msg: topic, payload, QoS (0, 1, 2) and retain flag
//
// Returns:
//   - error: ErrInvalidTopic, ErrInvalidQoS, ErrSessionClosed,
//     ErrBrokerDisconnected, or a wrapped ErrPublishFailed
func (s *Session) Publish(ctx context.Context, msg Message) error {
	if msg.Topic == "" {
		return ErrInvalidTopic
	}
	if msg.QoS > maxQoS {
		return ErrInvalidQoS
	}

	p := &pending{msg: msg, done: make(chan error, 1)}

	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	connected := s.state == StateConnected
	dropped := s.enqueueLocked(p, !connected)
	depth := len(s.queue)
	s.mu.Unlock()

	for _, d := range dropped {
		s.logger.Warn("MQTT queue full, dropped oldest message",
			"topic", d.msg.Topic,
			"queue_size", s.opts.QueueSize,
		)
		s.observer.MessageDropped(d.msg.Topic)
	}
	s.observer.QueueDepth(depth)
	s.signal()

	if !connected {
		return fmt.Errorf("%w: queued %s", ErrBrokerDisconnected, msg.Topic)
	}

	timer := time.NewTimer(s.opts.PublishTimeout)
	defer timer.Stop()

	select {
	case err := <-p.done:
		return err
	case <-timer.C:
		return fmt.Errorf("%w: %s: %w after %v", ErrPublishFailed, msg.Topic, ErrTimeout, s.opts.PublishTimeout)
	case <-ctx.Done():
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, msg.Topic, ctx.Err())
	}
}

// enqueueLocked appends p and returns the messages dropped for overflow.
// Caller must hold s.mu.
func (s *Session) enqueueLocked(p *pending, coalesce bool) []*pending {
	if coalesce && p.msg.Retained {
		for i, q := range s.queue {
			if q.msg.Retained && q.msg.Topic == p.msg.Topic {
				q.done <- ErrSuperseded
				s.queue[i] = p
				return nil
			}
		}
	}

	var dropped []*pending
	for len(s.queue) >= s.opts.QueueSize {
		oldest := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.dropped++
		oldest.done <- ErrQueueOverflow
		dropped = append(dropped, oldest)
	}
	s.queue = append(s.queue, p)
	return dropped
}

// Subscribe registers handler for topic. The subscription is restored after
// every reconnect. If the session is connected the broker subscription is
// made before returning.
func (s *Session) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}

	s.mu.Lock()
	s.subs[topic] = subscription{qos: qos, handler: handler}
	connected := s.state == StateConnected
	s.mu.Unlock()

	if !connected {
		return nil
	}
	return s.conn.Subscribe(topic, qos, s.wrapHandler(handler), s.opts.ConnectTimeout)
}

// wrapHandler recovers panics and logs handler errors.
func (s *Session) wrapHandler(handler MessageHandler) func(string, []byte) {
	return func(topic string, payload []byte) {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("MQTT handler panic", "topic", topic, "panic", r)
			}
		}()
		if err := handler(topic, payload); err != nil {
			s.logger.Warn("MQTT handler error", "topic", topic, "error", err)
		}
	}
}

// Close drains the queue for up to grace, publishes the offline
// availability message and disconnects. Messages still queued when grace
// expires receive ErrSessionClosed.
func (s *Session) Close(grace time.Duration) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closing = true
		s.mu.Unlock()

		deadline := time.Now().Add(grace)
		for !s.drained() && time.Now().Before(deadline) {
			time.Sleep(drainPoll)
		}

		s.mu.Lock()
		remaining := s.queue
		s.queue = nil
		connected := s.state == StateConnected
		s.mu.Unlock()

		for _, p := range remaining {
			p.done <- ErrSessionClosed
		}
		if len(remaining) > 0 {
			s.logger.Warn("MQTT shutdown discarded queued messages", "count", len(remaining))
		}

		s.cancel()
		s.wg.Wait()

		if connected {
			if err := s.conn.Publish(s.availability(PayloadOffline), s.opts.PublishTimeout); err != nil {
				s.logger.Warn("MQTT offline status publish failed", "error", err)
			}
		}
		s.conn.Disconnect(defaultDisconnectQuiesce)
		s.setState(StateDisconnected)
		s.logger.Info("MQTT session closed")
	})
}

func (s *Session) drained() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue) == 0 && !s.inflight
}

func (s *Session) availability(payload string) Message {
	return Message{
		Topic:    s.opts.Topics.Availability(s.opts.ClientID),
		Payload:  []byte(payload),
		QoS:      s.opts.QoS,
		Retained: true,
	}
}

func (s *Session) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	changed := s.state != state
	s.state = state
	s.mu.Unlock()
	if changed {
		s.observer.StateChanged(state)
	}
}

func (s *Session) handleLost(err error) {
	s.setState(StateDisconnected)
	select {
	case s.lost <- err:
	default:
	}
}

// connectLoop connects, waits for the connection to drop, and repeats
// until the session is closed.
func (s *Session) connectLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.lost:
		default:
		}
		s.setState(StateConnecting)

		b := backoff.NewExponentialBackOff()
		b.InitialInterval = s.opts.ReconnectInitial
		b.MaxInterval = s.opts.ReconnectMax
		b.MaxElapsedTime = 0

		attempt := 0
		err := backoff.RetryNotify(
			func() error {
				attempt++
				return s.conn.Connect(s.opts.ConnectTimeout)
			},
			backoff.WithContext(b, s.ctx),
			func(err error, wait time.Duration) {
				s.logger.Warn("MQTT connect failed, retrying",
					"attempt", attempt,
					"retry_in", wait,
					"error", err,
				)
			},
		)
		if err != nil {
			s.setState(StateDisconnected)
			return
		}

		s.onConnected()

		select {
		case err := <-s.lost:
			s.logger.Warn("MQTT connection lost", "error", err)
		case <-s.ctx.Done():
			return
		}
	}
}

// onConnected announces availability, restores subscriptions and releases
// the writer.
func (s *Session) onConnected() {
	if err := s.conn.Publish(s.availability(PayloadOnline), s.opts.PublishTimeout); err != nil {
		s.logger.Warn("MQTT online status publish failed", "error", err)
	}

	s.mu.Lock()
	subs := make(map[string]subscription, len(s.subs))
	for topic, sub := range s.subs {
		subs[topic] = sub
	}
	s.state = StateConnected
	queued := len(s.queue)
	s.mu.Unlock()
	s.observer.StateChanged(StateConnected)

	for topic, sub := range subs {
		if err := s.conn.Subscribe(topic, sub.qos, s.wrapHandler(sub.handler), s.opts.ConnectTimeout); err != nil {
			s.logger.Warn("MQTT subscription restore failed", "topic", topic, "error", err)
		}
	}

	s.logger.Info("MQTT connected",
		"client_id", s.opts.ClientID,
		"queued", queued,
		"subscriptions", len(subs),
	)
	s.signal()
}

// writeLoop sends queued messages one at a time while connected.
func (s *Session) writeLoop() {
	defer s.wg.Done()

	for {
		p := s.next()
		if p == nil {
			return
		}

		if s.limiter != nil {
			if err := s.limiter.Wait(s.ctx); err != nil {
				p.done <- ErrSessionClosed
				s.finish(ErrSessionClosed)
				return
			}
		}

		err := s.conn.Publish(p.msg, s.opts.PublishTimeout)
		if err != nil {
			err = fmt.Errorf("%w: %s: %w", ErrPublishFailed, p.msg.Topic, err)
			s.logger.Warn("MQTT publish failed", "topic", p.msg.Topic, "error", err)
		}
		s.observer.MessagePublished(p.msg.Topic, err)
		p.done <- err
		s.finish(err)
	}
}

// next blocks until a message can be sent and marks it in flight.
// It returns nil when the session is shutting down.
func (s *Session) next() *pending {
	for {
		s.mu.Lock()
		if s.state == StateConnected && len(s.queue) > 0 {
			p := s.queue[0]
			s.queue[0] = nil
			s.queue = s.queue[1:]
			s.inflight = true
			depth := len(s.queue)
			s.mu.Unlock()
			s.observer.QueueDepth(depth)
			return p
		}
		s.mu.Unlock()

		select {
		case <-s.wake:
		case <-s.ctx.Done():
			return nil
		}
	}
}

func (s *Session) finish(err error) {
	s.mu.Lock()
	s.inflight = false
	if err == nil {
		s.published++
	}
	s.mu.Unlock()
}
