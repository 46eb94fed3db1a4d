package mqtt

import (
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-weather/internal/infrastructure/config"
)

// Conn is the broker connection driven by a Session. The paho client
// implements it in production; tests supply an in-memory fake.
type Conn interface {
	// Connect performs one connect attempt.
	Connect(timeout time.Duration) error

	// Publish sends one message and waits for the broker acknowledgment
	// required by its QoS.
	Publish(msg Message, timeout time.Duration) error

	// Subscribe registers handler for topic on the current connection.
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte), timeout time.Duration) error

	// Disconnect closes the connection without firing the lost handler.
	Disconnect(quiesce time.Duration)

	// SetConnectionLostHandler registers fn to run when an established
	// connection drops.
	SetConnectionLostHandler(fn func(err error))
}

// pahoConn adapts the paho client to Conn.
type pahoConn struct {
	client pahomqtt.Client

	mu     sync.RWMutex
	onLost func(error)
}

func newPahoConn(cfg config.MQTTConfig, opts Options) *pahoConn {
	c := &pahoConn{}
	po := buildClientOptions(cfg, opts)
	po.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.mu.RLock()
		fn := c.onLost
		c.mu.RUnlock()
		if fn != nil {
			fn(err)
		}
	})
	c.client = pahomqtt.NewClient(po)
	return c
}

func (c *pahoConn) SetConnectionLostHandler(fn func(err error)) {
	c.mu.Lock()
	c.onLost = fn
	c.mu.Unlock()
}

func (c *pahoConn) Connect(timeout time.Duration) error {
	return waitToken(c.client.Connect(), timeout, ErrConnectionFailed)
}

func (c *pahoConn) Publish(msg Message, timeout time.Duration) error {
	return waitToken(c.client.Publish(msg.Topic, msg.QoS, msg.Retained, msg.Payload), timeout, ErrPublishFailed)
}

func (c *pahoConn) Subscribe(topic string, qos byte, handler func(string, []byte), timeout time.Duration) error {
	token := c.client.Subscribe(topic, qos, func(_ pahomqtt.Client, m pahomqtt.Message) {
		handler(m.Topic(), m.Payload())
	})
	return waitToken(token, timeout, ErrSubscribeFailed)
}

func (c *pahoConn) Disconnect(quiesce time.Duration) {
	if c.client.IsConnected() {
		c.client.Disconnect(uint(quiesce.Milliseconds())) //nolint:gosec // quiesce is a small positive duration
	}
}

func waitToken(token pahomqtt.Token, timeout time.Duration, sentinel error) error {
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("%w: %w after %v", sentinel, ErrTimeout, timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	return nil
}
