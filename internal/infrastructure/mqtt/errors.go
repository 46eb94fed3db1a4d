package mqtt

import "errors"

// Domain-specific errors for MQTT operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrBrokerDisconnected is returned by Publish while the session is not
	// connected. The message has been queued and will be sent after the
	// next successful connect unless it is dropped first.
	ErrBrokerDisconnected = errors.New("mqtt: broker disconnected")

	// ErrConnectionFailed is returned when a connect attempt fails.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrPublishFailed is returned when a publish operation fails.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed is returned when a subscribe operation fails.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrQueueOverflow is delivered to the waiter of a queued message that
	// was dropped to make room for a newer one.
	ErrQueueOverflow = errors.New("mqtt: queue overflow, oldest message dropped")

	// ErrSuperseded is delivered to the waiter of a queued retained message
	// replaced by a newer message for the same topic.
	ErrSuperseded = errors.New("mqtt: superseded by newer retained message")

	// ErrSessionClosed is returned once Close has been called.
	ErrSessionClosed = errors.New("mqtt: session closed")

	// ErrInvalidQoS is returned when an invalid QoS level is specified.
	// Valid QoS levels are 0, 1, or 2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")

	// ErrInvalidTopic is returned when an empty or invalid topic is provided.
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")

	// ErrTimeout is returned when an operation times out.
	ErrTimeout = errors.New("mqtt: operation timed out")
)
