// Package mqtt provides the bridge's broker session.
//
// This package manages:
//   - A single long-lived connection with a reconnect loop
//   - A bounded outbound queue that survives broker outages
//   - Availability announcements via Last Will and an online message
//   - Subscriptions that are restored after every reconnect
//   - Topic naming for discovery, state, info and availability
//
// # Connection States
//
//	disconnected → connecting → connected
//	      ↑                          │
//	      └────── connection lost ───┘
//
// Reconnect attempts back off exponentially from mqtt.reconnect.initial_delay
// to mqtt.reconnect.max_delay and continue until Close.
//
// # Queueing
//
// Publish never blocks on a missing broker. While disconnected messages are
// queued and Publish returns ErrBrokerDisconnected. When the queue is full the
// oldest message is dropped and logged. Retained messages for the same topic
// replace each other while queued, so a long outage delivers only the latest
// discovery config per sensor. One writer goroutine sends the queue in order
// once connected, optionally throttled by mqtt.rate_limit.
//
// # Security Considerations
//
//   - TLS is enabled with mqtt.broker.tls (minimum TLS 1.2)
//   - Username and password are the only supported credentials
//   - The password is never logged
//
// # Usage
//
//	session := mqtt.Dial(cfg.MQTT, cfg.DiscoveryPrefix())
//	session.SetLogger(logger)
//	session.Start()
//	defer session.Close(5 * time.Second)
//
//	topics := session.Topics()
//	err := session.Publish(ctx, mqtt.Message{
//	    Topic:   topics.State("garden"),
//	    Payload: []byte(`{"rain_rate":2.5}`),
//	    QoS:     1,
//	})
package mqtt
