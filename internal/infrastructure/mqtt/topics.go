package mqtt

import "fmt"

// Topics builds the bridge's MQTT topic names.
//
//	topics := mqtt.Topics{Root: "homeassistant", DiscoveryPrefix: "homeassistant"}
//	topics.SensorDiscovery("garden", "rain_rate")
//	// Returns: "homeassistant/sensor/garden_rain_rate/config"
type Topics struct {
	// Root prefixes state, info and availability topics.
	Root string

	// DiscoveryPrefix prefixes discovery config topics. Empty means Root.
	DiscoveryPrefix string
}

func (t Topics) discoveryPrefix() string {
	if t.DiscoveryPrefix != "" {
		return t.DiscoveryPrefix
	}
	return t.Root
}

// UniqueID returns the discovery object ID of a gateway sensor.
//
// Example: garden_rain_rate
func UniqueID(gatewayID, key string) string {
	return gatewayID + "_" + key
}

// Discovery returns the retained config topic for a discovery object.
//
// Example: homeassistant/sensor/garden_rain_rate/config
func (t Topics) Discovery(component, objectID string) string {
	return fmt.Sprintf("%s/%s/%s/config", t.discoveryPrefix(), component, objectID)
}

// SensorDiscovery returns the discovery topic of one gateway sensor.
func (t Topics) SensorDiscovery(gatewayID, key string) string {
	return t.Discovery("sensor", UniqueID(gatewayID, key))
}

// State returns the topic carrying a gateway's readings.
//
// Example: homeassistant/garden/state
func (t Topics) State(gatewayID string) string {
	return fmt.Sprintf("%s/%s/state", t.Root, gatewayID)
}

// Info returns the topic carrying battery and signal data of one paired
// sensor.
//
// Example: homeassistant/garden/wh31_ch2/info
func (t Topics) Info(gatewayID, sensorType string) string {
	return fmt.Sprintf("%s/%s/%s/info", t.Root, gatewayID, sensorType)
}

// Availability returns the retained online/offline topic of the bridge.
//
// Example: homeassistant/weatherbridge/availability
func (t Topics) Availability(clientID string) string {
	return fmt.Sprintf("%s/%s/availability", t.Root, clientID)
}
