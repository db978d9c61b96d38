// Package mqtt provides MQTT client connectivity for the eva-link daemon.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// eva-link publishes wearable link events onto the broker and accepts
// commands from it, so that home-automation controllers and dashboards
// never talk to the radio directly.
//
//	Wearable ↔ eva-link daemon ↔ MQTT Broker ↔ Consumers
//
// Event topics ({prefix}/event/...) carry link status, battery readings,
// alarms and errors. Command topics ({prefix}/command/...) let consumers
// trigger the wearable's buzzer, raise an SOS or drop the link. The
// daemon's own liveness is visible on {prefix}/system/status via LWT.
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to all inbound commands
//	err = client.Subscribe(client.Topics().AllCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish a link status update (retained)
//	client.PublishRetained(client.Topics().EventStatus(), []byte(`{"state":"connected"}`))
package mqtt
