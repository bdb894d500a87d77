package nats

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/getevo/evo/v2/lib/log"
	"github.com/nats-io/nats.go"
)

var (
	NC *nats.Conn
	JS nats.JetStreamContext
	mu sync.RWMutex

	// streamReady is set once the check-in event stream exists
	streamReady bool
)

// ErrNotConnected is returned by the helpers while no connection is up
var ErrNotConnected = errors.New("NATS not connected")

// NATSConfig holds NATS connection configuration
type NATSConfig struct {
	URL            string        `yaml:"URL"`
	Name           string        `yaml:"NAME"`
	MaxReconnects  int           `yaml:"MAX_RECONNECTS"`
	ReconnectWait  time.Duration `yaml:"RECONNECT_WAIT"`
	PingInterval   time.Duration `yaml:"PING_INTERVAL"`
	MaxPingsOut    int           `yaml:"MAX_PINGS_OUT"`
	AllowReconnect bool          `yaml:"ALLOW_RECONNECT"`
	DrainTimeout   time.Duration `yaml:"DRAIN_TIMEOUT"`
	// Stream is the JetStream stream capturing check-in events, empty to publish core NATS only
	Stream    string        `yaml:"STREAM"`
	StreamAge time.Duration `yaml:"STREAM_MAX_AGE"`
}

// Connect establishes a fault-tolerant connection to NATS
func Connect(config NATSConfig) error {
	opts := []nats.Option{
		nats.Name(config.Name),
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.PingInterval(config.PingInterval),
		nats.MaxPingsOutstanding(config.MaxPingsOut),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Warning("NATS disconnected: %v", err)
			} else {
				log.Warning("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			if nc.LastError() != nil {
				log.Error("NATS connection closed: %v", nc.LastError())
			} else {
				log.Info("NATS connection closed")
			}
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			if sub != nil {
				log.Error("NATS error on subscription %s: %v", sub.Subject, err)
			} else {
				log.Error("NATS async error: %v", err)
			}
		}),
	}
	if !config.AllowReconnect {
		opts = append(opts, nats.NoReconnect())
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", config.URL, err)
	}
	log.Info("Connected to NATS at %s (server %s, version %s)", nc.ConnectedUrl(), nc.ConnectedServerName(), nc.ConnectedServerVersion())

	js, err := nc.JetStream()
	if err != nil {
		log.Warning("JetStream not available, events are published on core NATS: %v", err)
	}

	mu.Lock()
	NC, JS = nc, js
	mu.Unlock()

	if js != nil && config.Stream != "" {
		ensureStream(js, config.Stream, config.StreamAge)
	}
	return nil
}

// ensureStream creates the event stream when it does not exist yet
func ensureStream(js nats.JetStreamContext, name string, maxAge time.Duration) {
	if _, err := js.StreamInfo(name); err == nil {
		setStreamReady(true)
		return
	}
	_, err := js.AddStream(&nats.StreamConfig{
		Name:     name,
		Subjects: []string{SubjectPrefix + ".>"},
		MaxAge:   maxAge,
		Storage:  nats.FileStorage,
	})
	if err != nil {
		log.Warning("Failed to create JetStream stream %s: %v", name, err)
		return
	}
	log.Info("JetStream stream %s ready", name)
	setStreamReady(true)
}

func setStreamReady(ready bool) {
	mu.Lock()
	streamReady = ready
	mu.Unlock()
}

// GetConnection returns the NATS connection
func GetConnection() *nats.Conn {
	mu.RLock()
	defer mu.RUnlock()
	return NC
}

// IsConnected checks if NATS is connected
func IsConnected() bool {
	mu.RLock()
	defer mu.RUnlock()
	return NC != nil && NC.IsConnected()
}

// Close drains the connection, forcing it closed after drainTimeout
func Close(drainTimeout time.Duration) error {
	mu.Lock()
	defer mu.Unlock()

	if NC == nil {
		return nil
	}
	streamReady = false

	if err := NC.Drain(); err != nil {
		log.Warning("Error draining NATS connection: %v", err)
		NC.Close()
		return err
	}

	deadline := time.Now().Add(drainTimeout)
	for !NC.IsClosed() {
		if time.Now().After(deadline) {
			log.Warning("Drain timeout exceeded, forcing close")
			NC.Close()
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	return nil
}

// Publish publishes a message to a subject
func Publish(subject string, data []byte) error {
	conn := GetConnection()
	if conn == nil || !conn.IsConnected() {
		return ErrNotConnected
	}
	return conn.Publish(subject, data)
}

// Subscribe creates a subscription to a subject
func Subscribe(subject string, handler nats.MsgHandler) (*nats.Subscription, error) {
	conn := GetConnection()
	if conn == nil || !conn.IsConnected() {
		return nil, ErrNotConnected
	}
	return conn.Subscribe(subject, handler)
}

// QueueSubscribe creates a queue subscription so only one instance handles each message
func QueueSubscribe(subject, queue string, handler nats.MsgHandler) (*nats.Subscription, error) {
	conn := GetConnection()
	if conn == nil || !conn.IsConnected() {
		return nil, ErrNotConnected
	}
	return conn.QueueSubscribe(subject, queue, handler)
}
