// Package mqttstatus publishes the daemon's status record to an MQTT
// broker as a JSON heartbeat, an optional supplement to the binary
// status record. Connection setup uses auto-reconnect, retrying
// connect, keepalive, and optional TLS.
package mqttstatus

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/cwsl/sdrcore/internal/frame"
)

// Config configures the optional MQTT heartbeat publisher.
type Config struct {
	Broker   string
	Username string
	Password string
	Topic    string
	Interval time.Duration
	TLS      TLSConfig
}

// TLSConfig holds optional client certificate material for the broker
// connection.
type TLSConfig struct {
	Enabled    bool
	CACert     string
	ClientCert string
	ClientKey  string
}

// Payload is the JSON shape published on each heartbeat.
type Payload struct {
	TimestampSec    float64 `json:"timestamp_s"`
	FrameCount      uint64  `json:"frame_count"`
	Overflows       uint64  `json:"overflows"`
	Dropped         uint64  `json:"dropped"`
	ReferenceLocked bool    `json:"reference_locked"`
	Degraded        bool    `json:"degraded"`
}

// Publisher connects to a broker and periodically publishes the status
// a StatusSource reports.
type Publisher struct {
	client mqtt.Client
	cfg    Config
}

// StatusSource is implemented by the daemon; it reuses frame.Status so
// the MQTT payload is built from the same values as the binary status
// record. The JSON payload carries a subset of those fields (no
// sequence number, temperature or peak power).
type StatusSource interface {
	Status() frame.Status
}

func generateClientID() string {
	buf := make([]byte, 8)
	rand.Read(buf)
	return "sdrcore_" + hex.EncodeToString(buf)
}

func loadTLSConfig(cfg TLSConfig) (*tls.Config, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	tc := &tls.Config{}
	if cfg.CACert != "" {
		caCert, err := os.ReadFile(cfg.CACert)
		if err != nil {
			return nil, fmt.Errorf("mqttstatus: read CA cert: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("mqttstatus: parse CA cert")
		}
		tc.RootCAs = pool
	}
	if cfg.ClientCert != "" && cfg.ClientKey != "" {
		cert, err := tls.LoadX509KeyPair(cfg.ClientCert, cfg.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("mqttstatus: load client cert: %w", err)
		}
		tc.Certificates = []tls.Certificate{cert}
	}
	return tc, nil
}

// New connects to the broker and returns a Publisher. The connection
// attempt uses the client's own connect-retry loop, so a broker that is
// briefly unreachable at startup does not need to be retried by the
// caller.
func New(cfg Config) (*Publisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(generateClientID())
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(10 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	if cfg.TLS.Enabled {
		tc, err := loadTLSConfig(cfg.TLS)
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tc)
	}

	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Println("mqttstatus: connected to broker")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Printf("mqttstatus: connection lost: %v", err)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqttstatus: connect: %w", token.Error())
	}

	return &Publisher{client: client, cfg: cfg}, nil
}

// Run publishes src's status on cfg.Interval until ctx is canceled.
func (p *Publisher) Run(ctx context.Context, src StatusSource) {
	interval := p.cfg.Interval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.client.Disconnect(250)
			return
		case <-ticker.C:
			p.publish(src.Status())
		}
	}
}

func (p *Publisher) publish(st frame.Status) {
	payload := Payload{
		TimestampSec:    st.TimestampSec,
		FrameCount:      st.FrameCount,
		Overflows:       st.Overflows,
		Dropped:         st.Dropped,
		ReferenceLocked: st.ReferenceLocked,
		Degraded:        st.Degraded,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("mqttstatus: marshal: %v", err)
		return
	}
	token := p.client.Publish(p.cfg.Topic, 0, false, body)
	token.WaitTimeout(2 * time.Second)
}
