package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/beamline-core/internal/infrastructure/config"
)

const testBrokerAddr = "127.0.0.1:1883"

// testConfig returns a valid MQTT configuration for testing.
func testConfig(clientID string) config.MQTTConfig {
	return config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: clientID,
		},
		QoS:         1,
		TopicPrefix: "beamline-test",
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// requireBroker skips the test when no broker is listening locally.
func requireBroker(t *testing.T) {
	t.Helper()
	conn, err := net.DialTimeout("tcp", testBrokerAddr, 200*time.Millisecond)
	if err != nil {
		t.Skipf("no MQTT broker at %s: %v", testBrokerAddr, err)
	}
	conn.Close()
}

func connectTest(t *testing.T, clientID string) *Client {
	t.Helper()
	requireBroker(t)
	client, err := Connect(testConfig(clientID))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { client.Close() }) //nolint:errcheck // Test cleanup
	return client
}

// =============================================================================
// Offline tests
// =============================================================================

func TestTopicBuilders(t *testing.T) {
	topics := Topics{Prefix: "bl/"}
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"PVValue", topics.PVValue("BL03I-MO-SAMP-01:X"), "bl/pv/BL03I-MO-SAMP-01:X/value"},
		{"PVPut", topics.PVPut("BL03I-MO-SAMP-01:X"), "bl/pv/BL03I-MO-SAMP-01:X/put"},
		{"DeviceStatus", topics.DeviceStatus("i03", "sample_x"), "bl/i03/device/sample_x/status"},
		{"RunSummary", topics.RunSummary("i03"), "bl/i03/run"},
		{"SystemStatus", topics.SystemStatus(), "bl/system/status"},
		{"AllPVValues", topics.AllPVValues(), "bl/pv/+/value"},
		{"AllDeviceStatus", topics.AllDeviceStatus("i03"), "bl/i03/device/+/status"},
		{"zero value prefix", Topics{}.SystemStatus(), "beamline/system/status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestPVFromValueTopic(t *testing.T) {
	topics := Topics{}
	tests := []struct {
		topic  string
		want   string
		wantOK bool
	}{
		{"beamline/pv/BL03I-MO-SAMP-01:X/value", "BL03I-MO-SAMP-01:X", true},
		{"beamline/pv//value", "", false},
		{"beamline/pv/X/put", "", false},
		{"other/pv/X/value", "", false},
	}
	for _, tt := range tests {
		got, ok := topics.PVFromValueTopic(tt.topic)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("PVFromValueTopic(%q) = (%q, %v), want (%q, %v)", tt.topic, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestStatusPayload(t *testing.T) {
	var got clientStatus
	if err := json.Unmarshal(statusPayload("offline", "core-1", "graceful_shutdown"), &got); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if got.Status != "offline" || got.ClientID != "core-1" || got.Reason != "graceful_shutdown" {
		t.Errorf("unexpected payload %+v", got)
	}
	if _, err := time.Parse(time.RFC3339, got.Timestamp); err != nil {
		t.Errorf("timestamp %q not RFC3339", got.Timestamp)
	}

	if strings.Contains(string(statusPayload("online", "core-1", "")), "reason") {
		t.Error("online payload should omit empty reason")
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig("opts-test")
	cfg.Broker.TLS = true
	cfg.Auth.Username = "user"
	cfg.Auth.Password = "pass"

	opts := buildClientOptions(cfg, Topics{Prefix: cfg.TopicPrefix})

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "ssl://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want ssl://127.0.0.1:1883", opts.Servers)
	}
	if opts.Username != "user" || opts.Password != "pass" {
		t.Error("credentials not applied")
	}
	if !opts.WillEnabled || opts.WillTopic != "beamline-test/system/status" || !opts.WillRetained {
		t.Errorf("LWT not configured: enabled=%v topic=%q", opts.WillEnabled, opts.WillTopic)
	}
	if opts.TLSConfig == nil {
		t.Error("TLS config missing")
	}
}

func TestConnect_BrokerRefused(t *testing.T) {
	cfg := testConfig("refused-test")
	cfg.Broker.Port = 19999

	_, err := Connect(cfg)
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestCloseNil(t *testing.T) {
	var c *Client
	if err := c.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v", err)
	}
}

// =============================================================================
// Broker tests
// =============================================================================

func TestConnectAndHealthCheck(t *testing.T) {
	client := connectTest(t, "beamline-test-health")

	if !client.IsConnected() {
		t.Fatal("IsConnected() = false, want true")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := client.HealthCheck(ctx); err == nil {
		t.Error("HealthCheck() with cancelled context should fail")
	}

	client.Close() //nolint:errcheck // Testing post-close state
	if !errors.Is(client.HealthCheck(context.Background()), ErrNotConnected) {
		t.Error("HealthCheck() after Close should return ErrNotConnected")
	}
	if !errors.Is(client.Publish("x", nil, 0, false), ErrNotConnected) {
		t.Error("Publish() after Close should return ErrNotConnected")
	}
}

func TestPublishValidation(t *testing.T) {
	client := connectTest(t, "beamline-test-validate")

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		want    error
	}{
		{"empty topic", "", nil, 1, ErrInvalidTopic},
		{"invalid qos", "beamline-test/x", nil, 3, ErrInvalidQoS},
		{"oversized payload", "beamline-test/x", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
		{"nil payload", "beamline-test/x", nil, 1, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.want) {
				t.Errorf("Publish() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSubscribeValidation(t *testing.T) {
	client := connectTest(t, "beamline-test-subvalidate")
	noop := func(string, []byte) error { return nil }

	if !errors.Is(client.Subscribe("", 1, noop), ErrInvalidTopic) {
		t.Error("empty topic should be rejected")
	}
	if !errors.Is(client.Subscribe("a/b", 3, noop), ErrInvalidQoS) {
		t.Error("QoS 3 should be rejected")
	}
	if !errors.Is(client.Subscribe("a/b", 1, nil), ErrSubscribeFailed) {
		t.Error("nil handler should be rejected")
	}
	if client.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", client.SubscriptionCount())
	}
}

func TestPublishSubscribeRoundtrip(t *testing.T) {
	client := connectTest(t, "beamline-test-roundtrip")
	topics := client.Topics()
	topic := topics.PVValue("BL03I-TEST-01:RBV")

	received := make(chan string, 1)
	err := client.Subscribe(topics.AllPVValues(), 1, func(topic string, payload []byte) error {
		pv, _ := topics.PVFromValueTopic(topic)
		received <- pv + "=" + string(payload)
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if !client.HasSubscription(topics.AllPVValues()) {
		t.Error("HasSubscription() = false after Subscribe")
	}

	if err := client.Publish(topic, []byte("1.5"), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case got := <-received:
		if got != "BL03I-TEST-01:RBV=1.5" {
			t.Errorf("received %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("message not received")
	}

	if err := client.Unsubscribe(topics.AllPVValues()); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	if client.SubscriptionCount() != 0 {
		t.Error("subscription still tracked after Unsubscribe")
	}
}

func TestHandlerErrorAndPanicAreLogged(t *testing.T) {
	client := connectTest(t, "beamline-test-handler")
	logger := &recordingLogger{}
	client.SetLogger(logger)

	done := make(chan struct{}, 2)
	client.Subscribe("beamline-test/err", 1, func(string, []byte) error { //nolint:errcheck // Asserted via logger
		defer func() { done <- struct{}{} }()
		return errors.New("handler error")
	})
	client.Subscribe("beamline-test/panic", 1, func(string, []byte) error { //nolint:errcheck // Asserted via logger
		defer func() { done <- struct{}{} }()
		panic("boom")
	})

	client.Publish("beamline-test/err", []byte("x"), 1, false)   //nolint:errcheck // Delivery asserted below
	client.Publish("beamline-test/panic", []byte("x"), 1, false) //nolint:errcheck // Delivery asserted below

	for range 2 {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("handler not called")
		}
	}
	time.Sleep(50 * time.Millisecond)

	logger.mu.Lock()
	defer logger.mu.Unlock()
	if len(logger.warns) != 1 || len(logger.errors) != 1 {
		t.Errorf("warns=%d errors=%d, want 1 and 1", len(logger.warns), len(logger.errors))
	}
}

type recordingLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}
