package submit

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"healthbench/internal/config"
	"healthbench/testserver"
)

// flakyChecker fails until it has been called okAfter times.
type flakyChecker struct {
	calls   atomic.Int32
	okAfter int32
}

func (f *flakyChecker) CheckHealth(ctx context.Context) error {
	if f.calls.Add(1) < f.okAfter {
		return errors.New("connection refused")
	}
	return nil
}

func TestWaitReady_RetriesUntilHealthy(t *testing.T) {
	logger, hook := test.NewNullLogger()
	hc := &flakyChecker{okAfter: 3}

	err := WaitReady(context.Background(), hc, config.HealthConfig{Attempts: 5, Interval: time.Millisecond}, logger.WithField("submitter", "fake"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hc.calls.Load() != 3 {
		t.Errorf("expected 3 checks, got %d", hc.calls.Load())
	}
	if got := len(hook.AllEntries()); got != 3 {
		t.Errorf("expected 2 warnings and 1 info entry, got %d", got)
	}
}

func TestWaitReady_GivesUp(t *testing.T) {
	logger, _ := test.NewNullLogger()
	hc := &flakyChecker{okAfter: 100}

	start := time.Now()
	err := WaitReady(context.Background(), hc, config.HealthConfig{Attempts: 4, Interval: 10 * time.Millisecond}, logger.WithField("submitter", "fake"))
	if !errors.Is(err, ErrUnreachable) {
		t.Fatalf("expected ErrUnreachable, got %v", err)
	}
	if hc.calls.Load() != 4 {
		t.Errorf("expected 4 checks, got %d", hc.calls.Load())
	}
	// Three intervals between four attempts.
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("expected attempts to be spaced by the interval, took %v", elapsed)
	}
}

func TestWaitReady_ZeroAttemptsChecksOnce(t *testing.T) {
	logger, _ := test.NewNullLogger()
	hc := &flakyChecker{okAfter: 1}

	if err := WaitReady(context.Background(), hc, config.HealthConfig{}, logger.WithField("submitter", "fake")); err != nil {
		t.Fatal(err)
	}
	if hc.calls.Load() != 1 {
		t.Errorf("expected 1 check, got %d", hc.calls.Load())
	}
}

func TestWaitReady_ContextCancelledDuringInterval(t *testing.T) {
	logger, _ := test.NewNullLogger()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := WaitReady(ctx, &flakyChecker{okAfter: 100}, config.HealthConfig{Attempts: 10, Interval: time.Hour}, logger.WithField("submitter", "fake"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("cancellation did not interrupt the interval, took %v", elapsed)
	}
}

func TestGateway_CheckHealthAgainstTestServer(t *testing.T) {
	ts := httptest.NewServer(testserver.NewServer(testserver.Options{}).Handler())
	defer ts.Close()

	g, err := NewGateway(config.GatewayConfig{URL: ts.URL}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := g.CheckHealth(context.Background()); err != nil {
		t.Errorf("expected healthy gateway, got %v", err)
	}

	// The mock serves no /ready path.
	g.healthPath = "/ready"
	if err := g.CheckHealth(context.Background()); err == nil {
		t.Error("expected error for a non-2xx health response")
	}
}

func TestGateway_CheckHealthUnreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	g, err := NewGateway(config.GatewayConfig{URL: url, Timeout: time.Second}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	logger, _ := test.NewNullLogger()
	err = WaitReady(context.Background(), g, config.HealthConfig{Attempts: 2, Interval: time.Millisecond}, logger.WithField("submitter", "gateway"))
	if !errors.Is(err, ErrUnreachable) {
		t.Errorf("expected ErrUnreachable, got %v", err)
	}
}

func TestNew_GatewayUsesConfiguredHealthPath(t *testing.T) {
	logger, _ := test.NewNullLogger()
	s, err := New(config.SubmitterConfig{
		Type:    config.SubmitterGateway,
		Gateway: config.GatewayConfig{URL: "http://localhost:8080"},
		Health:  config.HealthConfig{Path: "status"},
	}, logger, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if got := s.(*Gateway).healthPath; got != "/status" {
		t.Errorf("healthPath = %q, want /status", got)
	}
}

func TestKafka_CheckHealth(t *testing.T) {
	logger, _ := test.NewNullLogger()

	if err := newKafkaWithWriter(&fakeWriter{}, "t", logger).CheckHealth(context.Background()); err == nil {
		t.Error("expected error without brokers")
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	k := newKafkaWithWriter(&fakeWriter{}, "t", logger)
	k.brokers = []string{addr}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := k.CheckHealth(ctx); err == nil {
		t.Errorf("expected error dialing closed broker %s", addr)
	}
}
