// Command testserver runs a mock NodeHealthMonitor gateway for local runs.
//
// Usage:
//
//	testserver [flags]
//
// Flags:
//
//	-port       Port to listen on (default: 8080)
//	-host       Host to bind to (default: localhost)
//	-delay      Delay added to every response (default: 0)
//	-jitter     Random extra delay up to this value (default: 0)
//	-fail-rate  Percentage of requests answered with 500 (default: 0)
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"healthbench/testserver"
)

func main() {
	port := flag.Int("port", 8080, "port to listen on")
	host := flag.String("host", "localhost", "host to bind to")
	delay := flag.Duration("delay", 0, "delay added to every response")
	jitter := flag.Duration("jitter", 0, "random extra delay up to this value")
	failRate := flag.Int("fail-rate", 0, "percentage of requests answered with 500")
	flag.Parse()

	server := testserver.NewServer(testserver.Options{
		Delay:    *delay,
		Jitter:   *jitter,
		FailRate: *failRate,
	})
	addr := fmt.Sprintf("%s:%d", *host, *port)

	fmt.Println("Healthbench Test Gateway")
	fmt.Println("========================")
	fmt.Printf("Listening on http://%s\n\n", addr)
	fmt.Println("Endpoints:")
	fmt.Println("  GET  /health   - Health check")
	fmt.Println("  POST /invoke   - reportStatus (?delay=ms&failRate=pct)")
	fmt.Println("  POST /query    - getLatestStatus (?delay=ms&failRate=pct)")
	fmt.Println("  GET  /stats    - Request counters")
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{Addr: addr, Handler: server.Handler()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logrus.WithError(err).Error("test gateway stopped")
		os.Exit(1)
	}
	logrus.WithField("stats", fmt.Sprintf("%+v", server.Stats())).Info("shut down")
}
