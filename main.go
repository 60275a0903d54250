package main

import (
	"context"
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"time"

	"golang.org/x/time/rate"

	"github.com/Nowayz/WebSocket-Application-Relay/internal/relay"
	"github.com/Nowayz/WebSocket-Application-Relay/internal/store"
)

// Version is the relay's release version, reported by `relay version`.
const Version = "0.1.0"

func main() {
	if len(os.Args) > 1 {
		cliDB := "relay.db"
		if RunCLI(os.Args[1:], cliDB) {
			return
		}
	}

	addr := flag.String("addr", ":8443", "HTTPS/WebSocket listen address")
	dbPath := flag.String("db", "relay.db", "SQLite database path (credentials + audit log)")
	idleTimeout := flag.Duration("idle-timeout", defaultIdleTimeout, "HTTP idle timeout")
	certValidity := flag.Duration("cert-validity", defaultCertValidity, "self-signed TLS certificate validity")
	reclaimInterval := flag.Duration("reclaim-interval", defaultReclaimInterval, "session reclamation sleep-loop period")
	admissionRate := flag.Float64("admission-rate", defaultAdmissionRatePerSec, "max new connections/sec before CLOSE_TRY_AGAIN_LATER")
	admissionBurst := flag.Int("admission-burst", defaultAdmissionBurst, "admission token-bucket burst size")
	metricsInterval := flag.Duration("metrics-interval", defaultMetricsInterval, "periodic metrics log interval")
	flag.Parse()

	st, err := store.Open(*dbPath)
	if err != nil {
		log.Fatalf("[store] %v", err)
	}
	defer st.Close()

	creds, err := st.Credentials(context.Background())
	if err != nil {
		log.Fatalf("[store] load credentials: %v", err)
	}
	relayCreds := make([]relay.Credential, len(creds))
	for i, c := range creds {
		relayCreds[i] = relay.Credential{Password: c.Password, Level: c.Level}
	}

	tlsHostname := ""
	if host, _, err := net.SplitHostPort(*addr); err == nil && host != "" {
		tlsHostname = host
	}
	tlsConfig, fingerprint, err := generateTLSConfig(*certValidity, tlsHostname)
	if err != nil {
		log.Fatalf("[server] %v", err)
	}
	log.Printf("[server] TLS certificate fingerprint: %s", fingerprint)

	r := relay.New(relayCreds, nil, func(action string, userID uint64) {
		if err := st.RecordAudit(context.Background(), action, userID); err != nil {
			log.Printf("[audit] insert: %v", err)
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		log.Println("[server] shutting down...")
		cancel()
	}()

	go RunMetrics(ctx, r, *metricsInterval)
	go runReclaimer(ctx, r, *reclaimInterval)

	admission := rate.NewLimiter(rate.Limit(*admissionRate), *admissionBurst)

	srv := NewServer(*addr, tlsConfig, r, admission, *idleTimeout)
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("[server] %v", err)
	}
}

// runReclaimer is the single dedicated reclamation-thread sleep-loop:
// one goroutine periodically drains sessions that invalidated since the
// last pass, once no in-flight dispatch can still observe them.
func runReclaimer(ctx context.Context, r *relay.Relay, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Reclaim()
		}
	}
}
