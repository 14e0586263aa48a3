package utils

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/mpapenbr/fpv-racedash/log"
)

const dialRetry = 200 * time.Millisecond

// WaitForTCP blocks until addr accepts tcp connections or timeout passed.
func WaitForTCP(addr string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	start := time.Now()
	l := log.Default().Named("conncheck")
	l.Debug("waiting for service",
		log.String("addr", addr),
		log.Duration("timeout", timeout))

	var d net.Dialer
	for {
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err == nil {
			conn.Close()
			l.Debug("service reachable",
				log.String("addr", addr),
				log.Duration("took", time.Since(start)))
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s not reachable within %v: %w", addr, timeout, err)
		case <-time.After(dialRetry):
		}
	}
}

// ExtractFromNatsURL returns host:port of the first server in a nats url.
// The nats default port 4222 is used if none is given.
func ExtractFromNatsURL(natsURL string) string {
	first, _, _ := strings.Cut(natsURL, ",")
	return hostPort(first, "4222", "nats", "tls")
}

// ExtractFromDBURL returns host:port of a postgres url, default port 5432.
func ExtractFromDBURL(dbURL string) string {
	return hostPort(dbURL, "5432", "postgresql", "postgres")
}

func hostPort(raw, defaultPort string, schemes ...string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Hostname() == "" {
		return ""
	}
	known := false
	for _, s := range schemes {
		if strings.EqualFold(u.Scheme, s) {
			known = true
		}
	}
	if !known {
		return ""
	}
	port := u.Port()
	if port == "" {
		port = defaultPort
	}
	return net.JoinHostPort(u.Hostname(), port)
}
