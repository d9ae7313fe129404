// Package transport delivers composed messages over SMTP, either through an
// authenticated relay or directly to the recipient domain's mail exchangers.
package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/ignite/mailspool/internal/domain"
)

// DefaultTimeout bounds every connection attempt. A hung remote server must
// not stall the whole dispatch batch.
const DefaultTimeout = 30 * time.Second

// Transport delivers a fully composed RFC 5322 message to the given
// recipients and returns the number of recipients the message was accepted
// for. Implementations do not retry.
type Transport interface {
	Send(ctx context.Context, from string, rcpts []string, msg []byte) (int, error)
}

// ForProfile selects the transport variant for a tenant's configuration.
// Returns a ConfigError when the profile cannot send at all.
func ForProfile(p *domain.TenantProfile) (Transport, error) {
	if p.FromAddress == "" {
		return nil, &ConfigError{Reason: "missing sender address"}
	}
	if p.DirectSend {
		return NewDirect(p.FromAddress), nil
	}
	return NewRelay(p)
}

// ConfigError reports missing or invalid transport configuration. It is
// fatal to a single send, never to the whole batch.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "transport configuration: " + e.Reason
}

// ResolutionError reports that a recipient domain has no resolvable mail
// exchange records. Only that domain's recipients fail.
type ResolutionError struct {
	Domain string
	Err    error
}

func (e *ResolutionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("no mail exchangers for domain %s", e.Domain)
	}
	return fmt.Sprintf("resolve mail exchangers for %s: %v", e.Domain, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// TransportError reports a connection, authentication, or protocol failure
// during a send attempt.
type TransportError struct {
	Host string
	Err  error
}

func (e *TransportError) Error() string {
	if e.Host == "" {
		return fmt.Sprintf("smtp: %v", e.Err)
	}
	return fmt.Sprintf("smtp %s: %v", e.Host, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
