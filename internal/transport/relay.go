package transport

import (
	"context"
	"crypto/tls"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/ignite/mailspool/internal/domain"
)

// Relay submits messages through a configured SMTP relay with
// authentication. Encryption follows the tenant's configured mode; an
// unreachable or refusing relay surfaces as a TransportError with no retry.
type Relay struct {
	Host       string
	Port       int
	Username   string
	Password   string
	Encryption domain.Encryption
	Timeout    time.Duration
}

// NewRelay builds a relay transport from a tenant profile.
func NewRelay(p *domain.TenantProfile) (*Relay, error) {
	if p.RelayHost == "" {
		return nil, &ConfigError{Reason: "missing relay host"}
	}
	port := p.RelayPort
	if port == 0 {
		port = 587
	}
	return &Relay{
		Host:       p.RelayHost,
		Port:       port,
		Username:   p.RelayUsername,
		Password:   p.RelayPassword,
		Encryption: p.Encryption,
		Timeout:    DefaultTimeout,
	}, nil
}

// Send submits the message for all recipients in a single transaction.
func (r *Relay) Send(ctx context.Context, from string, rcpts []string, msg []byte) (int, error) {
	addr := net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
	dialer := &net.Dialer{Timeout: r.timeout()}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return 0, &TransportError{Host: addr, Err: err}
	}
	if r.Encryption == domain.EncryptionImplicit {
		conn = tls.Client(conn, &tls.Config{ServerName: r.Host})
	}

	client, err := smtp.NewClient(conn, r.Host)
	if err != nil {
		conn.Close()
		return 0, &TransportError{Host: addr, Err: err}
	}
	defer client.Close()

	if r.Encryption == domain.EncryptionSTARTTLS {
		if err := client.StartTLS(&tls.Config{ServerName: r.Host}); err != nil {
			return 0, &TransportError{Host: addr, Err: err}
		}
	}

	if r.Username != "" {
		if err := client.Auth(&plainAuth{user: r.Username, pass: r.Password}); err != nil {
			return 0, &TransportError{Host: addr, Err: err}
		}
	}

	if err := submit(client, from, rcpts, msg); err != nil {
		return 0, &TransportError{Host: addr, Err: err}
	}
	return len(rcpts), nil
}

func (r *Relay) timeout() time.Duration {
	if r.Timeout > 0 {
		return r.Timeout
	}
	return DefaultTimeout
}

// submit runs the MAIL/RCPT/DATA/QUIT sequence on an established client.
func submit(client smtpClient, from string, rcpts []string, msg []byte) error {
	if err := client.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range rcpts {
		if err := client.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

// plainAuth implements AUTH PLAIN without the TLS requirement that stdlib's
// smtp.PlainAuth enforces. Relays configured with Encryption "none" sit on
// private networks where the submission port has no TLS.
type plainAuth struct {
	user, pass string
}

func (a *plainAuth) Start(server *smtp.ServerInfo) (string, []byte, error) {
	return "PLAIN", []byte("\x00" + a.user + "\x00" + a.pass), nil
}

func (a *plainAuth) Next(fromServer []byte, more bool) ([]byte, error) {
	return nil, nil
}
