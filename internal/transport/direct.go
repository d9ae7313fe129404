package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log"
	"net"
	"net/smtp"
	"sort"
	"strings"
	"time"
)

// Resolver looks up mail exchange records. *net.Resolver satisfies it.
type Resolver interface {
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
}

// smtpClient is the subset of *smtp.Client the transports use.
type smtpClient interface {
	Hello(localName string) error
	Extension(ext string) (bool, string)
	StartTLS(cfg *tls.Config) error
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}

// Direct delivers mail straight to each recipient domain's mail exchangers,
// without a relay. Recipients are grouped by domain; exchangers are tried in
// ascending priority order and the first one that accepts the message wins
// for all of that domain's recipients. Domains fail independently.
type Direct struct {
	HelloName    string
	FailSilently bool
	Timeout      time.Duration
	Resolver     Resolver

	// dial is swapped in tests to avoid real network connections.
	dial func(ctx context.Context, host string) (smtpClient, error)
}

// NewDirect builds a direct transport. The EHLO name is derived from the
// sender address domain.
func NewDirect(fromAddress string) *Direct {
	hello := "localhost"
	if at := strings.LastIndex(fromAddress, "@"); at >= 0 && at < len(fromAddress)-1 {
		hello = fromAddress[at+1:]
	}
	d := &Direct{
		HelloName: hello,
		Timeout:   DefaultTimeout,
		Resolver:  net.DefaultResolver,
	}
	d.dial = d.dialHost
	return d
}

// Send delivers the message per domain and returns the number of recipients
// in domains that succeeded. When FailSilently is disabled, any failed
// domain turns the whole call into an error; succeeded domains still count.
func (d *Direct) Send(ctx context.Context, from string, rcpts []string, msg []byte) (int, error) {
	groups := groupByDomain(rcpts)

	domains := make([]string, 0, len(groups))
	for dom := range groups {
		domains = append(domains, dom)
	}
	sort.Strings(domains)

	var delivered int
	var failed []string
	for _, dom := range domains {
		if err := d.sendToDomain(ctx, dom, from, groups[dom], msg); err != nil {
			log.Printf("[DirectSMTP] delivery to domain %s failed: %v", dom, err)
			failed = append(failed, dom)
			continue
		}
		delivered += len(groups[dom])
	}

	if len(failed) > 0 && !d.FailSilently {
		return delivered, &TransportError{
			Err: fmt.Errorf("delivery failed for domains: %s", strings.Join(failed, ", ")),
		}
	}
	return delivered, nil
}

// sendToDomain resolves the domain's exchangers and tries each in priority
// order. A domain with no resolvable records fails without any dial.
func (d *Direct) sendToDomain(ctx context.Context, dom, from string, rcpts []string, msg []byte) error {
	records, err := d.resolver().LookupMX(ctx, dom)
	if err != nil {
		return &ResolutionError{Domain: dom, Err: err}
	}
	if len(records) == 0 {
		return &ResolutionError{Domain: dom}
	}

	// Lowest numeric preference first. net.LookupMX already sorts, but the
	// Resolver interface makes no such promise.
	sort.SliceStable(records, func(i, j int) bool { return records[i].Pref < records[j].Pref })

	var lastErr error
	for _, mx := range records {
		host := strings.TrimSuffix(mx.Host, ".")
		if err := d.sendToHost(ctx, host, from, rcpts, msg); err != nil {
			log.Printf("[DirectSMTP] exchange host %s refused: %v", host, err)
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}

func (d *Direct) sendToHost(ctx context.Context, host, from string, rcpts []string, msg []byte) error {
	client, err := d.connect(ctx, host, true)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := submit(client, from, rcpts, msg); err != nil {
		return &TransportError{Host: host, Err: err}
	}
	return nil
}

// connect dials the exchanger on the standard port and opportunistically
// upgrades to TLS when advertised. A failed upgrade negotiation is logged
// and delivery falls back to a fresh plaintext connection.
func (d *Direct) connect(ctx context.Context, host string, tryTLS bool) (smtpClient, error) {
	client, err := d.dial(ctx, host)
	if err != nil {
		return nil, &TransportError{Host: host, Err: err}
	}
	if err := client.Hello(d.HelloName); err != nil {
		client.Close()
		return nil, &TransportError{Host: host, Err: err}
	}
	if tryTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: host}); err != nil {
				log.Printf("[DirectSMTP] STARTTLS with %s failed, continuing without encryption: %v", host, err)
				client.Close()
				return d.connect(ctx, host, false)
			}
		}
	}
	return client, nil
}

func (d *Direct) dialHost(ctx context.Context, host string) (smtpClient, error) {
	dialer := &net.Dialer{Timeout: d.timeout()}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, "25"))
	if err != nil {
		return nil, err
	}
	return smtp.NewClient(conn, host)
}

func (d *Direct) resolver() Resolver {
	if d.Resolver != nil {
		return d.Resolver
	}
	return net.DefaultResolver
}

func (d *Direct) timeout() time.Duration {
	if d.Timeout > 0 {
		return d.Timeout
	}
	return DefaultTimeout
}

// groupByDomain buckets recipient addresses by their domain part.
// Addresses without a domain are bucketed under "" and will fail
// resolution, which is the desired outcome.
func groupByDomain(rcpts []string) map[string][]string {
	groups := make(map[string][]string)
	for _, rcpt := range rcpts {
		dom := ""
		if at := strings.LastIndex(rcpt, "@"); at >= 0 {
			dom = strings.ToLower(rcpt[at+1:])
		}
		groups[dom] = append(groups[dom], rcpt)
	}
	return groups
}
