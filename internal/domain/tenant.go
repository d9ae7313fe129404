package domain

import "time"

// Encryption enumerates the connection security modes for relay delivery.
type Encryption string

const (
	// EncryptionSTARTTLS upgrades a plaintext connection after EHLO.
	EncryptionSTARTTLS Encryption = "starttls"
	// EncryptionImplicit opens a TLS connection from the first byte.
	EncryptionImplicit Encryption = "implicit"
	// EncryptionNone sends in plaintext. Only sensible on private networks.
	EncryptionNone Encryption = "none"
)

// DefaultHourlyCap is the throughput cap applied to newly provisioned tenants.
const DefaultHourlyCap = 100

// TenantProfile is the root of all per-tenant data. It owns the transport
// configuration and the hourly throughput cap. Every other entity carries a
// TenantID back-reference and all queries are scoped by it.
type TenantProfile struct {
	TenantID      string     `json:"tenant_id" db:"tenant_id"`
	RelayHost     string     `json:"relay_host" db:"relay_host"`
	RelayPort     int        `json:"relay_port" db:"relay_port"`
	RelayUsername string     `json:"-" db:"relay_username"`
	RelayPassword string     `json:"-" db:"relay_password"`
	Encryption    Encryption `json:"encryption" db:"encryption"`
	DirectSend    bool       `json:"direct_send" db:"direct_send"`
	FromAddress   string     `json:"from_address" db:"from_address"`
	HourlyCap     int        `json:"hourly_cap" db:"hourly_cap"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// TenantSummary holds the dashboard counts for one tenant.
type TenantSummary struct {
	RecipientCount int `json:"recipient_count"`
	TemplateCount  int `json:"template_count"`
	CandidateCount int `json:"candidate_count"`
	SentCount      int `json:"sent_count"`
	PendingCount   int `json:"pending_count"`
	LogCount       int `json:"log_count"`
}
