// Package tenant manages sending profiles: the per-tenant relay
// credentials, sender identity, and hourly throughput cap. Profiles are
// provisioned explicitly; a tenant without one cannot send.
package tenant
