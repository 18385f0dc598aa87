// Package subject builds the canonical NATS subjects used by the messaging
// gateway. Subject strings are the sole wire contract with the bus; changing
// them is a protocol break.
package subject

import "strings"

const (
	// IngressPrefix is the subject prefix for inbound envelopes.
	IngressPrefix = "greentic.messaging.ingress"
	// EgressPrefix is the subject prefix for outbound messages.
	EgressPrefix = "greentic.messaging.egress.out"
	// DLQPrefix is the subject prefix for dead-lettered deliveries.
	DLQPrefix = "greentic.messaging.dlq"
)

// Normalize lowercases a subject token and maps characters that would break
// NATS subject syntax to "-". An empty result becomes "unknown".
func Normalize(token string) string {
	t := strings.TrimSpace(strings.ToLower(token))
	replacer := strings.NewReplacer(
		" ", "-",
		"\t", "-",
		"\r", "-",
		"\n", "-",
		"*", "-",
		">", "-",
		"/", "-",
	)
	t = replacer.Replace(t)
	if t == "" {
		return "unknown"
	}
	return t
}

// Ingress returns the canonical ingress subject for an inbound envelope.
func Ingress(env, tenant, team, platform string) string {
	return IngressPrefix + "." + Normalize(env) + "." + Normalize(tenant) + "." + Normalize(team) + "." + Normalize(platform)
}

// Egress returns the canonical egress work subject for a tenant/platform pair.
func Egress(tenant, platform string) string {
	return EgressPrefix + "." + Normalize(tenant) + "." + Normalize(platform)
}

// DLQ returns the dead-letter subject for a direction ("in" or "out").
// Any other direction falls back to "in".
func DLQ(direction, tenant, platform string) string {
	dir := Normalize(direction)
	if dir != "in" && dir != "out" {
		dir = "in"
	}
	return DLQPrefix + "." + dir + "." + Normalize(tenant) + "." + Normalize(platform)
}
