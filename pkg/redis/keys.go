package redis

import "strings"

const keyNamespace = "sf"

// Keyspace builds the namespaced keys every storefront process shares.
// Empty segments are dropped so callers can pass optional scopes.
type Keyspace struct {
	namespace string
}

// DefaultKeyspace is rooted at "sf".
func DefaultKeyspace() Keyspace {
	return Keyspace{namespace: keyNamespace}
}

func (k Keyspace) Idempotency(scope, id string) string {
	return k.join("idempotency", scope, id)
}

func (k Keyspace) RateLimit(scope string) string {
	return k.join("rate_limit", scope)
}

func (k Keyspace) AccessSession(accessID string) string {
	return k.join("session", "access", accessID)
}

func (k Keyspace) join(parts ...string) string {
	ns := k.namespace
	if ns == "" {
		ns = keyNamespace
	}
	segments := make([]string, 0, len(parts)+1)
	segments = append(segments, ns)
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			segments = append(segments, part)
		}
	}
	return strings.Join(segments, ":")
}
