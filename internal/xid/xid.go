package xid

import "github.com/google/uuid"

// New returns prefix joined to a random UUIDv4, e.g. "inv-3f0c...".
func New(prefix string) string {
	if prefix == "" {
		return uuid.NewString()
	}
	return prefix + "-" + uuid.NewString()
}
