package xid

import (
	"fmt"

	"github.com/google/uuid"
)

// New returns a prefixed identifier such as "sale-8f14e45f-...". The prefix
// makes ids self-describing in logs and history entries.
func New(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
}
