// Package ids generates collision-resistant, typed-prefix identifiers.
// Random ids use google/uuid (teacher's house id library); audit/timeline
// ids use ulid so since-timestamp queries can rely on lexicographic order.
package ids

import (
	"strings"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// New returns a prefixed random id, e.g. New("tenant") -> "tenant_3e9c...".
func New(prefix string) string {
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	return prefix + "_" + raw
}

// NewSortable returns a prefixed, time-sortable id for append-only logs
// (audit events, analysis-run timeline entries).
func NewSortable(prefix string) string {
	return prefix + "_" + ulid.Make().String()
}
