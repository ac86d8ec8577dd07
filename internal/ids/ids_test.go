package ids

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewHasPrefixAndIsUnique(t *testing.T) {
	a := New("tenant")
	b := New("tenant")
	assert.True(t, strings.HasPrefix(a, "tenant_"))
	assert.NotEqual(t, a, b)
	assert.NotContains(t, strings.TrimPrefix(a, "tenant_"), "-")
}

func TestNewSortableOrdersByCreationTime(t *testing.T) {
	a := NewSortable("tl")
	b := NewSortable("tl")
	assert.True(t, strings.HasPrefix(a, "tl_"))
	assert.LessOrEqual(t, a, b)
}
