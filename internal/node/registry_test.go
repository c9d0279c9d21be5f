package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubNode carries a field so each allocation gets its own address;
// pointers to zero-size values may compare equal.
type stubNode struct{ id int }

func (stubNode) Execute(ec ExecutionContext) (ExecutionOutcome, error) { return ExecutionOutcome{}, nil }

func TestRegistry_RegisterThenNewProducesAFreshInstanceEachTime(t *testing.T) {
	r := NewRegistry()
	r.Register(Metadata{Type: "stub"}, func() any { return &stubNode{} })

	a, ok := r.New("stub")
	require.True(t, ok)
	b, ok := r.New("stub")
	require.True(t, ok)
	assert.NotSame(t, a, b)
}

func TestRegistry_NewUnknownTypeReturnsFalse(t *testing.T) {
	r := NewRegistry()
	_, ok := r.New("does-not-exist")
	assert.False(t, ok)
}

func TestRegistry_MetadataLooksUpByType(t *testing.T) {
	r := NewRegistry()
	r.Register(Metadata{Type: "stub", DisplayName: "Stub"}, func() any { return &stubNode{} })

	meta, ok := r.Metadata("stub")
	require.True(t, ok)
	assert.Equal(t, "Stub", meta.DisplayName)
}
