package objectstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxwell/runtime/internal/domain"
)

func TestMemory_WriteThenReadRoundTrips(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	ref, err := m.WriteObject(ctx, []byte("hello"), "text/plain", "org1", "exec1", "a.txt")
	require.NoError(t, err)
	assert.NotEmpty(t, ref.ID)
	assert.Equal(t, "text/plain", ref.MimeType)

	data, meta, err := m.ReadObject(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)
	assert.Equal(t, "a.txt", meta.Filename)
	assert.Equal(t, int64(5), meta.Size)
}

func TestMemory_ReadMissingObjectIsMissingDependency(t *testing.T) {
	m := NewMemory()
	_, _, err := m.ReadObject(context.Background(), domain.ObjectRef{ID: "does-not-exist"})
	require.Error(t, err)
	de, ok := domain.AsDomainError(err)
	require.True(t, ok)
	assert.Equal(t, domain.ErrMissingDependency, de.Kind)
}

func TestMemory_DeleteRemovesObject(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	ref, err := m.WriteObject(ctx, []byte("x"), "text/plain", "org1", "exec1", "a.txt")
	require.NoError(t, err)

	require.NoError(t, m.DeleteObject(ctx, ref))
	_, _, err = m.ReadObject(ctx, ref)
	assert.Error(t, err)
}

func TestMemory_ListFiltersByOrganization(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	_, err := m.WriteObject(ctx, []byte("a"), "text/plain", "org1", "exec1", "a.txt")
	require.NoError(t, err)
	_, err = m.WriteObject(ctx, []byte("b"), "text/plain", "org2", "exec1", "b.txt")
	require.NoError(t, err)

	org1Objects, err := m.List(ctx, "org1")
	require.NoError(t, err)
	assert.Len(t, org1Objects, 1)
	assert.Equal(t, "a.txt", org1Objects[0].Filename)
}

func TestMemory_PresignProducesAnExpiringURL(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	ref, err := m.WriteObject(ctx, []byte("x"), "text/plain", "org1", "exec1", "a.txt")
	require.NoError(t, err)

	url, err := m.Presign(ctx, ref, time.Minute)
	require.NoError(t, err)
	assert.Contains(t, url, ref.ID)
}
