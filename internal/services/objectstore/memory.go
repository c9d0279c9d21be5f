// Package objectstore provides object store implementations: an in-memory
// store for tests and local runs, and a Postgres-backed store for
// production use.
package objectstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fluxwell/runtime/internal/domain"
	"github.com/fluxwell/runtime/internal/services"
)

type memoryObject struct {
	data     []byte
	mimeType string
	filename string
	orgID    string
}

// Memory is a process-local ObjectStore, useful for the ephemeral host
// runtime and for tests.
type Memory struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

func NewMemory() *Memory {
	return &Memory{objects: make(map[string]memoryObject)}
}

func (m *Memory) WriteObject(ctx context.Context, data []byte, mimeType, orgID, executionID, filename string) (domain.ObjectRef, error) {
	id := uuid.New().String()
	m.mu.Lock()
	m.objects[id] = memoryObject{data: append([]byte(nil), data...), mimeType: mimeType, filename: filename, orgID: orgID}
	m.mu.Unlock()
	return domain.ObjectRef{ID: id, MimeType: mimeType, Filename: filename}, nil
}

func (m *Memory) ReadObject(ctx context.Context, ref domain.ObjectRef) ([]byte, *services.ObjectMetadata, error) {
	m.mu.RLock()
	obj, ok := m.objects[ref.ID]
	m.mu.RUnlock()
	if !ok {
		return nil, nil, domain.NewDomainError(domain.ErrMissingDependency, fmt.Sprintf("object %q not found", ref.ID), nil)
	}
	meta := &services.ObjectMetadata{ID: ref.ID, MimeType: obj.mimeType, Filename: obj.filename, Size: int64(len(obj.data))}
	return obj.data, meta, nil
}

func (m *Memory) DeleteObject(ctx context.Context, ref domain.ObjectRef) error {
	m.mu.Lock()
	delete(m.objects, ref.ID)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Presign(ctx context.Context, ref domain.ObjectRef, ttl time.Duration) (string, error) {
	return fmt.Sprintf("memory://objects/%s?expires=%d", ref.ID, time.Now().Add(ttl).Unix()), nil
}

func (m *Memory) WriteAndPresign(ctx context.Context, data []byte, mimeType, orgID string, ttl time.Duration) (string, error) {
	ref, err := m.WriteObject(ctx, data, mimeType, orgID, "", "")
	if err != nil {
		return "", err
	}
	return m.Presign(ctx, ref, ttl)
}

func (m *Memory) List(ctx context.Context, orgID string) ([]services.ObjectMetadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []services.ObjectMetadata
	for id, obj := range m.objects {
		if obj.orgID != orgID {
			continue
		}
		out = append(out, services.ObjectMetadata{ID: id, MimeType: obj.mimeType, Filename: obj.filename, Size: int64(len(obj.data))})
	}
	return out, nil
}
