// Package mapper implements the parameter mapper: the sole place that
// knows how to move a value between its node form (what implementations
// consume/produce) and its wire form (what ExecutionState stores).
package mapper

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/fluxwell/runtime/internal/domain"
	"github.com/fluxwell/runtime/internal/services"
)

// Mapper converts values between node form and wire form for every
// parameter type tag, using a single dispatch table keyed by tag.
type Mapper struct {
	ObjectStore services.ObjectStore
}

func New(store services.ObjectStore) *Mapper {
	return &Mapper{ObjectStore: store}
}

// NodeToAPI converts a node-form value to its wire form. For blob-family
// types it writes bytes to the object store scoped to (orgID, executionID)
// and returns the reference.
func (m *Mapper) NodeToAPI(ctx context.Context, t domain.ParamType, value any, orgID, executionID string) (any, error) {
	switch {
	case domain.IsBlobFamily(t):
		return m.blobToReference(ctx, value, orgID, executionID)
	case t == domain.ParamDate:
		return dateToWire(value), nil
	case domain.IsJSONFamily(t):
		return value, nil
	case t == domain.ParamAny:
		return m.anyToWire(ctx, value, orgID, executionID)
	default:
		return scalarToWire(t, value), nil
	}
}

// APIToNode converts a wire-form value to its node form. For blob-family
// types it resolves the reference via the object store.
func (m *Mapper) APIToNode(ctx context.Context, t domain.ParamType, wireValue any) (any, error) {
	switch {
	case domain.IsBlobFamily(t):
		return m.referenceToBlob(ctx, wireValue)
	case domain.IsJSONFamily(t):
		return parseIfString(wireValue), nil
	case t == domain.ParamAny:
		return m.wireToAny(ctx, wireValue)
	default:
		return wireValue, nil
	}
}

func (m *Mapper) blobToReference(ctx context.Context, value any, orgID, executionID string) (domain.ObjectRef, error) {
	blob, ok := value.(domain.NodeBlob)
	if !ok {
		return domain.ObjectRef{}, domain.NewDomainError(domain.ErrNode, "expected a blob value for blob-family parameter", nil)
	}
	if m.ObjectStore == nil {
		return domain.ObjectRef{}, domain.NewDomainError(domain.ErrMissingDependency, "object store required to write a blob-family output but none was injected", nil)
	}
	if orgID == "" {
		return domain.ObjectRef{}, domain.NewDomainError(domain.ErrMissingDependency, "organization id required to write a blob-family output but none was provided", nil)
	}
	return m.ObjectStore.WriteObject(ctx, blob.Data, blob.MimeType, orgID, executionID, blob.Filename)
}

func (m *Mapper) referenceToBlob(ctx context.Context, wireValue any) (domain.NodeBlob, error) {
	ref, ok := asObjectRef(wireValue)
	if !ok {
		return domain.NodeBlob{}, domain.NewDomainError(domain.ErrNode, "expected an object reference for blob-family parameter", nil)
	}
	if m.ObjectStore == nil {
		return domain.NodeBlob{}, domain.NewDomainError(domain.ErrMissingDependency, "object store required to read a blob-family input but none was injected", nil)
	}
	data, meta, err := m.ObjectStore.ReadObject(ctx, ref)
	if err != nil {
		return domain.NodeBlob{}, err
	}
	mimeType := ref.MimeType
	filename := ref.Filename
	if meta != nil {
		if meta.MimeType != "" {
			mimeType = meta.MimeType
		}
		if meta.Filename != "" {
			filename = meta.Filename
		}
	}
	return domain.NodeBlob{Data: data, MimeType: mimeType, Filename: filename}, nil
}

func asObjectRef(v any) (domain.ObjectRef, bool) {
	switch r := v.(type) {
	case domain.ObjectRef:
		return r, true
	case *domain.ObjectRef:
		return *r, true
	case map[string]any:
		id, _ := r["id"].(string)
		if id == "" {
			return domain.ObjectRef{}, false
		}
		mimeType, _ := r["mimeType"].(string)
		filename, _ := r["filename"].(string)
		return domain.ObjectRef{ID: id, MimeType: mimeType, Filename: filename}, true
	}
	return domain.ObjectRef{}, false
}

// dateToWire normalizes an ISO string, numeric epoch, or time.Time into an
// ISO-8601 UTC string; returns nil on unparseable input, matching the
// mapper's "return undefined on unparseable input" rule.
func dateToWire(value any) any {
	switch v := value.(type) {
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t.UTC().Format(time.RFC3339)
		}
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return epochToISO(f)
		}
		return nil
	case float64:
		return epochToISO(v)
	case int64:
		return epochToISO(float64(v))
	case int:
		return epochToISO(float64(v))
	default:
		return nil
	}
}

func epochToISO(epochSeconds float64) string {
	sec := int64(epochSeconds)
	nsec := int64((epochSeconds - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC().Format(time.RFC3339)
}

// scalarToWire returns value unchanged when its dynamic type matches t;
// otherwise nil ("undefined").
func scalarToWire(t domain.ParamType, value any) any {
	switch t {
	case domain.ParamString:
		if s, ok := value.(string); ok {
			return s
		}
		return nil
	case domain.ParamNumber:
		switch v := value.(type) {
		case float64, int, int64, float32:
			return toFloat64(v)
		}
		return nil
	case domain.ParamBoolean:
		if b, ok := value.(bool); ok {
			return b
		}
		return nil
	default:
		// secret/integration/queue/database/dataset/email are resolved via
		// services, not converted here; pass through unchanged.
		return value
	}
}

func toFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

func parseIfString(wireValue any) any {
	s, ok := wireValue.(string)
	if !ok {
		return wireValue
	}
	var parsed any
	if err := json.Unmarshal([]byte(s), &parsed); err != nil {
		return s
	}
	return parsed
}

// anyToWire chooses a branch by shape: a NodeBlob goes through the blob
// branch, an already-wire-shaped reference passes through, anything else
// passes through unchanged.
func (m *Mapper) anyToWire(ctx context.Context, value any, orgID, executionID string) (any, error) {
	if _, ok := value.(domain.NodeBlob); ok {
		return m.blobToReference(ctx, value, orgID, executionID)
	}
	if _, ok := asObjectRef(value); ok {
		return value, nil
	}
	return value, nil
}

// wireToAny dispatches by shape; object references are classified into a
// blob type by mimeType prefix.
func (m *Mapper) wireToAny(ctx context.Context, wireValue any) (any, error) {
	if ref, ok := asObjectRef(wireValue); ok {
		blob, err := m.referenceToBlob(ctx, ref)
		if err != nil {
			return nil, err
		}
		blob.ClassifiedType = ClassifyMimeType(blob.MimeType)
		return blob, nil
	}
	return wireValue, nil
}

// ClassifyMimeType maps a blob's mimeType to the most specific blob-family
// parameter type tag, falling back to document.
func ClassifyMimeType(mimeType string) domain.ParamType {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return domain.ParamImage
	case strings.HasPrefix(mimeType, "audio/"):
		return domain.ParamAudio
	case strings.HasPrefix(mimeType, "video/"):
		return domain.ParamVideo
	case mimeType == "model/gltf-binary" || mimeType == "model/gltf+json":
		return domain.ParamGLTF
	default:
		return domain.ParamDocument
	}
}
