// Package credential implements the Credential Service: per-organization
// secrets and integration tokens. Integration tokens that are themselves
// JWTs have their expiry taken from the "exp" claim, replacing any
// caller-supplied value, so a caller can trust IntegrationInfo.TokenExpiresAt even when
// the upstream provider never told us explicitly.
package credential

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fluxwell/runtime/internal/domain"
	"github.com/fluxwell/runtime/internal/services"
)

type orgVault struct {
	secrets      map[string]string
	integrations map[string]services.IntegrationInfo
}

// Vault is an in-memory, per-organization CredentialService.
type Vault struct {
	mu    sync.RWMutex
	orgs  map[string]*orgVault
}

func NewVault() *Vault {
	return &Vault{orgs: make(map[string]*orgVault)}
}

func (v *Vault) Initialize(ctx context.Context, orgID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.orgs[orgID]; !ok {
		v.orgs[orgID] = &orgVault{secrets: make(map[string]string), integrations: make(map[string]services.IntegrationInfo)}
	}
	return nil
}

// PutSecret seeds a secret for an organization; used by hosts and tests to
// populate the vault before a run.
func (v *Vault) PutSecret(orgID, name, value string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	org := v.orgOrCreate(orgID)
	org.secrets[name] = value
}

// PutIntegration seeds an integration credential for an organization. If
// info.Token parses as a JWT with an "exp" claim, TokenExpiresAt is set
// from it, replacing any caller-supplied value; the two are not compared.
func (v *Vault) PutIntegration(orgID, id string, info services.IntegrationInfo) {
	if exp, ok := jwtExpiry(info.Token); ok {
		info.TokenExpiresAt = exp
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	org := v.orgOrCreate(orgID)
	org.integrations[id] = info
}

func (v *Vault) orgOrCreate(orgID string) *orgVault {
	org, ok := v.orgs[orgID]
	if !ok {
		org = &orgVault{secrets: make(map[string]string), integrations: make(map[string]services.IntegrationInfo)}
		v.orgs[orgID] = org
	}
	return org
}

func (v *Vault) GetSecret(ctx context.Context, orgID, name string) (string, bool, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	org, ok := v.orgs[orgID]
	if !ok {
		return "", false, nil
	}
	s, ok := org.secrets[name]
	return s, ok, nil
}

func (v *Vault) GetIntegration(ctx context.Context, orgID, id string) (services.IntegrationInfo, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	org, ok := v.orgs[orgID]
	if !ok {
		return services.IntegrationInfo{}, domain.NewDomainError(domain.ErrMissingDependency, "integration "+id+" not found", nil)
	}
	info, ok := org.integrations[id]
	if !ok {
		return services.IntegrationInfo{}, domain.NewDomainError(domain.ErrMissingDependency, "integration "+id+" not found", nil)
	}
	return info, nil
}

func jwtExpiry(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	// Parse without verifying a signature: the credential service is not
	// the token's issuer or verifier, it only needs the expiry claim.
	_, _, err := parser.ParseUnverified(token, claims)
	if err != nil {
		return time.Time{}, false
	}
	expFloat, ok := claims["exp"].(float64)
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(int64(expFloat), 0).UTC(), true
}
