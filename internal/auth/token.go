// Package auth manages the bearer tokens that scope API callers to a tenant.
package auth

import (
	"fmt"
	"time"
)

// Scope is the tenant a token may read.
type Scope struct {
	OrganizationID string `yaml:"organization_id" json:"organization_id"`
	ProjectID      string `yaml:"project_id" json:"project_id"`
	EnvironmentID  string `yaml:"environment_id" json:"environment_id"`
}

// Validate requires every level of the scope.
func (s Scope) Validate() error {
	if s.OrganizationID == "" || s.ProjectID == "" || s.EnvironmentID == "" {
		return fmt.Errorf("scope needs organization, project and environment ids")
	}
	return nil
}

func (s Scope) String() string {
	return fmt.Sprintf("%s/%s/%s", s.OrganizationID, s.ProjectID, s.EnvironmentID)
}

// APIToken represents a stored API token configuration.
type APIToken struct {
	TokenID string `yaml:"token_id" json:"token_id"`

	// TokenHash is the bcrypt hash of the token (never store plaintext).
	TokenHash string `yaml:"token_hash" json:"-"`

	Scope       Scope        `yaml:"scope" json:"scope"`
	Permissions []Permission `yaml:"permissions" json:"permissions"`

	// RateLimit is the optional rate limit (e.g., "100/hour").
	RateLimit string `yaml:"rate_limit,omitempty" json:"rate_limit,omitempty"`

	CreatedAt  time.Time  `yaml:"created_at" json:"created_at"`
	LastUsedAt *time.Time `yaml:"last_used_at,omitempty" json:"last_used_at,omitempty"`
	Revoked    bool       `yaml:"revoked,omitempty" json:"revoked,omitempty"`
}

// TokenInfo is returned after token creation (contains plaintext token once).
type TokenInfo struct {
	TokenID     string       `json:"token_id"`
	Token       string       `json:"token"`
	Scope       Scope        `json:"scope"`
	Permissions []Permission `json:"permissions"`
	RateLimit   string       `json:"rate_limit,omitempty"`
}

// TokensFile represents the structure of the tokens.yaml file.
type TokensFile struct {
	Version string     `yaml:"version"`
	Tokens  []APIToken `yaml:"tokens"`
}
