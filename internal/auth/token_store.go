package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/runmetrics/runmetrics/internal/safe"
)

// TokenPrefix marks runmetrics tokens in Authorization headers and logs.
const TokenPrefix = "rm_"

// ErrInvalidToken is returned by ValidateToken for unknown or revoked tokens.
var ErrInvalidToken = errors.New("invalid token")

// TokenStore manages API tokens with in-memory caching and file persistence.
type TokenStore struct {
	mu       sync.RWMutex
	tokens   map[string]*APIToken // tokenID -> token
	filePath string
}

// NewTokenStore creates a token store backed by filePath. An empty path
// keeps tokens in memory only; a missing file starts an empty store.
func NewTokenStore(filePath string) (*TokenStore, error) {
	ts := &TokenStore{
		tokens:   make(map[string]*APIToken),
		filePath: filePath,
	}

	if err := ts.loadFromFile(); err != nil {
		return nil, err
	}

	return ts, nil
}

// GenerateToken creates a token limited to scope. The plaintext token is
// only returned here.
func (ts *TokenStore) GenerateToken(
	tokenID string,
	scope Scope,
	permissions []Permission,
	rateLimit string,
) (*TokenInfo, error) {
	if tokenID == "" {
		return nil, fmt.Errorf("token id is required")
	}
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if len(permissions) == 0 {
		return nil, fmt.Errorf("at least one permission is required")
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()

	if _, exists := ts.tokens[tokenID]; exists {
		return nil, fmt.Errorf("token with ID %q already exists", tokenID)
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return nil, fmt.Errorf("failed to generate random token: %w", err)
	}
	plainToken := base64.RawURLEncoding.EncodeToString(tokenBytes)

	hash, err := bcrypt.GenerateFromPassword([]byte(plainToken), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash token: %w", err)
	}

	ts.tokens[tokenID] = &APIToken{
		TokenID:     tokenID,
		TokenHash:   string(hash),
		Scope:       scope,
		Permissions: permissions,
		RateLimit:   rateLimit,
		CreatedAt:   time.Now().UTC(),
	}

	if err := ts.saveToFile(); err != nil {
		delete(ts.tokens, tokenID)
		return nil, fmt.Errorf("failed to persist token: %w", err)
	}

	return &TokenInfo{
		TokenID:     tokenID,
		Token:       TokenPrefix + plainToken,
		Scope:       scope,
		Permissions: permissions,
		RateLimit:   rateLimit,
	}, nil
}

// ValidateToken checks a bearer token and returns the stored token.
func (ts *TokenStore) ValidateToken(token string) (*APIToken, error) {
	plainToken := strings.TrimPrefix(token, TokenPrefix)
	if plainToken == "" {
		return nil, ErrInvalidToken
	}

	ts.mu.RLock()
	var matched *APIToken
	for _, stored := range ts.tokens {
		if stored.Revoked {
			continue
		}
		if err := bcrypt.CompareHashAndPassword([]byte(stored.TokenHash), []byte(plainToken)); err == nil {
			matched = stored
			break
		}
	}
	ts.mu.RUnlock()

	if matched == nil {
		return nil, ErrInvalidToken
	}

	ts.updateLastUsed(matched.TokenID)
	return matched, nil
}

// GetToken returns a token by ID (without validation).
func (ts *TokenStore) GetToken(tokenID string) (*APIToken, bool) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	token, exists := ts.tokens[tokenID]
	return token, exists
}

// ListTokens returns all non-revoked tokens ordered by ID.
func (ts *TokenStore) ListTokens() []*APIToken {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	result := make([]*APIToken, 0, len(ts.tokens))
	for _, t := range ts.tokens {
		if !t.Revoked {
			result = append(result, t)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].TokenID < result[j].TokenID })
	return result
}

// RevokeToken marks a token as revoked.
func (ts *TokenStore) RevokeToken(tokenID string) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	token, exists := ts.tokens[tokenID]
	if !exists {
		return fmt.Errorf("token with ID %q not found", tokenID)
	}

	token.Revoked = true

	if err := ts.saveToFile(); err != nil {
		token.Revoked = false
		return fmt.Errorf("failed to persist token revocation: %w", err)
	}

	return nil
}

// DeleteToken permanently removes a token.
func (ts *TokenStore) DeleteToken(tokenID string) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	token, exists := ts.tokens[tokenID]
	if !exists {
		return fmt.Errorf("token with ID %q not found", tokenID)
	}

	delete(ts.tokens, tokenID)

	if err := ts.saveToFile(); err != nil {
		ts.tokens[tokenID] = token
		return fmt.Errorf("failed to persist token deletion: %w", err)
	}

	return nil
}

func (ts *TokenStore) updateLastUsed(tokenID string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if token, exists := ts.tokens[tokenID]; exists {
		now := time.Now().UTC()
		token.LastUsedAt = &now
		// Best effort.
		_ = ts.saveToFile()
	}
}

func (ts *TokenStore) loadFromFile() error {
	if ts.filePath == "" {
		return nil
	}

	data, err := safe.ReadFile(ts.filePath, nil)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read tokens file: %w", err)
	}

	var tokensFile TokensFile
	if err := yaml.Unmarshal(data, &tokensFile); err != nil {
		return fmt.Errorf("failed to parse tokens file: %w", err)
	}

	for i := range tokensFile.Tokens {
		t := &tokensFile.Tokens[i]
		ts.tokens[t.TokenID] = t
	}

	return nil
}

func (ts *TokenStore) saveToFile() error {
	if ts.filePath == "" {
		return nil
	}

	tokens := make([]APIToken, 0, len(ts.tokens))
	for _, t := range ts.tokens {
		tokens = append(tokens, *t)
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i].TokenID < tokens[j].TokenID })

	data, err := yaml.Marshal(TokensFile{Version: "1", Tokens: tokens})
	if err != nil {
		return fmt.Errorf("failed to marshal tokens: %w", err)
	}

	// Owner read/write only.
	if err := safe.WriteFile(ts.filePath, data, 0600); err != nil {
		return fmt.Errorf("failed to write tokens file: %w", err)
	}

	return nil
}
