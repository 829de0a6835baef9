package security

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// BotFrameworkIssuer is the issuer of tokens the Bot Connector service attaches to activities
const BotFrameworkIssuer = "https://api.botframework.com"

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

// BotClaims represents the claims of a Bot Connector token
type BotClaims struct {
	ServiceURL string `json:"serviceurl"`
	jwt.RegisteredClaims
}

type openIDConfig struct {
	Issuer  string `json:"issuer"`
	JWKSURI string `json:"jwks_uri"`
}

type jsonWebKey struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// BotTokenValidator checks the Authorization header of inbound activities
// against the signing keys published in the Bot Framework OpenID metadata.
type BotTokenValidator struct {
	openIDURL  string
	appID      string
	httpClient *http.Client
	leeway     time.Duration
	minRefresh time.Duration

	mu        sync.RWMutex
	issuer    string
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

// NewBotTokenValidator creates a validator for tokens addressed to appID
func NewBotTokenValidator(openIDURL, appID string, httpClient *http.Client) *BotTokenValidator {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &BotTokenValidator{
		openIDURL:  openIDURL,
		appID:      appID,
		httpClient: httpClient,
		leeway:     5 * time.Minute,
		minRefresh: time.Minute,
		keys:       make(map[string]*rsa.PublicKey),
	}
}

// Validate parses the bearer token in authHeader and returns its claims.
// serviceURL is the activity's serviceUrl; when the token carries a
// serviceurl claim the two must match.
func (v *BotTokenValidator) Validate(ctx context.Context, authHeader, serviceURL string) (*BotClaims, error) {
	raw, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok || raw == "" {
		return nil, ErrMissingToken
	}

	if err := v.ensureKeys(ctx); err != nil {
		return nil, err
	}

	v.mu.RLock()
	issuer := v.issuer
	v.mu.RUnlock()

	claims := &BotClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		kid, _ := token.Header["kid"].(string)
		return v.key(ctx, kid)
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithAudience(v.appID),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.ServiceURL != "" && serviceURL != "" &&
		!strings.EqualFold(strings.TrimSuffix(claims.ServiceURL, "/"), strings.TrimSuffix(serviceURL, "/")) {
		return nil, fmt.Errorf("%w: serviceurl claim does not match activity", ErrInvalidToken)
	}

	return claims, nil
}

func (v *BotTokenValidator) ensureKeys(ctx context.Context) error {
	v.mu.RLock()
	loaded := len(v.keys) > 0
	v.mu.RUnlock()
	if loaded {
		return nil
	}
	return v.refresh(ctx)
}

// key looks up a signing key, refetching the key set once if kid is unknown
func (v *BotTokenValidator) key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.mu.RLock()
	key, ok := v.keys[kid]
	stale := time.Since(v.fetchedAt) > v.minRefresh
	v.mu.RUnlock()
	if ok {
		return key, nil
	}

	if stale {
		if err := v.refresh(ctx); err != nil {
			return nil, err
		}
		v.mu.RLock()
		key, ok = v.keys[kid]
		v.mu.RUnlock()
		if ok {
			return key, nil
		}
	}
	return nil, fmt.Errorf("unknown signing key: %q", kid)
}

func (v *BotTokenValidator) refresh(ctx context.Context) error {
	var cfg openIDConfig
	if err := v.getJSON(ctx, v.openIDURL, &cfg); err != nil {
		return fmt.Errorf("failed to fetch openid configuration: %w", err)
	}
	if cfg.JWKSURI == "" {
		return errors.New("openid configuration has no jwks_uri")
	}

	var set struct {
		Keys []jsonWebKey `json:"keys"`
	}
	if err := v.getJSON(ctx, cfg.JWKSURI, &set); err != nil {
		return fmt.Errorf("failed to fetch signing keys: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		if k.Kty != "RSA" {
			continue
		}
		pub, err := parseRSAKey(k)
		if err != nil {
			return fmt.Errorf("failed to parse key %q: %w", k.Kid, err)
		}
		keys[k.Kid] = pub
	}

	issuer := cfg.Issuer
	if issuer == "" {
		issuer = BotFrameworkIssuer
	}

	v.mu.Lock()
	v.issuer = issuer
	v.keys = keys
	v.fetchedAt = time.Now()
	v.mu.Unlock()
	return nil
}

func (v *BotTokenValidator) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := v.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func parseRSAKey(k jsonWebKey) (*rsa.PublicKey, error) {
	n, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("invalid modulus: %w", err)
	}
	e, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("invalid exponent: %w", err)
	}
	exponent := new(big.Int).SetBytes(e)
	if !exponent.IsInt64() || exponent.Int64() > 1<<31-1 || exponent.Int64() < 3 {
		return nil, errors.New("exponent out of range")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(n), E: int(exponent.Int64())}, nil
}
