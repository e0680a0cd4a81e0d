package gcs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/0111v/projeto-faculdade/pkg/config"
)

const (
	oauthTokenURL    = "https://oauth2.googleapis.com/token"
	metadataTokenURL = "http://metadata.google.internal/computeMetadata/v1/instance/service-accounts/default/token"
	storageScope     = "https://www.googleapis.com/auth/devstorage.read_write"
	refreshMargin    = time.Minute
)

type accessToken struct {
	value  string
	expiry time.Time
}

type tokenFetcher func(ctx context.Context) (accessToken, error)

// cachedToken reuses the last token until it is within refreshMargin of expiry.
type cachedToken struct {
	mu      sync.Mutex
	current accessToken
	fetch   tokenFetcher
}

func (c *cachedToken) get(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current.value != "" && time.Until(c.current.expiry) > refreshMargin {
		return c.current.value, nil
	}
	tok, err := c.fetch(ctx)
	if err != nil {
		return "", fmt.Errorf("gcs token: %w", err)
	}
	c.current = tok
	return tok.value, nil
}

// fetcherFromConfig prefers inline JSON, then a credentials file, then the
// metadata server of the host VM.
func fetcherFromConfig(httpClient *http.Client, gcp config.GCPConfig) (tokenFetcher, error) {
	switch {
	case gcp.CredentialsJSON != "":
		return serviceAccountFetcher(httpClient, []byte(gcp.CredentialsJSON))
	case gcp.ApplicationCredentials != "":
		raw, err := os.ReadFile(gcp.ApplicationCredentials)
		if err != nil {
			return nil, fmt.Errorf("read credentials file: %w", err)
		}
		return serviceAccountFetcher(httpClient, raw)
	default:
		return metadataFetcher(httpClient), nil
	}
}

type serviceAccount struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
	TokenURI    string `json:"token_uri"`
}

// assertionClaims sends aud as a plain string, which the token endpoint expects.
type assertionClaims struct {
	Scope    string `json:"scope"`
	Audience string `json:"aud"`
	jwt.RegisteredClaims
}

// serviceAccountFetcher trades a self-signed RS256 assertion for an access
// token (the OAuth JWT bearer grant).
func serviceAccountFetcher(httpClient *http.Client, raw []byte) (tokenFetcher, error) {
	var sa serviceAccount
	if err := json.Unmarshal(raw, &sa); err != nil {
		return nil, fmt.Errorf("parse service account: %w", err)
	}
	if sa.ClientEmail == "" || sa.PrivateKey == "" {
		return nil, errors.New("service account needs client_email and private_key")
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(sa.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("parse service account key: %w", err)
	}
	audience := sa.TokenURI
	if audience == "" {
		audience = oauthTokenURL
	}

	return func(ctx context.Context) (accessToken, error) {
		now := time.Now()
		assertion, err := jwt.NewWithClaims(jwt.SigningMethodRS256, assertionClaims{
			Scope:    storageScope,
			Audience: audience,
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    sa.ClientEmail,
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			},
		}).SignedString(key)
		if err != nil {
			return accessToken{}, fmt.Errorf("sign assertion: %w", err)
		}
		form := url.Values{
			"grant_type": {"urn:ietf:params:oauth:grant-type:jwt-bearer"},
			"assertion":  {assertion},
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, audience, strings.NewReader(form.Encode()))
		if err != nil {
			return accessToken{}, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return exchange(httpClient, req)
	}, nil
}

func metadataFetcher(httpClient *http.Client) tokenFetcher {
	return func(ctx context.Context) (accessToken, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, metadataTokenURL, nil)
		if err != nil {
			return accessToken{}, err
		}
		req.Header.Set("Metadata-Flavor", "Google")
		return exchange(httpClient, req)
	}
}

func exchange(httpClient *http.Client, req *http.Request) (accessToken, error) {
	resp, err := httpClient.Do(req)
	if err != nil {
		return accessToken{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return accessToken{}, statusError("token request", resp)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return accessToken{}, fmt.Errorf("decode token response: %w", err)
	}
	if body.AccessToken == "" {
		return accessToken{}, errors.New("token response has no access_token")
	}
	return accessToken{
		value:  body.AccessToken,
		expiry: time.Now().Add(time.Duration(body.ExpiresIn) * time.Second),
	}, nil
}
