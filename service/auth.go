package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/dayzy/notes/models"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

var (
	ErrUnsupportedProvider = errors.New("unsupported provider")
	ErrTokenMissing        = errors.New("token not provided")
	ErrInvalidToken        = errors.New("invalid token")
)

const (
	tokenIssuer     = "dayzy"
	sessionAudience = "dayzy-api"
	sessionTTL      = 24 * time.Hour
)

// identityProvider knows where a provider keeps its OAuth endpoints and
// how to turn its profile document into a user.
type identityProvider struct {
	endpoint   oauth2.Endpoint
	scopes     []string
	profileURL string
	headers    map[string]string
	parse      func(body []byte) (username, providerId string, err error)
}

var identityProviders = map[string]identityProvider{
	"github": {
		endpoint:   endpoints.GitHub,
		scopes:     []string{"read:user"},
		profileURL: "https://api.github.com/user",
		headers:    map[string]string{"X-GitHub-Api-Version": "2022-11-28"},
		parse: func(body []byte) (string, string, error) {
			var gh struct {
				Login string `json:"login"`
				ID    int64  `json:"id"`
			}
			if err := json.Unmarshal(body, &gh); err != nil {
				return "", "", err
			}
			return gh.Login, strconv.FormatInt(gh.ID, 10), nil
		},
	},
	"google": {
		endpoint:   endpoints.Google,
		scopes:     []string{"openid", "email"},
		profileURL: "https://openidconnect.googleapis.com/v1/userinfo",
		parse: func(body []byte) (string, string, error) {
			var g struct {
				Email string `json:"email"`
				Sub   string `json:"sub"`
			}
			if err := json.Unmarshal(body, &g); err != nil {
				return "", "", err
			}
			return g.Email, g.Sub, nil
		},
	},
}

// withProviderEndpoints copies the configured clients and fills in each
// provider's endpoint and scopes.
func withProviderEndpoints(configs map[string]*oauth2.Config) (map[string]*oauth2.Config, error) {
	out := make(map[string]*oauth2.Config, len(configs))
	for name, conf := range configs {
		p, ok := identityProviders[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, name)
		}
		c := *conf
		c.Endpoint = p.endpoint
		c.Scopes = p.scopes
		out[name] = &c
	}
	return out, nil
}

// HandleOauth trades an authorization code for the provider's view of the
// user. The returned user has no Id until it is stored.
func (s *Service) HandleOauth(ctx context.Context, provider string, code string) (models.User, error) {
	conf, ok := s.OAuthConfigs[provider]
	if !ok {
		return models.User{}, fmt.Errorf("%w: %s", ErrUnsupportedProvider, provider)
	}
	p := identityProviders[provider]

	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		log.Printf("OAuth code exchange with %s failed: %v", provider, err)
		return models.User{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.profileURL, nil)
	if err != nil {
		return models.User{}, err
	}
	for k, v := range p.headers {
		req.Header.Set(k, v)
	}

	resp, err := conf.Client(ctx, tok).Do(req)
	if err != nil {
		log.Printf("Fetching %s profile failed: %v", provider, err)
		return models.User{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.User{}, fmt.Errorf("%s profile request returned %d", provider, resp.StatusCode)
	}

	var body json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return models.User{}, fmt.Errorf("read %s profile: %w", provider, err)
	}
	username, providerId, err := p.parse(body)
	if err != nil {
		return models.User{}, fmt.Errorf("parse %s profile: %w", provider, err)
	}
	if providerId == "" || providerId == "0" {
		return models.User{}, fmt.Errorf("%s profile has no account id", provider)
	}

	return models.User{Username: username, Provider: provider, ProviderId: providerId}, nil
}

// SessionClaims is the payload of the token the app sends as a bearer.
// Subject holds the user's Id.
type SessionClaims struct {
	Provider   string `json:"provider"`
	ProviderId string `json:"providerId"`
	jwt.RegisteredClaims
}

func (s *Service) CreateSessionToken(user models.User) (string, error) {
	now := s.Now()
	return s.sign(SessionClaims{
		Provider:   user.Provider,
		ProviderId: user.ProviderId,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   user.Id,
			Audience:  jwt.ClaimStrings{sessionAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(sessionTTL)),
		},
	})
}

func (s *Service) ParseSessionToken(token string) (SessionClaims, error) {
	var claims SessionClaims
	err := s.parse(token, sessionAudience, &claims)
	return claims, err
}

func (s *Service) sign(claims jwt.Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.JWTSecret)
}

// parse verifies signature, issuer, audience and expiry against the
// service clock.
func (s *Service) parse(token, audience string, claims jwt.Claims) error {
	if token == "" {
		return ErrTokenMissing
	}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.JWTSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.Now),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return nil
}

// lookupUser resolves token claims to the stored user. A token minted for
// an account that was since deleted and recreated names the old Id and is
// refused.
func (s *Service) lookupUser(ctx context.Context, subject, provider, providerId string) (models.User, error) {
	user, err := s.Store.GetUser(ctx, provider, providerId)
	if err != nil {
		return models.User{}, err
	}
	if user.Id != subject {
		return models.User{}, fmt.Errorf("%w: account was replaced", ErrInvalidToken)
	}
	return user, nil
}

func (s *Service) AuthenticateToken(ctx context.Context, token string) (models.User, error) {
	claims, err := s.ParseSessionToken(token)
	if err != nil {
		return models.User{}, err
	}
	return s.lookupUser(ctx, claims.Subject, claims.Provider, claims.ProviderId)
}

func (s *Service) Login(ctx context.Context, provider, code string) (models.User, string, error) {
	user, err := s.HandleOauth(ctx, provider, code)
	if err != nil {
		return models.User{}, "", fmt.Errorf("oauth failed: %w", err)
	}

	createdUser, err := s.Store.CreateUser(ctx, user)
	if err != nil {
		return models.User{}, "", fmt.Errorf("create user failed: %w", err)
	}

	token, err := s.CreateSessionToken(createdUser)
	if err != nil {
		return models.User{}, "", fmt.Errorf("token generation failed: %w", err)
	}

	return createdUser, token, nil
}
