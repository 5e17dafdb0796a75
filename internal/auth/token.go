package auth

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/scholaris-sis/scholaris-sis/internal/authz"
)

// Claim keys used inside issued tokens beyond the registered set.
const (
	claimSchoolID    = "school_id"
	claimSuperAdmin  = "is_super_admin"
	claimPermissions = "permissions"
)

// PermissionSource resolves a user's effective permission keys at
// issuance time.
type PermissionSource interface {
	ResolveUserPermissions(ctx context.Context, userID int64) ([]string, error)
}

// TokenConfig carries the signing material and token lifetimes.
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	Issuer        string
	Audience      string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// TokenIssuer builds claim sets and signs them into bearer tokens
// (HS256). It also parses and validates presented tokens back into
// claim sets.
type TokenIssuer struct {
	cfg   TokenConfig
	perms PermissionSource
}

// NewTokenIssuer constructs a TokenIssuer.
func NewTokenIssuer(cfg TokenConfig, perms PermissionSource) *TokenIssuer {
	return &TokenIssuer{cfg: cfg, perms: perms}
}

// BuildClaims computes the point-in-time claim set for a user. The
// superuser carries no permission set: every decision short-circuits
// on the flag. Regular users get the aggregated permissions of their
// current roles.
func (i *TokenIssuer) BuildClaims(ctx context.Context, user User) (authz.ClaimSet, error) {
	if user.IsSuperAdmin {
		return authz.NewClaimSet(user.ID, nil, true, nil), nil
	}
	perms, err := i.perms.ResolveUserPermissions(ctx, user.ID)
	if err != nil {
		return authz.ClaimSet{}, fmt.Errorf("auth: build claims: %w", err)
	}
	return authz.NewClaimSet(user.ID, user.SchoolID, false, perms), nil
}

// IssueAccessToken builds the claim set and signs it into an access
// token. The claim set is returned alongside for callers that need it
// (tests, response enrichment).
func (i *TokenIssuer) IssueAccessToken(ctx context.Context, user User) (string, authz.ClaimSet, error) {
	cs, err := i.BuildClaims(ctx, user)
	if err != nil {
		return "", authz.ClaimSet{}, err
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": strconv.FormatInt(cs.UserID, 10),
		"exp": now.Add(i.cfg.AccessTTL).Unix(),
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"iss": i.cfg.Issuer,
		"aud": i.cfg.Audience,
		"jti": uuid.NewString(),
	}
	if cs.IsSuperAdmin {
		claims[claimSuperAdmin] = true
	} else {
		if cs.SchoolID != nil {
			claims[claimSchoolID] = *cs.SchoolID
		}
		claims[claimPermissions] = cs.Permissions()
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(i.cfg.AccessSecret))
	if err != nil {
		return "", authz.ClaimSet{}, fmt.Errorf("auth: sign access token: %w", err)
	}
	return signed, cs, nil
}

// IssueRefreshToken signs a long-lived token carrying only the user
// identity and a jti for the credential registry.
func (i *TokenIssuer) IssueRefreshToken(user User) (token, jti string, err error) {
	now := time.Now()
	jti = uuid.NewString()
	claims := jwt.MapClaims{
		"sub": strconv.FormatInt(user.ID, 10),
		"exp": now.Add(i.cfg.RefreshTTL).Unix(),
		"iat": now.Unix(),
		"iss": i.cfg.Issuer,
		"jti": jti,
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(i.cfg.RefreshSecret))
	if err != nil {
		return "", "", fmt.Errorf("auth: sign refresh token: %w", err)
	}
	return token, jti, nil
}

// AccessTTL exposes the configured access-token lifetime.
func (i *TokenIssuer) AccessTTL() time.Duration {
	return i.cfg.AccessTTL
}

// ParseAccessToken validates the signed token and reconstructs its
// claim set.
func (i *TokenIssuer) ParseAccessToken(token string) (authz.ClaimSet, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(i.cfg.AccessSecret), nil
	},
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithIssuer(i.cfg.Issuer),
		jwt.WithAudience(i.cfg.Audience),
	)
	if err != nil || !parsed.Valid {
		return authz.ClaimSet{}, ErrInvalidCredentials
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return authz.ClaimSet{}, ErrInvalidCredentials
	}
	return claimSetFromMap(claims)
}

// ParseRefreshToken validates a refresh token and returns the subject
// user id and the registry jti.
func (i *TokenIssuer) ParseRefreshToken(token string) (userID int64, jti string, err error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(i.cfg.RefreshSecret), nil
	},
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithIssuer(i.cfg.Issuer),
	)
	if err != nil || !parsed.Valid {
		return 0, "", ErrInvalidCredentials
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return 0, "", ErrInvalidCredentials
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return 0, "", ErrInvalidCredentials
	}
	userID, err = strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return 0, "", ErrInvalidCredentials
	}
	jti, _ = claims["jti"].(string)
	if jti == "" {
		return 0, "", ErrInvalidCredentials
	}
	return userID, jti, nil
}

func claimSetFromMap(claims jwt.MapClaims) (authz.ClaimSet, error) {
	sub, err := claims.GetSubject()
	if err != nil {
		return authz.ClaimSet{}, ErrInvalidCredentials
	}
	userID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return authz.ClaimSet{}, ErrInvalidCredentials
	}

	if super, _ := claims[claimSuperAdmin].(bool); super {
		return authz.NewClaimSet(userID, nil, true, nil), nil
	}

	var schoolID *int64
	if raw, ok := claims[claimSchoolID]; ok {
		// JSON numbers decode as float64.
		num, ok := raw.(float64)
		if !ok {
			return authz.ClaimSet{}, ErrInvalidCredentials
		}
		id := int64(num)
		schoolID = &id
	}

	var perms []string
	if raw, ok := claims[claimPermissions].([]any); ok {
		perms = make([]string, 0, len(raw))
		for _, entry := range raw {
			key, ok := entry.(string)
			if !ok {
				return authz.ClaimSet{}, ErrInvalidCredentials
			}
			perms = append(perms, key)
		}
	}
	return authz.NewClaimSet(userID, schoolID, false, perms), nil
}
