package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"workify/services/conversation-api/internal/config"
	"workify/services/conversation-api/internal/domain/conversation"
	"workify/services/conversation-api/internal/utils/platformerrors"
)

const (
	// Development headers accepted when AUTH_ENABLED is false.
	HeaderUserEmail = "X-User-Email"
	HeaderUserRole  = "X-User-Role"

	principalKey = "auth_principal"
	expiresAtKey = "auth_expires_at"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

// Claims is what the service needs from a validated credential.
type Claims struct {
	Principal conversation.Principal
	// ExpiresAt is zero for development credentials.
	ExpiresAt time.Time
}

// Validator validates JWTs using JWKS.
type Validator struct {
	cfg     *config.Config
	log     zerolog.Logger
	jwks    *keyfunc.JWKS
	keyFunc jwt.Keyfunc
}

// NewValidator initializes JWKS fetching when auth is enabled.
func NewValidator(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Validator, error) {
	log = log.With().Str("component", "auth").Logger()
	if !cfg.AuthEnabled {
		log.Warn().Msg("auth disabled, trusting X-User-Email and X-User-Role headers")
		return &Validator{cfg: cfg, log: log}, nil
	}

	options := keyfunc.Options{
		Ctx:               ctx,
		RefreshInterval:   time.Hour,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			log.Error().Err(err).Msg("jwks refresh error")
		},
	}

	jwks, err := keyfunc.Get(cfg.AuthJWKSURL, options)
	if err != nil {
		return nil, err
	}

	return &Validator{
		cfg:     cfg,
		log:     log,
		jwks:    jwks,
		keyFunc: jwks.Keyfunc,
	}, nil
}

// NewValidatorWithKeyfunc builds an enabled validator around a fixed key function.
func NewValidatorWithKeyfunc(cfg *config.Config, keyFunc jwt.Keyfunc, log zerolog.Logger) *Validator {
	return &Validator{cfg: cfg, log: log, keyFunc: keyFunc}
}

func (v *Validator) enabled() bool {
	return v != nil && v.cfg.AuthEnabled
}

// Authenticate validates a raw bearer token and extracts the caller.
func (v *Validator) Authenticate(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256", "RS384", "RS512"}),
		jwt.WithExpirationRequired(),
	}
	if issuer := strings.TrimSpace(v.cfg.AuthIssuer); issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	if audience := strings.TrimSpace(v.cfg.AuthAudience); audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}

	token, err := jwt.Parse(tokenString, v.keyFunc, opts...)
	if err != nil || !token.Valid {
		return nil, errors.Join(ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	email := stringClaim(claims, "email")
	if email == "" {
		email = stringClaim(claims, "preferred_username")
	}
	role := roleClaim(claims, v.cfg.AuthRoleClaim)
	if email == "" || role == "" {
		return nil, errors.Join(ErrInvalidToken, errors.New("token lacks email or role claim"))
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, ErrInvalidToken
	}

	return &Claims{
		Principal: conversation.Principal{Type: role, Email: email},
		ExpiresAt: exp.Time,
	}, nil
}

// AuthenticateRequest reads the credential from the Authorization header or the access_token
// query parameter. With auth disabled the development headers are used instead.
func (v *Validator) AuthenticateRequest(c *gin.Context) (*Claims, error) {
	if !v.enabled() {
		email := strings.TrimSpace(c.GetHeader(HeaderUserEmail))
		role := strings.TrimSpace(c.GetHeader(HeaderUserRole))
		if email == "" || role == "" {
			return nil, ErrMissingToken
		}
		return &Claims{Principal: conversation.Principal{Type: role, Email: email}}, nil
	}

	token := bearerToken(c.GetHeader("Authorization"))
	if token == "" {
		token = strings.TrimSpace(c.Query("access_token"))
	}
	return v.Authenticate(token)
}

// Middleware enforces authentication and stores the principal on the gin context.
func (v *Validator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := v.AuthenticateRequest(c)
		if err != nil {
			v.log.Debug().Err(err).Str("path", c.Request.URL.Path).Msg("request rejected")
			message := "invalid token"
			if errors.Is(err, ErrMissingToken) {
				message = "missing bearer token"
			}
			platformerrors.WriteUnauthorized(c, message)
			return
		}

		SetClaims(c, claims)
		c.Next()
	}
}

// Ready indicates if the validator is prepared.
func (v *Validator) Ready() bool {
	if !v.enabled() {
		return true
	}
	return v.keyFunc != nil
}

// SetClaims stores validated claims on the gin context.
func SetClaims(c *gin.Context, claims *Claims) {
	c.Set(principalKey, claims.Principal)
	c.Set(expiresAtKey, claims.ExpiresAt)
}

// PrincipalFromContext returns the principal stored by Middleware.
func PrincipalFromContext(c *gin.Context) (conversation.Principal, bool) {
	value, exists := c.Get(principalKey)
	if !exists {
		return conversation.Principal{}, false
	}
	principal, ok := value.(conversation.Principal)
	return principal, ok
}

// ExpiresAtFromContext returns the credential expiry. Zero means it never expires.
func ExpiresAtFromContext(c *gin.Context) time.Time {
	value, exists := c.Get(expiresAtKey)
	if !exists {
		return time.Time{}
	}
	exp, _ := value.(time.Time)
	return exp
}

func stringClaim(claims jwt.MapClaims, key string) string {
	value, _ := claims[key].(string)
	return strings.TrimSpace(value)
}

// roleClaim returns the first recognised participant role in a string or list claim.
// Keycloak's realm_access.roles is consulted when the configured claim is absent.
func roleClaim(claims jwt.MapClaims, key string) string {
	candidates := claimValues(claims[key])
	if realm, ok := claims["realm_access"].(map[string]any); ok {
		candidates = append(candidates, claimValues(realm["roles"])...)
	}
	for _, candidate := range candidates {
		if _, ok := conversation.ParseSenderType(candidate); ok {
			return candidate
		}
	}
	return ""
}

func claimValues(raw any) []string {
	switch value := raw.(type) {
	case string:
		return []string{value}
	case []any:
		out := make([]string, 0, len(value))
		for _, entry := range value {
			if s, ok := entry.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
