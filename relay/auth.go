package relay

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	gojwt "github.com/golang-jwt/jwt/v5"

	apperrors "github.com/kbukum/llmstream/errors"
	"github.com/kbukum/llmstream/logger"
)

// ContextSubject is the gin context key holding the token subject.
const ContextSubject = "subject"

// msgUnauthorized is the only rejection text clients see; the cause is logged.
const msgUnauthorized = "missing or invalid bearer token"

// AuthConfig enables HS256 bearer tokens on the stream route. An empty
// Secret disables the check.
type AuthConfig struct {
	Secret   string `yaml:"secret" mapstructure:"secret" validate:"omitempty,min=16"`
	Issuer   string `yaml:"issuer" mapstructure:"issuer"`
	Audience string `yaml:"audience" mapstructure:"audience"`
}

// Enabled reports whether tokens are required.
func (c AuthConfig) Enabled() bool { return c.Secret != "" }

// ParseToken verifies token and returns its registered claims.
func (c AuthConfig) ParseToken(token string) (*gojwt.RegisteredClaims, error) {
	opts := []gojwt.ParserOption{gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()})}
	if c.Issuer != "" {
		opts = append(opts, gojwt.WithIssuer(c.Issuer))
	}
	if c.Audience != "" {
		opts = append(opts, gojwt.WithAudience(c.Audience))
	}
	claims := &gojwt.RegisteredClaims{}
	_, err := gojwt.ParseWithClaims(token, claims, func(*gojwt.Token) (any, error) {
		return []byte(c.Secret), nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("relay: token: %w", err)
	}
	return claims, nil
}

// Auth rejects requests without a valid bearer token. The health route is
// always open.
func Auth(cfg AuthConfig) gin.HandlerFunc {
	log := logger.Get("relay")
	return func(c *gin.Context) {
		if !cfg.Enabled() || c.Request.URL.Path == HealthPath {
			c.Next()
			return
		}
		token, err := bearerToken(c.GetHeader("Authorization"))
		if err == nil {
			var claims *gojwt.RegisteredClaims
			if claims, err = cfg.ParseToken(token); err == nil {
				c.Set(ContextSubject, claims.Subject)
				c.Next()
				return
			}
		}
		log.WithContext(c.Request.Context()).Warn("rejected token", logger.Fields(
			"path", c.Request.URL.Path,
			logger.FieldError, err.Error(),
		))
		appErr := apperrors.Unauthorized(msgUnauthorized)
		c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.ToResponse())
	}
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", errors.New("authorization header required")
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", errors.New("invalid authorization header format")
	}
	return token, nil
}
