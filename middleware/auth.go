package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/auth0/go-jwt-middleware/v2"
	"github.com/auth0/go-jwt-middleware/v2/jwks"
	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/servicepro-api/config"
	"github.com/kendall-kelly/servicepro-api/services"
	"go.uber.org/zap"
)

// Gin context keys set by the authentication middleware
const (
	UserIDKey      = "user_id"
	ClaimsKey      = "validated_claims"
	AccessTokenKey = "access_token"
	SessionKey     = "session"
)

// CustomClaims contains custom data we want from the token.
type CustomClaims struct {
	Scope string `json:"scope"`
}

// Validate does nothing, but we need it to satisfy the
// validator.CustomClaims interface.
func (c CustomClaims) Validate(ctx context.Context) error {
	return nil
}

// SessionVerifier turns a locally issued bearer token into a session for the
// user as currently stored
type SessionVerifier interface {
	VerifySession(ctx context.Context, token string) (services.Session, error)
}

// SessionResolver maps an identity provider subject to a local session
type SessionResolver interface {
	ResolveExternalSession(ctx context.Context, subject string) (services.Session, error)
}

func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// LocalAuth validates session tokens issued by POST /auth/login
func LocalAuth(verifier SessionVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "User not authenticated.")
			return
		}

		session, err := verifier.VerifySession(c.Request.Context(), token)
		if errors.Is(err, services.ErrStore) {
			_ = c.Error(err)
			abortWithError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to resolve user.")
			return
		}
		if err != nil {
			abortWithError(c, http.StatusUnauthorized, "INVALID_TOKEN", "Failed to validate JWT.")
			return
		}

		c.Set(UserIDKey, session.UserID)
		c.Set(AccessTokenKey, token)
		c.Set(SessionKey, session)
		c.Next()
	}
}

// EnsureValidToken is a middleware that will check the validity of an Auth0 JWT.
func EnsureValidToken(cfg *config.Config, logger *zap.Logger) (gin.HandlerFunc, error) {
	issuerURL, err := url.Parse("https://" + cfg.Auth0Domain + "/")
	if err != nil {
		return nil, fmt.Errorf("failed to parse the issuer url: %w", err)
	}

	provider := jwks.NewCachingProvider(issuerURL, 5*time.Minute)

	jwtValidator, err := validator.New(
		provider.KeyFunc,
		validator.RS256,
		issuerURL.String(),
		[]string{cfg.Auth0Audience},
		validator.WithCustomClaims(
			func() validator.CustomClaims {
				return &CustomClaims{}
			},
		),
		validator.WithAllowedClockSkew(time.Minute),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to set up the jwt validator: %w", err)
	}

	return validatedTokenHandler(jwtValidator.ValidateToken, logger), nil
}

func validatedTokenHandler(validate jwtmiddleware.ValidateToken, logger *zap.Logger) gin.HandlerFunc {
	errorHandler := func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Warn("Encountered error while validating JWT", zap.Error(err))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		if _, writeErr := w.Write([]byte(`{"success":false,"error":{"code":"INVALID_TOKEN","message":"Failed to validate JWT."}}`)); writeErr != nil {
			logger.Error("Failed to write error response", zap.Error(writeErr))
		}
	}

	middleware := jwtmiddleware.New(
		validate,
		jwtmiddleware.WithErrorHandler(errorHandler),
	)

	return func(c *gin.Context) {
		passed := false
		var handler http.HandlerFunc = func(w http.ResponseWriter, r *http.Request) {
			claims := r.Context().Value(jwtmiddleware.ContextKey{}).(*validator.ValidatedClaims)
			token, _ := bearerToken(r.Header.Get("Authorization"))

			c.Set(UserIDKey, claims.RegisteredClaims.Subject)
			c.Set(ClaimsKey, claims)
			c.Set(AccessTokenKey, token)
			passed = true
		}

		middleware.CheckJWT(handler).ServeHTTP(c.Writer, c.Request)
		if !passed {
			c.Abort()
			return
		}
		c.Next()
	}
}

// ExternalSession runs after EnsureValidToken and binds the token subject to
// a local account. Subjects without a profile get an empty session.
func ExternalSession(resolver SessionResolver, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		subject, err := GetUserID(c)
		if err != nil {
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "User not authenticated.")
			return
		}

		session, err := resolver.ResolveExternalSession(c.Request.Context(), subject)
		if err != nil {
			logger.Error("Failed to resolve session", zap.String("subject", subject), zap.Error(err))
			abortWithError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to resolve user.")
			return
		}

		c.Set(SessionKey, session)
		c.Next()
	}
}

// RequireAdmin rejects sessions without the ADMIN role
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := GetSession(c)
		if _, ok := session.ActorID(); !ok {
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "User not authenticated.")
			return
		}
		if !session.IsAdmin() {
			abortWithError(c, http.StatusForbidden, "FORBIDDEN", "Administrator access required.")
			return
		}
		c.Next()
	}
}

// GetSession returns the session set by LocalAuth or ExternalSession.
// A request without one yields the zero Session, which no operation accepts.
func GetSession(c *gin.Context) services.Session {
	if v, ok := c.Get(SessionKey); ok {
		if session, ok := v.(services.Session); ok {
			return session
		}
	}
	return services.Session{}
}

// GetUserID extracts the user ID from the Gin context
func GetUserID(c *gin.Context) (string, error) {
	userID, exists := c.Get(UserIDKey)
	if !exists {
		return "", &AuthError{Code: "MISSING_USER_ID", Message: "User ID not found in context"}
	}

	userIDStr, ok := userID.(string)
	if !ok || userIDStr == "" {
		return "", &AuthError{Code: "INVALID_USER_ID", Message: "User ID is not a string"}
	}

	return userIDStr, nil
}

// GetAccessToken returns the raw bearer token of the request
func GetAccessToken(c *gin.Context) (string, error) {
	token, exists := c.Get(AccessTokenKey)
	if !exists {
		return "", &AuthError{Code: "MISSING_TOKEN", Message: "Access token not found"}
	}

	tokenStr, ok := token.(string)
	if !ok || tokenStr == "" {
		return "", &AuthError{Code: "MISSING_TOKEN", Message: "Access token not found"}
	}
	return tokenStr, nil
}

// GetClaims extracts the validated JWT claims from the Gin context
func GetClaims(c *gin.Context) (*validator.ValidatedClaims, error) {
	claims, exists := c.Get(ClaimsKey)
	if !exists {
		return nil, &AuthError{Code: "MISSING_CLAIMS", Message: "Claims not found in context"}
	}

	validatedClaims, ok := claims.(*validator.ValidatedClaims)
	if !ok {
		return nil, &AuthError{Code: "INVALID_CLAIMS", Message: "Claims are not in the expected format"}
	}

	return validatedClaims, nil
}

// AuthError represents an authentication error
type AuthError struct {
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}
