package middleware

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/cognitoidentityprovider"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pavitra93/go-rental-marketplace/shared/apperrors"
	"github.com/pavitra93/go-rental-marketplace/shared/config"
	"github.com/pavitra93/go-rental-marketplace/shared/models"
	"github.com/pavitra93/go-rental-marketplace/shared/utils"
	"github.com/sirupsen/logrus"
)

const (
	userInfoKey = "user_info"

	// maxClaimsTTL caps how long verified claims stay cached
	maxClaimsTTL = time.Hour
)

// TokenValidator verifies a token signature and its registered claims
type TokenValidator interface {
	ValidateToken(tokenString string) (jwt.MapClaims, error)
}

// AttributeLookup resolves user attributes missing from an access token
type AttributeLookup interface {
	UserAttributes(ctx context.Context, subject string) (map[string]string, error)
}

// AuthMiddleware handles JWT token validation
type AuthMiddleware struct {
	validator      TokenValidator
	attributes     AttributeLookup
	circuitBreaker *utils.CircuitBreaker
	log            *logrus.Entry
}

// CognitoClaims represents the Cognito JWT claims the marketplace relies on
type CognitoClaims struct {
	Sub           string
	Email         string
	EmailVerified bool
	Username      string
	TokenUse      string
	CustomRole    string
	ExpiresAt     time.Time
}

// NewAuthMiddleware wires the JWKS validator and the Cognito attribute fallback
func NewAuthMiddleware(cfg *config.AuthConfig) (*AuthMiddleware, error) {
	if cfg.Region == "" || cfg.UserPoolID == "" {
		return nil, fmt.Errorf("AWS_REGION and COGNITO_USER_POOL_ID must be set")
	}

	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(cfg.Region),
	})
	if err != nil {
		return nil, err
	}

	lookup := &cognitoLookup{
		client:     cognitoidentityprovider.New(sess),
		userPoolID: cfg.UserPoolID,
	}
	return NewAuthMiddlewareWith(utils.NewJWKSValidator(cfg.Region, cfg.UserPoolID), lookup), nil
}

// NewAuthMiddlewareWith builds the middleware from explicit collaborators. lookup may be nil.
func NewAuthMiddlewareWith(validator TokenValidator, lookup AttributeLookup) *AuthMiddleware {
	return &AuthMiddleware{
		validator:      validator,
		attributes:     lookup,
		circuitBreaker: utils.NewNamedCircuitBreaker("cognito_attributes", 5, 30*time.Second, utils.ExportState),
		log:            logrus.WithField("component", "auth"),
	}
}

// RequireAuth rejects requests without a valid token
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ExtractToken(c)
		if tokenString == "" {
			abortWith(c, apperrors.AuthRequired("authorization token required"))
			return
		}

		userInfo, err := am.Authenticate(c.Request.Context(), tokenString)
		if err != nil {
			abortWith(c, err)
			return
		}

		SetUserInfo(c, userInfo)
		c.Next()
	}
}

// OptionalAuth attaches the caller when a valid token is present and lets anonymous requests through
func (am *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenString := ExtractToken(c); tokenString != "" {
			if userInfo, err := am.Authenticate(c.Request.Context(), tokenString); err == nil {
				SetUserInfo(c, userInfo)
			}
		}
		c.Next()
	}
}

// RequireRole allows only the listed roles
func (am *AuthMiddleware) RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		userInfo, err := GetUserInfoFromContext(c)
		if err != nil {
			abortWith(c, err)
			return
		}

		for _, role := range roles {
			if userInfo.Role == role {
				c.Next()
				return
			}
		}

		abortWith(c, apperrors.AccessDenied("insufficient permissions").
			WithDetail("user_role", userInfo.Role))
	}
}

// RequireCapability allows callers whose role grants cap
func (am *AuthMiddleware) RequireCapability(cap models.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		userInfo, err := GetUserInfoFromContext(c)
		if err != nil {
			abortWith(c, err)
			return
		}
		if !userInfo.Can(cap) {
			abortWith(c, apperrors.AccessDenied("role %s cannot perform %s", userInfo.Role, cap))
			return
		}
		c.Next()
	}
}

// Authenticate verifies the token and resolves the caller, using the Redis claims cache
func (am *AuthMiddleware) Authenticate(ctx context.Context, tokenString string) (*models.UserInfo, error) {
	if utils.IsTokenRevoked(ctx, tokenString) {
		return nil, apperrors.AuthRequired("token has been revoked")
	}

	cacheKey := utils.ClaimsCacheKey(tokenString)
	var cached models.UserInfo
	if err := utils.CacheGetJSON(ctx, cacheKey, &cached); err == nil && cached.CognitoID != "" {
		return &cached, nil
	}

	claims, err := am.verify(ctx, tokenString)
	if err != nil {
		return nil, err
	}

	role, err := models.ParseRole(claims.CustomRole)
	if err != nil {
		return nil, apperrors.AccessDenied("account has no marketplace role")
	}

	userInfo := &models.UserInfo{
		CognitoID:     claims.Sub,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Role:          role,
	}

	if ttl := time.Until(claims.ExpiresAt); ttl > 0 {
		if ttl > maxClaimsTTL {
			ttl = maxClaimsTTL
		}
		if err := utils.CacheSetJSON(ctx, cacheKey, userInfo, ttl); err != nil && !errors.Is(err, utils.ErrCacheUnavailable) {
			am.log.WithError(err).Warn("Failed to cache verified claims")
		}
	}

	return userInfo, nil
}

// verify checks the signature and fills missing attributes from the identity provider
func (am *AuthMiddleware) verify(ctx context.Context, tokenString string) (*CognitoClaims, error) {
	mapClaims, err := am.validator.ValidateToken(tokenString)
	if err != nil {
		am.log.WithError(err).Debug("Token rejected")
		return nil, apperrors.AuthRequired("invalid or expired token")
	}

	claims := parseClaims(mapClaims)
	if claims.Sub == "" {
		return nil, apperrors.AuthRequired("token has no subject")
	}

	// Accept both "access" and "id" tokens; only ID tokens carry custom attributes
	if claims.TokenUse != "" && claims.TokenUse != "access" && claims.TokenUse != "id" {
		return nil, apperrors.AuthRequired("invalid token use %q", claims.TokenUse)
	}

	if claims.CustomRole == "" && am.attributes != nil {
		var attrs map[string]string
		err := am.circuitBreaker.Call(func() error {
			var lookupErr error
			attrs, lookupErr = am.attributes.UserAttributes(ctx, claims.Sub)
			return lookupErr
		})
		if err != nil {
			return nil, apperrors.Internal(err, "failed to resolve user attributes")
		}
		claims.CustomRole = attrs["custom:role"]
		if claims.Email == "" {
			claims.Email = attrs["email"]
		}
		if !claims.EmailVerified {
			claims.EmailVerified = attrs["email_verified"] == "true"
		}
	}

	return claims, nil
}

func parseClaims(claims jwt.MapClaims) *CognitoClaims {
	parsed := &CognitoClaims{
		Sub:        getClaimString(claims, "sub"),
		Email:      getClaimString(claims, "email"),
		Username:   getClaimString(claims, "cognito:username"),
		TokenUse:   getClaimString(claims, "token_use"),
		CustomRole: getClaimString(claims, "custom:role"),
	}

	switch v := claims["email_verified"].(type) {
	case bool:
		parsed.EmailVerified = v
	case string:
		parsed.EmailVerified = v == "true"
	}

	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		parsed.ExpiresAt = exp.Time
	}
	return parsed
}

// getClaimString safely extracts a string claim from JWT claims
func getClaimString(claims jwt.MapClaims, key string) string {
	if val, ok := claims[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// ExtractToken extracts the JWT token from the Authorization header
func ExtractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}

	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}

	return authHeader
}

// SetUserInfo attaches the caller to the request context
func SetUserInfo(c *gin.Context, userInfo *models.UserInfo) {
	c.Set(userInfoKey, userInfo)
	c.Set("user_id", userInfo.CognitoID)
	c.Set("email", userInfo.Email)
	c.Set("role", string(userInfo.Role))
}

func abortWith(c *gin.Context, err error) {
	utils.ErrorFromApp(c, err)
	c.Abort()
}

// GetUserInfoFromContext returns the caller attached by RequireAuth or OptionalAuth
func GetUserInfoFromContext(c *gin.Context) (*models.UserInfo, error) {
	value, exists := c.Get(userInfoKey)
	if !exists {
		return nil, apperrors.AuthRequired("authentication required")
	}
	userInfo, ok := value.(*models.UserInfo)
	if !ok || userInfo == nil {
		return nil, apperrors.AuthRequired("authentication required")
	}
	return userInfo, nil
}

// cognitoLookup reads user attributes with AdminGetUser
type cognitoLookup struct {
	client     *cognitoidentityprovider.CognitoIdentityProvider
	userPoolID string
}

func (l *cognitoLookup) UserAttributes(ctx context.Context, subject string) (map[string]string, error) {
	out, err := l.client.AdminGetUserWithContext(ctx, &cognitoidentityprovider.AdminGetUserInput{
		UserPoolId: aws.String(l.userPoolID),
		Username:   aws.String(subject),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get user from Cognito: %w", err)
	}

	attrs := make(map[string]string, len(out.UserAttributes))
	for _, attr := range out.UserAttributes {
		attrs[aws.StringValue(attr.Name)] = aws.StringValue(attr.Value)
	}
	return attrs, nil
}
