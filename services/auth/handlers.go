package main

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pavitra93/go-rental-marketplace/shared/apperrors"
	"github.com/pavitra93/go-rental-marketplace/shared/middleware"
	"github.com/pavitra93/go-rental-marketplace/shared/models"
	"github.com/pavitra93/go-rental-marketplace/shared/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// revocationTTL matches the longest time verified claims may stay cached
const revocationTTL = time.Hour

// authService holds the collaborators shared by the auth handlers
type authService struct {
	db             *gorm.DB
	idp            IdentityProvider
	auth           *middleware.AuthMiddleware
	circuitBreaker *utils.CircuitBreaker
	log            *logrus.Entry
}

func newAuthService(db *gorm.DB, idp IdentityProvider, auth *middleware.AuthMiddleware, logger *logrus.Entry) *authService {
	return &authService{
		db:             db,
		idp:            idp,
		auth:           auth,
		circuitBreaker: utils.NewNamedCircuitBreaker("cognito", 5, 30*time.Second, utils.ExportState),
		log:            logger,
	}
}

// callProvider runs fn through the circuit breaker. Errors caused by the caller's input do not count as failures.
func (s *authService) callProvider(fn func() error) error {
	var userErr error
	err := s.circuitBreaker.Call(func() error {
		err := fn()
		if isUserError(err) {
			userErr = err
			return nil
		}
		return err
	})
	if err != nil {
		return err
	}
	return userErr
}

func isUserError(err error) bool {
	return errors.Is(err, errUserExists) || errors.Is(err, errInvalidPassword) ||
		errors.Is(err, errInvalidCredentials) || errors.Is(err, errNotConfirmed)
}

// respondProviderError maps identity provider failures onto the error envelope
func respondProviderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, utils.ErrCircuitOpen), errors.Is(err, utils.ErrTooManyRequests):
		utils.ServiceUnavailableResponse(c, "Authentication service temporarily unavailable")
	case errors.Is(err, errUserExists):
		utils.ErrorFromApp(c, apperrors.Conflict("user already exists"))
	case errors.Is(err, errInvalidPassword):
		utils.ErrorFromApp(c, apperrors.ValidationFailed("password does not meet requirements"))
	case errors.Is(err, errInvalidCredentials):
		utils.ErrorFromApp(c, apperrors.AuthRequired("invalid credentials"))
	case errors.Is(err, errNotConfirmed):
		utils.ErrorFromApp(c, apperrors.AccessDenied("email address has not been confirmed"))
	default:
		utils.ErrorFromApp(c, apperrors.Internal(err, "identity provider request failed"))
	}
}

// RegisterRequest represents the registration request
type RegisterRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	Name        string `json:"name" binding:"required"`
	PhoneNumber string `json:"phone_number"`
	Role        string `json:"role" binding:"required"`
}

// LoginRequest represents the login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest represents the token refresh request
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
	Email        string `json:"email"`
}

// handleRegister signs the user up and creates their profile. A profile that cannot be stored removes the pool user again.
func (s *authService) handleRegister() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}

		role, err := models.ParseRole(req.Role)
		if err != nil || role == models.RoleAdmin {
			utils.ErrorFromApp(c, apperrors.ValidationFailed("role must be tenant or manager"))
			return
		}
		name := strings.TrimSpace(req.Name)
		if name == "" {
			utils.ErrorFromApp(c, apperrors.ValidationFailed("name cannot be empty"))
			return
		}

		ctx := c.Request.Context()
		attributes := map[string]string{
			"email":       req.Email,
			"name":        name,
			"custom:role": string(role),
		}

		var cognitoID string
		err = s.callProvider(func() error {
			var signUpErr error
			cognitoID, signUpErr = s.idp.SignUp(ctx, req.Email, req.Password, attributes)
			return signUpErr
		})
		if err != nil {
			respondProviderError(c, err)
			return
		}

		if err := s.createProfile(ctx, role, cognitoID, name, req.Email, req.PhoneNumber); err != nil {
			s.compensate(ctx, req.Email)
			utils.ErrorFromApp(c, apperrors.Internal(err, "failed to complete registration"))
			return
		}

		s.log.WithFields(logrus.Fields{"cognito_id": cognitoID, "role": role}).Info("User registered")
		utils.CreatedResponse(c, "User registered successfully. Please confirm email before login.", gin.H{
			"cognito_id": cognitoID,
			"email":      req.Email,
			"role":       role,
		})
	}
}

func (s *authService) createProfile(ctx context.Context, role models.Role, cognitoID, name, email, phone string) error {
	if role == models.RoleManager {
		return s.db.WithContext(ctx).Create(&models.Manager{
			CognitoID: cognitoID, Name: name, Email: email, PhoneNumber: phone,
		}).Error
	}
	return s.db.WithContext(ctx).Create(&models.Tenant{
		CognitoID: cognitoID, Name: name, Email: email, PhoneNumber: phone,
	}).Error
}

// compensate removes a pool user whose profile row could not be written
func (s *authService) compensate(ctx context.Context, username string) {
	err := s.circuitBreaker.Call(func() error {
		return s.idp.DeleteUser(ctx, username)
	})
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"username": username,
			"error":    err,
		}).Warn("Failed to compensate orphaned Cognito user")
	}
}

// handleLogin authenticates with the user pool and resolves the caller from the verified ID token
func (s *authService) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}

		ctx := c.Request.Context()
		var tokens *Tokens
		err := s.callProvider(func() error {
			var loginErr error
			tokens, loginErr = s.idp.Login(ctx, req.Email, req.Password)
			return loginErr
		})
		if err != nil {
			respondProviderError(c, err)
			return
		}

		userInfo, err := s.auth.Authenticate(ctx, tokens.IDToken)
		if err != nil {
			utils.ErrorFromApp(c, err)
			return
		}
		s.touchLastLogin(ctx, userInfo)

		utils.OKResponse(c, "Login successful", gin.H{
			"access_token":  tokens.AccessToken,
			"id_token":      tokens.IDToken,
			"refresh_token": tokens.RefreshToken,
			"expires_in":    tokens.ExpiresIn,
			"token_type":    "Bearer",
			"user_info":     userInfo,
		})
	}
}

func (s *authService) touchLastLogin(ctx context.Context, userInfo *models.UserInfo) {
	var profile interface{}
	switch {
	case userInfo.IsManager():
		profile = &models.Manager{}
	case userInfo.IsTenant():
		profile = &models.Tenant{}
	default:
		return
	}
	err := s.db.WithContext(ctx).Model(profile).
		Where("cognito_id = ?", userInfo.CognitoID).
		Update("last_login_at", time.Now().UTC()).Error
	if err != nil {
		s.log.WithError(err).Warn("Failed to record last login")
	}
}

// handleRefreshToken exchanges a refresh token for new access and ID tokens
func (s *authService) handleRefreshToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RefreshRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}

		ctx := c.Request.Context()
		var tokens *Tokens
		err := s.callProvider(func() error {
			var refreshErr error
			tokens, refreshErr = s.idp.Refresh(ctx, req.Email, req.RefreshToken)
			return refreshErr
		})
		if err != nil {
			if errors.Is(err, errInvalidCredentials) {
				utils.ErrorFromApp(c, apperrors.AuthRequired("invalid refresh token"))
				return
			}
			respondProviderError(c, err)
			return
		}

		utils.OKResponse(c, "Token refreshed successfully", gin.H{
			"access_token": tokens.AccessToken,
			"id_token":     tokens.IDToken,
			"expires_in":   tokens.ExpiresIn,
			"token_type":   "Bearer",
		})
	}
}

// handleVerifyToken returns the caller resolved by RequireAuth
func handleVerifyToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		userInfo, err := middleware.GetUserInfoFromContext(c)
		if err != nil {
			utils.ErrorFromApp(c, err)
			return
		}
		utils.OKResponse(c, "Token is valid", userInfo)
	}
}

// handleLogout revokes the presented token
func handleLogout() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := middleware.ExtractToken(c)
		if err := utils.RevokeToken(c.Request.Context(), token, revocationTTL); err != nil {
			if errors.Is(err, utils.ErrCacheUnavailable) {
				utils.ServiceUnavailableResponse(c, "Token revocation temporarily unavailable")
				return
			}
			utils.ErrorFromApp(c, apperrors.Internal(err, "failed to revoke token"))
			return
		}
		utils.OKResponse(c, "Logout successful", nil)
	}
}
