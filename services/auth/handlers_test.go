package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pavitra93/go-rental-marketplace/shared/config"
	"github.com/pavitra93/go-rental-marketplace/shared/middleware"
	"github.com/pavitra93/go-rental-marketplace/shared/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// stubValidator accepts tokens of the form "<subject>:<role>"
type stubValidator struct{}

func (stubValidator) ValidateToken(token string) (jwt.MapClaims, error) {
	sub, role, ok := strings.Cut(token, ":")
	if !ok {
		return nil, fmt.Errorf("malformed token")
	}
	return jwt.MapClaims{
		"sub":         sub,
		"email":       sub + "@example.com",
		"custom:role": role,
		"exp":         float64(time.Now().Add(time.Hour).Unix()),
	}, nil
}

// fakeIDP is an in-memory user pool
type fakeIDP struct {
	users    map[string]fakeUser
	deleted  []string
	outage   error
	signUpID string
}

type fakeUser struct {
	sub      string
	password string
	role     string
}

func newFakeIDP() *fakeIDP {
	return &fakeIDP{users: map[string]fakeUser{}}
}

func (f *fakeIDP) SignUp(_ context.Context, username, password string, attributes map[string]string) (string, error) {
	if f.outage != nil {
		return "", f.outage
	}
	if _, exists := f.users[username]; exists {
		return "", errUserExists
	}
	sub := f.signUpID
	if sub == "" {
		sub = uuid.NewString()
	}
	f.users[username] = fakeUser{sub: sub, password: password, role: attributes["custom:role"]}
	return sub, nil
}

func (f *fakeIDP) DeleteUser(_ context.Context, username string) error {
	f.deleted = append(f.deleted, username)
	delete(f.users, username)
	return nil
}

func (f *fakeIDP) Login(_ context.Context, username, password string) (*Tokens, error) {
	if f.outage != nil {
		return nil, f.outage
	}
	user, ok := f.users[username]
	if !ok || user.password != password {
		return nil, errInvalidCredentials
	}
	token := user.sub + ":" + user.role
	return &Tokens{AccessToken: token, IDToken: token, RefreshToken: "refresh-" + user.sub, ExpiresIn: 3600}, nil
}

func (f *fakeIDP) Refresh(_ context.Context, _ string, refreshToken string) (*Tokens, error) {
	for _, user := range f.users {
		if refreshToken == "refresh-"+user.sub {
			token := user.sub + ":" + user.role
			return &Tokens{AccessToken: token, IDToken: token, ExpiresIn: 3600}, nil
		}
	}
	return nil, errInvalidCredentials
}

type testEnv struct {
	db     *gorm.DB
	idp    *fakeIDP
	router *gin.Engine
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, config.Migrate(db))

	quiet := logrus.New()
	quiet.SetOutput(io.Discard)
	entry := logrus.NewEntry(quiet)

	idp := newFakeIDP()
	svc := newAuthService(db, idp, middleware.NewAuthMiddlewareWith(stubValidator{}, nil), entry)
	return &testEnv{db: db, idp: idp, router: setupRouter(svc, entry)}
}

type envelope struct {
	Success bool            `json:"success"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func registration(email, role string) gin.H {
	return gin.H{"email": email, "password": "correct-horse", "name": "Dana Reyes", "role": role}
}

func TestRegisterCreatesProfile(t *testing.T) {
	env := newEnv(t)

	code, body := env.do(t, http.MethodPost, "/auth/register", "", registration("dana@example.com", "tenant"))
	require.Equal(t, http.StatusCreated, code, body.Message)

	var created struct {
		CognitoID string `json:"cognito_id"`
		Role      string `json:"role"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &created))
	assert.Equal(t, "tenant", created.Role)

	var tenant models.Tenant
	require.NoError(t, env.db.First(&tenant, "cognito_id = ?", created.CognitoID).Error)
	assert.Equal(t, "Dana Reyes", tenant.Name)
	assert.Equal(t, "tenant", env.idp.users["dana@example.com"].role)

	code, _ = env.do(t, http.MethodPost, "/auth/register", "", registration("lee@example.com", "manager"))
	require.Equal(t, http.StatusCreated, code)
	var managers int64
	env.db.Model(&models.Manager{}).Count(&managers)
	assert.Equal(t, int64(1), managers)
}

func TestRegisterRejections(t *testing.T) {
	env := newEnv(t)
	code, _ := env.do(t, http.MethodPost, "/auth/register", "", registration("dana@example.com", "tenant"))
	require.Equal(t, http.StatusCreated, code)

	tests := []struct {
		name string
		body gin.H
		want int
		kind string
	}{
		{"admin role", registration("root@example.com", "admin"), http.StatusBadRequest, "VALIDATION_FAILED"},
		{"unknown role", registration("x@example.com", "landlord"), http.StatusBadRequest, "VALIDATION_FAILED"},
		{"short password", gin.H{"email": "y@example.com", "password": "short", "name": "Y", "role": "tenant"}, http.StatusBadRequest, "VALIDATION_FAILED"},
		{"blank name", gin.H{"email": "z@example.com", "password": "correct-horse", "name": "  ", "role": "tenant"}, http.StatusBadRequest, "VALIDATION_FAILED"},
		{"duplicate", registration("dana@example.com", "tenant"), http.StatusConflict, "CONFLICT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := env.do(t, http.MethodPost, "/auth/register", "", tt.body)
			assert.Equal(t, tt.want, code)
			assert.Equal(t, tt.kind, body.Code)
		})
	}
}

func TestRegisterCompensatesWhenProfileFails(t *testing.T) {
	env := newEnv(t)
	require.NoError(t, env.db.Create(&models.Tenant{CognitoID: "fixed-sub", Name: "Existing", Email: "old@example.com"}).Error)
	env.idp.signUpID = "fixed-sub"

	code, body := env.do(t, http.MethodPost, "/auth/register", "", registration("new@example.com", "tenant"))

	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "INTERNAL", body.Code)
	assert.Equal(t, []string{"new@example.com"}, env.idp.deleted)
	assert.NotContains(t, env.idp.users, "new@example.com")
}

func TestLoginAndVerify(t *testing.T) {
	env := newEnv(t)
	env.do(t, http.MethodPost, "/auth/register", "", registration("dana@example.com", "tenant"))

	code, body := env.do(t, http.MethodPost, "/auth/login", "", gin.H{"email": "dana@example.com", "password": "correct-horse"})
	require.Equal(t, http.StatusOK, code, body.Message)

	var login struct {
		AccessToken  string          `json:"access_token"`
		RefreshToken string          `json:"refresh_token"`
		TokenType    string          `json:"token_type"`
		UserInfo     models.UserInfo `json:"user_info"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &login))
	assert.Equal(t, "Bearer", login.TokenType)
	assert.Equal(t, models.RoleTenant, login.UserInfo.Role)

	var tenant models.Tenant
	require.NoError(t, env.db.First(&tenant, "cognito_id = ?", login.UserInfo.CognitoID).Error)
	assert.NotNil(t, tenant.LastLoginAt)

	code, body = env.do(t, http.MethodGet, "/auth/verify", login.AccessToken, nil)
	require.Equal(t, http.StatusOK, code)
	var verified models.UserInfo
	require.NoError(t, json.Unmarshal(body.Data, &verified))
	assert.Equal(t, login.UserInfo.CognitoID, verified.CognitoID)

	code, body = env.do(t, http.MethodPost, "/auth/refresh", "", gin.H{"refresh_token": login.RefreshToken})
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body.Data), login.AccessToken)

	code, _ = env.do(t, http.MethodPost, "/auth/refresh", "", gin.H{"refresh_token": "stolen"})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = env.do(t, http.MethodGet, "/auth/verify", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestWrongPasswordsDoNotOpenCircuit(t *testing.T) {
	env := newEnv(t)
	env.do(t, http.MethodPost, "/auth/register", "", registration("dana@example.com", "tenant"))

	for i := 0; i < 8; i++ {
		code, body := env.do(t, http.MethodPost, "/auth/login", "", gin.H{"email": "dana@example.com", "password": "wrong"})
		require.Equal(t, http.StatusUnauthorized, code)
		assert.Equal(t, "AUTH_REQUIRED", body.Code)
	}

	code, _ := env.do(t, http.MethodPost, "/auth/login", "", gin.H{"email": "dana@example.com", "password": "correct-horse"})
	assert.Equal(t, http.StatusOK, code)
}

func TestProviderOutageOpensCircuit(t *testing.T) {
	env := newEnv(t)
	env.idp.outage = errors.New("dial tcp: i/o timeout")

	for i := 0; i < 5; i++ {
		code, _ := env.do(t, http.MethodPost, "/auth/login", "", gin.H{"email": "a@example.com", "password": "x"})
		require.Equal(t, http.StatusInternalServerError, code)
	}

	code, body := env.do(t, http.MethodPost, "/auth/login", "", gin.H{"email": "a@example.com", "password": "x"})
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body.Message, "temporarily unavailable")
}

func TestLogoutWithoutRevocationStore(t *testing.T) {
	env := newEnv(t)

	code, _ := env.do(t, http.MethodPost, "/auth/logout", "tenant-1:tenant", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)

	code, _ = env.do(t, http.MethodPost, "/auth/logout", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}
