package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"can-collector/internal/auth"
	"can-collector/internal/repository/sqlite"
	"can-collector/internal/service"
)

const testSecret = "test-secret"

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := sqlite.NewUserRepository(db)
	require.NoError(t, repo.Init(context.Background()))

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	tokens := auth.NewTokenManager(testSecret, 24*time.Hour)
	handler := NewHandler(service.NewUserService(repo), service.NewDepositService(repo), tokens, "", logger)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler.RegisterRoutes(router, "*")
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func registerAndLogin(t *testing.T, router *gin.Engine, username, password string) string {
	t.Helper()

	rec := doJSON(t, router, http.MethodPost, "/api/register", "", gin.H{"username": username, "password": password})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/login", "", gin.H{"username": username, "password": password})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp loginResponse
	decode(t, rec, &resp)
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestRegisterDuplicateUsername(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/register", "", gin.H{"username": "alice", "password": "pw1"})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/register", "", gin.H{"username": "alice", "password": "pw2"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterMissingFields(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/register", "", gin.H{"username": "alice"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginFailuresShareOneMessage(t *testing.T) {
	router := newTestRouter(t)
	registerAndLogin(t, router, "alice", "pw1")

	wrongPassword := doJSON(t, router, http.MethodPost, "/api/login", "", gin.H{"username": "alice", "password": "nope"})
	unknownUser := doJSON(t, router, http.MethodPost, "/api/login", "", gin.H{"username": "ghost", "password": "pw1"})

	assert.Equal(t, http.StatusBadRequest, wrongPassword.Code)
	assert.Equal(t, http.StatusBadRequest, unknownUser.Code)

	var a, b messageResponse
	decode(t, wrongPassword, &a)
	decode(t, unknownUser, &b)
	assert.Equal(t, a.Message, b.Message)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	router := newTestRouter(t)

	protected := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/user"},
		{http.MethodPost, "/api/start-collection"},
		{http.MethodPost, "/api/can-detected"},
		{http.MethodPost, "/api/invalid-item"},
		{http.MethodPost, "/api/end-collection"},
		{http.MethodPost, "/api/redeem-voucher"},
	}

	for _, route := range protected {
		rec := doJSON(t, router, route.method, route.path, "", nil)
		assert.Equalf(t, http.StatusUnauthorized, rec.Code, "%s %s without token", route.method, route.path)

		rec = doJSON(t, router, route.method, route.path, "garbage.token.here", nil)
		assert.Equalf(t, http.StatusForbidden, rec.Code, "%s %s with bad token", route.method, route.path)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	router := newTestRouter(t)
	registerAndLogin(t, router, "alice", "pw1")

	expired := auth.NewTokenManager(testSecret, -time.Minute)
	token, err := expired.Issue(1, "alice")
	require.NoError(t, err)

	rec := doJSON(t, router, http.MethodGet, "/api/user", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestTokenResolvesToSameUser(t *testing.T) {
	router := newTestRouter(t)
	token := registerAndLogin(t, router, "alice", "pw1")

	rec := doJSON(t, router, http.MethodGet, "/api/user", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var profile profileResponse
	decode(t, rec, &profile)
	assert.Equal(t, "alice", profile.Username)
	assert.NotNil(t, profile.Vouchers)
}

func TestStartAndEndCollection(t *testing.T) {
	router := newTestRouter(t)
	token := registerAndLogin(t, router, "alice", "pw1")

	rec := doJSON(t, router, http.MethodPost, "/api/start-collection", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var started startCollectionResponse
	decode(t, rec, &started)
	assert.NotEmpty(t, started.SessionID)
	assert.Equal(t, "collecting", started.Status)

	rec = doJSON(t, router, http.MethodPost, "/api/end-collection", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var ended endCollectionResponse
	decode(t, rec, &ended)
	assert.Zero(t, ended.TotalCans)
	assert.Zero(t, ended.Points)
}

func TestInvalidItemIsStateless(t *testing.T) {
	router := newTestRouter(t)
	token := registerAndLogin(t, router, "alice", "pw1")

	rec := doJSON(t, router, http.MethodPost, "/api/invalid-item", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp invalidItemResponse
	decode(t, rec, &resp)
	assert.Equal(t, "invalid_item", resp.Error)

	rec = doJSON(t, router, http.MethodGet, "/api/user", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var profile profileResponse
	decode(t, rec, &profile)
	assert.Zero(t, profile.TotalCans)
	assert.Zero(t, profile.Points)
}

func TestRedeemInvalidType(t *testing.T) {
	router := newTestRouter(t)
	token := registerAndLogin(t, router, "alice", "pw1")

	rec := doJSON(t, router, http.MethodPost, "/api/redeem-voucher", token, gin.H{"voucherType": "50k"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// TestDepositAndRedeemFlow walks the full loyalty scenario: five cans, a
// premature redemption attempt, thirty-five more cans, then a successful 10k
// redemption draining the balance.
func TestDepositAndRedeemFlow(t *testing.T) {
	router := newTestRouter(t)
	token := registerAndLogin(t, router, "alice", "pw1")

	rec := doJSON(t, router, http.MethodPost, "/api/start-collection", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var started startCollectionResponse
	decode(t, rec, &started)

	deposit := func(n int) {
		for i := 0; i < n; i++ {
			rec := doJSON(t, router, http.MethodPost, "/api/can-detected", token, gin.H{"sessionId": started.SessionID})
			require.Equal(t, http.StatusOK, rec.Code)

			var resp canDetectedResponse
			decode(t, rec, &resp)
			assert.Equal(t, 1, resp.CanCount)
		}
	}

	deposit(5)

	rec = doJSON(t, router, http.MethodGet, "/api/user", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var profile profileResponse
	decode(t, rec, &profile)
	assert.Equal(t, int64(5), profile.TotalCans)
	assert.Equal(t, int64(5), profile.Points)

	// 5 points is not enough for a 10k voucher
	rec = doJSON(t, router, http.MethodPost, "/api/redeem-voucher", token, gin.H{"voucherType": "10k"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	deposit(35)

	rec = doJSON(t, router, http.MethodPost, "/api/redeem-voucher", token, gin.H{"voucherType": "10k"})
	require.Equal(t, http.StatusOK, rec.Code)

	var redeemed redeemVoucherResponse
	decode(t, rec, &redeemed)
	assert.Zero(t, redeemed.Points)
	assert.Equal(t, "10k", string(redeemed.Voucher.Type))
	assert.Equal(t, int64(10000), redeemed.Voucher.Value)

	rec = doJSON(t, router, http.MethodGet, "/api/user", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &profile)
	assert.Equal(t, int64(40), profile.TotalCans)
	assert.Zero(t, profile.Points)
	require.Len(t, profile.Vouchers, 1)
	assert.Equal(t, int64(10000), profile.Vouchers[0].Value)
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
