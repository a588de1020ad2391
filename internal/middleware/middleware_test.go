package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/smart-plan-api/internal/models"
	appErrors "github.com/noah-isme/smart-plan-api/pkg/errors"
)

type stubValidator struct {
	claims *models.JWTClaims
	token  string
}

func (v stubValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	if token != v.token {
		return nil, appErrors.Wrap(errors.New("bad signature"), appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}
	return v.claims, nil
}

func protectedRouter(roles ...models.UserRole) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(WithResponseMeta())
	auth := stubValidator{token: "good", claims: &models.JWTClaims{UserID: "tch-1", Role: models.RoleTeacher}}
	handlers := []gin.HandlerFunc{JWT(auth)}
	if len(roles) > 0 {
		handlers = append(handlers, RequireRoles(roles...))
	}
	handlers = append(handlers, func(c *gin.Context) {
		claims := c.MustGet(ContextUserKey).(*models.JWTClaims)
		SetCacheHit(c, true)
		c.JSON(http.StatusOK, gin.H{"user": claims.UserID, "meta": ResponseMeta(c)})
	})
	r.GET("/secure", handlers...)
	return r
}

func doGet(r http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/secure", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTRejectsMissingAndInvalidTokens(t *testing.T) {
	r := protectedRouter()

	for name, header := range map[string]string{
		"missing":   "",
		"scheme":    "Basic abc",
		"empty":     "Bearer ",
		"bad token": "Bearer nope",
	} {
		t.Run(name, func(t *testing.T) {
			w := doGet(r, header)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), appErrors.ErrUnauthorized.Code)
		})
	}
}

func TestJWTStoresClaimsAndMeta(t *testing.T) {
	w := doGet(protectedRouter(), "bearer good")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		User string                 `json:"user"`
		Meta map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "tch-1", body.User)
	assert.Equal(t, true, body.Meta["cache_hit"])
	assert.Contains(t, body.Meta, "processing_time_ms")
}

func TestRequireRoles(t *testing.T) {
	assert.Equal(t, http.StatusOK, doGet(protectedRouter(models.RoleTeacher, models.RoleAdmin), "Bearer good").Code)

	w := doGet(protectedRouter(models.RoleAdmin), "Bearer good")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), appErrors.ErrForbidden.Code)
}
