package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/workshop-orchestrator/internal/models"
	appErrors "github.com/noah-isme/workshop-orchestrator/pkg/errors"
	"github.com/noah-isme/workshop-orchestrator/pkg/logger"
)

type stubValidator struct {
	claims *models.OperatorClaims
	err    error
	seen   string
}

func (s *stubValidator) ValidateToken(token string) (*models.OperatorClaims, error) {
	s.seen = token
	return s.claims, s.err
}

type observed struct {
	method string
	route  string
	status int
}

type recordingObserver struct {
	calls []observed
}

func (r *recordingObserver) ObserveHTTPRequest(method, route string, status int, _ time.Duration) {
	r.calls = append(r.calls, observed{method: method, route: route, status: status})
}

func newTestEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/courses", append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"operator": c.GetString(logger.OperatorKey)})
	})...)
	return r
}

func serve(r *gin.Engine, path, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWT(t *testing.T) {
	validator := &stubValidator{claims: &models.OperatorClaims{Email: "coord@cq.org", Role: models.RoleCoordinator}}
	r := newTestEngine(JWT(validator))

	w := serve(r, "/courses", "Bearer abc.def")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc.def", validator.seen)
	assert.JSONEq(t, `{"operator":"coord@cq.org"}`, w.Body.String())

	w = serve(r, "/courses", "bearer   padded")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "padded", validator.seen)

	for _, header := range []string{"", "Basic abc", "Bearer", "Bearer "} {
		w = serve(r, "/courses", header)
		assert.Equal(t, http.StatusUnauthorized, w.Code, "header %q", header)
	}

	validator.err = appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	w = serve(r, "/courses", "Bearer expired")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid token")
}

func TestRequireRoles(t *testing.T) {
	withRole := func(role models.OperatorRole) gin.HandlerFunc {
		return func(c *gin.Context) {
			if role != "" {
				c.Set(ContextUserKey, &models.OperatorClaims{Email: "x@cq.org", Role: role})
			}
			c.Next()
		}
	}

	cases := []struct {
		role   models.OperatorRole
		status int
	}{
		{models.RoleAdmin, http.StatusOK},
		{models.RoleCoordinator, http.StatusOK},
		{models.RoleTrainer, http.StatusForbidden},
		{"", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		r := newTestEngine(withRole(tc.role), RequireRoles(models.RoleAdmin, models.RoleCoordinator))
		w := serve(r, "/courses", "")
		assert.Equal(t, tc.status, w.Code, "role %q", tc.role)
	}
}

func TestCurrentOperator(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Nil(t, CurrentOperator(c))
	assert.Equal(t, "system", CurrentOperator(c).Actor())

	c.Set(ContextUserKey, "not claims")
	assert.Nil(t, CurrentOperator(c))

	claims := &models.OperatorClaims{Email: "coord@cq.org", Role: models.RoleCoordinator}
	c.Set(ContextUserKey, claims)
	assert.Same(t, claims, CurrentOperator(c))
}

func TestMetricsSkipsProbes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	observer := &recordingObserver{}
	r := gin.New()
	r.Use(Metrics(observer))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/courses/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	serve(r, "/health", "")
	serve(r, "/courses/PY101", "")
	serve(r, "/nowhere", "")

	require.Len(t, observer.calls, 2)
	assert.Equal(t, observed{method: http.MethodGet, route: "/courses/:id", status: http.StatusNotFound}, observer.calls[0])
	assert.Equal(t, "unmatched", observer.calls[1].route)
}

func TestMetricsNilObserver(t *testing.T) {
	r := newTestEngine(Metrics(nil))
	assert.Equal(t, http.StatusOK, serve(r, "/courses", "").Code)
}
