package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestNewRouter(t *testing.T) {
	r := NewRouter(gin.New())

	assert.Equal(t, "v1", r.apiVersion)
	assert.Empty(t, r.registrars)
}

func TestRouterWithAPIVersion(t *testing.T) {
	r := NewRouter(gin.New(), WithAPIVersion("v2"))

	assert.Equal(t, "v2", r.apiVersion)
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine, WithAPIVersion("v1"))

	var order []string
	group := NewDomainGroup("test", "/test").
		Use(func(c *gin.Context) {
			order = append(order, "middleware")
			c.Next()
		}).
		GET("/ping", func(c *gin.Context) {
			order = append(order, "handler")
			c.String(http.StatusOK, "pong")
		}).
		POST("/items", func(c *gin.Context) { c.Status(http.StatusCreated) })
	r.Register(group).Setup()

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/test/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
	assert.Equal(t, []string{"middleware", "handler"}, order)

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/test/items", nil))
	assert.Equal(t, http.StatusCreated, w.Code)

	assert.Equal(t, "test", group.Name())
	assert.Equal(t, "/test", group.Prefix())
}
