package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func serve(t *testing.T, r *gin.Engine) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	r.ServeHTTP(w, req)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestOK(t *testing.T) {
	r := setupTestRouter()
	r.GET("/test", func(c *gin.Context) {
		OK(c, gin.H{"intent_id": "abc"})
	})

	w, body := serve(t, r)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(CodeSuccess), body["code"])
	assert.Equal(t, "success", body["message"])
	assert.Equal(t, map[string]interface{}{"intent_id": "abc"}, body["data"])
}

func TestOKMsg(t *testing.T) {
	r := setupTestRouter()
	r.GET("/test", func(c *gin.Context) {
		OKMsg(c, "workflow cancelled", nil)
	})

	_, body := serve(t, r)
	assert.Equal(t, "workflow cancelled", body["message"])
	assert.Nil(t, body["data"])
}

func TestFail(t *testing.T) {
	r := setupTestRouter()
	r.GET("/test", func(c *gin.Context) {
		Fail(c, http.StatusBadRequest, CodeParamInvalid, "bad request")
	})

	w, body := serve(t, r)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, float64(CodeParamInvalid), body["code"])
	assert.Equal(t, "bad request", body["message"])
}

func TestFailErr_HidesInternalError(t *testing.T) {
	r := setupTestRouter()
	r.GET("/test", func(c *gin.Context) {
		FailErr(c, ErrInternalError("internal error", errors.New("dial tcp 10.0.0.1:3306: refused")))
	})

	w, body := serve(t, r)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, float64(CodeInternalError), body["code"])
	assert.Equal(t, "internal error", body["message"])
	assert.NotContains(t, w.Body.String(), "10.0.0.1")
}

func TestFailErr_WithData(t *testing.T) {
	r := setupTestRouter()
	r.GET("/test", func(c *gin.Context) {
		FailErr(c, ErrAlreadyExists("exists").WithData(gin.H{"intent_id": "abc"}))
	})

	w, body := serve(t, r)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, map[string]interface{}{"intent_id": "abc"}, body["data"])
}

func TestOKItems(t *testing.T) {
	r := setupTestRouter()
	r.GET("/test", func(c *gin.Context) {
		OKItems(c, []string{"a", "b"}, 2)
	})

	_, body := serve(t, r)
	data, ok := body["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, []interface{}{"a", "b"}, data["items"])
	assert.Equal(t, float64(2), data["total"])
}
