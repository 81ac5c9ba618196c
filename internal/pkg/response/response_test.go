package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func performRequest(handler gin.HandlerFunc) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	handler(c)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestSuccess(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		Success(c, gin.H{"job_id": "job-1"})
	})

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.Equal(t, CodeSuccess, resp.Code)
	assert.Equal(t, "success", resp.Message)
	assert.NotNil(t, resp.Data)
}

func TestSuccessPage(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		SuccessPage(c, 25, 2, 10, []string{"a"})
	})

	resp := decode(t, w)
	assert.Equal(t, CodeSuccess, resp.Code)

	page, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(25), page["total"])
	assert.Equal(t, float64(2), page["page"])
}

func TestError_DefaultMessages(t *testing.T) {
	cases := []struct {
		name    string
		handler gin.HandlerFunc
		code    int
	}{
		{"param", func(c *gin.Context) { ParamError(c, "") }, CodeParamError},
		{"auth", func(c *gin.Context) { AuthError(c, "") }, CodeAuthFailed},
		{"not found", func(c *gin.Context) { NotFoundError(c, "") }, CodeResourceNotFound},
		{"upstream", func(c *gin.Context) { UpstreamError(c, "") }, CodeUpstreamError},
		{"server", func(c *gin.Context) { ServerError(c, "") }, CodeServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := decode(t, performRequest(tc.handler))
			assert.Equal(t, tc.code, resp.Code)
			assert.Equal(t, codeMessages[tc.code], resp.Message)
		})
	}
}

func TestError_CustomMessage(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		NotFoundError(c, "job job-9 not found")
	})

	resp := decode(t, w)
	assert.Equal(t, "job job-9 not found", resp.Message)
}
