package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/grademonitor-api/pkg/errors"
)

func TestJSONEnvelopeWithMeta(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	JSON(c, http.StatusOK, gin.H{"current": "2"}, map[string]interface{}{"pending_changes": true})

	var body map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "2", body["data"]["current"])
	assert.Equal(t, true, body["meta"]["pending_changes"])
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestErrorUsesTypedStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Error(c, appErrors.Clone(appErrors.ErrSessionClosed, ""))
	assert.Equal(t, http.StatusGone, w.Code)
	assert.Contains(t, w.Body.String(), "SESSION_CLOSED")
}

func TestNoContentWritesStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	NoContent(c)
	assert.Equal(t, http.StatusNoContent, w.Code)
}
