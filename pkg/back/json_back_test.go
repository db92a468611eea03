package back

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"EstateGuru/pkg/xerr"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, data interface{}, err error) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	Result(c, data, err)

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func TestResultSuccess(t *testing.T) {
	w, resp := run(t, map[string]int{"n": 1}, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xerr.OK, resp.Code)
	assert.NotNil(t, resp.Data)
}

func TestResultMapsKindToStatus(t *testing.T) {
	w, resp := run(t, nil, xerr.Input("query is empty"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(xerr.KindInput), resp.Kind)
	assert.Equal(t, "query is empty", resp.Message)

	w, resp = run(t, nil, xerr.Upstream("llm service unavailable", errors.New("dial tcp 10.0.0.1:443")))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.NotContains(t, w.Body.String(), "10.0.0.1")
	assert.Equal(t, "llm service unavailable", resp.Message)
}

func TestResultHidesUnexpectedErrors(t *testing.T) {
	w, resp := run(t, nil, errors.New("nil pointer in handler"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, xerr.ErrServerError.Message, resp.Message)
	assert.NotContains(t, w.Body.String(), "nil pointer")
}
