package notification

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"pushdesk/internal/domain/audience"
)

func newHandlerFixture(t *testing.T, dir *fakeDirectory) (*gin.Engine, *serviceFixture) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	fx := newFixture(dir, false)
	router := gin.New()
	NewHandler(fx.service).RegisterRoutes(router.Group("/api/v1"))
	return router, fx
}

func do(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandlerCreate_MissingBodyField(t *testing.T) {
	router, fx := newHandlerFixture(t, &fakeDirectory{})

	rec := do(router, http.MethodPost, "/api/v1/notifications", `{"title":"only a title"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, fx.upstream.created)
}

func TestHandlerCreate_MalformedDataJSON(t *testing.T) {
	router, _ := newHandlerFixture(t, &fakeDirectory{})

	rec := do(router, http.MethodPost, "/api/v1/notifications",
		`{"title":"t","body":"b","data":"{\"broken\":"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":false`)
}

func TestHandlerSend_EmptyAudienceMapsTo422(t *testing.T) {
	router, fx := newHandlerFixture(t, &fakeDirectory{})
	fx.upstream.notifications["n-1"] = &Notification{
		ID: "n-1", Title: "A", Body: "B", Status: StatusPending,
	}

	rec := do(router, http.MethodPost, "/api/v1/notifications/n-1/send",
		`{"original":{"title":"A","body":"B"},"current":{"title":"A","body":"B"}}`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Empty(t, fx.dispatcher.calls)
}

func TestHandlerCancel_TerminalConflict(t *testing.T) {
	router, fx := newHandlerFixture(t, &fakeDirectory{})
	fx.upstream.notifications["n-1"] = &Notification{ID: "n-1", Status: StatusSent}

	rec := do(router, http.MethodPost, "/api/v1/notifications/n-1/cancel", "")

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandlerGet_NotFound(t *testing.T) {
	router, _ := newHandlerFixture(t, &fakeDirectory{})

	rec := do(router, http.MethodGet, "/api/v1/notifications/ghost", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerSend_Success(t *testing.T) {
	dir := &fakeDirectory{users: []audience.User{{ID: "u1", Token: "t1"}}}
	router, fx := newHandlerFixture(t, dir)
	fx.upstream.notifications["n-1"] = &Notification{
		ID: "n-1", Title: "A", Body: "B", Status: StatusPending,
	}

	rec := do(router, http.MethodPost, "/api/v1/notifications/n-1/send",
		`{"original":{"title":"A","body":"B"},"current":{"title":"A","body":"B"}}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"sent"`)
	assert.Len(t, fx.dispatcher.calls, 1)
}
