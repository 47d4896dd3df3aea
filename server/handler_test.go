package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huykn/assessment-cache/cache"
	"github.com/huykn/assessment-cache/types"
)

type stubPipeline struct {
	value  any
	err    error
	events []types.Event
}

func (s *stubPipeline) HandleEvent(ctx context.Context, event types.Event) (any, error) {
	s.events = append(s.events, event)
	return s.value, s.err
}

func (s *stubPipeline) Stats() cache.Stats {
	return cache.Stats{Hits: 3, Misses: 1}
}

func setupRouter(p Pipeline) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewRouter(NewHandler(p, nil))
}

func post(router *gin.Engine, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/mp/collect", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestCollect(t *testing.T) {
	t.Run("Collect_Success", func(t *testing.T) {
		p := &stubPipeline{value: 0.9}
		router := setupRouter(p)

		w := post(router, `{"client_id":"c1","recaptcha":"{\"token\":\"T\",\"action\":\"login\"}"}`)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 0.9, resp["value"])
		require.Len(t, p.events, 1)
		assert.Equal(t, "c1", p.events[0].String(types.FieldClientID))
	})

	t.Run("Collect_InvalidBody", func(t *testing.T) {
		p := &stubPipeline{}
		router := setupRouter(p)

		w := post(router, `{not json`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Empty(t, p.events)
	})

	t.Run("Collect_IgnoresIrrelevant", func(t *testing.T) {
		p := &stubPipeline{}
		router := setupRouter(p)

		w := post(router, `{"page":"/home"}`)

		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.Empty(t, p.events)
	})

	t.Run("Collect_OutputFailure", func(t *testing.T) {
		p := &stubPipeline{value: 0.4, err: errors.New("sink down")}
		router := setupRouter(p)

		w := post(router, `{"client_id":"c1"}`)

		assert.Equal(t, http.StatusBadGateway, w.Code)
		var resp map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 0.4, resp["value"])
	})
}

func TestStats(t *testing.T) {
	router := setupRouter(&stubPipeline{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/stats", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var stats cache.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, int64(3), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}
