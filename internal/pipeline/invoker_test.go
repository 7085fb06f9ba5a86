package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPInvokerRun(t *testing.T) {
	t.Parallel()

	var gotAuth string
	var gotJobID uint64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var body struct {
			JobID uint64 `json:"job_id"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotJobID = body.JobID
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	inv := &HTTPInvoker{Endpoint: srv.URL, Secret: "s3cret"}
	require.NoError(t, inv.Run(context.Background(), 42))
	assert.Equal(t, "Bearer s3cret", gotAuth)
	assert.EqualValues(t, 42, gotJobID)
}

func TestHTTPInvokerRunSurfacesFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "generation blew up", http.StatusInternalServerError)
	}))
	defer srv.Close()

	inv := &HTTPInvoker{Endpoint: srv.URL}
	err := inv.Run(context.Background(), 7)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.Contains(t, err.Error(), "generation blew up")
}
