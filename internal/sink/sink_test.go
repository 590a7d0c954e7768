package sink

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tt "github.com/gnolang/moveaudit/internal/types"
)

func testReport() *tt.Report {
	return &tt.Report{
		ContractName: "vault",
		Issues:       []tt.Issue{},
		Summary:      "clean",
		Score:        100,
		Timestamp:    time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestSave(t *testing.T) {
	t.Parallel()

	var gotID, gotAuth string
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/reports", r.URL.Path)
		gotID = r.Header.Get(RequestIDHeader)
		gotAuth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"report-7"}`))
	}))
	t.Cleanup(srv.Close)

	res, err := New(srv.URL, "secret", nil).Save(context.Background(), testReport())
	require.NoError(t, err)

	assert.Equal(t, "report-7", res.ID)
	assert.Equal(t, gotID, res.RequestID)
	_, err = uuid.Parse(gotID)
	assert.NoError(t, err)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "vault", got["contractName"])
	assert.Equal(t, float64(100), got["score"])
	assert.Equal(t, "2024-06-01T00:00:00Z", got["timestamp"])
}

func TestSave_RejectedByStore(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	t.Cleanup(srv.Close)

	_, err := New(srv.URL, "", nil).Save(context.Background(), testReport())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestSave_Cancelled(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(srv.URL, "", nil).Save(ctx, testReport())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSave_UniqueRequestIDs(t *testing.T) {
	t.Parallel()

	ids := make(chan string, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ids <- r.Header.Get(RequestIDHeader)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, "", nil)
	for range 2 {
		_, err := c.Save(context.Background(), testReport())
		require.NoError(t, err)
	}
	assert.NotEqual(t, <-ids, <-ids)
}
