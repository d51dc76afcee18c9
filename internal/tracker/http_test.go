package tracker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/screentime/internal/domain"
	"github.com/pscheid92/screentime/internal/platform/correlation"
)

func TestHTTPSender_PostsJSONArray(t *testing.T) {
	var got []domain.SessionInput
	var gotCorrelation string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, IngestPath, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		gotCorrelation = r.Header.Get(correlation.Header)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	sender := NewHTTPSender(srv.URL+"/", srv.Client())
	ctx := correlation.WithID(context.Background(), "abcd1234")
	batch := []domain.SessionInput{{SessionID: "s1", Duration: 10}}

	require.NoError(t, sender.Send(ctx, batch))
	require.Len(t, got, 1)
	assert.Equal(t, "s1", got[0].SessionID)
	assert.Equal(t, "abcd1234", gotCorrelation)
}

func TestHTTPSender_Non201IsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"error":"invalid_payload"}`))
	}))
	defer srv.Close()

	err := NewHTTPSender(srv.URL, srv.Client()).Send(context.Background(), []domain.SessionInput{{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "invalid_payload")
}

func TestHTTPSender_BeaconOutlivesCaller(t *testing.T) {
	received := make(chan int, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var batch []domain.SessionInput
		_ = json.NewDecoder(r.Body).Decode(&batch)
		received <- len(batch)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	NewHTTPSender(srv.URL, srv.Client()).Beacon(ctx, []domain.SessionInput{{}, {}})
	cancel()

	select {
	case n := <-received:
		assert.Equal(t, 2, n)
	case <-time.After(2 * time.Second):
		t.Fatal("beacon was not delivered")
	}
}
