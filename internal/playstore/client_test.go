package playstore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client := NewClient(Config{BaseURL: srv.URL, RatePerMinute: 600, Timeout: 2 * time.Second}, nil)
	return client, &calls
}

func TestFetchCatalogData_Success(t *testing.T) {
	page := detailsPage(t, listing{
		Title:         "Notes",
		Description:   "Take notes.<br>Fast &amp; simple.",
		Score:         4.36,
		Reviews:       2_500_000,
		Icon:          "https://play-lh.example/icon.png",
		Screenshots:   []string{"https://play-lh.example/s1.png", "https://play-lh.example/s2.png"},
		Developer:     "Example Labs",
		UpdatedUnix:   time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC).Unix(),
		Version:       "2.4.1",
		RecentChanges: "Bug fixes",
	})

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/store/apps/details", r.URL.Path)
		assert.Equal(t, "com.example.notes", r.URL.Query().Get("id"))
		assert.Equal(t, "en", r.URL.Query().Get("hl"))
		w.Write([]byte(page))
	})

	data, err := client.FetchCatalogData(context.Background(), "com.example.notes")

	require.NoError(t, err)
	assert.Equal(t, "Notes", data.Title)
	assert.Equal(t, "Take notes.\nFast & simple.", data.Description)
	assert.Equal(t, "2.4.1", data.Version)
	assert.Equal(t, "Example Labs", data.Developer)
	assert.InDelta(t, 4.36, data.RatingScore, 0.0001)
	assert.Equal(t, int64(2_500_000), data.ReviewCount)
	assert.Equal(t, []string{"https://play-lh.example/s1.png", "https://play-lh.example/s2.png"}, data.Screenshots)
	assert.Equal(t, "March 9, 2024", data.UpdatedLabel)
	assert.Equal(t, "Bug fixes", data.RecentChanges)
	assert.Contains(t, data.CanonicalURL, "id=com.example.notes")
}

func TestFetchCatalogData_MissingOptionalFields(t *testing.T) {
	page := detailsPage(t, listing{Title: "Bare"})
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	})

	data, err := client.FetchCatalogData(context.Background(), "com.example.bare")

	require.NoError(t, err)
	assert.Equal(t, "Bare", data.Title)
	assert.Empty(t, data.Screenshots)
	assert.Zero(t, data.RatingScore)
	assert.Zero(t, data.ReviewCount)
	assert.Empty(t, data.Version)
}

func TestFetchCatalogData_InvalidIdentifier(t *testing.T) {
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	for _, id := range []string{"", "notes", "com..example", "1com.example", "com.example/../x"} {
		_, err := client.FetchCatalogData(context.Background(), id)
		assert.ErrorIs(t, err, ErrInvalidIdentifier, id)
	}
	assert.Equal(t, int32(0), atomic.LoadInt32(calls))
}

func TestFetchCatalogData_FailureModes(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "not found", status: http.StatusNotFound, wantErr: ErrNotFound},
		{name: "rate limited", status: http.StatusTooManyRequests, wantErr: ErrUnavailable},
		{name: "server error", status: http.StatusBadGateway, wantErr: ErrUnavailable},
		{name: "no data block", status: http.StatusOK, body: "<html>captcha</html>", wantErr: ErrMalformed},
		{name: "broken json", status: http.StatusOK, body: "AF_initDataCallback({key: 'ds:5', hash: '7', data:[[1,, sideChannel: {}});", wantErr: ErrMalformed},
		{name: "no title", status: http.StatusOK, body: "AF_initDataCallback({key: 'ds:5', hash: '7', data:[null,[]], sideChannel: {}});", wantErr: ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := client.FetchCatalogData(context.Background(), "com.example.notes")

			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestFetchCatalogData_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()
	client := NewClient(Config{BaseURL: srv.URL, Timeout: time.Second}, nil)

	_, err := client.FetchCatalogData(context.Background(), "com.example.notes")

	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestFetchCatalogData_CancelledContext(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.FetchCatalogData(ctx, "com.example.notes")

	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestFormatDownloads(t *testing.T) {
	tests := []struct {
		count int64
		want  string
	}{
		{count: 2_500_000, want: "2M+"},
		{count: 1_000_000, want: "1M+"},
		{count: 999_999, want: "999K+"},
		{count: 4_300, want: "4K+"},
		{count: 1_000, want: "1K+"},
		{count: 42, want: "42+"},
		{count: 0, want: "0+"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDownloads(tt.count))
	}
}
