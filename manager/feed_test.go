package manager

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

func TestSummaryRowConversions(t *testing.T) {
	r := Summary{
		Symbol:            "eurusd",
		VolumeNet:         -2.456,
		VolumeBuyClients:  50000,
		VolumeSellClients: 0,
		PositionClients:   7,
	}.Row(now)

	assert.Equal(t, "EURUSD", r.Symbol)
	assert.Equal(t, -2.46, r.NetVolume)
	assert.Equal(t, 5.0, r.BuyVolume)
	assert.Equal(t, 0.0, r.SellVolume)
	assert.Equal(t, 7, r.Positions)
	assert.Equal(t, now, r.Timestamp)
}

func TestRowsFollowUniverseOrder(t *testing.T) {
	rows := Rows([]string{"USDJPY", "EURUSD", "GBPUSD"}, []Summary{
		{Symbol: "EURUSD", VolumeNet: 1},
		{Symbol: "XAUUSD", VolumeNet: 3},
		{Symbol: "USDJPY", VolumeNet: -1},
	}, now)

	require.Len(t, rows, 2)
	assert.Equal(t, "USDJPY", rows[0].Symbol)
	assert.Equal(t, "EURUSD", rows[1].Symbol)
}

func TestFileFeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manager.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
summaries:
  - symbol: XAUUSD
    volume_net: 4
    volume_buy_clients: 200000
    volume_sell_clients: 160000
    position_clients: 10
  - symbol: EURUSD
    volume_net: -2
`), 0o644))

	f := &FileFeed{Path: path, Universe: []string{"XAUUSD", "EURUSD"}, Now: func() time.Time { return now }}
	rows, err := f.FetchNetPositions(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 20.0, rows[0].BuyVolume)
	assert.Equal(t, 16.0, rows[0].SellVolume)
	assert.Equal(t, -2.0, rows[1].NetVolume)
}

func TestFileFeedMissing(t *testing.T) {
	f := &FileFeed{Path: filepath.Join(t.TempDir(), "nope.yaml")}
	_, err := f.FetchNetPositions(context.Background())
	assert.Error(t, err)
}

func TestHTTPFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"summaries":[
			{"Symbol":"EURUSD","VolumeNet":1.234,"VolumeBuyClients":30000,"VolumeSellClients":17660,"PositionClients":3},
			{"Symbol":"US30","VolumeNet":5},
			{"VolumeNet":9}
		]}`))
	}))
	defer srv.Close()

	f := NewHTTPFeed(srv.URL, "secret", []string{"EURUSD", "GBPUSD"})
	f.now = func() time.Time { return now }

	rows, err := f.FetchNetPositions(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "EURUSD", rows[0].Symbol)
	assert.Equal(t, 1.23, rows[0].NetVolume)
	assert.Equal(t, 3.0, rows[0].BuyVolume)
	assert.Equal(t, 1.77, rows[0].SellVolume)
	assert.Equal(t, 3, rows[0].Positions)
}

func TestHTTPFeedErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			_, _ = w.Write([]byte(`{not json`))
			return
		}
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewHTTPFeed(srv.URL+"/down", "", nil).FetchNetPositions(context.Background())
	assert.ErrorContains(t, err, "status=503")

	_, err = NewHTTPFeed(srv.URL+"/bad", "", nil).FetchNetPositions(context.Background())
	assert.ErrorContains(t, err, "invalid json")
}

func TestHTTPFeedEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"summaries":[]}`))
	}))
	defer srv.Close()

	rows, err := NewHTTPFeed(srv.URL, "", []string{"EURUSD"}).FetchNetPositions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestHTTPFeedPayloadShapes(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    int
		wantErr string
	}{
		{"wrapped", `{"summaries":[{"Symbol":"EURUSD","VolumeNet":-2.0}]}`, 1, ""},
		{"bare array", `[{"Symbol":"EURUSD","VolumeNet":-2.0}]`, 1, ""},
		{"empty array", `[]`, 0, ""},
		{"unknown key", `{"positions":[{"Symbol":"EURUSD","VolumeNet":-2.0}]}`, 0, "expected a summaries array"},
		{"summaries not a list", `{"summaries":{"EURUSD":-2.0}}`, 0, "expected a summaries array"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			rows, err := NewHTTPFeed(srv.URL, "", []string{"EURUSD"}).FetchNetPositions(context.Background())
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Len(t, rows, tt.want)
			if tt.want > 0 {
				assert.Equal(t, -2.0, rows[0].NetVolume)
			}
		})
	}
}
