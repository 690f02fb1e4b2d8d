package manager

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/rustyeddy/fxmirror/market"
)

// HTTPFeed polls a manager bridge that publishes symbol summaries, either
// wrapped as {"summaries": [...]} or as a bare array of
// {"Symbol": ..., "VolumeNet": ..., ...} objects.
type HTTPFeed struct {
	url        string
	token      string
	universe   []string
	httpClient *http.Client
	now        func() time.Time
}

func NewHTTPFeed(url, token string, universe []string) *HTTPFeed {
	return &HTTPFeed{
		url:        url,
		token:      token,
		universe:   universe,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		now:        time.Now,
	}
}

func (f *HTTPFeed) FetchNetPositions(ctx context.Context) ([]market.ExposureRow, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("manager request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("manager bridge error: status=%d body=%s", resp.StatusCode, string(body))
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("manager bridge: invalid json")
	}

	list, err := summaryList(body)
	if err != nil {
		return nil, err
	}

	var summaries []Summary
	list.ForEach(func(_, s gjson.Result) bool {
		sym := s.Get("Symbol").String()
		if sym == "" {
			return true
		}
		summaries = append(summaries, Summary{
			Symbol:            sym,
			VolumeNet:         s.Get("VolumeNet").Float(),
			VolumeBuyClients:  s.Get("VolumeBuyClients").Float(),
			VolumeSellClients: s.Get("VolumeSellClients").Float(),
			PositionClients:   int(s.Get("PositionClients").Int()),
		})
		return true
	})

	return Rows(f.universe, summaries, f.now()), nil
}

// summaryList finds the summary array in a bridge payload. Any other shape
// is an error so a format change never reads as an empty book.
func summaryList(body []byte) (gjson.Result, error) {
	doc := gjson.ParseBytes(body)
	if doc.IsArray() {
		return doc, nil
	}
	if list := doc.Get("summaries"); list.IsArray() {
		return list, nil
	}
	return gjson.Result{}, fmt.Errorf("manager bridge: expected a summaries array, got %s", truncate(body, 120))
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
