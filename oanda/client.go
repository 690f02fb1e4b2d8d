package oanda

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/rustyeddy/fxmirror/market"
)

const (
	// PracticeURL is the URL for OANDA's practice/demo environment
	PracticeURL = "https://api-fxpractice.oanda.com"
	// LiveURL is the URL for OANDA's live trading environment
	LiveURL = "https://api-fxtrade.oanda.com"
)

// Granularity represents the time frame for candles
type Granularity string

const (
	S5  Granularity = "S5"
	M1  Granularity = "M1"
	M5  Granularity = "M5"
	M15 Granularity = "M15"
	H1  Granularity = "H1"
	H4  Granularity = "H4"
	D   Granularity = "D"
)

// PriceComponent represents the price component for candles
type PriceComponent string

const (
	MidPrice PriceComponent = "M"
	BidPrice PriceComponent = "B"
	AskPrice PriceComponent = "A"
)

// Client talks to the OANDA v3 REST API for one account. It implements
// broker.Terminal, translating lots to units with the contract size.
type Client struct {
	baseURL    string
	token      string
	accountID  string
	httpClient *http.Client
	log        *zap.Logger

	// Granularity of the candles behind Closes.
	Granularity Granularity
	// ContractSize overrides market.DefaultContractSize per compact symbol.
	ContractSize map[string]float64

	mu          sync.Mutex
	instruments map[string]instrument
}

// NewClient creates a new OANDA API client
func NewClient(token, accountID string, practice bool, log *zap.Logger) *Client {
	baseURL := LiveURL
	if practice {
		baseURL = PracticeURL
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Client{
		baseURL:   baseURL,
		token:     token,
		accountID: accountID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log:         log,
		Granularity: M5,
		instruments: make(map[string]instrument),
	}
}

// APIError is a non-2xx response from the API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.Status, e.Message)
}

// do sends one request and decodes a 2xx JSON body into out.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := gjson.GetBytes(raw, "errorMessage").String()
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) accountPath(suffix string) string {
	return "/v3/accounts/" + url.PathEscape(c.accountID) + suffix
}

// Instrument converts a terminal symbol to OANDA's name: a venue suffix is
// dropped and six-letter codes are split, so "EURUSD.ecn" becomes "EUR_USD".
func Instrument(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if i := strings.IndexByte(s, '.'); i > 0 {
		s = s[:i]
	}
	if strings.Contains(s, "_") || len(s) != 6 {
		return s
	}
	return s[:3] + "_" + s[3:]
}

// Compact is the inverse of Instrument without the suffix.
func Compact(instrument string) string {
	return strings.ReplaceAll(instrument, "_", "")
}

func (c *Client) contractSize(instrument string) float64 {
	if cs, ok := c.ContractSize[Compact(instrument)]; ok && cs > 0 {
		return cs
	}
	return market.DefaultContractSize
}

// CandlesRequest represents parameters for fetching historical candles
type CandlesRequest struct {
	Instrument  string         // e.g. "EUR_USD"
	Price       PriceComponent // default MidPrice
	Granularity Granularity    // default S5
	Count       int            // max 5000, mutually exclusive with From/To
	From        *time.Time
	To          *time.Time
}

type Candle struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

type candleData struct {
	O string `json:"o"`
	H string `json:"h"`
	L string `json:"l"`
	C string `json:"c"`
}

type apiCandle struct {
	Complete bool       `json:"complete"`
	Volume   int        `json:"volume"`
	Time     string     `json:"time"`
	Mid      candleData `json:"mid,omitempty"`
	Bid      candleData `json:"bid,omitempty"`
	Ask      candleData `json:"ask,omitempty"`
}

type candlesResponse struct {
	Instrument  string      `json:"instrument"`
	Granularity string      `json:"granularity"`
	Candles     []apiCandle `json:"candles"`
}

// GetCandles fetches complete historical candles, oldest first.
func (c *Client) GetCandles(ctx context.Context, req CandlesRequest) ([]Candle, error) {
	if req.Instrument == "" {
		return nil, fmt.Errorf("instrument is required")
	}

	params := url.Values{}
	if req.Price == "" {
		req.Price = MidPrice
	}
	params.Set("price", string(req.Price))
	if req.Granularity == "" {
		req.Granularity = S5
	}
	params.Set("granularity", string(req.Granularity))

	if req.Count > 0 {
		if req.Count > 5000 {
			return nil, fmt.Errorf("count cannot exceed 5000")
		}
		params.Set("count", strconv.Itoa(req.Count))
	} else {
		if req.From != nil {
			params.Set("from", req.From.Format(time.RFC3339))
		}
		if req.To != nil {
			params.Set("to", req.To.Format(time.RFC3339))
		}
	}

	var resp candlesResponse
	path := "/v3/instruments/" + url.PathEscape(req.Instrument) + "/candles"
	if err := c.do(ctx, http.MethodGet, path, params, nil, &resp); err != nil {
		return nil, fmt.Errorf("candles %s: %w", req.Instrument, err)
	}

	candles := make([]Candle, 0, len(resp.Candles))
	for _, ac := range resp.Candles {
		if !ac.Complete {
			continue
		}
		t, err := time.Parse(time.RFC3339, ac.Time)
		if err != nil {
			return nil, fmt.Errorf("parse time %s: %w", ac.Time, err)
		}

		pd := ac.Mid
		switch req.Price {
		case BidPrice:
			pd = ac.Bid
		case AskPrice:
			pd = ac.Ask
		}

		var ohlc [4]float64
		for i, s := range []string{pd.O, pd.H, pd.L, pd.C} {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("parse price %q: %w", s, err)
			}
			ohlc[i] = v
		}

		candles = append(candles, Candle{
			Time:   t,
			Open:   ohlc[0],
			High:   ohlc[1],
			Low:    ohlc[2],
			Close:  ohlc[3],
			Volume: float64(ac.Volume),
		})
	}
	return candles, nil
}
