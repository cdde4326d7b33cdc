package filing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/poiesic/filingrag/core"
)

const (
	DefaultEDGARBaseURL = "https://www.sec.gov"
	DefaultEDGARDataURL = "https://data.sec.gov"
	DefaultUserAgent    = "MyCompanyName email@example.com"

	defaultEDGARTimeout = 60 * time.Second
	// DefaultMaxFilingSize bounds every EDGAR response body.
	DefaultMaxFilingSize = 256 << 20
)

// EDGARFetcher downloads the latest filing of a form for a ticker from SEC EDGAR.
// Tickers resolve to CIKs through company_tickers.json, which is fetched once
// per fetcher.
type EDGARFetcher struct {
	client    *http.Client
	baseURL   string
	dataURL   string
	userAgent string
	maxSize   int64
	logger    *slog.Logger

	mu   sync.Mutex
	ciks map[string]int64
}

var _ Fetcher = (*EDGARFetcher)(nil)

// EDGAROption configures an EDGARFetcher.
type EDGAROption func(*EDGARFetcher)

// WithHTTPClient sets the HTTP client. Default has a 60 second timeout.
func WithHTTPClient(client *http.Client) EDGAROption {
	return func(f *EDGARFetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// WithEndpoints overrides the www.sec.gov and data.sec.gov base URLs.
func WithEndpoints(baseURL, dataURL string) EDGAROption {
	return func(f *EDGARFetcher) {
		f.baseURL = strings.TrimRight(baseURL, "/")
		f.dataURL = strings.TrimRight(dataURL, "/")
	}
}

// WithUserAgent sets the identification EDGAR requires of automated clients.
func WithUserAgent(company, email string) EDGAROption {
	return func(f *EDGARFetcher) {
		f.userAgent = strings.TrimSpace(company + " " + email)
	}
}

// WithMaxSize sets the largest response body accepted, in bytes.
// Default is 256 MiB.
func WithMaxSize(size int64) EDGAROption {
	return func(f *EDGARFetcher) {
		if size > 0 {
			f.maxSize = size
		}
	}
}

// WithEDGARLogger sets a custom logger.
func WithEDGARLogger(logger *slog.Logger) EDGAROption {
	return func(f *EDGARFetcher) {
		if logger != nil {
			f.logger = logger.With("component", "edgar")
		}
	}
}

// NewEDGARFetcher creates a fetcher against the public EDGAR endpoints.
func NewEDGARFetcher(opts ...EDGAROption) *EDGARFetcher {
	f := &EDGARFetcher{
		client:    &http.Client{Timeout: defaultEDGARTimeout},
		baseURL:   DefaultEDGARBaseURL,
		dataURL:   DefaultEDGARDataURL,
		userAgent: DefaultUserAgent,
		maxSize:   DefaultMaxFilingSize,
		logger:    slog.Default().With("component", "edgar"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

type tickerEntry struct {
	CIK    int64  `json:"cik_str"`
	Ticker string `json:"ticker"`
	Title  string `json:"title"`
}

type submissions struct {
	Filings struct {
		Recent struct {
			AccessionNumber []string `json:"accessionNumber"`
			Form            []string `json:"form"`
			PrimaryDocument []string `json:"primaryDocument"`
			FilingDate      []string `json:"filingDate"`
		} `json:"recent"`
	} `json:"filings"`
}

// Fetch downloads the primary document of the most recent filing of formType.
func (f *EDGARFetcher) Fetch(ctx context.Context, symbol, formType string) ([]byte, error) {
	cik, err := f.lookupCIK(ctx, symbol)
	if err != nil {
		return nil, err
	}

	var subs submissions
	if err := f.getJSON(ctx, fmt.Sprintf("%s/submissions/CIK%010d.json", f.dataURL, cik), &subs); err != nil {
		return nil, err
	}

	recent := subs.Filings.Recent
	for i, form := range recent.Form {
		if form != formType || i >= len(recent.AccessionNumber) || i >= len(recent.PrimaryDocument) {
			continue
		}
		accession := strings.ReplaceAll(recent.AccessionNumber[i], "-", "")
		url := fmt.Sprintf("%s/Archives/edgar/data/%d/%s/%s", f.baseURL, cik, accession, recent.PrimaryDocument[i])

		date := ""
		if i < len(recent.FilingDate) {
			date = recent.FilingDate[i]
		}
		f.logger.Info("Downloading filing", "symbol", symbol, "form", formType, "filed", date, "url", url)
		return f.get(ctx, url)
	}
	return nil, fmt.Errorf("%s %s: %w", symbol, formType, core.ErrFilingNotFound)
}

func (f *EDGARFetcher) lookupCIK(ctx context.Context, symbol string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ciks == nil {
		var entries map[string]tickerEntry
		if err := f.getJSON(ctx, f.baseURL+"/files/company_tickers.json", &entries); err != nil {
			return 0, err
		}
		ciks := make(map[string]int64, len(entries))
		for _, entry := range entries {
			ciks[strings.ToUpper(entry.Ticker)] = entry.CIK
		}
		f.ciks = ciks
	}

	cik, ok := f.ciks[strings.ToUpper(symbol)]
	if !ok {
		return 0, fmt.Errorf("ticker %s: %w", symbol, core.ErrFilingNotFound)
	}
	return cik, nil
}

func (f *EDGARFetcher) getJSON(ctx context.Context, url string, v any) error {
	body, err := f.get(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

func (f *EDGARFetcher) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept-Encoding", "identity")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("GET %s: %w", url, core.ErrFilingNotFound)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("GET %s: unexpected status %s", url, strconv.Quote(resp.Status))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > f.maxSize {
		return nil, fmt.Errorf("GET %s: %w: over %d bytes", url, ErrFilingTooLarge, f.maxSize)
	}
	return body, nil
}
