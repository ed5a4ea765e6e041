// Package ingest pulls invoice documents from the external extraction
// service; text extraction itself happens outside this system.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ATR1285/Procure/pkg/config"
	"github.com/ATR1285/Procure/pkg/model"
)

// HTTPSource polls the extraction service for newly extracted invoices.
// The service returns a JSON array of invoice payloads in the same wire
// format all producers use.
type HTTPSource struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

func NewHTTPSource(cfg *config.IngestConfig, logger *zap.Logger) *HTTPSource {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &HTTPSource{
		url:    cfg.SourceURL,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

func (s *HTTPSource) FetchLatest(ctx context.Context) ([]model.InvoicePayload, error) {
	if s.url == "" {
		return nil, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("ingest source: build request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ingest source: fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ingest source: unexpected status %d", resp.StatusCode)
	}

	var payloads []model.InvoicePayload
	if err := json.NewDecoder(resp.Body).Decode(&payloads); err != nil {
		return nil, fmt.Errorf("ingest source: decode: %w", err)
	}

	valid := payloads[:0]
	for i := range payloads {
		if payloads[i].InvoiceNumber == "" || payloads[i].VendorName == "" {
			s.logger.Warn("skipping ingested document without invoice number or vendor")
			continue
		}
		if payloads[i].Source == "" {
			payloads[i].Source = "email"
		}
		valid = append(valid, payloads[i])
	}
	return valid, nil
}
