// Package httpdata implements the market/portfolio data provider against a
// generic JSON HTTP endpoint. The wire shapes match the snapshot models
// directly; any vendor adapter terminates behind this URL.
package httpdata

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/oddsflow/oddsflow/pkg/models"
	"github.com/oddsflow/oddsflow/pkg/protocol"
)

const defaultTimeout = 10 * time.Second

type Provider struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func NewProvider(logger *slog.Logger, baseURL string) *Provider {
	return &Provider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: defaultTimeout},
		logger:  logger.With("module", "httpdata_provider"),
	}
}

func (p *Provider) Market(ctx context.Context, marketID string) (models.MarketSnapshot, error) {
	var snapshot models.MarketSnapshot

	err := p.get(ctx, p.baseURL+"/markets/"+url.PathEscape(marketID), &snapshot)
	if err != nil {
		return models.MarketSnapshot{}, err
	}

	return snapshot, nil
}

func (p *Provider) Markets(ctx context.Context, category string) ([]models.MarketSnapshot, error) {
	endpoint := p.baseURL + "/markets"
	if category != "" {
		endpoint += "?category=" + url.QueryEscape(category)
	}

	var snapshots []models.MarketSnapshot

	err := p.get(ctx, endpoint, &snapshots)
	if err != nil {
		return nil, err
	}

	return snapshots, nil
}

func (p *Provider) Portfolio(ctx context.Context) (models.PortfolioSnapshot, error) {
	var snapshot models.PortfolioSnapshot

	err := p.get(ctx, p.baseURL+"/portfolio", &snapshot)
	if err != nil {
		return models.PortfolioSnapshot{}, err
	}

	return snapshot, nil
}

func (p *Provider) get(ctx context.Context, endpoint string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &protocol.ExternalServiceError{Service: "data_provider", Err: err}
	}

	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return &protocol.ExternalServiceError{Service: "data_provider", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return &protocol.ExternalServiceError{
			Service: "data_provider",
			Err:     fmt.Errorf("unexpected status %d from %s", resp.StatusCode, endpoint),
		}
	}

	err = json.NewDecoder(resp.Body).Decode(target)
	if err != nil {
		return &protocol.ExternalServiceError{Service: "data_provider", Err: err}
	}

	return nil
}
