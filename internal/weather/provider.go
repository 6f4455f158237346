package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/vetrodar/cabinbooking/config"
	"github.com/vetrodar/cabinbooking/internal/domain"
)

type Provider interface {
	Fetch(ctx context.Context, spot string) ([]domain.ForecastRow, error)
}

// HTTPProvider talks to the external forecast API. One GET per spot, bearer
// key, JSON body. The sync engine never calls it directly when the cached
// response is still fresh.
type HTTPProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPProvider(cfg config.WeatherConfig) *HTTPProvider {
	return &HTTPProvider{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type forecastPayload struct {
	Hours []struct {
		Time         time.Time `json:"time"`
		WindSpeedMS  float64   `json:"wind_speed_ms"`
		GustMS       float64   `json:"gust_ms"`
		DirectionDeg float64   `json:"direction_deg"`
	} `json:"hours"`
	Source string `json:"source"`
}

func (p *HTTPProvider) Fetch(ctx context.Context, spot string) ([]domain.ForecastRow, error) {
	u := fmt.Sprintf("%s?spot=%s", p.baseURL, url.QueryEscape(spot))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("forecast api returned %d for spot %s", resp.StatusCode, spot)
	}

	var payload forecastPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode forecast response: %w", err)
	}

	now := time.Now()
	rows := make([]domain.ForecastRow, 0, len(payload.Hours))
	for _, h := range payload.Hours {
		rows = append(rows, domain.ForecastRow{
			Spot:         spot,
			Timestamp:    h.Time,
			WindSpeedMS:  h.WindSpeedMS,
			GustMS:       h.GustMS,
			DirectionDeg: h.DirectionDeg,
			Source:       payload.Source,
			FetchedAt:    now,
		})
	}
	return rows, nil
}

var _ Provider = (*HTTPProvider)(nil)
