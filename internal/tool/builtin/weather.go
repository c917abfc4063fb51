// Package builtin provides the built-in chatd tools: weather lookup,
// knowledge base search, grade calculation, and live web lookup.
package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/flemzord/chatd/internal/tool"
)

const (
	defaultGeocodingURL = "https://geocoding-api.open-meteo.com/v1/search"
	defaultForecastURL  = "https://api.open-meteo.com/v1/forecast"

	httpTimeout = 15 * time.Second
)

// Weather looks up current conditions for a city via Open-Meteo.
// No API key required.
type Weather struct {
	client       *http.Client
	geocodingURL string
	forecastURL  string
}

// WeatherOption configures a Weather tool.
type WeatherOption func(*Weather)

// WithWeatherClient overrides the HTTP client.
func WithWeatherClient(c *http.Client) WeatherOption {
	return func(w *Weather) { w.client = c }
}

// WithWeatherURLs overrides the geocoding and forecast endpoints.
func WithWeatherURLs(geocoding, forecast string) WeatherOption {
	return func(w *Weather) {
		w.geocodingURL = geocoding
		w.forecastURL = forecast
	}
}

// NewWeather creates the get_weather tool.
func NewWeather(opts ...WeatherOption) *Weather {
	w := &Weather{
		client:       &http.Client{Timeout: httpTimeout},
		geocodingURL: defaultGeocodingURL,
		forecastURL:  defaultForecastURL,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Weather) Name() string { return "get_weather" }

func (w *Weather) Description() string {
	return "Get current weather for a city using Open-Meteo (free)."
}

func (w *Weather) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {"city": {"type": "string"}},
		"required": ["city"]
	}`)
}

type weatherArgs struct {
	City string `json:"city"`
}

type weatherResult struct {
	City         string   `json:"city"`
	TemperatureC *float64 `json:"temperature_c"`
	WindSpeedKPH *float64 `json:"wind_speed_kph"`
	Source       string   `json:"source"`
}

// Execute geocodes the city, then fetches current temperature and wind speed.
func (w *Weather) Execute(ctx context.Context, args json.RawMessage) tool.Output {
	var in weatherArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return tool.Errorf(tool.ErrorKindInvalidArguments, "invalid arguments: "+err.Error())
	}
	city := strings.TrimSpace(in.City)
	if city == "" {
		return tool.Errorf(tool.ErrorKindInvalidArguments, "city is required")
	}

	lat, lon, err := w.geocode(ctx, city)
	if err != nil {
		return tool.Errorf(tool.ErrorKindUnavailable, err.Error())
	}
	if lat == nil {
		return tool.Errorf(tool.ErrorKindNotFound, fmt.Sprintf("City not found: %s", city))
	}

	cur, err := w.forecast(ctx, *lat, *lon)
	if err != nil {
		return tool.Errorf(tool.ErrorKindUnavailable, err.Error())
	}

	out, _ := json.Marshal(weatherResult{
		City:         city,
		TemperatureC: cur.Temperature2M,
		WindSpeedKPH: cur.WindSpeed10M,
		Source:       "open-meteo.com",
	})
	return tool.Output{Content: string(out)}
}

func (w *Weather) geocode(ctx context.Context, city string) (lat, lon *float64, err error) {
	q := url.Values{"name": {city}, "count": {"1"}}
	var resp struct {
		Results []struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"results"`
	}
	if err := w.getJSON(ctx, w.geocodingURL+"?"+q.Encode(), &resp); err != nil {
		return nil, nil, fmt.Errorf("geocoding failed: %w", err)
	}
	if len(resp.Results) == 0 {
		return nil, nil, nil
	}
	return &resp.Results[0].Latitude, &resp.Results[0].Longitude, nil
}

type currentConditions struct {
	Temperature2M *float64 `json:"temperature_2m"`
	WindSpeed10M  *float64 `json:"wind_speed_10m"`
}

func (w *Weather) forecast(ctx context.Context, lat, lon float64) (currentConditions, error) {
	q := url.Values{
		"latitude":  {fmt.Sprintf("%g", lat)},
		"longitude": {fmt.Sprintf("%g", lon)},
		"current":   {"temperature_2m,wind_speed_10m"},
	}
	var resp struct {
		Current currentConditions `json:"current"`
	}
	if err := w.getJSON(ctx, w.forecastURL+"?"+q.Encode(), &resp); err != nil {
		return currentConditions{}, fmt.Errorf("forecast failed: %w", err)
	}
	return resp.Current, nil
}

func (w *Weather) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, req.URL.Host)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
