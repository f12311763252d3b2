// Package weather looks up current conditions from an OpenWeather-compatible API.
package weather

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"docchat/internal/config"
	"docchat/internal/metrics"
)

// Fallback is returned for every failed lookup.
const Fallback = "❌ Unable to fetch weather right now."

const maxBodySize = 64 * 1024

// Client fetches and formats weather reports. Fetch never returns an error.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(cfg config.WeatherConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// Fetch returns the formatted report for city, or Fallback.
func (c *Client) Fetch(ctx context.Context, city string) string {
	start := time.Now()
	report, err := c.fetch(ctx, strings.TrimSpace(city))
	if err != nil {
		metrics.ObserveBackend("weather", "error", time.Since(start))
		c.logger.Warn("weather lookup failed", zap.String("city", city), zap.Error(err))
		return Fallback
	}
	metrics.ObserveBackend("weather", "ok", time.Since(start))
	return report
}

func (c *Client) fetch(ctx context.Context, city string) (string, error) {
	parsed, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}
	q := parsed.Query()
	q.Set("q", city)
	q.Set("appid", c.apiKey)
	q.Set("units", "metric")
	parsed.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("weather api: %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", err
	}
	return format(body)
}

var reportPaths = []string{
	"name",
	"main.temp",
	"main.feels_like",
	"main.humidity",
	"wind.speed",
	"weather.0.description",
}

func format(body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", errors.New("weather api: invalid json")
	}
	fields := gjson.GetManyBytes(body, reportPaths...)
	for i, path := range reportPaths {
		if !fields[i].Exists() {
			return "", fmt.Errorf("weather api: missing %s", path)
		}
		// everything between name and description is numeric
		if i > 0 && i < len(reportPaths)-1 && fields[i].Type != gjson.Number {
			return "", fmt.Errorf("weather api: %s is not a number", path)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🌤️ Weather in %s:\n", fields[0].String())
	fmt.Fprintf(&b, "🌡️ Temperature: %s°C (Feels like: %s°C)\n", number(fields[1]), number(fields[2]))
	fmt.Fprintf(&b, "💧 Humidity: %s%%\n", number(fields[3]))
	fmt.Fprintf(&b, "🌬️ Wind Speed: %s m/s\n", number(fields[4]))
	fmt.Fprintf(&b, "☁️ Sky: %s", capitalize(fields[5].String()))
	return b.String(), nil
}

func number(r gjson.Result) string {
	return strconv.FormatFloat(r.Num, 'f', -1, 64)
}

// capitalize upper-cases the first letter and lower-cases the rest.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(strings.ToLower(s))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
