package egress

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Config holds proxy egress configuration. DefaultProxy is the fixed
// fallback path used whenever the dynamic lookup cannot produce one.
type Config struct {
	APIURL       string
	Token        string
	DefaultProxy string
	Timeout      time.Duration
}

// Selector picks the network egress path for a fetch. Selection never
// fails: every error path deterministically falls back to the default
// proxy, because the fetch has no path at all otherwise.
type Selector struct {
	config *Config
	client *http.Client
	logger *slog.Logger
}

func NewSelector(config *Config, logger *slog.Logger) *Selector {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Selector{
		config: config,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

type proxyResponse struct {
	Proxies []struct {
		Username string `json:"username"`
		Password string `json:"password"`
		HostIP   string `json:"hostIp"`
		PortHTTP int    `json:"portHttp"`
	} `json:"proxies"`
}

// Select returns the egress proxy URL for one fetch.
func (s *Selector) Select(ctx context.Context) string {
	if s.config.APIURL == "" {
		return s.config.DefaultProxy
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.APIURL, nil)
	if err != nil {
		s.logger.Warn("Proxy lookup request failed, using default egress",
			slog.String("error", err.Error()),
		)
		return s.config.DefaultProxy
	}
	req.Header.Set("Authorization", "Bearer "+s.config.Token)

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("Proxy lookup failed, using default egress",
			slog.String("error", err.Error()),
		)
		return s.config.DefaultProxy
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.logger.Warn("Proxy lookup returned non-OK status, using default egress",
			slog.Int("status", resp.StatusCode),
		)
		return s.config.DefaultProxy
	}

	var parsed proxyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		s.logger.Warn("Proxy lookup returned malformed body, using default egress",
			slog.String("error", err.Error()),
		)
		return s.config.DefaultProxy
	}

	if len(parsed.Proxies) == 0 {
		s.logger.Debug("Proxy lookup returned no proxies, using default egress")
		return s.config.DefaultProxy
	}

	p := parsed.Proxies[0]
	return fmt.Sprintf("http://%s:%s@%s:%d", p.Username, p.Password, p.HostIP, p.PortHTTP)
}
