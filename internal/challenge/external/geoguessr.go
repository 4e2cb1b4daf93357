package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/gokatarajesh/geo-challenges/internal/challenge"
)

const (
	defaultBaseURL = "https://www.geoguessr.com"
	defaultTimeout = 20 * time.Second
	authCookie     = "_ncfa"
)

var upstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "geochallenge_upstream_request_duration_seconds",
	Help:    "Latency of calls to the game service API.",
	Buckets: prometheus.DefBuckets,
}, []string{"endpoint", "outcome"})

// GeoGuessrClient reads challenge metadata and highscores from the game
// service. It is read-only; the credential comes from a TokenProvider.
type GeoGuessrClient struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenProvider
}

func NewGeoGuessrClient(baseURL string, tokens TokenProvider, httpClient *http.Client) *GeoGuessrClient {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if tokens == nil {
		tokens = ContextToken{}
	}
	return &GeoGuessrClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		tokens:     tokens,
	}
}

// FetchChallenge loads the challenge definition (map, rules, creator).
func (c *GeoGuessrClient) FetchChallenge(ctx context.Context, id string) (*challenge.ChallengeResponse, error) {
	var out challenge.ChallengeResponse
	path := "/api/v3/challenges/" + url.PathEscape(id)
	if err := c.getJSON(ctx, "challenge", path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchHighscores loads up to 100 non-friend results with at least 5 rounds.
func (c *GeoGuessrClient) FetchHighscores(ctx context.Context, id string) (*challenge.HighscoresResponse, error) {
	values := url.Values{}
	values.Set("friends", "false")
	values.Set("limit", "100")
	values.Set("minRounds", "5")

	var out challenge.HighscoresResponse
	path := "/api/v3/results/highscores/" + url.PathEscape(id)
	if err := c.getJSON(ctx, "highscores", path, values, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *GeoGuessrClient) getJSON(ctx context.Context, endpoint, path string, query url.Values, v any) (err error) {
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = string(challenge.KindOf(err))
		}
		upstreamDuration.WithLabelValues(endpoint, outcome).Observe(time.Since(start).Seconds())
	}()

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return challenge.Wrap(challenge.KindFetch, err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	req.AddCookie(&http.Cookie{Name: authCookie, Value: token})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return challenge.Wrap(challenge.KindFetch, err, fmt.Sprintf("GET %s", path))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return challenge.Wrap(challenge.KindFetch, err, fmt.Sprintf("read %s", path))
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return challenge.Errorf(challenge.KindAuthentication, "GET %s: credential rejected", path)
	case resp.StatusCode == http.StatusForbidden:
		return challenge.Errorf(challenge.KindAccessDenied, "GET %s: challenge is private or not played by this account", path)
	case resp.StatusCode == http.StatusNotFound:
		return challenge.Errorf(challenge.KindNotFound, "GET %s: challenge not found", path)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return challenge.Errorf(challenge.KindFetch, "GET %s: status %d: %s", path, resp.StatusCode, snippet(body))
	}

	if err := json.Unmarshal(body, v); err != nil {
		return challenge.Wrap(challenge.KindFetch, err, fmt.Sprintf("decode %s; body: %s", path, snippet(body)))
	}
	return nil
}

func snippet(b []byte) string {
	s := string(b)
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
