package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Dosada05/arcade-tournaments/config"
	"github.com/Dosada05/arcade-tournaments/metrics"
)

// Target is one configured webhook endpoint.
type Target struct {
	Platform Platform
	URL      string
}

type PlatformResult struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
}

type Result struct {
	Platforms map[Platform]PlatformResult `json:"platforms"`
	Attempted int                         `json:"attempted"`
	Succeeded int                         `json:"succeeded"`
}

// Relay posts events to every configured platform. Deliveries are best effort.
type Relay struct {
	client  *http.Client
	targets []Target
	timeout time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// TargetsFromConfig lists the platforms with a non-empty URL.
func TargetsFromConfig(cfg config.WebhookConfig) []Target {
	var targets []Target
	for _, t := range []Target{
		{PlatformTeams, cfg.TeamsURL},
		{PlatformDiscord, cfg.DiscordURL},
		{PlatformSlack, cfg.SlackURL},
	} {
		if t.URL != "" {
			targets = append(targets, t)
		}
	}
	return targets
}

func NewRelay(targets []Target, timeout time.Duration, client *http.Client, logger *slog.Logger, m *metrics.Metrics) *Relay {
	if client == nil {
		client = &http.Client{}
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Relay{client: client, targets: targets, timeout: timeout, logger: logger, metrics: m}
}

func (r *Relay) Enabled() bool {
	return len(r.targets) > 0
}

// Dispatch sends ev to all targets concurrently and reports what got through.
// It never fails; delivery errors are logged and counted.
func (r *Relay) Dispatch(ctx context.Context, ev Event) Result {
	res := Result{Platforms: make(map[Platform]PlatformResult, len(r.targets))}
	var mu sync.Mutex
	var g errgroup.Group

	for _, target := range r.targets {
		g.Go(func() error {
			err := r.post(ctx, target, ev)
			ok := err == nil
			if !ok {
				r.logger.WarnContext(ctx, "webhook delivery failed",
					slog.String("platform", string(target.Platform)),
					slog.String("event", string(ev.Type)),
					slog.Any("error", err))
			}
			r.metrics.WebhookDelivered(string(target.Platform), ok)

			mu.Lock()
			pr := res.Platforms[target.Platform]
			pr.Attempted++
			res.Attempted++
			if ok {
				pr.Succeeded++
				res.Succeeded++
			}
			res.Platforms[target.Platform] = pr
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return res
}

func (r *Relay) post(ctx context.Context, target Target, ev Event) error {
	body, err := json.Marshal(format(target.Platform, ev))
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", target.Platform, err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
