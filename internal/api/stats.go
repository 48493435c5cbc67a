package api

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"combat-meter/internal/config"

	"github.com/goccy/go-json"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

var ErrStatsDisabled = errors.New("stats upload is not configured")

// StatsClient submits cleared raids to the external stats service.
type StatsClient struct {
	url         string
	client      *fasthttp.Client
	logger      zerolog.Logger
	rateLimitMu sync.RWMutex
	rateLimit   RateLimitInfo
}

type RateLimitInfo struct {
	Limit     int `json:"limit"`
	Remaining int `json:"remaining"`

	// seconds until reset
	Reset int `json:"reset"`

	UpdatedAt time.Time `json:"updated_at"`
}

type RaidPlayer struct {
	Name      string  `json:"name"`
	Class     string  `json:"class"`
	GearScore float32 `json:"gear_score"`
	DPS       int64   `json:"dps"`
	Damage    int64   `json:"damage"`
	Deaths    int64   `json:"deaths"`
}

type RaidInfo struct {
	UploadID    string       `json:"upload_id"`
	EncounterID int64        `json:"encounter_id"`
	Boss        string       `json:"boss"`
	Raid        string       `json:"raid"`
	FightStart  int64        `json:"fight_start"`
	Duration    int64        `json:"duration"`
	Cleared     bool         `json:"cleared"`
	AppVersion  string       `json:"app_version"`
	Players     []RaidPlayer `json:"players"`
}

func NewStatsClient(cfg *config.Config, logger zerolog.Logger) *StatsClient {
	return &StatsClient{
		url: cfg.StatsURL,
		client: &fasthttp.Client{
			MaxConnsPerHost:     4,
			ReadTimeout:         10 * time.Second,
			WriteTimeout:        10 * time.Second,
			MaxIdleConnDuration: 1 * time.Minute,
		},
		logger: logger.With().Str("component", "stats_client").Logger(),
	}
}

func (c *StatsClient) Enabled() bool {
	return c.url != ""
}

func (c *StatsClient) GetRateLimitInfo() RateLimitInfo {
	c.rateLimitMu.RLock()
	defer c.rateLimitMu.RUnlock()
	return c.rateLimit
}

func (c *StatsClient) updateRateLimit(resp *fasthttp.Response) {
	c.rateLimitMu.Lock()
	defer c.rateLimitMu.Unlock()

	if limit := string(resp.Header.Peek("X-Ratelimit-Limit")); limit != "" {
		if val, err := strconv.Atoi(limit); err == nil {
			c.rateLimit.Limit = val
		}
	}
	if remaining := string(resp.Header.Peek("X-Ratelimit-Remaining")); remaining != "" {
		if val, err := strconv.Atoi(remaining); err == nil {
			c.rateLimit.Remaining = val
		}
	}
	if reset := string(resp.Header.Peek("X-Ratelimit-Reset")); reset != "" {
		if val, err := strconv.Atoi(reset); err == nil {
			c.rateLimit.Reset = val
		}
	}
	c.rateLimit.UpdatedAt = time.Now()
}

// SubmitRaidInfo posts info and returns the response status code. The
// upload id is generated when info carries none; a non-2xx status is an
// error but the status code is still returned.
func (c *StatsClient) SubmitRaidInfo(ctx context.Context, info *RaidInfo) (int, error) {
	if !c.Enabled() {
		return 0, ErrStatsDisabled
	}
	if info.UploadID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return 0, fmt.Errorf("failed to generate upload id: %w", err)
		}
		info.UploadID = id
	}

	body, err := json.Marshal(info)
	if err != nil {
		return 0, fmt.Errorf("failed to encode raid info: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("X-Upload-ID", info.UploadID)
	req.SetBody(body)

	deadline, ok := ctx.Deadline()
	if ok {
		if err := c.client.DoDeadline(req, resp, deadline); err != nil {
			return 0, err
		}
	} else {
		if err := c.client.Do(req, resp); err != nil {
			return 0, err
		}
	}

	c.updateRateLimit(resp)

	status := resp.StatusCode()
	c.logger.Debug().
		Int64("encounter_id", info.EncounterID).
		Str("upload_id", info.UploadID).
		Int("status", status).
		Msg("raid info submitted")

	if status < fasthttp.StatusOK || status >= fasthttp.StatusMultipleChoices {
		return status, fmt.Errorf("stats API error: %d", status)
	}
	return status, nil
}
