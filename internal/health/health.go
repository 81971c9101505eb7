// Package health probes the auxiliary REST status endpoint. The endpoint is
// diagnostic, not load-bearing: every transport or decoding failure degrades
// to an explicit offline status instead of an error.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gabapcia/ledgerwatch/internal/pkg/logger"

	"github.com/hashicorp/go-retryablehttp"
)

// Status is the best-effort liveness picture of the auxiliary services.
type Status struct {
	Online     bool            `json:"online"`
	Subsystems map[string]bool `json:"subsystems,omitempty"`
	Latency    time.Duration   `json:"latency"`
	CheckedAt  time.Time       `json:"checkedAt"`
}

// statusResponse tolerates the endpoint's two historical shapes: a flat
// subsystem map and a wrapped {"subsystems": {...}} object.
type statusResponse struct {
	Subsystems map[string]bool `json:"subsystems"`
}

// Service reports auxiliary service liveness.
type Service interface {
	// Check probes the status endpoint. It never returns an error; an
	// unreachable or malformed endpoint yields an offline Status.
	Check(ctx context.Context) Status
}

// service is the default Service implementation.
type service struct {
	client   *retryablehttp.Client
	endpoint string
}

var _ Service = (*service)(nil)

// New creates a health probe for the given endpoint.
func New(client *retryablehttp.Client, endpoint string) *service {
	return &service{
		client:   client,
		endpoint: endpoint,
	}
}

// Check implements the Service interface.
func (s *service) Check(ctx context.Context) Status {
	started := time.Now().UTC()
	offline := Status{Online: false, CheckedAt: started}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, s.endpoint, nil)
	if err != nil {
		logger.Warn(ctx, "building health request failed", "error", err)
		return offline
	}

	res, err := s.client.Do(req)
	if err != nil {
		logger.Warn(ctx, "health endpoint unreachable", "endpoint", s.endpoint, "error", err)
		return offline
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		logger.Warn(ctx, "health endpoint returned non-OK status", "status", res.StatusCode)
		offline.Latency = time.Since(started)
		return offline
	}

	var body json.RawMessage
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		logger.Warn(ctx, "health response undecodable", "error", err)
		return offline
	}

	subsystems := decodeSubsystems(body)

	online := true
	for _, up := range subsystems {
		if !up {
			online = false
			break
		}
	}

	return Status{
		Online:     online,
		Subsystems: subsystems,
		Latency:    time.Since(started),
		CheckedAt:  started,
	}
}

// decodeSubsystems accepts both the wrapped and the flat response shapes.
func decodeSubsystems(body json.RawMessage) map[string]bool {
	var wrapped statusResponse
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Subsystems != nil {
		return wrapped.Subsystems
	}

	var flat map[string]bool
	if err := json.Unmarshal(body, &flat); err == nil {
		return flat
	}

	return nil
}
