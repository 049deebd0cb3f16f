package token

import (
	"context"
	"time"

	"case-gateway/internal/common/logging"
)

// Scheduler decides, per request, whether the current access token should
// be proactively renewed. The check is advisory: a failed renewal is logged
// and the request proceeds with whatever token is stored.
type Scheduler struct {
	service   *Service
	enabled   bool
	threshold time.Duration
	logger    logging.Logger
}

// NewScheduler creates a renewal scheduler. thresholdMinutes is how close
// to expiry a token may get before a renewal is attempted.
func NewScheduler(service *Service, enabled bool, thresholdMinutes int, logger logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	if thresholdMinutes < 1 {
		thresholdMinutes = 10
	}
	return &Scheduler{
		service:   service,
		enabled:   enabled,
		threshold: time.Duration(thresholdMinutes) * time.Minute,
		logger:    logger,
	}
}

// CheckAndRenew runs the per-request renewal check. It does nothing when
// disabled, when the request carries no authenticated principal, or when
// no access token is stored. A token strictly inside the threshold window
// triggers a renewal; an already expired (or unparseable) token triggers
// a late recovery attempt.
func (s *Scheduler) CheckAndRenew(ctx context.Context, authenticated bool) {
	if !s.enabled || !authenticated {
		return
	}

	accessToken := s.service.store.Get(ctx, KindAccess)
	if accessToken == "" {
		return
	}

	ttl, ok := s.service.TimeUntilExpiry(accessToken)
	if !ok || ttl <= 0 {
		s.logger.Warn("Access token already expired, attempting late renewal")
		if s.service.Renew(ctx) {
			s.logger.Info("Late token renewal succeeded")
		}
		return
	}

	if ttl < s.threshold {
		s.logger.Info("Access token within renewal threshold",
			logging.Field{Key: "expires_in", Value: ttl.String()},
			logging.Field{Key: "threshold", Value: s.threshold.String()})
		if !s.service.Renew(ctx) {
			s.logger.Warn("Proactive token renewal failed, request continues with current token")
		}
	}
}
