package featureflags

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ServiceConfig holds configuration for the feature flag service.
type ServiceConfig struct {
	Repository   Repository
	Logger       zerolog.Logger
	CacheTTL     time.Duration // How long to cache flags in memory
	DefaultFlags map[string]*Flag
}

// Service provides feature flag evaluation with caching and fallback to defaults.
// Repository errors never fail a caller; the default value is used instead.
type Service struct {
	repo         Repository
	logger       zerolog.Logger
	cacheTTL     time.Duration
	defaultFlags map[string]*Flag

	mu    sync.RWMutex
	cache map[string]cachedFlag
}

type cachedFlag struct {
	flag      *Flag
	expiresAt time.Time
}

// NewService creates a new feature flag service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = time.Minute
	}

	defaultFlags := cfg.DefaultFlags
	if defaultFlags == nil {
		defaultFlags = DefaultFlags()
	}

	return &Service{
		repo:         cfg.Repository,
		logger:       cfg.Logger,
		cacheTTL:     cacheTTL,
		defaultFlags: defaultFlags,
		cache:        make(map[string]cachedFlag),
	}
}

// GetFlag retrieves a feature flag by key, from cache when fresh.
// Returns nil if the flag is neither stored nor defaulted.
func (s *Service) GetFlag(ctx context.Context, key string) *Flag {
	if s == nil {
		return nil
	}
	if flag, ok := s.getCached(key); ok {
		return flag
	}

	if s.repo != nil {
		flag, err := s.repo.GetFlag(ctx, key)
		if err == nil {
			s.setCached(key, flag)
			return flag
		}
		if !errors.Is(err, ErrFlagNotFound) {
			s.logger.Warn().Err(err).Str("flag", key).Msg("failed to get feature flag from repository")
		}
	}

	flag := s.defaultFlags[key]
	s.setCached(key, flag)
	return flag
}

// GetAllFlags returns stored flags merged over the defaults.
func (s *Service) GetAllFlags(ctx context.Context) map[string]*Flag {
	result := make(map[string]*Flag, len(s.defaultFlags))
	for k, v := range s.defaultFlags {
		result[k] = v
	}
	if s.repo == nil {
		return result
	}

	flags, err := s.repo.GetAllFlags(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to get feature flags from repository, using defaults")
		return result
	}
	for k, v := range flags {
		result[k] = v
		s.setCached(k, v)
	}
	return result
}

// SetFlag updates a feature flag and refreshes the cache.
func (s *Service) SetFlag(ctx context.Context, flag *Flag) error {
	flag.UpdatedAt = time.Now()
	if err := s.repo.SetFlag(ctx, flag); err != nil {
		return err
	}
	s.setCached(flag.Key, flag)
	return nil
}

// InvalidateCache clears the cached flags, forcing a refresh on next access.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]cachedFlag)
}

// IsEnabled returns true if the flag with the given key is truthy.
func (s *Service) IsEnabled(ctx context.Context, key string) bool {
	return s.GetFlag(ctx, key).BoolValue(false)
}

// ThrottleDisabled reports whether the notification throttle is bypassed.
func (s *Service) ThrottleDisabled(ctx context.Context) bool {
	return s.IsEnabled(ctx, FlagThrottleDisabled)
}

// PushSendingDisabled reports whether push delivery is switched off.
func (s *Service) PushSendingDisabled(ctx context.Context) bool {
	return s.IsEnabled(ctx, FlagDisablePushSending)
}

// QuietHoursRespected reports whether citizen alert windows are enforced.
func (s *Service) QuietHoursRespected(ctx context.Context) bool {
	return s.IsEnabled(ctx, FlagRespectQuietHours)
}

func (s *Service) getCached(key string) (*Flag, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.cache[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.flag, true
}

func (s *Service) setCached(key string, flag *Flag) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[key] = cachedFlag{flag: flag, expiresAt: time.Now().Add(s.cacheTTL)}
}
