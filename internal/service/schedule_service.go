package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/hrd-training-api/internal/models"
)

// ScheduleService computes module calendars and detects schedule conflicts.
// Both operations are pure in-memory computations; the only I/O is the
// optional redis cache in front of ComputeDuration.
type ScheduleService struct {
	cache  *CacheService
	logger *zap.Logger
}

// NewScheduleService constructs the schedule service.
func NewScheduleService(cache *CacheService, logger *zap.Logger) *ScheduleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{cache: cache, logger: logger}
}

// ComputeDuration turns a module's sessions into the deduplicated, sorted set
// of calendar dates it covers, walking every date range day by day. The
// result is stable under permutation of sessions and ranges and grows
// monotonically as ranges are added.
//
// Dates are identified by the calendar date embedded in each stored instant;
// instants from different timezones that render the same calendar date merge
// into one day. That matches how the dates were captured upstream.
func (s *ScheduleService) ComputeDuration(module *models.Module) models.ModuleSchedule {
	seen := make(map[string]time.Time)

	for _, session := range module.Sessions {
		for _, dr := range session.Dates {
			if dr.IsZero() || dr.End.Before(dr.Start) {
				s.logger.Warn("skipping invalid date range",
					zap.String("module_id", module.ID.Hex()),
					zap.String("session", session.Name),
					zap.Time("start", dr.Start),
					zap.Time("end", dr.End))
				continue
			}
			start := dayOf(dr.Start)
			end := dayOf(dr.End)
			for cur := start; !cur.After(end); cur = cur.AddDate(0, 0, 1) {
				seen[cur.Format("2006-01-02")] = cur
			}
		}
	}

	if len(seen) == 0 {
		fallback := module.CreatedAt
		if fallback.IsZero() {
			fallback = time.Now().UTC()
		}
		day := dayOf(fallback)
		seen[day.Format("2006-01-02")] = day
	}

	dates := make([]time.Time, 0, len(seen))
	for _, d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	return models.ModuleSchedule{
		ModuleID: module.ID.Hex(),
		Count:    len(dates),
		Dates:    dates,
	}
}

// ScheduleForModule returns the module's computed schedule, consulting the
// cache first. Cache entries are keyed on the module's update stamp so a
// module edit naturally misses.
func (s *ScheduleService) ScheduleForModule(ctx context.Context, module *models.Module) models.ModuleSchedule {
	key := scheduleCacheKey(module)
	var cached models.ModuleSchedule
	if s.cache.Get(ctx, key, &cached) {
		return cached
	}
	schedule := s.ComputeDuration(module)
	s.cache.Set(ctx, key, schedule)
	return schedule
}

// HasConflict reports whether any date range of one session set overlaps any
// range of the other. Ranges that only touch at an endpoint do not conflict.
func (s *ScheduleService) HasConflict(a, b []models.Session) bool {
	for _, sa := range a {
		for _, ra := range sa.Dates {
			if ra.IsZero() {
				continue
			}
			for _, sb := range b {
				for _, rb := range sb.Dates {
					if rb.IsZero() {
						continue
					}
					if ra.Overlaps(rb) {
						return true
					}
				}
			}
		}
	}
	return false
}

// dayOf drops the time of day, keeping the calendar date the instant renders
// in its own location.
func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func scheduleCacheKey(module *models.Module) string {
	return fmt.Sprintf("schedule:%s:%d", module.ID.Hex(), module.UpdatedAt.Unix())
}
