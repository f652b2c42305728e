package server

import (
	"context"
	"log"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"

	"github.com/hanbitlabs/rankwatch/internal/rank"
	"github.com/hanbitlabs/rankwatch/internal/store"
)

// Scheduler periodically re-checks every tracker that is due according to
// the configured cron spec. A redis lock per tracker keeps multiple
// replicas from double-checking the same tracker.
type Scheduler struct {
	Store   *store.Store
	Checker RankChecker
	Rdb     *redis.Client
	Cron    string
	Spacing time.Duration
	Stop    chan struct{}
	Logger  *log.Logger
}

const schedulerLockTTL = 10 * time.Minute

func (s *Scheduler) Start(interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-s.Stop:
				ticker.Stop()
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

func (s *Scheduler) tick() {
	ctx := context.Background()
	trackers, err := s.Store.ListAllTrackers(ctx)
	if err != nil {
		s.Logger.Printf("list trackers: %v", err)
		return
	}

	checked := 0
	for _, t := range trackers {
		if !isDue(s.Cron, t.LastChecked) {
			continue
		}
		if s.Rdb != nil {
			lockKey := "sched:lock:" + t.ID
			ok, err := s.Rdb.SetNX(ctx, lockKey, "1", schedulerLockTTL).Result()
			if err != nil || !ok {
				continue
			}
		}
		if checked > 0 && s.Spacing > 0 {
			// Spacing between outbound checks keeps the search engine
			// from blocking us.
			time.Sleep(s.Spacing)
		}
		checked++
		s.checkTracker(ctx, t)
		if s.Rdb != nil {
			s.Rdb.Del(ctx, "sched:lock:"+t.ID)
		}
	}
	if checked > 0 {
		s.Logger.Printf("refreshed %d trackers", checked)
	}
}

func (s *Scheduler) checkTracker(ctx context.Context, t store.Tracker) {
	results, err := s.Checker.CheckAllAreas(ctx, t.TargetKeyword, t.BlogURL)
	if err != nil {
		// Retry at the next tick.
		s.Logger.Printf("check failed for tracker %s (%q): %v", t.ID, t.TargetKeyword, err)
		return
	}
	best := results.Best()
	var area *string
	if best.Found {
		a := string(best.Area)
		area = &a
	}
	if err := s.Store.RecordCheck(ctx, t.ID, best.Rank, area, best.CheckedAt); err != nil {
		s.Logger.Printf("record check for tracker %s: %v", t.ID, err)
		return
	}
	change := rank.AnalyzeChange(t.CurrentRank, best.Rank)
	s.Logger.Printf("tracker %s (%q): %s %s", t.ID, t.TargetKeyword, change.Direction, change.Message)
}

// isDue determines whether a tracker last checked at `last` should be
// re-checked now under cronSpec. Supports "@daily", "@hourly" and standard
// 5-field cron expressions; an invalid spec falls back to @daily.
func isDue(cronSpec string, last *time.Time) bool {
	now := time.Now()
	switch cronSpec {
	case "@daily":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= 24*time.Hour
	case "@hourly":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= time.Hour
	default:
		expr, err := cronexpr.Parse(cronSpec)
		if err != nil {
			if last == nil {
				return true
			}
			return now.Sub(*last) >= 24*time.Hour
		}
		if last == nil {
			return true
		}
		next := expr.Next(*last)
		return !next.After(now)
	}
}
