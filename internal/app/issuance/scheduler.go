// Package issuance runs periodic CAPM issuance on a cron schedule.
//
// Each run issues one window for every DAO. Windows are chained: a run
// covers [end of the previous window, now), so a contribution is ranked in
// exactly one window. After a restart the chain resumes from the latest
// issued window.
//
//	── w1 ──┬── w2 ──┬── w3 ──▶ time
//	      run      run      run
package issuance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron"
	"github.com/sirupsen/logrus"

	"github.com/baekya-protocol/baekya/internal/domain"
	"github.com/baekya-protocol/baekya/internal/infra/logger"
	"github.com/baekya-protocol/baekya/internal/infra/ptoken"
)

// Issuer is the part of the protocol service the scheduler drives.
type Issuer interface {
	DAOs() []domain.DAO
	RunIssuance(ctx context.Context, daoID string, since, until time.Time) (ptoken.MintResult, error)
	LastIssuanceEnd() time.Time
}

// Config controls the scheduler.
type Config struct {
	Schedule string        // cron spec with a seconds field, or a descriptor such as "@daily"
	Window   time.Duration // first window length when nothing was issued yet
}

// DefaultConfig issues once a day.
func DefaultConfig() Config {
	return Config{Schedule: "@daily", Window: 24 * time.Hour}
}

// Validate checks the schedule and window.
func (c Config) Validate() error {
	if _, err := cron.Parse(c.Schedule); err != nil {
		return fmt.Errorf("issuance schedule %q: %w", c.Schedule, err)
	}
	if c.Window <= 0 {
		return fmt.Errorf("issuance window must be positive, got %v", c.Window)
	}
	return nil
}

// Report is the outcome of one run.
type Report struct {
	Since  time.Time                `json:"since"`
	Until  time.Time                `json:"until"`
	Minted map[string]domain.Amount `json:"minted"` // daoID → P issued
	Failed map[string]error         `json:"-"`
}

// Scheduler issues P tokens on a cron schedule.
type Scheduler struct {
	config Config
	issuer Issuer
	cron   *cron.Cron
	log    *logrus.Entry

	mu   sync.Mutex
	last time.Time // end of the last issued window

	// Injectable clock for testing.
	now func() time.Time
}

// New creates a scheduler. It does not run until Start.
func New(cfg Config, issuer Issuer) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Scheduler{
		config: cfg,
		issuer: issuer,
		cron:   cron.New(),
		log:    logger.NewSublogger("issuance"),
		now:    time.Now,
	}, nil
}

// Start resumes the window chain and schedules runs until Stop or until
// ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.last.IsZero() {
		s.last = s.issuer.LastIssuanceEnd()
	}
	resumed := s.last
	s.mu.Unlock()

	err := s.cron.AddFunc(s.config.Schedule, func() {
		if ctx.Err() != nil {
			return
		}
		s.RunOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("schedule issuance: %w", err)
	}
	s.cron.Start()

	go func() {
		<-ctx.Done()
		s.cron.Stop()
	}()

	s.log.WithFields(logrus.Fields{"schedule": s.config.Schedule, "resume_from": resumed}).Info("Issuance scheduler started")
	return nil
}

// Stop halts the cron loop. A run in progress completes.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.log.Info("Issuance scheduler stopped")
}

// Last returns the end of the last issued window.
func (s *Scheduler) Last() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// RunOnce issues the window ending now for every DAO. Runs are serialised.
// The chain advances even when some DAOs fail; their window is logged and
// reported.
func (s *Scheduler) RunOnce(ctx context.Context) Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	until := s.now().UTC().Truncate(time.Second)
	since := s.last
	if since.IsZero() {
		since = until.Add(-s.config.Window)
	}
	report := Report{
		Since:  since,
		Until:  until,
		Minted: make(map[string]domain.Amount),
		Failed: make(map[string]error),
	}
	if !until.After(since) {
		return report
	}

	for _, dao := range s.issuer.DAOs() {
		if ctx.Err() != nil {
			report.Failed[dao.ID] = ctx.Err()
			continue
		}
		res, err := s.issuer.RunIssuance(ctx, dao.ID, since, until)
		switch {
		case errors.Is(err, domain.ErrDuplicateEntity):
			s.log.WithField("dao", dao.ID).Debug("Window already issued")
		case err != nil:
			report.Failed[dao.ID] = err
			s.log.WithError(err).WithField("dao", dao.ID).Error("Issuance failed")
		case res.Ladder.Total > 0:
			report.Minted[dao.ID] = res.Ladder.Total
		}
	}
	s.last = until

	s.log.WithFields(logrus.Fields{
		"since":  since,
		"until":  until,
		"daos":   len(report.Minted),
		"failed": len(report.Failed),
	}).Info("Issuance run finished")
	return report
}
