// internal/app/cleaner_service.go
package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"spread_expire/internal/domain/calendar"
	"spread_expire/internal/domain/notification"
	"spread_expire/internal/domain/spread"
	"spread_expire/internal/errs"
)

func isNotFound(err error) bool {
	return errors.Is(err, errs.ErrNotFound)
}

// EntityGuard runs the work for a single entity. A transactional guard rolls
// the entity's writes back when fn fails.
type EntityGuard interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

type directGuard struct{}

func (directGuard) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// RunOptions selects what a cleaner run sweeps.
type RunOptions struct {
	Spreads []spread.Code
	Cutoff  time.Time // assignments expiring strictly before this day are removed
}

// Report summarises a cleaner run. Per-entity failures are collected and
// never stop the run.
type Report struct {
	RunID    string
	Deleted  int // spreads removed from entities
	Purged   int // assignments dropped whose entity or spread was already gone
	Notified int
	Failed   int
	errors   *multierror.Error
}

// Err returns the aggregated per-entity errors, or nil.
func (r *Report) Err() error {
	return r.errors.ErrorOrNil()
}

func (r *Report) fail(err error) {
	r.Failed++
	r.errors = multierror.Append(r.errors, err)
}

// CleanerService is the periodic job: it removes expired spreads and then
// advances escalation for every entity that may need a notice.
type CleanerService struct {
	engine *ExpirationService
	guard  EntityGuard
	logger logrus.FieldLogger
}

func NewCleanerService(engine *ExpirationService, guard EntityGuard, logger logrus.FieldLogger) *CleanerService {
	if guard == nil {
		guard = directGuard{}
	}
	return &CleanerService{engine: engine, guard: guard, logger: logger}
}

// Run executes the cleanup pass and then the notify pass. The returned error
// is non-nil only when ctx ends the run early.
func (c *CleanerService) Run(ctx context.Context, opts RunOptions) (*Report, error) {
	started := c.engine.now()
	report := &Report{RunID: uuid.NewString()}
	log := c.logger.WithField("run_id", report.RunID)
	cutoff := calendar.Day(opts.Cutoff)

	log.WithFields(logrus.Fields{
		"cutoff":  calendar.Format(cutoff),
		"spreads": len(opts.Spreads),
	}).Info("Starting spread expire cleanup")

	for _, code := range opts.Spreads {
		if err := c.cleanupSpread(ctx, log, report, code, cutoff); err != nil {
			return report, err
		}
	}
	if err := c.notifyPass(ctx, log, report); err != nil {
		return report, err
	}

	c.engine.metrics.RunFinished(started, c.engine.now())
	log.WithFields(logrus.Fields{
		"deleted":  report.Deleted,
		"purged":   report.Purged,
		"notified": report.Notified,
		"failed":   report.Failed,
	}).Info("Spread expire cleanup finished")
	return report, nil
}

type cleanupOutcome int

const (
	outcomeDeleted cleanupOutcome = iota + 1
	outcomePurged
)

func (c *CleanerService) cleanupSpread(ctx context.Context, log logrus.FieldLogger, report *Report, code spread.Code, cutoff time.Time) error {
	name := c.engine.spreadName(code)
	expired, err := c.engine.expires.Search(ctx, spread.Filter{Spreads: []spread.Code{code}, Before: &cutoff})
	if err != nil {
		log.WithError(err).WithField("spread", name).Error("Failed to search for expired spreads")
		report.fail(fmt.Errorf("search expired spread %s: %w", name, err))
		return nil
	}
	log.WithField("spread", name).Infof("Found %d expired assignment(s)", len(expired))

	for _, a := range expired {
		if err := ctx.Err(); err != nil {
			return err
		}
		entryLog := log.WithFields(logrus.Fields{
			"entity_id":   a.EntityID,
			"spread":      name,
			"expire_date": calendar.Format(a.ExpireDate),
		})

		var outcome cleanupOutcome
		err := c.guard.Do(ctx, func(ctx context.Context) error {
			var err error
			outcome, err = c.expireAssignment(ctx, entryLog, a)
			return err
		})
		if err != nil {
			c.entityFailed(entryLog, report, err, "Failed to remove expired spread", a.EntityID, name)
			continue
		}
		switch outcome {
		case outcomeDeleted:
			report.Deleted++
			c.engine.metrics.SpreadDeleted(name)
		case outcomePurged:
			report.Purged++
		}
	}
	return nil
}

func (c *CleanerService) expireAssignment(ctx context.Context, log logrus.FieldLogger, a spread.Assignment) (cleanupOutcome, error) {
	acc, err := c.engine.accounts.Find(ctx, a.EntityID)
	if err != nil {
		if !isNotFound(err) {
			return 0, fmt.Errorf("failed to look up entity %d: %w", a.EntityID, err)
		}
		log.Warn("Entity no longer exists, removing spread expire state only")
		return outcomePurged, c.engine.purgeSpreadState(ctx, a.EntityID, a.Spread)
	}

	has, err := c.engine.accounts.HasSpread(ctx, acc.ID, a.Spread)
	if err != nil {
		return 0, fmt.Errorf("failed to check spread on entity %d: %w", acc.ID, err)
	}
	if !has {
		log.Info("Spread already removed from entity, removing spread expire state only")
		return outcomePurged, c.engine.purgeSpreadState(ctx, acc.ID, a.Spread)
	}

	if err := c.engine.accounts.ClearHome(ctx, acc.ID, a.Spread); err != nil {
		return 0, fmt.Errorf("failed to clear home for entity %d: %w", acc.ID, err)
	}
	if err := c.engine.DeleteSpread(ctx, acc.ID, a.Spread); err != nil {
		return 0, err
	}
	log.Info("Deleted expired spread")
	return outcomeDeleted, nil
}

type candidate struct {
	entityID int64
	spread   spread.Code
}

// notifyPass runs escalation for every assignment inside its policy's first
// window and for every entity that already has a pending notice, whatever
// spreads the cleanup pass was asked to sweep.
func (c *CleanerService) notifyPass(ctx context.Context, log logrus.FieldLogger, report *Report) error {
	codes := c.engine.policies.Spreads()
	if len(codes) == 0 {
		return nil
	}

	candidates, err := c.notifyCandidates(ctx, codes)
	if err != nil {
		log.WithError(err).Error("Failed to collect notification candidates")
		report.fail(err)
	}
	log.Infof("Checking %d assignment(s) for escalation notices", len(candidates))

	for _, cand := range candidates {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := c.engine.spreadName(cand.spread)
		entryLog := log.WithFields(logrus.Fields{"entity_id": cand.entityID, "spread": name})

		var template string
		err := c.guard.Do(ctx, func(ctx context.Context) error {
			var err error
			template, err = c.engine.NotifySpreadExpire(ctx, cand.entityID, cand.spread)
			return err
		})
		if err != nil {
			c.entityFailed(entryLog, report, err, "Failed to process spread expire notice", cand.entityID, name)
			continue
		}
		if template != "" {
			report.Notified++
		}
	}
	return nil
}

func (c *CleanerService) notifyCandidates(ctx context.Context, codes []spread.Code) ([]candidate, error) {
	seen := make(map[candidate]struct{})
	out := make([]candidate, 0)
	add := func(rows []spread.Assignment) {
		for _, a := range rows {
			k := candidate{entityID: a.EntityID, spread: a.Spread}
			if _, dup := seen[k]; !dup {
				seen[k] = struct{}{}
				out = append(out, k)
			}
		}
	}

	var result *multierror.Error
	today := c.engine.today()
	for _, code := range codes {
		p := c.engine.policies[code]
		horizon := calendar.AddDays(today, p.First().DaysBefore+1)
		rows, err := c.engine.expires.Search(ctx, spread.Filter{Spreads: []spread.Code{code}, Before: &horizon})
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("search approaching expiry for %s: %w", p.SpreadName, err))
			continue
		}
		add(rows)
	}

	pending, err := c.engine.notifs.Search(ctx, notification.Filter{})
	if err != nil {
		result = multierror.Append(result, fmt.Errorf("search pending notifications: %w", err))
	} else if ids := uniqueEntityIDs(pending); len(ids) > 0 {
		rows, err := c.engine.expires.Search(ctx, spread.Filter{EntityIDs: ids, Spreads: codes})
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("search assignments with pending notifications: %w", err))
		} else {
			add(rows)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].entityID != out[j].entityID {
			return out[i].entityID < out[j].entityID
		}
		return out[i].spread < out[j].spread
	})
	return out, result.ErrorOrNil()
}

func uniqueEntityIDs(records []notification.Record) []int64 {
	seen := make(map[int64]struct{}, len(records))
	ids := make([]int64, 0, len(records))
	for _, rec := range records {
		if _, dup := seen[rec.EntityID]; !dup {
			seen[rec.EntityID] = struct{}{}
			ids = append(ids, rec.EntityID)
		}
	}
	return ids
}

func (c *CleanerService) entityFailed(log logrus.FieldLogger, report *Report, err error, msg string, entityID int64, spreadName string) {
	log.WithError(err).Error(msg)
	c.engine.metrics.EntityFailed()
	report.fail(fmt.Errorf("entity %d, spread %s: %w", entityID, spreadName, err))
}
