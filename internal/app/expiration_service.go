// internal/app/expiration_service.go
package app

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"spread_expire/internal/domain/account"
	"spread_expire/internal/domain/calendar"
	"spread_expire/internal/domain/mailq"
	"spread_expire/internal/domain/notification"
	"spread_expire/internal/domain/policy"
	"spread_expire/internal/domain/spread"
	"spread_expire/internal/errs"
	"spread_expire/internal/infra/metrics"
)

// ExpirationService owns the lifecycle of expiring spreads: granting,
// rescheduling, revoking, and the escalation notices sent as an expiry
// approaches.
//
// Per (entity, spread) the states are: no spread, active, escalating (one
// pending notification from the spread's policy) and expired (expire date
// passed, waiting for the cleaner).
type ExpirationService struct {
	expires  spread.ExpireRepository
	notifs   notification.Repository
	accounts account.Repository
	mail     mailq.Sink
	policies policy.Set
	logger   logrus.FieldLogger
	metrics  *metrics.Recorder
	now      func() time.Time
}

type Option func(*ExpirationService)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *ExpirationService) { s.now = now }
}

func WithMetrics(r *metrics.Recorder) Option {
	return func(s *ExpirationService) { s.metrics = r }
}

func NewExpirationService(
	er spread.ExpireRepository,
	nr notification.Repository,
	ar account.Repository,
	sink mailq.Sink,
	policies policy.Set,
	logger logrus.FieldLogger,
	opts ...Option,
) *ExpirationService {
	s := &ExpirationService{
		expires:  er,
		notifs:   nr,
		accounts: ar,
		mail:     sink,
		policies: policies,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ExpirationService) today() time.Time {
	return calendar.Day(s.now())
}

func (s *ExpirationService) spreadName(code spread.Code) string {
	if p, ok := s.policies.Lookup(code); ok {
		return p.SpreadName
	}
	return strconv.Itoa(int(code))
}

func (s *ExpirationService) entityLog(entityID int64, code spread.Code) logrus.FieldLogger {
	return s.logger.WithFields(logrus.Fields{"entity_id": entityID, "spread": s.spreadName(code)})
}

// AddSpread grants the spread and records its expiry. A nil expireDate
// means today. Granting a spread the entity already holds only reschedules it.
func (s *ExpirationService) AddSpread(ctx context.Context, entityID int64, code spread.Code, expireDate *time.Time) error {
	has, err := s.accounts.HasSpread(ctx, entityID, code)
	if err != nil {
		return fmt.Errorf("failed to check spread %d on entity %d: %w", code, entityID, err)
	}
	if !has {
		if err := s.accounts.AddSpread(ctx, entityID, code); err != nil {
			return fmt.Errorf("failed to add spread %d to entity %d: %w", code, entityID, err)
		}
	}

	date := s.today()
	if expireDate != nil {
		date = calendar.Day(*expireDate)
	}
	return s.SetSpreadExpire(ctx, entityID, code, date)
}

// SetSpreadExpire records a new expiry. When the assignment already existed
// this is a reschedule, and pending escalation notices are reset.
func (s *ExpirationService) SetSpreadExpire(ctx context.Context, entityID int64, code spread.Code, expireDate time.Time) error {
	expireDate = calendar.Day(expireDate)

	existed, err := s.expires.Exists(ctx, entityID, code)
	if err != nil {
		return fmt.Errorf("failed to check spread expire for entity %d, spread %d: %w", entityID, code, err)
	}
	if err := s.expires.Set(ctx, entityID, code, expireDate); err != nil {
		return fmt.Errorf("failed to set spread expire for entity %d, spread %d: %w", entityID, code, err)
	}
	s.entityLog(entityID, code).WithField("expire_date", calendar.Format(expireDate)).Debug("Spread expire set")

	if !existed {
		return nil
	}
	return s.NotifySpreadExpireReset(ctx, entityID, code, expireDate)
}

// DeleteSpread revokes the spread: pending notifications for the spread's
// templates go first, then the assignment, then the spread on the entity.
func (s *ExpirationService) DeleteSpread(ctx context.Context, entityID int64, code spread.Code) error {
	if err := s.purgeSpreadState(ctx, entityID, code); err != nil {
		return err
	}
	if err := s.accounts.DeleteSpread(ctx, entityID, code); err != nil {
		return fmt.Errorf("failed to delete spread %d from entity %d: %w", code, entityID, err)
	}
	return nil
}

// purgeSpreadState removes the notifications and the assignment but leaves
// the entity alone.
func (s *ExpirationService) purgeSpreadState(ctx context.Context, entityID int64, code spread.Code) error {
	if p, ok := s.policies.Lookup(code); ok {
		n, err := s.notifs.Delete(ctx, notification.ForEntity(entityID, p.Templates()...))
		if err != nil {
			return fmt.Errorf("failed to delete notifications for entity %d, spread %d: %w", entityID, code, err)
		}
		if n > 0 {
			s.entityLog(entityID, code).Debugf("Deleted %d pending notification(s)", n)
		}
	}

	exists, err := s.expires.Exists(ctx, entityID, code)
	if err != nil {
		return fmt.Errorf("failed to check spread expire for entity %d, spread %d: %w", entityID, code, err)
	}
	if !exists {
		return nil
	}
	// Not found here means someone else removed the row since Exists.
	if err := s.expires.Delete(ctx, entityID, code); err != nil {
		return fmt.Errorf("failed to delete spread expire for entity %d, spread %d: %w", entityID, code, err)
	}
	return nil
}

// NotifySpreadExpireReset clears pending escalation notices after the expiry
// moved to newExpire, sending the policy's reset template for each one.
//
// Every pending notice is held to the first (largest) step of the policy: the
// reset is refused unless newExpire lies beyond today plus that many days.
func (s *ExpirationService) NotifySpreadExpireReset(ctx context.Context, entityID int64, code spread.Code, newExpire time.Time) error {
	p, ok := s.policies.Lookup(code)
	if !ok || p.ResetTemplate == "" {
		return nil
	}

	pending, err := s.notifs.Search(ctx, notification.ForEntity(entityID, p.Templates()...))
	if err != nil {
		return fmt.Errorf("failed to fetch pending notifications for entity %d: %w", entityID, err)
	}
	if len(pending) == 0 {
		return nil
	}

	log := s.entityLog(entityID, code)
	newExpire = calendar.Day(newExpire)
	threshold := calendar.AddDays(s.now(), p.First().DaysBefore)

	for _, rec := range pending {
		if !newExpire.After(threshold) {
			log.WithFields(logrus.Fields{
				"template":    rec.Template,
				"expire_date": calendar.Format(newExpire),
				"threshold":   calendar.Format(threshold),
			}).Error("Refusing to reset spread expire notification, new expire date is inside the first escalation window")
			s.metrics.ResetRefused(p.SpreadName)
			continue
		}

		params := mailq.Parameters{
			"spread":      p.SpreadName,
			"expire_date": calendar.Format(newExpire),
		}
		if err := s.mail.Store(ctx, entityID, p.ResetTemplate, params); err != nil {
			return fmt.Errorf("failed to queue reset notice for entity %d: %w", entityID, err)
		}
		if _, err := s.notifs.Delete(ctx, notification.ForEntity(entityID, rec.Template)); err != nil {
			return fmt.Errorf("failed to delete notification %q for entity %d: %w", rec.Template, entityID, err)
		}
		s.metrics.ResetSent(p.ResetTemplate)
		log.WithFields(logrus.Fields{"template": rec.Template, "reset_template": p.ResetTemplate}).
			Info("Reset spread expire notification")
	}
	return nil
}

// NotifySpreadExpire sends the next escalation notice if it is due and
// returns its template, or "" when nothing was sent.
func (s *ExpirationService) NotifySpreadExpire(ctx context.Context, entityID int64, code spread.Code) (string, error) {
	p, ok := s.policies.Lookup(code)
	if !ok {
		return "", nil
	}
	log := s.entityLog(entityID, code)

	expireDate, err := s.expires.Get(ctx, entityID, code)
	if err != nil {
		if isNotFound(err) {
			log.Debug("No spread expire record, nothing to notify")
			return "", nil
		}
		return "", fmt.Errorf("failed to get spread expire for entity %d, spread %d: %w", entityID, code, err)
	}

	records, err := s.notifs.Search(ctx, notification.Filter{EntityIDs: []int64{entityID}})
	if err != nil {
		return "", fmt.Errorf("failed to fetch notifications for entity %d: %w", entityID, err)
	}
	pending, err := s.pendingFor(code, records)
	if err != nil {
		return "", fmt.Errorf("entity %d, spread %s: %w", entityID, p.SpreadName, err)
	}

	next, err := nextStep(p, pending)
	if err != nil {
		return "", fmt.Errorf("entity %d, spread %s: %w", entityID, p.SpreadName, err)
	}
	if next < 0 {
		log.Debug("All escalation notices sent, waiting for expiry")
		return "", nil
	}
	candidate := p.Steps[next]
	log = log.WithField("template", candidate.Template)

	today := s.today()
	if expireDate.After(calendar.AddDays(today, candidate.DaysBefore)) {
		return "", nil
	}

	acc, err := s.accounts.Find(ctx, entityID)
	if err != nil {
		if isNotFound(err) {
			return "", fmt.Errorf("%w: entity %d: %w", errs.ErrDownstreamLookup, entityID, err)
		}
		return "", fmt.Errorf("failed to look up entity %d: %w", entityID, err)
	}
	if !acc.IsAccount() {
		return "", fmt.Errorf("%w: entity %d has type %q", account.ErrNotAnAccount, entityID, acc.EntityType)
	}
	if acc.ExpireDate.Valid && !calendar.Day(acc.ExpireDate.Time).After(expireDate) {
		log.Debug("Account expires no later than the spread, leaving the notice to account expiry")
		return "", nil
	}

	if s.notifiedOn(records, today) {
		log.Debug("Entity already notified today")
		return "", nil
	}

	params := mailq.Parameters{
		"spread":       p.SpreadName,
		"account_name": acc.Name,
		"expire_date":  calendar.Format(expireDate),
		"days_left":    strconv.Itoa(int(expireDate.Sub(today).Hours() / 24)),
	}
	// The message is queued before the record is written.
	if err := s.mail.Store(ctx, entityID, candidate.Template, params); err != nil {
		return "", fmt.Errorf("failed to queue notice %q for entity %d: %w", candidate.Template, entityID, err)
	}
	sent := s.now()
	if err := s.notifs.Set(ctx, entityID, candidate.Template, &sent); err != nil {
		return "", fmt.Errorf("failed to record notice %q for entity %d: %w", candidate.Template, entityID, err)
	}
	if len(pending) > 0 {
		superseded := make([]string, len(pending))
		for i, rec := range pending {
			superseded[i] = rec.Template
		}
		if _, err := s.notifs.Delete(ctx, notification.ForEntity(entityID, superseded...)); err != nil {
			return "", fmt.Errorf("failed to clear superseded notices for entity %d: %w", entityID, err)
		}
	}

	s.metrics.NoticeSent(candidate.Template)
	log.WithField("expire_date", calendar.Format(expireDate)).Info("Queued spread expire notice")
	return candidate.Template, nil
}

// nextStep returns the index of the step to send next, or -1 when the ladder
// is exhausted. With several pending records the furthest one counts.
func nextStep(p policy.Policy, pending []notification.Record) (int, error) {
	if len(pending) == 0 {
		return 0, nil
	}
	latest := -1
	for _, rec := range pending {
		idx := p.IndexOf(rec.Template)
		if idx < 0 {
			return 0, fmt.Errorf("%w: %q", errs.ErrInconsistentPolicyState, rec.Template)
		}
		if idx > latest {
			latest = idx
		}
	}
	if latest == len(p.Steps)-1 {
		return -1, nil
	}
	return latest + 1, nil
}

// pendingFor picks the records that belong to code's ladder. A record whose
// template no configured policy knows is an inconsistent state.
func (s *ExpirationService) pendingFor(code spread.Code, records []notification.Record) ([]notification.Record, error) {
	pending := make([]notification.Record, 0, len(records))
	for _, rec := range records {
		owner, ok := s.policies.Owner(rec.Template)
		if !ok {
			return nil, fmt.Errorf("%w: notification template %q is not in any policy", errs.ErrInconsistentPolicyState, rec.Template)
		}
		if owner == code {
			pending = append(pending, rec)
		}
	}
	return pending, nil
}

func (s *ExpirationService) notifiedOn(records []notification.Record, day time.Time) bool {
	loc := s.now().Location()
	for _, rec := range records {
		if calendar.SameDay(rec.NotifyDate.In(loc), day) {
			return true
		}
	}
	return false
}
