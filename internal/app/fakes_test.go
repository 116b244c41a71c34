package app

import (
	"context"
	"sort"
	"time"

	"spread_expire/internal/domain/account"
	"spread_expire/internal/domain/calendar"
	"spread_expire/internal/domain/mailq"
	"spread_expire/internal/domain/notification"
	"spread_expire/internal/domain/spread"
	"spread_expire/internal/errs"
	"spread_expire/internal/infra/database"
)

type expireKey struct {
	entityID int64
	spread   spread.Code
}

// memExpireStore mirrors the Postgres store, counting writes that change a row.
type memExpireStore struct {
	rows   map[expireKey]time.Time
	writes int
	err    error
}

func newMemExpireStore() *memExpireStore {
	return &memExpireStore{rows: make(map[expireKey]time.Time)}
}

func (m *memExpireStore) check(entityID int64, code spread.Code) error {
	if m.err != nil {
		return m.err
	}
	if entityID <= 0 || code <= 0 {
		return errs.ErrInvalidArgument
	}
	return nil
}

func (m *memExpireStore) Exists(_ context.Context, entityID int64, code spread.Code) (bool, error) {
	if err := m.check(entityID, code); err != nil {
		return false, err
	}
	_, ok := m.rows[expireKey{entityID, code}]
	return ok, nil
}

func (m *memExpireStore) Get(_ context.Context, entityID int64, code spread.Code) (time.Time, error) {
	if err := m.check(entityID, code); err != nil {
		return time.Time{}, err
	}
	d, ok := m.rows[expireKey{entityID, code}]
	if !ok {
		return time.Time{}, database.ErrSpreadExpireNotFound
	}
	return d, nil
}

func (m *memExpireStore) Set(_ context.Context, entityID int64, code spread.Code, expireDate time.Time) error {
	if err := m.check(entityID, code); err != nil {
		return err
	}
	k := expireKey{entityID, code}
	day := calendar.Day(expireDate)
	if cur, ok := m.rows[k]; ok && cur.Equal(day) {
		return nil
	}
	m.rows[k] = day
	m.writes++
	return nil
}

func (m *memExpireStore) Delete(_ context.Context, entityID int64, code spread.Code) error {
	if err := m.check(entityID, code); err != nil {
		return err
	}
	k := expireKey{entityID, code}
	if _, ok := m.rows[k]; !ok {
		return database.ErrSpreadExpireNotFound
	}
	delete(m.rows, k)
	m.writes++
	return nil
}

func (m *memExpireStore) Search(_ context.Context, f spread.Filter) ([]spread.Assignment, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []spread.Assignment
	for k, d := range m.rows {
		if len(f.EntityIDs) > 0 && !containsInt64(f.EntityIDs, k.entityID) {
			continue
		}
		if len(f.Spreads) > 0 && !containsCode(f.Spreads, k.spread) {
			continue
		}
		if f.Before != nil && !d.Before(calendar.Day(*f.Before)) {
			continue
		}
		if f.After != nil && !d.After(calendar.Day(*f.After)) {
			continue
		}
		out = append(out, spread.Assignment{EntityID: k.entityID, Spread: k.spread, ExpireDate: d})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EntityID != out[j].EntityID {
			return out[i].EntityID < out[j].EntityID
		}
		return out[i].Spread < out[j].Spread
	})
	return out, nil
}

type notifKey struct {
	entityID int64
	template string
}

type memNotificationStore struct {
	rows map[notifKey]time.Time
	now  func() time.Time
}

func newMemNotificationStore(now func() time.Time) *memNotificationStore {
	return &memNotificationStore{rows: make(map[notifKey]time.Time), now: now}
}

func (m *memNotificationStore) Exists(_ context.Context, entityID int64, template string) (bool, error) {
	for k := range m.rows {
		if k.entityID == entityID && (template == "" || k.template == template) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memNotificationStore) Get(_ context.Context, entityID int64, template string) (time.Time, error) {
	d, ok := m.rows[notifKey{entityID, template}]
	if !ok {
		return time.Time{}, database.ErrNotificationNotFound
	}
	return d, nil
}

func (m *memNotificationStore) Set(_ context.Context, entityID int64, template string, notifyDate *time.Time) error {
	d := m.now()
	if notifyDate != nil {
		d = *notifyDate
	}
	m.rows[notifKey{entityID, template}] = d
	return nil
}

func (m *memNotificationStore) matches(k notifKey, d time.Time, f notification.Filter) bool {
	if len(f.EntityIDs) > 0 && !containsInt64(f.EntityIDs, k.entityID) {
		return false
	}
	if len(f.Templates) > 0 && !containsString(f.Templates, k.template) {
		return false
	}
	if f.Before != nil && !d.Before(*f.Before) {
		return false
	}
	if f.After != nil && !d.After(*f.After) {
		return false
	}
	return true
}

func (m *memNotificationStore) Delete(_ context.Context, f notification.Filter) (int64, error) {
	if len(f.EntityIDs) == 0 && len(f.Templates) == 0 {
		return 0, errs.ErrInvalidArgument
	}
	var n int64
	for k, d := range m.rows {
		if m.matches(k, d, f) {
			delete(m.rows, k)
			n++
		}
	}
	return n, nil
}

func (m *memNotificationStore) Search(_ context.Context, f notification.Filter) ([]notification.Record, error) {
	var out []notification.Record
	for k, d := range m.rows {
		if m.matches(k, d, f) {
			out = append(out, notification.Record{EntityID: k.entityID, Template: k.template, NotifyDate: d})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EntityID != out[j].EntityID {
			return out[i].EntityID < out[j].EntityID
		}
		return out[i].Template < out[j].Template
	})
	return out, nil
}

type memAccounts struct {
	accounts     map[int64]*account.Account
	spreads      map[expireKey]bool
	deleteCalls  map[expireKey]int
	homesCleared map[expireKey]int
	failFor      map[int64]error
}

func newMemAccounts() *memAccounts {
	return &memAccounts{
		accounts:     make(map[int64]*account.Account),
		spreads:      make(map[expireKey]bool),
		deleteCalls:  make(map[expireKey]int),
		homesCleared: make(map[expireKey]int),
		failFor:      make(map[int64]error),
	}
}

func (m *memAccounts) addAccount(id int64, name string) {
	m.accounts[id] = &account.Account{ID: id, Name: name, EntityType: account.EntityTypeAccount}
}

func (m *memAccounts) Find(_ context.Context, entityID int64) (*account.Account, error) {
	if err := m.failFor[entityID]; err != nil {
		return nil, err
	}
	a, ok := m.accounts[entityID]
	if !ok {
		return nil, database.ErrEntityNotFound
	}
	return a, nil
}

func (m *memAccounts) HasSpread(_ context.Context, entityID int64, code spread.Code) (bool, error) {
	return m.spreads[expireKey{entityID, code}], nil
}

func (m *memAccounts) AddSpread(_ context.Context, entityID int64, code spread.Code) error {
	if _, ok := m.accounts[entityID]; !ok {
		return database.ErrEntityNotFound
	}
	k := expireKey{entityID, code}
	if m.spreads[k] {
		return database.ErrDuplicateEntitySpread
	}
	m.spreads[k] = true
	return nil
}

func (m *memAccounts) DeleteSpread(_ context.Context, entityID int64, code spread.Code) error {
	k := expireKey{entityID, code}
	m.deleteCalls[k]++
	if !m.spreads[k] {
		return database.ErrEntitySpreadNotFound
	}
	delete(m.spreads, k)
	return nil
}

func (m *memAccounts) ClearHome(_ context.Context, entityID int64, code spread.Code) error {
	m.homesCleared[expireKey{entityID, code}]++
	return nil
}

type queuedMail struct {
	entityID int64
	template string
	params   mailq.Parameters
}

type memMailQueue struct {
	sent []queuedMail
	err  error
}

func (m *memMailQueue) Store(_ context.Context, entityID int64, template string, params mailq.Parameters) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, queuedMail{entityID: entityID, template: template, params: params})
	return nil
}

func (m *memMailQueue) templates() []string {
	out := make([]string, len(m.sent))
	for i, q := range m.sent {
		out[i] = q.template
	}
	return out
}

// countingGuard runs every unit directly and counts them.
type countingGuard struct {
	calls int
}

func (g *countingGuard) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	g.calls++
	return fn(ctx)
}

func containsInt64(xs []int64, x int64) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func containsCode(xs []spread.Code, x spread.Code) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func containsString(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
