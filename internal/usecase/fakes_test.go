package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Matthias0x44/RyUnfair/internal/domain/entity"
	"github.com/Matthias0x44/RyUnfair/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

func newTestMetrics() *metrics.Metrics {
	return metrics.NewMetrics("test", prometheus.NewRegistry())
}

var baseTime = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

type memNotifications struct {
	mu      sync.Mutex
	seq     int
	records map[string]*entity.Notification
	keys    map[string]string

	findDueErr   error
	findDueCalls int
	cancelErr    error
	claimed      []string
}

func newMemNotifications() *memNotifications {
	return &memNotifications{
		records: make(map[string]*entity.Notification),
		keys:    make(map[string]string),
	}
}

func (m *memNotifications) Create(ctx context.Context, n *entity.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n.DedupeKey != "" {
		if _, ok := m.keys[n.DedupeKey]; ok {
			return fmt.Errorf("%w: %s", entity.ErrDuplicateSchedule, n.DedupeKey)
		}
	}
	m.seq++
	n.ID = fmt.Sprintf("n%04d", m.seq)
	if n.Status == "" {
		n.Status = entity.NotificationPending
	}
	cp := *n
	m.records[n.ID] = &cp
	if n.DedupeKey != "" {
		m.keys[n.DedupeKey] = n.ID
	}
	return nil
}

func (m *memNotifications) FindByID(ctx context.Context, id string) (*entity.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.records[id]
	if !ok {
		return nil, entity.ErrNotFound
	}
	cp := *n
	return &cp, nil
}

func (m *memNotifications) sorted() []*entity.Notification {
	all := make([]*entity.Notification, 0, len(m.records))
	for _, n := range m.records {
		all = append(all, n)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].ScheduledFor.Equal(all[j].ScheduledFor) {
			return all[i].ScheduledFor.Before(all[j].ScheduledFor)
		}
		return all[i].ID < all[j].ID
	})
	return all
}

func (m *memNotifications) FindDue(ctx context.Context, now time.Time, after *entity.DueCursor, limit int) ([]*entity.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.findDueCalls++
	if m.findDueErr != nil {
		return nil, m.findDueErr
	}
	var due []*entity.Notification
	for _, n := range m.sorted() {
		if len(due) == limit {
			break
		}
		if n.Status == entity.NotificationPending && !n.ScheduledFor.After(now) && after.After(n) {
			cp := *n
			due = append(due, &cp)
		}
	}
	return due, nil
}

func (m *memNotifications) Claim(ctx context.Context, id string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.records[id]
	if !ok || n.Status != entity.NotificationPending {
		return false, nil
	}
	n.Status = entity.NotificationSending
	n.ClaimedAt = &now
	m.claimed = append(m.claimed, id)
	return true, nil
}

func (m *memNotifications) MarkSent(ctx context.Context, id, externalID string, sentAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.records[id]
	if !ok || (n.Status != entity.NotificationSending && n.Status != entity.NotificationSent) {
		return entity.ErrInvalidTransition
	}
	n.Status = entity.NotificationSent
	n.ExternalID = externalID
	n.SentAt = &sentAt
	return nil
}

func (m *memNotifications) MarkFailed(ctx context.Context, id, reason string, failedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.records[id]
	if !ok || (n.Status != entity.NotificationSending && n.Status != entity.NotificationFailed) {
		return entity.ErrInvalidTransition
	}
	n.Status = entity.NotificationFailed
	n.LastError = reason
	return nil
}

func (m *memNotifications) CancelPendingByUser(ctx context.Context, userID string, now time.Time) (int64, error) {
	return m.cancelPending(func(n *entity.Notification) bool { return n.UserID == userID }), nil
}

func (m *memNotifications) CancelPendingByFlight(ctx context.Context, flightID string, now time.Time) (int64, error) {
	if m.cancelErr != nil {
		return 0, m.cancelErr
	}
	return m.cancelPending(func(n *entity.Notification) bool { return n.FlightID != nil && *n.FlightID == flightID }), nil
}

func (m *memNotifications) cancelPending(match func(n *entity.Notification) bool) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, n := range m.records {
		if match(n) && n.Status == entity.NotificationPending {
			n.Status = entity.NotificationCancelled
			delete(m.keys, n.DedupeKey)
			n.DedupeKey = ""
			count++
		}
	}
	return count
}

func (m *memNotifications) FailStaleClaims(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, n := range m.records {
		if n.Status == entity.NotificationSending && n.ClaimedAt != nil && n.ClaimedAt.Before(cutoff) {
			n.Status = entity.NotificationFailed
			n.LastError = "stale claim"
			count++
		}
	}
	return count, nil
}

func (m *memNotifications) Requeue(ctx context.Context, id string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.records[id]
	if !ok {
		return entity.ErrNotFound
	}
	if n.Status != entity.NotificationFailed {
		return fmt.Errorf("%w: notification %s is %s", entity.ErrInvalidTransition, id, n.Status)
	}
	n.Status = entity.NotificationPending
	n.ScheduledFor = now
	n.LastError = ""
	return nil
}

// byKind returns every record of kind, whatever its status.
func (m *memNotifications) byKind(kind entity.NotificationKind) []*entity.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.Notification
	for _, n := range m.sorted() {
		if n.Kind == kind {
			cp := *n
			out = append(out, &cp)
		}
	}
	return out
}

func (m *memNotifications) status(id string) entity.NotificationStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[id].Status
}

type memUsers struct {
	mu    sync.Mutex
	users map[string]*entity.User

	findByIDsErr error
}

func newMemUsers(users ...*entity.User) *memUsers {
	m := &memUsers{users: make(map[string]*entity.User)}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *memUsers) Create(ctx context.Context, user *entity.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email && u.DeletedAt == nil {
			return entity.ErrDuplicateUser
		}
	}
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *memUsers) FindByID(ctx context.Context, id string) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok || u.DeletedAt != nil {
		return nil, entity.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) FindByIDs(ctx context.Context, ids []string) (map[string]*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findByIDsErr != nil {
		return nil, m.findByIDsErr
	}
	out := make(map[string]*entity.User, len(ids))
	for _, id := range ids {
		if u, ok := m.users[id]; ok && u.DeletedAt == nil {
			cp := *u
			out[id] = &cp
		}
	}
	return out, nil
}

func (m *memUsers) FindByVerificationToken(ctx context.Context, token string) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if token != "" && u.VerificationToken == token && u.DeletedAt == nil {
			cp := *u
			return &cp, nil
		}
	}
	return nil, entity.ErrNotFound
}

func (m *memUsers) MarkVerified(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return entity.ErrNotFound
	}
	u.EmailVerified = true
	u.VerifiedAt = &at
	return nil
}

func (m *memUsers) MarkUnsubscribed(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return entity.ErrNotFound
	}
	u.UnsubscribedAt = &at
	return nil
}

func (m *memUsers) Erase(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return entity.ErrNotFound
	}
	u.Email = "erased-" + id + "@invalid.local"
	u.VerificationToken = ""
	u.DeletedAt = &at
	return nil
}

func (m *memUsers) get(id string) *entity.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *m.users[id]
	return &cp
}

type memFlights struct {
	mu      sync.Mutex
	seq     int
	records map[string]*entity.FlightRecord
	updates int
}

func newMemFlights(records ...*entity.FlightRecord) *memFlights {
	m := &memFlights{records: make(map[string]*entity.FlightRecord)}
	for _, r := range records {
		m.records[r.ID] = r
	}
	return m
}

func (m *memFlights) FindByID(ctx context.Context, id string) (*entity.FlightRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return nil, entity.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memFlights) FindByKey(ctx context.Context, userID, flightNumber, flightDate string) (*entity.FlightRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.UserID == userID && r.FlightNumber == flightNumber && r.FlightDate == flightDate {
			cp := *r
			return &cp, nil
		}
	}
	return nil, entity.ErrNotFound
}

func (m *memFlights) FindByUser(ctx context.Context, userID string) ([]*entity.FlightRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.FlightRecord
	for _, r := range m.records {
		if r.UserID == userID {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memFlights) FindForRefresh(ctx context.Context, estimatedSince string, limit int) ([]*entity.FlightRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.FlightRecord
	for _, r := range m.records {
		estimated := r.Status == entity.FlightCompleted && r.Estimated && r.FlightDate >= estimatedSince
		if r.Status == entity.FlightTracking || estimated {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memFlights) Create(ctx context.Context, record *entity.FlightRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.UserID == record.UserID && r.FlightNumber == record.FlightNumber && r.FlightDate == record.FlightDate {
			return entity.ErrDuplicateFlight
		}
	}
	m.seq++
	record.ID = fmt.Sprintf("f%04d", m.seq)
	cp := *record
	m.records[record.ID] = &cp
	return nil
}

func (m *memFlights) Update(ctx context.Context, record *entity.FlightRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[record.ID]; !ok {
		return entity.ErrNotFound
	}
	cp := *record
	m.records[record.ID] = &cp
	m.updates++
	return nil
}

type memAirports map[string]*entity.Airport

func (m memAirports) GetByCode(ctx context.Context, code string) (*entity.Airport, error) {
	if a, ok := m[code]; ok {
		return a, nil
	}
	return nil, entity.ErrNotFound
}

func testAirports() memAirports {
	return memAirports{
		"STN": {Code: "STN", Name: "London Stansted", CountryCode: "GB", Latitude: 51.885, Longitude: 0.235},
		"DUB": {Code: "DUB", Name: "Dublin", CountryCode: "IE", Latitude: 53.4213, Longitude: -6.2701},
		"BCN": {Code: "BCN", Name: "Barcelona", CountryCode: "ES", Latitude: 41.2971, Longitude: 2.0785},
	}
}

type memAirlines map[string]*entity.Airline

func (m memAirlines) GetByCode(ctx context.Context, code string) (*entity.Airline, error) {
	if a, ok := m[code]; ok {
		return a, nil
	}
	return nil, entity.ErrNotFound
}

type stubProvider struct {
	mu     sync.Mutex
	report entity.FlightStatusReport
	err    error
	calls  int
}

func (p *stubProvider) Lookup(ctx context.Context, flightNumber, flightDate string) (*entity.FlightStatusReport, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	r := p.report
	return &r, nil
}

type fakeSender struct {
	mu    sync.Mutex
	sent  []entity.OutboundEmail
	fail  map[string]error
	block bool
}

func (s *fakeSender) Send(ctx context.Context, email entity.OutboundEmail) (string, error) {
	if s.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.fail[email.To]; ok {
		return "", err
	}
	s.sent = append(s.sent, email)
	return fmt.Sprintf("msg-%d", len(s.sent)), nil
}

func (s *fakeSender) recipients() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.sent))
	for _, e := range s.sent {
		out = append(out, e.To)
	}
	return out
}

type fakeLock struct {
	held     bool
	err      error
	released int
}

func (l *fakeLock) TryAcquire(ctx context.Context) (func(ctx context.Context) error, bool, error) {
	if l.err != nil {
		return nil, false, l.err
	}
	if l.held {
		return nil, false, nil
	}
	l.held = true
	return func(ctx context.Context) error {
		l.held = false
		l.released++
		return nil
	}, true, nil
}

type mapRouter map[entity.NotificationKind]NotificationTemplate

func (r mapRouter) Register(tmpl NotificationTemplate) { r[tmpl.Kind()] = tmpl }

func (r mapRouter) GetTemplate(kind entity.NotificationKind) NotificationTemplate { return r[kind] }

// plainTemplate renders the recipient and kind without any markup.
type plainTemplate struct {
	kind entity.NotificationKind
	err  error
}

func (p plainTemplate) Kind() entity.NotificationKind { return p.kind }

func (p plainTemplate) Render(msg entity.MessageContext) (string, string, error) {
	if p.err != nil {
		return "", "", p.err
	}
	if msg.Kind() != p.kind {
		return "", "", entity.ErrInvalidMessage
	}
	return string(p.kind), "<p>" + msg.Recipient() + "</p>", nil
}

func allTemplates() mapRouter {
	r := mapRouter{}
	for _, k := range []entity.NotificationKind{
		entity.KindVerification,
		entity.KindEligibilityResult,
		entity.KindFollowupFirst,
		entity.KindFollowupFinal,
	} {
		r.Register(plainTemplate{kind: k})
	}
	return r
}

var errStorageDown = errors.New("storage unavailable")
