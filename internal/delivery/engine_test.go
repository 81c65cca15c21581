package delivery

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"pastel/internal/capsule"
)

// fakeStore keeps capsule state in memory and mimics the conditional
// status transitions of the database-backed store.
type fakeStore struct {
	mu       sync.Mutex
	status   map[uint64]string
	updated  map[uint64]time.Time
	due      []capsule.Capsule
	logs     []capsule.DeliveryLog
	dueErr   error
	claimSeq []uint64
}

func newFakeStore(caps ...capsule.Capsule) *fakeStore {
	s := &fakeStore{
		status:  map[uint64]string{},
		updated: map[uint64]time.Time{},
	}
	for _, c := range caps {
		s.due = append(s.due, c)
		s.status[c.ID] = c.Status
		s.updated[c.ID] = time.Now()
	}
	return s
}

func (s *fakeStore) Due(ctx context.Context, now time.Time) ([]capsule.Capsule, error) {
	if s.dueErr != nil {
		return nil, s.dueErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []capsule.Capsule
	for _, c := range s.due {
		if s.status[c.ID] == capsule.StatusScheduled {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].DeliveryDate.Before(out[j].DeliveryDate)
	})
	return out, nil
}

func (s *fakeStore) FailedDue(ctx context.Context, now time.Time) ([]capsule.Capsule, error) {
	if s.dueErr != nil {
		return nil, s.dueErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []capsule.Capsule
	for _, c := range s.due {
		if s.status[c.ID] == capsule.StatusFailed {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *fakeStore) Claim(ctx context.Context, id uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.claimSeq = append(s.claimSeq, id)
	if s.status[id] != capsule.StatusScheduled {
		return false, nil
	}
	s.status[id] = capsule.StatusDelivering
	s.updated[id] = time.Now()
	return true, nil
}

func (s *fakeStore) RequeueStale(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, st := range s.status {
		if st == capsule.StatusDelivering && s.updated[id].Before(before) {
			s.status[id] = capsule.StatusScheduled
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) MarkDelivered(ctx context.Context, id uint64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[id] = capsule.StatusDelivered
	return nil
}

func (s *fakeStore) MarkFailed(ctx context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[id] = capsule.StatusFailed
	return nil
}

func (s *fakeStore) Reschedule(ctx context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status[id] == capsule.StatusFailed {
		s.status[id] = capsule.StatusScheduled
	}
	return nil
}

func (s *fakeStore) AppendLog(ctx context.Context, entry capsule.DeliveryLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, entry)
	return nil
}

type fakeIdentity struct {
	contacts map[uint64]Contact
}

func (f *fakeIdentity) Resolve(ctx context.Context, userID uint64) (Contact, error) {
	c, ok := f.contacts[userID]
	if !ok {
		return Contact{}, nil
	}
	return c, nil
}

// fakeNotifier fails sends whose capsule ID appears in failIDs.
type fakeNotifier struct {
	mu      sync.Mutex
	sent    []uint64
	failIDs map[uint64]bool
	delay   time.Duration
}

func (f *fakeNotifier) Send(ctx context.Context, n Notification) error {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.failIDs[n.Capsule.ID] {
		return errors.New("smtp unavailable")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, n.Capsule.ID)
	return nil
}

func scheduledCapsule(id, userID uint64, due time.Time) capsule.Capsule {
	return capsule.Capsule{
		ID:           id,
		UserID:       userID,
		Title:        fmt.Sprintf("capsule %d", id),
		Content:      "hello future self",
		DeliveryDate: due,
		Status:       capsule.StatusScheduled,
	}
}

func testEngine(store *fakeStore, notifier *fakeNotifier) *Engine {
	identity := &fakeIdentity{contacts: map[uint64]Contact{
		1: {Email: "one@example.com", Name: "One"},
		2: {Email: "two@example.com", Name: "Two"},
		3: {Email: "three@example.com", Name: "Three"},
	}}
	return NewEngine(store, identity, notifier, time.Second)
}

func TestProcessPending_OneFailureDoesNotAbortBatch(t *testing.T) {
	due := time.Now().Add(-time.Minute)
	store := newFakeStore(
		scheduledCapsule(1, 1, due),
		scheduledCapsule(2, 2, due),
		scheduledCapsule(3, 3, due),
	)
	notifier := &fakeNotifier{failIDs: map[uint64]bool{2: true}}

	res := testEngine(store, notifier).ProcessPending(context.Background())

	if res.Success {
		t.Error("success = true with a failed capsule")
	}
	if res.Processed != 2 || res.Failed != 1 {
		t.Fatalf("processed/failed = %d/%d, want 2/1", res.Processed, res.Failed)
	}
	if len(res.Errors) != 1 || !strings.Contains(res.Errors[0], "capsule 2") {
		t.Errorf("errors = %v", res.Errors)
	}
	if store.status[1] != capsule.StatusDelivered || store.status[3] != capsule.StatusDelivered {
		t.Errorf("statuses = %v, want 1 and 3 delivered", store.status)
	}
	if store.status[2] != capsule.StatusFailed {
		t.Errorf("capsule 2 status = %q, want failed", store.status[2])
	}
}

func TestProcessPending_WritesDeliveryLogs(t *testing.T) {
	due := time.Now().Add(-time.Minute)
	store := newFakeStore(scheduledCapsule(1, 1, due), scheduledCapsule(2, 2, due))
	notifier := &fakeNotifier{failIDs: map[uint64]bool{2: true}}

	testEngine(store, notifier).ProcessPending(context.Background())

	if len(store.logs) != 2 {
		t.Fatalf("logs = %d, want 2", len(store.logs))
	}
	byCapsule := map[uint64]capsule.DeliveryLog{}
	for _, l := range store.logs {
		byCapsule[l.CapsuleID] = l
	}
	if byCapsule[1].Status != "success" || byCapsule[1].Error != nil {
		t.Errorf("capsule 1 log = %+v", byCapsule[1])
	}
	if byCapsule[2].Status != "failed" || byCapsule[2].Error == nil {
		t.Errorf("capsule 2 log = %+v", byCapsule[2])
	}
}

func TestProcessPending_ClaimedCapsuleIsSkipped(t *testing.T) {
	due := time.Now().Add(-time.Minute)
	c := scheduledCapsule(1, 1, due)
	store := newFakeStore(c)
	// Simulate a concurrent sweep returning the same capsule twice in one
	// due listing; only the first claim may send.
	store.due = append(store.due, c)
	notifier := &fakeNotifier{}

	res := testEngine(store, notifier).ProcessPending(context.Background())

	if res.Processed != 1 || res.Failed != 0 {
		t.Fatalf("processed/failed = %d/%d, want 1/0", res.Processed, res.Failed)
	}
	if len(notifier.sent) != 1 {
		t.Errorf("sends = %d, want exactly 1", len(notifier.sent))
	}
}

func TestProcessPending_CriticalQueryError(t *testing.T) {
	store := newFakeStore()
	store.dueErr = errors.New("connection refused")

	res := testEngine(store, &fakeNotifier{}).ProcessPending(context.Background())

	if res.Success {
		t.Error("success = true after query error")
	}
	if len(res.Errors) != 1 || !strings.HasPrefix(res.Errors[0], "critical:") {
		t.Errorf("errors = %v, want single critical entry", res.Errors)
	}
	if res.Processed != 0 || res.Failed != 0 {
		t.Errorf("processed/failed = %d/%d, want 0/0", res.Processed, res.Failed)
	}
}

func TestProcessPending_MissingContactFails(t *testing.T) {
	due := time.Now().Add(-time.Minute)
	store := newFakeStore(scheduledCapsule(1, 99, due)) // user 99 has no contact

	res := testEngine(store, &fakeNotifier{}).ProcessPending(context.Background())

	if res.Failed != 1 {
		t.Fatalf("failed = %d, want 1", res.Failed)
	}
	if !strings.Contains(res.Errors[0], "no email address") {
		t.Errorf("errors = %v", res.Errors)
	}
	if store.status[1] != capsule.StatusFailed {
		t.Errorf("status = %q, want failed", store.status[1])
	}
}

func TestProcessPending_SendTimeout(t *testing.T) {
	due := time.Now().Add(-time.Minute)
	store := newFakeStore(scheduledCapsule(1, 1, due))
	notifier := &fakeNotifier{delay: 200 * time.Millisecond}

	eng := testEngine(store, notifier)
	eng.SendTimeout = 10 * time.Millisecond
	res := eng.ProcessPending(context.Background())

	if res.Failed != 1 {
		t.Fatalf("failed = %d, want 1", res.Failed)
	}
	if store.status[1] != capsule.StatusFailed {
		t.Errorf("status = %q, want failed", store.status[1])
	}
}

func TestProcessPending_DeliversEarliestFirst(t *testing.T) {
	now := time.Now()
	store := newFakeStore(
		scheduledCapsule(1, 1, now.Add(-time.Minute)),
		scheduledCapsule(2, 2, now.Add(-3*time.Minute)),
		scheduledCapsule(3, 3, now.Add(-2*time.Minute)),
	)
	notifier := &fakeNotifier{}

	res := testEngine(store, notifier).ProcessPending(context.Background())

	if res.Processed != 3 {
		t.Fatalf("processed = %d, want 3", res.Processed)
	}
	want := []uint64{2, 3, 1}
	if len(notifier.sent) != len(want) {
		t.Fatalf("sends = %v, want %v", notifier.sent, want)
	}
	for i, id := range want {
		if notifier.sent[i] != id {
			t.Fatalf("send order = %v, want %v", notifier.sent, want)
		}
	}
}

// A sweep killed mid-send leaves its capsule in delivering; the next
// sweep must take the claim back once it has gone stale.
func TestProcessPending_RecoversStaleClaims(t *testing.T) {
	due := time.Now().Add(-time.Hour)
	stale := scheduledCapsule(1, 1, due)
	fresh := scheduledCapsule(2, 2, due)
	store := newFakeStore(stale, fresh)
	store.status[1] = capsule.StatusDelivering
	store.updated[1] = time.Now().Add(-10 * time.Minute)
	store.status[2] = capsule.StatusDelivering
	store.updated[2] = time.Now()
	notifier := &fakeNotifier{}

	res := testEngine(store, notifier).ProcessPending(context.Background())

	if res.Processed != 1 {
		t.Fatalf("processed = %d, want 1", res.Processed)
	}
	if store.status[1] != capsule.StatusDelivered {
		t.Errorf("stale capsule status = %q, want delivered", store.status[1])
	}
	// The fresh claim still belongs to its sweep.
	if store.status[2] != capsule.StatusDelivering {
		t.Errorf("fresh capsule status = %q, want delivering", store.status[2])
	}
	if len(notifier.sent) != 1 || notifier.sent[0] != 1 {
		t.Errorf("sends = %v, want capsule 1 only", notifier.sent)
	}
}

func TestRetryFailed_ReschedulesThenDelivers(t *testing.T) {
	due := time.Now().Add(-time.Minute)
	c := scheduledCapsule(1, 1, due)
	c.Status = capsule.StatusFailed
	store := newFakeStore(c)
	notifier := &fakeNotifier{}

	res := testEngine(store, notifier).RetryFailed(context.Background())

	if !res.Success || res.Processed != 1 {
		t.Fatalf("result = %+v, want 1 processed", res)
	}
	if store.status[1] != capsule.StatusDelivered {
		t.Errorf("status = %q, want delivered", store.status[1])
	}
	// Reschedule must precede the claim or the claim can never win.
	if len(store.claimSeq) != 1 {
		t.Fatalf("claims = %v, want one", store.claimSeq)
	}
}

func TestRetryFailed_IgnoresScheduledCapsules(t *testing.T) {
	due := time.Now().Add(-time.Minute)
	store := newFakeStore(scheduledCapsule(1, 1, due))

	res := testEngine(store, &fakeNotifier{}).RetryFailed(context.Background())

	if res.Processed != 0 || res.Failed != 0 {
		t.Fatalf("result = %+v, want empty pass", res)
	}
	if store.status[1] != capsule.StatusScheduled {
		t.Errorf("status = %q, want untouched scheduled", store.status[1])
	}
}
