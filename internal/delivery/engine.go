package delivery

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"pastel/internal/capsule"
)

var ErrNoContact = errors.New("no email address for user")

// Result summarizes one delivery or retry pass.
type Result struct {
	Success   bool     `json:"success"`
	Processed int      `json:"processed"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors"`
}

// Store is the slice of the persistence gateway the engine needs.
type Store interface {
	Due(ctx context.Context, now time.Time) ([]capsule.Capsule, error)
	FailedDue(ctx context.Context, now time.Time) ([]capsule.Capsule, error)
	// Claim transitions scheduled -> delivering; false means another
	// sweep already owns the capsule.
	Claim(ctx context.Context, id uint64) (bool, error)
	MarkDelivered(ctx context.Context, id uint64, at time.Time) error
	MarkFailed(ctx context.Context, id uint64) error
	// Reschedule resets failed -> scheduled ahead of a retry attempt.
	Reschedule(ctx context.Context, id uint64) error
	// RequeueStale returns delivering capsules whose claim stopped
	// making progress before the cutoff to scheduled. A sweep killed
	// mid-send otherwise strands its claims forever.
	RequeueStale(ctx context.Context, before time.Time) (int64, error)
	AppendLog(ctx context.Context, entry capsule.DeliveryLog) error
}

type Contact struct {
	Email string
	Name  string
}

// Identity resolves a capsule owner's contact details.
type Identity interface {
	Resolve(ctx context.Context, userID uint64) (Contact, error)
}

type Notification struct {
	To      Contact
	Capsule capsule.Capsule
}

type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

type Engine struct {
	Store    Store
	Identity Identity
	Notifier Notifier

	// SendTimeout bounds each outbound resolve+send so a hung capsule
	// cannot stall the batch.
	SendTimeout time.Duration

	// StaleClaimAfter is how long a delivering claim may sit without
	// progress before a later sweep takes it back.
	StaleClaimAfter time.Duration

	now func() time.Time
}

func NewEngine(store Store, identity Identity, notifier Notifier, sendTimeout time.Duration) *Engine {
	if sendTimeout <= 0 {
		sendTimeout = 30 * time.Second
	}
	return &Engine{
		Store:           store,
		Identity:        identity,
		Notifier:        notifier,
		SendTimeout:     sendTimeout,
		StaleClaimAfter: 5 * time.Minute,
		now:             time.Now,
	}
}

// ProcessPending delivers every scheduled capsule whose time has arrived,
// earliest due first. One capsule's failure never aborts the batch.
func (e *Engine) ProcessPending(ctx context.Context) Result {
	res := Result{Success: true, Errors: []string{}}

	// Reclaim capsules a dead sweep left in delivering before listing
	// what is due, so they rejoin this very pass.
	if n, err := e.Store.RequeueStale(ctx, e.now().Add(-e.StaleClaimAfter)); err != nil {
		log.Printf("[delivery] requeue stale claims: %v\n", err)
	} else if n > 0 {
		log.Printf("[delivery] requeued %d stale claims\n", n)
	}

	caps, err := e.Store.Due(ctx, e.now())
	if err != nil {
		res.Success = false
		res.Errors = append(res.Errors, fmt.Sprintf("critical: %v", err))
		return res
	}

	log.Printf("[delivery] %d capsules ready for delivery\n", len(caps))

	for _, c := range caps {
		claimed, err := e.Store.Claim(ctx, c.ID)
		if err != nil {
			e.recordFailure(ctx, &res, c, err)
			continue
		}
		if !claimed {
			// Another invocation owns this capsule.
			continue
		}
		e.attempt(ctx, &res, c)
	}

	if res.Failed > 0 {
		res.Success = false
	}
	log.Printf("[delivery] done: %d delivered, %d failed\n", res.Processed, res.Failed)
	return res
}

// RetryFailed resets failed, due capsules to scheduled and runs them
// through the same per-capsule delivery path.
func (e *Engine) RetryFailed(ctx context.Context) Result {
	res := Result{Success: true, Errors: []string{}}

	caps, err := e.Store.FailedDue(ctx, e.now())
	if err != nil {
		res.Success = false
		res.Errors = append(res.Errors, fmt.Sprintf("critical: %v", err))
		return res
	}

	for _, c := range caps {
		if err := e.Store.Reschedule(ctx, c.ID); err != nil {
			e.recordFailure(ctx, &res, c, err)
			continue
		}
		claimed, err := e.Store.Claim(ctx, c.ID)
		if err != nil {
			e.recordFailure(ctx, &res, c, err)
			continue
		}
		if !claimed {
			continue
		}
		e.attempt(ctx, &res, c)
	}

	if res.Failed > 0 {
		res.Success = false
	}
	return res
}

func (e *Engine) attempt(ctx context.Context, res *Result, c capsule.Capsule) {
	if err := e.deliver(ctx, c); err != nil {
		e.recordFailure(ctx, res, c, err)
		return
	}
	res.Processed++
}

func (e *Engine) deliver(ctx context.Context, c capsule.Capsule) error {
	sendCtx, cancel := context.WithTimeout(ctx, e.SendTimeout)
	defer cancel()

	contact, err := e.Identity.Resolve(sendCtx, c.UserID)
	if err != nil {
		return err
	}
	if contact.Email == "" {
		return fmt.Errorf("%w %d", ErrNoContact, c.UserID)
	}

	if err := e.Notifier.Send(sendCtx, Notification{To: contact, Capsule: c}); err != nil {
		return fmt.Errorf("email delivery failed: %w", err)
	}

	now := e.now()
	if err := e.Store.MarkDelivered(ctx, c.ID, now); err != nil {
		return err
	}
	if err := e.Store.AppendLog(ctx, capsule.DeliveryLog{
		CapsuleID: c.ID,
		UserID:    c.UserID,
		Status:    "success",
		Method:    "email",
		CreatedAt: now,
	}); err != nil {
		log.Printf("[delivery] failed to log delivery of capsule %d: %v\n", c.ID, err)
	}
	return nil
}

func (e *Engine) recordFailure(ctx context.Context, res *Result, c capsule.Capsule, cause error) {
	log.Printf("[delivery] capsule %d failed: %v\n", c.ID, cause)
	res.Failed++
	res.Errors = append(res.Errors, fmt.Sprintf("capsule %d: %v", c.ID, cause))

	if err := e.Store.MarkFailed(ctx, c.ID); err != nil {
		log.Printf("[delivery] failed to mark capsule %d failed: %v\n", c.ID, err)
	}
	msg := cause.Error()
	if err := e.Store.AppendLog(ctx, capsule.DeliveryLog{
		CapsuleID: c.ID,
		UserID:    c.UserID,
		Status:    "failed",
		Method:    "email",
		Error:     &msg,
		CreatedAt: e.now(),
	}); err != nil {
		log.Printf("[delivery] failed to log failure of capsule %d: %v\n", c.ID, err)
	}
}
