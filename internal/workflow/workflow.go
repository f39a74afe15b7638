// Package workflow is the request-scoped entry point to the memo, agenda,
// document and meeting engine. Every call runs under a deadline; events and
// notifications follow a successful commit.
package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zulandar/docket/internal/apperr"
	"github.com/zulandar/docket/internal/blob"
	"github.com/zulandar/docket/internal/config"
	"github.com/zulandar/docket/internal/events"
	"github.com/zulandar/docket/internal/identity"
	"github.com/zulandar/docket/internal/metrics"
	"gorm.io/gorm"
)

// Service binds the engine to its collaborators.
type Service struct {
	DB     *gorm.DB
	Blobs  blob.Store
	Events events.Publisher

	StoreTimeout time.Duration
	BlobTimeout  time.Duration
}

// New returns a service using the configured timeouts. A nil publisher
// logs events.
func New(db *gorm.DB, blobs blob.Store, pub events.Publisher, timeouts config.TimeoutConfig) *Service {
	if pub == nil {
		pub = events.LogPublisher{}
	}
	return &Service{
		DB:           db,
		Blobs:        blobs,
		Events:       pub,
		StoreTimeout: timeouts.Store,
		BlobTimeout:  timeouts.Blob,
	}
}

func bound(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// run executes fn under a deadline and records the outcome. Failures caused
// by the deadline surface as timeout errors.
func (s *Service) run(ctx context.Context, op string, timeout time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := bound(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && apperr.KindOf(err) != apperr.KindTimeout {
		err = apperr.Timeout(op, err)
	}
	metrics.RecordOperation(op, err, time.Since(start))
	return err
}

// after returns a context for post-commit work that survives the caller's
// cancellation but is still bounded.
func (s *Service) after(ctx context.Context) (context.Context, context.CancelFunc) {
	return bound(context.WithoutCancel(ctx), s.StoreTimeout)
}

func (s *Service) publish(ctx context.Context, typ, resource string, id uint, actor *identity.Actor, data any) {
	ctx, cancel := s.after(ctx)
	defer cancel()

	e := events.Event{Type: typ, Resource: resource, ID: id, At: time.Now().UTC(), Data: data}
	if actor != nil {
		e.ActorID = actor.ID
	}
	err := s.Events.Publish(ctx, e)
	metrics.RecordEvent(typ, err)
	if err != nil {
		logrus.WithFields(logrus.Fields{"type": typ, "id": id, "error": err}).Warn("workflow: event publish failed")
	}
}

func requireActor(op string, actor *identity.Actor) error {
	if actor == nil {
		return apperr.Unauthenticated(op)
	}
	return nil
}
