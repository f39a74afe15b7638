package workflow

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/zulandar/docket/internal/apperr"
	"github.com/zulandar/docket/internal/events"
	"github.com/zulandar/docket/internal/identity"
	"github.com/zulandar/docket/internal/ledger"
	"github.com/zulandar/docket/internal/memo"
	"github.com/zulandar/docket/internal/models"
	"github.com/zulandar/docket/internal/notify"
)

// CreateMemo creates a memo. affected holds composite entity identifiers
// such as "ministry_4".
func (s *Service) CreateMemo(ctx context.Context, actor *identity.Actor, d memo.Draft, affected []string) (*memo.Created, error) {
	const op = "memo.create"
	var out *memo.Created
	err := s.run(ctx, op, s.StoreTimeout, func(ctx context.Context) error {
		if err := requireActor(op, actor); err != nil {
			return err
		}
		refs, err := ledger.ParseRefs(op, affected)
		if err != nil {
			var ae *apperr.Error
			if errors.As(err, &ae) {
				return apperr.Validation(op, append(d.Validate(), ae.Violations...)...)
			}
			return err
		}
		out, err = memo.Create(ctx, s.DB, d, refs, actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.MemoCreated, "memo", out.ID, actor, map[string]string{"status": out.Status})
	s.notifyStatus(ctx, &out.Memo, "", actor)
	return out, nil
}

// UpdateMemo merges patch into a memo. A non-nil affected replaces the whole
// affected-entity set; its malformed identifiers are reported together with
// the patch's own violations.
func (s *Service) UpdateMemo(ctx context.Context, actor *identity.Actor, id uint, patch memo.Patch, affected *[]string) (*memo.Updated, error) {
	const op = "memo.update"
	var out *memo.Updated
	if affected != nil {
		patch.AffectedEntities = affected
	}
	err := s.run(ctx, op, s.StoreTimeout, func(ctx context.Context) error {
		var err error
		out, err = memo.Update(ctx, s.DB, id, patch, actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.MemoUpdated, "memo", id, actor, map[string]string{
		"status":          out.Status,
		"previous_status": out.PreviousStatus,
	})
	s.notifyStatus(ctx, &out.Memo, out.PreviousStatus, actor)
	return out, nil
}

// DeleteMemo deletes a draft memo owned by actor.
func (s *Service) DeleteMemo(ctx context.Context, actor *identity.Actor, id uint) error {
	err := s.run(ctx, "memo.delete", s.StoreTimeout, func(ctx context.Context) error {
		return memo.Delete(ctx, s.DB, id, actor)
	})
	if err != nil {
		return err
	}
	s.publish(ctx, events.MemoDeleted, "memo", id, actor, nil)
	return nil
}

// GetMemo returns a memo with its affected entities.
func (s *Service) GetMemo(ctx context.Context, id uint) (*memo.View, error) {
	var out *memo.View
	err := s.run(ctx, "memo.get", s.StoreTimeout, func(ctx context.Context) error {
		var err error
		out, err = memo.Get(ctx, s.DB, id)
		return err
	})
	return out, err
}

// ListMemos returns memos matching f.
func (s *Service) ListMemos(ctx context.Context, f memo.Filter) ([]models.Memo, error) {
	var out []models.Memo
	err := s.run(ctx, "memo.list", s.StoreTimeout, func(ctx context.Context) error {
		var err error
		out, err = memo.List(ctx, s.DB, f)
		return err
	})
	return out, err
}

func (s *Service) notifyStatus(ctx context.Context, m *models.Memo, previous string, actor *identity.Actor) {
	ctx, cancel := s.after(ctx)
	defer cancel()
	if _, err := notify.MemoStatusChanged(ctx, s.DB, m, previous, actor); err != nil {
		logrus.WithFields(logrus.Fields{"memo_id": m.ID, "error": err}).Warn("workflow: notification failed")
	}
}

// Inbox returns the actor's unread notifications.
func (s *Service) Inbox(ctx context.Context, actor *identity.Actor) ([]models.Notification, error) {
	const op = "notify.inbox"
	var out []models.Notification
	err := s.run(ctx, op, s.StoreTimeout, func(ctx context.Context) error {
		if err := requireActor(op, actor); err != nil {
			return err
		}
		var err error
		out, err = notify.Inbox(ctx, s.DB, actor.ID)
		return apperr.FromStore(op, err)
	})
	return out, err
}

// Acknowledge marks one of the actor's notifications as read.
func (s *Service) Acknowledge(ctx context.Context, actor *identity.Actor, id uint) error {
	const op = "notify.acknowledge"
	return s.run(ctx, op, s.StoreTimeout, func(ctx context.Context) error {
		if err := requireActor(op, actor); err != nil {
			return err
		}
		return notify.Acknowledge(ctx, s.DB, id, actor.ID)
	})
}
