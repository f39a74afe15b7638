// Package notify delivers in-app notifications about memo lifecycle events.
package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/zulandar/docket/internal/apperr"
	"github.com/zulandar/docket/internal/identity"
	"github.com/zulandar/docket/internal/models"
	"gorm.io/gorm"
)

// SendOpts holds optional parameters for a notification.
type SendOpts struct {
	MemoID   *uint
	Priority string // "normal" (default), "urgent"
}

// Send stores a notification for a user.
func Send(ctx context.Context, db *gorm.DB, userID uint, subject, body string, opts SendOpts) (*models.Notification, error) {
	if userID == 0 {
		return nil, fmt.Errorf("notify: user is required")
	}
	if subject == "" {
		return nil, fmt.Errorf("notify: subject is required")
	}
	priority := opts.Priority
	if priority == "" {
		priority = "normal"
	}

	n := models.Notification{
		UserID:    userID,
		MemoID:    opts.MemoID,
		Subject:   subject,
		Body:      body,
		Priority:  priority,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(&n).Error; err != nil {
		return nil, fmt.Errorf("notify: send to %d: %w", userID, err)
	}
	return &n, nil
}

// Inbox returns a user's unacknowledged notifications, oldest first.
func Inbox(ctx context.Context, db *gorm.DB, userID uint) ([]models.Notification, error) {
	if userID == 0 {
		return nil, fmt.Errorf("notify: user is required")
	}
	out := []models.Notification{}
	if err := db.WithContext(ctx).Where("user_id = ? AND acknowledged = ?", userID, false).
		Order("created_at ASC").Order("id ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("notify: inbox %d: %w", userID, err)
	}
	return out, nil
}

// Acknowledge marks one of the user's notifications as read.
func Acknowledge(ctx context.Context, db *gorm.DB, id, userID uint) error {
	const op = "notify.acknowledge"
	result := db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("acknowledged", true)
	if result.Error != nil {
		return apperr.FromStore(op, fmt.Errorf("notify: acknowledge %d: %w", id, result.Error))
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound(op, "notification", id)
	}
	return nil
}

const (
	submittedSubject = "Memo submitted: {{.Name}}"
	submittedBody    = "{{.Actor}} submitted memo #{{.ID}} ({{.Priority}} priority) for review."
	statusSubject    = "Memo {{.Status}}: {{.Name}}"
	statusBody       = "{{.Actor}} moved memo #{{.ID}} from {{.Previous}} to {{.Status}}."
)

// render replaces placeholders in tmpl with memo values.
func render(tmpl string, m *models.Memo, previous string, actor *identity.Actor) string {
	who := "Someone"
	if actor != nil && actor.DisplayName != "" {
		who = actor.DisplayName
	}
	r := strings.NewReplacer(
		"{{.Name}}", m.Name,
		"{{.ID}}", strconv.FormatUint(uint64(m.ID), 10),
		"{{.Status}}", strings.ReplaceAll(m.Status, "_", " "),
		"{{.Previous}}", strings.ReplaceAll(previous, "_", " "),
		"{{.Priority}}", m.Priority,
		"{{.Actor}}", who,
	)
	return r.Replace(tmpl)
}

func priorityFor(m *models.Memo) string {
	if m.Priority == "urgent" {
		return "urgent"
	}
	return "normal"
}

// Recipients returns who should hear about a memo moving from previous to
// its current status: every admin other than the actor when it becomes
// submitted, and the creator when someone else changes its status.
func Recipients(ctx context.Context, db *gorm.DB, m *models.Memo, previous string, actor *identity.Actor) (admins []uint, notifyCreator bool, err error) {
	if m.Status == previous {
		return nil, false, nil
	}
	if m.Status == "submitted" {
		ids, err := identity.Admins(ctx, db)
		if err != nil {
			return nil, false, err
		}
		for _, id := range ids {
			if actor == nil || id != actor.ID {
				admins = append(admins, id)
			}
		}
	}
	notifyCreator = actor != nil && actor.ID != m.CreatedBy
	return admins, notifyCreator, nil
}

// MemoStatusChanged sends the notifications for a memo status change and
// returns how many were sent. previous is "" for a newly created memo.
func MemoStatusChanged(ctx context.Context, db *gorm.DB, m *models.Memo, previous string, actor *identity.Actor) (int, error) {
	admins, notifyCreator, err := Recipients(ctx, db, m, previous, actor)
	if err != nil {
		return 0, err
	}
	opts := SendOpts{MemoID: &m.ID, Priority: priorityFor(m)}
	sent := 0
	for _, id := range admins {
		if _, err := Send(ctx, db, id, render(submittedSubject, m, previous, actor), render(submittedBody, m, previous, actor), opts); err != nil {
			return sent, err
		}
		sent++
	}
	if notifyCreator && previous != "" {
		if _, err := Send(ctx, db, m.CreatedBy, render(statusSubject, m, previous, actor), render(statusBody, m, previous, actor), opts); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}
