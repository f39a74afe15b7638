// Package meeting owns meeting records and participants, and composes the
// full meeting view from the agenda.
package meeting

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zulandar/docket/internal/agenda"
	"github.com/zulandar/docket/internal/apperr"
	"github.com/zulandar/docket/internal/blob"
	"github.com/zulandar/docket/internal/document"
	"github.com/zulandar/docket/internal/identity"
	"github.com/zulandar/docket/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Meeting statuses.
const (
	StatusScheduled  = "scheduled"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

var validStatuses = map[string]bool{
	StatusScheduled: true, StatusInProgress: true, StatusCompleted: true, StatusCancelled: true,
}

const defaultDuration = 60

// Record is the full set of caller-supplied meeting fields.
type Record struct {
	Name            string     `json:"name"`
	Type            string     `json:"type"`
	StartAt         time.Time  `json:"start_at"`
	DurationMinutes int        `json:"duration_minutes"`
	EndedAt         *time.Time `json:"ended_at"`
	Location        string     `json:"location"`
	ChairID         *uint      `json:"chair_id"`
	Status          string     `json:"status"`
	Description     string     `json:"description"`
	Color           string     `json:"color"`
	ApprovedBy      *uint      `json:"approved_by"`
}

// Participant is a meeting attendee.
type Participant struct {
	UserID      uint   `json:"user_id"`
	DisplayName string `json:"display_name"`
}

// View is the composed meeting read.
type View struct {
	models.Meeting
	ChairName    string        `json:"chair_name,omitempty"`
	CreatorName  string        `json:"creator_name,omitempty"`
	ApproverName string        `json:"approver_name,omitempty"`
	Participants []Participant `json:"participants"`
	Agenda       []agenda.Item `json:"agenda"`
}

// Summary is a meeting with its participant count.
type Summary struct {
	models.Meeting
	ParticipantCount int64 `json:"participant_count"`
}

// Filter narrows List. Date matches meetings starting on that calendar day
// in the date's location.
type Filter struct {
	Date *time.Time
	Type string
}

func (r Record) validate(requireStatus bool) []string {
	var errs []string
	if strings.TrimSpace(r.Name) == "" {
		errs = append(errs, "name is required")
	}
	if strings.TrimSpace(r.Type) == "" {
		errs = append(errs, "type is required")
	}
	if r.StartAt.IsZero() {
		errs = append(errs, "start_at is required")
	}
	if strings.TrimSpace(r.Location) == "" {
		errs = append(errs, "location is required")
	}
	switch {
	case r.Status == "" && requireStatus:
		errs = append(errs, "status is required")
	case r.Status != "" && !validStatuses[r.Status]:
		errs = append(errs, fmt.Sprintf("status: unknown status %q", r.Status))
	}
	if r.DurationMinutes < 0 {
		errs = append(errs, "duration_minutes cannot be negative")
	}
	if r.EndedAt != nil && !r.StartAt.IsZero() && r.EndedAt.Before(r.StartAt) {
		errs = append(errs, "ended_at is before start_at")
	}
	return errs
}

func (r Record) apply(m *models.Meeting) {
	m.Name = strings.TrimSpace(r.Name)
	m.Type = strings.TrimSpace(r.Type)
	m.StartAt = r.StartAt.UTC()
	m.DurationMinutes = r.DurationMinutes
	if m.DurationMinutes == 0 {
		m.DurationMinutes = defaultDuration
	}
	m.EndedAt = r.EndedAt
	m.Location = strings.TrimSpace(r.Location)
	m.ChairID = r.ChairID
	m.Status = r.Status
	m.Description = r.Description
	m.Color = r.Color
	m.ApprovedBy = r.ApprovedBy
}

func checkParticipants(ids []uint) []string {
	for _, id := range ids {
		if id == 0 {
			return []string{"participants: user id cannot be zero"}
		}
	}
	return nil
}

// Create persists a meeting and its initial participants.
func Create(ctx context.Context, db *gorm.DB, r Record, participants []uint, actor *identity.Actor) (*models.Meeting, error) {
	const op = "meeting.create"
	errs := append(r.validate(false), checkParticipants(participants)...)
	if len(errs) > 0 {
		return nil, apperr.Validation(op, errs...)
	}
	if actor == nil {
		return nil, apperr.Unauthenticated(op)
	}
	if r.Status == "" {
		r.Status = StatusScheduled
	}

	m := models.Meeting{CreatedBy: actor.ID}
	r.apply(&m)
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&m).Error; err != nil {
			return fmt.Errorf("meeting: create: %w", err)
		}
		return replaceParticipants(tx, m.ID, participants)
	})
	if err != nil {
		return nil, apperr.FromStore(op, err)
	}
	return &m, nil
}

func find(ctx context.Context, db *gorm.DB, op string, id uint) (*models.Meeting, error) {
	var m models.Meeting
	if err := db.WithContext(ctx).First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound(op, "meeting", id)
		}
		return nil, apperr.FromStore(op, fmt.Errorf("meeting: get %d: %w", id, err))
	}
	return &m, nil
}

// Get composes a meeting with display names, participants and agenda. If
// the agenda cannot be read the view is returned with an empty agenda.
func Get(ctx context.Context, db *gorm.DB, id uint) (*View, error) {
	const op = "meeting.get"
	m, err := find(ctx, db, op, id)
	if err != nil {
		return nil, err
	}

	userIDs, err := participantIDs(ctx, db, id)
	if err != nil {
		return nil, apperr.FromStore(op, err)
	}
	lookup := append([]uint{m.CreatedBy}, userIDs...)
	if m.ChairID != nil {
		lookup = append(lookup, *m.ChairID)
	}
	if m.ApprovedBy != nil {
		lookup = append(lookup, *m.ApprovedBy)
	}
	names, err := identity.DisplayNames(ctx, db, lookup)
	if err != nil {
		return nil, apperr.FromStore(op, err)
	}

	v := &View{Meeting: *m, CreatorName: names[m.CreatedBy], Participants: make([]Participant, 0, len(userIDs))}
	if m.ChairID != nil {
		v.ChairName = names[*m.ChairID]
	}
	if m.ApprovedBy != nil {
		v.ApproverName = names[*m.ApprovedBy]
	}
	for _, uid := range userIDs {
		v.Participants = append(v.Participants, Participant{UserID: uid, DisplayName: names[uid]})
	}

	items, err := agenda.List(ctx, db, id)
	if err != nil {
		logrus.WithFields(logrus.Fields{"meeting_id": id, "error": err}).
			Warn("meeting: agenda unavailable, returning meeting without agenda")
		items = []agenda.Item{}
	}
	v.Agenda = items
	return v, nil
}

// List returns meetings matching f with participant counts, latest start
// first.
func List(ctx context.Context, db *gorm.DB, f Filter) ([]Summary, error) {
	const op = "meeting.list"
	q := db.WithContext(ctx).Model(&models.Meeting{})
	if f.Date != nil {
		d := *f.Date
		day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location())
		q = q.Where("start_at >= ? AND start_at < ?", day.UTC(), day.AddDate(0, 0, 1).UTC())
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	var meetings []models.Meeting
	if err := q.Order("start_at DESC").Order("id DESC").Find(&meetings).Error; err != nil {
		return nil, apperr.FromStore(op, fmt.Errorf("meeting: list: %w", err))
	}

	out := make([]Summary, len(meetings))
	if len(meetings) == 0 {
		return out, nil
	}
	ids := make([]uint, len(meetings))
	for i, m := range meetings {
		ids[i] = m.ID
	}
	var counts []struct {
		MeetingID uint
		N         int64
	}
	err := db.WithContext(ctx).Model(&models.MeetingParticipant{}).
		Select("meeting_id, COUNT(*) AS n").Where("meeting_id IN ?", ids).
		Group("meeting_id").Scan(&counts).Error
	if err != nil {
		return nil, apperr.FromStore(op, fmt.Errorf("meeting: count participants: %w", err))
	}
	byMeeting := make(map[uint]int64, len(counts))
	for _, c := range counts {
		byMeeting[c.MeetingID] = c.N
	}
	for i, m := range meetings {
		out[i] = Summary{Meeting: m, ParticipantCount: byMeeting[m.ID]}
	}
	return out, nil
}

// Update replaces every caller-supplied field of a meeting.
func Update(ctx context.Context, db *gorm.DB, id uint, r Record) (*models.Meeting, error) {
	const op = "meeting.update"
	if errs := r.validate(true); len(errs) > 0 {
		return nil, apperr.Validation(op, errs...)
	}
	m, err := find(ctx, db, op, id)
	if err != nil {
		return nil, err
	}
	r.apply(m)
	if err := db.WithContext(ctx).Save(m).Error; err != nil {
		return nil, apperr.FromStore(op, fmt.Errorf("meeting: update %d: %w", id, err))
	}
	return m, nil
}

// Delete removes a meeting with its participants, agenda items and their
// documents. Blobs are deleted after the rows commit.
func Delete(ctx context.Context, db *gorm.DB, store blob.Store, id uint) (*models.Meeting, error) {
	const op = "meeting.delete"
	var (
		m        *models.Meeting
		locators []string
	)
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if m, err = find(ctx, tx, op, id); err != nil {
			return err
		}
		if err := tx.Where("meeting_id = ?", id).Delete(&models.MeetingParticipant{}).Error; err != nil {
			return fmt.Errorf("meeting: delete participants of %d: %w", id, err)
		}
		if locators, err = agenda.DeleteForMeeting(ctx, tx, id); err != nil {
			return err
		}
		if err := tx.Delete(&models.Meeting{}, id).Error; err != nil {
			return fmt.Errorf("meeting: delete %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, apperr.FromStore(op, err)
	}
	if len(locators) > 0 {
		logrus.WithFields(logrus.Fields{"meeting_id": id, "documents": len(locators)}).
			Info("meeting: cascade deleted agenda documents")
		document.Purge(ctx, store, locators, "meeting_cascade")
	}
	return m, nil
}

func participantIDs(ctx context.Context, db *gorm.DB, meetingID uint) ([]uint, error) {
	var ids []uint
	if err := db.WithContext(ctx).Model(&models.MeetingParticipant{}).Where("meeting_id = ?", meetingID).
		Order("user_id ASC").Pluck("user_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("meeting: participants of %d: %w", meetingID, err)
	}
	return ids, nil
}

func replaceParticipants(tx *gorm.DB, meetingID uint, userIDs []uint) error {
	if err := tx.Where("meeting_id = ?", meetingID).Delete(&models.MeetingParticipant{}).Error; err != nil {
		return fmt.Errorf("meeting: clear participants of %d: %w", meetingID, err)
	}
	seen := make(map[uint]bool, len(userIDs))
	rows := make([]models.MeetingParticipant, 0, len(userIDs))
	for _, uid := range userIDs {
		if seen[uid] {
			continue
		}
		seen[uid] = true
		rows = append(rows, models.MeetingParticipant{MeetingID: meetingID, UserID: uid})
	}
	if len(rows) == 0 {
		return nil
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].UserID < rows[j].UserID })
	if err := tx.Create(&rows).Error; err != nil {
		return fmt.Errorf("meeting: add participants to %d: %w", meetingID, err)
	}
	return nil
}

// Participants returns the user IDs attending a meeting.
func Participants(ctx context.Context, db *gorm.DB, meetingID uint) ([]uint, error) {
	const op = "meeting.participants"
	if _, err := find(ctx, db, op, meetingID); err != nil {
		return nil, err
	}
	ids, err := participantIDs(ctx, db, meetingID)
	if err != nil {
		return nil, apperr.FromStore(op, err)
	}
	return ids, nil
}

// SetParticipants replaces the participant set atomically.
func SetParticipants(ctx context.Context, db *gorm.DB, meetingID uint, userIDs []uint) error {
	const op = "meeting.set_participants"
	if errs := checkParticipants(userIDs); len(errs) > 0 {
		return apperr.Validation(op, errs...)
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := find(ctx, tx, op, meetingID); err != nil {
			return err
		}
		return replaceParticipants(tx, meetingID, userIDs)
	})
	return apperr.FromStore(op, err)
}

// AddParticipant adds one user. Adding an existing participant is a no-op.
func AddParticipant(ctx context.Context, db *gorm.DB, meetingID, userID uint) error {
	const op = "meeting.add_participant"
	if userID == 0 {
		return apperr.Validation(op, "user_id is required")
	}
	if _, err := find(ctx, db, op, meetingID); err != nil {
		return err
	}
	row := models.MeetingParticipant{MeetingID: meetingID, UserID: userID}
	if err := db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return apperr.FromStore(op, fmt.Errorf("meeting: add participant %d to %d: %w", userID, meetingID, err))
	}
	return nil
}

// RemoveParticipant removes one user.
func RemoveParticipant(ctx context.Context, db *gorm.DB, meetingID, userID uint) error {
	const op = "meeting.remove_participant"
	res := db.WithContext(ctx).Where("meeting_id = ? AND user_id = ?", meetingID, userID).
		Delete(&models.MeetingParticipant{})
	if res.Error != nil {
		return apperr.FromStore(op, fmt.Errorf("meeting: remove participant %d from %d: %w", userID, meetingID, res.Error))
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound(op, "participant", fmt.Sprintf("%d/%d", meetingID, userID))
	}
	return nil
}
