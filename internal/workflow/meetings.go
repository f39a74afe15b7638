package workflow

import (
	"context"

	"github.com/zulandar/docket/internal/agenda"
	"github.com/zulandar/docket/internal/document"
	"github.com/zulandar/docket/internal/events"
	"github.com/zulandar/docket/internal/identity"
	"github.com/zulandar/docket/internal/meeting"
	"github.com/zulandar/docket/internal/models"
)

// CreateMeeting creates a meeting with its initial participants.
func (s *Service) CreateMeeting(ctx context.Context, actor *identity.Actor, r meeting.Record, participants []uint) (*models.Meeting, error) {
	var out *models.Meeting
	err := s.run(ctx, "meeting.create", s.StoreTimeout, func(ctx context.Context) error {
		var err error
		out, err = meeting.Create(ctx, s.DB, r, participants, actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.MeetingCreated, "meeting", out.ID, actor, nil)
	return out, nil
}

// GetMeeting returns the composed meeting view.
func (s *Service) GetMeeting(ctx context.Context, id uint) (*meeting.View, error) {
	var out *meeting.View
	err := s.run(ctx, "meeting.get", s.StoreTimeout, func(ctx context.Context) error {
		var err error
		out, err = meeting.Get(ctx, s.DB, id)
		return err
	})
	return out, err
}

// ListMeetings returns meetings matching f.
func (s *Service) ListMeetings(ctx context.Context, f meeting.Filter) ([]meeting.Summary, error) {
	var out []meeting.Summary
	err := s.run(ctx, "meeting.list", s.StoreTimeout, func(ctx context.Context) error {
		var err error
		out, err = meeting.List(ctx, s.DB, f)
		return err
	})
	return out, err
}

// UpdateMeeting replaces a meeting's fields.
func (s *Service) UpdateMeeting(ctx context.Context, actor *identity.Actor, id uint, r meeting.Record) (*models.Meeting, error) {
	const op = "meeting.update"
	var out *models.Meeting
	err := s.run(ctx, op, s.StoreTimeout, func(ctx context.Context) error {
		if err := requireActor(op, actor); err != nil {
			return err
		}
		var err error
		out, err = meeting.Update(ctx, s.DB, id, r)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.MeetingUpdated, "meeting", id, actor, nil)
	return out, nil
}

// DeleteMeeting deletes a meeting and everything it owns.
func (s *Service) DeleteMeeting(ctx context.Context, actor *identity.Actor, id uint) error {
	const op = "meeting.delete"
	err := s.run(ctx, op, s.BlobTimeout, func(ctx context.Context) error {
		if err := requireActor(op, actor); err != nil {
			return err
		}
		_, err := meeting.Delete(ctx, s.DB, s.Blobs, id)
		return err
	})
	if err != nil {
		return err
	}
	s.publish(ctx, events.MeetingDeleted, "meeting", id, actor, nil)
	return nil
}

// SetParticipants replaces a meeting's participants.
func (s *Service) SetParticipants(ctx context.Context, actor *identity.Actor, id uint, userIDs []uint) error {
	const op = "meeting.set_participants"
	err := s.run(ctx, op, s.StoreTimeout, func(ctx context.Context) error {
		if err := requireActor(op, actor); err != nil {
			return err
		}
		return meeting.SetParticipants(ctx, s.DB, id, userIDs)
	})
	if err != nil {
		return err
	}
	s.publish(ctx, events.MeetingUpdated, "meeting", id, actor, map[string]any{"participants": userIDs})
	return nil
}

// AddParticipant adds one user to a meeting.
func (s *Service) AddParticipant(ctx context.Context, actor *identity.Actor, id, userID uint) error {
	const op = "meeting.add_participant"
	return s.run(ctx, op, s.StoreTimeout, func(ctx context.Context) error {
		if err := requireActor(op, actor); err != nil {
			return err
		}
		return meeting.AddParticipant(ctx, s.DB, id, userID)
	})
}

// RemoveParticipant removes one user from a meeting.
func (s *Service) RemoveParticipant(ctx context.Context, actor *identity.Actor, id, userID uint) error {
	const op = "meeting.remove_participant"
	return s.run(ctx, op, s.StoreTimeout, func(ctx context.Context) error {
		if err := requireActor(op, actor); err != nil {
			return err
		}
		return meeting.RemoveParticipant(ctx, s.DB, id, userID)
	})
}

// CreateAgendaItem adds an item to a meeting's agenda.
func (s *Service) CreateAgendaItem(ctx context.Context, actor *identity.Actor, meetingID uint, f agenda.Fields) (*models.AgendaItem, error) {
	var out *models.AgendaItem
	err := s.run(ctx, "agenda.create", s.StoreTimeout, func(ctx context.Context) error {
		var err error
		out, err = agenda.Create(ctx, s.DB, meetingID, f, actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.AgendaCreated, "agenda_item", out.ID, actor, map[string]any{
		"meeting_id": out.MeetingID,
		"sort_order": out.SortOrder,
	})
	return out, nil
}

// UpdateAgendaItem replaces an agenda item's fields.
func (s *Service) UpdateAgendaItem(ctx context.Context, actor *identity.Actor, id uint, f agenda.Fields) (*models.AgendaItem, error) {
	const op = "agenda.update"
	var out *models.AgendaItem
	err := s.run(ctx, op, s.StoreTimeout, func(ctx context.Context) error {
		if err := requireActor(op, actor); err != nil {
			return err
		}
		var err error
		out, err = agenda.Update(ctx, s.DB, id, f)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.AgendaUpdated, "agenda_item", id, actor, nil)
	return out, nil
}

// DeleteAgendaItem deletes an agenda item and its documents.
func (s *Service) DeleteAgendaItem(ctx context.Context, actor *identity.Actor, id uint) error {
	const op = "agenda.delete"
	err := s.run(ctx, op, s.BlobTimeout, func(ctx context.Context) error {
		if err := requireActor(op, actor); err != nil {
			return err
		}
		_, err := agenda.Delete(ctx, s.DB, s.Blobs, id)
		return err
	})
	if err != nil {
		return err
	}
	s.publish(ctx, events.AgendaDeleted, "agenda_item", id, actor, nil)
	return nil
}

// GetAgendaItem returns one agenda item with documents.
func (s *Service) GetAgendaItem(ctx context.Context, id uint) (*agenda.Item, error) {
	var out *agenda.Item
	err := s.run(ctx, "agenda.get", s.StoreTimeout, func(ctx context.Context) error {
		var err error
		out, err = agenda.Get(ctx, s.DB, id)
		return err
	})
	return out, err
}

// ListAgenda returns a meeting's agenda in order.
func (s *Service) ListAgenda(ctx context.Context, meetingID uint) ([]agenda.Item, error) {
	var out []agenda.Item
	err := s.run(ctx, "agenda.list", s.StoreTimeout, func(ctx context.Context) error {
		var err error
		out, err = agenda.List(ctx, s.DB, meetingID)
		return err
	})
	return out, err
}

// NextSortOrder returns the order a new item in the meeting would get.
func (s *Service) NextSortOrder(ctx context.Context, meetingID uint) (int, error) {
	var out int
	err := s.run(ctx, "agenda.next_sort_order", s.StoreTimeout, func(ctx context.Context) error {
		var err error
		out, err = agenda.NextSortOrder(ctx, s.DB, meetingID)
		return err
	})
	return out, err
}

// AttachDocument stores a file for an agenda item.
func (s *Service) AttachDocument(ctx context.Context, actor *identity.Actor, agendaID uint, data []byte, name string) (*models.Document, error) {
	var out *models.Document
	err := s.run(ctx, "document.attach", s.BlobTimeout, func(ctx context.Context) error {
		var err error
		out, err = document.Attach(ctx, s.DB, s.Blobs, agendaID, data, name, actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.DocumentAttached, "document", out.ID, actor, map[string]any{
		"agenda_item_id": out.AgendaItemID,
		"size_bytes":     out.SizeBytes,
	})
	return out, nil
}

// DetachDocument removes a document.
func (s *Service) DetachDocument(ctx context.Context, actor *identity.Actor, id uint) error {
	var doc *models.Document
	err := s.run(ctx, "document.detach", s.BlobTimeout, func(ctx context.Context) error {
		var err error
		doc, err = document.Detach(ctx, s.DB, s.Blobs, id, actor)
		return err
	})
	if err != nil {
		return err
	}
	s.publish(ctx, events.DocumentDetached, "document", id, actor, map[string]any{"agenda_item_id": doc.AgendaItemID})
	return nil
}

// GetDocument returns one document's metadata.
func (s *Service) GetDocument(ctx context.Context, id uint) (*models.Document, error) {
	var out *models.Document
	err := s.run(ctx, "document.get", s.StoreTimeout, func(ctx context.Context) error {
		var err error
		out, err = document.Get(ctx, s.DB, id)
		return err
	})
	return out, err
}

// ListDocuments returns an agenda item's documents, newest first.
func (s *Service) ListDocuments(ctx context.Context, agendaID uint) ([]models.Document, error) {
	var out []models.Document
	err := s.run(ctx, "document.list", s.StoreTimeout, func(ctx context.Context) error {
		var err error
		out, err = document.List(ctx, s.DB, agendaID)
		return err
	})
	return out, err
}
