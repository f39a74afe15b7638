// Package events publishes domain events after workflow mutations commit.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"github.com/zulandar/docket/internal/config"
)

// Event types.
const (
	MemoCreated      = "memo.created"
	MemoUpdated      = "memo.updated"
	MemoDeleted      = "memo.deleted"
	AgendaCreated    = "agenda.created"
	AgendaUpdated    = "agenda.updated"
	AgendaDeleted    = "agenda.deleted"
	DocumentAttached = "document.attached"
	DocumentDetached = "document.detached"
	MeetingCreated   = "meeting.created"
	MeetingUpdated   = "meeting.updated"
	MeetingDeleted   = "meeting.deleted"
)

// Event describes a committed change to one resource.
type Event struct {
	Type     string    `json:"type"`
	Resource string    `json:"resource"`
	ID       uint      `json:"id"`
	ActorID  uint      `json:"actor_id,omitempty"`
	At       time.Time `json:"at"`
	Data     any       `json:"data,omitempty"`
}

// Key returns the partition key: resource and ID, so events for one
// resource stay ordered.
func (e Event) Key() string {
	return e.Resource + "_" + strconv.FormatUint(uint64(e.ID), 10)
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// New returns a Kafka publisher when brokers are configured, otherwise a
// publisher that logs events.
func New(cfg config.EventsConfig) Publisher {
	if len(cfg.Brokers) == 0 {
		return LogPublisher{}
	}
	return NewKafka(cfg.Brokers, cfg.Topic)
}

// Kafka writes events as JSON messages to one topic.
type Kafka struct {
	w *kafka.Writer
}

// NewKafka returns a publisher writing to topic on brokers.
func NewKafka(brokers []string, topic string) *Kafka {
	return &Kafka{w: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
	}}
}

func message(e Event) (kafka.Message, error) {
	value, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("events: encode %s: %w", e.Type, err)
	}
	return kafka.Message{
		Key:   []byte(e.Key()),
		Value: value,
		Time:  e.At,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(e.Type)},
		},
	}, nil
}

func (k *Kafka) Publish(ctx context.Context, e Event) error {
	msg, err := message(e)
	if err != nil {
		return err
	}
	if err := k.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("events: publish %s: %w", e.Type, err)
	}
	return nil
}

func (k *Kafka) Close() error {
	return k.w.Close()
}

// LogPublisher writes events to the log.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, e Event) error {
	logrus.WithFields(logrus.Fields{
		"type":     e.Type,
		"resource": e.Resource,
		"id":       e.ID,
		"actor_id": e.ActorID,
	}).Info("event")
	return nil
}

func (LogPublisher) Close() error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event

	// Fail, when set, is returned by Publish instead of recording.
	Fail error
}

func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail != nil {
		return r.Fail
	}
	r.events = append(r.events, e)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}
