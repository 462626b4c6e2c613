package main

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"github.com/peakee-labs/blinders/domain"
	"github.com/peakee-labs/blinders/storage"
	"github.com/peakee-labs/blinders/transport"
)

const (
	dedupeScope     = "collect"
	maxDequeueCount = 5
)

type messageQueue interface {
	Dequeue(ctx context.Context) (*storage.Message, error)
	Delete(ctx context.Context, msg *storage.Message) error
}

type explainLogStore interface {
	AddExplainLog(ctx context.Context, l domain.ExplainLog) error
}

type deduper interface {
	Add(ctx context.Context, scope, id string) (bool, error)
	Remove(ctx context.Context, scope, id string) error
}

type collector struct {
	queue  messageQueue
	store  explainLogStore
	dedupe deduper
	log    *log.Logger
	idle   time.Duration
}

// run polls the queue until ctx is cancelled.
func (c *collector) run(ctx context.Context) {
	for ctx.Err() == nil {
		msg, err := c.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() == nil {
				c.log.WithError(err).Warn("receive")
			}
			c.sleep(ctx)
			continue
		}
		if msg == nil {
			c.sleep(ctx)
			continue
		}
		c.handle(ctx, msg)
	}
}

func (c *collector) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(c.idle):
	}
}

// handle processes msg and deletes it unless it should be redelivered.
func (c *collector) handle(ctx context.Context, msg *storage.Message) {
	entry := c.log.WithField("message_id", msg.ID)

	ev, err := transport.DecodeEvent([]byte(msg.Text))
	if err != nil {
		entry.WithError(err).Warn("dropping undecodable message")
		c.delete(ctx, msg)
		return
	}
	entry = entry.WithFields(log.Fields{"event_id": ev.ID, "event_type": ev.Type})

	if err := c.process(ctx, ev); err != nil {
		if msg.DequeueCount >= maxDequeueCount {
			entry.WithError(err).Error("giving up on event")
			c.delete(ctx, msg)
			return
		}
		entry.WithError(err).Warn("event failed, leaving for redelivery")
		return
	}
	c.delete(ctx, msg)
}

func (c *collector) delete(ctx context.Context, msg *storage.Message) {
	if err := c.queue.Delete(ctx, msg); err != nil {
		c.log.WithError(err).WithField("message_id", msg.ID).Error("delete message")
	}
}

// process applies ev once. A failed apply forgets the event id so the
// redelivered message is processed again.
func (c *collector) process(ctx context.Context, ev transport.Event) error {
	if c.dedupe != nil && ev.ID != "" {
		added, err := c.dedupe.Add(ctx, dedupeScope, ev.ID)
		if err != nil {
			return err
		}
		if !added {
			c.log.WithField("event_id", ev.ID).Debug("duplicate event skipped")
			return nil
		}
	}

	err := c.apply(ctx, ev)
	if err != nil && c.dedupe != nil && ev.ID != "" {
		if rerr := c.dedupe.Remove(ctx, dedupeScope, ev.ID); rerr != nil {
			c.log.WithError(rerr).WithField("event_id", ev.ID).Error("rollback dedupe key")
		}
	}
	return err
}

func (c *collector) apply(ctx context.Context, ev transport.Event) error {
	switch ev.Type {
	case transport.AddExplainLog:
		var entry domain.ExplainLog
		if err := sonic.Unmarshal(ev.Payload, &entry); err != nil {
			c.log.WithError(err).WithField("event_id", ev.ID).Warn("dropping malformed explain log")
			return nil
		}
		if entry.ID == "" {
			entry.ID = ev.ID
		}
		if entry.CreatedAt == 0 {
			entry.CreatedAt = ev.Timestamp
		}
		return c.store.AddExplainLog(ctx, entry)
	default:
		c.log.WithFields(log.Fields{"event_id": ev.ID, "event_type": ev.Type}).Warn("dropping unknown event type")
		return nil
	}
}
