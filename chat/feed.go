package chat

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// Feed bridges Postgres LISTEN/NOTIFY to in-process subscribers. Delivery
// from the store is at-least-once and may arrive out of order, so the feed
// de-duplicates by message id before fanning out.
type Feed struct {
	pool *pgxpool.Pool
	log  *logrus.Logger

	mu          sync.RWMutex
	subscribers map[string]map[*Subscriber]struct{}
	seen        *seenSet
}

// Subscriber receives live messages for one conversation.
type Subscriber struct {
	conversationID string
	ch             chan Message
}

// Messages returns the delivery channel. It closes when the subscriber is
// removed from the feed.
func (s *Subscriber) Messages() <-chan Message {
	return s.ch
}

func NewFeed(pool *pgxpool.Pool, log *logrus.Logger) *Feed {
	if log == nil {
		log = logrus.New()
	}
	return &Feed{
		pool:        pool,
		log:         log,
		subscribers: make(map[string]map[*Subscriber]struct{}),
		seen:        newSeenSet(4096),
	}
}

// Run listens for message notifications until the context ends. It holds one
// dedicated connection and re-acquires it with backoff after failures.
func (f *Feed) Run(ctx context.Context) {
	backoff := time.Second
	for {
		if err := f.listen(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			f.log.WithError(err).Warn("chat feed connection lost, reconnecting")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (f *Feed) listen(ctx context.Context) error {
	conn, err := f.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `LISTEN `+NotifyChannel); err != nil {
		return err
	}
	f.log.WithField("channel", NotifyChannel).Info("chat feed listening")

	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}

		var msg Message
		if err := json.Unmarshal([]byte(notification.Payload), &msg); err != nil {
			f.log.WithError(err).Warn("chat feed: bad notification payload")
			continue
		}
		f.Dispatch(msg)
	}
}

// Dispatch fans a message out to its conversation's subscribers, dropping
// duplicates by id. Slow subscribers lose messages rather than block the
// feed; they catch up from History.
func (f *Feed) Dispatch(msg Message) {
	if msg.ID == "" || !f.seen.add(msg.ID) {
		return
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	for sub := range f.subscribers[msg.ConversationID] {
		select {
		case sub.ch <- msg:
		default:
			f.log.WithField("conversation_id", msg.ConversationID).
				Warn("chat feed: dropping message for slow subscriber")
		}
	}
}

// Subscribe registers a live subscriber for one conversation.
func (f *Feed) Subscribe(conversationID string) *Subscriber {
	sub := &Subscriber{
		conversationID: conversationID,
		ch:             make(chan Message, 32),
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribers[conversationID] == nil {
		f.subscribers[conversationID] = make(map[*Subscriber]struct{})
	}
	f.subscribers[conversationID][sub] = struct{}{}
	return sub
}

// Unsubscribe removes a subscriber and closes its channel.
func (f *Feed) Unsubscribe(sub *Subscriber) {
	f.mu.Lock()
	defer f.mu.Unlock()

	subs := f.subscribers[sub.conversationID]
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(f.subscribers, sub.conversationID)
	}
	close(sub.ch)
}

// seenSet is a bounded set of recently observed message ids.
type seenSet struct {
	mu    sync.Mutex
	ids   map[string]struct{}
	order []string
	cap   int
}

func newSeenSet(capacity int) *seenSet {
	return &seenSet{
		ids: make(map[string]struct{}, capacity),
		cap: capacity,
	}
}

// add records the id and reports whether it was new.
func (s *seenSet) add(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	s.order = append(s.order, id)
	if len(s.order) > s.cap {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.ids, oldest)
	}
	return true
}
