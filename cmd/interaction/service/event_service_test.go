package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"EngageHub.com/cmd/model"
	"EngageHub.com/config"
	"EngageHub.com/pkg/constants"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEventStore 内存事件表，记录状态流转轨迹
type fakeEventStore struct {
	mu         sync.Mutex
	events     map[string]*model.InteractionEvent
	transition map[string][]string
	stuck      []*model.InteractionEvent
	failCreate bool
}

func newFakeEventStore() *fakeEventStore {
	return &fakeEventStore{
		events:     make(map[string]*model.InteractionEvent),
		transition: make(map[string][]string),
	}
}

func (s *fakeEventStore) CreateEvent(ctx context.Context, event *model.InteractionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate {
		return errors.New("mysql gone away")
	}
	clone := *event
	s.events[event.EventId] = &clone
	s.transition[event.EventId] = append(s.transition[event.EventId], event.Status)
	return nil
}

func (s *fakeEventStore) setStatus(eventId, status string) error {
	if e, ok := s.events[eventId]; ok {
		e.Status = status
		s.transition[eventId] = append(s.transition[eventId], status)
		return nil
	}
	return errors.New("event not found")
}

func (s *fakeEventStore) UpdateEventStatus(ctx context.Context, eventId, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setStatus(eventId, status)
}

func (s *fakeEventStore) MarkEventProcessed(ctx context.Context, eventId, result string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.events[eventId]; ok {
		e.ProcessingResult = result
	}
	return s.setStatus(eventId, constants.EventStatusProcessed)
}

func (s *fakeEventStore) MarkEventRetrying(ctx context.Context, eventId string, retryCount int, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.events[eventId]; ok {
		e.RetryCount = retryCount
		e.FailureReason = reason
	}
	return s.setStatus(eventId, constants.EventStatusRetrying)
}

func (s *fakeEventStore) MarkEventDeadLetter(ctx context.Context, eventId, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.events[eventId]; ok {
		e.FailureReason = reason
	}
	return s.setStatus(eventId, constants.EventStatusDeadLetter)
}

func (s *fakeEventStore) ListEventsByStatus(ctx context.Context, status string, limit int) ([]*model.InteractionEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.InteractionEvent
	for _, e := range s.events {
		if e.Status == status && len(out) < limit {
			clone := *e
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (s *fakeEventStore) ListStuckEvents(ctx context.Context, before time.Time, limit int) ([]*model.InteractionEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stuck, nil
}

func (s *fakeEventStore) get(eventId string) *model.InteractionEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.events[eventId]; ok {
		clone := *e
		return &clone
	}
	return nil
}

func (s *fakeEventStore) has(eventId string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.events[eventId]
	return ok
}

// fakeBroker 可注入前N次失败，记录每次投递的时间和落库情况
type fakeBroker struct {
	mu        sync.Mutex
	failFirst int
	calls     []time.Time
	persisted []bool
	store     *fakeEventStore
	delivered chan string
}

func newFakeBroker(store *fakeEventStore, failFirst int) *fakeBroker {
	return &fakeBroker{
		failFirst: failFirst,
		store:     store,
		delivered: make(chan string, 16),
	}
}

func (b *fakeBroker) PublishInteractionEvent(ctx context.Context, event *model.InteractionEvent) error {
	b.mu.Lock()
	b.calls = append(b.calls, time.Now())
	b.persisted = append(b.persisted, b.store.has(event.EventId))
	attempt := len(b.calls)
	b.mu.Unlock()

	if attempt <= b.failFirst {
		return errors.New("broker unreachable")
	}
	b.delivered <- event.EventId
	return nil
}

func (b *fakeBroker) attempts() []time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]time.Time, len(b.calls))
	copy(out, b.calls)
	return out
}

func withEventConfig(t *testing.T, maxRetry, retryBaseMs int) {
	t.Helper()
	old := config.ConfigInfo.Event
	config.ConfigInfo.Event.MaxRetry = maxRetry
	config.ConfigInfo.Event.RetryBaseMs = retryBaseMs
	t.Cleanup(func() { config.ConfigInfo.Event = old })
}

func TestEventServicePublish(t *testing.T) {
	withEventConfig(t, 3, 5)

	t.Run("persists before delivering", func(t *testing.T) {
		store := newFakeEventStore()
		broker := newFakeBroker(store, 0)
		svc := NewEventService(store, broker)

		ok := svc.Publish(context.Background(), &model.InteractionEvent{
			EventType:  constants.EventTypeLikeAdded,
			UserId:     1,
			TargetType: constants.TargetTypeMoment,
			TargetId:   42,
		})
		require.True(t, ok)

		select {
		case eventId := <-broker.delivered:
			attempts := broker.attempts()
			require.Len(t, attempts, 1)
			assert.True(t, broker.persisted[0], "event must be durable before the broker sees it")

			// 异步标记PROCESSED，稍等落账
			assert.Eventually(t, func() bool {
				e := store.get(eventId)
				return e != nil && e.Status == constants.EventStatusProcessed
			}, 2*time.Second, 10*time.Millisecond)

			e := store.get(eventId)
			assert.NotEmpty(t, e.PartitionKey)
			assert.NotEmpty(t, e.TimeBucket)
			assert.Equal(t, constants.EventPriorityNormal, e.Priority, "unspecified priority defaults to NORMAL")
			assert.Contains(t, e.ProcessingResult, "retries=0")
		case <-time.After(2 * time.Second):
			t.Fatal("event never delivered")
		}
	})

	t.Run("returns false when persistence fails", func(t *testing.T) {
		store := newFakeEventStore()
		store.failCreate = true
		broker := newFakeBroker(store, 0)
		svc := NewEventService(store, broker)

		ok := svc.Publish(context.Background(), &model.InteractionEvent{
			EventType: constants.EventTypeLikeAdded,
			UserId:    1,
		})
		assert.False(t, ok)

		time.Sleep(50 * time.Millisecond)
		assert.Empty(t, broker.attempts(), "broker must not see an unpersisted event")
	})
}

func TestEventServiceRetrySchedule(t *testing.T) {
	const baseMs = 20
	withEventConfig(t, 3, baseMs)

	store := newFakeEventStore()
	broker := newFakeBroker(store, 2) // 前两次失败，第三次成功
	svc := NewEventService(store, broker)

	event := &model.InteractionEvent{
		EventId:    "evt-retry",
		EventType:  constants.EventTypeCommentAdded,
		TargetType: constants.TargetTypeMoment,
		TargetId:   1,
		Status:     constants.EventStatusCreated,
	}
	require.NoError(t, store.CreateEvent(context.Background(), event))

	svc.Redeliver(context.Background(), event)

	attempts := broker.attempts()
	require.Len(t, attempts, 3)

	// 第k次重试前等待 k×base
	base := time.Duration(baseMs) * time.Millisecond
	assert.GreaterOrEqual(t, attempts[1].Sub(attempts[0]), base)
	assert.GreaterOrEqual(t, attempts[2].Sub(attempts[1]), 2*base)

	e := store.get("evt-retry")
	assert.Equal(t, constants.EventStatusProcessed, e.Status)
	assert.Equal(t, 2, e.RetryCount)
	assert.Contains(t, e.ProcessingResult, "retries=2")
}

func TestEventServiceDeadLetter(t *testing.T) {
	withEventConfig(t, 3, 1)

	store := newFakeEventStore()
	broker := newFakeBroker(store, 1000) // 永远失败
	svc := NewEventService(store, broker)

	event := &model.InteractionEvent{
		EventId:   "evt-dead",
		EventType: constants.EventTypeLikeAdded,
		UserId:    1,
		Status:    constants.EventStatusCreated,
	}
	require.NoError(t, store.CreateEvent(context.Background(), event))

	svc.Redeliver(context.Background(), event)

	// 首投+3次重试，共4次，然后进死信
	assert.Len(t, broker.attempts(), 4)

	e := store.get("evt-dead")
	assert.Equal(t, constants.EventStatusDeadLetter, e.Status)
	assert.Equal(t, 3, e.RetryCount)
	assert.Equal(t, "broker unreachable", e.FailureReason)

	store.mu.Lock()
	trail := store.transition["evt-dead"]
	store.mu.Unlock()
	assert.Equal(t, []string{
		constants.EventStatusCreated,
		constants.EventStatusProcessing,
		constants.EventStatusRetrying,
		constants.EventStatusRetrying,
		constants.EventStatusRetrying,
		constants.EventStatusDeadLetter,
	}, trail)
}

func TestEventServiceTruncatedWindow(t *testing.T) {
	withEventConfig(t, 3, 500)

	store := newFakeEventStore()
	broker := newFakeBroker(store, 1000)
	svc := NewEventService(store, broker)

	event := &model.InteractionEvent{
		EventId:   "evt-truncated",
		EventType: constants.EventTypeLikeAdded,
		UserId:    1,
		Status:    constants.EventStatusCreated,
	}
	require.NoError(t, store.CreateEvent(context.Background(), event))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	svc.Redeliver(ctx, event)

	// 投递窗口截断后标记FAILED，等巡检补投，不进死信
	assert.Len(t, broker.attempts(), 1)
	assert.Equal(t, constants.EventStatusFailed, store.get("evt-truncated").Status)
}

func TestEventServicePartitionKey(t *testing.T) {
	withEventConfig(t, 3, 1)
	store := newFakeEventStore()
	svc := NewEventService(store, newFakeBroker(store, 0))

	t.Run("same target maps to same partition", func(t *testing.T) {
		a := svc.partitionKey(&model.InteractionEvent{TargetType: constants.TargetTypeMoment, TargetId: 42})
		b := svc.partitionKey(&model.InteractionEvent{TargetType: constants.TargetTypeMoment, TargetId: 42, UserId: 99})
		assert.Equal(t, a, b)
		assert.Contains(t, a, constants.TargetTypeMoment+":")
	})

	t.Run("targetless event falls back to user hash", func(t *testing.T) {
		key := svc.partitionKey(&model.InteractionEvent{UserId: 7})
		assert.Contains(t, key, "default:")
	})
}
