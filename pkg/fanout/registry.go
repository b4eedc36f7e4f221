package fanout

import (
	"fmt"
	"sync"

	"EngageHub.com/cmd/model"
)

// Registry 按目标维度的实时评论多播注册表
// 频道按需创建，最后一个订阅者退出时立即销毁，不做跨实例共享
type Registry struct {
	mu       sync.Mutex
	channels map[string]*channel
}

type channel struct {
	subs   map[int64]*Subscription
	nextId int64
}

// Subscription 单个订阅者，内部用无界队列+泵协程解耦生产和消费
// 慢消费者只影响自己的队列，不会阻塞发布方和其他订阅者
type Subscription struct {
	C <-chan *model.Comment

	registry *Registry
	key      string
	id       int64

	mu     sync.Mutex
	queue  []*model.Comment
	notify chan struct{}
	done   chan struct{}
	out    chan *model.Comment
	closed bool
}

func NewRegistry() *Registry {
	return &Registry{
		channels: make(map[string]*channel),
	}
}

func channelKey(targetType string, targetId int64) string {
	return fmt.Sprintf("%s:%d", targetType, targetId)
}

// Subscribe 订阅目标的实时评论，频道不存在时惰性创建
func (r *Registry) Subscribe(targetType string, targetId int64) *Subscription {
	key := channelKey(targetType, targetId)

	r.mu.Lock()
	ch, ok := r.channels[key]
	if !ok {
		ch = &channel{subs: make(map[int64]*Subscription)}
		r.channels[key] = ch
	}
	ch.nextId++
	sub := &Subscription{
		registry: r,
		key:      key,
		id:       ch.nextId,
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
		out:      make(chan *model.Comment),
	}
	sub.C = sub.out
	ch.subs[sub.id] = sub
	r.mu.Unlock()

	go sub.pump()
	return sub
}

// Publish 向当前订阅者推送评论，晚到的订阅者看不到历史消息
func (r *Registry) Publish(targetType string, targetId int64, comment *model.Comment) {
	key := channelKey(targetType, targetId)

	r.mu.Lock()
	ch, ok := r.channels[key]
	if !ok {
		r.mu.Unlock()
		return
	}
	subs := make([]*Subscription, 0, len(ch.subs))
	for _, sub := range ch.subs {
		subs = append(subs, sub)
	}
	r.mu.Unlock()

	for _, sub := range subs {
		sub.enqueue(comment)
	}
}

// ChannelCount 当前活跃频道数
func (r *Registry) ChannelCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.channels)
}

// SubscriberCount 目标频道的订阅者数，频道不存在返回0
func (r *Registry) SubscriberCount(targetType string, targetId int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.channels[channelKey(targetType, targetId)]
	if !ok {
		return 0
	}
	return len(ch.subs)
}

// Cancel 退订并立即释放引用，频道无订阅者时被拆除
func (s *Subscription) Cancel() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.done)
	s.mu.Unlock()

	r := s.registry
	r.mu.Lock()
	if ch, ok := r.channels[s.key]; ok {
		delete(ch.subs, s.id)
		if len(ch.subs) == 0 {
			delete(r.channels, s.key)
		}
	}
	r.mu.Unlock()
}

func (s *Subscription) enqueue(comment *model.Comment) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, comment)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// pump 把队列里的消息依次送到出口通道，订阅取消后退出
func (s *Subscription) pump() {
	defer close(s.out)
	for {
		select {
		case <-s.done:
			return
		case <-s.notify:
		}

		for {
			s.mu.Lock()
			if len(s.queue) == 0 {
				s.mu.Unlock()
				break
			}
			comment := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()

			select {
			case s.out <- comment:
			case <-s.done:
				return
			}
		}
	}
}
