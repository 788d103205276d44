package events

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "events")

// Bus 进程内事件总线。发布不阻塞：订阅者缓冲满时丢弃并告警，
// 慢订阅者不能拖住账本操作。
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan Envelope
	nextID int
	seq    uint64
	buffer int
}

// NewBus buffer 为每个订阅者的缓冲长度
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 256
	}
	return &Bus{
		subs:   make(map[int]chan Envelope),
		buffer: buffer,
	}
}

// Subscribe 返回事件通道与取消函数
func (b *Bus) Subscribe() (<-chan Envelope, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Envelope, b.buffer)
	b.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish 按顺序发布同一操作产生的事件
func (b *Bus) Publish(op string, evs ...Event) {
	if b == nil || len(evs) == 0 {
		return
	}
	now := time.Now()

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range evs {
		b.seq++
		env := Envelope{Seq: b.seq, Type: e.EventType(), Op: op, Timestamp: now, Payload: e}
		for id, ch := range b.subs {
			select {
			case ch <- env:
			default:
				log.Warnf("订阅者 %d 缓冲已满，丢弃事件 seq=%d type=%s", id, env.Seq, env.Type)
			}
		}
	}
}

// Subscribers 当前订阅数
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
