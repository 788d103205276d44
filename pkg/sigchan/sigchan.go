// Package sigchan 合并式信号：多次 Emit 在被消费前只保留一次。
package sigchan

// Chan 不带数据的非阻塞信号
type Chan struct {
	c chan struct{}
}

// New bufferSize 为 1 时表现为“脏标记”
func New(bufferSize int) *Chan {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &Chan{c: make(chan struct{}, bufferSize)}
}

// Emit 非阻塞发送，缓冲已满时丢弃
func (c *Chan) Emit() {
	select {
	case c.c <- struct{}{}:
	default:
	}
}

// Pending 取走一个信号，没有则返回 false
func (c *Chan) Pending() bool {
	select {
	case <-c.c:
		return true
	default:
		return false
	}
}

// C 用于 select
func (c *Chan) C() <-chan struct{} {
	return c.c
}
