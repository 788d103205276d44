package syncgroup

import (
	"errors"
	"fmt"
	"sync"
)

type syncGroupFunc struct {
	name string
	fn   func() error
}

// SyncGroup 是 sync.WaitGroup 的包装器：先 Add 登记，再 Run 一次性启动，
// Wait 汇总所有返回的错误（带上登记时的名字）。
type SyncGroup struct {
	wg sync.WaitGroup

	mu      sync.Mutex
	sgFuncs []syncGroupFunc
	errs    []error
	started bool
	done    chan struct{}
}

// NewSyncGroup 创建新的 SyncGroup
func NewSyncGroup() *SyncGroup {
	return &SyncGroup{done: make(chan struct{})}
}

// Add 登记一个函数；Run 之后调用会被忽略
func (g *SyncGroup) Add(name string, fn func() error) {
	if fn == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.started {
		return
	}
	g.sgFuncs = append(g.sgFuncs, syncGroupFunc{name: name, fn: fn})
}

// Run 为每个登记的函数启动一个 goroutine，只生效一次
func (g *SyncGroup) Run() {
	g.mu.Lock()
	if g.started {
		g.mu.Unlock()
		return
	}
	g.started = true
	fns := g.sgFuncs
	g.sgFuncs = nil
	g.mu.Unlock()

	g.wg.Add(len(fns))
	for _, f := range fns {
		go func(f syncGroupFunc) {
			defer g.wg.Done()
			if err := f.fn(); err != nil {
				g.mu.Lock()
				g.errs = append(g.errs, fmt.Errorf("%s: %w", f.name, err))
				g.mu.Unlock()
			}
		}(f)
	}
	go func() {
		g.wg.Wait()
		close(g.done)
	}()
}

// Done 所有函数返回后关闭
func (g *SyncGroup) Done() <-chan struct{} {
	return g.done
}

// Wait 等待所有函数返回，合并错误
func (g *SyncGroup) Wait() error {
	g.wg.Wait()
	g.mu.Lock()
	defer g.mu.Unlock()
	return errors.Join(g.errs...)
}
