package shutdown

import (
	"context"
	"errors"
	"sync"

	"github.com/openfire/firemarket/pkg/logger"
	"github.com/openfire/firemarket/pkg/syncgroup"
)

// Handler 关闭处理函数
type Handler func(ctx context.Context) error

type callback struct {
	name    string
	handler Handler
}

// Manager 优雅关闭管理器。回调分阶段执行：同一阶段内并发，阶段之间按注册顺序串行
// （先停 HTTP，再落盘存储）。
type Manager struct {
	mu     sync.Mutex
	stages [][]callback
}

// NewManager 创建新的关闭管理器
func NewManager() *Manager {
	return &Manager{}
}

// OnShutdown 在新阶段注册关闭回调
func (m *Manager) OnShutdown(name string, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stages = append(m.stages, []callback{{name: name, handler: handler}})
}

// Alongside 把回调加入最后一个阶段，与之并发执行
func (m *Manager) Alongside(name string, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.stages) == 0 {
		m.stages = append(m.stages, nil)
	}
	last := len(m.stages) - 1
	m.stages[last] = append(m.stages[last], callback{name: name, handler: handler})
}

// Shutdown 执行所有关闭回调（阻塞调用）。
// ctx 应该是一个带超时的 context，超时后不再等待剩余回调。
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	stages := m.stages
	m.stages = nil
	m.mu.Unlock()

	if len(stages) == 0 {
		logger.Info("没有注册的关闭回调")
		return nil
	}

	logger.Infof("开始优雅关闭，共 %d 个阶段", len(stages))

	var errs []error
	for _, stage := range stages {
		if err := runStage(ctx, stage); err != nil {
			errs = append(errs, err)
		}
		if ctx.Err() != nil {
			logger.Warnf("关闭超时: %v", ctx.Err())
			errs = append(errs, ctx.Err())
			break
		}
	}
	if len(errs) == 0 {
		logger.Info("所有关闭回调已完成")
	}
	return errors.Join(errs...)
}

func runStage(ctx context.Context, stage []callback) error {
	sg := syncgroup.NewSyncGroup()
	for _, cb := range stage {
		sg.Add(cb.name, func() error {
			if err := cb.handler(ctx); err != nil {
				logger.Errorf("关闭回调 %s 失败: %v", cb.name, err)
				return err
			}
			logger.Debugf("关闭回调 %s 完成", cb.name)
			return nil
		})
	}
	sg.Run()

	select {
	case <-sg.Done():
		return sg.Wait()
	case <-ctx.Done():
		return ctx.Err()
	}
}
