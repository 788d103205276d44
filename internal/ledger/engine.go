package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/openfire/firemarket/internal/domain"
	"github.com/openfire/firemarket/internal/events"
	"github.com/openfire/firemarket/internal/policy"
	"github.com/openfire/firemarket/internal/store"
)

// 支付代币默认元数据
const (
	DefaultTokenName     = "OpenTradeToken"
	DefaultTokenSymbol   = "OTT"
	DefaultTokenDecimals = 18
)

// Engine 三个子账本共享同一个存储和同一个串行执行器。
type Engine struct {
	exec     *executor
	registry *AssetRegistry
	payment  *PaymentLedger
	market   *Marketplace

	genesis domain.Genesis
	fresh   bool
}

// Option 引擎可选项
type Option func(*options)

type options struct {
	bus   *events.Bus
	now   func() time.Time
	newID func() string
}

// WithBus 使用外部事件总线（API 层订阅）
func WithBus(bus *events.Bus) Option {
	return func(o *options) { o.bus = bus }
}

// WithClock 替换时钟（测试用）
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithIDGenerator 替换成交凭证 ID 生成器
func WithIDGenerator(fn func() string) Option {
	return func(o *options) { o.newID = fn }
}

// New 打开引擎。存储中没有创世记录时按 g 执行一次创世；
// 已有记录时以存储为准，g 被忽略。
func New(st *store.Store, g domain.Genesis, opts ...Option) (*Engine, error) {
	o := options{
		now:   time.Now,
		newID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.bus == nil {
		o.bus = events.NewBus(256)
	}

	exec := &executor{store: st, bus: o.bus}
	e := &Engine{exec: exec}

	existing, err := loadGenesis(st)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		e.genesis = *existing
		if g.Holder != (domain.Account{}) && g.Holder != existing.Holder {
			log.Warnf("存储已有创世记录（holder=%s），忽略配置的 holder=%s", existing.Holder.Hex(), g.Holder.Hex())
		}
	} else {
		g, err = normalizeGenesis(g, o.now())
		if err != nil {
			return nil, err
		}
		e.genesis = g
		e.fresh = true
	}

	e.payment = &PaymentLedger{exec: exec}
	e.registry = &AssetRegistry{exec: exec}
	e.market = &Marketplace{
		exec:     exec,
		registry: e.registry,
		payment:  e.payment,
		account:  e.genesis.Marketplace,
		operator: e.genesis.Operator,
		fees:     policy.FeePolicy{CommissionBps: e.genesis.CommissionBps},
		now:      o.now,
		newID:    o.newID,
	}

	if e.fresh {
		if err := e.runGenesis(); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func loadGenesis(st *store.Store) (*domain.Genesis, error) {
	var g *domain.Genesis
	err := st.View(func(tx *store.Tx) (err error) {
		g, err = tx.Genesis()
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load genesis: %w", err)
	}
	return g, nil
}

func normalizeGenesis(g domain.Genesis, now time.Time) (domain.Genesis, error) {
	if domain.IsZeroAccount(g.Holder) {
		return g, fmt.Errorf("genesis holder: %w", domain.ErrInvalidOwner)
	}
	if domain.IsZeroAccount(g.Marketplace) {
		return g, fmt.Errorf("genesis marketplace account: %w", domain.ErrInvalidOperator)
	}
	if g.Marketplace == g.Holder {
		return g, fmt.Errorf("marketplace account must differ from holder: %w", domain.ErrInvalidOperator)
	}
	if domain.IsZeroAccount(g.Operator) {
		g.Operator = g.Holder
	}
	if err := (policy.FeePolicy{CommissionBps: g.CommissionBps}).Validate(); err != nil {
		return g, err
	}
	if g.TokenName == "" {
		g.TokenName = DefaultTokenName
	}
	if g.TokenSymbol == "" {
		g.TokenSymbol = DefaultTokenSymbol
	}
	if g.TokenDecimals == 0 {
		g.TokenDecimals = DefaultTokenDecimals
	}
	g.CreatedAt = now.UTC()
	return g, nil
}

func (e *Engine) runGenesis() error {
	g := e.genesis
	fields := logrus.Fields{"holder": g.Holder.Hex(), "supply": g.Supply, "commission_bps": g.CommissionBps}
	err := e.exec.update("genesis", fields, func(t *txn) error {
		if err := e.payment.initialSupply(t, g.Holder, g.Supply); err != nil {
			return err
		}
		if err := t.PutGenesis(&g); err != nil {
			return err
		}
		t.emit(events.GenesisEvent{Genesis: g})
		return nil
	})
	if err != nil {
		return fmt.Errorf("genesis: %w", err)
	}
	log.WithFields(fields).Info("创世完成")
	return nil
}

func (e *Engine) Registry() *AssetRegistry { return e.registry }
func (e *Engine) Payment() *PaymentLedger  { return e.payment }
func (e *Engine) Market() *Marketplace     { return e.market }

// Genesis 生效中的创世参数
func (e *Engine) Genesis() domain.Genesis { return e.genesis }

// Fresh 本次打开是否执行了创世
func (e *Engine) Fresh() bool { return e.fresh }

// Bus 已提交事件的总线
func (e *Engine) Bus() *events.Bus { return e.exec.bus }
