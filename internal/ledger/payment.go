package ledger

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/openfire/firemarket/internal/domain"
	"github.com/openfire/firemarket/internal/events"
	"github.com/openfire/firemarket/internal/policy"
	"github.com/openfire/firemarket/internal/store"
)

// PaymentLedger 同质化支付代币账本（余额 + 额度）。
// 总供应量在创世时一次性铸给 holder，之后所有操作都保持 sum(balances) == totalSupply。
type PaymentLedger struct {
	exec *executor
}

// credit 一笔入账
type credit struct {
	to     domain.Account
	amount uint64
}

// InitialSupply 一次性创建全部供应量；创世之后再调用返回 ErrAlreadyInitialized。
func (p *PaymentLedger) InitialSupply(owner domain.Account, amount uint64) error {
	return p.exec.update("initialSupply", logrus.Fields{"owner": owner.Hex(), "amount": amount}, func(t *txn) error {
		return p.initialSupply(t, owner, amount)
	})
}

// Transfer 从 from 转 amount 给 to
func (p *PaymentLedger) Transfer(from, to domain.Account, amount uint64) error {
	fields := logrus.Fields{"from": from.Hex(), "to": to.Hex(), "amount": amount}
	return p.exec.update("transfer", fields, func(t *txn) error {
		return p.transfer(t, from, to, amount)
	})
}

// Approve 设置（覆盖）spender 可从 owner 划转的额度
func (p *PaymentLedger) Approve(owner, spender domain.Account, amount uint64) error {
	fields := logrus.Fields{"owner": owner.Hex(), "spender": spender.Hex(), "amount": amount}
	return p.exec.update("approve", fields, func(t *txn) error {
		return p.approve(t, owner, spender, amount)
	})
}

// TransferFrom spender 用额度把 from 的代币转给 to
func (p *PaymentLedger) TransferFrom(spender, from, to domain.Account, amount uint64) error {
	fields := logrus.Fields{"spender": spender.Hex(), "from": from.Hex(), "to": to.Hex(), "amount": amount}
	return p.exec.update("transferFrom", fields, func(t *txn) error {
		return p.transferFromSplit(t, spender, from, []credit{{to: to, amount: amount}})
	})
}

// BalanceOf 余额（未知账户为 0）
func (p *PaymentLedger) BalanceOf(account domain.Account) (uint64, error) {
	var bal uint64
	err := p.exec.view(func(tx *store.Tx) (err error) {
		bal, err = tx.Balance(account)
		return err
	})
	return bal, err
}

// Allowance 剩余额度
func (p *PaymentLedger) Allowance(owner, spender domain.Account) (uint64, error) {
	var n uint64
	err := p.exec.view(func(tx *store.Tx) (err error) {
		n, err = tx.Allowance(owner, spender)
		return err
	})
	return n, err
}

// TotalSupply 总供应量
func (p *PaymentLedger) TotalSupply() (uint64, error) {
	var n uint64
	err := p.exec.view(func(tx *store.Tx) (err error) {
		n, err = tx.TotalSupply()
		return err
	})
	return n, err
}

// Balances 所有非零余额
func (p *PaymentLedger) Balances() (map[domain.Account]uint64, error) {
	out := make(map[domain.Account]uint64)
	err := p.exec.view(func(tx *store.Tx) error {
		return tx.Balances(func(a domain.Account, bal uint64) error {
			out[a] = bal
			return nil
		})
	})
	return out, err
}

// ---------- 事务内实现 ----------

func (p *PaymentLedger) initialSupply(t *txn, owner domain.Account, amount uint64) error {
	if domain.IsZeroAccount(owner) {
		return domain.ErrInvalidOwner
	}
	if _, err := t.Genesis(); err == nil {
		return domain.ErrAlreadyInitialized
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	supply, err := t.TotalSupply()
	if err != nil {
		return err
	}
	if supply != 0 {
		return domain.ErrAlreadyInitialized
	}

	if err := t.SetTotalSupply(amount); err != nil {
		return err
	}
	if err := t.SetBalance(owner, amount); err != nil {
		return err
	}
	t.emit(events.PaymentTransferEvent{From: domain.ZeroAccount, To: owner, Amount: amount})
	return nil
}

func (p *PaymentLedger) transfer(t *txn, from, to domain.Account, amount uint64) error {
	if domain.IsZeroAccount(to) {
		return domain.ErrInvalidOwner
	}
	if err := p.debit(t, from, amount); err != nil {
		return err
	}
	if err := p.credit(t, to, amount); err != nil {
		return err
	}
	t.emit(events.PaymentTransferEvent{From: from, To: to, Amount: amount})
	return nil
}

func (p *PaymentLedger) approve(t *txn, owner, spender domain.Account, amount uint64) error {
	if domain.IsZeroAccount(spender) {
		return domain.ErrInvalidOperator
	}
	if err := t.SetAllowance(owner, spender, amount); err != nil {
		return err
	}
	t.emit(events.PaymentApprovalEvent{Owner: owner, Spender: spender, Amount: amount})
	return nil
}

// transferFromSplit 一次性消耗 sum(amounts) 的额度，再把 from 的余额按 credits 分账。
// 任一前置检查失败都不写入。
func (p *PaymentLedger) transferFromSplit(t *txn, spender, from domain.Account, credits []credit) error {
	var total uint64
	for _, c := range credits {
		if domain.IsZeroAccount(c.to) {
			return domain.ErrInvalidOwner
		}
		var err error
		if total, err = policy.Add(total, c.amount); err != nil {
			return err
		}
	}

	allowance, err := t.Allowance(from, spender)
	if err != nil {
		return err
	}
	if allowance < total {
		return fmt.Errorf("allowance %d < %d: %w", allowance, total, domain.ErrInsufficientAllowance)
	}
	bal, err := t.Balance(from)
	if err != nil {
		return err
	}
	if bal < total {
		return fmt.Errorf("balance %d < %d: %w", bal, total, domain.ErrInsufficientBalance)
	}

	if err := t.SetAllowance(from, spender, allowance-total); err != nil {
		return err
	}
	if err := t.SetBalance(from, bal-total); err != nil {
		return err
	}
	for _, c := range credits {
		if c.amount == 0 {
			continue
		}
		if err := p.credit(t, c.to, c.amount); err != nil {
			return err
		}
		t.emit(events.PaymentTransferEvent{From: from, To: c.to, Amount: c.amount})
	}
	return nil
}

func (p *PaymentLedger) debit(t *txn, from domain.Account, amount uint64) error {
	bal, err := t.Balance(from)
	if err != nil {
		return err
	}
	if bal < amount {
		return fmt.Errorf("balance %d < %d: %w", bal, amount, domain.ErrInsufficientBalance)
	}
	return t.SetBalance(from, bal-amount)
}

func (p *PaymentLedger) credit(t *txn, to domain.Account, amount uint64) error {
	bal, err := t.Balance(to)
	if err != nil {
		return err
	}
	next, err := policy.Add(bal, amount)
	if err != nil {
		return err
	}
	return t.SetBalance(to, next)
}
