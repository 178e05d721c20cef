package service

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/boddenberg/pj-liquidity-engine/internal/domain"

	"go.uber.org/zap"
)

// Persisted keys. Each holds one JSON document.
const (
	KeyLedger            = "ledger"
	KeyRecurringExpenses = "recurring_expenses"
	KeyRecurringIncomes  = "recurring_incomes"
	KeyAccounts          = "accounts"
	KeySavingGoals       = "saving_goals"
	KeyPrimaryAccount    = "primary_account"
	KeyCycle             = "cycle_key"
)

// state is the whole engine state. It is only mutated on a private clone
// inside Engine.update and swapped in after a successful write.
type state struct {
	Ledger         []domain.Transaction
	Expenses       []domain.RecurringExpense
	Incomes        []domain.RecurringIncome
	Accounts       []domain.Account
	Goals          []domain.SavingGoal
	PrimaryAccount string
	Cycle          domain.CycleState
}

func (s *state) clone() *state {
	c := &state{
		Ledger:         slices.Clone(s.Ledger),
		Expenses:       slices.Clone(s.Expenses),
		Incomes:        slices.Clone(s.Incomes),
		Accounts:       slices.Clone(s.Accounts),
		Goals:          slices.Clone(s.Goals),
		PrimaryAccount: s.PrimaryAccount,
		Cycle:          s.Cycle,
	}
	for i := range c.Accounts {
		c.Accounts[i].Holdings = slices.Clone(c.Accounts[i].Holdings)
	}
	return c
}

func (s *state) expenseIndex(id string) int {
	return slices.IndexFunc(s.Expenses, func(e domain.RecurringExpense) bool { return e.ID == id })
}

func (s *state) incomeIndex(id string) int {
	return slices.IndexFunc(s.Incomes, func(i domain.RecurringIncome) bool { return i.ID == id })
}

func (s *state) accountIndex(id string) int {
	return slices.IndexFunc(s.Accounts, func(a domain.Account) bool { return a.ID == id })
}

func (s *state) goalIndex(id string) int {
	return slices.IndexFunc(s.Goals, func(g domain.SavingGoal) bool { return g.ID == id })
}

func (s *state) transactionIndex(id string) int {
	return slices.IndexFunc(s.Ledger, func(t domain.Transaction) bool { return t.ID == id })
}

// encode marshals the documents for the given keys.
func (s *state) encode(keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		var v any
		switch k {
		case KeyLedger:
			v = s.Ledger
		case KeyRecurringExpenses:
			v = s.Expenses
		case KeyRecurringIncomes:
			v = s.Incomes
		case KeyAccounts:
			v = s.Accounts
		case KeySavingGoals:
			v = s.Goals
		case KeyPrimaryAccount:
			v = s.PrimaryAccount
		case KeyCycle:
			v = s.Cycle
		default:
			return nil, fmt.Errorf("unknown state key %q", k)
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", k, err)
		}
		out[k] = data
	}
	return out, nil
}

// loadState reads every document. A missing document yields the empty
// default; a malformed one is logged and also yields the default so a
// corrupt entry never prevents the engine from starting.
func loadState(ctx context.Context, get func(context.Context, string) ([]byte, error), logger *zap.Logger) (*state, error) {
	s := &state{}
	targets := []struct {
		key string
		dst any
	}{
		{KeyLedger, &s.Ledger},
		{KeyRecurringExpenses, &s.Expenses},
		{KeyRecurringIncomes, &s.Incomes},
		{KeyAccounts, &s.Accounts},
		{KeySavingGoals, &s.Goals},
		{KeyPrimaryAccount, &s.PrimaryAccount},
		{KeyCycle, &s.Cycle},
	}

	for _, t := range targets {
		data, err := get(ctx, t.key)
		if err != nil {
			return nil, &domain.ErrPersistence{Op: "get " + t.key, Err: err}
		}
		if len(data) == 0 {
			continue
		}
		if err := json.Unmarshal(data, t.dst); err != nil {
			logger.Warn("malformed persisted state, using default",
				zap.String("key", t.key),
				zap.Error(err),
			)
			resetTarget(s, t.key)
		}
	}
	return s, nil
}

func resetTarget(s *state, key string) {
	switch key {
	case KeyLedger:
		s.Ledger = nil
	case KeyRecurringExpenses:
		s.Expenses = nil
	case KeyRecurringIncomes:
		s.Incomes = nil
	case KeyAccounts:
		s.Accounts = nil
	case KeySavingGoals:
		s.Goals = nil
	case KeyPrimaryAccount:
		s.PrimaryAccount = ""
	case KeyCycle:
		s.Cycle = domain.CycleState{}
	}
}

// mutation is the working copy handed to update callbacks. touch records
// which documents must be written back.
type mutation struct {
	*state
	dirty map[string]struct{}
}

func (m *mutation) touch(keys ...string) {
	for _, k := range keys {
		m.dirty[k] = struct{}{}
	}
}

func (m *mutation) dirtyKeys() []string {
	keys := make([]string, 0, len(m.dirty))
	for k := range m.dirty {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
