package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/boddenberg/pj-liquidity-engine/internal/domain"
	"github.com/boddenberg/pj-liquidity-engine/internal/service"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var seedFile string

// seedCmd imports accounts, obligations and goals from a YAML fixture.
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Import accounts, obligations and goals from a YAML fixture",
	Long: `Register the accounts, recurring expenses, recurring incomes and
saving goals listed in a YAML fixture. Amounts are quoted strings so they
keep their exact decimal value; dates use YYYY-MM-DD.

Example fixture:
  primaryAccount: nubank
  accounts:
    - id: nubank
      name: Nubank
      type: bank
      openingBalance: "2500.00"
  expenses:
    - description: Rent
      category: housing
      amount: "1200.00"
      dayOfMonth: 5
  incomes:
    - description: Salary
      amount: "5000.00"
      dayOfMonth: 1
  goals:
    - name: Emergency fund
      targetAmount: "10000"`,
	Run: func(cmd *cobra.Command, args []string) {
		raw, err := os.ReadFile(seedFile)
		exitOnError(err, "failed to read fixture")

		fx, err := parseFixture(raw)
		exitOnError(err, "invalid fixture")

		engine, _, closeFn, err := openEngine(cmd.Context())
		exitOnError(err, "failed to open engine")
		defer closeFn()

		res, err := applyFixture(cmd.Context(), engine, fx)
		exitOnError(err, "seed failed")
		exitOnError(printJSON(cmd, res), "failed to print result")
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedFile, "file", "", "YAML fixture path (required)")
	seedCmd.MarkFlagRequired("file")
}

type fixtureHolding struct {
	Symbol        string `yaml:"symbol"`
	Quantity      string `yaml:"quantity"`
	PurchasePrice string `yaml:"purchasePrice"`
}

type fixtureAccount struct {
	ID             string           `yaml:"id"`
	Name           string           `yaml:"name"`
	Type           string           `yaml:"type"`
	OpeningBalance string           `yaml:"openingBalance"`
	Holdings       []fixtureHolding `yaml:"holdings"`
}

type fixtureObligation struct {
	Description string `yaml:"description"`
	Category    string `yaml:"category"`
	Amount      string `yaml:"amount"`
	DayOfMonth  int    `yaml:"dayOfMonth"`
	NextDate    string `yaml:"nextDate"`
}

type fixtureGoal struct {
	Name          string `yaml:"name"`
	TargetAmount  string `yaml:"targetAmount"`
	CurrentAmount string `yaml:"currentAmount"`
	Institution   string `yaml:"institution"`
}

type fixtureFile struct {
	PrimaryAccount string              `yaml:"primaryAccount"`
	Accounts       []fixtureAccount    `yaml:"accounts"`
	Expenses       []fixtureObligation `yaml:"expenses"`
	Incomes        []fixtureObligation `yaml:"incomes"`
	Goals          []fixtureGoal       `yaml:"goals"`
}

// fixture is a parsed seed file, already converted to engine requests.
type fixture struct {
	PrimaryAccount string
	Accounts       []domain.AccountRequest
	Expenses       []domain.ObligationDefinition
	Incomes        []domain.ObligationDefinition
	Goals          []domain.SavingGoalRequest
}

// seedResult counts what a seed run registered.
type seedResult struct {
	Accounts int    `json:"accounts"`
	Expenses int    `json:"expenses"`
	Incomes  int    `json:"incomes"`
	Goals    int    `json:"goals"`
	Primary  string `json:"primaryAccount,omitempty"`
}

func parseFixture(raw []byte) (*fixture, error) {
	var f fixtureFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	out := &fixture{PrimaryAccount: f.PrimaryAccount}
	for i, a := range f.Accounts {
		opening, err := parseAmount(a.OpeningBalance)
		if err != nil {
			return nil, fmt.Errorf("accounts[%d].openingBalance: %w", i, err)
		}
		req := domain.AccountRequest{
			ID:             a.ID,
			Name:           a.Name,
			Type:           domain.AccountType(a.Type),
			OpeningBalance: opening,
		}
		for j, h := range a.Holdings {
			qty, err := parseAmount(h.Quantity)
			if err != nil {
				return nil, fmt.Errorf("accounts[%d].holdings[%d].quantity: %w", i, j, err)
			}
			price, err := parseAmount(h.PurchasePrice)
			if err != nil {
				return nil, fmt.Errorf("accounts[%d].holdings[%d].purchasePrice: %w", i, j, err)
			}
			req.Holdings = append(req.Holdings, domain.Holding{Symbol: h.Symbol, Quantity: qty, PurchasePrice: price})
		}
		out.Accounts = append(out.Accounts, req)
	}

	var err error
	if out.Expenses, err = parseObligations("expenses", f.Expenses); err != nil {
		return nil, err
	}
	if out.Incomes, err = parseObligations("incomes", f.Incomes); err != nil {
		return nil, err
	}

	for i, g := range f.Goals {
		target, err := parseAmount(g.TargetAmount)
		if err != nil {
			return nil, fmt.Errorf("goals[%d].targetAmount: %w", i, err)
		}
		current, err := parseAmount(g.CurrentAmount)
		if err != nil {
			return nil, fmt.Errorf("goals[%d].currentAmount: %w", i, err)
		}
		out.Goals = append(out.Goals, domain.SavingGoalRequest{
			Name:          g.Name,
			TargetAmount:  target,
			CurrentAmount: current,
			Institution:   g.Institution,
		})
	}
	return out, nil
}

func parseObligations(section string, in []fixtureObligation) ([]domain.ObligationDefinition, error) {
	var out []domain.ObligationDefinition
	for i, o := range in {
		amount, err := parseAmount(o.Amount)
		if err != nil {
			return nil, fmt.Errorf("%s[%d].amount: %w", section, i, err)
		}
		def := domain.ObligationDefinition{
			Description: o.Description,
			Category:    o.Category,
			Amount:      amount,
			DayOfMonth:  o.DayOfMonth,
		}
		if o.NextDate != "" {
			d, err := time.ParseInLocation(time.DateOnly, o.NextDate, time.Local)
			if err != nil {
				return nil, fmt.Errorf("%s[%d].nextDate: %w", section, i, err)
			}
			def.NextDate = &d
		}
		out = append(out, def)
	}
	return out, nil
}

// parseAmount reads a decimal string. Empty means zero.
func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// applyFixture registers everything in order: accounts first so the primary
// designation can resolve. It stops at the first rejected entry; entries
// registered before it stay.
func applyFixture(ctx context.Context, engine *service.Engine, fx *fixture) (*seedResult, error) {
	res := &seedResult{}
	for _, a := range fx.Accounts {
		acct, err := engine.RegisterAccount(ctx, a)
		if err != nil {
			return res, fmt.Errorf("account %q: %w", a.Name, err)
		}
		logger.Debug("seeded account", zap.String("id", acct.ID))
		res.Accounts++
	}
	if fx.PrimaryAccount != "" {
		if err := engine.SetPrimaryAccount(ctx, fx.PrimaryAccount); err != nil {
			return res, fmt.Errorf("primary account: %w", err)
		}
		res.Primary = fx.PrimaryAccount
	}
	for _, d := range fx.Expenses {
		if _, err := engine.RegisterExpense(ctx, d); err != nil {
			return res, fmt.Errorf("expense %q: %w", d.Description, err)
		}
		res.Expenses++
	}
	for _, d := range fx.Incomes {
		if _, err := engine.RegisterIncome(ctx, d); err != nil {
			return res, fmt.Errorf("income %q: %w", d.Description, err)
		}
		res.Incomes++
	}
	for _, g := range fx.Goals {
		if _, err := engine.CreateGoal(ctx, g); err != nil {
			return res, fmt.Errorf("goal %q: %w", g.Name, err)
		}
		res.Goals++
	}
	return res, nil
}
