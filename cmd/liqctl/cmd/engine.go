package cmd

import (
	"fmt"
	"time"

	"github.com/boddenberg/pj-liquidity-engine/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	projectCycles int

	payExpenseID string
	payIncomeID  string
	payAmount    string
	payAccountID string
	payDate      string
)

// cycleCheckCmd runs the billing cycle transition check.
var cycleCheckCmd = &cobra.Command{
	Use:   "cycle-check",
	Short: "Run the billing cycle transition check",
	Long: `Close the previous billing window if the current date has crossed
the anchor day, accruing unpaid expenses as overdue and resetting incomes.
Running it twice in the same cycle is a no-op.`,
	Run: func(cmd *cobra.Command, args []string) {
		_, report, closeFn, err := openEngine(cmd.Context())
		exitOnError(err, "cycle check failed")
		defer closeFn()

		exitOnError(printJSON(cmd, report), "failed to print report")
	},
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print the liquidity summary",
	Run: func(cmd *cobra.Command, args []string) {
		engine, _, closeFn, err := openEngine(cmd.Context())
		exitOnError(err, "failed to open engine")
		defer closeFn()

		exitOnError(printJSON(cmd, engine.Summary(cmd.Context())), "failed to print summary")
	},
}

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Project liquid funds over future cycles",
	Run: func(cmd *cobra.Command, args []string) {
		engine, _, closeFn, err := openEngine(cmd.Context())
		exitOnError(err, "failed to open engine")
		defer closeFn()

		p, err := engine.Projection(cmd.Context(), projectCycles)
		exitOnError(err, "projection failed")
		exitOnError(printJSON(cmd, p), "failed to print projection")
	},
}

var payCmd = &cobra.Command{
	Use:   "pay",
	Short: "Record a payment against a recurring expense",
	Run: func(cmd *cobra.Command, args []string) {
		req, err := paymentRequest(payAmount, payDate, payAccountID)
		exitOnError(err, "invalid payment")

		engine, _, closeFn, err := openEngine(cmd.Context())
		exitOnError(err, "failed to open engine")
		defer closeFn()

		res, err := engine.ApplyExpensePayment(cmd.Context(), payExpenseID, req)
		exitOnError(err, "payment failed")
		exitOnError(printJSON(cmd, res), "failed to print result")
	},
}

var receiveCmd = &cobra.Command{
	Use:   "receive",
	Short: "Record a receipt against a recurring income",
	Run: func(cmd *cobra.Command, args []string) {
		req, err := paymentRequest(payAmount, payDate, payAccountID)
		exitOnError(err, "invalid receipt")

		engine, _, closeFn, err := openEngine(cmd.Context())
		exitOnError(err, "failed to open engine")
		defer closeFn()

		res, err := engine.ApplyIncomeReceipt(cmd.Context(), payIncomeID, req)
		exitOnError(err, "receipt failed")
		exitOnError(printJSON(cmd, res), "failed to print result")
	},
}

func init() {
	projectCmd.Flags().IntVar(&projectCycles, "cycles", 12, "number of cycles to project")

	payCmd.Flags().StringVar(&payExpenseID, "expense", "", "recurring expense ID (required)")
	receiveCmd.Flags().StringVar(&payIncomeID, "income", "", "recurring income ID (required)")
	for _, c := range []*cobra.Command{payCmd, receiveCmd} {
		c.Flags().StringVar(&payAmount, "amount", "", "amount (required)")
		c.Flags().StringVar(&payAccountID, "account", "", "account ID (default: cash)")
		c.Flags().StringVar(&payDate, "date", "", "date YYYY-MM-DD (default: today)")
		c.MarkFlagRequired("amount")
	}
	payCmd.MarkFlagRequired("expense")
	receiveCmd.MarkFlagRequired("income")
}

// paymentRequest parses CLI flag values into a payment request. An empty
// date is left zero so the engine uses the current date.
func paymentRequest(amount, date, accountID string) (domain.PaymentRequest, error) {
	amt, err := decimal.NewFromString(amount)
	if err != nil {
		return domain.PaymentRequest{}, fmt.Errorf("amount %q: %w", amount, err)
	}
	req := domain.PaymentRequest{Amount: amt, AccountID: accountID}
	if date != "" {
		d, err := time.ParseInLocation(time.DateOnly, date, time.Local)
		if err != nil {
			return domain.PaymentRequest{}, fmt.Errorf("date %q: %w", date, err)
		}
		req.Date = d
	}
	return req, nil
}
