package service_test

import (
	"testing"

	"github.com/boddenberg/pj-liquidity-engine/internal/domain"
	"github.com/boddenberg/pj-liquidity-engine/internal/service"

	"github.com/stretchr/testify/assert"
)

func TestMarketValue(t *testing.T) {
	h := domain.Holding{Symbol: "btc", Quantity: dec("0.5"), PurchasePrice: dec("30000")}

	tests := []struct {
		name     string
		prices   map[string]domain.MarketPrice
		want     string
		wantLive bool
	}{
		{
			name:   "falls back to purchase price",
			prices: map[string]domain.MarketPrice{"ETH": {Symbol: "ETH", Price: dec("2000")}},
			want:   "15000",
		},
		{
			name:     "uses live quote",
			prices:   map[string]domain.MarketPrice{"BTC": {Symbol: "BTC", Price: dec("60000")}},
			want:     "30000",
			wantLive: true,
		},
		{
			name: "nil price map",
			want: "15000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := service.MarketValue(h, tt.prices)
			assertDecimal(t, tt.want, got.Value)
			assert.Equal(t, tt.wantLive, got.Live)
		})
	}
}

func TestAccountValue_SubtractsWithdrawals(t *testing.T) {
	acct := domain.Account{
		ID:   "broker",
		Type: domain.AccountInvestment,
		Holdings: []domain.Holding{
			{Symbol: "VTI", Quantity: dec("10"), PurchasePrice: dec("200")},
			{Symbol: "BND", Quantity: dec("20"), PurchasePrice: dec("70")},
		},
	}
	prices := map[string]domain.MarketPrice{"VTI": {Symbol: "VTI", Price: dec("250")}}
	txs := []domain.Transaction{
		tx("w1", domain.DirectionWithdrawal, "300", "broker", "main"),
		tx("w2", domain.DirectionWithdrawal, "999", "other", "main"),
		tx("i1", domain.DirectionIncome, "50", "broker", ""),
	}

	got := service.AccountValue(acct, prices, txs)

	assertDecimal(t, "3900", got.Gross)
	assertDecimal(t, "300", got.Withdrawals)
	assertDecimal(t, "3600", got.Value)
	assert.Len(t, got.Holdings, 2)
	assert.True(t, got.Holdings[0].Live)
	assert.False(t, got.Holdings[1].Live)
}
