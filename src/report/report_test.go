package report

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/steuerrechner/backend/src/models"
	"github.com/username/steuerrechner/backend/src/processors"
)

func day(year int, month time.Month, dayOfMonth int) time.Time {
	return time.Date(year, month, dayOfMonth, 0, 0, 0, 0, time.UTC)
}

func dec(value string) *decimal.Decimal {
	parsed := decimal.RequireFromString(value)
	return &parsed
}

func statementRow(code string, date time.Time, amount string) models.StatementRow {
	return models.StatementRow{
		CurrencyPrimary:     "EUR",
		Date:                date,
		ReportDate:          date,
		ActivityCode:        code,
		ActivityDescription: code + " line",
		Amount:              dec(amount),
	}
}

func stockTrade(tradeID string, date time.Time, buySell models.BuySell, openClose models.OpenCloseIndicator, quantity, amount string) models.TradeRow {
	return models.TradeRow{
		AssetClass: models.AssetClassStock,
		Symbol:     "ACME",
		TradeID:    tradeID,
		OpenClose:  openClose,
		BuySell:    buySell,
		Quantity:   decimal.RequireFromString(quantity),
		TradeDate:  date,
		Statement: &models.StatementRow{
			CurrencyPrimary:     "EUR",
			Date:                date,
			ActivityDescription: "trade",
			TradeID:             tradeID,
			Amount:              dec(amount),
		},
	}
}

func TestReport_StatementRouting(t *testing.T) {
	r := NewReport()
	r.ProcessStatement(statementRow(models.ActivityDeposit, day(2023, 1, 5), "5000.00"))
	r.ProcessStatement(statementRow(models.ActivityWithdrawal, day(2023, 2, 5), "-1000.00"))
	r.ProcessStatement(statementRow(models.ActivityCreditInterest, day(2023, 3, 5), "12.34"))
	r.ProcessStatement(statementRow(models.ActivityOtherFee, day(2023, 4, 5), "-3.00"))
	r.ProcessStatement(statementRow("MYSTERY", day(2023, 5, 5), "1.00"))

	deposits := r.GetDeposits(2023)
	require.Len(t, deposits.Rows, 2)
	assert.True(t, deposits.Total("amount").Equal(decimal.RequireFromString("4000.00")))

	assert.Len(t, r.GetInterests(2023).Rows, 1)
	assert.Len(t, r.GetOtherFees(2023).Rows, 1)
	assert.Len(t, r.GetUnknownLines(2023).Rows, 1)
	assert.Empty(t, r.GetDeposits(2022).Rows)
	assert.True(t, r.HasData())
}

func TestReport_DividendGroupingAndClassification(t *testing.T) {
	r := NewReport()

	dividend := statementRow(models.ActivityDividend, day(2023, 3, 1), "100.00")
	dividend.ActionID = "A1"
	r.ProcessStatement(dividend)

	withheld := statementRow(models.ActivityForeignTax, day(2023, 3, 1), "-15.00")
	withheld.ActionID = "A1"
	r.ProcessStatement(withheld)

	other := statementRow(models.ActivityDividend, day(2023, 4, 1), "50.00")
	other.ActionID = "A2"
	r.ProcessStatement(other)

	// Paid in December, reported in the next filing year.
	correction := statementRow(models.ActivityDividend, day(2022, 12, 30), "10.00")
	correction.ReportDate = day(2023, 1, 5)
	correction.ActionID = "A0"
	r.ProcessStatement(correction)

	result := r.GetDividends(2023)
	require.Len(t, result.Rows, 3)

	// Dividend and its withholding tax share one sequence number.
	assert.Equal(t, 1, result.Rows[0][0])
	assert.Equal(t, 1, result.Rows[1][0])
	assert.Equal(t, 2, result.Rows[2][0])

	// Tax lines carry their amount in the tax column.
	assert.Nil(t, result.Rows[1][4])
	assert.NotNil(t, result.Rows[1][5])
	assert.NotNil(t, result.Rows[0][4])
	assert.Nil(t, result.Rows[0][5])

	// The correction belongs to the year it amends, flagged as such.
	amended := r.GetDividends(2022)
	require.Len(t, amended.Rows, 1)
	assert.Equal(t, true, amended.Rows[0][6])
}

func TestReport_StockRoundTrip(t *testing.T) {
	r := NewReport()
	require.NoError(t, r.ProcessTrade(stockTrade("T1", day(2023, 1, 10), models.Buy, models.Open, "10", "-1000.00")))
	require.NoError(t, r.ProcessTrade(stockTrade("T2", day(2023, 6, 10), models.Sell, models.Close, "-10", "1200.00")))

	result := r.GetStocks(2023, processors.PositionLong)
	require.Len(t, result.Rows, 2)
	// Opening row carries no profit, the closing row realizes it.
	assert.Nil(t, result.Rows[0][6])
	assert.True(t, result.Total("profit").Equal(decimal.RequireFromString("200.00")))

	assert.Empty(t, r.GetStocks(2023, processors.PositionShort).Rows)
	assert.Len(t, r.GetAllStocks().Rows, 2)
}

func TestReport_ReopeningAfterCloseStartsNewPosition(t *testing.T) {
	r := NewReport()
	require.NoError(t, r.ProcessTrade(stockTrade("T1", day(2023, 1, 10), models.Buy, models.Open, "10", "-1000.00")))
	require.NoError(t, r.ProcessTrade(stockTrade("T2", day(2023, 2, 10), models.Sell, models.Close, "-10", "1100.00")))
	require.NoError(t, r.ProcessTrade(stockTrade("T3", day(2023, 3, 10), models.Buy, models.Open, "5", "-600.00")))
	require.NoError(t, r.ProcessTrade(stockTrade("T4", day(2023, 4, 10), models.Sell, models.Close, "-5", "700.00")))

	result := r.GetStocks(2023, processors.PositionLong)
	assert.True(t, result.Total("profit").Equal(decimal.RequireFromString("200.00")))
}

func TestReport_OvershootFlipsDirection(t *testing.T) {
	// Selling 3 while holding 1 closes the long position and opens a short
	// one with the exact remainder.
	r := NewReport()
	require.NoError(t, r.ProcessTrade(stockTrade("T1", day(2023, 1, 10), models.Buy, models.Open, "1", "-10.00")))
	require.NoError(t, r.ProcessTrade(stockTrade("T2", day(2023, 2, 10), models.Sell, models.Close, "-3", "33.00")))

	// The remainder opens with a closing sell, so both positions land in the
	// long table; the unmatched remainder row carries no profit.
	long := r.GetStocks(2023, processors.PositionLong)
	require.Len(t, long.Rows, 3)
	assert.Nil(t, long.Rows[2][6])
	assert.True(t, long.Total("profit").Equal(decimal.RequireFromString("1.00")))

	assert.Len(t, r.GetAllStocks().Rows, 3)
}

func TestReport_UnsupportedAssetClass(t *testing.T) {
	r := NewReport()
	err := r.ProcessTrade(models.TradeRow{AssetClass: "FUT", Symbol: "X", TradeDate: day(2023, 1, 1)})
	assert.Error(t, err)

	assert.NoError(t, r.ProcessTrade(models.TradeRow{AssetClass: models.AssetClassCash, TradeDate: day(2023, 1, 1)}))
}

func TestReport_TreasuryBillMaturity(t *testing.T) {
	r := NewReport()

	buy := models.TradeRow{
		AssetClass: models.AssetClassTreasuryBill,
		Symbol:     "B 0 07/15/23",
		TradeID:    "T1",
		OpenClose:  models.Open,
		BuySell:    models.Buy,
		Quantity:   decimal.RequireFromString("1000"),
		TradeDate:  day(2023, 1, 15),
		Statement: &models.StatementRow{
			CurrencyPrimary:     "EUR",
			CurrencyPrimaryOrig: "USD",
			Date:                day(2023, 1, 15),
			ActivityDescription: "Buy T-Bill",
			TradeID:             "T1",
			Amount:              dec("-970.00"),
			AmountOrig:          dec("-1000.00"),
			FXRateToBaseOrig:    dec("0.97"),
		},
	}
	require.NoError(t, r.ProcessTrade(buy))

	maturity := statementRow(models.ActivityCorporateAction, day(2023, 7, 15), "990.00")
	maturity.Symbol = "B 0 07/15/23"
	maturity.CurrencyPrimaryOrig = "USD"
	maturity.AmountOrig = dec("1000.00")
	maturity.FXRateToBaseOrig = dec("0.99")
	r.ProcessStatement(maturity)

	result := r.GetTreasuryBills(2023)
	require.Len(t, result.Rows, 2)
	assert.True(t, result.Total("profit").Equal(decimal.RequireFromString("20.00")))
}

func TestReport_ShortOptionPremiumAndExpiry(t *testing.T) {
	r := NewReport()

	expiry := day(2023, 6, 16)
	sellOpen := models.TradeRow{
		AssetClass: models.AssetClassOption,
		Symbol:     "ACME 230616C00100000",
		TradeID:    "T1",
		OpenClose:  models.Open,
		BuySell:    models.Sell,
		Quantity:   decimal.RequireFromString("-1"),
		TradeDate:  day(2023, 2, 1),
		Expiry:     &expiry,
		Statement: &models.StatementRow{
			CurrencyPrimary:     "EUR",
			Date:                day(2023, 2, 1),
			ActivityDescription: "Sell Call",
			TradeID:             "T1",
			Amount:              dec("100.00"),
		},
	}
	require.NoError(t, r.ProcessTrade(sellOpen))

	// The option expires worthless before the reporting date; no closing
	// transaction exists.
	r.Finish(day(2023, 12, 31))

	result := r.GetOptions(2023, processors.PositionShort)
	require.Len(t, result.Rows, 1)
	assert.True(t, result.Total("profit").Equal(decimal.RequireFromString("100.00")))

	income := r.GetShortOptionProfits(nil)
	require.Contains(t, income, 2023)
	assert.True(t, income[2023].Total("amount").Equal(decimal.RequireFromString("100.00")))
}

func TestReport_ForeignCurrencyFlowAndGains(t *testing.T) {
	r := NewReport()

	// Buy 1000 USD at 0.90, then spend them on a stock purchase at 0.95.
	forex := statementRow(models.ActivityForex, day(2023, 1, 10), "900.00")
	forex.TradeID = "FX1"
	forex.CurrencyPrimaryOrig = "USD"
	forex.AmountOrig = dec("1000.00")
	forex.FXRateToBaseOrig = dec("0.90")
	r.ProcessStatement(forex)

	buy := statementRow(models.ActivityBuy, day(2023, 3, 10), "-950.00")
	buy.AssetClass = models.AssetClassStock
	buy.TradeID = "T1"
	buy.CurrencyPrimaryOrig = "USD"
	buy.AmountOrig = dec("-1000.00")
	buy.FXRateToBaseOrig = dec("0.95")
	r.ProcessStatement(buy)

	assert.Len(t, r.GetForexes(2023).Rows, 1)

	currencies := r.GetForeignCurrencies(2023, false)
	require.Contains(t, currencies, "USD")
	usd := currencies["USD"]
	require.Len(t, usd.Rows, 2)
	assert.Equal(t, "Zugang", usd.Rows[0][1])
	assert.Equal(t, "Abgang", usd.Rows[1][1])
	// Both legs are genuine acquisitions and disposals, so both are relevant.
	assert.Equal(t, true, usd.Rows[0][6])
	assert.Equal(t, true, usd.Rows[1][6])
	// 1000 USD bought for 900 EUR, disposed of at a value of 950 EUR.
	assert.True(t, usd.Total("profit").Equal(decimal.RequireFromString("50.00")))

	r.Finish(day(2023, 12, 31))
	gains := r.GetCurrencyGains(2023, day(2023, 12, 31))
	require.Len(t, gains.Rows, 1)
	assert.True(t, gains.Total("profit").Equal(decimal.RequireFromString("50.00")))
}

func TestReport_InterestBearingAccountSkipsRepricing(t *testing.T) {
	r := NewReport()

	// A dividend received in USD is not a genuine acquisition.
	dividend := statementRow(models.ActivityDividend, day(2023, 1, 10), "90.00")
	dividend.CurrencyPrimaryOrig = "USD"
	dividend.AmountOrig = dec("100.00")
	dividend.FXRateToBaseOrig = dec("0.90")
	r.ProcessStatement(dividend)

	sell := statementRow(models.ActivityForex, day(2023, 3, 10), "-95.00")
	sell.CurrencyPrimaryOrig = "USD"
	sell.AmountOrig = dec("-100.00")
	sell.FXRateToBaseOrig = dec("0.95")
	r.ProcessStatement(sell)

	// Private disposal rules re-price the non-genuine inflow: no gain.
	private := r.GetForeignCurrencies(2023, false)["USD"]
	assert.True(t, private.Total("profit").IsZero())

	// Capital income rules keep the booked rates.
	interestBearing := r.GetForeignCurrencies(2023, true)["USD"]
	assert.True(t, interestBearing.Total("profit").Equal(decimal.RequireFromString("5.00")))
}

func TestReport_GetYearsSortedDescending(t *testing.T) {
	r := NewReport()
	r.ProcessStatement(statementRow(models.ActivityDeposit, day(2021, 1, 1), "1.00"))
	r.ProcessStatement(statementRow(models.ActivityDeposit, day(2023, 1, 1), "1.00"))
	r.ProcessStatement(statementRow(models.ActivityDeposit, day(2022, 1, 1), "1.00"))

	assert.Equal(t, []int{2023, 2022, 2021}, r.GetYears())
}

func TestReport_FinishIsIdempotent(t *testing.T) {
	r := NewReport()
	forex := statementRow(models.ActivityForex, day(2023, 1, 10), "900.00")
	forex.CurrencyPrimaryOrig = "USD"
	forex.AmountOrig = dec("1000.00")
	forex.FXRateToBaseOrig = dec("0.90")
	r.ProcessStatement(forex)

	r.Finish(day(2023, 12, 31))
	r.Finish(day(2023, 12, 31))
	assert.Empty(t, r.GetCurrencyGains(2023, day(2023, 12, 31)).Rows)
}
