package processors

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/steuerrechner/backend/src/models"
)

func usdTxn(date time.Time, amountOrig, fxRate, amountBase string) models.Transaction {
	orig := models.MoneyFromString(amountOrig, "USD")
	base := models.MoneyFromString(amountBase, "EUR")
	txn := models.Transaction{
		Date:       date,
		Quantity:   orig.Amount,
		Amount:     &base,
		AmountOrig: &orig,
		FXRate:     decimal.RequireFromString(fxRate),
	}
	if orig.IsNegative() {
		txn.BuySell = models.Sell
		txn.OpenClose = models.Close
	} else {
		txn.BuySell = models.Buy
		txn.OpenClose = models.Open
	}
	return txn
}

func TestForeignCurrencyAccount_ValidatesConvention(t *testing.T) {
	account := NewForeignCurrencyAccount("USD")

	valid := usdTxn(day(2020, 1, 1), "100.00", "0.9", "90.00")
	require.NoError(t, account.AddTransaction(valid))

	missingAmount := valid
	missingAmount.Amount = nil
	assert.Error(t, account.AddTransaction(missingAmount))

	wrongCurrency := usdTxn(day(2020, 1, 1), "100.00", "0.9", "90.00")
	wrongCurrency.AmountOrig.Currency = "CHF"
	assert.Error(t, account.AddTransaction(wrongCurrency))

	quantityMismatch := usdTxn(day(2020, 1, 1), "100.00", "0.9", "90.00")
	quantityMismatch.Quantity = decimal.NewFromInt(50)
	assert.Error(t, account.AddTransaction(quantityMismatch))

	signMismatch := usdTxn(day(2020, 1, 1), "100.00", "0.9", "90.00")
	negated := signMismatch.Amount.Neg()
	signMismatch.Amount = &negated
	assert.Error(t, account.AddTransaction(signMismatch))

	sellAsBuy := usdTxn(day(2020, 1, 1), "-100.00", "0.9", "-90.00")
	sellAsBuy.BuySell = models.Buy
	assert.Error(t, account.AddTransaction(sellAsBuy))

	buyMustOpen := usdTxn(day(2020, 1, 1), "100.00", "0.9", "90.00")
	buyMustOpen.OpenClose = models.Close
	assert.Error(t, account.AddTransaction(buyMustOpen))
}

func TestForeignCurrencyAccount_TransactionPairsFIFO(t *testing.T) {
	// Buy 100 USD at 0.90, buy 50 USD at 1.00, sell 120 USD at 0.95: the
	// sale consumes the whole first buy plus 20 of the second.
	account := NewForeignCurrencyAccount("USD")
	require.NoError(t, account.AddTransaction(usdTxn(day(2020, 1, 1), "100.00", "0.9", "90.00")))
	require.NoError(t, account.AddTransaction(usdTxn(day(2020, 2, 1), "50.00", "1.0", "50.00")))
	require.NoError(t, account.AddTransaction(usdTxn(day(2020, 3, 1), "-120.00", "0.95", "-114.00")))

	pairs := account.TransactionPairs(2020)
	require.Len(t, pairs, 1)
	pair := pairs[0]
	assert.True(t, pair.IsClosed())

	openings := pair.OpeningTransactions()
	require.Len(t, openings, 2)
	assert.True(t, openings[0].AmountOrig.Equal(models.MoneyFromString("100.00", "USD")))
	assert.True(t, openings[1].AmountOrig.Equal(models.MoneyFromString("20.00", "USD")))
	assert.True(t, openings[1].Amount.Equal(models.MoneyFromString("20.00", "EUR")))

	// Sale proceeds 114.00 against cost 90.00 + 20.00; the pair's sum is
	// buy-side signed.
	assert.True(t, pair.Profit().Neg().Equal(models.MoneyFromString("4.00", "EUR")))
}
