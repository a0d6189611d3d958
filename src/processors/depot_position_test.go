package processors

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/steuerrechner/backend/src/models"
)

func buySellTxn(date time.Time, buySell models.BuySell, openClose models.OpenCloseIndicator, quantity, amount string) models.Transaction {
	txn := baseTxn(date, openClose, quantity, amount)
	txn.BuySell = buySell
	return txn
}

func TestDepotPosition_ClosesAtZeroAndRejectsFurtherAppends(t *testing.T) {
	position := NewDepotPosition("ACME", models.AssetClassStock)

	remainder, err := position.AddTransaction(buySellTxn(day(2023, 1, 1), models.Buy, models.Open, "10", "-1000.00"))
	require.NoError(t, err)
	assert.Nil(t, remainder)
	assert.False(t, position.Closed)

	remainder, err = position.AddTransaction(buySellTxn(day(2023, 2, 1), models.Sell, models.Close, "-10", "1100.00"))
	require.NoError(t, err)
	assert.Nil(t, remainder)
	assert.True(t, position.Closed)

	_, err = position.AddTransaction(buySellTxn(day(2023, 3, 1), models.Buy, models.Open, "5", "-500.00"))
	assert.ErrorIs(t, err, models.ErrClosedPosition)
}

func TestDepotPosition_OpeningSellStartsShortPosition(t *testing.T) {
	// The first transaction of a position can never overshoot: a negative
	// opening quantity starts a short position, it does not close anything.
	position := NewDepotPosition("ACME 240119C00100000", models.AssetClassOption)

	remainder, err := position.AddTransaction(buySellTxn(day(2023, 1, 1), models.Sell, models.Open, "-1", "100.00"))
	require.NoError(t, err)
	assert.Nil(t, remainder)
	assert.False(t, position.Closed)
	require.Len(t, position.Transactions, 1)
	assert.Equal(t, "-1", position.Transactions[0].Quantity.String())
}

func TestDepotPosition_PartialCloseStaysOpen(t *testing.T) {
	position := NewDepotPosition("ACME", models.AssetClassStock)

	_, err := position.AddTransaction(buySellTxn(day(2023, 1, 1), models.Buy, models.Open, "10", "-1000.00"))
	require.NoError(t, err)
	remainder, err := position.AddTransaction(buySellTxn(day(2023, 2, 1), models.Sell, models.Close, "-4", "450.00"))
	require.NoError(t, err)
	assert.Nil(t, remainder)
	assert.False(t, position.Closed)
}

func TestDepotPosition_OvershootSplitsAndReturnsRemainder(t *testing.T) {
	// Holding 1, selling 3: one unit closes this position, the exact
	// remainder of two units seeds a new short position.
	position := NewDepotPosition("ACME", models.AssetClassStock)

	_, err := position.AddTransaction(buySellTxn(day(2023, 1, 1), models.Buy, models.Open, "1", "-10.00"))
	require.NoError(t, err)

	remainder, err := position.AddTransaction(buySellTxn(day(2023, 2, 1), models.Sell, models.Close, "-3", "33.00"))
	require.NoError(t, err)
	require.NotNil(t, remainder)
	assert.True(t, position.Closed)

	closing := position.Transactions[1]
	assert.Equal(t, "-1", closing.Quantity.String())
	assert.Equal(t, "-2", remainder.Quantity.String())

	// Amounts are conserved across the split.
	total := closing.Amount.MustAdd(*remainder.Amount)
	assert.Equal(t, "33.00", total.Amount.StringFixed(2))
	assert.True(t, closing.Amount.Equal(models.MoneyFromString("11.00", "EUR")))
}

func TestDepotPosition_PositionType(t *testing.T) {
	long := NewDepotPosition("ACME", models.AssetClassStock)
	_, err := long.AddTransaction(buySellTxn(day(2023, 1, 1), models.Buy, models.Open, "10", "-1000.00"))
	require.NoError(t, err)
	kind, ok := long.PositionType()
	require.True(t, ok)
	assert.Equal(t, PositionLong, kind)

	short := NewDepotPosition("ACME 240119C00100000", models.AssetClassOption)
	_, err = short.AddTransaction(buySellTxn(day(2023, 1, 1), models.Sell, models.Open, "-1", "100.00"))
	require.NoError(t, err)
	kind, ok = short.PositionType()
	require.True(t, ok)
	assert.Equal(t, PositionShort, kind)

	empty := NewDepotPosition("ACME", models.AssetClassStock)
	_, ok = empty.PositionType()
	assert.False(t, ok)
}

func TestDepotPosition_TransactionCollectionsDispatch(t *testing.T) {
	// Short options report each premium on its own; long options and stocks
	// match opening/closing pairs.
	shortOption := NewDepotPosition("ACME 240119C00100000", models.AssetClassOption)
	_, err := shortOption.AddTransaction(buySellTxn(day(2023, 1, 1), models.Sell, models.Open, "-1", "100.00"))
	require.NoError(t, err)
	_, err = shortOption.AddTransaction(buySellTxn(day(2023, 2, 1), models.Buy, models.Close, "1", "-40.00"))
	require.NoError(t, err)

	collections := shortOption.TransactionCollections(2023)
	require.Len(t, collections, 2)
	_, isSingle := collections[0].(SingleTransaction)
	assert.True(t, isSingle)

	longOption := NewDepotPosition("ACME 240119P00090000", models.AssetClassOption)
	_, err = longOption.AddTransaction(buySellTxn(day(2023, 1, 1), models.Buy, models.Open, "1", "-80.00"))
	require.NoError(t, err)
	_, err = longOption.AddTransaction(buySellTxn(day(2023, 2, 1), models.Sell, models.Close, "-1", "120.00"))
	require.NoError(t, err)

	collections = longOption.TransactionCollections(2023)
	require.Len(t, collections, 1)
	pair, isPair := collections[0].(*TransactionPair)
	require.True(t, isPair)
	assert.Equal(t, "40.00", pair.Profit().Amount.StringFixed(2))
}
