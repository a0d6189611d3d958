package processors

import (
	"github.com/shopspring/decimal"
	"github.com/username/steuerrechner/backend/src/models"
)

type DepotPositionType int

const (
	PositionLong DepotPositionType = iota
	PositionShort
)

// DepotPosition is an append-only ordered list of transactions for one
// instrument identity. Transactions must be fed in non-decreasing date
// order; matching is FIFO and order-sensitive. Once the running quantity
// returns to exactly zero the position is closed and rejects further
// appends. New activity under the same symbol starts a new position.
type DepotPosition struct {
	Symbol       string
	AssetClass   string
	Transactions []models.Transaction
	Closed       bool
}

func NewDepotPosition(symbol, assetClass string) *DepotPosition {
	return &DepotPosition{Symbol: symbol, AssetClass: assetClass}
}

func (p *DepotPosition) quantitySum() decimal.Decimal {
	sum := decimal.Zero
	for _, txn := range p.Transactions {
		sum = sum.Add(txn.Quantity)
	}
	return sum
}

// AddTransaction appends txn. When txn overshoots zero (e.g. holding 1 and
// selling 3), it is split proportionally: the closing piece closes this
// position and the exact remainder is returned so the caller can seed a new
// position of the opposite direction with it.
func (p *DepotPosition) AddTransaction(txn models.Transaction) (*models.Transaction, error) {
	if p.Closed {
		return nil, models.ErrClosedPosition
	}

	quantitySum := p.quantitySum()
	quantitySumPlusTxn := quantitySum.Add(txn.Quantity)
	if quantitySum.IsZero() || quantitySumPlusTxn.IsZero() ||
		quantitySum.IsNegative() == quantitySumPlusTxn.IsNegative() {
		// Transaction opens the position, closes it exactly, increases its
		// quantity, or decreases it without crossing zero.
		p.Transactions = append(p.Transactions, txn)
		if p.quantitySum().IsZero() {
			p.Closed = true
		}
		return nil, nil
	}

	// Transaction closes the position and leaves quantity over. Example: the
	// position holds 1 and the transaction carries -3; split off -1 to close
	// and hand back -2 for a new position.
	quantityToClose := decimal.Min(quantitySum.Abs(), txn.Quantity.Abs())
	if txn.Quantity.IsNegative() {
		quantityToClose = quantityToClose.Neg()
	}
	fraction := quantityToClose.Div(txn.Quantity)

	closing := txn.CloneAmounts()
	closing.Quantity = quantityToClose
	remainder := txn.CloneAmounts()
	remainder.Quantity = txn.Quantity.Sub(quantityToClose)
	if txn.Amount != nil {
		closingAmount := txn.Amount.Mul(fraction).Quantize(centPlaces)
		remainderAmount := txn.Amount.MustSub(closingAmount)
		closing.Amount = &closingAmount
		remainder.Amount = &remainderAmount
	}
	if txn.AmountOrig != nil {
		closingOrig := txn.AmountOrig.Mul(fraction).Quantize(centPlaces)
		remainderOrig := txn.AmountOrig.MustSub(closingOrig)
		closing.AmountOrig = &closingOrig
		remainder.AmountOrig = &remainderOrig
	}

	p.Transactions = append(p.Transactions, closing)
	p.Closed = true
	return &remainder, nil
}

// PositionType infers the direction from the first transaction: an opening
// buy or closing sell starts a long position, anything else a short one.
func (p *DepotPosition) PositionType() (DepotPositionType, bool) {
	if len(p.Transactions) == 0 {
		return 0, false
	}
	first := p.Transactions[0]
	if (first.OpenClose == models.Open && first.BuySell == models.Buy) ||
		(first.OpenClose == models.Close && first.BuySell == models.Sell) {
		return PositionLong, true
	}
	return PositionShort, true
}

// TransactionCollections runs the matching policy of the instrument type for
// closing transactions dated in year. Stocks and treasury bills match
// opening/closing FIFO pairs (long only). Short options report every premium
// independently; long options match like stock.
func (p *DepotPosition) TransactionCollections(year int) []TransactionCollection {
	switch p.AssetClass {
	case models.AssetClassStock, models.AssetClassTreasuryBill:
		return ToOpeningClosingPairs(p.Transactions, year)
	case models.AssetClassOption:
		positionType, ok := p.PositionType()
		if !ok {
			return nil
		}
		if positionType == PositionShort {
			return ToSingleTransactions(p.Transactions, year)
		}
		return ToOpeningClosingPairs(p.Transactions, year)
	}
	return nil
}
