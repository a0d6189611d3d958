package processors

import (
	"github.com/shopspring/decimal"

	"github.com/username/steuerrechner/backend/src/logger"
	"github.com/username/steuerrechner/backend/src/models"
)

// centPlaces is the working precision for split amounts: tax figures are
// reported in whole cents.
const centPlaces = 2

// TransactionCollection abstracts over "one closing event and the opening
// event(s) it consumed".
type TransactionCollection interface {
	// Profit is the realized result in base currency: the sum of all
	// opening amounts plus the closing amount.
	Profit() models.Money
	IsClosed() bool
	ClosingTransaction() models.TaxableTransaction
	OpeningTransactions() []models.TaxableTransaction
}

// SingleTransaction wraps one self-contained transaction. It is always
// closed and its profit is its own amount. Short-option premiums are modeled
// this way: taxable income at receipt, no pairing.
type SingleTransaction struct {
	Transaction models.TaxableTransaction
}

func (s SingleTransaction) Profit() models.Money {
	if s.Transaction.Amount == nil {
		return models.Money{}
	}
	return *s.Transaction.Amount
}

func (s SingleTransaction) IsClosed() bool { return true }

func (s SingleTransaction) ClosingTransaction() models.TaxableTransaction {
	return s.Transaction
}

func (s SingleTransaction) OpeningTransactions() []models.TaxableTransaction {
	return nil
}

// TransactionPair wraps one closing transaction plus the ordered, possibly
// split opening transactions consumed to satisfy it.
type TransactionPair struct {
	Closing  models.TaxableTransaction
	Openings []models.TaxableTransaction
}

func (p *TransactionPair) Profit() models.Money {
	var sum models.Money
	initialized := false
	for _, opening := range p.Openings {
		if opening.Amount == nil {
			continue
		}
		if !initialized {
			sum = opening.Amount.AsZero()
			initialized = true
		}
		sum = sum.MustAdd(*opening.Amount)
	}
	if p.Closing.Amount != nil {
		if !initialized {
			return *p.Closing.Amount
		}
		sum = sum.MustAdd(*p.Closing.Amount)
	}
	return sum
}

// IsClosed reports whether the opening and closing quantities net to zero.
func (p *TransactionPair) IsClosed() bool {
	total := p.Closing.Quantity
	for _, opening := range p.Openings {
		total = total.Add(opening.Quantity)
	}
	return total.IsZero()
}

func (p *TransactionPair) ClosingTransaction() models.TaxableTransaction {
	return p.Closing
}

func (p *TransactionPair) OpeningTransactions() []models.TaxableTransaction {
	return p.Openings
}

// ToSingleTransactions maps every transaction dated in year that moved money
// to its own SingleTransaction.
func ToSingleTransactions(transactions []models.Transaction, year int) []TransactionCollection {
	var collections []TransactionCollection
	for _, txn := range transactions {
		if txn.Date.Year() != year || txn.Amount == nil {
			continue
		}
		collections = append(collections, SingleTransaction{
			Transaction: models.NewTaxableTransaction(txn, models.TaxRelevant),
		})
	}
	return collections
}

// ToOpeningClosingPairs builds pairs of one closing transaction and the
// opening transaction(s) it consumed. A closing transaction can consume
// several openings when quantities do not line up, and an opening may be
// split across several closings. Transactions are processed in feed order,
// so a chronological feed yields first-in first-out matching.
func ToOpeningClosingPairs(transactions []models.Transaction, year int) []TransactionCollection {
	var openings []models.Transaction
	var closings []models.Transaction
	for _, txn := range transactions {
		switch txn.OpenClose {
		case models.Open:
			openings = append(openings, txn)
		case models.Close:
			closings = append(closings, txn)
		}
	}

	var pairs []*TransactionPair
	for _, closing := range closings {
		pair := &TransactionPair{
			Closing: models.NewTaxableTransaction(closing.CloneAmounts(), models.TaxRelevant),
		}
		quantityToClose := closing.Quantity
		for !quantityToClose.IsZero() && len(openings) > 0 {
			opening := openings[0]
			openings = openings[1:]
			if opening.Quantity.Abs().Cmp(quantityToClose.Abs()) <= 0 {
				pair.Openings = append(pair.Openings,
					models.NewTaxableTransaction(opening.CloneAmounts(), models.TaxRelevant))
				quantityToClose = quantityToClose.Add(opening.Quantity)
				continue
			}

			// Opening is larger than what is left to close: carve out the
			// consumed piece and push the exact remainder back to the front
			// of the queue, so the two pieces always sum to the original.
			piece, remainder := splitOpening(opening, quantityToClose)
			pair.Openings = append(pair.Openings,
				models.NewTaxableTransaction(piece, models.TaxRelevant))
			openings = append([]models.Transaction{remainder}, openings...)
			quantityToClose = decimal.Zero
		}
		if !quantityToClose.IsZero() {
			if logger.L != nil {
				logger.L.Warn("FIFO underflow: closing quantity exceeds remaining open quantity",
					"tradeID", closing.TradeID,
					"date", closing.Date.Format("2006-01-02"),
					"quantity", closing.Quantity.String())
			}
		}
		pairs = append(pairs, pair)
	}

	var collections []TransactionCollection
	for _, pair := range pairs {
		if pair.Closing.Date.Year() == year {
			collections = append(collections, pair)
		}
	}
	return collections
}

// splitOpening carves quantityToClose units out of opening. The consumed
// piece's original-currency amount is the proportional share rounded to
// cents and its base amount is re-derived from the FX rate; the remainder is
// computed by exact subtraction so no units or cents are lost.
func splitOpening(opening models.Transaction, quantityToClose decimal.Decimal) (piece, remainder models.Transaction) {
	factor := quantityToClose.Div(opening.Quantity).Abs()

	piece = opening.CloneAmounts()
	piece.Quantity = quantityToClose.Neg()
	remainder = opening.CloneAmounts()
	remainder.Quantity = opening.Quantity.Add(quantityToClose)

	if opening.AmountOrig != nil {
		amountOrigToClose := opening.AmountOrig.Mul(factor).Quantize(centPlaces)
		remainderOrig := opening.AmountOrig.MustSub(amountOrigToClose)
		piece.AmountOrig = &amountOrigToClose
		remainder.AmountOrig = &remainderOrig
	}
	if opening.Amount != nil {
		var amountToClose models.Money
		if opening.AmountOrig != nil {
			amountToClose = opening.Amount.
				WithValue(piece.AmountOrig.Amount.Mul(opening.FXRate)).
				Quantize(centPlaces)
		} else {
			amountToClose = opening.Amount.Mul(factor).Quantize(centPlaces)
		}
		remainderAmount := opening.Amount.MustSub(amountToClose)
		piece.Amount = &amountToClose
		remainder.Amount = &remainderAmount
	}
	return piece, remainder
}

// ApplyEStG23 applies the §23 EStG private-disposal rules to currency-gain
// pairs of a non-interest-bearing account. The closing leg is tax-relevant
// only when genuine. An opening leg loses tax relevance when the closing leg
// is irrelevant, when it was not a genuine acquisition, or when it lies more
// than one year before the closing leg; its base amount is then re-priced at
// the closing leg's FX rate so the pair's gain nets to zero.
func ApplyEStG23(collections []TransactionCollection) []TransactionCollection {
	applied := make([]TransactionCollection, 0, len(collections))
	for _, collection := range collections {
		pair, ok := collection.(*TransactionPair)
		if !ok {
			applied = append(applied, collection)
			continue
		}

		closing := pair.Closing
		if closing.Acquisition == models.Genuine {
			closing.TaxRelevance = models.TaxRelevant
		} else {
			closing.TaxRelevance = models.TaxIrrelevant
		}

		openings := make([]models.TaxableTransaction, 0, len(pair.Openings))
		for _, opening := range pair.Openings {
			openings = append(openings, applyEStG23ToOpening(opening, closing))
		}
		applied = append(applied, &TransactionPair{Closing: closing, Openings: openings})
	}
	return applied
}

func applyEStG23ToOpening(opening models.TaxableTransaction, closing models.TaxableTransaction) models.TaxableTransaction {
	overOneYearApart := opening.Date.AddDate(1, 0, 0).Before(closing.Date)
	if closing.TaxRelevance != models.TaxIrrelevant &&
		opening.Acquisition != models.NonGenuine &&
		!overOneYearApart {
		return opening
	}

	override := models.TaxableTransaction{
		Transaction:  opening.CloneAmounts(),
		TaxRelevance: models.TaxIrrelevant,
	}
	override.FXRate = closing.FXRate
	if opening.Amount != nil && opening.AmountOrig != nil {
		overrideAmount := opening.Amount.
			WithValue(opening.AmountOrig.Amount.Mul(closing.FXRate)).
			Quantize(centPlaces)
		override.Amount = &overrideAmount
	}
	return override
}
