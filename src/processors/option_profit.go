package processors

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/steuerrechner/backend/src/models"
)

// OptionProfit is the realized option result of one calendar year. Total and
// TotalOrig are nil for a year that was touched only by carry-back elections
// and holds no transactions of its own.
type OptionProfit struct {
	Total        *models.Money
	TotalOrig    *models.Money
	Transactions []models.Transaction
}

type optionYearBucket struct {
	profit       *OptionProfit
	openQuantity decimal.Decimal
}

// CalculateProfitPerYear buckets the option position's transactions into
// calendar years and computes the per-year realized result.
//
// Long positions (Termingeschäft) realize gains at close: every transaction
// simply counts in its own year and cutOffDates has no effect.
//
// Short positions (Stillhaltergeschäft) earn the premium as taxable income
// at receipt, so every opening sell counts in its own year. A closing buy
// (Glattstellung) may by German tax law be attributed back to the year the
// matching premium was earned, provided that year's election cut-off date
// (usually the filing date of that year's tax return) has not yet passed.
// The buy's quantity is attributed earliest-first to earlier years with
// remaining short open interest and an unexpired cut-off, splitting
// quantity and amounts proportionally; whatever does not fit stays in the
// buy's own year.
func (p *DepotPosition) CalculateProfitPerYear(cutOffDates map[int]time.Time) map[int]*OptionProfit {
	buckets := map[int]*optionYearBucket{}
	var years []int

	getOrCreate := func(year int) *optionYearBucket {
		bucket, ok := buckets[year]
		if !ok {
			bucket = &optionYearBucket{profit: &OptionProfit{}}
			buckets[year] = bucket
			years = append(years, year)
			sort.Ints(years)
		}
		return bucket
	}

	positionType, ok := p.PositionType()
	short := ok && positionType == PositionShort

	for _, txn := range p.Transactions {
		ownYear := txn.Date.Year()
		ownBucket := getOrCreate(ownYear)

		if !short || txn.Quantity.IsNegative() {
			// Own-year income: long transactions of any kind, and the
			// opening sells of a short position.
			ownBucket.profit.Transactions = append(ownBucket.profit.Transactions, txn)
			if short {
				ownBucket.openQuantity = ownBucket.openQuantity.Add(txn.Quantity.Abs())
			}
			continue
		}

		attributeClosingBuy(txn, ownYear, years, buckets, cutOffDates)
	}

	profits := make(map[int]*OptionProfit, len(buckets))
	for year, bucket := range buckets {
		bucket.profit.sumTotals()
		profits[year] = bucket.profit
	}
	return profits
}

// attributeClosingBuy distributes one closing buy of a short position across
// year buckets: earlier years first (if elected and still open), the buy's
// own year last. The final piece is computed by exact subtraction so the
// pieces always sum to the original transaction.
func attributeClosingBuy(txn models.Transaction, ownYear int, years []int,
	buckets map[int]*optionYearBucket, cutOffDates map[int]time.Time) {

	remaining := txn.Quantity
	consumedAmount := zeroOf(txn.Amount)
	consumedOrig := zeroOf(txn.AmountOrig)

	for _, year := range years {
		if year >= ownYear || remaining.IsZero() {
			break
		}
		bucket := buckets[year]
		if !bucket.openQuantity.IsPositive() {
			continue
		}
		cutOff, elected := cutOffDates[year]
		if !elected || txn.Date.After(cutOff) {
			continue
		}

		take := decimal.Min(remaining, bucket.openQuantity)
		fraction := take.Div(txn.Quantity)
		piece := txn.CloneAmounts()
		piece.Quantity = take
		if txn.Amount != nil {
			pieceAmount := txn.Amount.Mul(fraction).Quantize(centPlaces)
			piece.Amount = &pieceAmount
			consumedAmount = consumedAmount.MustAdd(pieceAmount)
		}
		if txn.AmountOrig != nil {
			pieceOrig := txn.AmountOrig.Mul(fraction).Quantize(centPlaces)
			piece.AmountOrig = &pieceOrig
			consumedOrig = consumedOrig.MustAdd(pieceOrig)
		}
		bucket.profit.Transactions = append(bucket.profit.Transactions, piece)
		bucket.openQuantity = bucket.openQuantity.Sub(take)
		remaining = remaining.Sub(take)
	}

	if remaining.IsZero() {
		return
	}

	ownBucket := buckets[ownYear]
	leftover := txn.CloneAmounts()
	leftover.Quantity = remaining
	if txn.Amount != nil {
		leftoverAmount := txn.Amount.MustSub(consumedAmount)
		leftover.Amount = &leftoverAmount
	}
	if txn.AmountOrig != nil {
		leftoverOrig := txn.AmountOrig.MustSub(consumedOrig)
		leftover.AmountOrig = &leftoverOrig
	}
	ownBucket.profit.Transactions = append(ownBucket.profit.Transactions, leftover)
	ownBucket.openQuantity = decimal.Max(ownBucket.openQuantity.Sub(remaining), decimal.Zero)
}

func zeroOf(amount *models.Money) models.Money {
	if amount == nil {
		return models.Money{}
	}
	return amount.AsZero()
}

func (p *OptionProfit) sumTotals() {
	for _, txn := range p.Transactions {
		if txn.Amount != nil {
			if p.Total == nil {
				total := txn.Amount.AsZero()
				p.Total = &total
			}
			total := p.Total.MustAdd(*txn.Amount)
			p.Total = &total
		}
		if txn.AmountOrig != nil {
			if p.TotalOrig == nil {
				totalOrig := txn.AmountOrig.AsZero()
				p.TotalOrig = &totalOrig
			}
			totalOrig := p.TotalOrig.MustAdd(*txn.AmountOrig)
			p.TotalOrig = &totalOrig
		}
	}
}
