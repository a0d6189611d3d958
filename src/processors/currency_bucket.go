package processors

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/steuerrechner/backend/src/models"
)

// speculativePeriodYears is the §23 EStG holding window: a currency inflow
// can only produce a taxable gain on disposal within ten years.
const speculativePeriodYears = 10

// ForeignCurrencyFlow is one signed movement of a foreign-currency account:
// positive amounts enter the bucket (accruals), negative amounts leave it
// (returns). AmountOrig times FXRate yields AmountBase.
type ForeignCurrencyFlow struct {
	TradeID      string
	Date         time.Time
	Description  string
	AmountBase   models.Money
	AmountOrig   models.Money
	FXRate       decimal.Decimal
	TaxRelevance models.TaxRelevance
}

// IsTaxRelevant reports whether the flow can contribute to a taxable
// currency gain as of reportingDate: it must be tagged relevant and lie
// within the ten-year speculative period.
func (f ForeignCurrencyFlow) IsTaxRelevant(reportingDate time.Time) bool {
	return f.TaxRelevance == models.TaxRelevant &&
		f.Date.AddDate(speculativePeriodYears, 0, 0).After(reportingDate)
}

// AccrualFlow tracks how much of one inflow has been consumed by returns.
type AccrualFlow struct {
	Flow         ForeignCurrencyFlow
	consumedOrig models.Money
}

func NewAccrualFlow(flow ForeignCurrencyFlow) *AccrualFlow {
	return &AccrualFlow{Flow: flow, consumedOrig: flow.AmountOrig.AsZero()}
}

func (a *AccrualFlow) Consumed() models.Money { return a.consumedOrig }

func (a *AccrualFlow) ConsumedTaxRelevant(reportingDate time.Time) models.Money {
	if a.Flow.IsTaxRelevant(reportingDate) {
		return a.Consumed()
	}
	return a.Consumed().AsZero()
}

// ConsumedBaseTaxRelevant is the consumed share valued in base currency at
// the accrual's own FX rate, zero when the accrual is not tax-relevant.
func (a *AccrualFlow) ConsumedBaseTaxRelevant(reportingDate time.Time) models.Money {
	if a.Flow.IsTaxRelevant(reportingDate) {
		return a.Flow.AmountBase.WithValueKeepPrecision(a.Consumed().Amount.Mul(a.Flow.FXRate))
	}
	return a.Flow.AmountBase.AsZero()
}

func (a *AccrualFlow) Unconsumed() models.Money {
	return a.Flow.AmountOrig.MustSub(a.Consumed())
}

func (a *AccrualFlow) IsConsumed() bool {
	return a.Consumed().Equal(a.Flow.AmountOrig)
}

// Consume books amount against this accrual; never more than the accrual's
// own magnitude.
func (a *AccrualFlow) Consume(amount models.Money) *AccrualFlow {
	a.consumedOrig = a.consumedOrig.MustAdd(amount.CopySign(a.Flow.AmountOrig))
	return a
}

// ReturnFlow tracks which accruals, and how much of each, satisfied one
// outflow. The entries in ConsumedFrom are per-return snapshots, distinct
// from the bucket-level consumption bookkeeping.
type ReturnFlow struct {
	Flow         ForeignCurrencyFlow
	ConsumedFrom []*AccrualFlow
}

func NewReturnFlow(flow ForeignCurrencyFlow) *ReturnFlow {
	return &ReturnFlow{Flow: flow}
}

func (r *ReturnFlow) Consumed() models.Money {
	sum := r.Flow.AmountOrig.AsZero()
	for _, accrual := range r.ConsumedFrom {
		sum = sum.MustAdd(accrual.consumedOrig)
	}
	return sum
}

// Unconsumed is the outstanding part of the outflow. A return is always
// negative and accruals always positive, so the two cancel.
func (r *ReturnFlow) Unconsumed() models.Money {
	return r.Flow.AmountOrig.MustAdd(r.Consumed())
}

func (r *ReturnFlow) IsConsumed() bool {
	return r.Unconsumed().IsZero()
}

func (r *ReturnFlow) Consume(accrual ForeignCurrencyFlow, amount models.Money) {
	r.ConsumedFrom = append(r.ConsumedFrom, NewAccrualFlow(accrual).Consume(amount))
}

// CurrencyProfit is the result of settling one return flow against the
// accruals it consumed.
type CurrencyProfit struct {
	ProfitBase      models.Money
	TaxRelevantBase models.Money
	TaxRelevantOrig models.Money
	Accruals        []*AccrualFlow
}

// CalculateTaxableProfit values the return at its own FX rate against the
// consumed accruals at theirs, counting only pieces where both sides are
// tax-relevant as of reportingDate: the gain is the base-currency difference
// caused by the rate moving between accrual and return.
func (r *ReturnFlow) CalculateTaxableProfit(reportingDate time.Time) CurrencyProfit {
	returnIsTaxRelevant := r.Flow.IsTaxRelevant(reportingDate)

	consumedOrig := r.Flow.AmountOrig.AsZero()
	consumedBase := r.Flow.AmountBase.AsZero()
	for _, accrual := range r.ConsumedFrom {
		if !returnIsTaxRelevant || !accrual.Flow.IsTaxRelevant(reportingDate) {
			continue
		}
		consumedOrig = consumedOrig.MustAdd(accrual.consumedOrig)
		consumedBase = consumedBase.MustAdd(
			accrual.Flow.AmountBase.WithValueKeepPrecision(accrual.consumedOrig.Amount.Mul(accrual.Flow.FXRate)))
	}

	taxableBase := r.Flow.AmountBase.WithValueKeepPrecision(consumedOrig.Amount.Mul(r.Flow.FXRate))

	accruals := make([]*AccrualFlow, 0, len(r.ConsumedFrom))
	for _, accrual := range r.ConsumedFrom {
		if returnIsTaxRelevant {
			accruals = append(accruals, accrual)
			continue
		}
		irrelevantFlow := accrual.Flow
		irrelevantFlow.TaxRelevance = models.TaxIrrelevant
		accruals = append(accruals, NewAccrualFlow(irrelevantFlow).Consume(accrual.consumedOrig))
	}

	return CurrencyProfit{
		ProfitBase:      taxableBase.MustSub(consumedBase),
		TaxRelevantBase: taxableBase,
		TaxRelevantOrig: consumedOrig,
		Accruals:        accruals,
	}
}

// ForeignCurrencyBucket holds the chronological flows of one foreign
// currency and nets outflows against inflows FIFO, in the original-currency
// dimension (one unit of currency is one unit of quantity).
type ForeignCurrencyBucket struct {
	Currency string
	Flows    []ForeignCurrencyFlow
}

func NewForeignCurrencyBucket(currency string) *ForeignCurrencyBucket {
	return &ForeignCurrencyBucket{Currency: currency}
}

func (b *ForeignCurrencyBucket) Add(flow ForeignCurrencyFlow) error {
	if flow.AmountOrig.Currency != b.Currency {
		return fmt.Errorf("currency must match: expected %s, got %s", b.Currency, flow.AmountOrig.Currency)
	}
	b.Flows = append(b.Flows, flow)
	return nil
}

// CalculateReturns nets the flows in arrival order: whenever a pending
// return and a pending accrual coexist, the oldest return drains the oldest
// accrual(s), splitting as needed. It returns the fully settled returns plus
// whatever is still pending on either side.
func (b *ForeignCurrencyBucket) CalculateReturns() (settled []*ReturnFlow, pendingReturns []*ReturnFlow, pendingAccruals []*AccrualFlow) {
	var accrualQueue []*AccrualFlow
	var returnQueue []*ReturnFlow

	for _, flow := range b.Flows {
		if flow.AmountOrig.IsNonNegative() {
			accrualQueue = append(accrualQueue, NewAccrualFlow(flow))
		} else {
			returnQueue = append(returnQueue, NewReturnFlow(flow))
		}

		if len(returnQueue) == 0 || len(accrualQueue) == 0 {
			continue
		}

		returnFlow := returnQueue[0]
		for !returnFlow.IsConsumed() && len(accrualQueue) > 0 {
			accrual := accrualQueue[0]
			amountToConsume := minAbs(returnFlow.Unconsumed(), accrual.Unconsumed())

			accrual.Consume(amountToConsume)
			returnFlow.Consume(accrual.Flow, amountToConsume)

			if accrual.IsConsumed() {
				accrualQueue = accrualQueue[1:]
			}
			if returnFlow.IsConsumed() {
				settled = append(settled, returnFlow)
				returnQueue = returnQueue[1:]
			}
		}
	}

	return settled, returnQueue, accrualQueue
}

func minAbs(a, b models.Money) models.Money {
	absA, absB := a.Abs(), b.Abs()
	cmp, err := absA.Cmp(absB)
	if err != nil {
		panic(err)
	}
	if cmp <= 0 {
		return absA
	}
	return absB
}
