package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/steuerrechner/backend/src/logger"
	"github.com/username/steuerrechner/backend/src/models"
	"github.com/username/steuerrechner/backend/src/processors"
)

// positionBook keeps the depot positions of one asset class. Open positions
// are found by symbol through a map instead of a list scan; closed positions
// stay in the creation-ordered slice for the year tables.
type positionBook struct {
	assetClass   string
	positions    []*processors.DepotPosition
	openBySymbol map[string]*processors.DepotPosition
}

func newPositionBook(assetClass string) *positionBook {
	return &positionBook{
		assetClass:   assetClass,
		openBySymbol: make(map[string]*processors.DepotPosition),
	}
}

func (b *positionBook) findOpen(symbol string) *processors.DepotPosition {
	return b.openBySymbol[symbol]
}

func (b *positionBook) findOrCreate(symbol string) *processors.DepotPosition {
	if position := b.openBySymbol[symbol]; position != nil {
		return position
	}
	position := processors.NewDepotPosition(symbol, b.assetClass)
	b.positions = append(b.positions, position)
	b.openBySymbol[symbol] = position
	return position
}

// add appends txn to the symbol's open position, opening new positions as
// needed. A transaction that overshoots zero closes the current position and
// seeds a fresh one with the exact remainder.
func (b *positionBook) add(symbol string, txn models.Transaction) error {
	for {
		position := b.findOrCreate(symbol)
		remainder, err := position.AddTransaction(txn)
		if err != nil {
			return err
		}
		if position.Closed {
			delete(b.openBySymbol, symbol)
		}
		if remainder == nil {
			return nil
		}
		txn = *remainder
	}
}

// Report is the process-wide aggregate: it classifies raw activity rows,
// routes them to positions and currency accounts, and answers year-scoped
// queries. Rows must be fed in non-decreasing date order, FIFO matching is
// order-sensitive and the order is the caller's responsibility. A Report is
// owned by a single upload; it is not safe for concurrent use.
type Report struct {
	years        map[int]struct{}
	deposits     []models.Deposit
	interests    []models.Interest
	otherFees    []models.OtherFee
	dividends    []models.Dividend
	forexes      []models.Forex
	unknownLines []models.UnknownLine

	stocks        *positionBook
	options       *positionBook
	treasuryBills *positionBook

	currencyAccounts map[string]*processors.ForeignCurrencyAccount
	currencyBuckets  map[string]*processors.ForeignCurrencyBucket

	optionExpiries map[string]time.Time

	finished       bool
	settledReturns map[string][]*processors.ReturnFlow
}

func NewReport() *Report {
	return &Report{
		years:            make(map[int]struct{}),
		stocks:           newPositionBook(models.AssetClassStock),
		options:          newPositionBook(models.AssetClassOption),
		treasuryBills:    newPositionBook(models.AssetClassTreasuryBill),
		currencyAccounts: make(map[string]*processors.ForeignCurrencyAccount),
		currencyBuckets:  make(map[string]*processors.ForeignCurrencyBucket),
		optionExpiries:   make(map[string]time.Time),
	}
}

func (r *Report) registerYear(date time.Time) {
	if !date.IsZero() {
		r.years[date.Year()] = struct{}{}
	}
}

// ProcessStatement classifies one statement-of-funds row by activity code
// and appends it to the matching list, position or currency account.
func (r *Report) ProcessStatement(row models.StatementRow) {
	r.registerYear(row.Date)
	switch row.ActivityCode {
	case models.ActivityDeposit, models.ActivityWithdrawal:
		r.deposits = append(r.deposits, models.Deposit{
			Date:     row.Date,
			Amount:   r.rowAmount(row),
			Activity: row.ActivityDescription,
		})

	case models.ActivitySell, models.ActivityBuy, models.ActivityAssignment, models.ActivityExercise:
		// The trade itself arrives through ProcessTrade; here only the
		// currency leg is registered. Option premiums are passthrough money,
		// not a currency purchase.
		switch row.AssetClass {
		case models.AssetClassStock, models.AssetClassTreasuryBill:
			r.addCurrencyFlow(row, true)
		case models.AssetClassOption:
			r.addCurrencyFlow(row, false)
		}

	case models.ActivityDividend, models.ActivityPaymentInLieu, models.ActivityForeignTax:
		r.dividends = append(r.dividends, models.Dividend{
			Date:         row.Date,
			ReportDate:   row.ReportDate,
			Amount:       r.rowAmount(row),
			Activity:     row.ActivityDescription,
			ActionID:     row.ActionID,
			IsTax:        row.ActivityCode == models.ActivityForeignTax,
			IsCorrection: row.Date.Year() != row.ReportDate.Year(),
		})
		r.addCurrencyFlow(row, false)

	case models.ActivityForex:
		r.forexes = append(r.forexes, models.Forex{
			TradeID:    row.TradeID,
			Date:       row.Date,
			Activity:   row.ActivityDescription,
			Amount:     r.rowAmount(row),
			AmountOrig: r.rowAmountOrig(row),
		})
		r.addCurrencyFlow(row, true)

	case models.ActivityOtherFee, models.ActivitySalesTax:
		r.otherFees = append(r.otherFees, models.OtherFee{
			Date:     row.Date,
			Amount:   r.rowAmount(row),
			Activity: row.ActivityDescription,
		})

	case models.ActivityCreditInterest, models.ActivityDebitInterest:
		r.interests = append(r.interests, models.Interest{
			Date:     row.Date,
			Amount:   r.rowAmount(row),
			Activity: row.ActivityDescription,
		})
		r.addCurrencyFlow(row, false)

	case models.ActivityCorporateAction:
		r.processTreasuryBillMaturity(row)

	default:
		r.unknownLines = append(r.unknownLines, models.UnknownLine{
			Date:     row.Date,
			Amount:   r.rowAmount(row),
			Activity: row.ActivityDescription,
		})
	}
}

func (r *Report) rowAmount(row models.StatementRow) models.Money {
	amount := decimal.Zero
	if row.Amount != nil {
		amount = *row.Amount
	}
	return models.NewMoney(amount, row.CurrencyPrimary)
}

func (r *Report) rowAmountOrig(row models.StatementRow) models.Money {
	amount := decimal.Zero
	if row.AmountOrig != nil {
		amount = *row.AmountOrig
	}
	return models.NewMoney(amount.RoundBank(2), row.CurrencyPrimaryOrig)
}

// processTreasuryBillMaturity synthesizes the closing transaction for a bill
// redemption. The maturity record carries no quantity, so it is derived from
// the original-currency amount: one bill unit redeems at one currency unit.
func (r *Report) processTreasuryBillMaturity(row models.StatementRow) {
	position := r.treasuryBills.findOpen(row.Symbol)
	if position == nil {
		return
	}
	if row.Amount == nil || row.AmountOrig == nil {
		if logger.L != nil {
			logger.L.Warn("treasury bill maturity carries no amount, skipping", "symbol", row.Symbol)
		}
		return
	}
	amount := models.NewMoney(*row.Amount, row.CurrencyPrimary)
	amountOrig := models.NewMoney(*row.AmountOrig, row.CurrencyPrimaryOrig)
	maturity := models.Transaction{
		Date:       row.Date,
		Activity:   row.ActivityDescription,
		OpenClose:  models.Close,
		Quantity:   row.AmountOrig.Neg(),
		Amount:     &amount,
		AmountOrig: &amountOrig,
		FXRate:     fxRateOrZero(row.FXRateToBaseOrig),
	}
	if err := r.treasuryBills.add(row.Symbol, maturity); err != nil {
		if logger.L != nil {
			logger.L.Warn("could not book treasury bill maturity", "symbol", row.Symbol, "error", err)
		}
	}
	r.addCurrencyFlow(row, true)
}

// addCurrencyFlow registers the original-currency leg of a row with the
// foreign-currency account and bucket of that currency. taxable marks flows
// backed by a genuine purchase or sale; passthrough flows (dividends,
// interest, option premiums) are non-genuine and cannot produce private
// disposal gains.
func (r *Report) addCurrencyFlow(row models.StatementRow, taxable bool) {
	currency := row.CurrencyPrimaryOrig
	if currency == "" || row.AmountOrig == nil || row.Amount == nil {
		return
	}

	account := r.currencyAccounts[currency]
	if account == nil {
		account = processors.NewForeignCurrencyAccount(currency)
		r.currencyAccounts[currency] = account
	}
	bucket := r.currencyBuckets[currency]
	if bucket == nil {
		bucket = processors.NewForeignCurrencyBucket(currency)
		r.currencyBuckets[currency] = bucket
	}

	amountOrig := models.NewMoney(row.AmountOrig.RoundBank(2), currency)
	amount := models.NewMoney(row.Amount.RoundBank(2), row.CurrencyPrimary).CopySign(amountOrig)
	buySell, openClose := models.Buy, models.Open
	if amountOrig.IsNegative() {
		buySell, openClose = models.Sell, models.Close
	}
	acquisition := models.Genuine
	relevance := models.TaxRelevant
	if !taxable {
		acquisition = models.NonGenuine
		relevance = models.TaxIrrelevant
	}

	err := account.AddTransaction(models.Transaction{
		TradeID:     row.TradeID,
		Date:        row.Date,
		Activity:    row.ActivityDescription,
		BuySell:     buySell,
		OpenClose:   openClose,
		Quantity:    amountOrig.Amount,
		Amount:      &amount,
		AmountOrig:  &amountOrig,
		FXRate:      fxRateOrZero(row.FXRateToBaseOrig),
		Acquisition: acquisition,
	})
	if err != nil {
		if logger.L != nil {
			logger.L.Warn("dropping foreign currency flow", "tradeID", row.TradeID, "currency", currency, "error", err)
		}
		return
	}

	if err := bucket.Add(processors.ForeignCurrencyFlow{
		TradeID:      row.TradeID,
		Date:         row.Date,
		Description:  row.ActivityDescription,
		AmountBase:   amount,
		AmountOrig:   amountOrig,
		FXRate:       fxRateOrZero(row.FXRateToBaseOrig),
		TaxRelevance: relevance,
	}); err != nil {
		if logger.L != nil {
			logger.L.Warn("dropping foreign currency bucket flow", "tradeID", row.TradeID, "currency", currency, "error", err)
		}
	}
}

func fxRateOrZero(rate *decimal.Decimal) decimal.Decimal {
	if rate == nil {
		return decimal.Zero
	}
	return *rate
}

// ProcessTrade routes one execution record to the open depot position of its
// symbol, creating one when none is open. A trade without a statement leg
// moved no money (e.g. a worthless expiry) and appends an amount-less
// transaction.
func (r *Report) ProcessTrade(row models.TradeRow) error {
	r.registerYear(row.TradeDate)

	var book *positionBook
	switch row.AssetClass {
	case models.AssetClassStock:
		book = r.stocks
	case models.AssetClassOption:
		book = r.options
	case models.AssetClassTreasuryBill:
		book = r.treasuryBills
	case models.AssetClassCash:
		// Cash trades are handled through ProcessStatement.
		return nil
	default:
		return fmt.Errorf("unsupported asset class %q", row.AssetClass)
	}

	if row.AssetClass == models.AssetClassOption {
		if expiry := tradeExpiry(row); expiry != nil {
			r.optionExpiries[row.Symbol] = *expiry
		}
	}

	txn := tradeTransaction(row)
	return book.add(row.Symbol, txn)
}

func tradeExpiry(row models.TradeRow) *time.Time {
	if row.Expiry != nil {
		return row.Expiry
	}
	if row.Statement != nil {
		return row.Statement.Expiry
	}
	return nil
}

func tradeTransaction(row models.TradeRow) models.Transaction {
	stmt := row.Statement
	if stmt == nil || stmt.Amount == nil {
		return models.Transaction{
			TradeID:   row.TradeID,
			Date:      row.TradeDate,
			BuySell:   row.BuySell,
			OpenClose: row.OpenClose,
			Quantity:  row.Quantity,
		}
	}

	quantity := row.Quantity
	if stmt.TradeQuantity != nil {
		quantity = *stmt.TradeQuantity
	}
	amount := models.NewMoney(*stmt.Amount, stmt.CurrencyPrimary)
	txn := models.Transaction{
		TradeID:   row.TradeID,
		Date:      stmt.Date,
		Activity:  stmt.ActivityDescription,
		BuySell:   row.BuySell,
		OpenClose: row.OpenClose,
		Quantity:  quantity,
		Amount:    &amount,
		FXRate:    fxRateOrZero(stmt.FXRateToBaseOrig),
	}
	if stmt.AmountOrig != nil {
		amountOrig := models.NewMoney(*stmt.AmountOrig, stmt.CurrencyPrimaryOrig)
		txn.AmountOrig = &amountOrig
	}
	return txn
}

// Finish seals the report as of reportingDate: option positions whose
// expiry has passed are closed without synthesizing a transaction (an
// expired short option locks in its premium), and the currency buckets are
// settled. Calling it again is a no-op.
func (r *Report) Finish(reportingDate time.Time) {
	if r.finished {
		return
	}

	for symbol, position := range r.options.openBySymbol {
		expiry, ok := r.optionExpiries[symbol]
		if ok && expiry.Before(reportingDate) {
			position.Closed = true
			delete(r.options.openBySymbol, symbol)
		}
	}

	r.settledReturns = make(map[string][]*processors.ReturnFlow, len(r.currencyBuckets))
	for currency, bucket := range r.currencyBuckets {
		settled, pending, _ := bucket.CalculateReturns()
		if len(pending) > 0 {
			if logger.L != nil {
				logger.L.Warn("unsettled outflows remain in currency bucket", "currency", currency, "count", len(pending))
			}
		}
		r.settledReturns[currency] = settled
	}

	r.finished = true
}

func (r *Report) GetYears() []int {
	years := make([]int, 0, len(r.years))
	for year := range r.years {
		years = append(years, year)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	return years
}

func (r *Report) HasData() bool { return len(r.years) > 0 }
