package report

import (
	"sort"
	"time"

	"github.com/username/steuerrechner/backend/src/models"
	"github.com/username/steuerrechner/backend/src/processors"
)

const displayPlaces = 2

// simpleRecord is the shared shape of the flat listing tables.
type simpleRecord struct {
	date     time.Time
	activity string
	amount   models.Money
}

func simpleTable(year int, records []simpleRecord) *Result {
	result := &Result{
		Year:    year,
		Columns: []string{"sequence", "date", "activity", "amount"},
	}
	sequence := 0
	for _, record := range records {
		if record.date.Year() != year {
			continue
		}
		sequence++
		result.Rows = append(result.Rows, []any{
			sequence, record.date, record.activity,
			record.amount.Quantize(displayPlaces).Amount,
		})
	}
	return result
}

func (r *Report) GetDeposits(year int) *Result {
	records := make([]simpleRecord, len(r.deposits))
	for i, d := range r.deposits {
		records[i] = simpleRecord{d.Date, d.Activity, d.Amount}
	}
	return simpleTable(year, records)
}

func (r *Report) GetInterests(year int) *Result {
	records := make([]simpleRecord, len(r.interests))
	for i, it := range r.interests {
		records[i] = simpleRecord{it.Date, it.Activity, it.Amount}
	}
	return simpleTable(year, records)
}

func (r *Report) GetOtherFees(year int) *Result {
	records := make([]simpleRecord, len(r.otherFees))
	for i, f := range r.otherFees {
		records[i] = simpleRecord{f.Date, f.Activity, f.Amount}
	}
	return simpleTable(year, records)
}

func (r *Report) GetUnknownLines(year int) *Result {
	records := make([]simpleRecord, len(r.unknownLines))
	for i, u := range r.unknownLines {
		records[i] = simpleRecord{u.Date, u.Activity, u.Amount}
	}
	return simpleTable(year, records)
}

func (r *Report) GetForexes(year int) *Result {
	result := &Result{
		Year:    year,
		Columns: []string{"sequence", "date", "activity", "amount_orig", "amount"},
	}
	sequence := 0
	for _, fx := range r.forexes {
		if fx.Date.Year() != year {
			continue
		}
		sequence++
		result.Rows = append(result.Rows, []any{
			sequence, fx.Date, fx.Activity,
			fx.AmountOrig.Quantize(displayPlaces).Amount,
			fx.Amount.Quantize(displayPlaces).Amount,
		})
	}
	return result
}

// GetDividends lists the year's dividend activity, keyed by the activity
// date so a correction reported in a later year still lands in the year it
// amends. Rows belonging to the
// same corporate action share one sequence number, so a dividend and its
// withholding tax read as one event. Tax rows carry their amount in the tax
// column instead of the amount column.
func (r *Report) GetDividends(year int) *Result {
	dividends := make([]models.Dividend, 0, len(r.dividends))
	for _, d := range r.dividends {
		if d.Date.Year() == year {
			dividends = append(dividends, d)
		}
	}
	sort.SliceStable(dividends, func(i, j int) bool {
		if !dividends[i].Date.Equal(dividends[j].Date) {
			return dividends[i].Date.Before(dividends[j].Date)
		}
		return dividends[i].ActionID < dividends[j].ActionID
	})

	result := &Result{
		Year:    year,
		Columns: []string{"sequence", "date", "report_date", "activity", "amount", "tax", "correction"},
	}
	sequence := 0
	lastActionID := ""
	for _, d := range dividends {
		if sequence == 0 || d.ActionID == "" || d.ActionID != lastActionID {
			sequence++
		}
		lastActionID = d.ActionID
		amount := d.Amount.Quantize(displayPlaces).Amount
		var amountCell, taxCell any
		if d.IsTax {
			taxCell = amount
		} else {
			amountCell = amount
		}
		result.Rows = append(result.Rows, []any{
			sequence, d.Date, d.ReportDate, d.Activity, amountCell, taxCell, d.IsCorrection,
		})
	}
	return result
}

// collectionTable renders the year's matched collections of a set of
// positions. Each collection contributes its opening transactions first and
// the closing transaction last; the realized profit sits on the closing row
// and stays empty while a collection is still open.
func collectionTable(year int, collections []processors.TransactionCollection) *Result {
	result := &Result{
		Year:    year,
		Columns: []string{"sequence", "date", "activity", "trade_id", "quantity", "amount", "profit"},
	}
	sequence := 0
	appendRow := func(txn models.TaxableTransaction, profit any) {
		sequence++
		var amountCell any
		if txn.Amount != nil {
			amountCell = txn.Amount.Quantize(displayPlaces).Amount
		}
		result.Rows = append(result.Rows, []any{
			sequence, txn.Date, txn.Activity, txn.TradeID, txn.Quantity, amountCell, profit,
		})
	}
	for _, collection := range collections {
		for _, opening := range collection.OpeningTransactions() {
			appendRow(opening, nil)
		}
		var profit any
		if collection.IsClosed() {
			profit = collection.Profit().Quantize(displayPlaces).Amount
		}
		appendRow(collection.ClosingTransaction(), profit)
	}
	return result
}

func (b *positionBook) collections(year int, positionType processors.DepotPositionType) []processors.TransactionCollection {
	var collections []processors.TransactionCollection
	for _, position := range b.positions {
		kind, ok := position.PositionType()
		if !ok || kind != positionType {
			continue
		}
		collections = append(collections, position.TransactionCollections(year)...)
	}
	return collections
}

func (r *Report) GetStocks(year int, positionType processors.DepotPositionType) *Result {
	return collectionTable(year, r.stocks.collections(year, positionType))
}

func (r *Report) GetOptions(year int, positionType processors.DepotPositionType) *Result {
	return collectionTable(year, r.options.collections(year, positionType))
}

func (r *Report) GetTreasuryBills(year int) *Result {
	return collectionTable(year, r.treasuryBills.collections(year, processors.PositionLong))
}

// rawPositionTable lists every transaction of every position of a book,
// unmatched, grouped per position in booking order.
func rawPositionTable(book *positionBook) *Result {
	result := &Result{
		Columns: []string{"sequence", "symbol", "date", "activity", "trade_id", "quantity", "amount"},
	}
	sequence := 0
	for _, position := range book.positions {
		for _, txn := range position.Transactions {
			sequence++
			var amountCell any
			if txn.Amount != nil {
				amountCell = txn.Amount.Quantize(displayPlaces).Amount
			}
			result.Rows = append(result.Rows, []any{
				sequence, position.Symbol, txn.Date, txn.Activity, txn.TradeID, txn.Quantity, amountCell,
			})
		}
	}
	return result
}

func (r *Report) GetAllStocks() *Result        { return rawPositionTable(r.stocks) }
func (r *Report) GetAllTreasuryBills() *Result { return rawPositionTable(r.treasuryBills) }

// GetForeignCurrencies renders the year's currency disposals per currency,
// FIFO-matched like a depot position. For a plain settlement account the
// private disposal rules apply and non-genuine or out-of-period acquisitions
// are re-priced at the closing rate (§23 EStG); an interest-bearing account
// is taxed under capital income rules instead and every disposal counts at
// its booked rates.
func (r *Report) GetForeignCurrencies(year int, interestBearingAccount bool) map[string]*Result {
	results := make(map[string]*Result, len(r.currencyAccounts))
	for currency, account := range r.currencyAccounts {
		pairs := account.TransactionPairs(year)
		if !interestBearingAccount {
			pairs = processors.ApplyEStG23(pairs)
		}

		result := &Result{
			Year:    year,
			Columns: []string{"sequence", "type", "date", "activity", "amount_orig", "amount", "tax_relevant", "profit"},
		}
		sequence := 0
		appendRow := func(kind string, txn models.TaxableTransaction, taxRelevant any, profit any) {
			sequence++
			var origCell, baseCell any
			if txn.AmountOrig != nil {
				origCell = txn.AmountOrig.Quantize(displayPlaces).Amount
			}
			if txn.Amount != nil {
				baseCell = txn.Amount.Quantize(displayPlaces).Amount
			}
			result.Rows = append(result.Rows, []any{
				sequence, kind, txn.Date, txn.Activity, origCell, baseCell, taxRelevant, profit,
			})
		}
		for _, pair := range pairs {
			for _, opening := range pair.OpeningTransactions() {
				relevant := interestBearingAccount || opening.Acquisition == models.Genuine
				appendRow("Zugang", opening, relevant, nil)
			}
			var profit any
			if pair.IsClosed() {
				// A sale of currency for base currency realizes the base
				// proceeds; the pair's buy-minus-sell sign is flipped.
				profit = pair.Profit().Neg().Quantize(displayPlaces).Amount
			}
			closing := pair.ClosingTransaction()
			relevant := interestBearingAccount || closing.Acquisition == models.Genuine
			appendRow("Abgang", closing, relevant, profit)
		}
		results[currency] = result
	}
	return results
}

// GetCurrencyGains reports the §23 EStG taxable result of the year's
// settled currency outflows, one row per outflow whose consumed inflows
// produced a rate difference.
func (r *Report) GetCurrencyGains(year int, reportingDate time.Time) *Result {
	result := &Result{
		Year:    year,
		Columns: []string{"sequence", "date", "currency", "activity", "amount_orig", "tax_relevant_orig", "profit"},
	}

	currencies := make([]string, 0, len(r.settledReturns))
	for currency := range r.settledReturns {
		currencies = append(currencies, currency)
	}
	sort.Strings(currencies)

	sequence := 0
	for _, currency := range currencies {
		for _, ret := range r.settledReturns[currency] {
			if ret.Flow.Date.Year() != year {
				continue
			}
			profit := ret.CalculateTaxableProfit(reportingDate)
			sequence++
			result.Rows = append(result.Rows, []any{
				sequence, ret.Flow.Date, currency, ret.Flow.Description,
				ret.Flow.AmountOrig.Quantize(displayPlaces).Amount,
				profit.TaxRelevantOrig.Quantize(displayPlaces).Amount,
				profit.ProfitBase.Quantize(displayPlaces).Amount,
			})
		}
	}
	return result
}

// GetShortOptionProfits aggregates the Stillhalter result of every short
// option position per calendar year, with closing buys carried back into
// earlier years where the cut-off election allows it. The keys cover every
// year any position touched; a position contributes one row per year it has
// a result in.
func (r *Report) GetShortOptionProfits(cutOffDates map[int]time.Time) map[int]*Result {
	results := make(map[int]*Result)
	sequences := make(map[int]int)

	for _, position := range r.options.positions {
		kind, ok := position.PositionType()
		if !ok || kind != processors.PositionShort {
			continue
		}
		for year, profit := range position.CalculateProfitPerYear(cutOffDates) {
			if profit.Total == nil {
				continue
			}
			result := results[year]
			if result == nil {
				result = &Result{
					Year:    year,
					Columns: []string{"sequence", "symbol", "transactions", "amount_orig", "amount"},
				}
				results[year] = result
			}
			sequences[year]++
			var origCell any
			if profit.TotalOrig != nil {
				origCell = profit.TotalOrig.Quantize(displayPlaces).Amount
			}
			result.Rows = append(result.Rows, []any{
				sequences[year], position.Symbol, len(profit.Transactions),
				origCell, profit.Total.Quantize(displayPlaces).Amount,
			})
		}
	}
	return results
}
