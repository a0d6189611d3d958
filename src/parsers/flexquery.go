package parsers

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/steuerrechner/backend/src/logger"
	"github.com/username/steuerrechner/backend/src/models"
)

// Column sets of the two CSV parts a FlexQuery activity export carries. A
// single file concatenates both parts, each introduced by its own header
// line; the header is recognized by containing every column of one set.
var (
	statementOfFundsColumns = []string{
		"CurrencyPrimary", "FXRateToBase", "AssetClass", "Symbol", "Buy/Sell",
		"Description", "Strike", "Expiry", "Put/Call", "ReportDate", "Date",
		"ActivityCode", "ActivityDescription", "TradeID", "OrderID",
		"TradeQuantity", "TradePrice", "TradeGross", "TradeCommission",
		"TradeTax", "Amount", "LevelOfDetail", "TransactionID", "ActionID",
	}
	tradesColumns = []string{
		"AssetClass", "Symbol", "TradeID", "Open/CloseIndicator", "Buy/Sell",
		"Quantity", "TradeDate",
	}
)

const baseCurrency = "EUR"

// ActivityData is one parsed FlexQuery file: the statement-of-funds rows
// reduced to their base-currency line with the original-currency leg merged
// in, and the trade executions with their statement row attached.
type ActivityData struct {
	Statements []models.StatementRow
	Trades     []models.TradeRow
}

// FlexQueryParser reads IBKR FlexQuery activity exports in CSV format.
type FlexQueryParser struct{}

func NewFlexQueryParser() *FlexQueryParser {
	return &FlexQueryParser{}
}

// Parse reads one export file. Any structural failure (missing part,
// missing columns, unparseable values, non-EUR base currency) is reported
// as a DataError naming the file.
func (p *FlexQueryParser) Parse(filename string, file io.Reader) (*ActivityData, error) {
	data, err := p.parse(file)
	if err != nil {
		return nil, &models.DataError{Filename: filename, Err: err}
	}
	return data, nil
}

func (p *FlexQueryParser) parse(file io.Reader) (*ActivityData, error) {
	parts, err := splitParts(file)
	if err != nil {
		return nil, err
	}

	statements, err := parseStatements(parts)
	if err != nil {
		return nil, err
	}
	trades, err := parseTrades(parts)
	if err != nil {
		return nil, err
	}

	mergeTradeStatements(trades, statements)
	return &ActivityData{Statements: statements, Trades: trades}, nil
}

// csvPart is one header-introduced section of the export.
type csvPart struct {
	header  map[string]int
	records [][]string
}

func (p *csvPart) hasColumns(columns []string) bool {
	for _, column := range columns {
		if _, ok := p.header[column]; !ok {
			return false
		}
	}
	return true
}

func (p *csvPart) field(record []string, column string) string {
	idx, ok := p.header[column]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

// splitParts cuts the export into its header-introduced parts. A record is a
// header when it contains every column of one of the known sets.
func splitParts(file io.Reader) ([]*csvPart, error) {
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	var parts []*csvPart
	var current *csvPart
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv: %w", err)
		}

		if isHeader(record) {
			current = &csvPart{header: make(map[string]int, len(record))}
			for i, name := range record {
				current.header[strings.TrimSpace(name)] = i
			}
			parts = append(parts, current)
			continue
		}
		if current != nil {
			current.records = append(current.records, record)
		}
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("no recognizable csv header found")
	}
	return parts, nil
}

func isHeader(record []string) bool {
	fields := make(map[string]struct{}, len(record))
	for _, field := range record {
		fields[strings.TrimSpace(field)] = struct{}{}
	}
	contains := func(columns []string) bool {
		for _, column := range columns {
			if _, ok := fields[column]; !ok {
				return false
			}
		}
		return true
	}
	return contains(statementOfFundsColumns) || contains(tradesColumns)
}

func findPart(parts []*csvPart, columns []string) *csvPart {
	for _, part := range parts {
		if part.hasColumns(columns) {
			return part
		}
	}
	return nil
}

func parseStatements(parts []*csvPart) ([]models.StatementRow, error) {
	part := findPart(parts, statementOfFundsColumns)
	if part == nil {
		return nil, fmt.Errorf("statement of funds part is missing required columns")
	}

	var all []models.StatementRow
	for _, record := range part.records {
		row, err := parseStatementRecord(part, record)
		if err != nil {
			return nil, err
		}
		all = append(all, row)
	}

	// German taxes are assessed in EUR; the account's base currency lines
	// must therefore be EUR.
	currencies := make(map[string]struct{})
	for _, row := range all {
		if row.LevelOfDetail == "BaseCurrency" {
			currencies[row.CurrencyPrimary] = struct{}{}
		}
	}
	for currency := range currencies {
		if currency != baseCurrency {
			return nil, fmt.Errorf("base currency must be %s, found %s", baseCurrency, currency)
		}
	}

	// Forex executions book their commission as a separate base-currency
	// detail line; fold those fees into the base row of the same trade.
	forexFees := make(map[string]decimal.Decimal)
	for _, row := range all {
		if row.ActivityCode == models.ActivityForex && row.LevelOfDetail == "Currency" &&
			row.CurrencyPrimary == baseCurrency && row.Amount != nil && row.TradeID != "" {
			forexFees[row.TradeID] = forexFees[row.TradeID].Add(*row.Amount)
		}
	}

	// The original-currency leg shares the transaction ID with its base row.
	origByTransactionID := make(map[string]models.StatementRow)
	for _, row := range all {
		if row.LevelOfDetail == "Currency" && row.CurrencyPrimary != baseCurrency {
			if _, ok := origByTransactionID[row.TransactionID]; !ok {
				origByTransactionID[row.TransactionID] = row
			}
		}
	}

	var statements []models.StatementRow
	for _, row := range all {
		if row.LevelOfDetail != "BaseCurrency" {
			continue
		}
		if fee, ok := forexFees[row.TradeID]; ok && row.Amount != nil {
			amount := row.Amount.Add(fee)
			row.Amount = &amount
		}
		if orig, ok := origByTransactionID[row.TransactionID]; ok {
			row.CurrencyPrimaryOrig = orig.CurrencyPrimary
			row.AmountOrig = orig.Amount
			row.FXRateToBaseOrig = orig.FXRateToBase
		}
		// The reported FX rate of a forex trade excludes the commission; the
		// effective rate is what the base leg actually paid per unit.
		if row.ActivityCode == models.ActivityForex &&
			row.Amount != nil && row.AmountOrig != nil && !row.AmountOrig.IsZero() {
			rate := row.Amount.Div(*row.AmountOrig).Round(5).Abs()
			row.FXRateToBaseOrig = &rate
		}
		statements = append(statements, row)
	}
	return statements, nil
}

func parseStatementRecord(part *csvPart, record []string) (models.StatementRow, error) {
	var row models.StatementRow
	var err error

	row.CurrencyPrimary = part.field(record, "CurrencyPrimary")
	row.AssetClass = part.field(record, "AssetClass")
	row.Symbol = part.field(record, "Symbol")
	row.BuySell = models.BuySell(part.field(record, "Buy/Sell"))
	row.Description = part.field(record, "Description")
	row.PutCall = part.field(record, "Put/Call")
	row.ActivityCode = part.field(record, "ActivityCode")
	row.ActivityDescription = part.field(record, "ActivityDescription")
	row.TradeID = part.field(record, "TradeID")
	row.OrderID = part.field(record, "OrderID")
	row.LevelOfDetail = part.field(record, "LevelOfDetail")
	row.TransactionID = part.field(record, "TransactionID")
	row.ActionID = part.field(record, "ActionID")

	decimals := []struct {
		column string
		target **decimal.Decimal
	}{
		{"FXRateToBase", &row.FXRateToBase},
		{"Strike", &row.Strike},
		{"TradeQuantity", &row.TradeQuantity},
		{"TradePrice", &row.TradePrice},
		{"TradeGross", &row.TradeGross},
		{"TradeCommission", &row.TradeCommission},
		{"TradeTax", &row.TradeTax},
		{"Amount", &row.Amount},
	}
	for _, d := range decimals {
		if *d.target, err = parseOptionalDecimal(part.field(record, d.column)); err != nil {
			return row, fmt.Errorf("column %s: %w", d.column, err)
		}
	}

	if row.Expiry, err = parseOptionalDate(part.field(record, "Expiry")); err != nil {
		return row, fmt.Errorf("column Expiry: %w", err)
	}
	if row.ReportDate, err = parseDate(part.field(record, "ReportDate")); err != nil {
		return row, fmt.Errorf("column ReportDate: %w", err)
	}
	if row.Date, err = parseDate(part.field(record, "Date")); err != nil {
		return row, fmt.Errorf("column Date: %w", err)
	}
	return row, nil
}

func parseTrades(parts []*csvPart) ([]models.TradeRow, error) {
	part := findPart(parts, tradesColumns)
	if part == nil {
		// An export without executions carries no trades part at all.
		return nil, nil
	}

	var trades []models.TradeRow
	for _, record := range part.records {
		quantity, err := parseOptionalDecimal(part.field(record, "Quantity"))
		if err != nil {
			return nil, fmt.Errorf("column Quantity: %w", err)
		}
		tradeDate, err := parseDate(part.field(record, "TradeDate"))
		if err != nil {
			return nil, fmt.Errorf("column TradeDate: %w", err)
		}
		row := models.TradeRow{
			AssetClass: part.field(record, "AssetClass"),
			Symbol:     part.field(record, "Symbol"),
			TradeID:    part.field(record, "TradeID"),
			OpenClose:  models.OpenCloseIndicator(part.field(record, "Open/CloseIndicator")),
			BuySell:    models.BuySell(part.field(record, "Buy/Sell")),
			TradeDate:  tradeDate,
		}
		if quantity != nil {
			row.Quantity = *quantity
		}
		trades = append(trades, row)
	}
	sort.SliceStable(trades, func(i, j int) bool {
		return trades[i].TradeDate.Before(trades[j].TradeDate)
	})
	return trades, nil
}

// mergeTradeStatements attaches to each trade the statement row of the same
// execution, matched by trade ID plus instrument identity. Trades without a
// statement row moved no money and stay unattached.
func mergeTradeStatements(trades []models.TradeRow, statements []models.StatementRow) {
	type tradeKey struct {
		tradeID    string
		assetClass string
		symbol     string
		buySell    models.BuySell
	}
	bySignature := make(map[tradeKey]*models.StatementRow)
	for i := range statements {
		row := &statements[i]
		if row.TradeID == "" {
			continue
		}
		key := tradeKey{row.TradeID, row.AssetClass, row.Symbol, row.BuySell}
		if _, ok := bySignature[key]; !ok {
			bySignature[key] = row
		}
	}
	for i := range trades {
		trade := &trades[i]
		key := tradeKey{trade.TradeID, trade.AssetClass, trade.Symbol, trade.BuySell}
		statement, ok := bySignature[key]
		if !ok {
			if logger.L != nil {
				logger.L.Debug("trade has no statement of funds row",
					"tradeID", trade.TradeID, "symbol", trade.Symbol)
			}
			continue
		}
		trade.Statement = statement
		trade.Expiry = statement.Expiry
	}
}

func parseOptionalDecimal(value string) (*decimal.Decimal, error) {
	if value == "" {
		return nil, nil
	}
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

var dateLayouts = []string{"2006-01-02", "20060102", "2006-01-02, 15:04:05"}

func parseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", value)
}

func parseOptionalDate(value string) (*time.Time, error) {
	parsed, err := parseDate(value)
	if err != nil || parsed.IsZero() {
		return nil, err
	}
	return &parsed, nil
}
