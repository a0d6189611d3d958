package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Asset classes as reported by the FlexQuery export.
const (
	AssetClassStock        = "STK"
	AssetClassOption       = "OPT"
	AssetClassTreasuryBill = "BILL"
	AssetClassCash         = "CASH"
)

// Activity codes of statement-of-funds rows.
const (
	ActivityDeposit          = "DEP"
	ActivityWithdrawal       = "WITH"
	ActivityBuy              = "BUY"
	ActivitySell             = "SELL"
	ActivityAssignment       = "ASSIGN"
	ActivityExercise         = "EXE"
	ActivityDividend         = "DIV"
	ActivityPaymentInLieu    = "PIL"
	ActivityForeignTax       = "FRTAX"
	ActivityForex            = "FOREX"
	ActivityOtherFee         = "OFEE"
	ActivitySalesTax         = "STAX"
	ActivityCreditInterest   = "CINT"
	ActivityDebitInterest    = "DINT"
	ActivityCorporateAction  = "CORP"
)

// StatementRow is the unified representation of one statement-of-funds line
// after the parser has merged the base-currency summary row with its
// original-currency detail row by transaction ID. The parser populates as
// many fields as the export carries; optional values stay nil.
type StatementRow struct {
	CurrencyPrimary     string
	FXRateToBase        *decimal.Decimal
	AssetClass          string
	Symbol              string
	BuySell             BuySell
	Description         string
	Strike              *decimal.Decimal
	Expiry              *time.Time
	PutCall             string
	ReportDate          time.Time
	Date                time.Time
	ActivityCode        string
	ActivityDescription string
	TradeID             string
	OrderID             string
	TradeQuantity       *decimal.Decimal
	TradePrice          *decimal.Decimal
	TradeGross          *decimal.Decimal
	TradeCommission     *decimal.Decimal
	TradeTax            *decimal.Decimal
	Amount              *decimal.Decimal
	LevelOfDetail       string
	TransactionID       string
	ActionID            string

	// Original-currency leg, merged by TransactionID.
	CurrencyPrimaryOrig string
	AmountOrig          *decimal.Decimal
	FXRateToBaseOrig    *decimal.Decimal
}

// TradeRow is one execution record from the trades section of the export,
// merged with its statement-of-funds row by trade ID. A trade with no
// matching statement row moved no money (e.g. a worthless expiry); its
// Statement field is nil.
type TradeRow struct {
	AssetClass string
	Symbol     string
	TradeID    string
	OpenClose  OpenCloseIndicator
	BuySell    BuySell
	Quantity   decimal.Decimal
	TradeDate  time.Time
	Expiry     *time.Time

	Statement *StatementRow
}
