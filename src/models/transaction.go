package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type BuySell string

const (
	BuySellNone BuySell = ""
	Buy         BuySell = "BUY"
	Sell        BuySell = "SELL"
)

type OpenCloseIndicator string

const (
	OpenCloseNone OpenCloseIndicator = ""
	Open          OpenCloseIndicator = "O"
	Close         OpenCloseIndicator = "C"
)

// AcquisitionType distinguishes currency flows backed by a real purchase or
// sale (GENUINE) from passthrough events like dividends, interests and fees
// (NON_GENUINE). Only genuine flows can produce taxable currency gains on
// non-interest-bearing accounts.
type AcquisitionType int

const (
	Genuine AcquisitionType = iota
	NonGenuine
)

type TaxRelevance int

const (
	TaxRelevant TaxRelevance = iota
	TaxIrrelevant
)

// Transaction is the atomic unit of a trade-affecting event: an instrument
// trade leg or a foreign-currency flow leg.
//
// Sign convention: positive quantity/amount is an inflow (buy side or
// credit), negative an outflow. Amount and AmountOrig are nil for
// quantity-only events that move no money, e.g. a worthless option expiry.
// AmountOrig multiplied by FXRate yields Amount.
type Transaction struct {
	TradeID     string
	Date        time.Time
	Activity    string
	BuySell     BuySell
	OpenClose   OpenCloseIndicator
	Quantity    decimal.Decimal
	Amount      *Money
	AmountOrig  *Money
	FXRate      decimal.Decimal
	Acquisition AcquisitionType
}

// TaxableTransaction is a Transaction plus its tax relevance, a derived view
// used during currency-gain computation.
type TaxableTransaction struct {
	Transaction
	TaxRelevance TaxRelevance
}

func NewTaxableTransaction(txn Transaction, relevance TaxRelevance) TaxableTransaction {
	return TaxableTransaction{Transaction: txn, TaxRelevance: relevance}
}

// CloneAmounts returns a copy whose Amount and AmountOrig pointers are
// detached from the original, so splitting never mutates shared state.
func (t Transaction) CloneAmounts() Transaction {
	clone := t
	if t.Amount != nil {
		amount := *t.Amount
		clone.Amount = &amount
	}
	if t.AmountOrig != nil {
		amountOrig := *t.AmountOrig
		clone.AmountOrig = &amountOrig
	}
	return clone
}
