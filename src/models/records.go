package models

import "time"

// Simple immutable value records for classified single-line statement
// events. Computation happens elsewhere; these only carry what the year
// filters and result tables need.

type Deposit struct {
	Date     time.Time
	Amount   Money
	Activity string
}

// Dividend covers dividends, payments in lieu and foreign withholding tax.
// IsTax marks withheld-tax lines (FRTAX); IsCorrection marks lines whose
// report date falls in a later filing year than the activity date.
type Dividend struct {
	Date         time.Time
	ReportDate   time.Time
	Amount       Money
	Activity     string
	ActionID     string
	IsTax        bool
	IsCorrection bool
}

type Interest struct {
	Date     time.Time
	Amount   Money
	Activity string
}

type OtherFee struct {
	Date     time.Time
	Amount   Money
	Activity string
}

type Forex struct {
	TradeID    string
	Date       time.Time
	Activity   string
	Amount     Money
	AmountOrig Money
}

// UnknownLine is a statement row whose activity code the classifier does not
// recognize. It is reported as informational and never affects totals.
type UnknownLine struct {
	Date     time.Time
	Amount   Money
	Activity string
}
