package services

import (
	"errors"
	"io"

	"github.com/username/steuerrechner/backend/src/report"
)

var (
	ErrParsingFailed  = errors.New("parsing upload failed")
	ErrReportNotFound = errors.New("report not found or expired")
)

// UploadFile is one file of a report upload.
type UploadFile struct {
	Filename string
	Reader   io.Reader
}

// ReportSummary is returned after an upload has been processed.
type ReportSummary struct {
	ReportID      string `json:"reportId"`
	Years         []int  `json:"years"`
	StatementRows int    `json:"statementRows"`
	TradeRows     int    `json:"tradeRows"`
}

// YearResults bundles every result table of one reporting year.
type YearResults struct {
	Year              int                       `json:"year"`
	Deposits          *report.Result            `json:"deposits"`
	Dividends         *report.Result            `json:"dividends"`
	Interests         *report.Result            `json:"interests"`
	OtherFees         *report.Result            `json:"otherFees"`
	Forexes           *report.Result            `json:"forexes"`
	UnknownLines      *report.Result            `json:"unknownLines"`
	StocksLong        *report.Result            `json:"stocksLong"`
	StocksShort       *report.Result            `json:"stocksShort"`
	OptionsLong       *report.Result            `json:"optionsLong"`
	OptionsShort      *report.Result            `json:"optionsShort"`
	ShortOptionIncome *report.Result            `json:"shortOptionIncome"`
	TreasuryBills     *report.Result            `json:"treasuryBills"`
	ForeignCurrencies map[string]*report.Result `json:"foreignCurrencies"`
	CurrencyGains     *report.Result            `json:"currencyGains"`
}

// ReportService defines the interface for the core report processing logic.
type ReportService interface {
	ProcessUpload(files []UploadFile) (*ReportSummary, error)
	GetYears(reportID string) ([]int, error)
	GetYearResults(reportID string, year int) (*YearResults, error)
}
