package services

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/username/steuerrechner/backend/src/config"
	"github.com/username/steuerrechner/backend/src/database"
	"github.com/username/steuerrechner/backend/src/logger"
	"github.com/username/steuerrechner/backend/src/parsers"
	"github.com/username/steuerrechner/backend/src/processors"
	"github.com/username/steuerrechner/backend/src/report"
	"github.com/username/steuerrechner/backend/src/utils"
)

const (
	DefaultCacheExpiration = 60 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute
)

// cachedReport is the in-memory state of one processed upload. Reports are
// never recomputed: every year query is answered from the same instance.
type cachedReport struct {
	report        *report.Report
	reportingDate time.Time
}

type reportServiceImpl struct {
	parser      *parsers.FlexQueryParser
	reportCache *cache.Cache
}

func NewReportService(parser *parsers.FlexQueryParser, reportCache *cache.Cache) ReportService {
	return &reportServiceImpl{
		parser:      parser,
		reportCache: reportCache,
	}
}

// ProcessUpload parses every uploaded file, feeds the combined activity into
// a fresh report and caches it under a new report ID. Files are ordered
// chronologically so multi-year histories can be uploaded as one report per
// year in any order.
func (s *reportServiceImpl) ProcessUpload(files []UploadFile) (*ReportSummary, error) {
	overallStartTime := time.Now()
	logger.L.Info("ProcessUpload START", "files", len(files))

	parsed := make([]*parsers.ActivityData, 0, len(files))
	filenames := make([]string, 0, len(files))
	for _, file := range files {
		data, err := s.parser.Parse(file.Filename, file.Reader)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
		}
		parsed = append(parsed, data)
		filenames = append(filenames, file.Filename)
	}

	sort.SliceStable(parsed, func(i, j int) bool {
		return firstActivityDate(parsed[i]).Before(firstActivityDate(parsed[j]))
	})

	rpt := report.NewReport()
	statementRows, tradeRows := 0, 0
	for _, data := range parsed {
		for _, trade := range data.Trades {
			if err := rpt.ProcessTrade(trade); err != nil {
				return nil, fmt.Errorf("%w: trade %s: %v", ErrParsingFailed, trade.TradeID, err)
			}
			tradeRows++
		}
	}
	for _, data := range parsed {
		for _, row := range data.Statements {
			rpt.ProcessStatement(row)
			statementRows++
		}
	}

	reportingDate := time.Now()
	rpt.Finish(reportingDate)

	reportID := uuid.New().String()
	s.reportCache.Set(reportID, &cachedReport{report: rpt, reportingDate: reportingDate}, DefaultCacheExpiration)

	if err := database.SaveReportMeta(reportID, strings.Join(filenames, ","), statementRows, tradeRows); err != nil {
		logger.L.Error("failed to persist report metadata", "reportID", reportID, "error", err)
	}
	s.persistYearSummaries(reportID, rpt, reportingDate)

	logger.L.Info("ProcessUpload DONE", "reportID", reportID,
		"statementRows", statementRows, "tradeRows", tradeRows,
		"duration", time.Since(overallStartTime))

	return &ReportSummary{
		ReportID:      reportID,
		Years:         rpt.GetYears(),
		StatementRows: statementRows,
		TradeRows:     tradeRows,
	}, nil
}

func firstActivityDate(data *parsers.ActivityData) time.Time {
	if len(data.Trades) > 0 {
		return data.Trades[0].TradeDate
	}
	if len(data.Statements) > 0 {
		return data.Statements[0].Date
	}
	return time.Time{}
}

func (s *reportServiceImpl) persistYearSummaries(reportID string, rpt *report.Report, reportingDate time.Time) {
	for _, year := range rpt.GetYears() {
		results, err := s.yearResults(rpt, reportingDate, year)
		if err != nil {
			logger.L.Error("failed to compute year summary", "reportID", reportID, "year", year, "error", err)
			continue
		}
		summaries := map[string]string{
			"stocks_long":         results.StocksLong.Total("profit").String(),
			"stocks_short":        results.StocksShort.Total("profit").String(),
			"options_long":        results.OptionsLong.Total("profit").String(),
			"short_option_income": results.ShortOptionIncome.Total("amount").String(),
			"treasury_bills":      results.TreasuryBills.Total("profit").String(),
			"dividends":           results.Dividends.Total("amount").String(),
			"interests":           results.Interests.Total("amount").String(),
			"currency_gains":      results.CurrencyGains.Total("profit").String(),
		}
		for category, total := range summaries {
			if err := database.SaveYearSummary(reportID, year, category, total); err != nil {
				logger.L.Error("failed to persist year summary", "reportID", reportID,
					"year", year, "category", category, "error", err)
			}
		}
	}
}

func (s *reportServiceImpl) getCachedReport(reportID string) (*cachedReport, error) {
	entry, found := s.reportCache.Get(reportID)
	if !found {
		return nil, ErrReportNotFound
	}
	cached, ok := entry.(*cachedReport)
	if !ok {
		return nil, ErrReportNotFound
	}
	return cached, nil
}

func (s *reportServiceImpl) GetYears(reportID string) ([]int, error) {
	cached, err := s.getCachedReport(reportID)
	if err != nil {
		return nil, err
	}
	return cached.report.GetYears(), nil
}

func (s *reportServiceImpl) GetYearResults(reportID string, year int) (*YearResults, error) {
	cached, err := s.getCachedReport(reportID)
	if err != nil {
		return nil, err
	}
	return s.yearResults(cached.report, cached.reportingDate, year)
}

func (s *reportServiceImpl) yearResults(rpt *report.Report, reportingDate time.Time, year int) (*YearResults, error) {
	cfg := config.Cfg
	cutOffDates := utils.DefaultCutOffDates(rpt.GetYears(), time.Month(cfg.CutOffMonth), cfg.CutOffDay)
	shortOptionIncome := rpt.GetShortOptionProfits(cutOffDates)[year]
	if shortOptionIncome == nil {
		shortOptionIncome = &report.Result{Year: year}
	}

	return &YearResults{
		Year:              year,
		Deposits:          rpt.GetDeposits(year),
		Dividends:         rpt.GetDividends(year),
		Interests:         rpt.GetInterests(year),
		OtherFees:         rpt.GetOtherFees(year),
		Forexes:           rpt.GetForexes(year),
		UnknownLines:      rpt.GetUnknownLines(year),
		StocksLong:        rpt.GetStocks(year, processors.PositionLong),
		StocksShort:       rpt.GetStocks(year, processors.PositionShort),
		OptionsLong:       rpt.GetOptions(year, processors.PositionLong),
		OptionsShort:      rpt.GetOptions(year, processors.PositionShort),
		ShortOptionIncome: shortOptionIncome,
		TreasuryBills:     rpt.GetTreasuryBills(year),
		ForeignCurrencies: rpt.GetForeignCurrencies(year, cfg.InterestBearingAccount),
		CurrencyGains:     rpt.GetCurrencyGains(year, reportingDate),
	}, nil
}
