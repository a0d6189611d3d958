package database

import (
	"database/sql"
	"errors"
	stdlog "log"

	"github.com/username/steuerrechner/backend/src/logger"
	_ "modernc.org/sqlite"
)

var DB *sql.DB

func InitDB(databasePath string) {
	db, err := sql.Open("sqlite", databasePath)
	if err != nil {
		stdlog.Fatalf("failed to open database at %s: %v", databasePath, err)
	}

	DB = db

	if logger.L != nil {
		logger.L.Info("Checking database migrations", "databasePath", databasePath)
	} else {
		stdlog.Println("Checking database migrations for:", databasePath)
	}
	migrateReportsTable()

	createTableStatement := `
	CREATE TABLE IF NOT EXISTS reports (
		id TEXT PRIMARY KEY,
		filenames TEXT NOT NULL,
		uploaded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		statement_rows INTEGER NOT NULL,
		trade_rows INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS report_years (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		report_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		category TEXT NOT NULL,
		total TEXT,
		FOREIGN KEY(report_id) REFERENCES reports(id),
		UNIQUE(report_id, year, category)
	);
	`

	_, err = DB.Exec(createTableStatement)
	if err != nil {
		if logger.L != nil {
			logger.L.Error("failed to create tables", "error", err)
		}
		stdlog.Fatalf("failed to create tables: %v", err)
	}
	if logger.L != nil {
		logger.L.Info("Database tables ensured/created.")
	} else {
		stdlog.Println("Database tables ensured/created.")
	}
}

// migrateReportsTable adds columns introduced after the first release to an
// existing reports table.
func migrateReportsTable() {
	var tableName string
	err := DB.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='reports'").Scan(&tableName)
	if err != nil {
		if err == sql.ErrNoRows {
			if logger.L != nil {
				logger.L.Info("'reports' table does not exist, no migration needed as table will be created.")
			} else {
				stdlog.Println("'reports' table does not exist, no migration needed as table will be created.")
			}
			return
		}
		if logger.L != nil {
			logger.L.Error("Error checking for 'reports' table", "error", err)
		} else {
			stdlog.Printf("Error checking for 'reports' table: %v", err)
		}
		return
	}

	rows, err := DB.Query("PRAGMA table_info(reports)")
	if err != nil {
		if logger.L != nil {
			logger.L.Error("Error querying table schema for 'reports'", "error", err)
		} else {
			stdlog.Printf("Error querying table schema for 'reports': %v", err)
		}
		return
	}
	defer rows.Close()

	columnExists := make(map[string]bool)
	for rows.Next() {
		var cid, pk int
		var name, dataType string
		var notnullVal int
		var dfltValue interface{}

		if err := rows.Scan(&cid, &name, &dataType, &notnullVal, &dfltValue, &pk); err != nil {
			if logger.L != nil {
				logger.L.Error("Error scanning column info for 'reports'", "error", err)
			} else {
				stdlog.Printf("Error scanning column info for 'reports': %v", err)
			}
			return
		}
		columnExists[name] = true
	}
	if err = rows.Err(); err != nil {
		if logger.L != nil {
			logger.L.Error("Error iterating over column info for 'reports'", "error", err)
		} else {
			stdlog.Printf("Error iterating over column info for 'reports': %v", err)
		}
		return
	}

	if _, ok := columnExists["statement_rows"]; !ok {
		_, err := DB.Exec("ALTER TABLE reports ADD COLUMN statement_rows INTEGER NOT NULL DEFAULT 0")
		if err != nil {
			logger.L.Error("Error adding 'statement_rows' column to 'reports' table", "error", err)
		} else {
			logger.L.Info("Added 'statement_rows' column to 'reports' table")
		}
	}
	if _, ok := columnExists["trade_rows"]; !ok {
		_, err := DB.Exec("ALTER TABLE reports ADD COLUMN trade_rows INTEGER NOT NULL DEFAULT 0")
		if err != nil {
			logger.L.Error("Error adding 'trade_rows' column to 'reports' table", "error", err)
		} else {
			logger.L.Info("Added 'trade_rows' column to 'reports' table")
		}
	}
}

// SaveReportMeta records one processed upload.
func SaveReportMeta(id, filenames string, statementRows, tradeRows int) error {
	if DB == nil {
		return errors.New("database not initialized")
	}
	_, err := DB.Exec(
		"INSERT INTO reports (id, filenames, statement_rows, trade_rows) VALUES (?, ?, ?, ?)",
		id, filenames, statementRows, tradeRows)
	return err
}

// SaveYearSummary upserts the per-year total of one result category.
func SaveYearSummary(reportID string, year int, category, total string) error {
	if DB == nil {
		return errors.New("database not initialized")
	}
	_, err := DB.Exec(
		`INSERT INTO report_years (report_id, year, category, total) VALUES (?, ?, ?, ?)
		 ON CONFLICT(report_id, year, category) DO UPDATE SET total = excluded.total`,
		reportID, year, category, total)
	return err
}
