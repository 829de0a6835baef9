package sqldb

import (
	"context"
	"fmt"
)

var reportSchema = map[string]string{
	DriverSQLite: `
		CREATE TABLE IF NOT EXISTS registros_1o1 (
			id                  INTEGER PRIMARY KEY AUTOINCREMENT,
			nome_teams          TEXT,
			email_employee      TEXT,
			id_full             INTEGER,
			nome_gestor         TEXT,
			email_gestor        TEXT,
			data_1o1            DATE,
			abertura            TEXT,
			abertura_comentario TEXT,
			conquistas          TEXT,
			principais_assuntos TEXT,
			combinados          TEXT,
			datastamp           DATETIME,
			relatorio           TEXT
		)`,
	DriverMySQL: `
		CREATE TABLE IF NOT EXISTS registros_1o1 (
			id                  INT AUTO_INCREMENT PRIMARY KEY,
			nome_teams          TEXT,
			email_employee      TEXT,
			id_full             INT,
			nome_gestor         TEXT,
			email_gestor        TEXT,
			data_1o1            DATE,
			abertura            TEXT,
			abertura_comentario TEXT,
			conquistas          TEXT,
			principais_assuntos TEXT,
			combinados          TEXT,
			datastamp           DATETIME,
			relatorio           TEXT
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

const journalSchema = `
	CREATE TABLE IF NOT EXISTS report_journal (
		id         TEXT PRIMARY KEY,
		payload    TEXT NOT NULL,
		status     TEXT NOT NULL,
		report_id  INTEGER,
		created_at DATETIME NOT NULL,
		stored_at  DATETIME
	)`

// EnsureReportSchema creates the registros_1o1 table if it is missing
func (db *DB) EnsureReportSchema(ctx context.Context) error {
	stmt, ok := reportSchema[db.driver]
	if !ok {
		return fmt.Errorf("no report schema for driver %q", db.driver)
	}
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to create report table: %w", err)
	}
	return nil
}
