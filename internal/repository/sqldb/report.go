package sqldb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Rrens/oneonone-bot/internal/domain"
)

// ReportRepository implements domain.ReportRepository on database/sql
type ReportRepository struct {
	db *DB
}

// NewReportRepository creates a new report repository
func NewReportRepository(db *DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Create inserts a report and sets its ID
func (r *ReportRepository) Create(ctx context.Context, report *domain.Report) error {
	query := `
		INSERT INTO registros_1o1 (
			nome_teams, email_employee, id_full, nome_gestor, email_gestor,
			data_1o1, abertura, abertura_comentario, conquistas,
			principais_assuntos, combinados, datastamp, relatorio
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	res, err := r.db.ExecContext(ctx, query,
		report.DisplayName,
		nullString(report.Email),
		report.ExternalID,
		report.ManagerName,
		report.ManagerEmail,
		report.MeetingDate.Format("2006-01-02"),
		report.Mood,
		report.MoodComment,
		report.Achievements,
		report.Topics,
		report.Agreements,
		report.CreatedAt.UTC(),
		report.Summary,
	)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read report id: %w", err)
	}
	report.ID = id
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
