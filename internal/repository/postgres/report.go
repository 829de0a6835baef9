package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Rrens/oneonone-bot/internal/domain"
)

// ReportRepository implements domain.ReportRepository
type ReportRepository struct {
	pool *pgxpool.Pool
}

// NewReportRepository creates a new report repository
func NewReportRepository(pool *pgxpool.Pool) *ReportRepository {
	return &ReportRepository{pool: pool}
}

// Create inserts a report and sets its ID
func (r *ReportRepository) Create(ctx context.Context, report *domain.Report) error {
	query := `
		INSERT INTO registros_1o1 (
			nome_teams, email_employee, id_full, nome_gestor, email_gestor,
			data_1o1, abertura, abertura_comentario, conquistas,
			principais_assuntos, combinados, datastamp, relatorio
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`
	err := r.pool.QueryRow(ctx, query,
		report.DisplayName,
		nullableString(report.Email),
		report.ExternalID,
		report.ManagerName,
		report.ManagerEmail,
		report.MeetingDate,
		report.Mood,
		report.MoodComment,
		report.Achievements,
		report.Topics,
		report.Agreements,
		report.CreatedAt,
		report.Summary,
	).Scan(&report.ID)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	return nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
