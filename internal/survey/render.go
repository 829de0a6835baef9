package survey

import (
	"fmt"

	"github.com/Rrens/oneonone-bot/internal/domain"
)

const dateLayout = "02/01/2006"

// Render formats a report as the plain-text form stored and emailed
func Render(r *domain.Report) string {
	return fmt.Sprintf(`
Formulário 1:1

Data do 1:1:
%s

Sentimento:
%s

Comentário sobre o sentimento:
%s

Conquistas:
%s

Principais assuntos:
%s

Combinados e expectativas:
%s
`,
		r.MeetingDate.Format(dateLayout),
		r.Mood,
		r.MoodComment,
		r.Achievements,
		r.Topics,
		r.Agreements,
	)
}

// Subject is the email subject for a report
func Subject(r *domain.Report) string {
	return "[Resumo semanal] - " + r.MeetingDate.Format(dateLayout)
}
