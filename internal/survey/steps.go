// Package survey holds the fixed 1:1 meeting questionnaire: its steps, the validators
// for each answer, and the rendering of a completed report.
package survey

import (
	"fmt"
	"strings"
	"time"

	"github.com/Rrens/oneonone-bot/internal/domain"
)

// Step is one question of the questionnaire
type Step struct {
	Name     string
	Prompt   string
	Validate func(text string, now time.Time) (domain.Answer, error)
	Assign   func(r *domain.Report, a domain.Answer)
}

var steps = []Step{
	{
		Name:     "meeting_date",
		Prompt:   "Qual será a data do 1:1? (formato: dd/mm/aaaa)",
		Validate: validateDate,
		Assign:   func(r *domain.Report, a domain.Answer) { r.MeetingDate = a.Date },
	},
	{
		Name:     "mood",
		Prompt:   moodPrompt(),
		Validate: validateMood,
		Assign:   func(r *domain.Report, a domain.Answer) { r.Mood = a.Text },
	},
	{
		Name:     "mood_comment",
		Prompt:   "Fale um pouco mais de como está se sentindo.",
		Validate: validateFreeText,
		Assign:   func(r *domain.Report, a domain.Answer) { r.MoodComment = a.Text },
	},
	{
		Name:     "achievements",
		Prompt:   "Quais as conquistas e avanços desde o último encontro?",
		Validate: validateFreeText,
		Assign:   func(r *domain.Report, a domain.Answer) { r.Achievements = a.Text },
	},
	{
		Name:     "topics",
		Prompt:   "Quais os principais assuntos que serão discutidos no 1:1?",
		Validate: validateFreeText,
		Assign:   func(r *domain.Report, a domain.Answer) { r.Topics = a.Text },
	},
	{
		Name:     "agreements",
		Prompt:   "Quais os combinados, alinhamentos e expectativas?",
		Validate: validateFreeText,
		Assign:   func(r *domain.Report, a domain.Answer) { r.Agreements = a.Text },
	},
}

// Steps returns the questionnaire in order
func Steps() []Step {
	return steps
}

// Count is the number of questions
func Count() int {
	return len(steps)
}

func moodPrompt() string {
	var b strings.Builder
	b.WriteString("Como você está se sentindo? ")
	for _, m := range Moods {
		fmt.Fprintf(&b, "\n\n%s️⃣ - %s %s", m.Key, m.Label, m.Emoji)
	}
	return b.String()
}

// Greeting is the first message of a new session
func Greeting(displayName string) string {
	return fmt.Sprintf("Olá, %s! Vamos começar. %s", displayName, steps[0].Prompt)
}

// BuildReport assembles a report from one answer per step
func BuildReport(answers []domain.Answer) (*domain.Report, error) {
	if len(answers) != len(steps) {
		return nil, fmt.Errorf("expected %d answers, got %d", len(steps), len(answers))
	}

	r := &domain.Report{}
	for i, step := range steps {
		step.Assign(r, answers[i])
	}
	return r, nil
}
