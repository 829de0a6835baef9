package survey_test

import (
	"strings"
	"testing"
	"time"

	"github.com/Rrens/oneonone-bot/internal/domain"
	"github.com/Rrens/oneonone-bot/internal/survey"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSteps_Sequence(t *testing.T) {
	steps := survey.Steps()
	require.Len(t, steps, 6)
	assert.Equal(t, 6, survey.Count())

	for _, s := range steps {
		assert.NotEmpty(t, s.Prompt, s.Name)
		assert.NotNil(t, s.Validate, s.Name)
		assert.NotNil(t, s.Assign, s.Name)
	}

	assert.Contains(t, steps[0].Prompt, "dd/mm/aaaa")
	for _, m := range survey.Moods {
		assert.Contains(t, steps[1].Prompt, m.Key+"️⃣ - "+m.Label)
	}
}

func TestSteps_FreeTextAcceptsAnything(t *testing.T) {
	for _, s := range survey.Steps()[2:] {
		for _, in := range []string{"", "fiz X", "  espaços  "} {
			a, err := s.Validate(in, refNow)
			require.NoError(t, err)
			assert.Equal(t, in, a.Text)
		}
	}
}

func TestGreeting(t *testing.T) {
	g := survey.Greeting("Ana")
	assert.True(t, strings.HasPrefix(g, "Olá, Ana! Vamos começar. "))
	assert.True(t, strings.HasSuffix(g, survey.Steps()[0].Prompt))
}

func TestBuildReport(t *testing.T) {
	answers := validAnswers(t)

	r, err := survey.BuildReport(answers)
	require.NoError(t, err)

	assert.Equal(t, date(2025, 1, 15), r.MeetingDate)
	assert.Equal(t, "Feliz", r.Mood)
	assert.Equal(t, "tudo bem", r.MoodComment)
	assert.Equal(t, "fiz X", r.Achievements)
	assert.Equal(t, "discutir Y", r.Topics)
	assert.Equal(t, "combinar Z", r.Agreements)
}

func TestBuildReport_WrongAnswerCount(t *testing.T) {
	_, err := survey.BuildReport(validAnswers(t)[:5])
	assert.Error(t, err)
}

func TestRender(t *testing.T) {
	r, err := survey.BuildReport(validAnswers(t))
	require.NoError(t, err)

	want := `
Formulário 1:1

Data do 1:1:
15/01/2025

Sentimento:
Feliz

Comentário sobre o sentimento:
tudo bem

Conquistas:
fiz X

Principais assuntos:
discutir Y

Combinados e expectativas:
combinar Z
`
	assert.Equal(t, want, survey.Render(r))
	assert.Equal(t, "[Resumo semanal] - 15/01/2025", survey.Subject(r))
}

func validAnswers(t *testing.T) []domain.Answer {
	t.Helper()
	inputs := []string{"15/01/2025", "4", "tudo bem", "fiz X", "discutir Y", "combinar Z"}
	answers := make([]domain.Answer, 0, len(inputs))
	for i, s := range survey.Steps() {
		a, err := s.Validate(inputs[i], time.Now())
		require.NoError(t, err, s.Name)
		answers = append(answers, a)
	}
	return answers
}
