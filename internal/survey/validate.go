package survey

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Rrens/oneonone-bot/internal/domain"
)

// RejectionError is returned by a validator when the input does not fit the step.
// Message is shown to the user as is.
type RejectionError struct {
	Message string
}

func (e *RejectionError) Error() string {
	return e.Message
}

const invalidDateMessage = "Data inválida. Por favor, envie no formato dd/mm/aaaa."

var dateSeparators = regexp.MustCompile(`[\s/.\-]+`)

// ParseDate reads a calendar date with day-first ordering: "5/3/2024" is 5 March 2024.
// A leading four-digit token switches to year-month-day, so ISO dates read naturally.
// A missing year defaults to now's year and two-digit years land within 50 years of now.
func ParseDate(text string, now time.Time) (time.Time, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, &RejectionError{Message: invalidDateMessage}
	}

	tokens := dateSeparators.Split(text, -1)
	if len(tokens) < 2 || len(tokens) > 3 {
		return time.Time{}, &RejectionError{Message: invalidDateMessage}
	}

	nums := make([]int, len(tokens))
	for i, tok := range tokens {
		n, err := strconv.Atoi(tok)
		if err != nil || n < 0 {
			return time.Time{}, &RejectionError{Message: invalidDateMessage}
		}
		nums[i] = n
	}

	var day, month, year int
	switch {
	case len(tokens) == 3 && len(tokens[0]) == 4:
		year, month, day = nums[0], nums[1], nums[2]
	case len(tokens) == 3:
		day, month = nums[0], nums[1]
		y, ok := expandYear(tokens[2], nums[2], now)
		if !ok {
			return time.Time{}, &RejectionError{Message: invalidDateMessage}
		}
		year = y
	default:
		day, month, year = nums[0], nums[1], now.Year()
	}

	// Day-first is a preference: 03/15/2024 can only be March 15.
	if len(tokens[0]) != 4 && month > 12 && day <= 12 {
		day, month = month, day
	}

	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, &RejectionError{Message: invalidDateMessage}
	}

	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if d.Day() != day || int(d.Month()) != month {
		return time.Time{}, &RejectionError{Message: invalidDateMessage}
	}

	return d, nil
}

func expandYear(tok string, n int, now time.Time) (int, bool) {
	switch len(tok) {
	case 4:
		return n, true
	case 2:
		century := now.Year() / 100 * 100
		year := century + n
		if year >= now.Year()+50 {
			year -= 100
		} else if year < now.Year()-50 {
			year += 100
		}
		return year, true
	default:
		return 0, false
	}
}

// Mood is one of the fixed answers to the "how are you feeling" step
type Mood struct {
	Key     string
	Keyword string
	Label   string
	Emoji   string
}

// Moods in menu order. Matching walks this order and the first match wins.
var Moods = []Mood{
	{Key: "1", Keyword: "nervoso", Label: "Nervoso(a)/Frustrado", Emoji: "😠"},
	{Key: "2", Keyword: "triste", Label: "Triste", Emoji: "😢"},
	{Key: "3", Keyword: "neutro", Label: "Neutro(a)", Emoji: "😐"},
	{Key: "4", Keyword: "feliz", Label: "Feliz", Emoji: "🙂"},
	{Key: "5", Keyword: "empolgado", Label: "Empolgado(a)", Emoji: "😄"},
	{Key: "6", Keyword: "outro", Label: "Outro (Ansioso(a)/Preocupado(a))", Emoji: "😟"},
}

// ParseMood maps a menu key ("4"), a keyword prefix ("feliz hoje") or a full label
// to its canonical mood. Matching is case-insensitive.
func ParseMood(text string) (Mood, error) {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower != "" {
		for _, m := range Moods {
			if strings.HasPrefix(lower, m.Key) ||
				strings.HasPrefix(lower, m.Keyword) ||
				lower == strings.ToLower(m.Label) {
				return m, nil
			}
		}
	}
	return Mood{}, &RejectionError{Message: invalidMoodMessage()}
}

func invalidMoodMessage() string {
	choices := make([]string, len(Moods))
	for i, m := range Moods {
		choices[i] = m.Key + " - " + m.Label
	}
	return "Resposta inválida. Por favor escolha uma das opções de sentimento (1 a 6 ou o texto correspondente): " +
		strings.Join(choices, ", ") + "."
}

func validateDate(text string, now time.Time) (domain.Answer, error) {
	d, err := ParseDate(text, now)
	if err != nil {
		return domain.Answer{}, err
	}
	return domain.Answer{Date: d}, nil
}

func validateMood(text string, _ time.Time) (domain.Answer, error) {
	m, err := ParseMood(text)
	if err != nil {
		return domain.Answer{}, err
	}
	return domain.Answer{Text: m.Label}, nil
}

// Free text is taken verbatim. Empty answers are accepted.
func validateFreeText(text string, _ time.Time) (domain.Answer, error) {
	return domain.Answer{Text: text}, nil
}
