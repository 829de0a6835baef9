package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Rrens/oneonone-bot/internal/domain"
	"github.com/Rrens/oneonone-bot/internal/survey"
	"github.com/rs/zerolog/log"
)

const (
	savedReplyText     = "✅ Registro 1o1 salvo com sucesso!"
	saveFailedText     = "❌ Erro ao salvar o registro 1o1. Tente novamente mais tarde."
	cancelledReplyText = "Formulário cancelado. Envie qualquer mensagem para começar de novo."

	// Commands carry a slash so they never collide with a free-text answer.
	cancelCommand  = "/cancelar"
	restartCommand = "/reiniciar"

	// completionCalls is the number of ioTimeout-bounded calls in a completion:
	// identity, journal, report store and mail.
	completionCalls = 4
)

// ConversationService walks chat users through the 1:1 questionnaire
type ConversationService struct {
	sessions  domain.SessionStore
	reports   domain.ReportRepository
	journal   domain.ReportJournal
	identity  domain.IdentityResolver
	notifier  domain.Notifier
	ioTimeout time.Duration
	budget    time.Duration
	now       func() time.Time
	locks     *keyedMutex
}

// NewConversationService creates a new conversation service.
// ioTimeout bounds each call to the identity, report and mail collaborators.
func NewConversationService(
	sessions domain.SessionStore,
	reports domain.ReportRepository,
	identity domain.IdentityResolver,
	notifier domain.Notifier,
	ioTimeout time.Duration,
) *ConversationService {
	return &ConversationService{
		sessions:  sessions,
		reports:   reports,
		identity:  identity,
		notifier:  notifier,
		ioTimeout: ioTimeout,
		budget:    completionCalls * ioTimeout,
		now:       time.Now,
		locks:     newKeyedMutex(),
	}
}

// SetJournal enables the local journal written before every report store attempt
func (s *ConversationService) SetJournal(journal domain.ReportJournal) {
	s.journal = journal
}

// SetCompletionBudget bounds the whole completion transition. Zero leaves
// only the per-call ioTimeout in place.
func (s *ConversationService) SetCompletionBudget(budget time.Duration) {
	s.budget = budget
}

// HandleMessage processes one message and returns the reply for the user.
// Validation and completion outcomes are replies; the error is reserved
// for session storage failures.
func (s *ConversationService) HandleMessage(ctx context.Context, msg domain.InboundMessage) (domain.Reply, error) {
	unlock := s.locks.Lock(msg.UserID)
	defer unlock()

	text := strings.TrimSpace(msg.Text)
	now := s.now().UTC()

	session, err := s.sessions.Get(ctx, msg.UserID)
	if err != nil {
		return domain.Reply{}, fmt.Errorf("failed to load session: %w", err)
	}

	if session == nil {
		return s.start(ctx, msg, now)
	}

	switch strings.ToLower(text) {
	case cancelCommand:
		if err := s.sessions.Delete(ctx, msg.UserID); err != nil {
			return domain.Reply{}, fmt.Errorf("failed to delete session: %w", err)
		}
		log.Info().Str("user_id", msg.UserID).Int("step", session.StepIndex).Msg("Session cancelled")
		return domain.Reply{Kind: domain.ReplyCancelled, Text: cancelledReplyText}, nil
	case restartCommand:
		return s.start(ctx, msg, now)
	}

	steps := survey.Steps()
	if session.StepIndex < 0 || session.StepIndex >= len(steps) || len(session.Answers) != session.StepIndex {
		log.Warn().
			Str("user_id", msg.UserID).
			Int("step", session.StepIndex).
			Int("answers", len(session.Answers)).
			Msg("Discarding inconsistent session")
		return s.start(ctx, msg, now)
	}

	step := steps[session.StepIndex]
	answer, err := step.Validate(text, now)
	if err != nil {
		var rejection *survey.RejectionError
		if errors.As(err, &rejection) {
			log.Debug().Str("user_id", msg.UserID).Str("step", step.Name).Msg("Answer rejected")
			return domain.Reply{Kind: domain.ReplyRejection, Text: rejection.Message}, nil
		}
		return domain.Reply{}, fmt.Errorf("failed to validate %s: %w", step.Name, err)
	}

	session.Accept(answer, now)

	if session.StepIndex == len(steps) {
		return s.complete(ctx, msg, session, now), nil
	}

	if err := s.sessions.Put(ctx, session); err != nil {
		return domain.Reply{}, fmt.Errorf("failed to save session: %w", err)
	}

	return domain.Reply{Kind: domain.ReplyQuestion, Text: steps[session.StepIndex].Prompt}, nil
}

func (s *ConversationService) start(ctx context.Context, msg domain.InboundMessage, now time.Time) (domain.Reply, error) {
	session := &domain.Session{
		UserID:      msg.UserID,
		DisplayName: msg.DisplayName,
		StepIndex:   0,
		Answers:     []domain.Answer{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.sessions.Put(ctx, session); err != nil {
		return domain.Reply{}, fmt.Errorf("failed to create session: %w", err)
	}

	log.Info().Str("user_id", msg.UserID).Msg("Session started")
	return domain.Reply{Kind: domain.ReplyGreeting, Text: survey.Greeting(msg.DisplayName)}, nil
}

// complete stores and mails the finished report. The session is deleted
// whatever the outcome. It runs detached from the caller's cancellation, so a
// request that times out mid-completion cannot leave the finished session behind.
func (s *ConversationService) complete(ctx context.Context, msg domain.InboundMessage, session *domain.Session, now time.Time) domain.Reply {
	detached := context.WithoutCancel(ctx)
	defer func() {
		deleteCtx, cancel := s.withTimeout(detached)
		defer cancel()
		if err := s.sessions.Delete(deleteCtx, msg.UserID); err != nil {
			log.Error().Err(err).Str("user_id", msg.UserID).Msg("Failed to delete completed session")
		}
	}()

	ctx, cancel := s.withBudget(detached)
	defer cancel()

	report, err := survey.BuildReport(session.Answers)
	if err != nil {
		log.Error().Err(err).Str("user_id", msg.UserID).Msg("Failed to build report")
		return domain.Reply{Kind: domain.ReplyFailed, Text: saveFailedText}
	}

	report.DisplayName = msg.DisplayName
	if report.DisplayName == "" {
		report.DisplayName = session.DisplayName
	}
	report.CreatedAt = now
	report.Email = s.resolveEmail(ctx, msg)
	report.Summary = survey.Render(report)

	entryID := s.journalAppend(ctx, report)

	if err := s.saveReport(ctx, report); err != nil {
		log.Error().Err(err).
			Str("user_id", msg.UserID).
			Str("journal_entry", entryID).
			Msg("Failed to save report")
		return domain.Reply{Kind: domain.ReplyFailed, Text: saveFailedText}
	}

	log.Info().Str("user_id", msg.UserID).Int64("report_id", report.ID).Msg("Report saved")

	s.journalMarkStored(ctx, entryID, report.ID)

	s.notify(ctx, report)

	return domain.Reply{Kind: domain.ReplyCompleted, Text: savedReplyText}
}

func (s *ConversationService) resolveEmail(ctx context.Context, msg domain.InboundMessage) string {
	if s.identity == nil {
		return ""
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	email, err := s.identity.ResolveEmail(ctx, msg)
	if err != nil {
		log.Warn().Err(err).Str("user_id", msg.UserID).Msg("Failed to resolve user email")
		return ""
	}
	return email
}

func (s *ConversationService) journalAppend(ctx context.Context, report *domain.Report) string {
	if s.journal == nil {
		return ""
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	entryID, err := s.journal.Append(ctx, report)
	if err != nil {
		log.Error().Err(err).Str("display_name", report.DisplayName).Msg("Failed to append report to journal")
		return ""
	}
	return entryID
}

func (s *ConversationService) journalMarkStored(ctx context.Context, entryID string, reportID int64) {
	if entryID == "" {
		return
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.journal.MarkStored(ctx, entryID, reportID); err != nil {
		log.Warn().Err(err).Str("journal_entry", entryID).Msg("Failed to mark journal entry stored")
	}
}

func (s *ConversationService) saveReport(ctx context.Context, report *domain.Report) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.reports.Create(ctx, report); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("report store timed out after %s: %w", s.ioTimeout, err)
		}
		return err
	}
	return nil
}

func (s *ConversationService) notify(ctx context.Context, report *domain.Report) {
	if s.notifier == nil {
		return
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.notifier.Send(ctx, report.Email, survey.Subject(report), report.Summary); err != nil {
		log.Error().Err(err).Str("to", report.Email).Int64("report_id", report.ID).Msg("Failed to send report email")
		return
	}
	log.Info().Str("to", report.Email).Int64("report_id", report.ID).Msg("Report email sent")
}

func (s *ConversationService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.ioTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.ioTimeout)
}

func (s *ConversationService) withBudget(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.budget <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.budget)
}
