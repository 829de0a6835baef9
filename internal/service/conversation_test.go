package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Rrens/oneonone-bot/internal/domain"
	"github.com/Rrens/oneonone-bot/internal/repository/memory"
	"github.com/Rrens/oneonone-bot/internal/survey"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, time.January, 10, 9, 30, 0, 0, time.UTC)

var validInputs = []string{"15/01/2025", "4", "tudo bem", "fiz X", "discutir Y", "combinar Z"}

type fixture struct {
	svc      *ConversationService
	sessions *memory.SessionStore
	reports  *MockReportRepository
	identity *MockIdentityResolver
	notifier *MockNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		sessions: memory.NewSessionStore(),
		reports:  new(MockReportRepository),
		identity: new(MockIdentityResolver),
		notifier: new(MockNotifier),
	}
	f.svc = NewConversationService(f.sessions, f.reports, f.identity, f.notifier, time.Second)
	f.svc.now = func() time.Time { return fixedNow }
	return f
}

func (f *fixture) send(t *testing.T, userID, text string) domain.Reply {
	t.Helper()
	reply, err := f.svc.HandleMessage(context.Background(), domain.InboundMessage{
		UserID:      userID,
		DisplayName: "Ana Souza",
		Text:        text,
	})
	require.NoError(t, err)
	return reply
}

func (f *fixture) session(t *testing.T, userID string) *domain.Session {
	t.Helper()
	s, err := f.sessions.Get(context.Background(), userID)
	require.NoError(t, err)
	return s
}

func TestConversation_FullFlow(t *testing.T) {
	f := newFixture(t)

	var saved *domain.Report
	f.identity.On("ResolveEmail", mock.Anything, mock.AnythingOfType("domain.InboundMessage")).
		Return("ana@example.com", nil)
	f.reports.On("Create", mock.Anything, mock.AnythingOfType("*domain.Report")).
		Run(func(args mock.Arguments) {
			saved = args.Get(1).(*domain.Report)
			saved.ID = 42
		}).
		Return(nil)
	f.notifier.On("Send", mock.Anything, "ana@example.com", "[Resumo semanal] - 15/01/2025", mock.AnythingOfType("string")).
		Return(nil)

	steps := survey.Steps()

	reply := f.send(t, "u1", "oi")
	assert.Equal(t, domain.ReplyGreeting, reply.Kind)
	assert.Equal(t, "Olá, Ana Souza! Vamos começar. "+steps[0].Prompt, reply.Text)

	prompts := 1
	for i, in := range validInputs {
		reply = f.send(t, "u1", in)
		if i < len(validInputs)-1 {
			assert.Equal(t, domain.ReplyQuestion, reply.Kind)
			assert.Equal(t, steps[i+1].Prompt, reply.Text)
			prompts++
		}
	}

	assert.Equal(t, 6, prompts)
	assert.Equal(t, domain.ReplyCompleted, reply.Kind)
	assert.Equal(t, savedReplyText, reply.Text)
	assert.Nil(t, f.session(t, "u1"))

	require.NotNil(t, saved)
	assert.Equal(t, time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC), saved.MeetingDate)
	assert.Equal(t, "Feliz", saved.Mood)
	assert.Equal(t, "tudo bem", saved.MoodComment)
	assert.Equal(t, "fiz X", saved.Achievements)
	assert.Equal(t, "discutir Y", saved.Topics)
	assert.Equal(t, "combinar Z", saved.Agreements)
	assert.Equal(t, "Ana Souza", saved.DisplayName)
	assert.Equal(t, "ana@example.com", saved.Email)
	assert.Equal(t, fixedNow, saved.CreatedAt)
	assert.Equal(t, survey.Render(saved), saved.Summary)

	f.reports.AssertExpectations(t)
	f.notifier.AssertCalled(t, "Send", mock.Anything, "ana@example.com", "[Resumo semanal] - 15/01/2025", saved.Summary)
}

func TestConversation_InvalidDateIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.send(t, "u1", "oi")

	for i := 0; i < 5; i++ {
		reply := f.send(t, "u1", "ontem")
		assert.Equal(t, domain.ReplyRejection, reply.Kind)
		assert.Contains(t, reply.Text, "dd/mm/aaaa")

		s := f.session(t, "u1")
		require.NotNil(t, s)
		assert.Equal(t, 0, s.StepIndex)
		assert.Empty(t, s.Answers)
	}

	reply := f.send(t, "u1", "05/03/2024")
	assert.Equal(t, domain.ReplyQuestion, reply.Kind)
	assert.Equal(t, 1, f.session(t, "u1").StepIndex)
}

func TestConversation_InvalidMood(t *testing.T) {
	f := newFixture(t)
	f.send(t, "u1", "oi")
	f.send(t, "u1", "15/01/2025")

	reply := f.send(t, "u1", "7")
	assert.Equal(t, domain.ReplyRejection, reply.Kind)
	assert.Contains(t, reply.Text, "1 a 6")

	s := f.session(t, "u1")
	assert.Equal(t, 1, s.StepIndex)
	assert.Len(t, s.Answers, 1)

	reply = f.send(t, "u1", "NERVOSO")
	assert.Equal(t, domain.ReplyQuestion, reply.Kind)
	s = f.session(t, "u1")
	assert.Equal(t, "Nervoso(a)/Frustrado", s.Answers[1].Text)
}

func TestConversation_FirstMessageIsNotValidated(t *testing.T) {
	f := newFixture(t)

	reply := f.send(t, "u1", "15/01/2025")
	assert.Equal(t, domain.ReplyGreeting, reply.Kind)

	s := f.session(t, "u1")
	require.NotNil(t, s)
	assert.Equal(t, 0, s.StepIndex)
	assert.Empty(t, s.Answers)
}

func TestConversation_PersistenceFailure(t *testing.T) {
	f := newFixture(t)
	f.identity.On("ResolveEmail", mock.Anything, mock.Anything).Return("ana@example.com", nil)
	f.reports.On("Create", mock.Anything, mock.Anything).Return(errors.New("connection refused"))

	f.send(t, "u1", "oi")
	var reply domain.Reply
	for _, in := range validInputs {
		reply = f.send(t, "u1", in)
	}

	assert.Equal(t, domain.ReplyFailed, reply.Kind)
	assert.Equal(t, saveFailedText, reply.Text)
	// The session is gone even though the report was not stored.
	assert.Nil(t, f.session(t, "u1"))
	f.notifier.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestConversation_PersistenceTimeout(t *testing.T) {
	f := newFixture(t)
	f.svc.ioTimeout = 20 * time.Millisecond
	f.identity.On("ResolveEmail", mock.Anything, mock.Anything).Return("", nil)
	f.reports.On("Create", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(context.DeadlineExceeded)

	f.send(t, "u1", "oi")
	var reply domain.Reply
	for _, in := range validInputs {
		reply = f.send(t, "u1", in)
	}

	assert.Equal(t, domain.ReplyFailed, reply.Kind)
	assert.Nil(t, f.session(t, "u1"))
}

func TestConversation_NotificationFailureDoesNotChangeReply(t *testing.T) {
	f := newFixture(t)
	f.identity.On("ResolveEmail", mock.Anything, mock.Anything).Return("ana@example.com", nil)
	f.reports.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.notifier.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("graph returned 401"))

	f.send(t, "u1", "oi")
	var reply domain.Reply
	for _, in := range validInputs {
		reply = f.send(t, "u1", in)
	}

	assert.Equal(t, domain.ReplyCompleted, reply.Kind)
	assert.Nil(t, f.session(t, "u1"))
	f.notifier.AssertNumberOfCalls(t, "Send", 1)
}

func TestConversation_IdentityFailureIsAbsorbed(t *testing.T) {
	f := newFixture(t)
	f.identity.On("ResolveEmail", mock.Anything, mock.Anything).Return("", errors.New("member lookup failed"))
	f.reports.On("Create", mock.Anything, mock.MatchedBy(func(r *domain.Report) bool {
		return r.Email == ""
	})).Return(nil)
	f.notifier.On("Send", mock.Anything, "", mock.Anything, mock.Anything).Return(errors.New("no recipient"))

	f.send(t, "u1", "oi")
	var reply domain.Reply
	for _, in := range validInputs {
		reply = f.send(t, "u1", in)
	}

	assert.Equal(t, domain.ReplyCompleted, reply.Kind)
	f.reports.AssertExpectations(t)
}

func TestConversation_UsersAreIndependent(t *testing.T) {
	f := newFixture(t)
	f.identity.On("ResolveEmail", mock.Anything, mock.Anything).Return("", nil)
	f.reports.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.notifier.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	f.send(t, "u1", "oi")
	for _, in := range validInputs {
		f.send(t, "u1", in)
	}
	assert.Nil(t, f.session(t, "u1"))

	f.send(t, "u2", "oi")
	f.send(t, "u2", "15/01/2025")

	reply := f.send(t, "u3", "15/01/2025")
	assert.Equal(t, domain.ReplyGreeting, reply.Kind)

	assert.Equal(t, 1, f.session(t, "u2").StepIndex)
	assert.Equal(t, 0, f.session(t, "u3").StepIndex)

	// A completed user starts over.
	reply = f.send(t, "u1", "oi de novo")
	assert.Equal(t, domain.ReplyGreeting, reply.Kind)
	assert.Equal(t, 0, f.session(t, "u1").StepIndex)
}

func TestConversation_CancelAndRestart(t *testing.T) {
	f := newFixture(t)
	f.send(t, "u1", "oi")
	f.send(t, "u1", "15/01/2025")

	reply := f.send(t, "u1", "/Cancelar")
	assert.Equal(t, domain.ReplyCancelled, reply.Kind)
	assert.Nil(t, f.session(t, "u1"))

	f.send(t, "u1", "oi")
	f.send(t, "u1", "15/01/2025")
	f.send(t, "u1", "4")
	assert.Equal(t, 2, f.session(t, "u1").StepIndex)

	reply = f.send(t, "u1", "/reiniciar")
	assert.Equal(t, domain.ReplyGreeting, reply.Kind)
	assert.Equal(t, 0, f.session(t, "u1").StepIndex)
	assert.Empty(t, f.session(t, "u1").Answers)
}

func TestConversation_CommandWordsAreAnswers(t *testing.T) {
	f := newFixture(t)
	f.send(t, "u1", "oi")
	for _, in := range validInputs[:4] {
		f.send(t, "u1", in)
	}

	reply := f.send(t, "u1", "Cancelar")
	assert.Equal(t, domain.ReplyQuestion, reply.Kind)

	s := f.session(t, "u1")
	require.NotNil(t, s)
	assert.Equal(t, 5, s.StepIndex)
	assert.Equal(t, "Cancelar", s.Answers[4].Text)
}

func TestConversation_TrimsInput(t *testing.T) {
	f := newFixture(t)
	f.send(t, "u1", "oi")
	f.send(t, "u1", "  15/01/2025\n")
	f.send(t, "u1", "\t4 ")
	f.send(t, "u1", "  tudo bem  ")

	s := f.session(t, "u1")
	assert.Equal(t, "Feliz", s.Answers[1].Text)
	assert.Equal(t, "tudo bem", s.Answers[2].Text)
}

func TestConversation_DiscardsInconsistentSession(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sessions.Put(context.Background(), &domain.Session{UserID: "u1", StepIndex: 3}))

	reply := f.send(t, "u1", "anything")
	assert.Equal(t, domain.ReplyGreeting, reply.Kind)
	assert.Equal(t, 0, f.session(t, "u1").StepIndex)
}

func TestConversation_SessionStoreFailure(t *testing.T) {
	svc := NewConversationService(failingSessionStore{}, nil, nil, nil, time.Second)

	_, err := svc.HandleMessage(context.Background(), domain.InboundMessage{UserID: "u1", Text: "oi"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errStoreDown)
}

func TestConversation_Journal(t *testing.T) {
	t.Run("marked stored after save", func(t *testing.T) {
		f := newFixture(t)
		journal := new(MockReportJournal)
		f.svc.SetJournal(journal)

		var order []string
		journal.On("Append", mock.Anything, mock.Anything).
			Run(func(mock.Arguments) { order = append(order, "journal") }).
			Return("entry-1", nil)
		journal.On("MarkStored", mock.Anything, "entry-1", int64(7)).Return(nil)
		f.identity.On("ResolveEmail", mock.Anything, mock.Anything).Return("", nil)
		f.reports.On("Create", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				order = append(order, "store")
				args.Get(1).(*domain.Report).ID = 7
			}).
			Return(nil)
		f.notifier.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

		f.send(t, "u1", "oi")
		for _, in := range validInputs {
			f.send(t, "u1", in)
		}

		assert.Equal(t, []string{"journal", "store"}, order)
		journal.AssertExpectations(t)
	})

	t.Run("left pending when save fails", func(t *testing.T) {
		f := newFixture(t)
		journal := new(MockReportJournal)
		f.svc.SetJournal(journal)

		journal.On("Append", mock.Anything, mock.MatchedBy(func(r *domain.Report) bool {
			return strings.Contains(r.Summary, "combinar Z")
		})).Return("entry-1", nil)
		f.identity.On("ResolveEmail", mock.Anything, mock.Anything).Return("", nil)
		f.reports.On("Create", mock.Anything, mock.Anything).Return(errors.New("down"))

		f.send(t, "u1", "oi")
		var reply domain.Reply
		for _, in := range validInputs {
			reply = f.send(t, "u1", in)
		}

		assert.Equal(t, domain.ReplyFailed, reply.Kind)
		journal.AssertNotCalled(t, "MarkStored", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestConversation_ConcurrentUsers(t *testing.T) {
	f := newFixture(t)
	f.identity.On("ResolveEmail", mock.Anything, mock.Anything).Return("", nil)
	f.reports.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.notifier.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	users := []string{"a", "b", "c", "d"}
	var wg sync.WaitGroup
	for _, u := range users {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			msgs := append([]string{"oi"}, validInputs...)
			for _, in := range msgs {
				_, err := f.svc.HandleMessage(context.Background(), domain.InboundMessage{UserID: userID, Text: in})
				assert.NoError(t, err)
			}
		}(u)
	}
	wg.Wait()

	assert.Equal(t, 0, f.sessions.Len())
	f.reports.AssertNumberOfCalls(t, "Create", len(users))
	assert.Equal(t, 0, f.svc.locks.size())
}

// contextSessionStore fails Delete once its context is done, as network stores do
type contextSessionStore struct {
	*memory.SessionStore
}

func (s contextSessionStore) Delete(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.SessionStore.Delete(ctx, userID)
}

func TestConversation_CompletionOutlivesRequest(t *testing.T) {
	sessions := contextSessionStore{memory.NewSessionStore()}
	reports := new(MockReportRepository)
	identity := new(MockIdentityResolver)
	notifier := new(MockNotifier)
	svc := NewConversationService(sessions, reports, identity, notifier, time.Second)

	var storeCtxErr error
	identity.On("ResolveEmail", mock.Anything, mock.Anything).Return("ana@example.com", nil)
	reports.On("Create", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			time.Sleep(80 * time.Millisecond)
			storeCtxErr = args.Get(0).(context.Context).Err()
			args.Get(1).(*domain.Report).ID = 1
		}).
		Return(nil)
	notifier.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	msg := domain.InboundMessage{UserID: "u1", DisplayName: "Ana", Text: "oi"}
	_, err := svc.HandleMessage(context.Background(), msg)
	require.NoError(t, err)
	for _, in := range validInputs[:len(validInputs)-1] {
		msg.Text = in
		_, err := svc.HandleMessage(context.Background(), msg)
		require.NoError(t, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	msg.Text = validInputs[len(validInputs)-1]
	reply, err := svc.HandleMessage(ctx, msg)
	require.NoError(t, err)

	assert.Equal(t, domain.ReplyCompleted, reply.Kind)
	assert.NoError(t, storeCtxErr)

	left, err := sessions.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Nil(t, left, "finished session must not survive the request deadline")

	msg.Text = "combinar de novo"
	reply, err = svc.HandleMessage(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, domain.ReplyGreeting, reply.Kind)
	reports.AssertNumberOfCalls(t, "Create", 1)
}

func TestConversation_CompletionBudget(t *testing.T) {
	f := newFixture(t)
	f.svc.SetCompletionBudget(30 * time.Millisecond)
	f.identity.On("ResolveEmail", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return("", context.DeadlineExceeded)
	f.reports.On("Create", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(context.DeadlineExceeded)

	f.send(t, "u1", "oi")
	start := time.Now()
	var reply domain.Reply
	for _, in := range validInputs {
		reply = f.send(t, "u1", in)
	}

	assert.Less(t, time.Since(start), 900*time.Millisecond)
	assert.Equal(t, domain.ReplyFailed, reply.Kind)
	assert.Nil(t, f.session(t, "u1"))
}

func TestConversation_JournalWriteIsBounded(t *testing.T) {
	f := newFixture(t)
	f.svc.ioTimeout = 20 * time.Millisecond
	journal := new(MockReportJournal)
	f.svc.SetJournal(journal)

	journal.On("Append", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return("", context.DeadlineExceeded)
	f.identity.On("ResolveEmail", mock.Anything, mock.Anything).Return("", nil)
	f.reports.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.notifier.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	f.send(t, "u1", "oi")
	var reply domain.Reply
	for _, in := range validInputs {
		reply = f.send(t, "u1", in)
	}

	assert.Equal(t, domain.ReplyCompleted, reply.Kind)
	journal.AssertNotCalled(t, "MarkStored", mock.Anything, mock.Anything, mock.Anything)
}
