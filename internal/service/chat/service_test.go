package chat_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	model "github.com/agromic/agrobot/backend/internal/model/chat"
	"github.com/agromic/agrobot/backend/internal/model/persona"
	"github.com/agromic/agrobot/backend/internal/service/ai"
	chat "github.com/agromic/agrobot/backend/internal/service/chat"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newService(ttl time.Duration) *chat.Service {
	completer := ai.CompleterFunc(func(_ context.Context, req ai.CompletionRequest) (ai.Completion, error) {
		return ai.Completion{Text: "echo: " + req.UserText}, nil
	})
	return chat.NewService(persona.NewMemoryStore(persona.Seed()), completer, chat.Config{IdleTTL: ttl})
}

func TestServiceCreateSession(t *testing.T) {
	svc := newService(0)
	ctx := context.Background()

	snap, err := svc.CreateSession(ctx, persona.DefaultID)
	require.NoError(t, err)
	require.NotEmpty(t, snap.ID)
	require.Equal(t, persona.DefaultID, snap.PersonaID)
	require.Equal(t, model.StatusIdle, snap.Status)
	require.Len(t, snap.Transcript, 1)

	got, err := svc.Snapshot(ctx, snap.ID)
	require.NoError(t, err)
	require.Equal(t, snap.ID, got.ID)
	require.Equal(t, 1, svc.Len())
}

func TestServiceCreateSessionValidation(t *testing.T) {
	svc := newService(0)
	ctx := context.Background()

	_, err := svc.CreateSession(ctx, "")
	require.ErrorIs(t, err, chat.ErrPersonaRequired)

	_, err = svc.CreateSession(ctx, "iron-man")
	require.ErrorIs(t, err, chat.ErrPersonaNotFound)
}

func TestServiceGetSessionNotFound(t *testing.T) {
	svc := newService(0)
	ctx := context.Background()

	_, err := svc.GetSession(ctx, "missing")
	require.ErrorIs(t, err, chat.ErrSessionNotFound)

	_, err = svc.Submit(ctx, "missing", "hi")
	require.ErrorIs(t, err, chat.ErrSessionNotFound)

	require.ErrorIs(t, svc.SetInput(ctx, "missing", "x"), chat.ErrSessionNotFound)
	require.ErrorIs(t, svc.DeleteSession(ctx, "missing"), chat.ErrSessionNotFound)
}

func TestServiceSubmitAndTranscript(t *testing.T) {
	svc := newService(0)
	ctx := context.Background()
	snap, err := svc.CreateSession(ctx, persona.DefaultID)
	require.NoError(t, err)

	require.NoError(t, svc.SetInput(ctx, snap.ID, "drip?"))
	res, err := svc.Submit(ctx, snap.ID, "drip?")
	require.NoError(t, err)
	require.True(t, res.Accepted)
	require.Equal(t, "echo: drip?", res.Reply.Text)

	transcript, err := svc.LoadTranscript(ctx, snap.ID)
	require.NoError(t, err)
	require.Len(t, transcript, 3)

	after, err := svc.Snapshot(ctx, snap.ID)
	require.NoError(t, err)
	require.Empty(t, after.Input)
}

func TestServiceDeleteSessionClosesSubscribers(t *testing.T) {
	svc := newService(0)
	ctx := context.Background()
	snap, err := svc.CreateSession(ctx, persona.DefaultID)
	require.NoError(t, err)

	events, cancel, err := svc.Subscribe(ctx, snap.ID)
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, svc.DeleteSession(ctx, snap.ID))
	_, open := <-events
	require.False(t, open)
	require.Equal(t, 0, svc.Len())
}

func TestServiceSweepEvictsIdleSessions(t *testing.T) {
	svc := newService(time.Minute)
	ctx := context.Background()
	snap, err := svc.CreateSession(ctx, persona.DefaultID)
	require.NoError(t, err)

	require.Equal(t, 0, svc.Sweep(time.Now().UTC()))
	require.Equal(t, 1, svc.Sweep(time.Now().UTC().Add(2*time.Minute)))

	_, err = svc.GetSession(ctx, snap.ID)
	require.ErrorIs(t, err, chat.ErrSessionNotFound)
}

func TestServiceSweepKeepsBusySessions(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	completer := ai.CompleterFunc(func(context.Context, ai.CompletionRequest) (ai.Completion, error) {
		started <- struct{}{}
		<-release
		return ai.Completion{Text: "ok"}, nil
	})
	svc := chat.NewService(persona.NewMemoryStore(persona.Seed()), completer, chat.Config{IdleTTL: time.Minute})
	ctx := context.Background()
	snap, err := svc.CreateSession(ctx, persona.DefaultID)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = svc.Submit(ctx, snap.ID, "slow question")
	}()
	<-started

	require.Equal(t, 0, svc.Sweep(time.Now().UTC().Add(time.Hour)))
	close(release)
	<-done
	require.Equal(t, 1, svc.Len())
}

func TestServiceSweeperStopsWithContext(t *testing.T) {
	svc := newService(time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	_, err := svc.CreateSession(ctx, persona.DefaultID)
	require.NoError(t, err)

	done := svc.StartSweeper(ctx, 5*time.Millisecond)
	require.Eventually(t, func() bool { return svc.Len() == 0 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}
