package stream

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/agromic/agrobot/backend/internal/model/persona"
	"github.com/agromic/agrobot/backend/internal/service/ai"
	chatservice "github.com/agromic/agrobot/backend/internal/service/chat"
)

func setupServer(t *testing.T) (*httptest.Server, *chatservice.Service) {
	t.Helper()
	completer := ai.CompleterFunc(func(_ context.Context, req ai.CompletionRequest) (ai.Completion, error) {
		return ai.Completion{Text: "Drip saves up to 60% water."}, nil
	})
	chatSvc := chatservice.NewService(persona.NewMemoryStore(persona.Seed()), completer, chatservice.Config{})

	r := chi.NewRouter()
	New(chatSvc).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, chatSvc
}

// readEvents collects "event:" names from the stream until n are seen.
func readEvents(t *testing.T, scanner *bufio.Scanner, n int) []string {
	t.Helper()
	var names []string
	for len(names) < n && scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "event: ") {
			names = append(names, strings.TrimPrefix(line, "event: "))
		}
	}
	if len(names) < n {
		t.Fatalf("expected %d events, got %v (err=%v)", n, names, scanner.Err())
	}
	return names
}

func TestEventsStreamSnapshotThenTurn(t *testing.T) {
	srv, chatSvc := setupServer(t)
	ctx := context.Background()
	snap, err := chatSvc.CreateSession(ctx, persona.DefaultID)
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(reqCtx, http.MethodGet, srv.URL+"/sessions/"+snap.ID+"/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request err: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	scanner := bufio.NewScanner(resp.Body)
	if got := readEvents(t, scanner, 1); got[0] != "snapshot" {
		t.Fatalf("expected snapshot first, got %v", got)
	}

	if _, err := chatSvc.Submit(ctx, snap.ID, "Why drip?"); err != nil {
		t.Fatalf("Submit err: %v", err)
	}

	got := readEvents(t, scanner, 4)
	want := []string{"message", "status", "message", "status"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}

	if err := chatSvc.DeleteSession(ctx, snap.ID); err != nil {
		t.Fatalf("DeleteSession err: %v", err)
	}
	if got := readEvents(t, scanner, 1); got[0] != "closed" {
		t.Fatalf("expected closed event, got %v", got)
	}
}

func TestEventsUnknownSession(t *testing.T) {
	srv, _ := setupServer(t)
	resp, err := http.Get(srv.URL + "/sessions/missing/events")
	if err != nil {
		t.Fatalf("request err: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestEventsKeepAlive(t *testing.T) {
	_, chatSvc := setupServer(t)
	snap, err := chatSvc.CreateSession(context.Background(), persona.DefaultID)
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}

	h := New(chatSvc)
	h.keepAlive = 5 * time.Millisecond
	r := chi.NewRouter()
	h.RegisterRoutes(r)

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/sessions/"+snap.ID+"/events", nil).WithContext(ctx)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if !strings.Contains(resp.Body.String(), ": keepalive") {
		t.Fatalf("expected keepalive comment, got %q", resp.Body.String())
	}
}
