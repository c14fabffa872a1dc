package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/platformedge/gateway/auth"
	"github.com/platformedge/gateway/sessions"
)

func saveSessionExpiring(t *testing.T, repo sessions.Repo, sessionID string, expiry time.Time) {
	t.Helper()
	require.NoError(t, repo.Save(context.Background(), sessionID, &sessions.Session{
		ID:          sessionID,
		AccessToken: "access-token",
		Expiry:      expiry,
	}))
}

func TestExtenderExtendsActiveSessions(t *testing.T) {
	repo := sessions.NewInMemoryRepo()
	originalExpiry := time.Now().Add(time.Minute)
	saveSessionExpiring(t, repo, "active-session", originalExpiry)
	saveSessionExpiring(t, repo, "idle-session", originalExpiry)

	extender := auth.NewExtender(repo, 5*time.Millisecond, time.Hour)
	defer extender.Stop()
	go extender.Run(context.Background())

	extender.Activity("active-session")

	require.Eventually(t, func() bool {
		session, err := repo.Load(context.Background(), "active-session")
		if err != nil {
			return false
		}
		return session.Expiry.After(originalExpiry)
	}, time.Second, 5*time.Millisecond)

	// Sessions without activity are left alone.
	idle, err := repo.Load(context.Background(), "idle-session")
	require.NoError(t, err)
	require.Equal(t, originalExpiry, idle.Expiry)
}

func TestExtenderForgetCancelsPendingExtension(t *testing.T) {
	repo := sessions.NewInMemoryRepo()
	originalExpiry := time.Now().Add(time.Minute)
	saveSessionExpiring(t, repo, "session-1", originalExpiry)

	extender := auth.NewExtender(repo, 5*time.Millisecond, time.Hour)
	defer extender.Stop()

	extender.Activity("session-1")
	extender.Forget("session-1")

	done := make(chan struct{})
	go func() {
		extender.Run(context.Background())
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	extender.Stop()
	<-done

	session, err := repo.Load(context.Background(), "session-1")
	require.NoError(t, err)
	require.Equal(t, originalExpiry, session.Expiry)
}

func TestExtenderStopIsIdempotentAndTerminatesRun(t *testing.T) {
	repo := sessions.NewInMemoryRepo()
	extender := auth.NewExtender(repo, time.Hour, time.Hour)

	done := make(chan struct{})
	go func() {
		extender.Run(context.Background())
		close(done)
	}()

	extender.Stop()
	extender.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not terminate after Stop")
	}
}

func TestExtenderHonoursContextCancellation(t *testing.T) {
	repo := sessions.NewInMemoryRepo()
	extender := auth.NewExtender(repo, time.Hour, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		extender.Run(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not terminate after context cancellation")
	}
}
