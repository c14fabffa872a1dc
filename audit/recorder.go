package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Log is the best-effort recorder handed to the auth service and the
// organisation manager. Every method swallows its own errors after logging.
type Log struct {
	repo    Repo
	nowTime func() time.Time
}

// LogOption modifies a Log during construction.
type LogOption func(*Log)

// WithLogNowTime sets the now time function (primarily for testing)
func WithLogNowTime(nowFunc func() time.Time) LogOption {
	return func(l *Log) {
		l.nowTime = nowFunc
	}
}

func NewLog(repo Repo, options ...LogOption) *Log {
	l := &Log{
		repo:    repo,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(l)
	}
	return l
}

func (l *Log) RecordLogin(ctx context.Context, sessionID, userID string) {
	l.record(ctx, Event{Kind: KindLogin, SessionID: sessionID, UserID: userID})
}

func (l *Log) RecordLogout(ctx context.Context, sessionID, userID string) {
	l.record(ctx, Event{Kind: KindLogout, SessionID: sessionID, UserID: userID})
}

func (l *Log) RecordRefresh(ctx context.Context, sessionID, userID string) {
	l.record(ctx, Event{Kind: KindRefresh, SessionID: sessionID, UserID: userID})
}

func (l *Log) RecordSwitch(ctx context.Context, sessionID, userID, fromOrgID, toOrgID string) {
	l.record(ctx, Event{
		Kind:      KindOrgSwitch,
		SessionID: sessionID,
		UserID:    userID,
		FromOrgID: fromOrgID,
		ToOrgID:   toOrgID,
	})
}

func (l *Log) RecordCallbackFailure(ctx context.Context, sessionID, detail string) {
	l.record(ctx, Event{Kind: KindCallbackFailure, SessionID: sessionID, Detail: detail})
}

// List exposes the stored events for the security-log screen.
func (l *Log) List(ctx context.Context, limit int) ([]Event, error) {
	return l.repo.List(ctx, limit)
}

func (l *Log) record(ctx context.Context, event Event) {
	event.ID = uuid.New().String()
	event.At = l.nowTime()
	if err := l.repo.Insert(ctx, &event); err != nil {
		log.Warn().Str("kind", string(event.Kind)).Err(err).Msg("audit event dropped")
	}
}
