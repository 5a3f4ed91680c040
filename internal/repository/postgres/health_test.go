package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ignite/sendguard/internal/domain"
	"github.com/ignite/sendguard/internal/service/health"
	"github.com/lib/pq"
)

func setupTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	return db, mock, func() { db.Close() }
}

var mailboxCols = []string{
	"id", "email", "domain_id", "status", "sent_total", "bounced_total",
	"window_sent_count", "window_bounce_count", "window_start_at", "paused_reason", "last_bounce_at",
	"recovery_phase", "phase_entered_at", "clean_sends_since_phase", "phase_sent", "phase_bounces",
	"consecutive_pauses", "relapse_count", "resilience_score", "version", "created_at", "updated_at",
}

func mailboxRow(now time.Time, lastBounce interface{}) *sqlmock.Rows {
	return sqlmock.NewRows(mailboxCols).AddRow(
		"mb-1", "sales@acme.io", "dom-1", "paused", int64(120), int64(6),
		20, 5, now, "exceeded 5 bounces in current window", lastBounce,
		"paused", now, 0, 0, 0,
		1, 0, 90.0, int64(3), now, now,
	)
}

func TestHealthRepo_GetMailbox(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT (.+) FROM mailboxes WHERE id = \\$1").
		WithArgs("mb-1").
		WillReturnRows(mailboxRow(now, now))

	m, err := NewHealthRepo(db).GetMailbox(context.Background(), "mb-1")
	if err != nil {
		t.Fatalf("GetMailbox() error: %v", err)
	}
	if m.Status != domain.MailboxPaused || m.Recovery.Phase != domain.PhasePaused {
		t.Errorf("status = %s/%s, want paused/paused", m.Status, m.Recovery.Phase)
	}
	if m.WindowBounceCount != 5 || m.Version != 3 {
		t.Errorf("window bounces = %d version = %d", m.WindowBounceCount, m.Version)
	}
	if m.LastBounceAt == nil || !m.LastBounceAt.Equal(now) {
		t.Errorf("LastBounceAt = %v, want %v", m.LastBounceAt, now)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestHealthRepo_GetMailboxNotFound(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT (.+) FROM mailboxes WHERE email = \\$1").
		WithArgs("nobody@acme.io").
		WillReturnRows(sqlmock.NewRows(mailboxCols))

	_, err := NewHealthRepo(db).GetMailboxByEmail(context.Background(), "nobody@acme.io")
	if !errors.Is(err, health.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestHealthRepo_CreateMailboxConflict(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO mailboxes").
		WillReturnError(&pq.Error{Code: codeUniqueViolation})

	now := time.Now()
	err := NewHealthRepo(db).CreateMailbox(context.Background(), &domain.Mailbox{
		ID: "mb-1", Email: "sales@acme.io", DomainID: "dom-1", Status: domain.MailboxActive,
		WindowStartAt: now, Recovery: domain.NewRecoveryState(now), CreatedAt: now,
	})
	if !errors.Is(err, health.ErrConflict) {
		t.Errorf("error = %v, want ErrConflict", err)
	}
}

func TestHealthRepo_SaveMailboxBumpsVersion(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("UPDATE mailboxes SET").
		WillReturnResult(sqlmock.NewResult(0, 1))

	m := &domain.Mailbox{ID: "mb-1", Version: 7, Status: domain.MailboxActive}
	if err := NewHealthRepo(db).SaveMailbox(context.Background(), m); err != nil {
		t.Fatalf("SaveMailbox() error: %v", err)
	}
	if m.Version != 8 {
		t.Errorf("Version = %d, want 8", m.Version)
	}
}

func TestHealthRepo_SaveMailboxStaleOrMissing(t *testing.T) {
	tests := []struct {
		name   string
		exists bool
		want   error
	}{
		{"stale version", true, health.ErrStaleWrite},
		{"deleted row", false, health.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, cleanup := setupTestDB(t)
			defer cleanup()

			mock.ExpectExec("UPDATE mailboxes SET").
				WillReturnResult(sqlmock.NewResult(0, 0))
			mock.ExpectQuery("SELECT EXISTS").
				WithArgs("mb-1").
				WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(tt.exists))

			m := &domain.Mailbox{ID: "mb-1", Version: 2}
			err := NewHealthRepo(db).SaveMailbox(context.Background(), m)
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
			if m.Version != 2 {
				t.Errorf("Version changed on failed write: %d", m.Version)
			}
		})
	}
}

func TestHealthRepo_SaveDomainStale(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("UPDATE sending_domains SET").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS\\(SELECT 1 FROM sending_domains").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	err := NewHealthRepo(db).SaveDomain(context.Background(), &domain.SendingDomain{ID: "dom-1", Version: 1})
	if !errors.Is(err, health.ErrStaleWrite) {
		t.Errorf("error = %v, want ErrStaleWrite", err)
	}
}

func TestHealthRepo_PauseActiveMailboxes(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery("UPDATE mailboxes SET (.+) WHERE domain_id = \\$1 AND status = 'active'").
		WithArgs("dom-1", "domain paused", at, 10.0).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("mb-3").AddRow("mb-1"))

	ids, err := NewHealthRepo(db).PauseActiveMailboxes(context.Background(), "dom-1", health.CascadePause{
		Reason: "domain paused", At: at, ResiliencePenalty: 10,
	})
	if err != nil {
		t.Fatalf("PauseActiveMailboxes() error: %v", err)
	}
	if len(ids) != 2 || ids[0] != "mb-1" || ids[1] != "mb-3" {
		t.Errorf("ids = %v, want [mb-1 mb-3]", ids)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestHealthRepo_CountUnhealthyMailboxes(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM mailboxes").
		WithArgs("dom-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	n, err := NewHealthRepo(db).CountUnhealthyMailboxes(context.Background(), "dom-1")
	if err != nil {
		t.Fatalf("CountUnhealthyMailboxes() error: %v", err)
	}
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}
}

func TestHealthRepo_ListRecoveringMailboxes(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	now := time.Now().UTC()
	mock.ExpectQuery("FROM mailboxes WHERE recovery_phase <> 'healthy'").
		WillReturnRows(mailboxRow(now, nil))

	out, err := NewHealthRepo(db).ListRecoveringMailboxes(context.Background())
	if err != nil {
		t.Fatalf("ListRecoveringMailboxes() error: %v", err)
	}
	if len(out) != 1 || out[0].LastBounceAt != nil {
		t.Errorf("got %+v", out)
	}
}
