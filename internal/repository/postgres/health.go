package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/ignite/sendguard/internal/domain"
	"github.com/ignite/sendguard/internal/service/health"
)

// HealthRepo implements health.Repository and recovery.Repository against PostgreSQL.
type HealthRepo struct{ db *sql.DB }

// NewHealthRepo creates a Postgres-backed mailbox and domain repository.
func NewHealthRepo(db *sql.DB) *HealthRepo { return &HealthRepo{db: db} }

const mailboxColumns = `id, email, domain_id, status, sent_total, bounced_total,
	window_sent_count, window_bounce_count, window_start_at, paused_reason, last_bounce_at,
	recovery_phase, phase_entered_at, clean_sends_since_phase, phase_sent, phase_bounces,
	consecutive_pauses, relapse_count, resilience_score, version, created_at, updated_at`

const domainColumns = `id, name, status, warning_count, paused_reason, last_bounce_at,
	recovery_phase, phase_entered_at, clean_sends_since_phase, phase_sent, phase_bounces,
	consecutive_pauses, relapse_count, resilience_score, version, created_at, updated_at`

func scanMailbox(row rowScanner) (*domain.Mailbox, error) {
	var (
		m          domain.Mailbox
		lastBounce sql.NullTime
	)
	err := row.Scan(
		&m.ID, &m.Email, &m.DomainID, &m.Status, &m.SentTotal, &m.BouncedTotal,
		&m.WindowSentCount, &m.WindowBounceCount, &m.WindowStartAt, &m.PausedReason, &lastBounce,
		&m.Recovery.Phase, &m.Recovery.PhaseEnteredAt, &m.Recovery.CleanSendsSincePhase,
		&m.Recovery.PhaseSent, &m.Recovery.PhaseBounces, &m.Recovery.ConsecutivePauses,
		&m.Recovery.RelapseCount, &m.Recovery.ResilienceScore, &m.Version, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.LastBounceAt = timePtr(lastBounce)
	return &m, nil
}

func scanDomain(row rowScanner) (*domain.SendingDomain, error) {
	var (
		d          domain.SendingDomain
		lastBounce sql.NullTime
	)
	err := row.Scan(
		&d.ID, &d.Name, &d.Status, &d.WarningCount, &d.PausedReason, &lastBounce,
		&d.Recovery.Phase, &d.Recovery.PhaseEnteredAt, &d.Recovery.CleanSendsSincePhase,
		&d.Recovery.PhaseSent, &d.Recovery.PhaseBounces, &d.Recovery.ConsecutivePauses,
		&d.Recovery.RelapseCount, &d.Recovery.ResilienceScore, &d.Version, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.LastBounceAt = timePtr(lastBounce)
	return &d, nil
}

func (r *HealthRepo) getMailbox(ctx context.Context, where string, arg any) (*domain.Mailbox, error) {
	m, err := scanMailbox(r.db.QueryRowContext(ctx,
		`SELECT `+mailboxColumns+` FROM mailboxes WHERE `+where+` = $1`, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, health.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get mailbox: %w", err)
	}
	return m, nil
}

func (r *HealthRepo) GetMailbox(ctx context.Context, id string) (*domain.Mailbox, error) {
	return r.getMailbox(ctx, "id", id)
}

func (r *HealthRepo) GetMailboxByEmail(ctx context.Context, email string) (*domain.Mailbox, error) {
	return r.getMailbox(ctx, "email", email)
}

func (r *HealthRepo) CreateMailbox(ctx context.Context, m *domain.Mailbox) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO mailboxes (id, email, domain_id, status, window_start_at,
			recovery_phase, phase_entered_at, resilience_score, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, $9, $9)
	`, m.ID, m.Email, m.DomainID, m.Status, m.WindowStartAt,
		m.Recovery.Phase, m.Recovery.PhaseEnteredAt, m.Recovery.ResilienceScore, m.CreatedAt)
	switch {
	case isUniqueViolation(err):
		return health.ErrConflict
	case isForeignKeyViolation(err):
		return health.ErrNotFound
	case err != nil:
		return fmt.Errorf("create mailbox: %w", err)
	}
	return nil
}

// SaveMailbox is a compare-and-swap on version.
func (r *HealthRepo) SaveMailbox(ctx context.Context, m *domain.Mailbox) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE mailboxes SET
			status = $3, sent_total = $4, bounced_total = $5,
			window_sent_count = $6, window_bounce_count = $7, window_start_at = $8,
			paused_reason = $9, last_bounce_at = $10,
			recovery_phase = $11, phase_entered_at = $12, clean_sends_since_phase = $13,
			phase_sent = $14, phase_bounces = $15, consecutive_pauses = $16,
			relapse_count = $17, resilience_score = $18,
			version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2
	`, m.ID, m.Version,
		m.Status, m.SentTotal, m.BouncedTotal,
		m.WindowSentCount, m.WindowBounceCount, m.WindowStartAt,
		m.PausedReason, nullTime(m.LastBounceAt),
		m.Recovery.Phase, m.Recovery.PhaseEnteredAt, m.Recovery.CleanSendsSincePhase,
		m.Recovery.PhaseSent, m.Recovery.PhaseBounces, m.Recovery.ConsecutivePauses,
		m.Recovery.RelapseCount, m.Recovery.ResilienceScore,
	)
	if err != nil {
		return fmt.Errorf("save mailbox: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return r.missingOrStale(ctx, "mailboxes", m.ID)
	}
	m.Version++
	return nil
}

func (r *HealthRepo) GetDomain(ctx context.Context, id string) (*domain.SendingDomain, error) {
	return r.getDomain(ctx, "id", id)
}

func (r *HealthRepo) GetDomainByName(ctx context.Context, name string) (*domain.SendingDomain, error) {
	return r.getDomain(ctx, "name", name)
}

func (r *HealthRepo) getDomain(ctx context.Context, where string, arg any) (*domain.SendingDomain, error) {
	d, err := scanDomain(r.db.QueryRowContext(ctx,
		`SELECT `+domainColumns+` FROM sending_domains WHERE `+where+` = $1`, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, health.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get domain: %w", err)
	}
	return d, nil
}

func (r *HealthRepo) CreateDomain(ctx context.Context, d *domain.SendingDomain) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sending_domains (id, name, status, recovery_phase, phase_entered_at,
			resilience_score, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $7)
	`, d.ID, d.Name, d.Status, d.Recovery.Phase, d.Recovery.PhaseEnteredAt, d.Recovery.ResilienceScore, d.CreatedAt)
	if isUniqueViolation(err) {
		return health.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("create domain: %w", err)
	}
	return nil
}

// SaveDomain is a compare-and-swap on version.
func (r *HealthRepo) SaveDomain(ctx context.Context, d *domain.SendingDomain) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sending_domains SET
			status = $3, warning_count = $4, paused_reason = $5, last_bounce_at = $6,
			recovery_phase = $7, phase_entered_at = $8, clean_sends_since_phase = $9,
			phase_sent = $10, phase_bounces = $11, consecutive_pauses = $12,
			relapse_count = $13, resilience_score = $14,
			version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2
	`, d.ID, d.Version,
		d.Status, d.WarningCount, d.PausedReason, nullTime(d.LastBounceAt),
		d.Recovery.Phase, d.Recovery.PhaseEnteredAt, d.Recovery.CleanSendsSincePhase,
		d.Recovery.PhaseSent, d.Recovery.PhaseBounces, d.Recovery.ConsecutivePauses,
		d.Recovery.RelapseCount, d.Recovery.ResilienceScore,
	)
	if err != nil {
		return fmt.Errorf("save domain: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return r.missingOrStale(ctx, "sending_domains", d.ID)
	}
	d.Version++
	return nil
}

// missingOrStale explains a zero-row CAS update.
func (r *HealthRepo) missingOrStale(ctx context.Context, table, id string) error {
	var exists bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM `+table+` WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return fmt.Errorf("check %s: %w", table, err)
	}
	if !exists {
		return health.ErrNotFound
	}
	return health.ErrStaleWrite
}

func (r *HealthRepo) CountUnhealthyMailboxes(ctx context.Context, domainID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM mailboxes
		WHERE domain_id = $1 AND status NOT IN ('active', 'warming')
	`, domainID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unhealthy mailboxes: %w", err)
	}
	return n, nil
}

// PauseActiveMailboxes runs the whole cascade as one UPDATE ... RETURNING.
func (r *HealthRepo) PauseActiveMailboxes(ctx context.Context, domainID string, p health.CascadePause) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		UPDATE mailboxes SET
			status = 'paused', paused_reason = $2,
			recovery_phase = 'paused', phase_entered_at = $3,
			clean_sends_since_phase = 0, phase_sent = 0, phase_bounces = 0,
			consecutive_pauses = consecutive_pauses + 1,
			resilience_score = GREATEST(0, resilience_score - $4),
			version = version + 1, updated_at = $3
		WHERE domain_id = $1 AND status = 'active'
		RETURNING id
	`, domainID, p.Reason, p.At, p.ResiliencePenalty)
	if err != nil {
		return nil, fmt.Errorf("cascade pause: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan cascaded id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cascade pause: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *HealthRepo) ListRecoveringMailboxes(ctx context.Context) ([]domain.Mailbox, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+mailboxColumns+` FROM mailboxes WHERE recovery_phase <> 'healthy' ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list recovering mailboxes: %w", err)
	}
	defer rows.Close()

	var out []domain.Mailbox
	for rows.Next() {
		m, err := scanMailbox(rows)
		if err != nil {
			return nil, fmt.Errorf("scan mailbox: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (r *HealthRepo) ListRecoveringDomains(ctx context.Context) ([]domain.SendingDomain, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+domainColumns+` FROM sending_domains WHERE recovery_phase <> 'healthy' ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list recovering domains: %w", err)
	}
	defer rows.Close()

	var out []domain.SendingDomain
	for rows.Next() {
		d, err := scanDomain(rows)
		if err != nil {
			return nil, fmt.Errorf("scan domain: %w", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}
