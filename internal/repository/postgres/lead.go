package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ignite/sendguard/internal/domain"
	"github.com/ignite/sendguard/internal/service/lead"
)

// LeadRepo implements lead.Repository against PostgreSQL.
type LeadRepo struct{ db *sql.DB }

// NewLeadRepo creates a Postgres-backed lead repository.
func NewLeadRepo(db *sql.DB) *LeadRepo { return &LeadRepo{db: db} }

const leadColumns = `id, email, persona, lead_score, source, status,
	assigned_campaign_id, health_state, activated_at, gate_checked_at, created_at, updated_at`

func scanLead(row rowScanner) (*domain.Lead, error) {
	var (
		l         domain.Lead
		campaign  sql.NullString
		activated sql.NullTime
		checked   sql.NullTime
	)
	if err := row.Scan(&l.ID, &l.Email, &l.Persona, &l.Score, &l.Source, &l.Status,
		&campaign, &l.HealthState, &activated, &checked, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	if campaign.Valid {
		l.AssignedCampaignID = &campaign.String
	}
	l.ActivatedAt = timePtr(activated)
	l.GateCheckedAt = timePtr(checked)
	return &l, nil
}

func (r *LeadRepo) CreateLead(ctx context.Context, l *domain.Lead) error {
	var campaignID sql.NullString
	if l.AssignedCampaignID != nil {
		campaignID = sql.NullString{String: *l.AssignedCampaignID, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO leads (id, email, persona, lead_score, source, status,
			assigned_campaign_id, health_state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, l.ID, l.Email, l.Persona, l.Score, l.Source, l.Status,
		campaignID, l.HealthState, l.CreatedAt, l.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create lead: %w", err)
	}
	return nil
}

func (r *LeadRepo) GetLead(ctx context.Context, id string) (*domain.Lead, error) {
	l, err := scanLead(r.db.QueryRowContext(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, lead.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get lead: %w", err)
	}
	return l, nil
}

func (r *LeadRepo) ListReadyLeads(ctx context.Context, limit int) ([]domain.Lead, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE status = 'held' AND assigned_campaign_id IS NOT NULL AND health_state = 'healthy'
		ORDER BY gate_checked_at NULLS FIRST, created_at, id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list ready leads: %w", err)
	}
	defer rows.Close()

	var out []domain.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

// ActivateLead only flips held leads, so two processors racing on the same
// lead activate it once.
func (r *LeadRepo) ActivateLead(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE leads SET status = 'active', activated_at = $2, updated_at = $2
		WHERE id = $1 AND status = 'held'
	`, id, at)
	if err != nil {
		return false, fmt.Errorf("activate lead: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return true, nil
	}
	var exists bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM leads WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("check lead: %w", err)
	}
	if !exists {
		return false, lead.ErrNotFound
	}
	return false, nil
}

// DeferLead leaves non-held leads untouched; a lead activated in between
// keeps its state.
func (r *LeadRepo) DeferLead(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE leads SET gate_checked_at = $2
		WHERE id = $1 AND status = 'held'
	`, id, at)
	if err != nil {
		return fmt.Errorf("defer lead: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	var exists bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM leads WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return fmt.Errorf("check lead: %w", err)
	}
	if !exists {
		return lead.ErrNotFound
	}
	return nil
}
