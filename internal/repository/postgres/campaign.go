package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/sendguard/internal/domain"
	"github.com/ignite/sendguard/internal/service/campaign"
	"github.com/lib/pq"
)

// CampaignRepo implements campaign.Repository and gate.Repository against PostgreSQL.
type CampaignRepo struct{ db *sql.DB }

// NewCampaignRepo creates a Postgres-backed campaign repository.
func NewCampaignRepo(db *sql.DB) *CampaignRepo { return &CampaignRepo{db: db} }

func (r *CampaignRepo) GetCampaign(ctx context.Context, id string) (*domain.Campaign, error) {
	c := &domain.Campaign{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, status, created_at, updated_at
		FROM campaigns
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, campaign.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT mailbox_id FROM campaign_mailboxes
		WHERE campaign_id = $1
		ORDER BY mailbox_id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("get campaign mailboxes: %w", err)
	}
	defer rows.Close()

	c.MailboxIDs = []string{}
	for rows.Next() {
		var mid string
		if err := rows.Scan(&mid); err != nil {
			return nil, fmt.Errorf("scan campaign mailbox: %w", err)
		}
		c.MailboxIDs = append(c.MailboxIDs, mid)
	}
	return c, rows.Err()
}

func (r *CampaignRepo) ListCampaigns(ctx context.Context, f campaign.ListFilter) ([]domain.Campaign, int, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	where := ""
	args := []interface{}{}
	idx := 1
	if f.Status != "" {
		where = fmt.Sprintf(" WHERE status = $%d", idx)
		args = append(args, f.Status)
		idx++
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM campaigns`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count campaigns: %w", err)
	}

	q := `SELECT id, name, status, created_at, updated_at FROM campaigns` + where +
		fmt.Sprintf(" ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		var c domain.Campaign
		if err := rows.Scan(&c.ID, &c.Name, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan campaign: %w", err)
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func (r *CampaignRepo) CreateCampaign(ctx context.Context, c *domain.Campaign) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO campaigns (id, name, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, c.ID, c.Name, c.Status, c.CreatedAt, c.UpdatedAt)
	if isUniqueViolation(err) {
		return campaign.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("create campaign: %w", err)
	}
	return nil
}

func (r *CampaignRepo) UpdateCampaignStatus(ctx context.Context, id string, status domain.CampaignStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns SET status = $1, updated_at = NOW()
		WHERE id = $2
	`, status, id)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return campaign.ErrNotFound
	}
	return nil
}

// LinkMailboxes inserts all links in one statement; a foreign key failure
// means the campaign or one of the mailboxes is missing.
func (r *CampaignRepo) LinkMailboxes(ctx context.Context, campaignID string, mailboxIDs []string) error {
	if len(mailboxIDs) == 0 {
		var exists bool
		if err := r.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM campaigns WHERE id = $1)`, campaignID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("check campaign: %w", err)
		}
		if !exists {
			return campaign.ErrNotFound
		}
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO campaign_mailboxes (campaign_id, mailbox_id)
		SELECT $1, unnest($2::text[])
		ON CONFLICT DO NOTHING
	`, campaignID, pq.Array(mailboxIDs))
	if isForeignKeyViolation(err) {
		return campaign.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("link mailboxes: %w", err)
	}
	return nil
}

// CountQualifyingMailboxes counts linked mailboxes that are active on a
// healthy domain.
func (r *CampaignRepo) CountQualifyingMailboxes(ctx context.Context, campaignID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM campaign_mailboxes cm
		JOIN mailboxes m ON m.id = cm.mailbox_id
		JOIN sending_domains d ON d.id = m.domain_id
		WHERE cm.campaign_id = $1 AND m.status = 'active' AND d.status = 'healthy'
	`, campaignID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count qualifying mailboxes: %w", err)
	}
	return n, nil
}

func (r *CampaignRepo) CountAllQualifyingMailboxes(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM mailboxes m
		JOIN sending_domains d ON d.id = m.domain_id
		WHERE m.status = 'active' AND d.status = 'healthy'
	`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count qualifying mailboxes: %w", err)
	}
	return n, nil
}
