package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/sendguard/internal/domain"
	"github.com/ignite/sendguard/internal/service/routing"
)

// RoutingRepo implements routing.Repository against PostgreSQL.
type RoutingRepo struct{ db *sql.DB }

// NewRoutingRepo creates a Postgres-backed routing rule repository.
func NewRoutingRepo(db *sql.DB) *RoutingRepo { return &RoutingRepo{db: db} }

func (r *RoutingRepo) ListRules(ctx context.Context) ([]domain.RoutingRule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, persona, min_score, target_campaign_id, priority, seq, created_at
		FROM routing_rules
		ORDER BY priority DESC, seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var out []domain.RoutingRule
	for rows.Next() {
		var rule domain.RoutingRule
		if err := rows.Scan(&rule.ID, &rule.Persona, &rule.MinScore, &rule.TargetCampaignID,
			&rule.Priority, &rule.Seq, &rule.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

// CreateRule takes seq from the BIGSERIAL column.
func (r *RoutingRepo) CreateRule(ctx context.Context, rule *domain.RoutingRule) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO routing_rules (id, persona, min_score, target_campaign_id, priority, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING seq
	`, rule.ID, rule.Persona, rule.MinScore, rule.TargetCampaignID, rule.Priority, rule.CreatedAt,
	).Scan(&rule.Seq)
	if err != nil {
		return fmt.Errorf("create rule: %w", err)
	}
	return nil
}

func (r *RoutingRepo) DeleteRule(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM routing_rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return routing.ErrNotFound
	}
	return nil
}
