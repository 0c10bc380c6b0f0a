package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/xicom-labs/presales-bot/models"
)

// Store is the durable lead archive. Sessions live in Redis; completed
// leads additionally land here so they outlive the session TTL.
type Store struct {
	DB *sql.DB
}

// NewWithDSN opens and pings a Postgres connection.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &Store{DB: db}, nil
}

// SaveLead archives one completed lead snapshot.
func (s *Store) SaveLead(ctx context.Context, sessionID string, lead models.Lead) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO leads (
			session_id, project_type, business_goal, technology, timeline,
			budget, name, email, company, phone, lead_type, completed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		sessionID, lead.ProjectType, lead.BusinessGoal, lead.Technology, lead.Timeline,
		lead.Budget, lead.Name, lead.Email, lead.Company, lead.Phone, string(lead.LeadType), lead.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting lead: %w", err)
	}
	return nil
}

// ArchivedLead is a lead row joined with its session id.
type ArchivedLead struct {
	SessionID string      `json:"session_id"`
	Lead      models.Lead `json:"lead"`
}

// ListLeads returns archived leads newest first.
func (s *Store) ListLeads(ctx context.Context, limit, offset int) ([]ArchivedLead, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT session_id, project_type, business_goal, technology, timeline,
		       budget, name, email, company, phone, lead_type, completed_at
		FROM leads
		ORDER BY completed_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("querying leads: %w", err)
	}
	defer rows.Close()

	var out []ArchivedLead
	for rows.Next() {
		var a ArchivedLead
		var leadType string
		var completedAt time.Time
		if err := rows.Scan(
			&a.SessionID, &a.Lead.ProjectType, &a.Lead.BusinessGoal, &a.Lead.Technology,
			&a.Lead.Timeline, &a.Lead.Budget, &a.Lead.Name, &a.Lead.Email,
			&a.Lead.Company, &a.Lead.Phone, &leadType, &completedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning lead: %w", err)
		}
		a.Lead.LeadType = models.LeadType(leadType)
		a.Lead.CompletedAt = completedAt
		out = append(out, a)
	}
	return out, rows.Err()
}
