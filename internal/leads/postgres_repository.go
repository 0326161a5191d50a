package leads

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type db interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
}

// PostgresRepository stores leads in the relational database.
type PostgresRepository struct {
	db db
}

// NewPostgresRepository initializes a repo backed by a pgxpool.Pool (or any
// pool-shaped value, such as pgxmock in tests).
func NewPostgresRepository(pool db) *PostgresRepository {
	if pool == nil {
		panic("leads: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

const leadColumns = `id::text, name, phone, COALESCE(email, ''), COALESCE(zip_code, ''), COALESCE(city, ''),
		COALESCE(state, ''), source, COALESCE(ip_address, ''), COALESCE(user_agent, ''), COALESCE(notes, ''), created_at`

// Create inserts a new row.
func (r *PostgresRepository) Create(ctx context.Context, lead *Lead) (*Lead, error) {
	id := uuid.New()
	query := `
		INSERT INTO leads (id, name, phone, email, zip_code, city, state, source, ip_address, user_agent, notes)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), $8, $9, $10, $11)
		RETURNING created_at
	`
	var createdAt time.Time
	if err := r.db.QueryRow(ctx, query,
		id,
		lead.Name,
		lead.Phone,
		lead.Email,
		lead.ZipCode,
		lead.City,
		lead.State,
		lead.Source,
		lead.IPAddress,
		lead.UserAgent,
		lead.Notes,
	).Scan(&createdAt); err != nil {
		return nil, fmt.Errorf("leads: insert failed: %w", err)
	}

	out := *lead
	out.ID = id.String()
	out.CreatedAt = createdAt
	return &out, nil
}

// GetByID fetches a single lead.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Lead, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrLeadNotFound
	}
	query := `SELECT ` + leadColumns + ` FROM leads WHERE id = $1`
	lead, err := scanLead(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLeadNotFound
		}
		return nil, fmt.Errorf("leads: select failed: %w", err)
	}
	return lead, nil
}

// List returns leads newest first, optionally restricted to one state.
func (r *PostgresRepository) List(ctx context.Context, filter ListFilter) ([]*Lead, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	query := `SELECT ` + leadColumns + ` FROM leads
		WHERE ($1 = '' OR state ILIKE $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`
	rows, err := r.db.Query(ctx, query, filter.State, filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("leads: list failed: %w", err)
	}
	defer rows.Close()

	out := []*Lead{}
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("leads: scan failed: %w", err)
		}
		out = append(out, lead)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("leads: list failed: %w", err)
	}
	return out, nil
}

// Ping checks connectivity for the health endpoint.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func scanLead(row pgx.Row) (*Lead, error) {
	var (
		lead Lead
		id   uuid.UUID
	)
	if err := row.Scan(
		&id,
		&lead.Name,
		&lead.Phone,
		&lead.Email,
		&lead.ZipCode,
		&lead.City,
		&lead.State,
		&lead.Source,
		&lead.IPAddress,
		&lead.UserAgent,
		&lead.Notes,
		&lead.CreatedAt,
	); err != nil {
		return nil, err
	}
	lead.ID = id.String()
	return &lead, nil
}
