package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/gdugdh24/yuno-backend/internal/domain"
	"github.com/gdugdh24/yuno-backend/internal/repository"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const userColumns = `id, name, age, city, school, college, workplace, interests,
	latitude, longitude, created_at, updated_at`

// userRow mirrors the users table; interests need pq's array scanner.
type userRow struct {
	ID        int             `db:"id"`
	Name      string          `db:"name"`
	Age       sql.NullInt64   `db:"age"`
	City      sql.NullString  `db:"city"`
	School    sql.NullString  `db:"school"`
	College   sql.NullString  `db:"college"`
	Workplace sql.NullString  `db:"workplace"`
	Interests pq.StringArray  `db:"interests"`
	Latitude  sql.NullFloat64 `db:"latitude"`
	Longitude sql.NullFloat64 `db:"longitude"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
}

func (r userRow) toDomain() *domain.UserProfile {
	p := &domain.UserProfile{
		ID:        r.ID,
		Name:      r.Name,
		City:      nullString(r.City),
		School:    nullString(r.School),
		College:   nullString(r.College),
		Workplace: nullString(r.Workplace),
		Interests: []string(r.Interests),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if p.Interests == nil {
		p.Interests = []string{}
	}
	if r.Age.Valid {
		age := int(r.Age.Int64)
		p.Age = &age
	}
	if r.Latitude.Valid {
		p.Latitude = &r.Latitude.Float64
	}
	if r.Longitude.Valid {
		p.Longitude = &r.Longitude.Float64
	}
	return p
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

type profileRepository struct {
	db *sqlx.DB
}

func NewProfileRepository(db *sqlx.DB) repository.ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) Create(ctx context.Context, profile *domain.UserProfile) error {
	profile.Interests = domain.NormalizeInterests(profile.Interests)

	if profile.ID != 0 {
		query := `
			INSERT INTO users (id, name, age, city, school, college, workplace, interests, latitude, longitude)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING created_at, updated_at
		`
		return r.db.QueryRowContext(
			ctx, query,
			profile.ID, profile.Name, profile.Age, profile.City, profile.School,
			profile.College, profile.Workplace, pq.Array(profile.Interests),
			profile.Latitude, profile.Longitude,
		).Scan(&profile.CreatedAt, &profile.UpdatedAt)
	}

	query := `
		INSERT INTO users (name, age, city, school, college, workplace, interests, latitude, longitude)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`
	return r.db.QueryRowContext(
		ctx, query,
		profile.Name, profile.Age, profile.City, profile.School,
		profile.College, profile.Workplace, pq.Array(profile.Interests),
		profile.Latitude, profile.Longitude,
	).Scan(&profile.ID, &profile.CreatedAt, &profile.UpdatedAt)
}

func (r *profileRepository) GetByID(ctx context.Context, id int) (*domain.UserProfile, error) {
	var row userRow
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	err := r.db.GetContext(ctx, &row, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return row.toDomain(), nil
}

func (r *profileRepository) GetByIDs(ctx context.Context, ids []int) (map[int]*domain.UserProfile, error) {
	out := make(map[int]*domain.UserProfile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]int64, len(ids))
	for i, id := range ids {
		keys[i] = int64(id)
	}

	var rows []userRow
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ANY($1)`
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(keys)); err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row.toDomain()
	}
	return out, nil
}

func (r *profileRepository) Update(ctx context.Context, profile *domain.UserProfile) error {
	profile.Interests = domain.NormalizeInterests(profile.Interests)

	query := `
		UPDATE users
		SET name = $1, age = $2, city = $3, school = $4, college = $5, workplace = $6,
		    interests = $7, latitude = $8, longitude = $9,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $10
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(
		ctx, query,
		profile.Name, profile.Age, profile.City, profile.School, profile.College,
		profile.Workplace, pq.Array(profile.Interests), profile.Latitude, profile.Longitude,
		profile.ID,
	).Scan(&profile.CreatedAt, &profile.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrUserNotFound
	}
	return err
}

func (r *profileRepository) ListWithLocation(ctx context.Context) ([]*domain.UserProfile, error) {
	var rows []userRow
	query := `
		SELECT ` + userColumns + ` FROM users
		WHERE latitude IS NOT NULL AND longitude IS NOT NULL
		ORDER BY id
	`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, err
	}

	out := make([]*domain.UserProfile, 0, len(rows))
	for _, row := range rows {
		p := row.toDomain()
		if _, ok := p.Location(); ok {
			out = append(out, p)
		}
	}
	return out, nil
}
