package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campuskit/institute-api/internal/models"
)

const instituteColumns = `id, name, code, email, phone, institute_type, status,
	admin_name, admin_email, admin_phone, password_hash, max_semesters, created_at, updated_at`

// InstituteRepository handles persistence for tenant roots.
type InstituteRepository struct {
	db *sqlx.DB
}

// NewInstituteRepository creates a new repository instance.
func NewInstituteRepository(db *sqlx.DB) *InstituteRepository {
	return &InstituteRepository{db: db}
}

// FindByID returns an institute by id.
func (r *InstituteRepository) FindByID(ctx context.Context, id string) (*models.Institute, error) {
	query := fmt.Sprintf("SELECT %s FROM institutes WHERE id = $1", instituteColumns)
	var institute models.Institute
	if err := r.db.GetContext(ctx, &institute, query, id); err != nil {
		return nil, err
	}
	return &institute, nil
}

// FindByCode returns an institute by its uppercase code.
func (r *InstituteRepository) FindByCode(ctx context.Context, code string) (*models.Institute, error) {
	query := fmt.Sprintf("SELECT %s FROM institutes WHERE code = UPPER($1)", instituteColumns)
	var institute models.Institute
	if err := r.db.GetContext(ctx, &institute, query, code); err != nil {
		return nil, err
	}
	return &institute, nil
}

// FindByCodeAndAdminEmail returns the institute whose admin account matches
// the login pair. The contact email column never authenticates.
func (r *InstituteRepository) FindByCodeAndAdminEmail(ctx context.Context, code, adminEmail string) (*models.Institute, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM institutes WHERE code = UPPER($1) AND LOWER(admin_email) = LOWER($2)",
		instituteColumns)
	var institute models.Institute
	if err := r.db.GetContext(ctx, &institute, query, code, adminEmail); err != nil {
		return nil, err
	}
	return &institute, nil
}

// ExistsByCodeOrEmail checks global registration uniqueness.
func (r *InstituteRepository) ExistsByCodeOrEmail(ctx context.Context, code, email string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM institutes
		WHERE code = UPPER($1) OR LOWER(email) = LOWER($2))`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, code, email); err != nil {
		return false, fmt.Errorf("check institute uniqueness: %w", err)
	}
	return exists, nil
}

// Create persists a new institute.
func (r *InstituteRepository) Create(ctx context.Context, institute *models.Institute) error {
	if institute.ID == "" {
		institute.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if institute.CreatedAt.IsZero() {
		institute.CreatedAt = now
	}
	institute.UpdatedAt = now

	const query = `INSERT INTO institutes (id, name, code, email, phone, institute_type, status,
		admin_name, admin_email, admin_phone, password_hash, max_semesters, created_at, updated_at)
		VALUES (:id, :name, :code, :email, :phone, :institute_type, :status,
		:admin_name, :admin_email, :admin_phone, :password_hash, :max_semesters, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, institute); err != nil {
		return fmt.Errorf("create institute: %w", err)
	}
	return nil
}
