// Package directory reads jobs, applications and accounts owned by the job-board core.
package directory

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	domain "workify/services/conversation-api/internal/domain/conversation"
	"workify/services/conversation-api/internal/infrastructure/database/entities"
	"workify/services/conversation-api/internal/utils/platformerrors"
)

// DatabaseDirectory reads the core tables from the shared PostgreSQL database.
type DatabaseDirectory struct {
	db *gorm.DB
}

// NewDatabaseDirectory creates a directory backed by the core tables.
func NewDatabaseDirectory(db *gorm.DB) *DatabaseDirectory {
	return &DatabaseDirectory{db: db}
}

var (
	_ domain.Directory        = (*DatabaseDirectory)(nil)
	_ domain.IdentityResolver = (*DatabaseDirectory)(nil)
)

func (d *DatabaseDirectory) FindJob(ctx context.Context, id int64) (*domain.Job, error) {
	var row entities.Job
	if err := d.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		return nil, lookupError(ctx, err, domain.ErrJobNotFound, "find-job-error")
	}
	return &domain.Job{ID: row.ID, Title: row.Title}, nil
}

func (d *DatabaseDirectory) FindApplication(ctx context.Context, id int64) (*domain.Application, error) {
	var row entities.ApplicationWithApplicant
	err := applicationQuery(d.db.WithContext(ctx), id).Take(&row).Error
	if err != nil {
		return nil, lookupError(ctx, err, domain.ErrApplicationNotFound, "find-application-error")
	}
	return &domain.Application{
		ID:             row.ID,
		JobID:          row.JobID,
		ApplicantID:    row.UserID,
		ApplicantEmail: strings.ToLower(row.ApplicantEmail),
		ApplicantName:  deref(row.ApplicantName),
	}, nil
}

func applicationQuery(db *gorm.DB, id int64) *gorm.DB {
	return db.Table("applications").
		Select("applications.id, applications.job_id, applications.user_id, users.email AS applicant_email, users.full_name AS applicant_name").
		Joins("JOIN users ON users.id = applications.user_id").
		Where("applications.id = ?", id)
}

func (d *DatabaseDirectory) FindEmployer(ctx context.Context, id int64) (*domain.Employer, error) {
	var row entities.Employer
	if err := d.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		return nil, lookupError(ctx, err, domain.ErrEmployerNotFound, "find-employer-error")
	}
	return &domain.Employer{ID: row.ID, Email: strings.ToLower(row.Email), CompanyName: deref(row.CompanyName)}, nil
}

// ResolveIdentity matches the email case-insensitively against users or employers.
func (d *DatabaseDirectory) ResolveIdentity(ctx context.Context, senderType domain.SenderType, email string) (domain.Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	db := d.db.WithContext(ctx)

	switch senderType {
	case domain.SenderTypeUser:
		var row entities.User
		if err := db.Where("LOWER(email) = ?", email).Take(&row).Error; err != nil {
			return domain.Identity{}, lookupError(ctx, err, domain.ErrIdentityNotFound, "resolve-identity-error")
		}
		return domain.Identity{Type: domain.SenderTypeUser, ID: row.ID, Email: email, Name: deref(row.FullName)}, nil
	case domain.SenderTypeEmployer:
		var row entities.Employer
		if err := db.Where("LOWER(email) = ?", email).Take(&row).Error; err != nil {
			return domain.Identity{}, lookupError(ctx, err, domain.ErrIdentityNotFound, "resolve-identity-error")
		}
		return domain.Identity{Type: domain.SenderTypeEmployer, ID: row.ID, Email: email, Name: deref(row.CompanyName)}, nil
	default:
		return domain.Identity{}, domain.NewNotFound(ctx, platformerrors.LayerRepository, domain.ErrIdentityNotFound, nil)
	}
}

// Ping checks the database connection.
func (d *DatabaseDirectory) Ping(ctx context.Context) error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func lookupError(ctx context.Context, err error, sentinel error, code string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.NewNotFound(ctx, platformerrors.LayerRepository, sentinel, nil)
	}
	return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
		"directory lookup failed", err, code)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
