package memory

import (
	"context"
	"strings"
	"sync"

	domain "workify/services/conversation-api/internal/domain/conversation"
	"workify/services/conversation-api/internal/utils/platformerrors"
)

// Directory is an in-process stand-in for the job-board core records.
type Directory struct {
	mu           sync.RWMutex
	jobs         map[int64]domain.Job
	applications map[int64]domain.Application
	employers    map[int64]domain.Employer
	users        map[string]domain.Identity
}

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return &Directory{
		jobs:         make(map[int64]domain.Job),
		applications: make(map[int64]domain.Application),
		employers:    make(map[int64]domain.Employer),
		users:        make(map[string]domain.Identity),
	}
}

var (
	_ domain.Directory        = (*Directory)(nil)
	_ domain.IdentityResolver = (*Directory)(nil)
)

// AddJob registers a job posting.
func (d *Directory) AddJob(job domain.Job) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.jobs[job.ID] = job
}

// AddEmployer registers an employer account.
func (d *Directory) AddEmployer(employer domain.Employer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	employer.Email = normalizeEmail(employer.Email)
	d.employers[employer.ID] = employer
}

// AddUser registers a job-seeker account.
func (d *Directory) AddUser(id int64, email, name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	email = normalizeEmail(email)
	d.users[email] = domain.Identity{Type: domain.SenderTypeUser, ID: id, Email: email, Name: name}
}

// AddApplication registers an application. The applicant must have been added with AddUser.
func (d *Directory) AddApplication(application domain.Application) {
	d.mu.Lock()
	defer d.mu.Unlock()
	application.ApplicantEmail = normalizeEmail(application.ApplicantEmail)
	d.applications[application.ID] = application
}

func (d *Directory) FindJob(ctx context.Context, id int64) (*domain.Job, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	job, ok := d.jobs[id]
	if !ok {
		return nil, domain.NewNotFound(ctx, platformerrors.LayerRepository, domain.ErrJobNotFound, nil)
	}
	return &job, nil
}

func (d *Directory) FindApplication(ctx context.Context, id int64) (*domain.Application, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	application, ok := d.applications[id]
	if !ok {
		return nil, domain.NewNotFound(ctx, platformerrors.LayerRepository, domain.ErrApplicationNotFound, nil)
	}
	return &application, nil
}

func (d *Directory) FindEmployer(ctx context.Context, id int64) (*domain.Employer, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	employer, ok := d.employers[id]
	if !ok {
		return nil, domain.NewNotFound(ctx, platformerrors.LayerRepository, domain.ErrEmployerNotFound, nil)
	}
	return &employer, nil
}

func (d *Directory) ResolveIdentity(ctx context.Context, senderType domain.SenderType, email string) (domain.Identity, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	email = normalizeEmail(email)
	switch senderType {
	case domain.SenderTypeUser:
		if identity, ok := d.users[email]; ok {
			return identity, nil
		}
	case domain.SenderTypeEmployer:
		for _, employer := range d.employers {
			if employer.Email == email {
				return domain.Identity{Type: domain.SenderTypeEmployer, ID: employer.ID, Email: employer.Email, Name: employer.CompanyName}, nil
			}
		}
	}
	return domain.Identity{}, domain.NewNotFound(ctx, platformerrors.LayerRepository, domain.ErrIdentityNotFound, nil)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
