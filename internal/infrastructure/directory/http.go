package directory

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	domain "workify/services/conversation-api/internal/domain/conversation"
	"workify/services/conversation-api/internal/utils/platformerrors"
)

// HTTPDirectory reads the core records through the job-board core's internal API.
type HTTPDirectory struct {
	httpClient *resty.Client
}

// NewHTTPDirectory creates a Resty-backed directory client. token is sent as X-Internal-Token.
func NewHTTPDirectory(baseURL, token string, timeout time.Duration) *HTTPDirectory {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Accept", "application/json").
		SetTimeout(timeout)
	if token != "" {
		client.SetHeader("X-Internal-Token", token)
	}
	return &HTTPDirectory{httpClient: client}
}

var (
	_ domain.Directory        = (*HTTPDirectory)(nil)
	_ domain.IdentityResolver = (*HTTPDirectory)(nil)
)

type jobResponse struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

type applicantResponse struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

type applicationResponse struct {
	ID        int64             `json:"id"`
	JobID     int64             `json:"job_id"`
	Applicant applicantResponse `json:"applicant"`
}

type employerResponse struct {
	ID          int64  `json:"id"`
	Email       string `json:"email"`
	CompanyName string `json:"company_name"`
}

type identityResponse struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (d *HTTPDirectory) FindJob(ctx context.Context, id int64) (*domain.Job, error) {
	var out jobResponse
	if err := d.get(ctx, "/internal/jobs/"+strconv.FormatInt(id, 10), nil, &out, domain.ErrJobNotFound); err != nil {
		return nil, err
	}
	return &domain.Job{ID: out.ID, Title: out.Title}, nil
}

func (d *HTTPDirectory) FindApplication(ctx context.Context, id int64) (*domain.Application, error) {
	var out applicationResponse
	if err := d.get(ctx, "/internal/applications/"+strconv.FormatInt(id, 10), nil, &out, domain.ErrApplicationNotFound); err != nil {
		return nil, err
	}
	return &domain.Application{
		ID:             out.ID,
		JobID:          out.JobID,
		ApplicantID:    out.Applicant.ID,
		ApplicantEmail: strings.ToLower(out.Applicant.Email),
		ApplicantName:  out.Applicant.FullName,
	}, nil
}

func (d *HTTPDirectory) FindEmployer(ctx context.Context, id int64) (*domain.Employer, error) {
	var out employerResponse
	if err := d.get(ctx, "/internal/employers/"+strconv.FormatInt(id, 10), nil, &out, domain.ErrEmployerNotFound); err != nil {
		return nil, err
	}
	return &domain.Employer{ID: out.ID, Email: strings.ToLower(out.Email), CompanyName: out.CompanyName}, nil
}

func (d *HTTPDirectory) ResolveIdentity(ctx context.Context, senderType domain.SenderType, email string) (domain.Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var out identityResponse
	query := map[string]string{"type": string(senderType), "email": email}
	if err := d.get(ctx, "/internal/identities", query, &out, domain.ErrIdentityNotFound); err != nil {
		return domain.Identity{}, err
	}
	return domain.Identity{Type: senderType, ID: out.ID, Email: email, Name: out.Name}, nil
}

// Ping calls the core health endpoint.
func (d *HTTPDirectory) Ping(ctx context.Context) error {
	resp, err := d.httpClient.R().SetContext(ctx).Get("/healthz")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("directory health check returned %d", resp.StatusCode())
	}
	return nil
}

func (d *HTTPDirectory) get(ctx context.Context, path string, query map[string]string, result any, notFound error) error {
	request := d.httpClient.R().
		SetContext(ctx).
		SetResult(result)
	if len(query) > 0 {
		request.SetQueryParams(query)
	}

	resp, err := request.Get(path)
	if err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeExternal,
			"directory request failed", err, "directory-unreachable")
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return domain.NewNotFound(ctx, platformerrors.LayerRepository, notFound, nil)
	case resp.IsError():
		return platformerrors.NewErrorWithContext(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeExternal,
			"directory returned an error", fmt.Errorf("directory api error: %s", resp.String()), "directory-error",
			map[string]any{"status": resp.StatusCode(), "path": path})
	}
	return nil
}
