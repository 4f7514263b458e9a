package entities

// User is the read model of a job-seeker account owned by the job-board core.
type User struct {
	ID       int64
	Email    string
	FullName *string
}

// TableName specifies the table name for User.
func (User) TableName() string {
	return "users"
}

// Employer is the read model of an employer account.
type Employer struct {
	ID          int64
	Email       string
	CompanyName *string
}

// TableName specifies the table name for Employer.
func (Employer) TableName() string {
	return "employers"
}

// Job is the read model of a job posting.
type Job struct {
	ID         int64
	EmployerID int64
	Title      string
}

// TableName specifies the table name for Job.
func (Job) TableName() string {
	return "jobs"
}

// ApplicationWithApplicant is an application joined with its applicant's account.
type ApplicationWithApplicant struct {
	ID             int64
	JobID          int64
	UserID         int64
	ApplicantEmail string
	ApplicantName  *string
}
