// internal/models/application.go
package models

import "time"

type LoanType string

const (
	LoanTypePersonal LoanType = "personal"
	LoanTypeHome     LoanType = "home"
	LoanTypeAuto     LoanType = "auto"
	LoanTypeBusiness LoanType = "business"
	LoanTypeStudent  LoanType = "student"
)

var LoanTypes = []LoanType{LoanTypePersonal, LoanTypeHome, LoanTypeAuto, LoanTypeBusiness, LoanTypeStudent}

type ApplicationStatus string

const (
	StatusDraft       ApplicationStatus = "draft"
	StatusSubmitted   ApplicationStatus = "submitted"
	StatusUnderReview ApplicationStatus = "under_review"
	StatusApproved    ApplicationStatus = "approved"
	StatusRejected    ApplicationStatus = "rejected"
	StatusCompleted   ApplicationStatus = "completed"
)

var statusTransitions = map[ApplicationStatus][]ApplicationStatus{
	StatusDraft:       {StatusSubmitted},
	StatusSubmitted:   {StatusUnderReview, StatusRejected},
	StatusUnderReview: {StatusApproved, StatusRejected},
	StatusApproved:    {StatusCompleted},
}

func (s ApplicationStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusUnderReview, StatusApproved, StatusRejected, StatusCompleted:
		return true
	}
	return false
}

// Terminal statuses accept no further changes except notes.
func (s ApplicationStatus) Terminal() bool {
	return s == StatusRejected || s == StatusCompleted
}

// Pending reports whether a decision is still outstanding.
func (s ApplicationStatus) Pending() bool {
	return s == StatusSubmitted || s == StatusUnderReview
}

func (s ApplicationStatus) CanTransitionTo(next ApplicationStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type EmploymentType string

const (
	EmploymentFullTime     EmploymentType = "full_time"
	EmploymentPartTime     EmploymentType = "part_time"
	EmploymentContract     EmploymentType = "contract"
	EmploymentSelfEmployed EmploymentType = "self_employed"
	EmploymentUnemployed   EmploymentType = "unemployed"
	EmploymentRetired      EmploymentType = "retired"
	EmploymentStudent      EmploymentType = "student"
)

var EmploymentTypes = []EmploymentType{
	EmploymentFullTime, EmploymentPartTime, EmploymentContract, EmploymentSelfEmployed,
	EmploymentUnemployed, EmploymentRetired, EmploymentStudent,
}

// RequiresEmployer reports whether employer name and job title are mandatory.
func (e EmploymentType) RequiresEmployer() bool {
	return e == EmploymentFullTime || e == EmploymentPartTime || e == EmploymentContract
}

type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`
}

type PersonalInfo struct {
	FirstName   string  `json:"firstName"`
	LastName    string  `json:"lastName"`
	Email       string  `json:"email"`
	Phone       string  `json:"phone"`
	DateOfBirth string  `json:"dateOfBirth"`
	SSN         string  `json:"ssn"`
	Address     Address `json:"address"`
}

type EmploymentInfo struct {
	EmploymentType         EmploymentType `json:"employmentType"`
	EmployerName           string         `json:"employerName,omitempty"`
	JobTitle               string         `json:"jobTitle,omitempty"`
	WorkAddress            *Address       `json:"workAddress,omitempty"`
	EmploymentStartDate    string         `json:"employmentStartDate,omitempty"`
	MonthlyIncome          float64        `json:"monthlyIncome"`
	AdditionalIncome       *float64       `json:"additionalIncome,omitempty"`
	AdditionalIncomeSource string         `json:"additionalIncomeSource,omitempty"`
}

type LoanDetails struct {
	LoanType        LoanType `json:"loanType"`
	RequestedAmount float64  `json:"requestedAmount"`
	LoanPurpose     string   `json:"loanPurpose"`
	PreferredTerm   int      `json:"preferredTerm"`
}

// ApplicationData is the accumulated wizard payload. A nil section has not
// been completed yet.
type ApplicationData struct {
	PersonalInfo   *PersonalInfo   `json:"personalInfo,omitempty"`
	EmploymentInfo *EmploymentInfo `json:"employmentInfo,omitempty"`
	LoanDetails    *LoanDetails    `json:"loanDetails,omitempty"`
	Documents      []Document      `json:"documents"`
}

// Complete reports whether every section needed for submission is present.
func (d ApplicationData) Complete() bool {
	return d.PersonalInfo != nil && d.EmploymentInfo != nil && d.LoanDetails != nil && d.Documents != nil
}

type LoanApplication struct {
	ID         string            `json:"id"`
	UserID     int64             `json:"userId"`
	Status     ApplicationStatus `json:"status"`
	Data       ApplicationData   `json:"data"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
	ReviewedAt *time.Time        `json:"reviewedAt,omitempty"`
	ReviewedBy string            `json:"reviewedBy,omitempty"`
	Notes      string            `json:"notes,omitempty"`
}

type InterestRateRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

type LoanProduct struct {
	ID           string            `json:"id"`
	Type         LoanType          `json:"type"`
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	MinAmount    float64           `json:"minAmount"`
	MaxAmount    float64           `json:"maxAmount"`
	MinTerm      int               `json:"minTerm"`
	MaxTerm      int               `json:"maxTerm"`
	InterestRate InterestRateRange `json:"interestRate"`
	Requirements []string          `json:"requirements"`
	Features     []string          `json:"features"`
	IsActive     bool              `json:"isActive"`
}

type ApplicationSummary struct {
	TotalApplications    int `json:"totalApplications"`
	PendingApplications  int `json:"pendingApplications"`
	ApprovedApplications int `json:"approvedApplications"`
	RejectedApplications int `json:"rejectedApplications"`
}

// ApplicationUpdate is a partial update. Nil fields are left unchanged.
type ApplicationUpdate struct {
	Data   *ApplicationData   `json:"data,omitempty"`
	Status *ApplicationStatus `json:"status,omitempty"`
	Notes  *string            `json:"notes,omitempty"`
}
