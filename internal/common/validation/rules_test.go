// internal/common/validation/rules_test.go
package validation

import (
	"errors"
	"testing"
	"time"

	"loan-origination/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

var fixedNow = time.Date(2026, time.June, 15, 12, 0, 0, 0, time.UTC)

func validPersonalInfo() models.PersonalInfo {
	return models.PersonalInfo{
		FirstName:   "Jane",
		LastName:    "Doe",
		Email:       "jane.doe@example.com",
		Phone:       "(555) 123-4567",
		DateOfBirth: "1990-04-12",
		SSN:         "123-45-6789",
		Address: models.Address{
			Street:  "1 Main St",
			City:    "Springfield",
			State:   "IL",
			ZipCode: "62701",
		},
	}
}

func validEmploymentInfo() models.EmploymentInfo {
	return models.EmploymentInfo{
		EmploymentType: models.EmploymentFullTime,
		EmployerName:   "Acme Corp",
		JobTitle:       "Engineer",
		MonthlyIncome:  8000,
	}
}

func validLoanDetails() models.LoanDetails {
	return models.LoanDetails{
		LoanType:        models.LoanTypeAuto,
		RequestedAmount: 25000,
		LoanPurpose:     "Buying a reliable family car",
		PreferredTerm:   60,
	}
}

// ==========================
// Personal Info
// ==========================

func TestValidatePersonalInfo_Valid(t *testing.T) {
	assert.Empty(t, ValidatePersonalInfo(validPersonalInfo(), fixedNow))
}

func TestValidatePersonalInfo_Rules(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *models.PersonalInfo)
		field   string
		message string
	}{
		{"missing first name", func(p *models.PersonalInfo) { p.FirstName = "" }, "firstName", "First name is required"},
		{"short last name", func(p *models.PersonalInfo) { p.LastName = "D" }, "lastName", "Last name must be at least 2 characters"},
		{"bad email", func(p *models.PersonalInfo) { p.Email = "jane@example" }, "email", "Please enter a valid email address"},
		{"nine digit phone", func(p *models.PersonalInfo) { p.Phone = "555123456" }, "phone", "Please enter a valid phone number"},
		{"eleven digits not starting with 1", func(p *models.PersonalInfo) { p.Phone = "25551234567" }, "phone", "Please enter a valid phone number"},
		{"all zero ssn", func(p *models.PersonalInfo) { p.SSN = "000-00-0000" }, "ssn", "Please enter a valid Social Security Number"},
		{"minor", func(p *models.PersonalInfo) { p.DateOfBirth = "2010-01-01" }, "dateOfBirth", "You must be at least 18 years old"},
		{"three letter state", func(p *models.PersonalInfo) { p.Address.State = "ILL" }, "address.state", "State must be 2 characters (e.g., CA)"},
		{"bad zip", func(p *models.PersonalInfo) { p.Address.ZipCode = "6270" }, "address.zipCode", "Please enter a valid ZIP code"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPersonalInfo()
			tt.mutate(&p)

			errs := ValidatePersonalInfo(p, fixedNow)
			require.NotEmpty(t, errs)
			assert.Equal(t, tt.message, errs.ByField()[tt.field])
		})
	}
}

func TestIsOldEnough_BirthdayBoundary(t *testing.T) {
	assert.True(t, IsOldEnough("2008-06-15", 18, fixedNow), "turns 18 today")
	assert.False(t, IsOldEnough("2008-06-16", 18, fixedNow), "turns 18 tomorrow")
	assert.False(t, IsOldEnough("not-a-date", 18, fixedNow))
}

func TestIsValidPhone_ElevenDigitsWithCountryCode(t *testing.T) {
	assert.True(t, IsValidPhone("+1 (555) 123-4567"))
	assert.True(t, IsValidPhone("5551234567"))
}

func TestIsValidZipCode_PlusFour(t *testing.T) {
	assert.True(t, IsValidZipCode("62701-1234"))
	assert.False(t, IsValidZipCode("62701-12"))
}

// ==========================
// Employment Info
// ==========================

func TestValidateEmploymentInfo_EmployerRequiredForEmployed(t *testing.T) {
	for _, et := range []models.EmploymentType{models.EmploymentFullTime, models.EmploymentPartTime, models.EmploymentContract} {
		t.Run(string(et), func(t *testing.T) {
			e := validEmploymentInfo()
			e.EmploymentType = et
			e.JobTitle = ""

			errs := ValidateEmploymentInfo(e)
			assert.Equal(t, "Employer name and job title are required for employed individuals", errs.ByField()["employerName"])
		})
	}
}

func TestValidateEmploymentInfo_EmployerOptionalOtherwise(t *testing.T) {
	for _, et := range []models.EmploymentType{models.EmploymentSelfEmployed, models.EmploymentRetired, models.EmploymentStudent, models.EmploymentUnemployed} {
		t.Run(string(et), func(t *testing.T) {
			e := models.EmploymentInfo{EmploymentType: et, MonthlyIncome: 0}
			assert.Empty(t, ValidateEmploymentInfo(e))
		})
	}
}

func TestValidateEmploymentInfo_IncomeBounds(t *testing.T) {
	e := validEmploymentInfo()
	e.MonthlyIncome = 1000001
	extra := -5.0
	e.AdditionalIncome = &extra

	byField := ValidateEmploymentInfo(e).ByField()
	assert.Equal(t, "Monthly income seems too high, please verify", byField["monthlyIncome"])
	assert.Equal(t, "Additional income cannot be negative", byField["additionalIncome"])
}

func TestValidateEmploymentInfo_WorkAddressOptionalFields(t *testing.T) {
	e := validEmploymentInfo()
	e.WorkAddress = &models.Address{City: "Springfield"}
	assert.Empty(t, ValidateEmploymentInfo(e))

	e.WorkAddress.ZipCode = "abc"
	assert.Contains(t, ValidateEmploymentInfo(e).ByField(), "workAddress.zipCode")
}

// ==========================
// Loan Details
// ==========================

func TestValidateLoanDetails(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(l *models.LoanDetails)
		field   string
		message string
	}{
		{"amount below minimum", func(l *models.LoanDetails) { l.RequestedAmount = 999 }, "requestedAmount", "Minimum loan amount is $1,000"},
		{"amount above maximum", func(l *models.LoanDetails) { l.RequestedAmount = 2000001 }, "requestedAmount", "Maximum loan amount is $2,000,000"},
		{"purpose too short", func(l *models.LoanDetails) { l.LoanPurpose = "car" }, "loanPurpose", "Please provide more details about the loan purpose"},
		{"term too short", func(l *models.LoanDetails) { l.PreferredTerm = 6 }, "preferredTerm", "Minimum loan term is 12 months"},
		{"term too long", func(l *models.LoanDetails) { l.PreferredTerm = 480 }, "preferredTerm", "Maximum loan term is 360 months"},
		{"unknown loan type", func(l *models.LoanDetails) { l.LoanType = "boat" }, "loanType", "Loan type is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := validLoanDetails()
			tt.mutate(&l)
			assert.Equal(t, tt.message, ValidateLoanDetails(l).ByField()[tt.field])
		})
	}

	t.Run("boundaries are inclusive", func(t *testing.T) {
		l := validLoanDetails()
		l.RequestedAmount = MinLoanAmount
		l.PreferredTerm = MaxLoanTerm
		assert.Empty(t, ValidateLoanDetails(l))
	})
}

// ==========================
// Full Application and Decoding
// ==========================

func TestValidateApplicationData_MissingSections(t *testing.T) {
	errs := ValidateApplicationData(models.ApplicationData{}, fixedNow)
	byField := errs.ByField()

	assert.Contains(t, byField, "personalInfo")
	assert.Contains(t, byField, "employmentInfo")
	assert.Contains(t, byField, "loanDetails")
	assert.Contains(t, byField, "documents")
}

func TestValidateApplicationData_PrefixesFields(t *testing.T) {
	p := validPersonalInfo()
	p.Email = "nope"
	e := validEmploymentInfo()
	l := validLoanDetails()

	errs := ValidateApplicationData(models.ApplicationData{
		PersonalInfo:   &p,
		EmploymentInfo: &e,
		LoanDetails:    &l,
		Documents:      []models.Document{},
	}, fixedNow)

	require.Len(t, errs, 1)
	assert.Equal(t, "personalInfo.email", errs[0].Field)
}

func TestDecodeLoanDetails_ShapeErrors(t *testing.T) {
	_, err := DecodeLoanDetails([]byte(`{"loanType":"auto","requestedAmount":"lots","loanPurpose":"Buying a reliable family car"}`))
	require.Error(t, err)

	var errs Errors
	require.True(t, errors.As(err, &errs))
	byField := errs.ByField()
	assert.Contains(t, byField, "preferredTerm")
	assert.Contains(t, byField, "requestedAmount")
}

func TestDecodePersonalInfo_NestedRequired(t *testing.T) {
	raw := []byte(`{"firstName":"Jane","lastName":"Doe","email":"jane@example.com","phone":"5551234567",
		"dateOfBirth":"1990-01-01","ssn":"123456789","address":{"street":"1 Main","city":"X","state":"IL"}}`)

	_, err := DecodePersonalInfo(raw, fixedNow)
	var errs Errors
	require.True(t, errors.As(err, &errs))
	assert.Equal(t, CodeMissingRequired, errs[0].Code)
	assert.Equal(t, "address.zipCode", errs[0].Field)
}

func TestDecodeEmploymentInfo_Valid(t *testing.T) {
	e, err := DecodeEmploymentInfo([]byte(`{"employmentType":"retired","monthlyIncome":2500}`))
	require.NoError(t, err)
	assert.Equal(t, models.EmploymentRetired, e.EmploymentType)
}
