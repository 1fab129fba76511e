// internal/common/validation/rules.go
package validation

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"loan-origination/internal/models"
)

const (
	CodeMissingRequired = "MISSING_REQUIRED"
	CodeInvalidFormat   = "INVALID_FORMAT"
	CodeInvalidType     = "INVALID_TYPE"
	CodeInvalidValue    = "INVALID_VALUE"
	CodeOutOfRange      = "OUT_OF_RANGE"
)

const (
	MinLoanAmount     = 1000
	MaxLoanAmount     = 2000000
	MinLoanTerm       = 12
	MaxLoanTerm       = 360
	MaxMonthlyIncome  = 1000000
	MinApplicantAge   = 18
	minPurposeLength  = 10
	maxPurposeLength  = 500
	maxNameLength     = 50
	maxEmployerLength = 100
)

var (
	emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	zipRegex   = regexp.MustCompile(`^\d{5}(-\d{4})?$`)
	nonDigit   = regexp.MustCompile(`\D`)
)

type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Errors is a list of field-level failures. A nil or empty list means valid.
type Errors []FieldError

func (e Errors) Error() string {
	if len(e) == 0 {
		return "validation passed"
	}
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Field, fe.Message))
	}
	return strings.Join(parts, "; ")
}

// ByField keeps the first message reported for each field.
func (e Errors) ByField() map[string]string {
	out := make(map[string]string, len(e))
	for _, fe := range e {
		if _, seen := out[fe.Field]; !seen {
			out[fe.Field] = fe.Message
		}
	}
	return out
}

// Prefixed returns a copy with every field path under prefix.
func (e Errors) Prefixed(prefix string) Errors {
	out := make(Errors, len(e))
	for i, fe := range e {
		fe.Field = prefix + "." + fe.Field
		out[i] = fe
	}
	return out
}

func (e *Errors) add(field, code, message string) {
	*e = append(*e, FieldError{Field: field, Code: code, Message: message})
}

func IsValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// IsValidPhone accepts 10 digits, or 11 digits starting with 1, after
// stripping formatting.
func IsValidPhone(phone string) bool {
	digits := nonDigit.ReplaceAllString(phone, "")
	return len(digits) == 10 || (len(digits) == 11 && digits[0] == '1')
}

func IsValidSSN(ssn string) bool {
	digits := nonDigit.ReplaceAllString(ssn, "")
	return len(digits) == 9 && digits != "000000000"
}

func IsValidZipCode(zip string) bool {
	return zipRegex.MatchString(zip)
}

// ParseDate accepts a calendar date or an RFC 3339 timestamp.
func ParseDate(value string) (time.Time, bool) {
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// IsOldEnough compares whole years, counting a birthday not yet reached this year.
func IsOldEnough(dateOfBirth string, minAge int, now time.Time) bool {
	birth, ok := ParseDate(dateOfBirth)
	if !ok {
		return false
	}
	age := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		age--
	}
	return age >= minAge
}

func length(s string) int { return utf8.RuneCountInString(s) }

func ValidatePersonalInfo(p models.PersonalInfo, now time.Time) Errors {
	var errs Errors

	checkName := func(field, label, value string) {
		switch {
		case value == "":
			errs.add(field, CodeMissingRequired, label+" is required")
		case length(value) < 2:
			errs.add(field, CodeInvalidFormat, label+" must be at least 2 characters")
		case length(value) > maxNameLength:
			errs.add(field, CodeInvalidFormat, label+" must be less than 50 characters")
		}
	}
	checkName("firstName", "First name", p.FirstName)
	checkName("lastName", "Last name", p.LastName)

	switch {
	case p.Email == "":
		errs.add("email", CodeMissingRequired, "Email is required")
	case !IsValidEmail(p.Email):
		errs.add("email", CodeInvalidFormat, "Please enter a valid email address")
	}

	switch {
	case p.Phone == "":
		errs.add("phone", CodeMissingRequired, "Phone number is required")
	case !IsValidPhone(p.Phone):
		errs.add("phone", CodeInvalidFormat, "Please enter a valid phone number")
	}

	switch {
	case p.DateOfBirth == "":
		errs.add("dateOfBirth", CodeMissingRequired, "Date of birth is required")
	case !IsOldEnough(p.DateOfBirth, MinApplicantAge, now):
		errs.add("dateOfBirth", CodeOutOfRange, "You must be at least 18 years old")
	}

	switch {
	case p.SSN == "":
		errs.add("ssn", CodeMissingRequired, "Social Security Number is required")
	case !IsValidSSN(p.SSN):
		errs.add("ssn", CodeInvalidFormat, "Please enter a valid Social Security Number")
	}

	errs = append(errs, validateAddress("address", p.Address, true)...)
	return errs
}

func validateAddress(prefix string, a models.Address, required bool) Errors {
	var errs Errors
	field := func(name string) string { return prefix + "." + name }

	if a.Street == "" && required {
		errs.add(field("street"), CodeMissingRequired, "Street address is required")
	} else if length(a.Street) > 100 {
		errs.add(field("street"), CodeInvalidFormat, "Street address must be less than 100 characters")
	}

	if a.City == "" && required {
		errs.add(field("city"), CodeMissingRequired, "City is required")
	} else if length(a.City) > 50 {
		errs.add(field("city"), CodeInvalidFormat, "City must be less than 50 characters")
	}

	if a.State == "" && required {
		errs.add(field("state"), CodeMissingRequired, "State is required")
	} else if a.State != "" && length(a.State) != 2 {
		errs.add(field("state"), CodeInvalidFormat, "State must be 2 characters (e.g., CA)")
	}

	if a.ZipCode == "" && required {
		errs.add(field("zipCode"), CodeMissingRequired, "ZIP code is required")
	} else if a.ZipCode != "" && !IsValidZipCode(a.ZipCode) {
		errs.add(field("zipCode"), CodeInvalidFormat, "Please enter a valid ZIP code")
	}
	return errs
}

func ValidateEmploymentInfo(e models.EmploymentInfo) Errors {
	var errs Errors

	validType := false
	for _, t := range models.EmploymentTypes {
		if e.EmploymentType == t {
			validType = true
			break
		}
	}
	if !validType {
		errs.add("employmentType", CodeMissingRequired, "Employment type is required")
	}

	if length(e.EmployerName) > maxEmployerLength {
		errs.add("employerName", CodeInvalidFormat, "Employer name must be less than 100 characters")
	}
	if length(e.JobTitle) > maxEmployerLength {
		errs.add("jobTitle", CodeInvalidFormat, "Job title must be less than 100 characters")
	}
	if e.WorkAddress != nil {
		errs = append(errs, validateAddress("workAddress", *e.WorkAddress, false)...)
	}

	switch {
	case e.MonthlyIncome < 0:
		errs.add("monthlyIncome", CodeOutOfRange, "Monthly income cannot be negative")
	case e.MonthlyIncome > MaxMonthlyIncome:
		errs.add("monthlyIncome", CodeOutOfRange, "Monthly income seems too high, please verify")
	}

	if e.AdditionalIncome != nil {
		switch {
		case *e.AdditionalIncome < 0:
			errs.add("additionalIncome", CodeOutOfRange, "Additional income cannot be negative")
		case *e.AdditionalIncome > MaxMonthlyIncome:
			errs.add("additionalIncome", CodeOutOfRange, "Additional income seems too high, please verify")
		}
	}
	if length(e.AdditionalIncomeSource) > maxEmployerLength {
		errs.add("additionalIncomeSource", CodeInvalidFormat, "Additional income source must be less than 100 characters")
	}

	if e.EmploymentType.RequiresEmployer() && (strings.TrimSpace(e.EmployerName) == "" || strings.TrimSpace(e.JobTitle) == "") {
		errs.add("employerName", CodeMissingRequired, "Employer name and job title are required for employed individuals")
	}
	return errs
}

func ValidateLoanDetails(l models.LoanDetails) Errors {
	var errs Errors

	validType := false
	for _, t := range models.LoanTypes {
		if l.LoanType == t {
			validType = true
			break
		}
	}
	if !validType {
		errs.add("loanType", CodeMissingRequired, "Loan type is required")
	}

	switch {
	case l.RequestedAmount < MinLoanAmount:
		errs.add("requestedAmount", CodeOutOfRange, "Minimum loan amount is $1,000")
	case l.RequestedAmount > MaxLoanAmount:
		errs.add("requestedAmount", CodeOutOfRange, "Maximum loan amount is $2,000,000")
	}

	switch {
	case l.LoanPurpose == "":
		errs.add("loanPurpose", CodeMissingRequired, "Loan purpose is required")
	case length(l.LoanPurpose) < minPurposeLength:
		errs.add("loanPurpose", CodeInvalidFormat, "Please provide more details about the loan purpose")
	case length(l.LoanPurpose) > maxPurposeLength:
		errs.add("loanPurpose", CodeInvalidFormat, "Loan purpose must be less than 500 characters")
	}

	switch {
	case l.PreferredTerm < MinLoanTerm:
		errs.add("preferredTerm", CodeOutOfRange, "Minimum loan term is 12 months")
	case l.PreferredTerm > MaxLoanTerm:
		errs.add("preferredTerm", CodeOutOfRange, "Maximum loan term is 360 months")
	}
	return errs
}

// ValidateApplicationData checks a full submission. Field paths are prefixed
// with the section name.
func ValidateApplicationData(d models.ApplicationData, now time.Time) Errors {
	var errs Errors

	if d.PersonalInfo == nil {
		errs.add(SectionPersonalInfo, CodeMissingRequired, "personalInfo is required")
	} else {
		errs = append(errs, ValidatePersonalInfo(*d.PersonalInfo, now).Prefixed(SectionPersonalInfo)...)
	}

	if d.EmploymentInfo == nil {
		errs.add(SectionEmploymentInfo, CodeMissingRequired, "employmentInfo is required")
	} else {
		errs = append(errs, ValidateEmploymentInfo(*d.EmploymentInfo).Prefixed(SectionEmploymentInfo)...)
	}

	if d.LoanDetails == nil {
		errs.add(SectionLoanDetails, CodeMissingRequired, "loanDetails is required")
	} else {
		errs = append(errs, ValidateLoanDetails(*d.LoanDetails).Prefixed(SectionLoanDetails)...)
	}

	if d.Documents == nil {
		errs.add("documents", CodeMissingRequired, "documents are required")
	}
	return errs
}

// DecodePersonalInfo checks shape then rules. Validation failures come back
// as Errors.
func DecodePersonalInfo(raw []byte, now time.Time) (*models.PersonalInfo, error) {
	var p models.PersonalInfo
	if err := decodeSection(SectionPersonalInfo, raw, &p); err != nil {
		return nil, err
	}
	if errs := ValidatePersonalInfo(p, now); len(errs) > 0 {
		return nil, errs
	}
	return &p, nil
}

func DecodeEmploymentInfo(raw []byte) (*models.EmploymentInfo, error) {
	var e models.EmploymentInfo
	if err := decodeSection(SectionEmploymentInfo, raw, &e); err != nil {
		return nil, err
	}
	if errs := ValidateEmploymentInfo(e); len(errs) > 0 {
		return nil, errs
	}
	return &e, nil
}

func DecodeLoanDetails(raw []byte) (*models.LoanDetails, error) {
	var l models.LoanDetails
	if err := decodeSection(SectionLoanDetails, raw, &l); err != nil {
		return nil, err
	}
	if errs := ValidateLoanDetails(l); len(errs) > 0 {
		return nil, errs
	}
	return &l, nil
}

func decodeSection(section string, raw []byte, target interface{}) error {
	errs, err := CheckShape(section, raw)
	if err != nil {
		return err
	}
	if len(errs) > 0 {
		return errs
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return Errors{{Field: section, Code: CodeInvalidType, Message: err.Error()}}
	}
	return nil
}
