// internal/common/validation/schema.go
package validation

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// Section names double as schema names.
const (
	SectionPersonalInfo   = "personalInfo"
	SectionEmploymentInfo = "employmentInfo"
	SectionLoanDetails    = "loanDetails"
)

// Structural schemas only pin down shape, types and enums. Ranges, lengths and
// cross-field rules live in rules.go so their messages stay user facing.
var sectionSchemas = map[string]string{
	SectionPersonalInfo: `{
		"type": "object",
		"required": ["firstName", "lastName", "email", "phone", "dateOfBirth", "ssn", "address"],
		"properties": {
			"firstName":   {"type": "string"},
			"lastName":    {"type": "string"},
			"email":       {"type": "string"},
			"phone":       {"type": "string"},
			"dateOfBirth": {"type": "string"},
			"ssn":         {"type": "string"},
			"address": {
				"type": "object",
				"required": ["street", "city", "state", "zipCode"],
				"properties": {
					"street":  {"type": "string"},
					"city":    {"type": "string"},
					"state":   {"type": "string"},
					"zipCode": {"type": "string"}
				}
			}
		}
	}`,
	SectionEmploymentInfo: `{
		"type": "object",
		"required": ["employmentType", "monthlyIncome"],
		"properties": {
			"employmentType": {"enum": ["full_time", "part_time", "contract", "self_employed", "unemployed", "retired", "student"]},
			"employerName":   {"type": "string"},
			"jobTitle":       {"type": "string"},
			"workAddress": {
				"type": "object",
				"properties": {
					"street":  {"type": "string"},
					"city":    {"type": "string"},
					"state":   {"type": "string"},
					"zipCode": {"type": "string"}
				}
			},
			"employmentStartDate":    {"type": "string"},
			"monthlyIncome":          {"type": "number"},
			"additionalIncome":       {"type": "number"},
			"additionalIncomeSource": {"type": "string"}
		}
	}`,
	SectionLoanDetails: `{
		"type": "object",
		"required": ["loanType", "requestedAmount", "loanPurpose", "preferredTerm"],
		"properties": {
			"loanType":        {"enum": ["personal", "home", "auto", "business", "student"]},
			"requestedAmount": {"type": "number"},
			"loanPurpose":     {"type": "string"},
			"preferredTerm":   {"type": "integer"}
		}
	}`,
}

var (
	compileOnce sync.Once
	compiled    map[string]*gojsonschema.Schema
	compileErr  error
)

func schemaFor(section string) (*gojsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiled = make(map[string]*gojsonschema.Schema, len(sectionSchemas))
		for name, raw := range sectionSchemas {
			s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(raw))
			if err != nil {
				compileErr = fmt.Errorf("compile %s schema: %w", name, err)
				return
			}
			compiled[name] = s
		}
	})
	if compileErr != nil {
		return nil, compileErr
	}
	s, ok := compiled[section]
	if !ok {
		return nil, fmt.Errorf("unknown section %q", section)
	}
	return s, nil
}

// CheckShape validates raw JSON for a section against its structural schema.
func CheckShape(section string, raw []byte) (Errors, error) {
	schema, err := schemaFor(section)
	if err != nil {
		return nil, err
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return Errors{{Field: section, Code: CodeInvalidType, Message: "Malformed JSON"}}, nil
	}
	if result.Valid() {
		return nil, nil
	}

	errs := make(Errors, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		errs = append(errs, fromSchemaError(re))
	}
	return errs, nil
}

func fromSchemaError(re gojsonschema.ResultError) FieldError {
	field := strings.TrimPrefix(re.Context().String(), "(root)")
	field = strings.TrimPrefix(field, ".")

	switch re.Type() {
	case "required":
		prop, _ := re.Details()["property"].(string)
		if field != "" {
			prop = field + "." + prop
		}
		return FieldError{Field: prop, Code: CodeMissingRequired, Message: fmt.Sprintf("%s is required", prop)}
	case "invalid_type":
		return FieldError{Field: field, Code: CodeInvalidType, Message: re.Description()}
	case "enum":
		return FieldError{Field: field, Code: CodeInvalidValue, Message: re.Description()}
	default:
		return FieldError{Field: field, Code: CodeInvalidFormat, Message: re.Description()}
	}
}
