package domain

import (
	"encoding/json"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
)

const dateLayout = "2006-01-02"

const CreateCaseJSONSchema = `{
  "type": "object",
  "required": ["orderId", "candidateName", "candidateEmail", "startDate", "owner"],
  "properties": {
    "orderId": {"type": "string", "minLength": 1},
    "candidateId": {"type": "string"},
    "candidateName": {"type": "string", "minLength": 1},
    "candidateEmail": {"type": "string", "minLength": 1},
    "startDate": {"type": "string", "minLength": 1},
    "owner": {"type": "string", "minLength": 1}
  }
}`

const VendorUpdateJSONSchema = `{
  "type": "object",
  "required": ["vendor", "vendorReference", "status"],
  "properties": {
    "vendor": {"type": "string", "minLength": 1},
    "vendorReference": {"type": "string", "minLength": 1},
    "checkType": {"enum": ["IDENTITY_VERIFICATION", "CRIMINAL_HISTORY_CHECK", "EMPLOYMENT_VERIFICATION", "EDUCATION_VERIFICATION", "RIGHT_TO_WORK"]},
    "status": {"enum": ["NEW", "INVITED", "PENDING", "IN_PROGRESS", "COMPLETED_CLEAR", "COMPLETED_REVIEW", "ERROR"]},
    "statusLabel": {"type": "string"},
    "score": {"type": "string"},
    "completionDate": {"type": "string"},
    "estimatedCompletionDate": {"type": "string"},
    "vendorData": {
      "type": "object",
      "properties": {
        "orderId": {"type": "string"},
        "candidateId": {"type": "string"},
        "candidateName": {"type": "string"},
        "candidateEmail": {"type": "string"},
        "startDate": {"type": "string"}
      }
    }
  }
}`

var (
	createCaseSchema   = mustSchema(CreateCaseJSONSchema)
	vendorUpdateSchema = mustSchema(VendorUpdateJSONSchema)
)

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("compile schema: %v", err))
	}
	return s
}

func validateAgainst(schema *gojsonschema.Schema, raw []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return NewValidationError("", "invalid json")
	}
	if result.Valid() {
		return nil
	}
	first := result.Errors()[0]
	field := first.Field()
	if field == "(root)" {
		field = ""
	}
	return NewValidationError(field, first.Description())
}

// DecodeCreateCasePayload validates raw JSON against the create-case schema and decodes it.
func DecodeCreateCasePayload(raw []byte) (CreateCasePayload, error) {
	if err := validateAgainst(createCaseSchema, raw); err != nil {
		return CreateCasePayload{}, err
	}
	var p CreateCasePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return CreateCasePayload{}, NewValidationError("", "invalid json")
	}
	return p, nil
}

// DecodeVendorUpdate validates raw JSON against the vendor update schema and decodes it.
func DecodeVendorUpdate(raw []byte) (VendorUpdate, error) {
	if err := validateAgainst(vendorUpdateSchema, raw); err != nil {
		return VendorUpdate{}, err
	}
	var u VendorUpdate
	if err := json.Unmarshal(raw, &u); err != nil {
		return VendorUpdate{}, NewValidationError("", "invalid json")
	}
	return u, nil
}

// ValidateCreatePayload checks required fields and returns the parsed start date.
func ValidateCreatePayload(p CreateCasePayload) (time.Time, error) {
	required := []struct {
		field string
		value string
	}{
		{"orderId", p.OrderID},
		{"candidateName", p.CandidateName},
		{"candidateEmail", p.CandidateEmail},
		{"startDate", p.StartDate},
		{"owner", p.Owner},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return time.Time{}, NewValidationError(r.field, "is required")
		}
	}
	if _, err := mail.ParseAddress(p.CandidateEmail); err != nil {
		return time.Time{}, NewValidationError("candidateEmail", "is not a valid email address")
	}
	return ParseDate("startDate", p.StartDate)
}

func ValidateAdminDecision(p AdminDecisionPayload) error {
	if !p.Decision.Recordable() {
		return NewValidationError("decision", "must be one of APPROVED, REJECTED, NEEDS_REVIEW")
	}
	if strings.TrimSpace(p.DecidedBy) == "" {
		return NewValidationError("decidedBy", "is required")
	}
	return nil
}

// ValidateVendorUpdate checks the fields the schema cannot express.
func ValidateVendorUpdate(u VendorUpdate) error {
	if strings.TrimSpace(u.VendorReference) == "" {
		return NewValidationError("vendorReference", "is required")
	}
	if strings.TrimSpace(u.Vendor) == "" {
		return NewValidationError("vendor", "is required")
	}
	if !u.Status.Valid() {
		return NewValidationError("status", fmt.Sprintf("unknown status %q", u.Status))
	}
	if u.CheckType != "" && !u.CheckType.Valid() {
		return NewValidationError("checkType", fmt.Sprintf("unknown check type %q", u.CheckType))
	}
	if _, err := ParseOptionalDate("completionDate", u.CompletionDate); err != nil {
		return err
	}
	if _, err := ParseOptionalDate("estimatedCompletionDate", u.EstimatedCompletionDate); err != nil {
		return err
	}
	return nil
}

// CreatePayloadFromVendor builds a create-case payload from vendor-supplied candidate data.
// Missing fields are left empty so ValidateCreatePayload rejects them.
func CreatePayloadFromVendor(u VendorUpdate) CreateCasePayload {
	if u.VendorData == nil {
		return CreateCasePayload{Owner: "system"}
	}
	return CreateCasePayload{
		OrderID:        u.VendorData.OrderID,
		CandidateID:    u.VendorData.CandidateID,
		CandidateName:  u.VendorData.CandidateName,
		CandidateEmail: u.VendorData.CandidateEmail,
		StartDate:      u.VendorData.StartDate,
		Owner:          "system",
	}
}

func ParseCheckType(v string) (CheckType, error) {
	t := CheckType(strings.ToUpper(strings.TrimSpace(v)))
	if !t.Valid() {
		return "", NewValidationError("checkType", fmt.Sprintf("unknown check type %q", v))
	}
	return t, nil
}

// ParseCheckUpdate validates a check status update request.
func ParseCheckUpdate(p UpdateCheckStatusPayload) (Status, CheckUpdate, error) {
	if !p.Status.Valid() {
		return "", CheckUpdate{}, NewValidationError("status", fmt.Sprintf("unknown status %q", p.Status))
	}
	completedAt, err := ParseOptionalDate("completedAt", p.CompletedAt)
	if err != nil {
		return "", CheckUpdate{}, err
	}
	eta, err := ParseOptionalDate("estimatedCompletionDate", p.EstimatedCompletionDate)
	if err != nil {
		return "", CheckUpdate{}, err
	}
	return p.Status, CheckUpdate{
		UpdatedBy:               strings.TrimSpace(p.UpdatedBy),
		VendorReference:         strings.TrimSpace(p.VendorReference),
		Notes:                   p.Notes,
		CompletedAt:             completedAt,
		EstimatedCompletionDate: eta,
	}, nil
}

// ParseDate accepts RFC 3339 timestamps or plain calendar dates (UTC midnight).
func ParseDate(field, v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(dateLayout, v); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, NewValidationError(field, "must be an ISO 8601 date")
}

func ParseOptionalDate(field, v string) (*time.Time, error) {
	if strings.TrimSpace(v) == "" {
		return nil, nil
	}
	t, err := ParseDate(field, v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
