package domain

import "time"

type Check struct {
	CheckID                 string          `json:"checkId"`
	CheckType               CheckType       `json:"checkType"`
	Label                   string          `json:"label"`
	Status                  Status          `json:"status"`
	StatusLabel             string          `json:"statusLabel"`
	IsRequired              bool            `json:"isRequired"`
	LastUpdated             time.Time       `json:"lastUpdated"`
	UpdatedAt               time.Time       `json:"updatedAt"`
	VendorReference         string          `json:"vendorReference,omitempty"`
	Notes                   string          `json:"notes,omitempty"`
	CompletedAt             *time.Time      `json:"completedAt,omitempty"`
	EstimatedCompletionDate *time.Time      `json:"estimatedCompletionDate,omitempty"`
	VendorMetadata          *VendorMetadata `json:"vendorMetadata,omitempty"`
}

// VendorMetadata is what the last vendor update reported for a check.
type VendorMetadata struct {
	Vendor                  string     `json:"vendor"`
	StatusLabel             string     `json:"statusLabel,omitempty"`
	Score                   string     `json:"score,omitempty"`
	CompletionDate          *time.Time `json:"completionDate,omitempty"`
	EstimatedCompletionDate *time.Time `json:"estimatedCompletionDate,omitempty"`
	ReceivedAt              time.Time  `json:"receivedAt"`
}

// Case is the aggregate for one candidate's background-check order. Version
// counts successful writes: a repository stores a case only when Version is
// exactly one more than the stored version.
type Case struct {
	CaseID                 string          `json:"caseId"`
	OrderID                string          `json:"orderId"`
	CandidateID            string          `json:"candidateId"`
	CandidateName          string          `json:"candidateName"`
	CandidateEmail         string          `json:"candidateEmail"`
	StartDate              time.Time       `json:"startDate"`
	Checks                 []Check         `json:"checks"`
	OverallStatus          Status          `json:"overallStatus"`
	OverallScore           OverallScore    `json:"overallScore"`
	AdminDecision          AdminDecision   `json:"adminDecision"`
	Owner                  string          `json:"owner"`
	SLARisk                bool            `json:"slaRisk"`
	CreatedAt              time.Time       `json:"createdAt"`
	UpdatedAt              time.Time       `json:"updatedAt"`
	Timeline               []TimelineEvent `json:"timeline"`
	SecurityClassification string          `json:"securityClassification"`
	Version                int64           `json:"version"`
}

// Clone returns a deep copy so a transformed case never aliases its source.
func (c Case) Clone() Case {
	out := c
	if c.Checks != nil {
		out.Checks = make([]Check, len(c.Checks))
		for i, ch := range c.Checks {
			out.Checks[i] = ch.clone()
		}
	}
	if c.Timeline != nil {
		out.Timeline = make([]TimelineEvent, len(c.Timeline))
		copy(out.Timeline, c.Timeline)
	}
	return out
}

func (ch Check) clone() Check {
	out := ch
	out.CompletedAt = cloneTime(ch.CompletedAt)
	out.EstimatedCompletionDate = cloneTime(ch.EstimatedCompletionDate)
	if ch.VendorMetadata != nil {
		vm := *ch.VendorMetadata
		vm.CompletionDate = cloneTime(vm.CompletionDate)
		vm.EstimatedCompletionDate = cloneTime(vm.EstimatedCompletionDate)
		out.VendorMetadata = &vm
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// CheckIndex returns the position of the check with the given type, or -1.
func (c Case) CheckIndex(checkType CheckType) int {
	for i, ch := range c.Checks {
		if ch.CheckType == checkType {
			return i
		}
	}
	return -1
}

// VendorReferenceIndex returns the position of the check holding ref, or -1.
func (c Case) VendorReferenceIndex(ref string) int {
	if ref == "" {
		return -1
	}
	for i, ch := range c.Checks {
		if ch.VendorReference == ref {
			return i
		}
	}
	return -1
}

type ChecklistSummary struct {
	Total       int `json:"total"`
	Completed   int `json:"completed"`
	Clear       int `json:"clear"`
	NeedsReview int `json:"needsReview"`
	Pending     int `json:"pending"`
}

type CaseStats struct {
	Total       int `json:"total"`
	Clear       int `json:"clear"`
	NeedsReview int `json:"needsReview"`
	Error       int `json:"error"`
	InProgress  int `json:"inProgress"`
	SLARisk     int `json:"slaRisk"`
}

// ExceptionRecord is derived from case state on every query and never stored.
type ExceptionRecord struct {
	CaseID        string          `json:"caseId"`
	OrderID       string          `json:"orderId"`
	CandidateName string          `json:"candidateName"`
	Kind          ExceptionKind   `json:"kind"`
	Reason        string          `json:"reason"`
	Status        ExceptionStatus `json:"status"`
	AssignedTo    string          `json:"assignedTo,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

type CreateCasePayload struct {
	OrderID        string `json:"orderId"`
	CandidateID    string `json:"candidateId,omitempty"`
	CandidateName  string `json:"candidateName"`
	CandidateEmail string `json:"candidateEmail"`
	StartDate      string `json:"startDate"`
	Owner          string `json:"owner"`
}

// CheckUpdate carries the optional fields recorded alongside a check status change.
type CheckUpdate struct {
	UpdatedBy               string     `json:"updatedBy,omitempty"`
	VendorReference         string     `json:"vendorReference,omitempty"`
	Notes                   string     `json:"notes,omitempty"`
	CompletedAt             *time.Time `json:"completedAt,omitempty"`
	EstimatedCompletionDate *time.Time `json:"estimatedCompletionDate,omitempty"`
}

type UpdateCheckStatusPayload struct {
	Status                  Status `json:"status"`
	UpdatedBy               string `json:"updatedBy"`
	Notes                   string `json:"notes,omitempty"`
	VendorReference         string `json:"vendorReference,omitempty"`
	CompletedAt             string `json:"completedAt,omitempty"`
	EstimatedCompletionDate string `json:"estimatedCompletionDate,omitempty"`
}

type AdminDecisionPayload struct {
	Decision  AdminDecision `json:"decision"`
	Reasoning string        `json:"reasoning"`
	Notes     string        `json:"notes,omitempty"`
	DecidedBy string        `json:"decidedBy"`
}

// VendorUpdate is an inbound result from a screening vendor.
type VendorUpdate struct {
	Vendor                  string               `json:"vendor"`
	VendorReference         string               `json:"vendorReference"`
	CheckType               CheckType            `json:"checkType,omitempty"`
	Status                  Status               `json:"status"`
	StatusLabel             string               `json:"statusLabel,omitempty"`
	Score                   string               `json:"score,omitempty"`
	CompletionDate          string               `json:"completionDate,omitempty"`
	EstimatedCompletionDate string               `json:"estimatedCompletionDate,omitempty"`
	VendorData              *VendorCandidateData `json:"vendorData,omitempty"`
}

type VendorCandidateData struct {
	OrderID        string `json:"orderId,omitempty"`
	CandidateID    string `json:"candidateId,omitempty"`
	CandidateName  string `json:"candidateName,omitempty"`
	CandidateEmail string `json:"candidateEmail,omitempty"`
	StartDate      string `json:"startDate,omitempty"`
}

type IngestResult struct {
	CaseID  string `json:"caseId"`
	Created bool   `json:"created"`
}
