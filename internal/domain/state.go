package domain

// Status is shared by individual checks and the case-level overall status.
type Status string

const (
	StatusNew             Status = "NEW"
	StatusInvited         Status = "INVITED"
	StatusPending         Status = "PENDING"
	StatusInProgress      Status = "IN_PROGRESS"
	StatusCompletedClear  Status = "COMPLETED_CLEAR"
	StatusCompletedReview Status = "COMPLETED_REVIEW"
	StatusError           Status = "ERROR"
)

var allStatuses = []Status{
	StatusNew,
	StatusInvited,
	StatusPending,
	StatusInProgress,
	StatusCompletedClear,
	StatusCompletedReview,
	StatusError,
}

func (s Status) Valid() bool {
	for _, v := range allStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Completed reports whether the status is one of the COMPLETED_* outcomes.
func (s Status) Completed() bool {
	return s == StatusCompletedClear || s == StatusCompletedReview
}

type OverallScore string

const (
	ScoreClear       OverallScore = "CLEAR"
	ScoreNeedsReview OverallScore = "NEEDS_REVIEW"
	ScorePending     OverallScore = "PENDING"
)

type CheckType string

const (
	CheckIdentityVerification   CheckType = "IDENTITY_VERIFICATION"
	CheckCriminalHistory        CheckType = "CRIMINAL_HISTORY_CHECK"
	CheckEmploymentVerification CheckType = "EMPLOYMENT_VERIFICATION"
	CheckEducationVerification  CheckType = "EDUCATION_VERIFICATION"
	CheckRightToWork            CheckType = "RIGHT_TO_WORK"
)

// CheckTypes lists every check type in the order checks are created on a case.
var CheckTypes = []CheckType{
	CheckIdentityVerification,
	CheckCriminalHistory,
	CheckEmploymentVerification,
	CheckEducationVerification,
	CheckRightToWork,
}

func (t CheckType) Valid() bool {
	for _, v := range CheckTypes {
		if t == v {
			return true
		}
	}
	return false
}

// Required reports whether the check gates clearance. Only education is optional.
func (t CheckType) Required() bool {
	return t != CheckEducationVerification
}

type AdminDecision string

const (
	DecisionInProgress  AdminDecision = "IN_PROGRESS"
	DecisionApproved    AdminDecision = "APPROVED"
	DecisionRejected    AdminDecision = "REJECTED"
	DecisionNeedsReview AdminDecision = "NEEDS_REVIEW"
)

// Recordable reports whether an admin may record the decision explicitly.
// IN_PROGRESS is only ever the initial value.
func (d AdminDecision) Recordable() bool {
	switch d {
	case DecisionApproved, DecisionRejected, DecisionNeedsReview:
		return true
	}
	return false
}

type EventType string

const (
	EventCreated       EventType = "CREATED"
	EventStatusChange  EventType = "STATUS_CHANGE"
	EventScoreChange   EventType = "SCORE_CHANGE"
	EventDecision      EventType = "DECISION"
	EventCheckUpdated  EventType = "CHECK_UPDATED"
	EventAdminDecision EventType = "ADMIN_DECISION"
)

type ExceptionStatus string

const (
	ExceptionUnreviewed   ExceptionStatus = "UNREVIEWED"
	ExceptionAcknowledged ExceptionStatus = "ACKNOWLEDGED"
	ExceptionAssigned     ExceptionStatus = "ASSIGNED"
	ExceptionResolved     ExceptionStatus = "RESOLVED"
)

func (s ExceptionStatus) Valid() bool {
	switch s {
	case ExceptionUnreviewed, ExceptionAcknowledged, ExceptionAssigned, ExceptionResolved:
		return true
	}
	return false
}

type ExceptionKind string

const (
	ExceptionSLAAtRisk   ExceptionKind = "SLA_AT_RISK"
	ExceptionNeedsReview ExceptionKind = "NEEDS_REVIEW"
	ExceptionError       ExceptionKind = "ERROR"
	ExceptionStalled     ExceptionKind = "STALLED"
)

const SecuritySensitive = "SENSITIVE"
