package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// CircularStatus tracks a circular through its approval lifecycle.
// Faculty submissions start at SUBMITTED, admin-authored circulars at
// PENDING; both await the same admin decision.
type CircularStatus string

const (
	CircularStatusSubmitted CircularStatus = "submitted"
	CircularStatusPending   CircularStatus = "pending"
	CircularStatusApproved  CircularStatus = "approved"
	CircularStatusRejected  CircularStatus = "rejected"
	CircularStatusPublished CircularStatus = "published"
)

// Valid reports whether the status is one of the persisted lifecycle values.
func (s CircularStatus) Valid() bool {
	switch s {
	case CircularStatusSubmitted, CircularStatusPending, CircularStatusApproved,
		CircularStatusRejected, CircularStatusPublished:
		return true
	}
	return false
}

// CircularType classifies the direction of a circular.
type CircularType string

const (
	CircularTypeIncoming CircularType = "incoming"
	CircularTypeOutgoing CircularType = "outgoing"
)

// Audience tokens stored in target_audience. StudentVisibleAudiences lists
// the literal tokens a student feed query matches against.
const (
	AudienceFaculty = "faculty"
	AudienceStudent = "student"
)

// StudentVisibleAudiences are matched verbatim against the stored set.
var StudentVisibleAudiences = []string{"student", "facultystudent", "all"}

// Circular represents a persisted circular row.
type Circular struct {
	ID             string         `db:"id" json:"id"`
	Title          string         `db:"title" json:"title"`
	Type           CircularType   `db:"type" json:"type"`
	IssuedBy       string         `db:"issued_by" json:"issued_by"`
	Department     string         `db:"department" json:"department"`
	TargetAudience pq.StringArray `db:"target_audience" json:"target_audience"`
	Status         CircularStatus `db:"status" json:"status"`
	IssueDate      time.Time      `db:"issue_date" json:"issue_date"`
	ReceiveDate    *time.Time     `db:"receive_date" json:"receive_date,omitempty"`
	ReferenceID    string         `db:"reference_id" json:"reference_id"`
	AttachmentURL  *string        `db:"attachment_url" json:"attachment_url,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
}

// CircularStatusView is the trimmed projection used by the faculty
// status-tracking endpoint.
type CircularStatusView struct {
	ID     string         `db:"id" json:"id"`
	Title  string         `db:"title" json:"title"`
	Status CircularStatus `db:"status" json:"status"`
}

// CircularFilter captures the shared search criteria. Nil/empty fields are
// no-ops; supplied fields combine with logical AND.
type CircularFilter struct {
	Department  string
	ReferenceID string
	Type        string
	Status      string
	IssuedOn    *time.Time
	SortBy      string
	SortOrder   string
}

// AudienceSpec accepts either a scalar string or an array of strings at the
// JSON boundary. The ambiguity never travels past the audience normalizer.
type AudienceSpec struct {
	values []string
	set    bool
}

// NewAudienceSpec builds a spec from explicit values (used in tests and
// internal calls).
func NewAudienceSpec(values ...string) AudienceSpec {
	return AudienceSpec{values: values, set: true}
}

// Values returns the raw tokens as provided.
func (a AudienceSpec) Values() []string {
	return a.values
}

// IsZero reports whether the field was absent from the payload.
func (a AudienceSpec) IsZero() bool {
	return !a.set
}

// UnmarshalJSON accepts "student" and ["student","faculty"] alike.
func (a *AudienceSpec) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		a.values = []string{single}
		a.set = true
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err == nil {
		a.values = many
		a.set = true
		return nil
	}
	return fmt.Errorf("target_audience must be a string or an array of strings")
}

// MarshalJSON renders the canonical array form.
func (a AudienceSpec) MarshalJSON() ([]byte, error) {
	if a.values == nil {
		return json.Marshal([]string{})
	}
	return json.Marshal(a.values)
}
