package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultCheckedInStatuses are the registration statuses that count as attendance.
var DefaultCheckedInStatuses = []string{"checked in", "attended"}

// AttendanceRecord is one webinar participant log entry. A participant who
// left and rejoined appears more than once.
type AttendanceRecord struct {
	UserEmail string `json:"user_email"`
	Name      string `json:"name"`
	Duration  int64  `json:"duration"`
}

// Registrant is a registration platform attendee, whatever their status.
type Registrant struct {
	Email     string `json:"email"`
	Name      string `json:"name"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Status    string `json:"status"`
	OrderID   string `json:"order_id,omitempty"`
}

// HasStatus reports whether the registrant's status is one of statuses,
// ignoring case.
func (r Registrant) HasStatus(statuses []string) bool {
	for _, s := range statuses {
		if strings.EqualFold(strings.TrimSpace(r.Status), strings.TrimSpace(s)) {
			return true
		}
	}
	return false
}

// DisplayName prefers the full name, then first and last names.
func (r Registrant) DisplayName() string {
	if name := strings.TrimSpace(r.Name); name != "" {
		return name
	}
	return strings.TrimSpace(r.FirstName + " " + r.LastName)
}

// ReconcileInput carries the raw data of one session/event pair.
type ReconcileInput struct {
	ParticipantRecords []AttendanceRecord    `json:"participant_records"`
	Registrants        map[string]Registrant `json:"registrants"`
	CheckedIn          map[string]Registrant `json:"checked_in"`
	TrainerEmails      []string              `json:"trainer_emails"`
}

// AttendanceEntry is one reported person.
type AttendanceEntry struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// IdentityNote records a person who used different emails on the two platforms.
type IdentityNote struct {
	Name              string `json:"name"`
	WebinarEmail      string `json:"webinar_email"`
	RegistrationEmail string `json:"registration_email"`
}

func (n IdentityNote) String() string {
	return fmt.Sprintf("%s used email %s on the video platform, %s on the registration platform", n.Name, n.WebinarEmail, n.RegistrationEmail)
}

// AttendanceReport is the outcome of one reconciliation.
type AttendanceReport struct {
	Threshold       float64           `json:"threshold"`
	Baseline        float64           `json:"baseline"`
	Participants    int               `json:"participants"`
	Present         []string          `json:"present"`
	Notes           []IdentityNote    `json:"notes"`
	Unregistered    []AttendanceEntry `json:"unregistered"`
	NotCheckedIn    []AttendanceEntry `json:"not_checked_in"`
	CheckedInAbsent []AttendanceEntry `json:"checked_in_absent"`
}

// HasDiscrepancies reports whether any bucket is non-empty.
func (r *AttendanceReport) HasDiscrepancies() bool {
	return len(r.Unregistered)+len(r.NotCheckedIn)+len(r.CheckedInAbsent) > 0
}

// Text renders the report as a plain text block for chat or email delivery.
func (r *AttendanceReport) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Participants: %d, present: %d (threshold %.0f%% of mean %.0fs)\n",
		r.Participants, len(r.Present), r.Threshold*100, r.Baseline)

	for _, note := range r.Notes {
		b.WriteString(note.String())
		b.WriteByte('\n')
	}

	writeBucket := func(title string, entries []AttendanceEntry) {
		if len(entries) == 0 {
			return
		}
		fmt.Fprintf(&b, "\n%s:\n", title)
		for _, e := range entries {
			fmt.Fprintf(&b, "  %s <%s>\n", e.Name, e.Email)
		}
	}
	writeBucket("Present but not registered", r.Unregistered)
	writeBucket("Present but not checked in", r.NotCheckedIn)
	writeBucket("Checked in but absent", r.CheckedInAbsent)

	if !r.HasDiscrepancies() {
		b.WriteString("\nNo discrepancies.\n")
	}
	return b.String()
}

// Value stores the report as JSONB.
func (r *AttendanceReport) Value() (driver.Value, error) {
	if r == nil {
		return nil, nil
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal attendance report: %w", err)
	}
	return data, nil
}

// Scan decodes a JSONB column.
func (r *AttendanceReport) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*r = AttendanceReport{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported attendance report type %T", value)
	}
	if len(data) == 0 {
		*r = AttendanceReport{}
		return nil
	}
	return json.Unmarshal(data, r)
}
