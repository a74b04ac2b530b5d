package service

import (
	"sort"
	"strings"

	"github.com/noah-isme/workshop-orchestrator/internal/models"
	appErrors "github.com/noah-isme/workshop-orchestrator/pkg/errors"
)

// Reconciler compares webinar attendance with registration check-ins. It
// keeps no state between calls and is safe for concurrent use.
type Reconciler struct {
	threshold      float64
	ignoredDomains []string
}

// NewReconciler validates the presence threshold, which must be in (0, 1].
func NewReconciler(threshold float64, ignoredDomains []string) (*Reconciler, error) {
	if threshold <= 0 || threshold > 1 {
		return nil, appErrors.Clonef(appErrors.ErrConfig, "presence threshold %v must be in (0, 1]", threshold)
	}
	domains := make([]string, 0, len(ignoredDomains))
	for _, d := range ignoredDomains {
		d = strings.TrimLeft(strings.ToLower(strings.TrimSpace(d)), "@.")
		if d != "" {
			domains = append(domains, d)
		}
	}
	return &Reconciler{threshold: threshold, ignoredDomains: domains}, nil
}

// Threshold returns the configured presence threshold.
func (r *Reconciler) Threshold() float64 {
	return r.threshold
}

type participant struct {
	name     string
	duration int64
}

// Reconcile builds the discrepancy report for one session/event pair.
//
// Durations are summed per email and compared against threshold times the
// mean total; only participants strictly above it are present. Present
// emails missing from the check-ins are then matched by display name against
// every registrant, and a unique match replaces the webinar identity.
func (r *Reconciler) Reconcile(input models.ReconcileInput) (*models.AttendanceReport, error) {
	attendance := aggregateAttendance(input.ParticipantRecords)
	if len(attendance) == 0 {
		return nil, appErrors.Clone(appErrors.ErrEmptyDataset, "no webinar attendance records to reconcile")
	}

	var total int64
	for _, p := range attendance {
		total += p.duration
	}
	baseline := float64(total) / float64(len(attendance))
	cutoff := r.threshold * baseline

	present := make([]string, 0, len(attendance))
	presentSet := make(map[string]struct{}, len(attendance))
	for email, p := range attendance {
		// blank emails weigh on the baseline but cannot be reported
		if email == "" {
			continue
		}
		if float64(p.duration) > cutoff {
			present = append(present, email)
			presentSet[email] = struct{}{}
		}
	}
	sort.Strings(present)

	registrants := normaliseRegistrants(input.Registrants)
	checkedIn := normaliseRegistrants(input.CheckedIn)

	missing := newEmailList()
	for _, email := range present {
		if _, ok := checkedIn[email]; !ok {
			missing.add(email)
		}
	}
	shouldNot := make(map[string]struct{})
	for email := range checkedIn {
		if _, ok := presentSet[email]; !ok {
			shouldNot[email] = struct{}{}
		}
	}

	report := &models.AttendanceReport{
		Threshold:       r.threshold,
		Baseline:        baseline,
		Participants:    len(attendance),
		Present:         present,
		Notes:           []models.IdentityNote{},
		Unregistered:    []models.AttendanceEntry{},
		NotCheckedIn:    []models.AttendanceEntry{},
		CheckedInAbsent: []models.AttendanceEntry{},
	}

	for _, email := range missing.snapshot() {
		name := attendance[email].name
		match, ok := uniqueNameMatch(name, registrants)
		if !ok || match == email {
			continue
		}
		report.Notes = append(report.Notes, models.IdentityNote{Name: name, WebinarEmail: email, RegistrationEmail: match})
		if _, checked := checkedIn[match]; checked {
			missing.remove(email)
		} else {
			missing.replace(email, match)
		}
		delete(shouldNot, match)
	}

	trainers := make(map[string]struct{}, len(input.TrainerEmails))
	for _, e := range input.TrainerEmails {
		trainers[normaliseEmail(e)] = struct{}{}
	}

	for _, email := range missing.snapshot() {
		if _, ok := trainers[email]; ok {
			continue
		}
		if r.ignoredDomain(email) {
			continue
		}
		if reg, ok := registrants[email]; ok {
			report.NotCheckedIn = append(report.NotCheckedIn, models.AttendanceEntry{Name: reg.Name, Email: email})
		} else {
			report.Unregistered = append(report.Unregistered, models.AttendanceEntry{Name: attendance[email].name, Email: email})
		}
	}

	for email := range shouldNot {
		if reg, ok := registrants[email]; ok {
			report.CheckedInAbsent = append(report.CheckedInAbsent, models.AttendanceEntry{Name: reg.Name, Email: email})
		}
	}

	sortEntries(report.Unregistered)
	sortEntries(report.NotCheckedIn)
	sortEntries(report.CheckedInAbsent)
	return report, nil
}

func (r *Reconciler) ignoredDomain(email string) bool {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return false
	}
	domain := email[at+1:]
	for _, d := range r.ignoredDomains {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return true
		}
	}
	return false
}

// CheckedInSubset selects the registrants whose status is one of statuses.
func CheckedInSubset(registrants map[string]models.Registrant, statuses []string) map[string]models.Registrant {
	if len(statuses) == 0 {
		statuses = models.DefaultCheckedInStatuses
	}
	subset := make(map[string]models.Registrant)
	for email, reg := range registrants {
		if reg.HasStatus(statuses) {
			subset[email] = reg
		}
	}
	return subset
}

func aggregateAttendance(records []models.AttendanceRecord) map[string]participant {
	attendance := make(map[string]participant)
	for _, rec := range records {
		email := normaliseEmail(rec.UserEmail)
		p := attendance[email]
		// smallest non-empty name, independent of record order
		if rec.Name != "" && (p.name == "" || rec.Name < p.name) {
			p.name = rec.Name
		}
		p.duration += rec.Duration
		attendance[email] = p
	}
	return attendance
}

func normaliseRegistrants(in map[string]models.Registrant) map[string]models.Registrant {
	out := make(map[string]models.Registrant, len(in))
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		email := normaliseEmail(k)
		if email == "" {
			email = normaliseEmail(in[k].Email)
		}
		if email == "" {
			continue
		}
		if _, dup := out[email]; dup {
			continue
		}
		out[email] = in[k]
	}
	return out
}

// uniqueNameMatch finds the only registrant whose name is exactly name.
func uniqueNameMatch(name string, registrants map[string]models.Registrant) (string, bool) {
	if name == "" {
		return "", false
	}
	match := ""
	for email, reg := range registrants {
		if reg.Name != name {
			continue
		}
		if match != "" {
			return "", false
		}
		match = email
	}
	return match, match != ""
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func sortEntries(entries []models.AttendanceEntry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Email < entries[j].Email })
}

// emailList is an insertion-ordered set.
type emailList struct {
	order []string
	index map[string]struct{}
}

func newEmailList() *emailList {
	return &emailList{index: make(map[string]struct{})}
}

func (l *emailList) add(email string) {
	if _, ok := l.index[email]; ok {
		return
	}
	l.index[email] = struct{}{}
	l.order = append(l.order, email)
}

func (l *emailList) remove(email string) {
	if _, ok := l.index[email]; !ok {
		return
	}
	delete(l.index, email)
	for i, e := range l.order {
		if e == email {
			l.order = append(l.order[:i], l.order[i+1:]...)
			return
		}
	}
}

// replace swaps old for repl in place, or drops old when repl is already listed.
func (l *emailList) replace(old, repl string) {
	if _, ok := l.index[repl]; ok {
		l.remove(old)
		return
	}
	for i, e := range l.order {
		if e == old {
			l.order[i] = repl
			delete(l.index, old)
			l.index[repl] = struct{}{}
			return
		}
	}
}

func (l *emailList) snapshot() []string {
	return append([]string(nil), l.order...)
}
