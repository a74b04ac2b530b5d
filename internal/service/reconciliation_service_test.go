package service

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/workshop-orchestrator/internal/models"
	appErrors "github.com/noah-isme/workshop-orchestrator/pkg/errors"
)

func rec(email, name string, duration int64) models.AttendanceRecord {
	return models.AttendanceRecord{UserEmail: email, Name: name, Duration: duration}
}

func registrant(email, name, status string) models.Registrant {
	return models.Registrant{Email: email, Name: name, Status: status}
}

func registrantsOf(regs ...models.Registrant) map[string]models.Registrant {
	out := make(map[string]models.Registrant, len(regs))
	for _, r := range regs {
		out[r.Email] = r
	}
	return out
}

func newTestReconciler(t *testing.T, domains ...string) *Reconciler {
	t.Helper()
	r, err := NewReconciler(0.5, domains)
	require.NoError(t, err)
	return r
}

func TestNewReconcilerRejectsThresholdOutOfRange(t *testing.T) {
	for _, threshold := range []float64{0, -0.1, 1.5} {
		_, err := NewReconciler(threshold, nil)
		require.ErrorIs(t, err, appErrors.ErrConfig, "threshold %v", threshold)
	}
	_, err := NewReconciler(1, nil)
	require.NoError(t, err)
}

func TestReconcileUsesMeanBaseline(t *testing.T) {
	report, err := newTestReconciler(t).Reconcile(models.ReconcileInput{
		ParticipantRecords: []models.AttendanceRecord{
			rec("a@x", "Ann", 100),
			rec("a@x", "Ann", 50),
			rec("b@x", "Bob", 10),
		},
	})
	require.NoError(t, err)
	assert.InDelta(t, 80.0, report.Baseline, 1e-9)
	assert.Equal(t, 2, report.Participants)
	assert.Equal(t, []string{"a@x"}, report.Present)
	assert.Equal(t, []models.AttendanceEntry{{Name: "Ann", Email: "a@x"}}, report.Unregistered)
}

func TestReconcileExcludesExactThreshold(t *testing.T) {
	report, err := newTestReconciler(t).Reconcile(models.ReconcileInput{
		ParticipantRecords: []models.AttendanceRecord{rec("a@x", "A", 30), rec("b@x", "B", 10)},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a@x"}, report.Present)
}

func TestReconcileNoDiscrepancies(t *testing.T) {
	regs := registrantsOf(registrant("a@x", "Ann", "Checked In"))
	report, err := newTestReconciler(t).Reconcile(models.ReconcileInput{
		ParticipantRecords: []models.AttendanceRecord{rec("a@x", "Ann", 100)},
		Registrants:        regs,
		CheckedIn:          CheckedInSubset(regs, nil),
	})
	require.NoError(t, err)
	assert.False(t, report.HasDiscrepancies())
	assert.Contains(t, report.Text(), "No discrepancies.")
}

func TestReconcileNameMatchMovesToNotCheckedIn(t *testing.T) {
	regs := registrantsOf(registrant("w@x", "Sam Lee", "Attending"))
	report, err := newTestReconciler(t).Reconcile(models.ReconcileInput{
		ParticipantRecords: []models.AttendanceRecord{rec("z@x", "Sam Lee", 100)},
		Registrants:        regs,
		CheckedIn:          CheckedInSubset(regs, nil),
	})
	require.NoError(t, err)
	assert.Empty(t, report.Unregistered)
	assert.Equal(t, []models.AttendanceEntry{{Name: "Sam Lee", Email: "w@x"}}, report.NotCheckedIn)
	require.Len(t, report.Notes, 1)
	assert.Equal(t, models.IdentityNote{Name: "Sam Lee", WebinarEmail: "z@x", RegistrationEmail: "w@x"}, report.Notes[0])
}

func TestReconcileNameMatchAlreadyCheckedIn(t *testing.T) {
	regs := registrantsOf(registrant("w@x", "Sam Lee", "checked in"))
	report, err := newTestReconciler(t).Reconcile(models.ReconcileInput{
		ParticipantRecords: []models.AttendanceRecord{rec("z@x", "Sam Lee", 100)},
		Registrants:        regs,
		CheckedIn:          CheckedInSubset(regs, nil),
	})
	require.NoError(t, err)
	assert.False(t, report.HasDiscrepancies())
	assert.Len(t, report.Notes, 1)
}

func TestReconcileAmbiguousNameMakesNoSubstitution(t *testing.T) {
	regs := registrantsOf(
		registrant("w1@x", "Sam Lee", "Attending"),
		registrant("w2@x", "Sam Lee", "Attending"),
	)
	report, err := newTestReconciler(t).Reconcile(models.ReconcileInput{
		ParticipantRecords: []models.AttendanceRecord{rec("z@x", "Sam Lee", 100)},
		Registrants:        regs,
		CheckedIn:          CheckedInSubset(regs, nil),
	})
	require.NoError(t, err)
	assert.Empty(t, report.Notes)
	assert.Equal(t, []models.AttendanceEntry{{Name: "Sam Lee", Email: "z@x"}}, report.Unregistered)
}

func TestReconcileExclusions(t *testing.T) {
	report, err := newTestReconciler(t, "calculquebec.ca").Reconcile(models.ReconcileInput{
		ParticipantRecords: []models.AttendanceRecord{
			rec("j@calculquebec.ca", "Staff", 100),
			rec("k@sub.calculquebec.ca", "Staff 2", 100),
			rec("trainer@uni.ca", "Trainer", 100),
			rec("guest@x", "Guest", 100),
		},
		TrainerEmails: []string{"Trainer@Uni.ca"},
	})
	require.NoError(t, err)
	assert.Equal(t, []models.AttendanceEntry{{Name: "Guest", Email: "guest@x"}}, report.Unregistered)
}

func TestReconcileCheckedInButAbsent(t *testing.T) {
	regs := registrantsOf(
		registrant("a@x", "Ann", "checked in"),
		registrant("c@x", "Cy", "Attended"),
		registrant("d@x", "Di", "Attending"),
	)
	report, err := newTestReconciler(t).Reconcile(models.ReconcileInput{
		ParticipantRecords: []models.AttendanceRecord{
			rec("a@x", "Ann", 100),
			rec("c@x", "Cy", 5),
			rec("d@x", "Di", 120),
		},
		Registrants: regs,
		CheckedIn:   CheckedInSubset(regs, nil),
	})
	require.NoError(t, err)
	assert.Equal(t, []models.AttendanceEntry{{Name: "Cy", Email: "c@x"}}, report.CheckedInAbsent)
	assert.Equal(t, []models.AttendanceEntry{{Name: "Di", Email: "d@x"}}, report.NotCheckedIn)
	assert.Empty(t, report.Unregistered)
}

func TestReconcileIsOrderIndependent(t *testing.T) {
	records := []models.AttendanceRecord{
		rec("a@x", "Ann", 100), rec("b@x", "Bob", 10), rec("a@x", "Ann", 50),
		rec("c@x", "Cy", 70), rec("d@x", "Sam Lee", 90), rec("b@x", "Bob", 5),
		rec("e@x", "Eve", 200),
	}
	regs := registrantsOf(
		registrant("a@x", "Ann", "checked in"),
		registrant("w@x", "Sam Lee", "Attending"),
		registrant("f@x", "Fay", "attended"),
	)
	input := models.ReconcileInput{Registrants: regs, CheckedIn: CheckedInSubset(regs, nil)}
	reconciler := newTestReconciler(t)

	input.ParticipantRecords = records
	want, err := reconciler.Reconcile(input)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		shuffled := append([]models.AttendanceRecord(nil), records...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		input.ParticipantRecords = shuffled
		got, err := reconciler.Reconcile(input)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestReconcileEmptyDataset(t *testing.T) {
	_, err := newTestReconciler(t).Reconcile(models.ReconcileInput{})
	require.ErrorIs(t, err, appErrors.ErrEmptyDataset)
}

func TestReconcileNormalisesEmails(t *testing.T) {
	regs := map[string]models.Registrant{" A@X ": registrant("A@X", "Ann", "Checked In")}
	report, err := newTestReconciler(t).Reconcile(models.ReconcileInput{
		ParticipantRecords: []models.AttendanceRecord{rec("a@x", "Ann", 60), rec("A@x ", "Ann", 40)},
		Registrants:        regs,
		CheckedIn:          CheckedInSubset(regs, nil),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Participants)
	assert.False(t, report.HasDiscrepancies())
}

func TestReconcileBlankEmailCountsTowardBaseline(t *testing.T) {
	report, err := newTestReconciler(t).Reconcile(models.ReconcileInput{
		ParticipantRecords: []models.AttendanceRecord{rec("", "Guest", 1000), rec("a@x", "Ann", 100), rec("  ", "Guest", 0)},
	})
	require.NoError(t, err)
	assert.InDelta(t, 550.0, report.Baseline, 1e-9)
	assert.Equal(t, 2, report.Participants)
	assert.Empty(t, report.Present)
	assert.Empty(t, report.Unregistered)

	report, err = newTestReconciler(t).Reconcile(models.ReconcileInput{
		ParticipantRecords: []models.AttendanceRecord{rec("", "Guest", 100), rec("a@x", "Ann", 100)},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a@x"}, report.Present)
	assert.Equal(t, []models.AttendanceEntry{{Name: "Ann", Email: "a@x"}}, report.Unregistered)
}

func TestReconcileNameMatchIsExact(t *testing.T) {
	regs := registrantsOf(registrant("w@x", "Sam Lee", "Attending"))
	report, err := newTestReconciler(t).Reconcile(models.ReconcileInput{
		ParticipantRecords: []models.AttendanceRecord{rec("z@x", "sam lee", 100)},
		Registrants:        regs,
	})
	require.NoError(t, err)
	assert.Empty(t, report.Notes)
	assert.Equal(t, []models.AttendanceEntry{{Name: "sam lee", Email: "z@x"}}, report.Unregistered)
}
