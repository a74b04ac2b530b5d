package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/workshop-orchestrator/pkg/errors"
	"github.com/noah-isme/workshop-orchestrator/pkg/eventbrite"
	"github.com/noah-isme/workshop-orchestrator/pkg/export"
)

type certificateRecorder struct {
	rendered []export.Certificate
}

func (r *certificateRecorder) Render(cert export.Certificate) ([]byte, error) {
	r.rendered = append(r.rendered, cert)
	return []byte("%PDF-1.3 " + cert.Email), nil
}

func newCertificateEvents() *eventbriteStub {
	return &eventbriteStub{
		events: map[string]*eventbrite.Event{
			"ev-1": {
				ID:    "ev-1",
				Start: eventbrite.DateTime{UTC: "2024-03-05T13:00:00Z"},
				End:   eventbrite.DateTime{UTC: "2024-03-05T15:30:00Z"},
			},
		},
		attendees: map[string][]eventbrite.Attendee{
			"ev-1": {
				attendee("dan@x.org", "Dan", "Wu", "Checked In"),
				attendee("bob@x.org", "Bob", "Ray", "Attending"),
				attendee("ann@x.org", "Ann", "Lee", "Attended"),
			},
		},
	}
}

func TestCertificateServiceGenerate(t *testing.T) {
	sheet := newSheetStub(
		sessionRow("PY101-2024", "2024-03-05 13:00:00", "2024-03-05 16:00:00", map[string]string{"eventbrite_id": "ev-1"}),
		sessionRow("PY101-2024", "2024-03-06 13:00:00", "2024-03-06 16:00:00", map[string]string{"eventbrite_id": "ev-1"}),
	)
	recorder := &certificateRecorder{}
	exporter := newExportServiceForTest(t)
	svc := NewCertificateService(newCalendarSourceForTest(sheet), newCertificateEvents(), recorder, exporter, CertificateConfig{Issuer: "Calcul Québec"}, nil, nil)

	resp, err := svc.Generate(context.Background(), "PY101-2024", "")
	require.NoError(t, err)

	assert.Equal(t, "en", resp.Language)
	require.Len(t, resp.Certificates, 2)
	assert.Equal(t, "ann@x.org", resp.Certificates[0].Email)
	assert.Equal(t, "Ann Lee", resp.Certificates[0].Name)
	assert.Equal(t, "Attestation_CQ_ANN_LEE_o-Ann.pdf", resp.Certificates[0].Filename)
	assert.Equal(t, "dan@x.org", resp.Certificates[1].Email)

	require.Len(t, recorder.rendered, 2)
	assert.Equal(t, 6.0, recorder.rendered[0].Hours)
	assert.Equal(t, "Intro to Python", recorder.rendered[0].Workshop)
	assert.Equal(t, time.Date(2024, 3, 5, 13, 0, 0, 0, time.UTC), recorder.rendered[0].Date)
	assert.Equal(t, "Calcul Québec", recorder.rendered[0].Issuer)

	link := resp.Certificates[0]
	require.True(t, strings.HasPrefix(link.URL, "/api/v1/export/"))
	tok, err := exporter.ParseToken(strings.TrimPrefix(link.URL, "/api/v1/export/"), false)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(tok.OwnerID, CertificateOwnerPrefix))
	assert.Equal(t, "certificates/PY101-2024/Attestation_CQ_ANN_LEE_o-Ann.pdf", tok.Path)
}

func TestCertificateServiceFallsBackToEventDuration(t *testing.T) {
	sheet := newSheetStub(sessionRow("PY101-2024", "2024-03-05 13:00:00", "2024-03-05 16:00:00", map[string]string{"eventbrite_id": "ev-1", "hours": ""}))
	recorder := &certificateRecorder{}
	svc := NewCertificateService(newCalendarSourceForTest(sheet), newCertificateEvents(), recorder, newExportServiceForTest(t), CertificateConfig{}, nil, nil)

	_, err := svc.Generate(context.Background(), "PY101-2024", "fr")
	require.NoError(t, err)
	require.NotEmpty(t, recorder.rendered)
	assert.Equal(t, 2.5, recorder.rendered[0].Hours)
	assert.Equal(t, "fr", recorder.rendered[0].Language)
}

func TestCertificateServiceValidation(t *testing.T) {
	sheet := newSheetStub(
		sessionRow("PY101-2024", "2024-03-05 13:00:00", "2024-03-05 16:00:00", map[string]string{"eventbrite_id": "ev-1"}),
		sessionRow("R201-2024", "2024-03-07 13:00:00", "2024-03-07 16:00:00", nil),
	)
	svc := NewCertificateService(newCalendarSourceForTest(sheet), newCertificateEvents(), &certificateRecorder{}, newExportServiceForTest(t), CertificateConfig{}, nil, nil)

	_, err := svc.Generate(context.Background(), "PY101-2024", "de")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Generate(context.Background(), "R201-2024", "en")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}
