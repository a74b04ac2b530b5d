package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/noah-isme/workshop-orchestrator/internal/models"
	"github.com/noah-isme/workshop-orchestrator/internal/repository"
	"github.com/noah-isme/workshop-orchestrator/internal/service"
	"github.com/noah-isme/workshop-orchestrator/pkg/eventbrite"
	"github.com/noah-isme/workshop-orchestrator/pkg/export"
	"github.com/noah-isme/workshop-orchestrator/pkg/zoom"
)

type options struct {
	participantsPath string
	attendeesPath    string
	trainersPath     string
	courseID         string
	threshold        float64
	ignoredDomains   string
	statuses         string
	format           string
	outPath          string
}

// Reconciles exported webinar participants against exported registration
// attendees without touching the live platforms.
func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		log.Fatalf("attendance audit failed: %v", err)
	}
}

func run(args []string, stdout io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}

	var participants []zoom.Participant
	if err := readJSON(opts.participantsPath, &participants); err != nil {
		return fmt.Errorf("participants: %w", err)
	}
	var attendees []eventbrite.Attendee
	if err := readJSON(opts.attendeesPath, &attendees); err != nil {
		return fmt.Errorf("attendees: %w", err)
	}

	var trainerEmails []string
	if opts.trainersPath != "" {
		trainers, err := repository.LoadTrainerFile(opts.trainersPath)
		if err != nil {
			return err
		}
		trainerEmails = trainers.Emails()
	}

	reconciler, err := service.NewReconciler(opts.threshold, splitList(opts.ignoredDomains))
	if err != nil {
		return err
	}
	statuses := splitList(opts.statuses)
	registrants := service.RegistrantsFromAttendees(attendees, statuses)
	report, err := reconciler.Reconcile(models.ReconcileInput{
		ParticipantRecords: service.AttendanceRecordsFromParticipants(participants),
		Registrants:        registrants,
		CheckedIn:          service.CheckedInSubset(registrants, statuses),
		TrainerEmails:      trainerEmails,
	})
	if err != nil {
		return err
	}

	out := stdout
	if opts.outPath != "" {
		file, err := os.Create(opts.outPath)
		if err != nil {
			return err
		}
		defer file.Close()
		out = file
	}
	return write(out, opts, report)
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("attendance_audit", flag.ContinueOnError)
	fs.StringVar(&opts.participantsPath, "participants", "", "JSON array of webinar participants (Zoom report export)")
	fs.StringVar(&opts.attendeesPath, "attendees", "", "JSON array of registration attendees (Eventbrite export)")
	fs.StringVar(&opts.trainersPath, "trainers", "", "Trainer directory YAML; its emails are never reported")
	fs.StringVar(&opts.courseID, "course", "offline", "Course id printed in rendered documents")
	fs.Float64Var(&opts.threshold, "threshold", 0.5, "Presence threshold as a fraction of the mean duration")
	fs.StringVar(&opts.ignoredDomains, "ignore-domains", "", "Comma separated email domains to leave out")
	fs.StringVar(&opts.statuses, "checked-in-statuses", "checked in,attended", "Comma separated registration statuses meaning checked in")
	fs.StringVar(&opts.format, "format", "text", "Output format: text, json, csv or pdf")
	fs.StringVar(&opts.outPath, "out", "", "Write to this file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.participantsPath == "" || opts.attendeesPath == "" {
		return opts, fmt.Errorf("-participants and -attendees are required")
	}
	switch opts.format {
	case "text", "json", "csv", "pdf":
	default:
		return opts, fmt.Errorf("unknown format %q", opts.format)
	}
	return opts, nil
}

func write(out io.Writer, opts options, report *models.AttendanceReport) error {
	switch opts.format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "csv", "pdf":
		doc := service.AuditDocument(&models.AuditRun{CourseID: opts.courseID, EventbriteID: "-", ZoomID: "-"}, report)
		var payload []byte
		var err error
		if opts.format == "csv" {
			payload, err = export.NewCSVExporter().Render(doc)
		} else {
			payload, err = export.NewPDFExporter().Render(doc)
		}
		if err != nil {
			return err
		}
		_, err = out.Write(payload)
		return err
	default:
		_, err := io.WriteString(out, report.Text())
		return err
	}
}

func readJSON(path string, dest interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
