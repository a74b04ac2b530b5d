package repository

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/noah-isme/workshop-orchestrator/internal/models"
	appErrors "github.com/noah-isme/workshop-orchestrator/pkg/errors"
)

// TrainerRepository is the read-only trainer directory, keyed by trainer key.
type TrainerRepository struct {
	trainers map[string]models.Trainer
}

// LoadTrainerFile reads the YAML trainer directory at path.
func LoadTrainerFile(path string) (*TrainerRepository, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrConfig.Code, appErrors.ErrConfig.Status, fmt.Sprintf("open trainer directory %s", path))
	}
	defer file.Close() //nolint:errcheck
	return LoadTrainers(file)
}

// LoadTrainers decodes a YAML mapping of trainer key to trainer.
func LoadTrainers(r io.Reader) (*TrainerRepository, error) {
	raw := map[string]models.Trainer{}
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil && err != io.EOF {
		return nil, appErrors.Wrap(err, appErrors.ErrConfig.Code, appErrors.ErrConfig.Status, "decode trainer directory")
	}
	return NewTrainerRepository(raw)
}

// NewTrainerRepository builds the directory from decoded entries.
func NewTrainerRepository(entries map[string]models.Trainer) (*TrainerRepository, error) {
	trainers := make(map[string]models.Trainer, len(entries))
	for key, t := range entries {
		if strings.TrimSpace(t.Email) == "" {
			return nil, appErrors.Clonef(appErrors.ErrConfig, "trainer %q has no email", key)
		}
		t.Key = key
		trainers[key] = t
	}
	return &TrainerRepository{trainers: trainers}, nil
}

// Get returns the trainer for key.
func (r *TrainerRepository) Get(key string) (models.Trainer, error) {
	t, ok := r.trainers[strings.TrimSpace(key)]
	if !ok {
		return models.Trainer{}, appErrors.Clonef(appErrors.ErrNotFound, "trainer %q not found", key)
	}
	return t, nil
}

// Keys lists trainer keys alphabetically.
func (r *TrainerRepository) Keys() []string {
	keys := make([]string, 0, len(r.trainers))
	for k := range r.trainers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (r *TrainerRepository) FullName(key string) (string, error) {
	t, err := r.Get(key)
	if err != nil {
		return "", err
	}
	return t.FullName(), nil
}

func (r *TrainerRepository) ZoomEmail(key string) (string, error) {
	return r.platformEmail(key, models.PlatformZoom)
}

func (r *TrainerRepository) SlackEmail(key string) (string, error) {
	return r.platformEmail(key, models.PlatformSlack)
}

func (r *TrainerRepository) CalendarEmail(key string) (string, error) {
	return r.platformEmail(key, models.PlatformCalendar)
}

func (r *TrainerRepository) platformEmail(key string, p models.Platform) (string, error) {
	t, err := r.Get(key)
	if err != nil {
		return "", err
	}
	return t.PlatformEmail(p), nil
}

// Emails returns every primary and override address, lower-cased and sorted.
// The reconciler uses it to keep trainers out of attendance findings.
func (r *TrainerRepository) Emails() []string {
	seen := make(map[string]struct{})
	for _, t := range r.trainers {
		for _, e := range []string{t.Email, t.ZoomEmail, t.SlackEmail, t.CalendarEmail} {
			if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
				seen[e] = struct{}{}
			}
		}
	}
	emails := make([]string, 0, len(seen))
	for e := range seen {
		emails = append(emails, e)
	}
	sort.Strings(emails)
	return emails
}
