package content

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicd/clinicd/internal/platform/apperror"
)

const maxTopicLen = 200

type Service struct {
	repo      Repository
	generator TextGenerator
	model     string
	logger    zerolog.Logger
}

func NewService(repo Repository, generator TextGenerator, model string, logger zerolog.Logger) *Service {
	return &Service{repo: repo, generator: generator, model: model, logger: logger}
}

// Generate produces patient education text for a topic and stores it. The
// generated body is persisted before being returned so a list call always
// sees what the caller saw.
func (s *Service) Generate(ctx context.Context, patientID, requestedBy uuid.UUID, topic string) (*HealthContent, error) {
	topic = strings.TrimSpace(topic)
	if patientID == uuid.Nil {
		return nil, apperror.Validation("patient_id is required")
	}
	if topic == "" {
		return nil, apperror.Validation("topic is required")
	}
	if len(topic) > maxTopicLen {
		return nil, apperror.Validation("topic must be at most %d characters", maxTopicLen)
	}

	prompt := fmt.Sprintf(
		"Write a short patient education handout about %q. Use plain language, short paragraphs, and end with when to seek medical help.",
		topic)
	body, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		s.logger.Error().Err(err).Str("topic", topic).Msg("content generation failed")
		return nil, err
	}

	hc := &HealthContent{
		PatientID:   patientID,
		Topic:       topic,
		Body:        body,
		Model:       s.model,
		GeneratedBy: requestedBy,
	}
	if err := s.repo.Create(ctx, hc); err != nil {
		return nil, err
	}
	return hc, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*HealthContent, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*HealthContent, error) {
	return s.repo.ListByPatient(ctx, patientID)
}
