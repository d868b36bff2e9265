package entities

import (
	"time"

	"assessment-backend/domain/core/valueobjects"
)

// ScoreEventInput is the caller-supplied part of a scoring event.
// Structured fields stay typed here; storage adapters serialize them.
type ScoreEventInput struct {
	SubcomponentID  string         `json:"subcomponentId" validate:"required,subcomponent"`
	OverallScore    int            `json:"overallScore" validate:"min=0,max=100"`
	DimensionScores map[string]int `json:"dimensionScores,omitempty" validate:"omitempty,max=32,dive,keys,required,max=100,endkeys,min=0,max=100"`
	Strengths       []string       `json:"strengths,omitempty" validate:"omitempty,max=50,dive,max=2000"`
	Weaknesses      []string       `json:"weaknesses,omitempty" validate:"omitempty,max=50,dive,max=2000"`
	Recommendations []string       `json:"recommendations,omitempty" validate:"omitempty,max=50,dive,max=2000"`
	SessionID       string         `json:"sessionId,omitempty" validate:"omitempty,max=128"`
	ActorID         string         `json:"actorId,omitempty" validate:"omitempty,max=128"`

	// CreatedAt is only set by backfills; zero means "now".
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// ScoreEvent is one immutable scoring of a subcomponent.
// It is created once by the score event store and never mutated.
type ScoreEvent struct {
	id              int64
	subcomponentID  valueobjects.SubcomponentID
	overallScore    int
	dimensionScores map[string]int
	strengths       []string
	weaknesses      []string
	recommendations []string
	sessionID       string
	actorID         string
	createdAt       time.Time
}

// NewScoreEvent validates an input and builds an unsaved event.
// The id and timestamp are assigned by the store through WithIdentity.
func NewScoreEvent(input ScoreEventInput) (*ScoreEvent, error) {
	subID, err := valueobjects.ParseSubcomponentID(input.SubcomponentID)
	if err != nil {
		return nil, err
	}
	if err := valueobjects.ValidateScore("overallScore", input.OverallScore); err != nil {
		return nil, err
	}
	if err := valueobjects.ValidateDimensionScores(input.DimensionScores); err != nil {
		return nil, err
	}

	return &ScoreEvent{
		subcomponentID:  subID,
		overallScore:    input.OverallScore,
		dimensionScores: copyDimensions(input.DimensionScores),
		strengths:       copyStrings(input.Strengths),
		weaknesses:      copyStrings(input.Weaknesses),
		recommendations: copyStrings(input.Recommendations),
		sessionID:       input.SessionID,
		actorID:         input.ActorID,
		createdAt:       input.CreatedAt.UTC(),
	}, nil
}

// ReconstructScoreEvent rebuilds a persisted event from storage
func ReconstructScoreEvent(
	id int64,
	subcomponentID valueobjects.SubcomponentID,
	overallScore int,
	dimensionScores map[string]int,
	strengths, weaknesses, recommendations []string,
	sessionID, actorID string,
	createdAt time.Time,
) *ScoreEvent {
	return &ScoreEvent{
		id:              id,
		subcomponentID:  subcomponentID,
		overallScore:    overallScore,
		dimensionScores: copyDimensions(dimensionScores),
		strengths:       copyStrings(strengths),
		weaknesses:      copyStrings(weaknesses),
		recommendations: copyStrings(recommendations),
		sessionID:       sessionID,
		actorID:         actorID,
		createdAt:       createdAt.UTC(),
	}
}

// WithIdentity returns a copy carrying the store-assigned id and timestamp
func (e *ScoreEvent) WithIdentity(id int64, createdAt time.Time) *ScoreEvent {
	clone := *e
	clone.id = id
	clone.createdAt = createdAt.UTC()
	return &clone
}

// Getters

func (e *ScoreEvent) ID() int64                                   { return e.id }
func (e *ScoreEvent) SubcomponentID() valueobjects.SubcomponentID { return e.subcomponentID }
func (e *ScoreEvent) BlockID() valueobjects.BlockID               { return e.subcomponentID.Block() }
func (e *ScoreEvent) OverallScore() int                           { return e.overallScore }
func (e *ScoreEvent) SessionID() string                           { return e.sessionID }
func (e *ScoreEvent) ActorID() string                             { return e.actorID }
func (e *ScoreEvent) CreatedAt() time.Time                        { return e.createdAt }
func (e *ScoreEvent) DimensionScores() map[string]int             { return copyDimensions(e.dimensionScores) }
func (e *ScoreEvent) Strengths() []string                         { return copyStrings(e.strengths) }
func (e *ScoreEvent) Weaknesses() []string                        { return copyStrings(e.weaknesses) }
func (e *ScoreEvent) Recommendations() []string                   { return copyStrings(e.recommendations) }

// HasRequestedTimestamp reports whether the caller supplied a backfill timestamp
func (e *ScoreEvent) HasRequestedTimestamp() bool {
	return !e.createdAt.IsZero()
}

// After reports whether e sorts after other in (createdAt, id) order.
// The latest event of a subcomponent is the one no other event sorts after.
func (e *ScoreEvent) After(other *ScoreEvent) bool {
	if other == nil {
		return true
	}
	if !e.createdAt.Equal(other.createdAt) {
		return e.createdAt.After(other.createdAt)
	}
	return e.id > other.id
}

// ScoreEventView is the serializable form used by the HTTP and CLI adapters
type ScoreEventView struct {
	ID              int64          `json:"id"`
	SubcomponentID  string         `json:"subcomponentId"`
	BlockID         string         `json:"blockId"`
	OverallScore    int            `json:"overallScore"`
	DimensionScores map[string]int `json:"dimensionScores"`
	Strengths       []string       `json:"strengths"`
	Weaknesses      []string       `json:"weaknesses"`
	Recommendations []string       `json:"recommendations"`
	SessionID       string         `json:"sessionId,omitempty"`
	ActorID         string         `json:"actorId,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
}

// View converts the event to its serializable form
func (e *ScoreEvent) View() ScoreEventView {
	return ScoreEventView{
		ID:              e.id,
		SubcomponentID:  e.subcomponentID.String(),
		BlockID:         e.BlockID().String(),
		OverallScore:    e.overallScore,
		DimensionScores: e.DimensionScores(),
		Strengths:       e.Strengths(),
		Weaknesses:      e.Weaknesses(),
		Recommendations: e.Recommendations(),
		SessionID:       e.sessionID,
		ActorID:         e.actorID,
		CreatedAt:       e.createdAt,
	}
}

func copyDimensions(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
