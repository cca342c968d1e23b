// Package hazard provides read access to reported hazards around a trip corridor.
package hazard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidSeverity is returned when a severity string is not one of the known levels.
var ErrInvalidSeverity = errors.New("invalid hazard severity")

// Severity is the ordered danger level of a hazard.
type Severity int

// Severity levels, ordered from least to most dangerous.
const (
	SeverityLow Severity = iota + 1
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

var severityNames = map[Severity]string{
	SeverityLow:      "LOW",
	SeverityMedium:   "MEDIUM",
	SeverityHigh:     "HIGH",
	SeverityCritical: "CRITICAL",
}

func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

// ParseSeverity parses a case-insensitive severity name.
func ParseSeverity(raw string) (Severity, error) {
	upper := strings.ToUpper(strings.TrimSpace(raw))
	for s, name := range severityNames {
		if name == upper {
			return s, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidSeverity, raw)
}

// MarshalText encodes the severity as its upper-case name.
func (s Severity) MarshalText() ([]byte, error) {
	name, ok := severityNames[s]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSeverity, int(s))
	}
	return []byte(name), nil
}

// UnmarshalText decodes an upper- or lower-case severity name.
func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Summary is an immutable snapshot of a hazard taken at request time.
type Summary struct {
	ID                   string   `json:"id"`
	Latitude             float64  `json:"latitude"`
	Longitude            float64  `json:"longitude"`
	Severity             Severity `json:"severity"`
	Description          string   `json:"description"`
	AffectedRadiusMeters float64  `json:"affectedRadiusMeters"`
	Address              string   `json:"address,omitempty"`
}

// DefaultAffectedRadiusMeters is used for hazards reported without a radius.
const DefaultAffectedRadiusMeters = 50.0

// Status is the moderation state of a reported hazard.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusActive   Status = "ACTIVE"
	StatusResolved Status = "RESOLVED"
	StatusExpired  Status = "EXPIRED"
)

// Source supplies active hazards inside a corridor.
type Source interface {
	// FindActiveNear returns active, unexpired hazards whose location lies inside the corridor,
	// nearest to the corridor center first.
	FindActiveNear(ctx context.Context, corridor Corridor, at time.Time) ([]Summary, error)
}
