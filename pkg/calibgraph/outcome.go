package calibgraph

import "fmt"

// Outcome is the per-target result a vertex reports after it runs.
type Outcome int

const (
	// OutcomeSuccessful marks a target the procedure calibrated.
	OutcomeSuccessful Outcome = iota
	// OutcomeFailed marks a target the procedure could not calibrate.
	OutcomeFailed
)

// String returns "successful" or "failed".
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccessful:
		return "successful"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (o Outcome) MarshalText() ([]byte, error) {
	if o != OutcomeSuccessful && o != OutcomeFailed {
		return nil, fmt.Errorf("invalid outcome %d", int(o))
	}
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Outcome) UnmarshalText(text []byte) error {
	parsed, err := ParseOutcome(string(text))
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// ParseOutcome parses the text form produced by Outcome.String.
func ParseOutcome(s string) (Outcome, error) {
	switch s {
	case "successful":
		return OutcomeSuccessful, nil
	case "failed":
		return OutcomeFailed, nil
	default:
		return 0, fmt.Errorf("unknown outcome %q", s)
	}
}
