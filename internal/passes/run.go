package passes

// Status tags the outcome of a successful Run.
type Status int

const (
	// StatusEmpty means the window was valid but contained no passes.
	StatusEmpty Status = iota
	// StatusPasses means at least one pass was found.
	StatusPasses
)

func (s Status) String() string {
	if s == StatusPasses {
		return "passes"
	}
	return "empty"
}

// MarshalText encodes the status as its name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Described pairs a pass with its summary.
type Described struct {
	Pass    Pass
	Summary Summary
}

// Result is the outcome of Run.
type Result struct {
	Status Status
	Passes []Described
}

// Empty reports whether no passes were found.
func (r Result) Empty() bool { return r.Status == StatusEmpty }

// Run segments the series and describes every pass. Invalid input returns
// an error; a valid window with nothing above the threshold returns a Result
// with StatusEmpty.
func Run(s *Series, minElevationDeg float64) (Result, error) {
	found, err := Segment(s, minElevationDeg)
	if err != nil {
		return Result{}, err
	}
	if len(found) == 0 {
		return Result{Status: StatusEmpty}, nil
	}

	described := make([]Described, 0, len(found))
	for _, p := range found {
		sum, err := Describe(p)
		if err != nil {
			return Result{}, err
		}
		described = append(described, Described{Pass: p, Summary: sum})
	}
	return Result{Status: StatusPasses, Passes: described}, nil
}
