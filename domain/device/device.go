package device

// Capability classifies the host device for acquisition purposes.
// Produced by Probe; consumed by BuildConstraints and UI sizing.
type Capability struct {
	IsMobile bool
	HasTouch bool
}

// Signals are the raw host hints Probe classifies. All fields are optional;
// the zero value describes a pointer-driven desktop.
type Signals struct {
	CoarsePointer bool // primary pointer is imprecise (finger)
	TouchPoints   int  // reported touch contact points
	ViewportWidth int  // CSS-pixel-equivalent width, 0 if unknown
}

// Viewports at or below this width classify as mobile form factor.
const mobileWidthCutoff = 820

// Probe classifies host signals into a capability descriptor. Pure, never fails.
func Probe(s Signals) Capability {
	touch := s.CoarsePointer || s.TouchPoints > 0
	mobile := touch && (s.ViewportWidth == 0 || s.ViewportWidth <= mobileWidthCutoff)
	return Capability{IsMobile: mobile, HasTouch: touch}
}

// Facing is the preferred sensor direction for stream acquisition.
type Facing int

const (
	FacingNone Facing = iota // no preference
	FacingUser
	FacingEnvironment
)

func (f Facing) String() string {
	switch f {
	case FacingUser:
		return "user"
	case FacingEnvironment:
		return "environment"
	default:
		return "none"
	}
}

// Constraints parameterize stream acquisition: preferred facing direction and
// resolution hints. Hints are targets, not hard requirements.
type Constraints struct {
	Facing Facing
	Width  int
	Height int
}

// deviceClass keys the constraint table.
type deviceClass int

const (
	classDesktop deviceClass = iota
	classMobile
)

// Branching table, not a hierarchy: each device class maps to one parameter set.
var constraintTable = map[deviceClass]Constraints{
	classDesktop: {Facing: FacingNone, Width: 1920, Height: 1080},
	classMobile:  {Facing: FacingEnvironment, Width: 1280, Height: 720},
}

// BuildConstraints maps a capability descriptor to acquisition constraints.
// Deterministic, no I/O, no error path.
func BuildConstraints(c Capability) Constraints {
	if c.IsMobile {
		return constraintTable[classMobile]
	}
	return constraintTable[classDesktop]
}
