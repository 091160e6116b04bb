package profile

// FieldState distinguishes "never attempted" from "attempted, no usable
// value" from "value held". Keeping the first two separate lets extraction
// retry without ever clobbering a confirmed value.
type FieldState int

const (
	// Unset means extraction was never attempted for this field.
	Unset FieldState = iota
	// Unknown means extraction was attempted and produced nothing usable.
	Unknown
	// Held means the field holds a confirmed value.
	Held
)

// Field is a three-valued visitor attribute.
type Field struct {
	state FieldState
	value string
}

// Value constructs a Field holding v. An empty v yields Unknown.
func Value(v string) Field {
	if v == "" {
		return Field{state: Unknown}
	}
	return Field{state: Held, value: v}
}

// State reports the field's current state.
func (f Field) State() FieldState { return f.state }

// IsSet reports whether the field holds a confirmed value.
func (f Field) IsSet() bool { return f.state == Held }

// Get returns the held value, or "" when no value is held.
func (f Field) Get() string {
	if f.state != Held {
		return ""
	}
	return f.value
}

// String renders the field for logs and snapshots.
func (f Field) String() string {
	switch f.state {
	case Held:
		return f.value
	case Unknown:
		return "<unknown>"
	default:
		return "<unset>"
	}
}

// FieldName identifies one of the tracked visitor attributes.
type FieldName string

const (
	Name          FieldName = "name"
	Purpose       FieldName = "purpose"
	ContactPerson FieldName = "contact_person"
	ThreatLevel   FieldName = "threat_level"
	Affiliation   FieldName = "affiliation"
)

// Order is the fixed priority in which missing fields are questioned.
var Order = []FieldName{Name, Purpose, ContactPerson, ThreatLevel, Affiliation}

// Profile is the per-visitor record assembled over a session.
type Profile struct {
	Name          Field
	Purpose       Field
	ContactPerson Field
	ThreatLevel   Field
	Affiliation   Field

	IDVerified    bool
	Authenticated bool
	// EmployeeName is set when the visitor authenticated as a known
	// employee; used for door authorization and personalized greetings.
	EmployeeName string
}

// Field returns the named field. Unknown names return a zero Field.
func (p *Profile) Field(name FieldName) Field {
	switch name {
	case Name:
		return p.Name
	case Purpose:
		return p.Purpose
	case ContactPerson:
		return p.ContactPerson
	case ThreatLevel:
		return p.ThreatLevel
	case Affiliation:
		return p.Affiliation
	}
	return Field{}
}

// Set assigns a value to the named field. A field already holding a value
// is never overwritten; the profile must be reset first.
func (p *Profile) Set(name FieldName, f Field) {
	target := p.fieldRef(name)
	if target == nil {
		return
	}
	if target.IsSet() {
		return
	}
	*target = f
}

// MarkUnknown records a failed extraction attempt for the named field.
// A held value is untouched.
func (p *Profile) MarkUnknown(name FieldName) {
	target := p.fieldRef(name)
	if target == nil || target.IsSet() {
		return
	}
	target.state = Unknown
}

func (p *Profile) fieldRef(name FieldName) *Field {
	switch name {
	case Name:
		return &p.Name
	case Purpose:
		return &p.Purpose
	case ContactPerson:
		return &p.ContactPerson
	case ThreatLevel:
		return &p.ThreatLevel
	case Affiliation:
		return &p.Affiliation
	}
	return nil
}

// Complete reports whether all five tracked fields hold values, and records
// the outcome in IDVerified.
func (p *Profile) Complete() bool {
	complete := true
	for _, name := range Order {
		if !p.Field(name).IsSet() {
			complete = false
			break
		}
	}
	p.IDVerified = complete
	return complete
}

// Missing returns the first tracked field not holding a value, in priority
// order, and false when the profile is complete.
func (p *Profile) Missing() (FieldName, bool) {
	for _, name := range Order {
		if !p.Field(name).IsSet() {
			return name, true
		}
	}
	return "", false
}

// Reset returns every field to Unset and clears the verification flags.
func (p *Profile) Reset() {
	*p = Profile{}
}

// Snapshot renders the profile as a plain map for transport payloads.
// Fields without values appear as null-equivalent empty strings so clients
// can distinguish filled from pending fields.
func (p *Profile) Snapshot() map[string]any {
	snap := make(map[string]any, 8)
	for _, name := range Order {
		f := p.Field(name)
		if f.IsSet() {
			snap[string(name)] = f.Get()
		} else {
			snap[string(name)] = nil
		}
	}
	snap["id_verified"] = p.IDVerified
	snap["authenticated"] = p.Authenticated
	return snap
}
