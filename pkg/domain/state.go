package domain

// State is the encounter record threaded through the triage graph.
//
// Only VisitID is required at entry. Every other field is populated progressively
// by node patches merged through Apply; once a field is written it is never cleared.
type State struct {
	ExecutionID string `json:"execution_id"`
	VisitID     int64  `json:"visit_id"`
	HumanNote   string `json:"human_note"`

	Record *PatientRecord `json:"patient_record,omitempty"`
	Vitals *Vitals        `json:"vitals,omitempty"`

	StructuredScore *float64 `json:"structured_score,omitempty"`
	TextScore       *float64 `json:"text_score,omitempty"`

	Severe          *bool    `json:"severe,omitempty"`
	SeverityReasons []string `json:"severity_reasons,omitempty"`

	FusedProbability *float64 `json:"fused_probability,omitempty"`
	FusionDecision   *string  `json:"fusion_decision,omitempty"`
	FusionRationale  *string  `json:"fusion_rationale,omitempty"`

	ConfidenceRoute *string  `json:"confidence_route,omitempty"`
	HumanOverride   *float64 `json:"human_override,omitempty"`
	ReviewOutcome   *string  `json:"review_outcome,omitempty"`

	FinalDecision *string `json:"final_decision,omitempty"`
	Rationale     *string `json:"rationale,omitempty"`

	// Aliases kept for consumers of the older field names.
	Decision *string  `json:"decision,omitempty"`
	PFinal   *float64 `json:"p_final,omitempty"`

	// Sealed carries an encrypted copy of the state when a checkpoint is stored
	// through an encrypting store. Nodes never read or write it.
	Sealed string `json:"sealed,omitempty"`
}

// Patch is the partial state a node returns. Nil fields are left untouched on merge.
// It deliberately has no ExecutionID or VisitID: nodes cannot rewrite run identity.
type Patch struct {
	Record *PatientRecord `json:"patient_record,omitempty"`
	Vitals *Vitals        `json:"vitals,omitempty"`

	StructuredScore *float64 `json:"structured_score,omitempty"`
	TextScore       *float64 `json:"text_score,omitempty"`

	Severe          *bool    `json:"severe,omitempty"`
	SeverityReasons []string `json:"severity_reasons,omitempty"`

	FusedProbability *float64 `json:"fused_probability,omitempty"`
	FusionDecision   *string  `json:"fusion_decision,omitempty"`
	FusionRationale  *string  `json:"fusion_rationale,omitempty"`

	ConfidenceRoute *string  `json:"confidence_route,omitempty"`
	HumanOverride   *float64 `json:"human_override,omitempty"`
	ReviewOutcome   *string  `json:"review_outcome,omitempty"`

	FinalDecision *string  `json:"final_decision,omitempty"`
	Rationale     *string  `json:"rationale,omitempty"`
	Decision      *string  `json:"decision,omitempty"`
	PFinal        *float64 `json:"p_final,omitempty"`
}

// NewState creates the entry state of a run.
func NewState(executionID string, visitID int64, humanNote string) *State {
	return &State{
		ExecutionID: executionID,
		VisitID:     visitID,
		HumanNote:   humanNote,
	}
}

// Ptr returns a pointer to a copy of v.
func Ptr[T any](v T) *T {
	return &v
}

// Apply merges a patch into the state. Only non-nil fields are written.
func (s *State) Apply(p Patch) {
	if p.Record != nil {
		rec := p.Record.Clone()
		s.Record = &rec
	}
	if p.Vitals != nil {
		v := p.Vitals.Clone()
		s.Vitals = &v
	}
	setFloat(&s.StructuredScore, p.StructuredScore)
	setFloat(&s.TextScore, p.TextScore)
	if p.Severe != nil {
		s.Severe = Ptr(*p.Severe)
	}
	if len(p.SeverityReasons) > 0 {
		s.SeverityReasons = append([]string(nil), p.SeverityReasons...)
	}
	setFloat(&s.FusedProbability, p.FusedProbability)
	setString(&s.FusionDecision, p.FusionDecision)
	setString(&s.FusionRationale, p.FusionRationale)
	setString(&s.ConfidenceRoute, p.ConfidenceRoute)
	setFloat(&s.HumanOverride, p.HumanOverride)
	setString(&s.ReviewOutcome, p.ReviewOutcome)
	setString(&s.FinalDecision, p.FinalDecision)
	setString(&s.Rationale, p.Rationale)
	setString(&s.Decision, p.Decision)
	setFloat(&s.PFinal, p.PFinal)
}

// IsEmpty reports whether the patch writes nothing.
func (p Patch) IsEmpty() bool {
	return p.Record == nil && p.Vitals == nil &&
		p.StructuredScore == nil && p.TextScore == nil &&
		p.Severe == nil && len(p.SeverityReasons) == 0 &&
		p.FusedProbability == nil && p.FusionDecision == nil && p.FusionRationale == nil &&
		p.ConfidenceRoute == nil && p.HumanOverride == nil && p.ReviewOutcome == nil &&
		p.FinalDecision == nil && p.Rationale == nil && p.Decision == nil && p.PFinal == nil
}

// Clone returns a deep copy of the state. Nodes and parallel branches only ever see clones.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	next := *s
	if s.Record != nil {
		rec := s.Record.Clone()
		next.Record = &rec
	}
	if s.Vitals != nil {
		v := s.Vitals.Clone()
		next.Vitals = &v
	}
	next.StructuredScore = cloneFloat(s.StructuredScore)
	next.TextScore = cloneFloat(s.TextScore)
	if s.Severe != nil {
		next.Severe = Ptr(*s.Severe)
	}
	if s.SeverityReasons != nil {
		next.SeverityReasons = append([]string(nil), s.SeverityReasons...)
	}
	next.FusedProbability = cloneFloat(s.FusedProbability)
	next.FusionDecision = cloneString(s.FusionDecision)
	next.FusionRationale = cloneString(s.FusionRationale)
	next.ConfidenceRoute = cloneString(s.ConfidenceRoute)
	next.HumanOverride = cloneFloat(s.HumanOverride)
	next.ReviewOutcome = cloneString(s.ReviewOutcome)
	next.FinalDecision = cloneString(s.FinalDecision)
	next.Rationale = cloneString(s.Rationale)
	next.Decision = cloneString(s.Decision)
	next.PFinal = cloneFloat(s.PFinal)
	return &next
}

// IsSevere reports whether the severity gate flagged the encounter.
func (s *State) IsSevere() bool {
	return s.Severe != nil && *s.Severe
}

// Probability returns the canonical numeric signal, preferring FusedProbability over PFinal.
func (s *State) Probability() (float64, bool) {
	if s.FusedProbability != nil {
		return *s.FusedProbability, true
	}
	if s.PFinal != nil {
		return *s.PFinal, true
	}
	return 0, false
}

// Deref returns the value behind p or the zero value.
func Deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func setFloat(dst **float64, src *float64) {
	if src != nil {
		*dst = Ptr(*src)
	}
}

func setString(dst **string, src *string) {
	if src != nil {
		*dst = Ptr(*src)
	}
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	return Ptr(*p)
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	return Ptr(*p)
}
