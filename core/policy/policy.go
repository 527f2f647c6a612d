// Package policy holds the authorization rules of the application. It knows nothing about HTTP:
// given who is asking, what they want to do and on which resource, it decides.
package policy

import (
	"fmt"

	"github.com/trezcool/academia/core"
)

type Action string

const (
	ActionCreate      Action = "create"
	ActionRead        Action = "read"
	ActionUpdate      Action = "update"
	ActionUpdateScope Action = "update_scope"
	ActionDelete      Action = "delete"
)

type Kind string

const (
	KindTicket    Kind = "ticket"
	KindMaterial  Kind = "material"
	KindRecording Kind = "recording"
	KindFee       Kind = "fee"
	KindCourse    Kind = "course"
	KindBatch     Kind = "batch"
	KindNotice    Kind = "notice"
	KindUser      Kind = "user"
)

var (
	allActions = []Action{ActionCreate, ActionRead, ActionUpdate, ActionUpdateScope, ActionDelete}
	allKinds   = []Kind{KindTicket, KindMaterial, KindRecording, KindFee, KindCourse, KindBatch, KindNotice, KindUser}
)

// Subject is the authenticated identity with the batches it belongs to
// (enrolled in for students, assigned to for teachers).
type Subject struct {
	UserID   string
	Role     core.Role
	BatchIDs []string
}

// Resource describes the target of an action: a single record when ID is set, the whole
// collection of Kind otherwise.
type Resource struct {
	Kind      Kind
	ID        string
	OwnerID   string // creator; the user itself for KindUser
	StudentID string // fee records
	Scope     Scope
}

// Collection describes every record of kind.
func Collection(kind Kind) Resource {
	return Resource{Kind: kind}
}

func (r Resource) IsRecord() bool { return r.ID != "" }

type Effect int

const (
	Deny Effect = iota
	Allow
	AllowFiltered
)

func (e Effect) String() string {
	switch e {
	case Allow:
		return "allow"
	case AllowFiltered:
		return "allow_filtered"
	default:
		return "deny"
	}
}

// RecordFilter restricts a collection to the records a subject may see.
// A record matches when ANY of the populated criteria matches. An empty filter matches nothing.
type RecordFilter struct {
	OwnerID   string
	StudentID string
	BatchIDs  []string
}

func (f RecordFilter) IsEmpty() bool {
	return f.OwnerID == "" && f.StudentID == "" && len(f.BatchIDs) == 0
}

func (f RecordFilter) Match(r Resource) bool {
	if f.OwnerID != "" && r.OwnerID == f.OwnerID {
		return true
	}
	if f.StudentID != "" && r.StudentID == f.StudentID {
		return true
	}
	return r.Scope.Intersects(f.BatchIDs)
}

type Decision struct {
	Effect Effect
	Reason string
	Filter RecordFilter // set when Effect is AllowFiltered
}

func (d Decision) Allowed() bool { return d.Effect != Deny }

// Filtered reports whether only the records matching d.Filter are allowed.
func (d Decision) Filtered() bool { return d.Effect == AllowFiltered }

// Err returns a *core.ForbiddenError if d denies, nil otherwise.
func (d Decision) Err() error {
	if d.Allowed() {
		return nil
	}
	return core.NewForbiddenError(d.Reason)
}

// Rule decides for one (role, action, kind) entry of the table.
type Rule func(s Subject, r Resource) Decision

type key struct {
	role   core.Role
	action Action
	kind   Kind
}

// Policy is the table of rules keyed by (role, action, kind). Missing entries deny.
type Policy struct {
	rules map[key]Rule
}

// New returns the Policy of the application.
func New() *Policy {
	p := &Policy{rules: make(map[key]Rule)}
	for _, g := range grants {
		for _, role := range g.roles {
			for _, action := range g.actions {
				for _, kind := range g.kinds {
					p.rules[key{role, action, kind}] = g.rule
				}
			}
		}
	}
	return p
}

// Authorize decides whether s may perform action on r.
// For a single record a filtered rule resolves to Allow or Deny; for a collection the
// AllowFiltered decision is returned so the caller restricts its query with Decision.Filter.
func (p *Policy) Authorize(s Subject, action Action, r Resource) Decision {
	if s.UserID == "" || !s.Role.Valid() {
		return Decision{Effect: Deny, Reason: "unknown identity"}
	}
	rule, ok := p.rules[key{s.Role, action, r.Kind}]
	if !ok {
		return Decision{Effect: Deny, Reason: fmt.Sprintf("%s cannot %s %s", s.Role, action, r.Kind)}
	}

	d := rule(s, r)
	if d.Effect == AllowFiltered && r.IsRecord() {
		if d.Filter.Match(r) {
			return Decision{Effect: Allow}
		}
		return Decision{Effect: Deny, Reason: fmt.Sprintf("%s is outside your scope", r.Kind)}
	}
	return d
}
