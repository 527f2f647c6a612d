package content

import (
	"time"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/policy"
)

// Kind is the kind of content an Item holds.
type Kind string

const (
	KindMaterial  Kind = "material"
	KindRecording Kind = "recording"
)

func (k Kind) Valid() bool { return k == KindMaterial || k == KindRecording }

func (k Kind) policyKind() policy.Kind {
	if k == KindRecording {
		return policy.KindRecording
	}
	return policy.KindMaterial
}

// Item is a study material or a class recording, visible to the batches in its Scope.
type Item struct {
	ID          string       `json:"id"`
	Kind        Kind         `json:"kind"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	URL         string       `json:"url"`
	Scope       policy.Scope `json:"scope"`
	CreatedBy   string       `json:"created_by"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

func (it Item) resource() policy.Resource {
	return policy.Resource{Kind: it.Kind.policyKind(), ID: it.ID, OwnerID: it.CreatedBy, Scope: it.Scope}
}

// View records one access to an Item. Views are only ever appended.
type View struct {
	ItemID   string    `json:"item_id"`
	UserID   string    `json:"user_id"`
	ViewedAt time.Time `json:"viewed_at"`
}

type NewItem struct {
	Title       string       `json:"title" form:"title" validate:"required,nonblank,max=200"`
	Description string       `json:"description" form:"description"`
	URL         string       `json:"url" form:"url" validate:"required,url"`
	Scope       policy.Scope `json:"scope" form:"-"`
}

func (ni *NewItem) clean() {
	ni.Title = core.CleanString(ni.Title)
	ni.Description = core.CleanString(ni.Description)
	ni.URL = core.CleanString(ni.URL)
}

type UpdateScope struct {
	Scope policy.Scope `json:"scope"`
}

// QueryFilter applies AND operation on the populated fields.
// Visible, when set, keeps only the items it matches.
type QueryFilter struct {
	Kind    Kind                 `query:"-"`
	Search  string               `query:"search"`
	Visible *policy.RecordFilter `query:"-"`
}
