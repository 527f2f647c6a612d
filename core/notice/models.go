package notice

import (
	"time"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/policy"
)

// Notice is an announcement visible to the batches in its Scope.
type Notice struct {
	ID        string       `json:"id"`
	Title     string       `json:"title"`
	Body      string       `json:"body"`
	Scope     policy.Scope `json:"scope"`
	CreatedBy string       `json:"created_by"`
	CreatedAt time.Time    `json:"created_at"`
}

func (n Notice) resource() policy.Resource {
	return policy.Resource{Kind: policy.KindNotice, ID: n.ID, OwnerID: n.CreatedBy, Scope: n.Scope}
}

type NewNotice struct {
	Title string       `json:"title" validate:"required,nonblank,max=200"`
	Body  string       `json:"body" validate:"required,nonblank"`
	Scope policy.Scope `json:"scope"`
}

func (nn *NewNotice) clean() {
	nn.Title = core.CleanString(nn.Title)
	nn.Body = core.CleanString(nn.Body)
}

// QueryFilter restricts the notices to the ones Visible matches, when set.
type QueryFilter struct {
	Visible *policy.RecordFilter `query:"-"`
}
