package policy

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
)

const scopeAll = "all"

var errInvalidScope = errors.New(`scope must be "all" or a list of batch ids`)

// Scope is the visibility of a batch-scoped resource: every batch, or a list of batch ids.
type Scope struct {
	All      bool
	BatchIDs []string
}

func AllBatches() Scope { return Scope{All: true} }

func Batches(ids ...string) Scope {
	return Scope{BatchIDs: core.CleanStrings(ids)}
}

func (sc Scope) IsEmpty() bool {
	return !sc.All && len(sc.BatchIDs) == 0
}

// Intersects reports whether any of batchIDs is in the scope.
func (sc Scope) Intersects(batchIDs []string) bool {
	if len(batchIDs) == 0 {
		return false
	}
	if sc.All {
		return true
	}
	for _, id := range batchIDs {
		for _, scoped := range sc.BatchIDs {
			if id == scoped {
				return true
			}
		}
	}
	return false
}

func (sc Scope) MarshalJSON() ([]byte, error) {
	if sc.All {
		return json.Marshal(scopeAll)
	}
	if sc.BatchIDs == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(sc.BatchIDs)
}

func (sc *Scope) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*sc = Scope{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if core.CleanString(s, true /* lower */) != scopeAll {
			return errInvalidScope
		}
		*sc = AllBatches()
		return nil
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return errInvalidScope
	}
	*sc = Batches(ids...)
	return nil
}

// ParseScope reads a scope from a form value: "all" or comma separated batch ids.
func ParseScope(s string) Scope {
	s = core.CleanString(s)
	if s == "" {
		return Scope{}
	}
	if core.CleanString(s, true /* lower */) == scopeAll {
		return AllBatches()
	}
	return Batches(strings.Split(s, ",")...)
}
