// Package inmemdb implements every repository in memory. Data is lost on exit.
package inmemdb

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/batch"
	"github.com/trezcool/academia/core/content"
	"github.com/trezcool/academia/core/fee"
	"github.com/trezcool/academia/core/notice"
	"github.com/trezcool/academia/core/ticket"
	"github.com/trezcool/academia/core/user"
)

type (
	DB struct {
		user    *userTable
		ticket  *ticketTable
		content *contentTable
		fee     *feeTable
		batch   *batchTable
		notice  *noticeTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	ticketTable struct {
		sync.RWMutex
		table map[string]*ticket.Ticket
	}

	contentTable struct {
		sync.RWMutex
		table map[string]*content.Item
		views []content.View
	}

	feeTable struct {
		sync.RWMutex
		table map[string]*fee.Record
	}

	batchTable struct {
		sync.RWMutex
		courses map[string]*batch.Course
		batches map[string]*batch.Batch
	}

	noticeTable struct {
		sync.RWMutex
		table map[string]*notice.Notice
	}
)

func Open() *DB {
	return &DB{
		user:    &userTable{table: make(map[string]*user.User)},
		ticket:  &ticketTable{table: make(map[string]*ticket.Ticket)},
		content: &contentTable{table: make(map[string]*content.Item)},
		fee:     &feeTable{table: make(map[string]*fee.Record)},
		batch:   &batchTable{courses: make(map[string]*batch.Course), batches: make(map[string]*batch.Batch)},
		notice:  &noticeTable{table: make(map[string]*notice.Notice)},
	}
}

func cloneStrings(ss []string) []string {
	if ss == nil {
		return nil
	}
	return append(make([]string, 0, len(ss)), ss...)
}

func contains(ss []string, s string) bool {
	for _, item := range ss {
		if item == s {
			return true
		}
	}
	return false
}

// sortBy sorts items on orderings, then on less for the items they leave tied.
// compare returns a negative number, zero or a positive number when a is before, tied with or after b.
func sortBy[T any](items []T, orderings []core.Ordering, compare func(a, b T, field string) int, less func(a, b T) bool) {
	sort.SliceStable(items, func(i, j int) bool {
		for _, ord := range orderings {
			c := compare(items[i], items[j], ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return less(items[i], items[j])
	})
}

func compareStrings(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

func compareTimes(a, b time.Time) int {
	return a.Compare(b)
}
