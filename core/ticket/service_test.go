package ticket_test

import (
	"context"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/policy"
	"github.com/trezcool/academia/core/ticket"
	logsvc "github.com/trezcool/academia/services/logger"
	inmemdb "github.com/trezcool/academia/storage/database/inmem"
	testutil "github.com/trezcool/academia/tests"
)

type publisherMock struct {
	mu     sync.Mutex
	events []ticket.Event
}

func (p *publisherMock) Publish(_ context.Context, evt ticket.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

type fixture struct {
	svc       *ticket.Service
	publisher *publisherMock
	admin     policy.Subject
	teacher   policy.Subject
	student   policy.Subject
	student2  policy.Subject
	other     policy.Subject
}

func setup(t *testing.T) fixture {
	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	validate, _ := testutil.Validator()
	pub := new(publisherMock)

	return fixture{
		svc:       ticket.NewService(inmemdb.NewTicketRepository(db), policy.New(), validate, pub, logsvc.NewDiscardLogger()),
		publisher: pub,
		admin:     testutil.Subject(testutil.CreateUser(t, usrRepo, "Admin", "admin@test.cd", "", core.RoleAdmin, true)),
		teacher:   testutil.Subject(testutil.CreateUser(t, usrRepo, "Teacher", "teacher@test.cd", "", core.RoleTeacher, true)),
		student:   testutil.Subject(testutil.CreateUser(t, usrRepo, "Student", "student@test.cd", "", core.RoleStudent, true)),
		student2:  testutil.Subject(testutil.CreateUser(t, usrRepo, "Student 2", "student2@test.cd", "", core.RoleStudent, true)),
		other:     testutil.Subject(testutil.CreateUser(t, usrRepo, "Other", "other@test.cd", "", core.RoleOther, true)),
	}
}

func isValidationErr(err error) bool {
	if _, ok := errors.Cause(err).(*core.ValidationError); ok {
		return true
	}
	_, ok := errors.Cause(err).(validator.ValidationErrors)
	return ok
}

func TestService_Create(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		subj    policy.Subject
		nt      ticket.NewTicket
		wantErr bool
	}{
		{name: "missing subject", subj: f.student, nt: ticket.NewTicket{Message: "help"}, wantErr: true},
		{name: "blank subject", subj: f.student, nt: ticket.NewTicket{Subject: "   ", Message: "help"}, wantErr: true},
		{name: "missing message", subj: f.student, nt: ticket.NewTicket{Subject: "Fee query"}, wantErr: true},
		{name: "bad attachment", subj: f.student, nt: ticket.NewTicket{Subject: "Fee query", Message: "help", AttachmentURL: "nope"}, wantErr: true},
		{name: "student", subj: f.student, nt: ticket.NewTicket{Subject: " Fee query ", Message: "When is it due?"}},
		{name: "teacher", subj: f.teacher, nt: ticket.NewTicket{Subject: "Projector", Message: "Broken"}},
		{name: "other", subj: f.other, nt: ticket.NewTicket{Subject: "Access", Message: "Locked out"}},
		{name: "admin", subj: f.admin, nt: ticket.NewTicket{Subject: "Audit", Message: "Yearly", AttachmentURL: "https://cdn.test.cd/a.pdf"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tk, err := f.svc.Create(ctx, tt.subj, tt.nt)
			if tt.wantErr {
				assert.True(t, isValidationErr(err), "want validation error, got %v", err)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, tk.ID)
			assert.Equal(t, ticket.StatusPending, tk.Status)
			assert.Equal(t, tt.subj.UserID, tk.CreatedBy)
			assert.Equal(t, core.CleanString(tt.nt.Subject), tk.Subject)
		})
	}

	assert.Len(t, f.publisher.events, 4)
	for _, evt := range f.publisher.events {
		assert.Equal(t, ticket.EventCreated, evt.Type)
	}
}

func TestService_List(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	own, err := f.svc.Create(ctx, f.student, ticket.NewTicket{Subject: "Mine", Message: "m"})
	require.NoError(t, err)
	theirs, err := f.svc.Create(ctx, f.student2, ticket.NewTicket{Subject: "Theirs", Message: "m"})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, f.teacher, ticket.NewTicket{Subject: "Teacher's", Message: "m"})
	require.NoError(t, err)

	ids := func(tickets []ticket.Ticket) []string {
		res := make([]string, 0, len(tickets))
		for _, tk := range tickets {
			res = append(res, tk.ID)
		}
		return res
	}

	t.Run("admin sees all", func(t *testing.T) {
		tickets, err := f.svc.List(ctx, f.admin, ticket.QueryFilter{})
		require.NoError(t, err)
		assert.Len(t, tickets, 3)
	})
	t.Run("student sees own only", func(t *testing.T) {
		tickets, err := f.svc.List(ctx, f.student, ticket.QueryFilter{})
		require.NoError(t, err)
		assert.Equal(t, []string{own.ID}, ids(tickets))
		assert.NotContains(t, ids(tickets), theirs.ID)
	})
	t.Run("filter cannot widen", func(t *testing.T) {
		tickets, err := f.svc.List(ctx, f.student, ticket.QueryFilter{CreatedBy: f.student2.UserID})
		require.NoError(t, err)
		assert.Equal(t, []string{own.ID}, ids(tickets))
	})
	t.Run("other sees nothing", func(t *testing.T) {
		tickets, err := f.svc.List(ctx, f.other, ticket.QueryFilter{})
		require.NoError(t, err)
		assert.Empty(t, tickets)
	})
	t.Run("admin mine", func(t *testing.T) {
		tickets, err := f.svc.ListMine(ctx, f.admin, ticket.QueryFilter{})
		require.NoError(t, err)
		assert.Empty(t, tickets)
	})
	t.Run("ordering", func(t *testing.T) {
		tickets, err := f.svc.List(ctx, f.admin, ticket.QueryFilter{Ordering: "subject"})
		require.NoError(t, err)
		require.Len(t, tickets, 3)
		assert.Equal(t, []string{"Mine", "Teacher's", "Theirs"}, []string{tickets[0].Subject, tickets[1].Subject, tickets[2].Subject})

		_, err = f.svc.List(ctx, f.admin, ticket.QueryFilter{Ordering: "message"})
		assert.True(t, isValidationErr(err))
	})
	t.Run("unknown status", func(t *testing.T) {
		_, err := f.svc.List(ctx, f.admin, ticket.QueryFilter{Statuses: []ticket.Status{"closed"}})
		assert.True(t, isValidationErr(err))
	})
	t.Run("unknown identity", func(t *testing.T) {
		_, err := f.svc.List(ctx, policy.Subject{}, ticket.QueryFilter{})
		assert.True(t, core.IsForbidden(err))
	})
}

func TestService_Get(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	tk, err := f.svc.Create(ctx, f.student, ticket.NewTicket{Subject: "Mine", Message: "m"})
	require.NoError(t, err)

	tests := []struct {
		name     string
		subj     policy.Subject
		id       string
		notFound bool
	}{
		{name: "owner", subj: f.student, id: tk.ID},
		{name: "admin", subj: f.admin, id: tk.ID},
		{name: "other student", subj: f.student2, id: tk.ID, notFound: true},
		{name: "teacher", subj: f.teacher, id: tk.ID, notFound: true},
		{name: "unknown", subj: f.admin, id: "nope", notFound: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.svc.Get(ctx, tt.subj, tt.id)
			if tt.notFound {
				assert.True(t, core.IsNotFound(err), "want not found, got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tk, got)
		})
	}
}

func TestService_UpdateStatus(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	tk, err := f.svc.Create(ctx, f.student, ticket.NewTicket{Subject: "Fee query", Message: "m"})
	require.NoError(t, err)
	require.Equal(t, ticket.StatusPending, tk.Status)

	for _, subj := range []policy.Subject{f.student, f.student2, f.teacher, f.other} {
		t.Run("forbidden for "+subj.Role.String(), func(t *testing.T) {
			_, err := f.svc.UpdateStatus(ctx, subj, tk.ID, ticket.UpdateStatus{Status: ticket.StatusResolved})
			assert.True(t, core.IsForbidden(err), "want forbidden, got %v", err)

			got, err := f.svc.Get(ctx, f.admin, tk.ID)
			require.NoError(t, err)
			assert.Equal(t, ticket.StatusPending, got.Status, "status is unchanged")
		})
	}

	t.Run("invalid status", func(t *testing.T) {
		_, err := f.svc.UpdateStatus(ctx, f.admin, tk.ID, ticket.UpdateStatus{Status: "closed"})
		assert.True(t, isValidationErr(err))
	})
	t.Run("unknown ticket", func(t *testing.T) {
		_, err := f.svc.UpdateStatus(ctx, f.admin, "nope", ticket.UpdateStatus{Status: ticket.StatusResolved})
		assert.True(t, core.IsNotFound(err))
	})
	t.Run("resolved by admin shows in student list", func(t *testing.T) {
		got, err := f.svc.UpdateStatus(ctx, f.admin, tk.ID, ticket.UpdateStatus{Status: ticket.StatusResolved})
		require.NoError(t, err)
		assert.Equal(t, ticket.StatusResolved, got.Status)

		tickets, err := f.svc.List(ctx, f.student, ticket.QueryFilter{})
		require.NoError(t, err)
		require.Len(t, tickets, 1)
		assert.Equal(t, ticket.StatusResolved, tickets[0].Status)

		last := f.publisher.events[len(f.publisher.events)-1]
		assert.Equal(t, ticket.EventStatusChanged, last.Type)
		assert.Equal(t, ticket.StatusPending, last.PrevStatus)
		assert.Equal(t, f.admin.UserID, last.ActorID)
	})
	t.Run("admin can correct a resolved ticket", func(t *testing.T) {
		got, err := f.svc.UpdateStatus(ctx, f.admin, tk.ID, ticket.UpdateStatus{Status: ticket.StatusInProgress})
		require.NoError(t, err)
		assert.Equal(t, ticket.StatusInProgress, got.Status)
	})
}

func TestService_Delete(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	tk, err := f.svc.Create(ctx, f.student, ticket.NewTicket{Subject: "Mine", Message: "m"})
	require.NoError(t, err)

	err = f.svc.Delete(ctx, f.student, tk.ID)
	assert.True(t, core.IsForbidden(err), "owner cannot delete")

	require.NoError(t, f.svc.Delete(ctx, f.admin, tk.ID))
	_, err = f.svc.Get(ctx, f.admin, tk.ID)
	assert.True(t, core.IsNotFound(err))

	err = f.svc.Delete(ctx, f.admin, tk.ID)
	assert.True(t, core.IsNotFound(err))
}
