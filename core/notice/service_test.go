package notice_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/notice"
	"github.com/trezcool/academia/core/policy"
	inmemdb "github.com/trezcool/academia/storage/database/inmem"
	testutil "github.com/trezcool/academia/tests"
)

func TestService(t *testing.T) {
	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	validate, _ := testutil.Validator()
	svc := notice.NewService(inmemdb.NewNoticeRepository(db), policy.New(), validate)
	ctx := context.Background()

	admin := testutil.Subject(testutil.CreateUser(t, usrRepo, "Admin", "admin@test.cd", "", core.RoleAdmin, true))
	teacher := testutil.Subject(testutil.CreateUser(t, usrRepo, "Teacher", "teacher@test.cd", "", core.RoleTeacher, true), "B1")
	student := testutil.Subject(testutil.CreateUser(t, usrRepo, "Student", "student@test.cd", "", core.RoleStudent, true), "B1")
	student2 := testutil.Subject(testutil.CreateUser(t, usrRepo, "Student 2", "student2@test.cd", "", core.RoleStudent, true), "B2")

	_, err := svc.Create(ctx, student, notice.NewNotice{Title: "t", Body: "b", Scope: policy.AllBatches()})
	assert.True(t, core.IsForbidden(err))
	_, err = svc.Create(ctx, teacher, notice.NewNotice{Title: "t", Body: "b"})
	assert.Error(t, err, "scope is required")

	forB1, err := svc.Create(ctx, teacher, notice.NewNotice{Title: "Exam", Body: "Friday", Scope: policy.Batches("B1")})
	require.NoError(t, err)
	forAll, err := svc.Create(ctx, admin, notice.NewNotice{Title: "Holiday", Body: "Monday", Scope: policy.AllBatches()})
	require.NoError(t, err)

	notices, err := svc.List(ctx, student2)
	require.NoError(t, err)
	require.Len(t, notices, 1)
	assert.Equal(t, forAll.ID, notices[0].ID)

	notices, err = svc.List(ctx, student)
	require.NoError(t, err)
	assert.Len(t, notices, 2)

	_, err = svc.Get(ctx, student2, forB1.ID)
	assert.True(t, core.IsNotFound(err))

	err = svc.Delete(ctx, teacher, forAll.ID)
	assert.True(t, core.IsForbidden(err), "not the owner")
	require.NoError(t, svc.Delete(ctx, teacher, forB1.ID))
	require.NoError(t, svc.Delete(ctx, admin, forAll.ID))

	notices, err = svc.List(ctx, admin)
	require.NoError(t, err)
	assert.Empty(t, notices)
}
