package content_test

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/content"
	"github.com/trezcool/academia/core/policy"
	inmemdb "github.com/trezcool/academia/storage/database/inmem"
	testutil "github.com/trezcool/academia/tests"
)

type fixture struct {
	materials  *content.Service
	recordings *content.Service
	admin      policy.Subject
	teacher    policy.Subject // assigned to B1
	teacher2   policy.Subject // assigned to B2
	student    policy.Subject // enrolled in B1
	student2   policy.Subject // enrolled in B3
	other      policy.Subject
}

func setup(t *testing.T) fixture {
	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	repo := inmemdb.NewContentRepository(db)
	validate, _ := testutil.Validator()
	pol := policy.New()

	return fixture{
		materials:  content.NewService(content.KindMaterial, repo, pol, validate),
		recordings: content.NewService(content.KindRecording, repo, pol, validate),
		admin:      testutil.Subject(testutil.CreateUser(t, usrRepo, "Admin", "admin@test.cd", "", core.RoleAdmin, true)),
		teacher:    testutil.Subject(testutil.CreateUser(t, usrRepo, "Teacher", "teacher@test.cd", "", core.RoleTeacher, true), "B1"),
		teacher2:   testutil.Subject(testutil.CreateUser(t, usrRepo, "Teacher 2", "teacher2@test.cd", "", core.RoleTeacher, true), "B2"),
		student:    testutil.Subject(testutil.CreateUser(t, usrRepo, "Student", "student@test.cd", "", core.RoleStudent, true), "B1"),
		student2:   testutil.Subject(testutil.CreateUser(t, usrRepo, "Student 2", "student2@test.cd", "", core.RoleStudent, true), "B3"),
		other:      testutil.Subject(testutil.CreateUser(t, usrRepo, "Other", "other@test.cd", "", core.RoleOther, true)),
	}
}

func isValidationErr(err error) bool {
	if _, ok := errors.Cause(err).(*core.ValidationError); ok {
		return true
	}
	_, ok := errors.Cause(err).(validator.ValidationErrors)
	return ok
}

func newItem(title string, scope policy.Scope) content.NewItem {
	return content.NewItem{Title: title, URL: "https://cdn.test.cd/" + title, Scope: scope}
}

func TestService_Create(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		subj      policy.Subject
		ni        content.NewItem
		forbidden bool
		invalid   bool
	}{
		{name: "student", subj: f.student, ni: newItem("m1", policy.AllBatches()), forbidden: true},
		{name: "other", subj: f.other, ni: newItem("m1", policy.AllBatches()), forbidden: true},
		{name: "missing title", subj: f.teacher, ni: newItem("", policy.AllBatches()), invalid: true},
		{name: "bad url", subj: f.teacher, ni: content.NewItem{Title: "m1", URL: "nope", Scope: policy.AllBatches()}, invalid: true},
		{name: "empty scope", subj: f.teacher, ni: newItem("m1", policy.Scope{}), invalid: true},
		{name: "teacher", subj: f.teacher, ni: newItem("m1", policy.Batches("B1"))},
		{name: "admin", subj: f.admin, ni: newItem("m2", policy.AllBatches())},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it, err := f.materials.Create(ctx, tt.subj, tt.ni)
			switch {
			case tt.forbidden:
				assert.True(t, core.IsForbidden(err), "want forbidden, got %v", err)
			case tt.invalid:
				assert.True(t, isValidationErr(err), "want validation error, got %v", err)
			default:
				require.NoError(t, err)
				assert.Equal(t, content.KindMaterial, it.Kind)
				assert.Equal(t, tt.subj.UserID, it.CreatedBy)
				assert.Equal(t, tt.ni.Scope, it.Scope)
			}
		})
	}
}

func TestService_scopeUpdateScenario(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	m, err := f.materials.Create(ctx, f.teacher, newItem("algebra", policy.Batches("B2", "B3")))
	require.NoError(t, err)

	_, err = f.materials.Get(ctx, f.student, m.ID)
	assert.True(t, core.IsNotFound(err), "outside the scope of the student")

	_, err = f.materials.UpdateScope(ctx, f.teacher2, m.ID, content.UpdateScope{Scope: policy.Batches("B1")})
	assert.True(t, core.IsForbidden(err), "only the owner or an admin can rescope")

	_, err = f.materials.UpdateScope(ctx, f.teacher, m.ID, content.UpdateScope{Scope: policy.Scope{}})
	assert.True(t, isValidationErr(err))

	updated, err := f.materials.UpdateScope(ctx, f.teacher, m.ID, content.UpdateScope{Scope: policy.Batches("B1", "B2")})
	require.NoError(t, err)
	assert.Equal(t, m.CreatedBy, updated.CreatedBy, "owner never changes")

	got, err := f.materials.Get(ctx, f.student, m.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"B1", "B2"}, got.Scope.BatchIDs)

	_, err = f.materials.Get(ctx, f.student2, m.ID)
	assert.True(t, core.IsNotFound(err), "B3 was removed from the scope")
}

func TestService_List(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	b1, err := f.materials.Create(ctx, f.teacher, newItem("b1", policy.Batches("B1")))
	require.NoError(t, err)
	b2b3, err := f.materials.Create(ctx, f.teacher2, newItem("b2b3", policy.Batches("B2", "B3")))
	require.NoError(t, err)
	all, err := f.materials.Create(ctx, f.admin, newItem("all", policy.AllBatches()))
	require.NoError(t, err)
	ownedElsewhere, err := f.materials.Create(ctx, f.teacher, newItem("elsewhere", policy.Batches("B9")))
	require.NoError(t, err)
	rec, err := f.recordings.Create(ctx, f.teacher, newItem("rec", policy.AllBatches()))
	require.NoError(t, err)

	ids := func(items []content.Item) []string {
		res := make([]string, 0, len(items))
		for _, it := range items {
			res = append(res, it.ID)
		}
		return res
	}

	tests := []struct {
		name string
		subj policy.Subject
		want []string
	}{
		{name: "admin", subj: f.admin, want: []string{b1.ID, b2b3.ID, all.ID, ownedElsewhere.ID}},
		{name: "teacher: owned or assigned", subj: f.teacher, want: []string{b1.ID, all.ID, ownedElsewhere.ID}},
		{name: "teacher2", subj: f.teacher2, want: []string{b2b3.ID, all.ID}},
		{name: "student in B1", subj: f.student, want: []string{b1.ID, all.ID}},
		{name: "student in B3: union of scopes", subj: f.student2, want: []string{b2b3.ID, all.ID}},
		{name: "student without batch", subj: policy.Subject{UserID: "x", Role: core.RoleStudent}, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := f.materials.List(ctx, tt.subj, content.QueryFilter{})
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, ids(items))
			assert.NotContains(t, ids(items), rec.ID, "kinds do not mix")
		})
	}

	_, err = f.materials.List(ctx, f.other, content.QueryFilter{})
	assert.True(t, core.IsForbidden(err))

	items, err := f.materials.List(ctx, f.admin, content.QueryFilter{Search: "B2B3"})
	require.NoError(t, err)
	assert.Equal(t, []string{b2b3.ID}, ids(items))
}

func TestService_views(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	rec, err := f.recordings.Create(ctx, f.teacher, newItem("rec", policy.Batches("B1")))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		v, err := f.recordings.RecordView(ctx, f.student, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, f.student.UserID, v.UserID)
	}
	_, err = f.recordings.RecordView(ctx, f.student2, rec.ID)
	assert.True(t, core.IsNotFound(err), "cannot view outside scope")

	_, err = f.recordings.Views(ctx, f.student, rec.ID)
	assert.True(t, core.IsForbidden(err))

	views, err := f.recordings.Views(ctx, f.teacher, rec.ID)
	require.NoError(t, err)
	assert.Len(t, views, 3, "every call appends")

	views, err = f.recordings.Views(ctx, f.admin, rec.ID)
	require.NoError(t, err)
	assert.Len(t, views, 3)

	_, err = f.materials.RecordView(ctx, f.admin, rec.ID)
	assert.True(t, core.IsNotFound(err), "a recording is not a material")
}

func TestService_Delete(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	m, err := f.materials.Create(ctx, f.teacher, newItem("m", policy.Batches("B1", "B2")))
	require.NoError(t, err)

	tests := []struct {
		name      string
		subj      policy.Subject
		forbidden bool
		notFound  bool
	}{
		{name: "student in scope", subj: f.student, forbidden: true},
		{name: "assigned teacher, not owner", subj: f.teacher2, forbidden: true},
		{name: "student out of scope", subj: f.student2, notFound: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.materials.Delete(ctx, tt.subj, m.ID)
			if tt.forbidden {
				assert.True(t, core.IsForbidden(err), "want forbidden, got %v", err)
			}
			if tt.notFound {
				assert.True(t, core.IsNotFound(err), "want not found, got %v", err)
			}
		})
	}

	require.NoError(t, f.materials.Delete(ctx, f.teacher, m.ID))
	_, err = f.materials.Get(ctx, f.admin, m.ID)
	assert.True(t, core.IsNotFound(err))
}

func TestService_Check(t *testing.T) {
	f := setup(t)

	tests := []struct {
		name          string
		subj          policy.Subject
		ni            content.NewItem
		pendingUpload bool
		forbidden     bool
		invalid       bool
	}{
		{name: "student", subj: f.student, ni: content.NewItem{Title: "m1", Scope: policy.AllBatches()}, pendingUpload: true, forbidden: true},
		{name: "missing url", subj: f.teacher, ni: content.NewItem{Title: "m1", Scope: policy.AllBatches()}, invalid: true},
		{name: "missing title", subj: f.teacher, ni: content.NewItem{Scope: policy.AllBatches()}, pendingUpload: true, invalid: true},
		{name: "empty scope", subj: f.teacher, ni: content.NewItem{Title: "m1"}, pendingUpload: true, invalid: true},
		{name: "bad url with upload", subj: f.teacher, ni: content.NewItem{Title: "m1", URL: "nope", Scope: policy.AllBatches()}, pendingUpload: true, invalid: true},
		{name: "url left to the upload", subj: f.teacher, ni: content.NewItem{Title: "  m1 ", Scope: policy.AllBatches()}, pendingUpload: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ni, err := f.materials.Check(tt.subj, tt.ni, tt.pendingUpload)
			switch {
			case tt.forbidden:
				assert.True(t, core.IsForbidden(err), err)
			case tt.invalid:
				assert.True(t, isValidationErr(err), err)
			default:
				require.NoError(t, err)
				assert.Equal(t, "m1", ni.Title)
			}
		})
	}
}
