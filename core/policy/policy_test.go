package policy

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core"
)

func TestPolicy_Authorize(t *testing.T) {
	p := New()

	adm := Subject{UserID: "a1", Role: core.RoleAdmin}
	tchr := Subject{UserID: "t1", Role: core.RoleTeacher, BatchIDs: []string{"b1"}}
	std := Subject{UserID: "s1", Role: core.RoleStudent, BatchIDs: []string{"b1"}}
	otr := Subject{UserID: "o1", Role: core.RoleOther}

	ownTicket := Resource{Kind: KindTicket, ID: "tk1", OwnerID: "s1"}
	otherTicket := Resource{Kind: KindTicket, ID: "tk2", OwnerID: "s2"}
	material := Resource{Kind: KindMaterial, ID: "m1", OwnerID: "t2", Scope: Batches("b2", "b3")}
	teacherMaterial := Resource{Kind: KindMaterial, ID: "m2", OwnerID: "t1", Scope: Batches("b9")}
	everyone := Resource{Kind: KindNotice, ID: "n1", OwnerID: "a1", Scope: AllBatches()}
	ownFee := Resource{Kind: KindFee, ID: "f1", StudentID: "s1", Scope: Batches("b5")}
	batchFee := Resource{Kind: KindFee, ID: "f2", StudentID: "s9", Scope: Batches("b1")}

	tests := []struct {
		name    string
		subject Subject
		action  Action
		res     Resource
		want    Effect
	}{
		{name: "no identity", subject: Subject{}, action: ActionRead, res: ownTicket, want: Deny},
		{name: "invalid role", subject: Subject{UserID: "x", Role: "root"}, action: ActionRead, res: ownTicket, want: Deny},

		{name: "admin updates ticket", subject: adm, action: ActionUpdate, res: otherTicket, want: Allow},
		{name: "admin lists tickets", subject: adm, action: ActionRead, res: Collection(KindTicket), want: Allow},
		{name: "admin deletes user", subject: adm, action: ActionDelete, res: Resource{Kind: KindUser, ID: "u"}, want: Allow},

		{name: "student creates ticket", subject: std, action: ActionCreate, res: Collection(KindTicket), want: Allow},
		{name: "other creates ticket", subject: otr, action: ActionCreate, res: Collection(KindTicket), want: Allow},
		{name: "student lists tickets", subject: std, action: ActionRead, res: Collection(KindTicket), want: AllowFiltered},
		{name: "student reads own ticket", subject: std, action: ActionRead, res: ownTicket, want: Allow},
		{name: "student reads other ticket", subject: std, action: ActionRead, res: otherTicket, want: Deny},
		{name: "student updates own ticket", subject: std, action: ActionUpdate, res: ownTicket, want: Deny},
		{name: "teacher updates ticket", subject: tchr, action: ActionUpdate, res: otherTicket, want: Deny},
		{name: "teacher deletes ticket", subject: tchr, action: ActionDelete, res: otherTicket, want: Deny},

		{name: "student reads material out of scope", subject: std, action: ActionRead, res: material, want: Deny},
		{name: "student reads notice for all", subject: std, action: ActionRead, res: everyone, want: Allow},
		{name: "student creates material", subject: std, action: ActionCreate, res: Collection(KindMaterial), want: Deny},
		{name: "teacher reads own material out of batch", subject: tchr, action: ActionRead, res: teacherMaterial, want: Allow},
		{name: "teacher reads other material out of batch", subject: tchr, action: ActionRead, res: material, want: Deny},
		{name: "teacher deletes own material", subject: tchr, action: ActionDelete, res: teacherMaterial, want: Allow},
		{name: "teacher deletes other material", subject: tchr, action: ActionDelete, res: material, want: Deny},
		{name: "teacher rescopes other material", subject: tchr, action: ActionUpdateScope, res: material, want: Deny},
		{name: "other reads material", subject: otr, action: ActionRead, res: everyone, want: Deny},

		{name: "student reads own fee", subject: std, action: ActionRead, res: ownFee, want: Allow},
		{name: "student reads batch fee", subject: std, action: ActionRead, res: batchFee, want: Deny},
		{name: "teacher reads assigned batch fee", subject: tchr, action: ActionRead, res: batchFee, want: Allow},
		{name: "teacher reads unassigned fee", subject: tchr, action: ActionRead, res: ownFee, want: Deny},
		{name: "teacher updates fee", subject: tchr, action: ActionUpdate, res: batchFee, want: Deny},

		{name: "student reads enrolled batch", subject: std, action: ActionRead, res: Resource{Kind: KindBatch, ID: "b1", Scope: Batches("b1")}, want: Allow},
		{name: "student reads other batch", subject: std, action: ActionRead, res: Resource{Kind: KindBatch, ID: "b2", Scope: Batches("b2")}, want: Deny},
		{name: "teacher creates course", subject: tchr, action: ActionCreate, res: Collection(KindCourse), want: Deny},

		{name: "student reads self", subject: std, action: ActionRead, res: Resource{Kind: KindUser, ID: "s1", OwnerID: "s1"}, want: Allow},
		{name: "student reads other user", subject: std, action: ActionRead, res: Resource{Kind: KindUser, ID: "s2", OwnerID: "s2"}, want: Deny},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := p.Authorize(tt.subject, tt.action, tt.res)
			assert.Equal(t, tt.want, d.Effect, "decision = %+v", d)
			if tt.want == Deny {
				assert.NotEmpty(t, d.Reason)
				assert.True(t, core.IsForbidden(d.Err()))
			} else {
				assert.NoError(t, d.Err())
			}
		})
	}
}

func TestPolicy_Authorize_filters(t *testing.T) {
	p := New()

	d := p.Authorize(Subject{UserID: "t1", Role: core.RoleTeacher, BatchIDs: []string{"b1"}}, ActionRead, Collection(KindMaterial))
	require.Equal(t, AllowFiltered, d.Effect)
	assert.Equal(t, RecordFilter{OwnerID: "t1", BatchIDs: []string{"b1"}}, d.Filter)

	d = p.Authorize(Subject{UserID: "s1", Role: core.RoleStudent}, ActionRead, Collection(KindMaterial))
	require.Equal(t, AllowFiltered, d.Effect)
	assert.True(t, d.Filter.IsEmpty(), "student without batch sees nothing")
	assert.False(t, d.Filter.Match(Resource{Kind: KindMaterial, ID: "m", Scope: AllBatches()}))
}

func TestPolicy_scopeUpdateScenario(t *testing.T) {
	p := New()
	std := Subject{UserID: "s", Role: core.RoleStudent, BatchIDs: []string{"B1"}}
	material := Resource{Kind: KindMaterial, ID: "M", OwnerID: "t", Scope: Batches("B2", "B3")}

	assert.Equal(t, Deny, p.Authorize(std, ActionRead, material).Effect)

	owner := Subject{UserID: "t", Role: core.RoleTeacher}
	require.Equal(t, Allow, p.Authorize(owner, ActionUpdateScope, material).Effect)
	material.Scope = Batches("B1", "B2")

	assert.Equal(t, Allow, p.Authorize(std, ActionRead, material).Effect)
}

func TestPolicy_unionOfBatches(t *testing.T) {
	p := New()
	std := Subject{UserID: "s", Role: core.RoleStudent, BatchIDs: []string{"B7", "B3"}}
	material := Resource{Kind: KindRecording, ID: "R", OwnerID: "t", Scope: Batches("B1", "B2", "B3")}
	assert.Equal(t, Allow, p.Authorize(std, ActionRead, material).Effect)
}

func TestScope_JSON(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    Scope
		wantErr bool
		out     string
	}{
		{name: "all", data: `"all"`, want: AllBatches(), out: `"all"`},
		{name: "all upper", data: `"ALL"`, want: AllBatches(), out: `"all"`},
		{name: "list", data: `["b1", " b2 ", "b1", ""]`, want: Batches("b1", "b2"), out: `["b1","b2"]`},
		{name: "empty list", data: `[]`, want: Scope{BatchIDs: []string{}}, out: `[]`},
		{name: "null", data: `null`, want: Scope{}, out: `[]`},
		{name: "bad string", data: `"some"`, wantErr: true},
		{name: "bad type", data: `12`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sc Scope
			err := json.Unmarshal([]byte(tt.data), &sc)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, sc)

			out, err := json.Marshal(sc)
			require.NoError(t, err)
			assert.JSONEq(t, tt.out, string(out))
		})
	}
}

func TestParseScope(t *testing.T) {
	assert.Equal(t, AllBatches(), ParseScope(" all "))
	assert.Equal(t, Batches("b1", "b2"), ParseScope("b1, b2,,"))
	assert.True(t, ParseScope("").IsEmpty())
}
