package policy

import "github.com/trezcool/academia/core"

type grant struct {
	roles   []core.Role
	actions []Action
	kinds   []Kind
	rule    Rule
}

var (
	admin        = []core.Role{core.RoleAdmin}
	teacher      = []core.Role{core.RoleTeacher}
	student      = []core.Role{core.RoleStudent}
	nonAdmins    = []core.Role{core.RoleTeacher, core.RoleStudent, core.RoleOther}
	scopedKinds  = []Kind{KindMaterial, KindRecording, KindNotice}
	catalogKinds = []Kind{KindBatch, KindCourse}
)

func actions(a ...Action) []Action { return a }
func kinds(k ...Kind) []Kind       { return k }

// grants is the whole authorization table.
//
//	| Role    | Tickets          | Materials/Recordings/Notices        | Fees                 | Batches/Courses    |
//	|---------|------------------|-------------------------------------|----------------------|--------------------|
//	| admin   | full CRUD        | full CRUD                           | full CRUD            | full CRUD          |
//	| teacher | create, read own | create, read own or assigned batch, | read assigned batch  | read assigned      |
//	|         |                  | delete & rescope own                |                      |                    |
//	| student | create, read own | read within own batch scope         | read own             | read own enrollment|
//	| other   | create, read own | -                                   | -                    | -                  |
//
// Every non-admin may also read their own user record.
var grants = []grant{
	{roles: admin, actions: allActions, kinds: allKinds, rule: allow},

	// tickets
	{roles: nonAdmins, actions: actions(ActionCreate), kinds: kinds(KindTicket), rule: allow},
	{roles: nonAdmins, actions: actions(ActionRead), kinds: kinds(KindTicket), rule: owned},

	// materials, recordings & notices
	{roles: teacher, actions: actions(ActionCreate), kinds: scopedKinds, rule: allow},
	{roles: teacher, actions: actions(ActionRead), kinds: scopedKinds, rule: ownedOrInBatches},
	{roles: teacher, actions: actions(ActionUpdateScope, ActionDelete), kinds: scopedKinds, rule: owned},
	{roles: student, actions: actions(ActionRead), kinds: scopedKinds, rule: inBatches},

	// fees
	{roles: teacher, actions: actions(ActionRead), kinds: kinds(KindFee), rule: inBatches},
	{roles: student, actions: actions(ActionRead), kinds: kinds(KindFee), rule: ownFees},

	// batches & courses
	{roles: teacher, actions: actions(ActionRead), kinds: catalogKinds, rule: inBatches},
	{roles: student, actions: actions(ActionRead), kinds: catalogKinds, rule: inBatches},

	// users
	{roles: nonAdmins, actions: actions(ActionRead), kinds: kinds(KindUser), rule: owned},
}

func allow(Subject, Resource) Decision {
	return Decision{Effect: Allow}
}

func filtered(f RecordFilter) Decision {
	return Decision{Effect: AllowFiltered, Filter: f}
}

func owned(s Subject, _ Resource) Decision {
	return filtered(RecordFilter{OwnerID: s.UserID})
}

func ownedOrInBatches(s Subject, _ Resource) Decision {
	return filtered(RecordFilter{OwnerID: s.UserID, BatchIDs: s.BatchIDs})
}

func inBatches(s Subject, _ Resource) Decision {
	return filtered(RecordFilter{BatchIDs: s.BatchIDs})
}

func ownFees(s Subject, _ Resource) Decision {
	return filtered(RecordFilter{StudentID: s.UserID})
}
