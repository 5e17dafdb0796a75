// Package catalog holds the fixed set of permission keys recognised by
// the platform. The catalog is seeded at build time and never mutated
// by request traffic; role-permission rows referencing keys outside it
// indicate data drift.
package catalog

// Student records.
const (
	PermStudentRead  = "Student.Read"
	PermStudentWrite = "Student.Write"
)

// Grades.
const (
	PermGradeRead  = "Grade.Read"
	PermGradeWrite = "Grade.Write"
)

// Fees and payments.
const (
	PermFeeRead      = "Fee.Read"
	PermFeeWrite     = "Fee.Write"
	PermPaymentRead  = "Payment.Read"
	PermPaymentWrite = "Payment.Write"
)

// Library.
const (
	PermBookRead  = "Book.Read"
	PermBookWrite = "Book.Write"
)

// Administration.
const (
	PermRoleRead     = "Role.Read"
	PermRoleManage   = "Role.Manage"
	PermUserRead     = "User.Read"
	PermUserManage   = "User.Manage"
	PermSchoolRead   = "School.Read"
	PermSchoolManage = "School.Manage"
	PermReportRead   = "Report.Read"
)

// Group bundles related permission keys for display purposes only; the
// grouping carries no authorization semantics.
type Group struct {
	Name string
	Keys []string
}

var groups = []Group{
	{Name: "Students", Keys: []string{PermStudentRead, PermStudentWrite}},
	{Name: "Grades", Keys: []string{PermGradeRead, PermGradeWrite}},
	{Name: "Finance", Keys: []string{PermFeeRead, PermFeeWrite, PermPaymentRead, PermPaymentWrite}},
	{Name: "Library", Keys: []string{PermBookRead, PermBookWrite}},
	{Name: "Administration", Keys: []string{PermRoleRead, PermRoleManage, PermUserRead, PermUserManage, PermSchoolRead, PermSchoolManage, PermReportRead}},
}

var known = buildIndex()

func buildIndex() map[string]struct{} {
	idx := make(map[string]struct{})
	for _, g := range groups {
		for _, key := range g.Keys {
			idx[key] = struct{}{}
		}
	}
	return idx
}

// Groups returns the display grouping of the catalog.
func Groups() []Group {
	out := make([]Group, len(groups))
	for i, g := range groups {
		out[i] = Group{Name: g.Name, Keys: append([]string(nil), g.Keys...)}
	}
	return out
}

// All returns every permission key in the catalog.
func All() []string {
	keys := make([]string, 0, len(known))
	for _, g := range groups {
		keys = append(keys, g.Keys...)
	}
	return keys
}

// Exists reports whether key is part of the catalog.
func Exists(key string) bool {
	_, ok := known[key]
	return ok
}
