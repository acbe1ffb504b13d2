package model

// Attribute names a searchable or sortable field of the MemberTeam projection.
type Attribute string

const (
	AttrMemberID Attribute = "memberId"
	AttrUsername Attribute = "username"
	AttrAge      Attribute = "age"
	AttrTeamID   Attribute = "teamId"
	AttrTeamName Attribute = "teamName"
)

// SortableAttributes lists every attribute a page may be ordered by.
var SortableAttributes = []Attribute{AttrMemberID, AttrUsername, AttrAge, AttrTeamID, AttrTeamName}

// IsSortable reports whether a is one of SortableAttributes.
func IsSortable(a Attribute) bool {
	for _, s := range SortableAttributes {
		if s == a {
			return true
		}
	}
	return false
}

// MemberSearchCondition is a sparse filter over members.
// A nil field means "no constraint"; a condition with every field nil matches all rows.
type MemberSearchCondition struct {
	Username *string `json:"username,omitempty"`
	TeamName *string `json:"team_name,omitempty"`
	AgeGoe   *int    `json:"age_goe,omitempty"`
	AgeLoe   *int    `json:"age_loe,omitempty"`
}
