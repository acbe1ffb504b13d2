// Package model contains domain entities and DTOs used across layers.
// I keep it lean and focused on data shapes without behavior.
package model

import "time"

// Team is the optional group a member belongs to.
type Team struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Member is a searchable person row. TeamID is nil for members without a team.
type Member struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Age       int       `json:"age"`
	TeamID    *int64    `json:"team_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// MemberTeam is the search projection: a member with its team inlined.
// Team fields stay nil when the member has no team (outer join).
type MemberTeam struct {
	MemberID int64   `json:"member_id" db:"member_id"`
	Username string  `json:"username" db:"username"`
	Age      int     `json:"age" db:"age"`
	TeamID   *int64  `json:"team_id" db:"team_id"`
	TeamName *string `json:"team_name" db:"team_name"`
}
