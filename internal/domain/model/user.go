package model

import (
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Rank titles unlocked as the user levels up.
const (
	RankTitleJunior    = "Junior DBA"
	RankTitleDBA       = "DBA"
	RankTitleSenior    = "Senior DBA"
	RankTitlePrincipal = "Principal DBA"
	RankTitleArchitect = "Database Architect"
)

type User struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	DisplayName    string    `json:"display_name"`
	HashedPassword string    `json:"-"` // Not exposed
	Role           string    `json:"role"`
	XPPoints       int       `json:"xp_points"`
	Level          int       `json:"level"`
	RankTitle      string    `json:"rank_title"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// LevelForXP maps total XP to a level. Level 1 at 0 XP, one level per 1000 XP.
func LevelForXP(xp int) int {
	return 1 + xp/1000
}

// RankTitleForLevel returns the title a user holds at the given level.
func RankTitleForLevel(level int) string {
	switch {
	case level >= 20:
		return RankTitleArchitect
	case level >= 15:
		return RankTitlePrincipal
	case level >= 10:
		return RankTitleSenior
	case level >= 5:
		return RankTitleDBA
	default:
		return RankTitleJunior
	}
}
