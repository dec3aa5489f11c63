package domain

// GradeRank maps a letter grade to its numeric rank, S highest.
// Used for the best-suited-role recommendation and role statistics.
var GradeRank = map[string]int{
	"S": 6,
	"A": 5,
	"B": 4,
	"C": 3,
	"D": 2,
	"F": 1,
}

// RoleStats summarizes a user's completed sessions for one role.
type RoleStats struct {
	Recent string `json:"recent"`
	Best   string `json:"best"`
}
