package db

import "strings"

// LikeEscape is the clause suffix matching the escaping done by ContainsPattern.
const LikeEscape = `ESCAPE '\'`

var likeReplacer = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ContainsPattern turns user input into a LIKE pattern matching it as a literal
// substring. Use it together with LikeEscape.
func ContainsPattern(term string) string {
	return "%" + likeReplacer.Replace(term) + "%"
}
