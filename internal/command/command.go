// Package command tokenizes chat lines into tagged command values.
// The grammar is fixed: claim <poi>, cancel <poi>, check claims,
// check <poi>, linksteam <17-digit id>. Case-insensitive, tolerant of
// a leading "!" or "/".
package command

import "strings"

// Command is the tagged result of parsing one chat line.
type Command interface{ isCommand() }

type ClaimCmd struct{ POI string }
type CancelCmd struct{ POI string }
type CheckClaimsCmd struct{}
type CheckCmd struct{ POI string }
type LinkCmd struct{ Steam64 string }
type Unrecognized struct{}

func (ClaimCmd) isCommand()       {}
func (CancelCmd) isCommand()      {}
func (CheckClaimsCmd) isCommand() {}
func (CheckCmd) isCommand()       {}
func (LinkCmd) isCommand()        {}
func (Unrecognized) isCommand()   {}

// Parse classifies one raw chat line. Unrecognized text is not an
// error; most chat is not a command.
func Parse(raw string) Command {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "!")
	s = strings.TrimPrefix(s, "/")

	fields := strings.Fields(s)
	if len(fields) == 0 {
		return Unrecognized{}
	}
	verb := strings.ToLower(fields[0])
	arg := strings.Join(fields[1:], " ")

	switch verb {
	case "claim":
		if arg == "" {
			return Unrecognized{}
		}
		return ClaimCmd{POI: arg}
	case "cancel":
		if arg == "" {
			return Unrecognized{}
		}
		return CancelCmd{POI: arg}
	case "check":
		if arg == "" {
			return Unrecognized{}
		}
		if strings.EqualFold(arg, "claims") {
			return CheckClaimsCmd{}
		}
		return CheckCmd{POI: arg}
	case "linksteam":
		if !isSteam64(arg) {
			return Unrecognized{}
		}
		return LinkCmd{Steam64: arg}
	default:
		return Unrecognized{}
	}
}

// isSteam64 reports whether s is exactly 17 ASCII digits.
func isSteam64(s string) bool {
	if len(s) != 17 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
