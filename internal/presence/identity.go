// Package presence tracks who is in a room and where their pointer is.
package presence

import (
	"fmt"
	"math/rand/v2"
	"strings"
)

// Palette is the set of cursor colors handed out to sessions.
var Palette = []string{"#FF6B6B", "#4ECDC4", "#45B7D1", "#96CEB4", "#FFEAA7", "#DDA0DD", "#98D8C8", "#F7DC6F"}

// Identity is the display identity of a session.
type Identity struct {
	UserID string
	Color  string
}

// NewIdentity returns an anonymous label and a palette color.
func NewIdentity() Identity {
	return Identity{
		UserID: fmt.Sprintf("Anonymous #%d", 100+rand.IntN(900)),
		Color:  Palette[rand.IntN(len(Palette))],
	}
}

// ResolveIdentity keeps the requested identity when it is usable and fills the rest.
// A reconnecting client passes its previous identity so its label survives the new session.
func ResolveIdentity(userID, color string) Identity {
	id := NewIdentity()
	if u := strings.TrimSpace(userID); u != "" && len(u) <= 64 {
		id.UserID = u
	}
	if validColor(color) {
		id.Color = color
	}
	return id
}

func validColor(c string) bool {
	if len(c) != 7 || c[0] != '#' {
		return false
	}
	for _, r := range c[1:] {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
