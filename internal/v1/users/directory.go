// Package users holds the participant directory: the mapping from opaque
// user ids to display records (guests, registered players and synthesized
// bots). The directory is consulted when a room transitions from waiting to
// started; unknown ids fall back to a synthesized guest record.
package users

import (
	"fmt"
	"math/rand"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxNameLength is the display-name limit enforced on every record.
const MaxNameLength = 12

// ID is an opaque 128-bit user identifier, minted at session issuance.
type ID = uuid.UUID

// User is immutable for the lifetime of a room.
type User struct {
	ID      ID     `json:"id"`
	Name    string `json:"name"`
	IsGuest bool   `json:"isGuest"`
	IsBot   bool   `json:"isBot"`
}

// Directory is a concurrent user registry. Insert-or-update only; records
// are never evicted.
type Directory struct {
	mu    sync.RWMutex
	users map[ID]User
}

func NewDirectory() *Directory {
	return &Directory{users: make(map[ID]User)}
}

// Upsert stores the user, truncating the display name to MaxNameLength.
func (d *Directory) Upsert(u User) User {
	u.Name = Truncate(u.Name)
	d.mu.Lock()
	d.users[u.ID] = u
	d.mu.Unlock()
	return u
}

// Find returns the record for id, if any.
func (d *Directory) Find(id ID) (User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[id]
	return u, ok
}

// Resolve returns the stored record for id, or a synthesized guest record
// carrying that id when the directory has never seen it.
func (d *Directory) Resolve(id ID) User {
	if u, ok := d.Find(id); ok {
		return u
	}
	return NewGuest(id)
}

// Len reports the number of known users.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.users)
}

// NewGuest synthesizes a guest record for an id the directory does not know.
func NewGuest(id ID) User {
	return User{
		ID:      id,
		Name:    Truncate(fmt.Sprintf("Guest%d", rand.Intn(1_000_000))),
		IsGuest: true,
	}
}

// NewBot mints a bot user with a fresh id. Bots are never guests; they are
// seated by the room actor at JoinBot time.
func NewBot() User {
	return User{
		ID:    uuid.New(),
		Name:  Truncate(fmt.Sprintf("Bot%d", rand.Intn(1_000_000))),
		IsBot: true,
	}
}

// Truncate clips a display name to at most MaxNameLength bytes, cutting on
// a rune boundary so the result stays valid UTF-8.
func Truncate(name string) string {
	if len(name) <= MaxNameLength {
		return name
	}
	cut := MaxNameLength
	for cut > 0 && !utf8.RuneStart(name[cut]) {
		cut--
	}
	return name[:cut]
}
