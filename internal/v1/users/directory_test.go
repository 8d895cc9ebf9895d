package users

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestUpsertAndFind(t *testing.T) {
	d := NewDirectory()
	id := uuid.New()

	d.Upsert(User{ID: id, Name: "alice"})

	u, ok := d.Find(id)
	assert.True(t, ok)
	assert.Equal(t, "alice", u.Name)
	assert.Equal(t, 1, d.Len())
}

func TestUpsertTruncatesName(t *testing.T) {
	d := NewDirectory()
	id := uuid.New()

	u := d.Upsert(User{ID: id, Name: strings.Repeat("x", 40)})

	assert.Len(t, u.Name, MaxNameLength)
	stored, _ := d.Find(id)
	assert.Equal(t, u.Name, stored.Name)
}

func TestTruncateKeepsValidUTF8(t *testing.T) {
	// 6 two-byte runes: the 12-byte limit falls exactly between runes.
	even := strings.Repeat("é", 20)
	got := Truncate(even)
	assert.Equal(t, strings.Repeat("é", 6), got)
	assert.True(t, utf8.ValidString(got))

	// 4-byte runes: a naive byte slice at 12 would be fine here, so shift
	// the boundary with a leading ASCII byte to land mid-rune.
	uneven := "a" + strings.Repeat("💚", 10)
	got = Truncate(uneven)
	assert.Equal(t, "a"+strings.Repeat("💚", 2), got)
	assert.True(t, utf8.ValidString(got))
	assert.LessOrEqual(t, len(got), MaxNameLength)

	assert.Equal(t, "short", Truncate("short"))
}

func TestResolveFallsBackToGuest(t *testing.T) {
	d := NewDirectory()
	id := uuid.New()

	u := d.Resolve(id)

	assert.Equal(t, id, u.ID)
	assert.True(t, u.IsGuest)
	assert.False(t, u.IsBot)
	assert.True(t, strings.HasPrefix(u.Name, "Guest"))

	// A resolve does not implicitly register the guest.
	_, ok := d.Find(id)
	assert.False(t, ok)
}

func TestNewBot(t *testing.T) {
	a, b := NewBot(), NewBot()

	assert.NotEqual(t, a.ID, b.ID)
	assert.True(t, a.IsBot)
	assert.False(t, a.IsGuest)
	assert.LessOrEqual(t, len(a.Name), MaxNameLength)
}
