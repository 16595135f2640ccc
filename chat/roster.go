package chat

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// MaxNameLength bounds client display names.
const MaxNameLength = 32

// Errors returned by Roster.Rename.
var (
	ErrNameEmpty   = errors.New("name cannot be empty")
	ErrNameTooLong = fmt.Errorf("name cannot exceed %d characters", MaxNameLength)
	ErrNameInvalid = errors.New("names can only contain letters and numbers")
	ErrNameTaken   = errors.New("name already in use")

	// ErrUnknownClient is returned when a roster operation names an ID
	// that is not present.
	ErrUnknownClient = errors.New("no such client")
)

// Roster tracks the display name of every connected chat client, keyed by
// connection ID. It is held as a single JSON document so Snapshot can hand
// the whole thing to the debug HTTP endpoint without re-marshalling.
type Roster struct {
	mu     sync.Mutex
	values []byte
}

// NewRoster returns an empty roster.
func NewRoster() *Roster {
	return &Roster{values: []byte("{}")}
}

// Add registers a new client under its default name (Client<id>) and
// returns that name.
func (r *Roster) Add(id uint64) string {
	name := fmt.Sprintf("Client%d", id)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.values, _ = sjson.SetBytes(r.values, key(id), name)
	return name
}

// Rename validates the requested name and applies it, returning the
// previous name. Validation failures leave the roster untouched.
func (r *Roster) Rename(id uint64, name string) (string, error) {
	if len(name) == 0 {
		return "", ErrNameEmpty
	}
	if len(name) > MaxNameLength {
		return "", ErrNameTooLong
	}
	for _, c := range name {
		if !isAlphanumeric(c) {
			return "", ErrNameInvalid
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	old := gjson.GetBytes(r.values, key(id))
	if !old.Exists() {
		return "", ErrUnknownClient
	}

	taken := false
	gjson.ParseBytes(r.values).ForEach(func(_, value gjson.Result) bool {
		if value.String() == name {
			taken = true
			return false
		}
		return true
	})
	if taken {
		return "", ErrNameTaken
	}

	r.values, _ = sjson.SetBytes(r.values, key(id), name)
	return old.String(), nil
}

// Remove drops a client from the roster and returns the name it had.
func (r *Roster) Remove(id uint64) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	old := gjson.GetBytes(r.values, key(id))
	if !old.Exists() {
		return "", false
	}

	r.values, _ = sjson.DeleteBytes(r.values, key(id))
	return old.String(), true
}

// NameOf returns the display name for an ID.
func (r *Roster) NameOf(id uint64) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := gjson.GetBytes(r.values, key(id))
	return result.String(), result.Exists()
}

// IDOf returns the ID owning a display name.
func (r *Roster) IDOf(name string) (uint64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		id    uint64
		found bool
	)
	gjson.ParseBytes(r.values).ForEach(func(k, value gjson.Result) bool {
		if value.String() == name {
			id, _ = strconv.ParseUint(k.String(), 10, 64)
			found = true
			return false
		}
		return true
	})

	return id, found
}

// Names lists every display name in ID order.
func (r *Roster) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0)
	gjson.ParseBytes(r.values).ForEach(func(_, value gjson.Result) bool {
		names = append(names, value.String())
		return true
	})

	return names
}

// Snapshot returns the roster as a JSON document mapping IDs to names.
func (r *Roster) Snapshot() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := make([]byte, len(r.values))
	copy(snapshot, r.values)
	return snapshot
}

func key(id uint64) string {
	return strconv.FormatUint(id, 10)
}

func isAlphanumeric(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
