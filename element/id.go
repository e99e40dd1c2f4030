package element

// IDState tells whether an element exists in the target database or
// waits for creation by the editor.
type IDState int

const (
	Persisted IDState = iota
	Pending
)

// ID is an element identifier with an explicit persistence state. On the
// wire, pending ids are written as negative numbers with Key as magnitude.
type ID struct {
	State IDState
	Key   int64
}

// ParseID interprets a wire id; negative ids are pending.
func ParseID(v int64) ID {
	if v < 0 {
		return ID{State: Pending, Key: -v}
	}
	return ID{State: Persisted, Key: v}
}

func PersistedID(v int64) ID {
	return ID{State: Persisted, Key: magnitude(v)}
}

func PendingID(v int64) ID {
	return ID{State: Pending, Key: magnitude(v)}
}

// Value returns the wire representation of id.
func (id ID) Value() int64 {
	if id.State == Pending {
		return -id.Key
	}
	return id.Key
}

func (id ID) IsPending() bool {
	return id.State == Pending
}

// As returns an id with the same key in the given state.
func (id ID) As(state IDState) ID {
	return ID{State: state, Key: id.Key}
}

func magnitude(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
