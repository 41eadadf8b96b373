package ps

// Identity is the (pid, creation time) pair that distinguishes a process
// instance over time. The PID alone is not enough: the OS recycles PIDs,
// and a recycled PID gets a different creation time. An Identity is
// computed once, when a handle is constructed, and never mutated.
//
// The creation time may be absent only when the provider denied access
// while deriving it. Two such identities compare equal on PID alone — an
// explicitly weaker guarantee — while an identity with a known creation
// time never equals one without.
type Identity struct {
	Pid        int32
	CreateTime float64

	known bool
}

// NewIdentity returns an identity with a known creation time.
func NewIdentity(pid int32, createTime float64) Identity {
	return Identity{Pid: pid, CreateTime: createTime, known: true}
}

// pidOnlyIdentity is the degraded form used when the provider denies
// access to the creation time.
func pidOnlyIdentity(pid int32) Identity {
	return Identity{Pid: pid}
}

// HasCreateTime reports whether the creation time could be derived.
func (i Identity) HasCreateTime() bool { return i.known }

// Equal reports whether both identities refer to the same process
// instance: equal PIDs and equal creation-time fields. A present creation
// time never matches an absent one.
func (i Identity) Equal(o Identity) bool {
	if i.Pid != o.Pid || i.known != o.known {
		return false
	}
	return !i.known || i.CreateTime == o.CreateTime
}
