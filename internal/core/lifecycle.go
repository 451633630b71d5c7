package core

import "time"

// Lifecycle is the soft-delete state of a record: Active, or Deleted at a point in time.
// The zero value is Active.
type Lifecycle struct {
	deletedAt time.Time
}

func Active() Lifecycle {
	return Lifecycle{}
}

// Deleted returns the state of a record soft-deleted at t.
func Deleted(at time.Time) Lifecycle {
	if at.IsZero() {
		return Lifecycle{}
	}
	return Lifecycle{deletedAt: at.UTC()}
}

func (l Lifecycle) IsDeleted() bool {
	return !l.deletedAt.IsZero()
}

// DeletedAt returns the deletion time and true for deleted records.
func (l Lifecycle) DeletedAt() (time.Time, bool) {
	return l.deletedAt, !l.deletedAt.IsZero()
}

func (l Lifecycle) Equal(o Lifecycle) bool {
	return l.deletedAt.Equal(o.deletedAt)
}

func (l Lifecycle) String() string {
	if at, ok := l.DeletedAt(); ok {
		return "deleted@" + at.Format(time.RFC3339)
	}
	return "active"
}

// Touch stamps a mutation at now.
func (m *Meta) Touch(now time.Time) {
	m.UpdatedAt = now.UTC()
}

// MarkDeleted soft-deletes the record at now and stamps the mutation.
func (m *Meta) MarkDeleted(now time.Time) {
	m.State = Deleted(now)
	m.Touch(now)
}

// Init stamps a new record with createdAt = updatedAt = now.
func (m *Meta) Init(id, profileID string, now time.Time) {
	m.ID = id
	m.ProfileID = profileID
	m.CreatedAt = now.UTC()
	m.UpdatedAt = now.UTC()
	m.State = Active()
}
