package domain

import (
	"time"

	"github.com/google/uuid"
)

type UserStatus string

const (
	UserStatusPending UserStatus = "pending"
	UserStatusActive  UserStatus = "active"
	UserStatusInvited UserStatus = "invited"
)

type Family struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Timezone  string    `json:"timezone" db:"timezone"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// User is a family member. ParentRole is derived at read time from
// CreatedAt ordering within a family, not stored directly.
type User struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	FamilyID  uuid.UUID  `json:"family_id" db:"family_id"`
	Email     string     `json:"email" db:"email"`
	Name      string     `json:"name" db:"name"`
	Status    UserStatus `json:"status" db:"status"`
	DeviceID  *string    `json:"device_id,omitempty" db:"device_id"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}

type EnrollmentCode struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	FamilyID  uuid.UUID  `json:"family_id" db:"family_id"`
	Code      string     `json:"code" db:"code"`
	ExpiresAt time.Time  `json:"expires_at" db:"expires_at"`
	UsedAt    *time.Time `json:"used_at,omitempty" db:"used_at"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

func (e *EnrollmentCode) IsValid(at time.Time) bool {
	return e.UsedAt == nil && at.Before(e.ExpiresAt)
}

// ResolveParents picks parent1 as the earliest-created active user in a
// family and parent2 as the next earliest. Families with fewer than two
// active users have no parent2.
func ResolveParents(users []User) (parent1, parent2 *User) {
	active := make([]User, 0, len(users))
	for _, u := range users {
		if u.IsActive() {
			active = append(active, u)
		}
	}
	for i := 0; i < len(active); i++ {
		for j := i + 1; j < len(active); j++ {
			if active[j].CreatedAt.Before(active[i].CreatedAt) {
				active[i], active[j] = active[j], active[i]
			}
		}
	}
	if len(active) > 0 {
		parent1 = &active[0]
	}
	if len(active) > 1 {
		parent2 = &active[1]
	}
	return parent1, parent2
}

// ResolveCustodians picks the two custodians a schedule template's
// parent1/parent2 slots resolve to: the two earliest-created members of
// the family, ordered by CreatedAt, regardless of status. Unlike
// ResolveParents this doesn't require the members be active, since a
// family with a pending or invited second member still has a
// well-defined custody split while that invite is outstanding.
func ResolveCustodians(users []User) (parent1, parent2 *User) {
	ordered := make([]User, len(users))
	copy(ordered, users)
	for i := 0; i < len(ordered); i++ {
		for j := i + 1; j < len(ordered); j++ {
			if ordered[j].CreatedAt.Before(ordered[i].CreatedAt) {
				ordered[i], ordered[j] = ordered[j], ordered[i]
			}
		}
	}
	if len(ordered) > 0 {
		parent1 = &ordered[0]
	}
	if len(ordered) > 1 {
		parent2 = &ordered[1]
	}
	return parent1, parent2
}

// OtherParent returns the family member opposite the given user ID among
// the two parents ResolveParents picks, used by the notification fan-out
// to resolve the recipient of a custody change.
func OtherParent(users []User, userID uuid.UUID) *User {
	p1, p2 := ResolveParents(users)
	switch {
	case p1 != nil && p1.ID == userID:
		return p2
	case p2 != nil && p2.ID == userID:
		return p1
	default:
		return nil
	}
}
