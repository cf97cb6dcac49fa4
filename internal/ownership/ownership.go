// Package ownership enforces that only a record's creator may modify it.
//
// Mutations are checked in a fixed order: the record must exist (404), the
// caller must be authenticated (401), the caller must be the creator (403),
// and an update must not try to change the creator (400).
package ownership

import (
	apperrors "github.com/utafrali/BlogGo/pkg/errors"
)

// Owned is a record with an immutable creator.
type Owned interface {
	OwnerID() string
}

// Stampable is a record whose creator is set at creation.
type Stampable interface {
	Owned
	SetOwnerID(id string)
}

// CreatorPatch is an update payload that may carry a creator field.
type CreatorPatch interface {
	RequestedCreator() (id string, present bool)
}

const msgCannotChangeCreator = "cannot change creator"

// Stamp sets rec's creator to callerID, discarding any client-supplied value.
func Stamp(callerID string, rec Stampable) error {
	if callerID == "" {
		return apperrors.Unauthorized("authentication required")
	}
	rec.SetOwnerID(callerID)
	return nil
}

// Authorize allows callerID to mutate rec only if it created rec.
func Authorize(callerID string, rec Owned) error {
	if callerID == "" {
		return apperrors.Unauthorized("authentication required")
	}
	if rec.OwnerID() != callerID {
		return apperrors.Forbidden("only the creator may modify this resource")
	}
	return nil
}

// CheckCreatorChange rejects a patch that names a creator other than the
// stored one. Naming the current creator is allowed and has no effect.
func CheckCreatorChange(rec Owned, patch CreatorPatch) error {
	if id, ok := patch.RequestedCreator(); ok && id != rec.OwnerID() {
		return apperrors.InvalidInput(msgCannotChangeCreator)
	}
	return nil
}

// AuthorizeUpdate runs Authorize then CheckCreatorChange.
func AuthorizeUpdate(callerID string, rec Owned, patch CreatorPatch) error {
	if err := Authorize(callerID, rec); err != nil {
		return err
	}
	return CheckCreatorChange(rec, patch)
}
