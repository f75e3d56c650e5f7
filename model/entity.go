package model

import (
	"fmt"

	"github.com/google/uuid"
)

// EntityId is a composite primary key: a hierarchical path plus a
// footprint identifier ("library:name", empty for groups). Equality and
// hashing use (path, fpid); a footprint whose fpid changes becomes a
// distinct identity, which is how the lens expresses an FPID change as
// remove-then-add rather than an in-place rename.
type EntityId struct {
	Path EntityPath
	Fpid string
}

// NewEntityId builds an EntityId from a path and footprint identifier.
func NewEntityId(path EntityPath, fpid string) EntityId {
	return EntityId{Path: path, Fpid: fpid}
}

// EntityIdFromString parses path and fpid from their string forms.
func EntityIdFromString(path, fpid string) EntityId {
	return NewEntityId(PathFromString(path), fpid)
}

// String returns the entity's path, for display and log fields.
func (id EntityId) String() string {
	return id.Path.String()
}

// UUID derives the entity's stable identifier: a version-5 UUID of
// "path\0fpid" under the URL namespace. Changing either the path or the
// fpid yields a different UUID.
func (id EntityId) UUID() uuid.UUID {
	key := id.Path.String() + "\x00" + id.Fpid
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key))
}

// KiidUUID derives the legacy KIID-matching identifier: a version-5 UUID
// of the path alone, used to match layout records keyed by path without
// fpid (old boards written before fpid became part of identity).
func (id EntityId) KiidUUID() uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(id.Path.String()))
}

// KiidPath renders the canonical KIID-path form "/<u>/<u>" used to mark
// a footprint as managed by the lens. KIID_PATH is derived from the path
// alone (fpid is not recoverable from it), matching KiidUUID.
func (id EntityId) KiidPath() string {
	u := id.KiidUUID().String()
	return fmt.Sprintf("/%s/%s", u, u)
}

// ExpectedKiidPath renders the KIID-path expected for a managed
// footprint at the given path string, independent of fpid (extraction
// validates against this since fpid is not recoverable from the board's
// KIID_PATH field alone).
func ExpectedKiidPath(pathStr string) string {
	u := uuid.NewSHA1(uuid.NameSpaceURL, []byte(pathStr)).String()
	return fmt.Sprintf("/%s/%s", u, u)
}
