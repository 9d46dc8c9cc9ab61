// Package domain holds typed identifiers shared by the directory core.
//
// Each record set has its own ID type so a ReportID can never be passed where a
// BusinessID is expected. All IDs are UUIDs; the nil UUID is never valid.
package domain

import (
	"database/sql/driver"
	"fmt"

	"github.com/google/uuid"

	dErrors "trustdir/pkg/domain-errors"
)

type (
	BusinessID    uuid.UUID
	ApplicationID uuid.UUID
	ReportID      uuid.UUID
	BlacklistID   uuid.UUID
)

func NewBusinessID() BusinessID       { return BusinessID(uuid.New()) }
func NewApplicationID() ApplicationID { return ApplicationID(uuid.New()) }
func NewReportID() ReportID           { return ReportID(uuid.New()) }
func NewBlacklistID() BlacklistID     { return BlacklistID(uuid.New()) }

func (id BusinessID) String() string    { return uuid.UUID(id).String() }
func (id ApplicationID) String() string { return uuid.UUID(id).String() }
func (id ReportID) String() string      { return uuid.UUID(id).String() }
func (id BlacklistID) String() string   { return uuid.UUID(id).String() }

func (id BusinessID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id ApplicationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id ReportID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id BlacklistID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }

// Value implementations let typed IDs be passed straight to database/sql.
func (id BusinessID) Value() (driver.Value, error)    { return id.String(), nil }
func (id ApplicationID) Value() (driver.Value, error) { return id.String(), nil }
func (id ReportID) Value() (driver.Value, error)      { return id.String(), nil }
func (id BlacklistID) Value() (driver.Value, error)   { return id.String(), nil }

func (id BusinessID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }
func (id ApplicationID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id ReportID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id BlacklistID) MarshalText() ([]byte, error)   { return []byte(id.String()), nil }

func (id *BusinessID) UnmarshalText(b []byte) error    { return unmarshalID((*uuid.UUID)(id), b) }
func (id *ApplicationID) UnmarshalText(b []byte) error { return unmarshalID((*uuid.UUID)(id), b) }
func (id *ReportID) UnmarshalText(b []byte) error      { return unmarshalID((*uuid.UUID)(id), b) }
func (id *BlacklistID) UnmarshalText(b []byte) error   { return unmarshalID((*uuid.UUID)(id), b) }

func ParseBusinessID(s string) (BusinessID, error) {
	u, err := parseUUID(s, "business id")
	return BusinessID(u), err
}

func ParseApplicationID(s string) (ApplicationID, error) {
	u, err := parseUUID(s, "application id")
	return ApplicationID(u), err
}

func ParseReportID(s string) (ReportID, error) {
	u, err := parseUUID(s, "report id")
	return ReportID(u), err
}

func ParseBlacklistID(s string) (BlacklistID, error) {
	u, err := parseUUID(s, "blacklist id")
	return BlacklistID(u), err
}

func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" is required")
	}
	if len(s) > 64 {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" is too long")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, fmt.Sprintf("invalid %s", label))
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" must not be nil")
	}
	return u, nil
}

func unmarshalID(dst *uuid.UUID, b []byte) error {
	if len(b) == 0 {
		*dst = uuid.Nil
		return nil
	}
	u, err := uuid.ParseBytes(b)
	if err != nil {
		return err
	}
	*dst = u
	return nil
}
