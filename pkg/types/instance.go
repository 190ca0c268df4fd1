package types

import (
	"strconv"

	pkgerrors "github.com/pkg/errors"
)

// InstanceID identifies one placed widget. It is assigned by the host and
// stays stable for the lifetime of the widget.
type InstanceID int

// InvalidInstanceID is the sentinel some hosts hand out by mistake. It is
// never tracked.
const InvalidInstanceID InstanceID = 0

func (id InstanceID) Valid() bool {
	return id != InvalidInstanceID
}

func (id InstanceID) String() string {
	return strconv.Itoa(int(id))
}

// ParseInstanceID parses a decimal instance id. The sentinel 0 is rejected.
func ParseInstanceID(s string) (InstanceID, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return InvalidInstanceID, pkgerrors.Wrapf(err, "invalid instance id %q", s)
	}
	id := InstanceID(i)
	if !id.Valid() {
		return InvalidInstanceID, pkgerrors.Errorf("invalid instance id %q", s)
	}
	return id, nil
}
