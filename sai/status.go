package sai

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Status is the result code of every switch call. Non-success statuses are
// returned as errors and can be matched with errors.Is.
type Status int32

const (
	StatusSuccess               Status = 0
	StatusFailure               Status = -1
	StatusNotSupported          Status = -2
	StatusNoMemory              Status = -3
	StatusInsufficientResources Status = -4
	StatusInvalidParameter      Status = -5
	StatusItemAlreadyExists     Status = -6
	StatusItemNotFound          Status = -7
	StatusBufferOverflow        Status = -8
	StatusInvalidPortNumber     Status = -9
	StatusInvalidPortMember     Status = -10
	StatusInvalidVLANID         Status = -11
	StatusUninitialized         Status = -12
	StatusTableFull             Status = -13
	StatusMandatoryAttrMissing  Status = -14
	StatusNotImplemented        Status = -15
	StatusAddrNotFound          Status = -16
	StatusObjectInUse           Status = -17
	StatusInvalidObjectType     Status = -18
	StatusInvalidObjectID       Status = -19
)

var statusNames = map[Status]string{
	StatusSuccess:               "SAI_STATUS_SUCCESS",
	StatusFailure:               "SAI_STATUS_FAILURE",
	StatusNotSupported:          "SAI_STATUS_NOT_SUPPORTED",
	StatusNoMemory:              "SAI_STATUS_NO_MEMORY",
	StatusInsufficientResources: "SAI_STATUS_INSUFFICIENT_RESOURCES",
	StatusInvalidParameter:      "SAI_STATUS_INVALID_PARAMETER",
	StatusItemAlreadyExists:     "SAI_STATUS_ITEM_ALREADY_EXISTS",
	StatusItemNotFound:          "SAI_STATUS_ITEM_NOT_FOUND",
	StatusBufferOverflow:        "SAI_STATUS_BUFFER_OVERFLOW",
	StatusInvalidPortNumber:     "SAI_STATUS_INVALID_PORT_NUMBER",
	StatusInvalidPortMember:     "SAI_STATUS_INVALID_PORT_MEMBER",
	StatusInvalidVLANID:         "SAI_STATUS_INVALID_VLAN_ID",
	StatusUninitialized:         "SAI_STATUS_UNINITIALIZED",
	StatusTableFull:             "SAI_STATUS_TABLE_FULL",
	StatusMandatoryAttrMissing:  "SAI_STATUS_MANDATORY_ATTRIBUTE_MISSING",
	StatusNotImplemented:        "SAI_STATUS_NOT_IMPLEMENTED",
	StatusAddrNotFound:          "SAI_STATUS_ADDR_NOT_FOUND",
	StatusObjectInUse:           "SAI_STATUS_OBJECT_IN_USE",
	StatusInvalidObjectType:     "SAI_STATUS_INVALID_OBJECT_TYPE",
	StatusInvalidObjectID:       "SAI_STATUS_INVALID_OBJECT_ID",
}

// ErrProtocolViolation marks a malformed or out-of-order response. The
// client and daemon can no longer be trusted to agree on state.
var ErrProtocolViolation = errors.New("protocol violation")

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("SAI_STATUS_%d", int32(s))
}

func (s Status) Error() string {
	return s.String()
}

// ParseStatus is the inverse of Status.String.
func ParseStatus(name string) (Status, error) {
	for s, n := range statusNames {
		if n == name {
			return s, nil
		}
	}
	if n, ok := strings.CutPrefix(name, "SAI_STATUS_"); ok {
		if v, err := strconv.ParseInt(n, 10, 32); err == nil {
			return Status(v), nil
		}
	}
	return StatusFailure, fmt.Errorf("unknown status %q: %w", name, StatusInvalidParameter)
}

// StatusOf maps an error back to a Status. Errors that carry no status
// map to StatusFailure.
func StatusOf(err error) Status {
	if err == nil {
		return StatusSuccess
	}
	var s Status
	if errors.As(err, &s) {
		return s
	}
	return StatusFailure
}

// Err returns nil for StatusSuccess and s otherwise.
func (s Status) Err() error {
	if s == StatusSuccess {
		return nil
	}
	return s
}
