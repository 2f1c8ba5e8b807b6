package models

import (
	"time"
)

// ServiceSession is owned by the external CRUD subsystem. This core only
// reads it and opens it for self-check-in.
type ServiceSession struct {
	ID       int64
	Name     string
	StartsAt time.Time
	EndsAt   time.Time
	AdHoc    bool
}

type AttendanceStatus string

const (
	StatusAbsent      AttendanceStatus = "absent"
	StatusAttended    AttendanceStatus = "attended"
	StatusValidReason AttendanceStatus = "valid_reason"
)

// AttendanceRecord keyed by (session, username). Created by external
// registration; this core only moves Status forward from absent.
type AttendanceRecord struct {
	SessionID int64
	Username  string
	Status    AttendanceStatus
	InCharge  bool
}
