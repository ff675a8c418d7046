package directory

import (
	"context"
	"errors"
)

var (
	ErrDoctorNotFound     = errors.New("doctor not found")
	ErrPatientNotFound    = errors.New("patient not found")
	ErrDepartmentNotFound = errors.New("department not found")
)

// Store is the read-only directory surface the scheduling core depends on.
// Doctor/patient/department writes live elsewhere.
type Store interface {
	GetDoctor(ctx context.Context, id int64) (*Doctor, error)
	ListDoctors(ctx context.Context) ([]Doctor, error)
	GetPatient(ctx context.Context, id int64) (*Patient, error)
	GetDepartment(ctx context.Context, id int64) (*Department, error)
}
