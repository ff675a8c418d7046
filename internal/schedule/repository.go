package schedule

import (
	"context"
	"errors"
	"time"
)

var (
	ErrAppointmentNotFound  = errors.New("appointment not found")
	ErrBillNotFound         = errors.New("bill not found")
	ErrPrescriptionNotFound = errors.New("prescription not found")

	// ErrSlotUnavailable means the (doctor, date, time) tuple already holds a
	// Scheduled or Completed appointment. Raised by the atomic
	// check-and-insert, never by string-matching store errors.
	ErrSlotUnavailable = errors.New("slot already booked for this doctor")

	// ErrBillAlreadyPaid guards the one-way Pending -> Paid transition.
	ErrBillAlreadyPaid = errors.New("bill is already paid")

	// ErrPrescriptionExists enforces at most one prescription per appointment.
	ErrPrescriptionExists = errors.New("appointment already has a prescription")
)

// AppointmentFilter narrows ListAppointments; nil fields mean no filter.
type AppointmentFilter struct {
	DoctorID  *int64
	PatientID *int64
}

// Repository contains all DB interactions needed by the service.
type Repository interface {
	// CreateAppointment is the authoritative guard against double booking:
	// the insert and the uniqueness check are one atomic statement, and a
	// conflicting non-Cancelled row yields ErrSlotUnavailable.
	CreateAppointment(ctx context.Context, doctorID, patientID int64, date time.Time, timeSlot, reason string) (*Appointment, error)
	GetAppointmentByID(ctx context.Context, id int64) (*Appointment, error)
	GetAppointmentDetail(ctx context.Context, id int64) (*AppointmentDetail, error)
	ListAppointments(ctx context.Context, filter AppointmentFilter) ([]AppointmentDetail, error)

	// ListBookedTimes returns slot labels holding a Scheduled or Completed
	// appointment for (doctorID, date). Cancelled rows do not count.
	ListBookedTimes(ctx context.Context, doctorID int64, date time.Time) ([]string, error)

	// UpdateAppointmentStatus is a compare-and-swap; a miss (row absent or
	// not in `from`) returns ErrAppointmentNotFound.
	UpdateAppointmentStatus(ctx context.Context, id int64, from, to AppointmentStatus) (*Appointment, error)

	// CompleteWithBill flips the appointment to Completed and inserts its
	// bill in a single transaction. Either both commit or neither does.
	CompleteWithBill(ctx context.Context, id int64, amount float64) (*Appointment, *Bill, error)

	GetBillByAppointment(ctx context.Context, appointmentID int64) (*Bill, error)
	ListBills(ctx context.Context, patientID *int64) ([]BillDetail, error)
	MarkBillPaid(ctx context.Context, billID int64) (*Bill, error)
	BillingSummary(ctx context.Context, patientID int64) (*BillingSummary, error)

	// CreatePrescription inserts the prescription row and its medicines as
	// one unit.
	CreatePrescription(ctx context.Context, appointmentID int64, diagnosis, notes string, medicines []Medicine) (*Prescription, error)
	GetPrescriptionByAppointment(ctx context.Context, appointmentID int64) (*PrescriptionDetail, error)

	// Audit trail
	InsertEvent(ctx context.Context, ev EventLog) error
}
