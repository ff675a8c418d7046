package schedule

import "time"

type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "Scheduled"
	StatusCompleted AppointmentStatus = "Completed"
	StatusCancelled AppointmentStatus = "Cancelled"
)

// Terminal reports whether no further transition is defined out of s.
func (s AppointmentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "Pending"
	PaymentPaid    PaymentStatus = "Paid"
)

type Appointment struct {
	ID        int64
	DoctorID  int64
	PatientID int64
	Date      time.Time // calendar date, midnight UTC
	TimeSlot  string    // slot label, e.g. "09:00 AM"
	Reason    string
	Status    AppointmentStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AppointmentDetail joins the display fields the front desk renders.
type AppointmentDetail struct {
	Appointment
	PatientName    string
	DoctorName     string
	Specialization string
	Department     string
}

type Bill struct {
	ID            int64
	AppointmentID int64
	Amount        float64
	PaymentStatus PaymentStatus
	GeneratedAt   time.Time
	PaidAt        *time.Time
}

type BillDetail struct {
	Bill
	AppointmentDate time.Time
	AppointmentTime string
	PatientID       int64
	PatientName     string
	DoctorName      string
	Specialization  string
}

type BillingSummary struct {
	TotalBills        int64
	PendingBills      int64
	TotalAmountDue    float64
	TotalAmountBilled float64
}

type Medicine struct {
	Name         string
	Dosage       string
	Duration     string
	Instructions string
}

type Prescription struct {
	ID            int64
	AppointmentID int64
	Diagnosis     string
	Notes         string
	Medicines     []Medicine
	CreatedAt     time.Time
}

type PrescriptionDetail struct {
	Prescription
	AppointmentDate time.Time
	AppointmentTime string
	PatientID       int64
	PatientName     string
	PatientAge      int
	PatientGender   string
	DoctorName      string
	Specialization  string
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *int64
	Payload       []byte
	CreatedAt     time.Time
}
