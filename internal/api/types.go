package api

import (
	"time"

	"github.com/medhub-labs/hospital-scheduling/internal/schedule"
)

type BookAppointmentRequest struct {
	DoctorID  int64  `json:"doctor_id"`
	PatientID int64  `json:"patient_id"`
	Date      string `json:"date"` // ISO 8601 calendar date
	Time      string `json:"time"` // slot label, e.g. "09:00 AM"
	Reason    string `json:"reason"`
}

type MedicineEntry struct {
	Name         string `json:"name"`
	Dosage       string `json:"dosage"`
	Duration     string `json:"duration"`
	Instructions string `json:"instructions,omitempty"`
}

// CompleteAppointmentRequest optionally carries a prescription so the
// front desk can complete, bill and prescribe in one action.
type CompleteAppointmentRequest struct {
	Diagnosis string          `json:"diagnosis,omitempty"`
	Notes     string          `json:"notes,omitempty"`
	Medicines []MedicineEntry `json:"medicines,omitempty"`
}

type CreatePrescriptionRequest struct {
	AppointmentID int64           `json:"appointment_id"`
	Diagnosis     string          `json:"diagnosis"`
	Notes         string          `json:"notes,omitempty"`
	Medicines     []MedicineEntry `json:"medicines"`
}

type AppointmentResponse struct {
	ID        int64  `json:"id"`
	DoctorID  int64  `json:"doctor_id"`
	PatientID int64  `json:"patient_id"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Reason    string `json:"reason,omitempty"`
	Status    string `json:"status"`
}

type AppointmentDetailResponse struct {
	AppointmentResponse
	PatientName    string `json:"patient_name"`
	DoctorName     string `json:"doctor_name"`
	Specialization string `json:"specialization"`
	Department     string `json:"department"`
}

type BillResponse struct {
	ID            int64      `json:"id"`
	AppointmentID int64      `json:"appointment_id"`
	Amount        float64    `json:"amount"`
	PaymentStatus string     `json:"payment_status"`
	GeneratedAt   time.Time  `json:"generated_at"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
}

type BillDetailResponse struct {
	BillResponse
	AppointmentDate string `json:"appointment_date"`
	AppointmentTime string `json:"appointment_time"`
	PatientID       int64  `json:"patient_id"`
	PatientName     string `json:"patient_name"`
	DoctorName      string `json:"doctor_name"`
	Specialization  string `json:"specialization"`
}

type BillingSummaryResponse struct {
	TotalBills        int64   `json:"total_bills"`
	PendingBills      int64   `json:"pending_bills"`
	TotalAmountDue    float64 `json:"total_amount_due"`
	TotalAmountBilled float64 `json:"total_amount_billed"`
}

type PrescriptionResponse struct {
	ID            int64           `json:"id"`
	AppointmentID int64           `json:"appointment_id"`
	Diagnosis     string          `json:"diagnosis"`
	Notes         string          `json:"notes,omitempty"`
	Medicines     []MedicineEntry `json:"medicines"`
	CreatedAt     time.Time       `json:"created_at"`
}

type PrescriptionDetailResponse struct {
	PrescriptionResponse
	AppointmentDate string `json:"appointment_date"`
	AppointmentTime string `json:"appointment_time"`
	PatientID       int64  `json:"patient_id"`
	PatientName     string `json:"patient_name"`
	PatientAge      int    `json:"patient_age"`
	PatientGender   string `json:"patient_gender,omitempty"`
	DoctorName      string `json:"doctor_name"`
	Specialization  string `json:"specialization"`
}

// CompleteAppointmentResponse reports the completion outcome. When the
// prescription step fails after completion committed, PrescriptionError
// carries a reason code so the client retries just that step.
type CompleteAppointmentResponse struct {
	Appointment       AppointmentResponse   `json:"appointment"`
	Bill              BillResponse          `json:"bill"`
	Prescription      *PrescriptionResponse `json:"prescription,omitempty"`
	PrescriptionError string                `json:"prescription_error,omitempty"`
}

type AvailabilityResponse struct {
	DoctorID       int64    `json:"doctor_id"`
	Date           string   `json:"date"`
	AvailableSlots []string `json:"available_slots"`
}

type DoctorResponse struct {
	ID              int64   `json:"id"`
	Name            string  `json:"name"`
	Specialization  string  `json:"specialization"`
	Department      string  `json:"department"`
	ConsultationFee float64 `json:"consultation_fee"`
	IsActive        bool    `json:"is_active"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

const dateLayout = "2006-01-02"

func toAppointmentResponse(a *schedule.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:        a.ID,
		DoctorID:  a.DoctorID,
		PatientID: a.PatientID,
		Date:      a.Date.Format(dateLayout),
		Time:      a.TimeSlot,
		Reason:    a.Reason,
		Status:    string(a.Status),
	}
}

func toBillResponse(b *schedule.Bill) BillResponse {
	return BillResponse{
		ID:            b.ID,
		AppointmentID: b.AppointmentID,
		Amount:        b.Amount,
		PaymentStatus: string(b.PaymentStatus),
		GeneratedAt:   b.GeneratedAt,
		PaidAt:        b.PaidAt,
	}
}

func toMedicineEntries(meds []schedule.Medicine) []MedicineEntry {
	out := make([]MedicineEntry, 0, len(meds))
	for _, m := range meds {
		out = append(out, MedicineEntry{
			Name:         m.Name,
			Dosage:       m.Dosage,
			Duration:     m.Duration,
			Instructions: m.Instructions,
		})
	}
	return out
}

func toMedicines(entries []MedicineEntry) []schedule.Medicine {
	out := make([]schedule.Medicine, 0, len(entries))
	for _, e := range entries {
		out = append(out, schedule.Medicine{
			Name:         e.Name,
			Dosage:       e.Dosage,
			Duration:     e.Duration,
			Instructions: e.Instructions,
		})
	}
	return out
}

func toPrescriptionResponse(p *schedule.Prescription) PrescriptionResponse {
	return PrescriptionResponse{
		ID:            p.ID,
		AppointmentID: p.AppointmentID,
		Diagnosis:     p.Diagnosis,
		Notes:         p.Notes,
		Medicines:     toMedicineEntries(p.Medicines),
		CreatedAt:     p.CreatedAt,
	}
}
