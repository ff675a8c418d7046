package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/medhub-labs/hospital-scheduling/internal/directory"
	"github.com/medhub-labs/hospital-scheduling/internal/metrics"
	redisclient "github.com/medhub-labs/hospital-scheduling/internal/redis"
)

const (
	EventAppointmentBooked    = "APPOINTMENT_BOOKED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventAppointmentCompleted = "APPOINTMENT_COMPLETED"
	EventBillPaid             = "BILL_PAID"
	EventPrescriptionAttached = "PRESCRIPTION_ATTACHED"
)

var (
	// ErrInvalidTransition means the appointment is no longer in a state the
	// requested transition is defined from. The client holds stale state and
	// should refetch.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrAppointmentNotCompleted gates prescriptions on the Completed state.
	ErrAppointmentNotCompleted = errors.New("appointment is not completed")

	// ErrDoctorFeeUnavailable is a data integrity fault: the doctor record
	// could not be resolved while billing a completion.
	ErrDoctorFeeUnavailable = errors.New("doctor fee unavailable")

	ErrUnknownSlot     = errors.New("time is not a clinic slot")
	ErrDoctorInactive  = errors.New("doctor is not accepting appointments")
	ErrSlotBeingBooked = errors.New("slot is currently being booked, please retry")
	ErrInvalidMedicine = errors.New("medicine entries require a name, dosage and duration")
)

type Service struct {
	repo      Repository
	directory directory.Store
	locker    redisclient.Locker
	slots     *SlotTemplate
	metrics   *metrics.SchedulingMetrics
	now       func() time.Time
}

func NewService(repo Repository, dir directory.Store, locker redisclient.Locker, slots *SlotTemplate, m *metrics.SchedulingMetrics) *Service {
	return &Service{
		repo:      repo,
		directory: dir,
		locker:    locker,
		slots:     slots,
		metrics:   m,
		now:       time.Now,
	}
}

// Book reserves a slot for a patient. A per-slot distributed lock narrows
// the race window between concurrent requests; the database's partial unique
// index stays the authoritative guard, so even a lost lock cannot produce a
// double booking.
func (s *Service) Book(ctx context.Context, doctorID, patientID int64, date time.Time, timeSlot, reason string) (*Appointment, error) {
	if !s.slots.Contains(timeSlot) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSlot, timeSlot)
	}

	doc, err := s.directory.GetDoctor(ctx, doctorID)
	if err != nil {
		if errors.Is(err, directory.ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	if !doc.IsActive {
		return nil, ErrDoctorInactive
	}

	if _, err := s.directory.GetPatient(ctx, patientID); err != nil {
		if errors.Is(err, directory.ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	var created *Appointment

	err = s.locker.WithSlotLock(ctx, slotKey(doctorID, date, timeSlot), func(lockCtx context.Context) error {
		// Advisory re-check inside the critical section; gives the common
		// case a clean conflict without burning an insert.
		booked, err := s.repo.ListBookedTimes(lockCtx, doctorID, date)
		if err != nil {
			return fmt.Errorf("check booked slots: %w", err)
		}
		for _, b := range booked {
			if b == timeSlot {
				return ErrSlotUnavailable
			}
		}

		appt, err := s.repo.CreateAppointment(lockCtx, doctorID, patientID, date, timeSlot, reason)
		if err != nil {
			return err
		}

		created = appt

		s.logEvent(lockCtx, appt.ID, EventAppointmentBooked, map[string]any{
			"doctor_id":  doctorID,
			"patient_id": patientID,
			"date":       date.Format(dateLayout),
			"time":       timeSlot,
		})

		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			s.metrics.ObserveBooking("contended")
			return nil, ErrSlotBeingBooked
		}
		if errors.Is(err, ErrSlotUnavailable) {
			s.metrics.ObserveBooking("conflict")
			return nil, err
		}
		s.metrics.ObserveBooking("error")
		return nil, err
	}

	s.metrics.ObserveBooking("booked")
	return created, nil
}

// GetAvailability returns the free slot labels for a doctor on a date, in
// chronological order. Past dates yield an empty list rather than an error.
// The result is advisory: Book re-checks atomically at write time.
func (s *Service) GetAvailability(ctx context.Context, doctorID int64, date time.Time) ([]string, error) {
	start := s.now()
	defer func() {
		s.metrics.ObserveAvailabilityLatency(time.Since(start).Seconds())
	}()

	doc, err := s.directory.GetDoctor(ctx, doctorID)
	if err != nil {
		if errors.Is(err, directory.ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	today := s.now().UTC().Truncate(24 * time.Hour)
	if date.Before(today) {
		return []string{}, nil
	}
	if !doc.IsActive {
		return []string{}, nil
	}

	booked, err := s.repo.ListBookedTimes(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("list booked slots: %w", err)
	}

	return s.slots.Subtract(booked), nil
}

// Cancel moves a Scheduled appointment to Cancelled and frees its slot.
func (s *Service) Cancel(ctx context.Context, id int64) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.Status != StatusScheduled {
		return nil, ErrInvalidTransition
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, id, StatusScheduled, StatusCancelled)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// The CAS missed: a concurrent Cancel or Complete won.
			s.metrics.ObserveTransition(string(StatusCancelled), "lost_race")
			return nil, ErrInvalidTransition
		}
		s.metrics.ObserveTransition(string(StatusCancelled), "error")
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	s.metrics.ObserveTransition(string(StatusCancelled), "ok")
	s.logEvent(ctx, updated.ID, EventAppointmentCancelled, map[string]any{})

	return updated, nil
}

// Complete moves a Scheduled appointment to Completed and, in the same
// transaction, materializes its bill at the doctor's current consultation
// fee. If billing fails the appointment stays Scheduled.
func (s *Service) Complete(ctx context.Context, id int64) (*Appointment, *Bill, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if appt.Status != StatusScheduled {
		return nil, nil, ErrInvalidTransition
	}

	// Fee is captured at completion time, not booking time.
	doc, err := s.directory.GetDoctor(ctx, appt.DoctorID)
	if err != nil {
		log.Printf("billing blocked: cannot resolve doctor %d for appointment %d: %v", appt.DoctorID, id, err)
		s.metrics.ObserveTransition(string(StatusCompleted), "fee_unavailable")
		return nil, nil, fmt.Errorf("%w: doctor %d: %v", ErrDoctorFeeUnavailable, appt.DoctorID, err)
	}

	updated, bill, err := s.repo.CompleteWithBill(ctx, id, doc.ConsultationFee)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			s.metrics.ObserveTransition(string(StatusCompleted), "lost_race")
			return nil, nil, ErrInvalidTransition
		}
		s.metrics.ObserveTransition(string(StatusCompleted), "error")
		return nil, nil, fmt.Errorf("complete appointment: %w", err)
	}

	s.metrics.ObserveTransition(string(StatusCompleted), "ok")
	s.logEvent(ctx, updated.ID, EventAppointmentCompleted, map[string]any{
		"bill_id": bill.ID,
		"amount":  bill.Amount,
	})

	return updated, bill, nil
}

// CompletionResult reports the outcome of a combined complete-and-prescribe
// call. PrescriptionErr is set when completion succeeded but the
// prescription step failed; the caller retries just that step.
type CompletionResult struct {
	Appointment     *Appointment
	Bill            *Bill
	Prescription    *Prescription
	PrescriptionErr error
}

// CompleteWithPrescription performs the "see patient, bill them, record
// prescription" action. Completion and billing are one transaction; the
// prescription is attached after and its failure never rolls them back.
func (s *Service) CompleteWithPrescription(ctx context.Context, id int64, diagnosis, notes string, medicines []Medicine) (*CompletionResult, error) {
	if err := validateMedicines(medicines); err != nil {
		return nil, err
	}

	appt, bill, err := s.Complete(ctx, id)
	if err != nil {
		return nil, err
	}

	result := &CompletionResult{Appointment: appt, Bill: bill}

	presc, err := s.repo.CreatePrescription(ctx, id, diagnosis, notes, medicines)
	if err != nil {
		log.Printf("prescription step failed for completed appointment %d: %v", id, err)
		result.PrescriptionErr = err
		return result, nil
	}

	result.Prescription = presc
	s.logEvent(ctx, id, EventPrescriptionAttached, map[string]any{
		"prescription_id": presc.ID,
		"medicines":       len(medicines),
	})

	return result, nil
}

// AttachPrescription records a diagnosis and medicine list against a
// Completed appointment.
func (s *Service) AttachPrescription(ctx context.Context, appointmentID int64, diagnosis, notes string, medicines []Medicine) (*Prescription, error) {
	if err := validateMedicines(medicines); err != nil {
		return nil, err
	}

	appt, err := s.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt.Status != StatusCompleted {
		return nil, ErrAppointmentNotCompleted
	}

	presc, err := s.repo.CreatePrescription(ctx, appointmentID, diagnosis, notes, medicines)
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, appointmentID, EventPrescriptionAttached, map[string]any{
		"prescription_id": presc.ID,
		"medicines":       len(medicines),
	})

	return presc, nil
}

// PayBill flips a Pending bill to Paid.
func (s *Service) PayBill(ctx context.Context, billID int64) (*Bill, error) {
	bill, err := s.repo.MarkBillPaid(ctx, billID)
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, bill.AppointmentID, EventBillPaid, map[string]any{
		"bill_id": bill.ID,
		"amount":  bill.Amount,
	})

	return bill, nil
}

func (s *Service) GetAppointment(ctx context.Context, id int64) (*AppointmentDetail, error) {
	return s.repo.GetAppointmentDetail(ctx, id)
}

func (s *Service) ListAppointments(ctx context.Context, filter AppointmentFilter) ([]AppointmentDetail, error) {
	return s.repo.ListAppointments(ctx, filter)
}

func (s *Service) ListBills(ctx context.Context, patientID *int64) ([]BillDetail, error) {
	return s.repo.ListBills(ctx, patientID)
}

func (s *Service) BillingSummary(ctx context.Context, patientID int64) (*BillingSummary, error) {
	return s.repo.BillingSummary(ctx, patientID)
}

func (s *Service) GetPrescriptionByAppointment(ctx context.Context, appointmentID int64) (*PrescriptionDetail, error) {
	return s.repo.GetPrescriptionByAppointment(ctx, appointmentID)
}

func validateMedicines(medicines []Medicine) error {
	for i, m := range medicines {
		if m.Name == "" || m.Dosage == "" || m.Duration == "" {
			return fmt.Errorf("%w: entry %d", ErrInvalidMedicine, i)
		}
	}
	return nil
}

func slotKey(doctorID int64, date time.Time, timeSlot string) string {
	return fmt.Sprintf("%d:%s:%s", doctorID, date.Format(dateLayout), timeSlot)
}

func (s *Service) logEvent(ctx context.Context, appointmentID int64, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("failed to marshal event payload for %s: %v", eventType, err)
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		log.Printf("failed to insert event log %s for appointment %d: %v", eventType, appointmentID, err)
	}
}
