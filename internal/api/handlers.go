package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/medhub-labs/hospital-scheduling/internal/directory"
	"github.com/medhub-labs/hospital-scheduling/internal/schedule"
)

func parseIDParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return id, nil
}

func bookAppointmentHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		if req.DoctorID <= 0 || req.PatientID <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "doctor_id and patient_id are required")
			return
		}

		date, err := schedule.ParseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		appt, err := svc.Book(r.Context(), req.DoctorID, req.PatientID, date, req.Time, req.Reason)
		if err != nil {
			handleBookError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func listAppointmentsHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var filter schedule.AppointmentFilter

		if raw := r.URL.Query().Get("doctor_id"); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be an integer")
				return
			}
			filter.DoctorID = &id
		}
		if raw := r.URL.Query().Get("patient_id"); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be an integer")
				return
			}
			filter.PatientID = &id
		}

		appts, err := svc.ListAppointments(r.Context(), filter)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		resp := make([]AppointmentDetailResponse, 0, len(appts))
		for i := range appts {
			a := &appts[i]
			resp = append(resp, AppointmentDetailResponse{
				AppointmentResponse: toAppointmentResponse(&a.Appointment),
				PatientName:         a.PatientName,
				DoctorName:          a.DoctorName,
				Specialization:      a.Specialization,
				Department:          a.Department,
			})
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func getAppointmentHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseIDParam(r, "id")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", err.Error())
			return
		}

		a, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			if errors.Is(err, schedule.ErrAppointmentNotFound) {
				writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, AppointmentDetailResponse{
			AppointmentResponse: toAppointmentResponse(&a.Appointment),
			PatientName:         a.PatientName,
			DoctorName:          a.DoctorName,
			Specialization:      a.Specialization,
			Department:          a.Department,
		})
	}
}

func completeAppointmentHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseIDParam(r, "id")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", err.Error())
			return
		}

		// The body is optional: an empty or absent body completes without
		// a prescription.
		var req CompleteAppointmentRequest
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
				return
			}
		}

		if req.Diagnosis == "" && len(req.Medicines) == 0 {
			appt, bill, err := svc.Complete(r.Context(), id)
			if err != nil {
				handleTransitionError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, CompleteAppointmentResponse{
				Appointment: toAppointmentResponse(appt),
				Bill:        toBillResponse(bill),
			})
			return
		}

		result, err := svc.CompleteWithPrescription(r.Context(), id, req.Diagnosis, req.Notes, toMedicines(req.Medicines))
		if err != nil {
			if errors.Is(err, schedule.ErrInvalidMedicine) {
				writeError(w, http.StatusBadRequest, "invalid_medicine", err.Error())
				return
			}
			handleTransitionError(w, err)
			return
		}

		resp := CompleteAppointmentResponse{
			Appointment: toAppointmentResponse(result.Appointment),
			Bill:        toBillResponse(result.Bill),
		}
		if result.Prescription != nil {
			p := toPrescriptionResponse(result.Prescription)
			resp.Prescription = &p
		}
		if result.PrescriptionErr != nil {
			resp.PrescriptionError = prescriptionErrorCode(result.PrescriptionErr)
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func cancelAppointmentHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseIDParam(r, "id")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", err.Error())
			return
		}

		appt, err := svc.Cancel(r.Context(), id)
		if err != nil {
			handleTransitionError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func availabilityHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := strconv.ParseInt(r.URL.Query().Get("doctor_id"), 10, 64)
		if err != nil || doctorID <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a positive integer")
			return
		}

		date, err := schedule.ParseDate(r.URL.Query().Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		slots, err := svc.GetAvailability(r.Context(), doctorID, date)
		if err != nil {
			if errors.Is(err, directory.ErrDoctorNotFound) {
				writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, AvailabilityResponse{
			DoctorID:       doctorID,
			Date:           date.Format(dateLayout),
			AvailableSlots: slots,
		})
	}
}

func createPrescriptionHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreatePrescriptionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		if req.AppointmentID <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "appointment_id is required")
			return
		}

		presc, err := svc.AttachPrescription(r.Context(), req.AppointmentID, req.Diagnosis, req.Notes, toMedicines(req.Medicines))
		if err != nil {
			handlePrescriptionError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toPrescriptionResponse(presc))
	}
}

func getPrescriptionHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appointmentID, err := parseIDParam(r, "appointmentID")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", err.Error())
			return
		}

		d, err := svc.GetPrescriptionByAppointment(r.Context(), appointmentID)
		if err != nil {
			if errors.Is(err, schedule.ErrPrescriptionNotFound) {
				writeError(w, http.StatusNotFound, "prescription_not_found", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, PrescriptionDetailResponse{
			PrescriptionResponse: toPrescriptionResponse(&d.Prescription),
			AppointmentDate:      d.AppointmentDate.Format(dateLayout),
			AppointmentTime:      d.AppointmentTime,
			PatientID:            d.PatientID,
			PatientName:          d.PatientName,
			PatientAge:           d.PatientAge,
			PatientGender:        d.PatientGender,
			DoctorName:           d.DoctorName,
			Specialization:       d.Specialization,
		})
	}
}

func listBillsHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patientID *int64
		if raw := r.URL.Query().Get("patient_id"); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be an integer")
				return
			}
			patientID = &id
		}

		bills, err := svc.ListBills(r.Context(), patientID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		resp := make([]BillDetailResponse, 0, len(bills))
		for i := range bills {
			b := &bills[i]
			resp = append(resp, BillDetailResponse{
				BillResponse:    toBillResponse(&b.Bill),
				AppointmentDate: b.AppointmentDate.Format(dateLayout),
				AppointmentTime: b.AppointmentTime,
				PatientID:       b.PatientID,
				PatientName:     b.PatientName,
				DoctorName:      b.DoctorName,
				Specialization:  b.Specialization,
			})
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func payBillHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseIDParam(r, "id")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_bill_id", err.Error())
			return
		}

		bill, err := svc.PayBill(r.Context(), id)
		if err != nil {
			switch {
			case errors.Is(err, schedule.ErrBillNotFound):
				writeError(w, http.StatusNotFound, "bill_not_found", err.Error())
			case errors.Is(err, schedule.ErrBillAlreadyPaid):
				writeError(w, http.StatusConflict, "bill_already_paid", err.Error())
			default:
				writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			}
			return
		}

		writeJSON(w, http.StatusOK, toBillResponse(bill))
	}
}

func billingSummaryHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, err := parseIDParam(r, "patientID")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", err.Error())
			return
		}

		s, err := svc.BillingSummary(r.Context(), patientID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, BillingSummaryResponse{
			TotalBills:        s.TotalBills,
			PendingBills:      s.PendingBills,
			TotalAmountDue:    s.TotalAmountDue,
			TotalAmountBilled: s.TotalAmountBilled,
		})
	}
}

func listDoctorsHandler(dir directory.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctors, err := dir.ListDoctors(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		resp := make([]DoctorResponse, 0, len(doctors))
		for _, d := range doctors {
			resp = append(resp, DoctorResponse{
				ID:              d.ID,
				Name:            d.Name,
				Specialization:  d.Specialization,
				Department:      d.Department,
				ConsultationFee: d.ConsultationFee,
				IsActive:        d.IsActive,
			})
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func getDoctorHandler(dir directory.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseIDParam(r, "id")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", err.Error())
			return
		}

		d, err := dir.GetDoctor(r.Context(), id)
		if err != nil {
			if errors.Is(err, directory.ErrDoctorNotFound) {
				writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, DoctorResponse{
			ID:              d.ID,
			Name:            d.Name,
			Specialization:  d.Specialization,
			Department:      d.Department,
			ConsultationFee: d.ConsultationFee,
			IsActive:        d.IsActive,
		})
	}
}

func handleBookError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, directory.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, directory.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, schedule.ErrUnknownSlot):
		writeError(w, http.StatusBadRequest, "invalid_slot", err.Error())
	case errors.Is(err, schedule.ErrDoctorInactive):
		writeError(w, http.StatusConflict, "doctor_inactive", err.Error())
	case errors.Is(err, schedule.ErrSlotUnavailable):
		// Distinct, user-correctable outcome: pick another time.
		writeError(w, http.StatusConflict, "SLOT_UNAVAILABLE", err.Error())
	case errors.Is(err, schedule.ErrSlotBeingBooked):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func handleTransitionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, schedule.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, schedule.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, schedule.ErrDoctorFeeUnavailable):
		// Data integrity fault; surfaced as a server error, never a 4xx.
		writeError(w, http.StatusInternalServerError, "billing_unavailable", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func handlePrescriptionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, schedule.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, schedule.ErrAppointmentNotCompleted):
		writeError(w, http.StatusConflict, "appointment_not_completed", err.Error())
	case errors.Is(err, schedule.ErrPrescriptionExists):
		writeError(w, http.StatusConflict, "prescription_exists", err.Error())
	case errors.Is(err, schedule.ErrInvalidMedicine):
		writeError(w, http.StatusBadRequest, "invalid_medicine", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func prescriptionErrorCode(err error) string {
	switch {
	case errors.Is(err, schedule.ErrPrescriptionExists):
		return "prescription_exists"
	case errors.Is(err, schedule.ErrInvalidMedicine):
		return "invalid_medicine"
	default:
		return "prescription_failed"
	}
}
