package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

var apptColumns = []string{
	"id", "doctor_id", "patient_id", "appointment_date", "appointment_time",
	"reason", "status", "created_at", "updated_at",
}

var billColumns = []string{
	"id", "appointment_id", "amount", "payment_status", "generated_at", "paid_at",
}

func apptRow(id int64, status AppointmentStatus) *pgxmock.Rows {
	now := time.Now()
	date := time.Date(2025, 11, 10, 0, 0, 0, 0, time.UTC)
	return pgxmock.NewRows(apptColumns).
		AddRow(id, int64(5), int64(9), date, "09:00 AM", "checkup", status, now, now)
}

func TestPgCreateAppointment(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	date := time.Date(2025, 11, 10, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(int64(5), int64(9), date, "09:00 AM", "checkup").
		WillReturnRows(apptRow(101, StatusScheduled))

	repo := NewPgRepository(mock)
	appt, err := repo.CreateAppointment(context.Background(), 5, 9, date, "09:00 AM", "checkup")
	require.NoError(t, err)
	require.Equal(t, int64(101), appt.ID)
	require.Equal(t, StatusScheduled, appt.Status)
}

func TestPgCreateAppointmentSlotConflict(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	date := time.Date(2025, 11, 10, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(int64(5), int64(12), date, "09:00 AM", "flu").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "uq_appointments_doctor_slot"})

	repo := NewPgRepository(mock)
	_, err = repo.CreateAppointment(context.Background(), 5, 12, date, "09:00 AM", "flu")
	require.ErrorIs(t, err, ErrSlotUnavailable)
}

func TestPgCreateAppointmentOtherErrorPassesThrough(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	date := time.Date(2025, 11, 10, 0, 0, 0, 0, time.UTC)
	boom := errors.New("connection reset")
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(int64(5), int64(12), date, "09:00 AM", "flu").
		WillReturnError(boom)

	repo := NewPgRepository(mock)
	_, err = repo.CreateAppointment(context.Background(), 5, 12, date, "09:00 AM", "flu")
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, ErrSlotUnavailable)
}

func TestPgUpdateAppointmentStatusCASMiss(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("UPDATE appointments").
		WithArgs(int64(101), StatusCancelled, StatusScheduled).
		WillReturnRows(pgxmock.NewRows(apptColumns))

	repo := NewPgRepository(mock)
	_, err = repo.UpdateAppointmentStatus(context.Background(), 101, StatusScheduled, StatusCancelled)
	require.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestPgCompleteWithBill(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE appointments").
		WithArgs(int64(101)).
		WillReturnRows(apptRow(101, StatusCompleted))
	mock.ExpectQuery("INSERT INTO bills").
		WithArgs(int64(101), 150.0).
		WillReturnRows(pgxmock.NewRows(billColumns).
			AddRow(int64(1), int64(101), 150.0, PaymentPending, now, (*time.Time)(nil)))
	mock.ExpectCommit()

	repo := NewPgRepository(mock)
	appt, bill, err := repo.CompleteWithBill(context.Background(), 101, 150.0)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, appt.Status)
	require.Equal(t, int64(101), bill.AppointmentID)
	require.Equal(t, 150.0, bill.Amount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgCompleteWithBillRollsBackOnCASMiss(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE appointments").
		WithArgs(int64(101)).
		WillReturnRows(pgxmock.NewRows(apptColumns))
	mock.ExpectRollback()

	repo := NewPgRepository(mock)
	_, _, err = repo.CompleteWithBill(context.Background(), 101, 150.0)
	require.ErrorIs(t, err, ErrAppointmentNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgCompleteWithBillRollsBackOnBillFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE appointments").
		WithArgs(int64(101)).
		WillReturnRows(apptRow(101, StatusCompleted))
	mock.ExpectQuery("INSERT INTO bills").
		WithArgs(int64(101), 150.0).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	repo := NewPgRepository(mock)
	_, _, err = repo.CompleteWithBill(context.Background(), 101, 150.0)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgListBookedTimes(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	date := time.Date(2025, 11, 10, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT appointment_time").
		WithArgs(int64(5), date).
		WillReturnRows(pgxmock.NewRows([]string{"appointment_time"}).
			AddRow("09:00 AM").
			AddRow("02:30 PM"))

	repo := NewPgRepository(mock)
	times, err := repo.ListBookedTimes(context.Background(), 5, date)
	require.NoError(t, err)
	require.Equal(t, []string{"09:00 AM", "02:30 PM"}, times)
}

func TestPgMarkBillPaid(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now()
	mock.ExpectQuery("UPDATE bills").
		WithArgs(int64(1)).
		WillReturnRows(pgxmock.NewRows(billColumns).
			AddRow(int64(1), int64(101), 150.0, PaymentPaid, now, &now))

	repo := NewPgRepository(mock)
	bill, err := repo.MarkBillPaid(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, PaymentPaid, bill.PaymentStatus)
	require.NotNil(t, bill.PaidAt)
}

func TestPgMarkBillPaidAlreadyPaid(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("UPDATE bills").
		WithArgs(int64(1)).
		WillReturnRows(pgxmock.NewRows(billColumns))
	mock.ExpectQuery("SELECT payment_status FROM bills").
		WithArgs(int64(1)).
		WillReturnRows(pgxmock.NewRows([]string{"payment_status"}).AddRow(PaymentPaid))

	repo := NewPgRepository(mock)
	_, err = repo.MarkBillPaid(context.Background(), 1)
	require.ErrorIs(t, err, ErrBillAlreadyPaid)
}

func TestPgMarkBillPaidNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("UPDATE bills").
		WithArgs(int64(77)).
		WillReturnRows(pgxmock.NewRows(billColumns))
	mock.ExpectQuery("SELECT payment_status FROM bills").
		WithArgs(int64(77)).
		WillReturnRows(pgxmock.NewRows([]string{"payment_status"}))

	repo := NewPgRepository(mock)
	_, err = repo.MarkBillPaid(context.Background(), 77)
	require.ErrorIs(t, err, ErrBillNotFound)
}

func TestPgCreatePrescription(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO prescriptions").
		WithArgs(int64(101), "bronchitis", "rest").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(7), now))
	mock.ExpectExec("INSERT INTO prescription_medicines").
		WithArgs(int64(7), "Amoxicillin", "500mg", "7 days", "", 0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO prescription_medicines").
		WithArgs(int64(7), "Ibuprofen", "200mg", "3 days", "with food", 1).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	repo := NewPgRepository(mock)
	presc, err := repo.CreatePrescription(context.Background(), 101, "bronchitis", "rest", []Medicine{
		{Name: "Amoxicillin", Dosage: "500mg", Duration: "7 days"},
		{Name: "Ibuprofen", Dosage: "200mg", Duration: "3 days", Instructions: "with food"},
	})
	require.NoError(t, err)
	require.Equal(t, int64(7), presc.ID)
	require.Len(t, presc.Medicines, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgCreatePrescriptionDuplicate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO prescriptions").
		WithArgs(int64(101), "diag", "").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "uq_prescriptions_appointment"})
	mock.ExpectRollback()

	repo := NewPgRepository(mock)
	_, err = repo.CreatePrescription(context.Background(), 101, "diag", "", nil)
	require.ErrorIs(t, err, ErrPrescriptionExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgCreatePrescriptionMedicineFailureRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO prescriptions").
		WithArgs(int64(101), "diag", "").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(7), now))
	mock.ExpectExec("INSERT INTO prescription_medicines").
		WithArgs(int64(7), "Amoxicillin", "500mg", "7 days", "", 0).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	repo := NewPgRepository(mock)
	_, err = repo.CreatePrescription(context.Background(), 101, "diag", "", []Medicine{
		{Name: "Amoxicillin", Dosage: "500mg", Duration: "7 days"},
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgBillingSummary(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(int64(9)).
		WillReturnRows(pgxmock.NewRows([]string{"total", "pending", "due", "billed"}).
			AddRow(int64(3), int64(2), 300.0, 450.0))

	repo := NewPgRepository(mock)
	s, err := repo.BillingSummary(context.Background(), 9)
	require.NoError(t, err)
	require.Equal(t, int64(3), s.TotalBills)
	require.Equal(t, int64(2), s.PendingBills)
	require.Equal(t, 300.0, s.TotalAmountDue)
	require.Equal(t, 450.0, s.TotalAmountBilled)
}

func TestPgInsertEvent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	apptID := int64(101)
	mock.ExpectExec("INSERT INTO event_logs").
		WithArgs("APPOINTMENT_BOOKED", &apptID, []byte(`{}`), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	repo := NewPgRepository(mock)
	err = repo.InsertEvent(context.Background(), EventLog{
		EventType:     "APPOINTMENT_BOOKED",
		AppointmentID: &apptID,
		Payload:       []byte(`{}`),
		CreatedAt:     time.Now(),
	})
	require.NoError(t, err)
}
