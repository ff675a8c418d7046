package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the subset of pgxpool.Pool the repository needs; pgxmock
// satisfies it in tests.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	pool PgxPool
}

func NewPgRepository(pool PgxPool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.DoctorID,
		&a.PatientID,
		&a.Date,
		&a.TimeSlot,
		&a.Reason,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return &a, nil
}

func scanBill(row pgx.Row) (*Bill, error) {
	var b Bill
	var paidAt *time.Time

	err := row.Scan(
		&b.ID,
		&b.AppointmentID,
		&b.Amount,
		&b.PaymentStatus,
		&b.GeneratedAt,
		&paidAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBillNotFound
		}
		return nil, err
	}

	b.PaidAt = paidAt
	return &b, nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == constraint
}

const appointmentColumns = `id, doctor_id, patient_id, appointment_date, appointment_time, reason, status, created_at, updated_at`

// Interface methods

func (r *PgRepository) CreateAppointment(ctx context.Context, doctorID, patientID int64, date time.Time, timeSlot, reason string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (doctor_id, patient_id, appointment_date, appointment_time, reason, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'Scheduled', now(), now())
		RETURNING `+appointmentColumns+`
	`, doctorID, patientID, date, timeSlot, reason)

	appt, err := scanAppointment(row)
	if err != nil {
		if isUniqueViolation(err, "uq_appointments_doctor_slot") {
			return nil, ErrSlotUnavailable
		}
		return nil, err
	}
	return appt, nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id int64) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetAppointmentDetail(ctx context.Context, id int64) (*AppointmentDetail, error) {
	var d AppointmentDetail
	err := r.pool.QueryRow(ctx, `
		SELECT a.id, a.doctor_id, a.patient_id, a.appointment_date, a.appointment_time,
		       a.reason, a.status, a.created_at, a.updated_at,
		       p.name, doc.name, doc.specialization, dep.name
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		JOIN doctors doc ON doc.id = a.doctor_id
		JOIN departments dep ON dep.id = doc.department_id
		WHERE a.id = $1
	`, id).Scan(
		&d.ID, &d.DoctorID, &d.PatientID, &d.Date, &d.TimeSlot,
		&d.Reason, &d.Status, &d.CreatedAt, &d.UpdatedAt,
		&d.PatientName, &d.DoctorName, &d.Specialization, &d.Department,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (r *PgRepository) ListAppointments(ctx context.Context, filter AppointmentFilter) ([]AppointmentDetail, error) {
	query := `
		SELECT a.id, a.doctor_id, a.patient_id, a.appointment_date, a.appointment_time,
		       a.reason, a.status, a.created_at, a.updated_at,
		       p.name, doc.name, doc.specialization, dep.name
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		JOIN doctors doc ON doc.id = a.doctor_id
		JOIN departments dep ON dep.id = doc.department_id
	`

	var args []any
	if filter.DoctorID != nil {
		args = append(args, *filter.DoctorID)
		query += fmt.Sprintf(" WHERE a.doctor_id = $%d", len(args))
	}
	if filter.PatientID != nil {
		args = append(args, *filter.PatientID)
		if len(args) == 1 {
			query += fmt.Sprintf(" WHERE a.patient_id = $%d", len(args))
		} else {
			query += fmt.Sprintf(" AND a.patient_id = $%d", len(args))
		}
	}

	query += " ORDER BY a.appointment_date DESC, a.appointment_time DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []AppointmentDetail
	for rows.Next() {
		var d AppointmentDetail
		err := rows.Scan(
			&d.ID, &d.DoctorID, &d.PatientID, &d.Date, &d.TimeSlot,
			&d.Reason, &d.Status, &d.CreatedAt, &d.UpdatedAt,
			&d.PatientName, &d.DoctorName, &d.Specialization, &d.Department,
		)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) ListBookedTimes(ctx context.Context, doctorID int64, date time.Time) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT appointment_time
		FROM appointments
		WHERE doctor_id = $1
		  AND appointment_date = $2
		  AND status IN ('Scheduled', 'Completed')
	`, doctorID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var slot string
		if err := rows.Scan(&slot); err != nil {
			return nil, err
		}
		result = append(result, slot)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id int64, from, to AppointmentStatus) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from)

	return scanAppointment(row)
}

// CompleteWithBill is the one place completion and billing meet: the status
// flip and the bill insert share a transaction, so a crash between them
// leaves the appointment Scheduled and no bill behind.
func (r *PgRepository) CompleteWithBill(ctx context.Context, id int64, amount float64) (*Appointment, *Bill, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin complete tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'Completed',
		    updated_at = now()
		WHERE id = $1
		  AND status = 'Scheduled'
		RETURNING `+appointmentColumns+`
	`, id)

	appt, err := scanAppointment(row)
	if err != nil {
		return nil, nil, err
	}

	billRow := tx.QueryRow(ctx, `
		INSERT INTO bills (appointment_id, amount, payment_status, generated_at)
		VALUES ($1, $2, 'Pending', now())
		RETURNING id, appointment_id, amount, payment_status, generated_at, paid_at
	`, id, amount)

	bill, err := scanBill(billRow)
	if err != nil {
		if isUniqueViolation(err, "uq_bills_appointment") {
			// A bill already exists for this appointment; the CAS above
			// should make this unreachable, but the constraint keeps the
			// 1:1 invariant honest under retries.
			return nil, nil, fmt.Errorf("bill already exists for appointment %d: %w", id, err)
		}
		return nil, nil, fmt.Errorf("insert bill: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit complete tx: %w", err)
	}

	return appt, bill, nil
}

func (r *PgRepository) GetBillByAppointment(ctx context.Context, appointmentID int64) (*Bill, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, appointment_id, amount, payment_status, generated_at, paid_at
		FROM bills
		WHERE appointment_id = $1
	`, appointmentID)
	return scanBill(row)
}

func (r *PgRepository) ListBills(ctx context.Context, patientID *int64) ([]BillDetail, error) {
	query := `
		SELECT b.id, b.appointment_id, b.amount, b.payment_status, b.generated_at, b.paid_at,
		       a.appointment_date, a.appointment_time,
		       p.id, p.name, doc.name, doc.specialization
		FROM bills b
		JOIN appointments a ON a.id = b.appointment_id
		JOIN patients p ON p.id = a.patient_id
		JOIN doctors doc ON doc.id = a.doctor_id
	`

	var args []any
	if patientID != nil {
		args = append(args, *patientID)
		query += " WHERE p.id = $1"
	}
	query += " ORDER BY b.generated_at DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []BillDetail
	for rows.Next() {
		var d BillDetail
		var paidAt *time.Time
		err := rows.Scan(
			&d.ID, &d.AppointmentID, &d.Amount, &d.PaymentStatus, &d.GeneratedAt, &paidAt,
			&d.AppointmentDate, &d.AppointmentTime,
			&d.PatientID, &d.PatientName, &d.DoctorName, &d.Specialization,
		)
		if err != nil {
			return nil, err
		}
		d.PaidAt = paidAt
		result = append(result, d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) MarkBillPaid(ctx context.Context, billID int64) (*Bill, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE bills
		SET payment_status = 'Paid',
		    paid_at = now()
		WHERE id = $1
		  AND payment_status = 'Pending'
		RETURNING id, appointment_id, amount, payment_status, generated_at, paid_at
	`, billID)

	bill, err := scanBill(row)
	if err == nil {
		return bill, nil
	}
	if !errors.Is(err, ErrBillNotFound) {
		return nil, err
	}

	// CAS missed: either the bill does not exist or it is already Paid.
	var status PaymentStatus
	checkErr := r.pool.QueryRow(ctx, `
		SELECT payment_status FROM bills WHERE id = $1
	`, billID).Scan(&status)
	if checkErr != nil {
		if errors.Is(checkErr, pgx.ErrNoRows) {
			return nil, ErrBillNotFound
		}
		return nil, checkErr
	}
	return nil, ErrBillAlreadyPaid
}

func (r *PgRepository) BillingSummary(ctx context.Context, patientID int64) (*BillingSummary, error) {
	var s BillingSummary
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN b.payment_status = 'Pending' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN b.payment_status = 'Pending' THEN b.amount ELSE 0 END), 0),
		       COALESCE(SUM(b.amount), 0)
		FROM bills b
		JOIN appointments a ON a.id = b.appointment_id
		WHERE a.patient_id = $1
	`, patientID).Scan(&s.TotalBills, &s.PendingBills, &s.TotalAmountDue, &s.TotalAmountBilled)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *PgRepository) CreatePrescription(ctx context.Context, appointmentID int64, diagnosis, notes string, medicines []Medicine) (*Prescription, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin prescription tx: %w", err)
	}
	defer tx.Rollback(ctx)

	p := Prescription{
		AppointmentID: appointmentID,
		Diagnosis:     diagnosis,
		Notes:         notes,
		Medicines:     medicines,
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO prescriptions (appointment_id, diagnosis, notes, created_at)
		VALUES ($1, $2, $3, now())
		RETURNING id, created_at
	`, appointmentID, diagnosis, notes).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "uq_prescriptions_appointment") {
			return nil, ErrPrescriptionExists
		}
		return nil, fmt.Errorf("insert prescription: %w", err)
	}

	for i, m := range medicines {
		_, err := tx.Exec(ctx, `
			INSERT INTO prescription_medicines (prescription_id, name, dosage, duration, instructions, position)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, p.ID, m.Name, m.Dosage, m.Duration, m.Instructions, i)
		if err != nil {
			return nil, fmt.Errorf("insert medicine %q: %w", m.Name, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit prescription tx: %w", err)
	}

	return &p, nil
}

func (r *PgRepository) GetPrescriptionByAppointment(ctx context.Context, appointmentID int64) (*PrescriptionDetail, error) {
	var d PrescriptionDetail
	var dateOfBirth time.Time

	err := r.pool.QueryRow(ctx, `
		SELECT pr.id, pr.appointment_id, pr.diagnosis, pr.notes, pr.created_at,
		       a.appointment_date, a.appointment_time,
		       p.id, p.name, p.date_of_birth, p.gender,
		       doc.name, doc.specialization
		FROM prescriptions pr
		JOIN appointments a ON a.id = pr.appointment_id
		JOIN patients p ON p.id = a.patient_id
		JOIN doctors doc ON doc.id = a.doctor_id
		WHERE pr.appointment_id = $1
	`, appointmentID).Scan(
		&d.ID, &d.AppointmentID, &d.Diagnosis, &d.Notes, &d.CreatedAt,
		&d.AppointmentDate, &d.AppointmentTime,
		&d.PatientID, &d.PatientName, &dateOfBirth, &d.PatientGender,
		&d.DoctorName, &d.Specialization,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPrescriptionNotFound
		}
		return nil, err
	}

	d.PatientAge = Age(dateOfBirth, time.Now())

	rows, err := r.pool.Query(ctx, `
		SELECT name, dosage, duration, instructions
		FROM prescription_medicines
		WHERE prescription_id = $1
		ORDER BY position
	`, d.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var m Medicine
		if err := rows.Scan(&m.Name, &m.Dosage, &m.Duration, &m.Instructions); err != nil {
			return nil, err
		}
		d.Medicines = append(d.Medicines, m)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &d, nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
