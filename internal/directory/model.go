package directory

import "time"

type Doctor struct {
	ID              int64
	Name            string
	Specialization  string
	DepartmentID    int64
	Department      string
	ConsultationFee float64
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Patient struct {
	ID          int64
	Name        string
	Email       *string
	Gender      string
	DateOfBirth time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Department struct {
	ID   int64
	Name string
}
