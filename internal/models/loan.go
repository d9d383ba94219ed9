package models

import "time"

type LoanStatus string

const (
	LoanStatusActive LoanStatus = "active"
	LoanStatusPaid   LoanStatus = "paid"
	LoanStatusLate   LoanStatus = "late"
)

type Loan struct {
	ID             string     `json:"id" dynamodbav:"id"`
	UserEmail      string     `json:"-" dynamodbav:"user_email"`
	PrincipalCents int64      `json:"principal_cents" dynamodbav:"principal_cents"`
	BalanceCents   int64      `json:"balance_cents" dynamodbav:"balance_cents"`
	InterestBPS    int64      `json:"interest_bps" dynamodbav:"interest_bps"`
	Status         LoanStatus `json:"status" dynamodbav:"status"`
	DueDate        time.Time  `json:"due_date" dynamodbav:"due_date"`
	CreatedAt      time.Time  `json:"created_at" dynamodbav:"created_at"`
}

func (l *Loan) GetPK() string {
	return "USER#" + l.UserEmail
}

func (l *Loan) GetSK() string {
	return "LOAN#" + l.ID
}
