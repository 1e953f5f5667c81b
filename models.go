package main

import "time"

const dobLayout = "2006-01-02"

// Student is a record in the student registry.
type Student struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	DOB       string    `json:"dob"`
	Age       int       `json:"age"`
	CreatedAt time.Time `json:"-"`
}

// age derives the student's age from the date of birth. Age is never stored;
// it is computed at read time.
func age(dob string) int {
	born, err := time.Parse(dobLayout, dob)
	if err != nil {
		return 0
	}
	now := time.Now()
	years := now.Year() - born.Year()
	if now.YearDay() < born.YearDay() {
		years--
	}
	return years
}

// LoginRequest carries credentials presented to the login endpoint.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// StudentRequest is the create/update payload for a student record.
type StudentRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
	DOB   string `json:"dob" validate:"required,datetime=2006-01-02"`
}
