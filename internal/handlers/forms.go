package handlers

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/schema"

	"github.com/example/student-portal/internal/repository"
)

var formDecoder = newFormDecoder()

func newFormDecoder() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}

// StudentForm carries the student detail fields shared by the register and
// profile forms.
type StudentForm struct {
	StudentName            string `schema:"student_name"`
	FatherName             string `schema:"father_name"`
	MotherName             string `schema:"mother_name"`
	DateOfBirth            string `schema:"date_of_birth"`
	Course                 string `schema:"course"`
	Semester               string `schema:"semester"`
	Branch                 string `schema:"branch"`
	Section                string `schema:"section"`
	ClassRollNo            string `schema:"class_roll_no"`
	UniversityRollNo       string `schema:"university_roll_no"`
	HighSchoolPercentage   string `schema:"high_school_percentage"`
	IntermediatePercentage string `schema:"intermediate_percentage"`
}

type registerForm struct {
	Email    string `schema:"email"`
	Username string `schema:"username"`
	Password string `schema:"password"`
	StudentForm
}

type profileForm struct {
	Username string `schema:"username"`
	StudentForm
}

type loginForm struct {
	Email    string `schema:"email"`
	Password string `schema:"password"`
}

func decodeForm(dst any, values url.Values) error {
	if err := formDecoder.Decode(dst, values); err != nil {
		return fmt.Errorf("invalid form: %w", err)
	}
	return nil
}

// Details validates and converts the form into stored student details.
// Blank optional values become nil.
func (f StudentForm) Details() (repository.StudentDetails, error) {
	details := repository.StudentDetails{
		StudentName:      strings.TrimSpace(f.StudentName),
		FatherName:       strings.TrimSpace(f.FatherName),
		MotherName:       strings.TrimSpace(f.MotherName),
		Course:           strings.TrimSpace(f.Course),
		Semester:         strings.TrimSpace(f.Semester),
		Branch:           strings.TrimSpace(f.Branch),
		Section:          strings.TrimSpace(f.Section),
		ClassRollNo:      strings.TrimSpace(f.ClassRollNo),
		UniversityRollNo: strings.TrimSpace(f.UniversityRollNo),
	}

	if dob := strings.TrimSpace(f.DateOfBirth); dob != "" {
		parsed, err := time.Parse(time.DateOnly, dob)
		if err != nil {
			return details, errors.New("date_of_birth must be YYYY-MM-DD")
		}
		details.DateOfBirth = &parsed
	}

	var err error
	if details.HighSchoolPercentage, err = parsePercentage("high_school_percentage", f.HighSchoolPercentage); err != nil {
		return details, err
	}
	if details.IntermediatePercentage, err = parsePercentage("intermediate_percentage", f.IntermediatePercentage); err != nil {
		return details, err
	}
	return details, nil
}

func parsePercentage(field, raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 || v > 100 {
		return nil, fmt.Errorf("%s must be a number between 0 and 100", field)
	}
	return &v, nil
}
