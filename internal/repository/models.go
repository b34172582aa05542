package repository

import "time"

// StudentDetails holds the profile fields a student fills in.
type StudentDetails struct {
	StudentName            string     `gorm:"column:student_name;size:255" json:"student_name"`
	FatherName             string     `gorm:"column:father_name;size:255" json:"father_name"`
	MotherName             string     `gorm:"column:mother_name;size:255" json:"mother_name"`
	DateOfBirth            *time.Time `gorm:"column:date_of_birth;type:date" json:"date_of_birth"`
	Course                 string     `gorm:"column:course;size:255" json:"course"`
	Semester               string     `gorm:"column:semester;size:50" json:"semester"`
	Branch                 string     `gorm:"column:branch;size:255" json:"branch"`
	Section                string     `gorm:"column:section;size:50" json:"section"`
	ClassRollNo            string     `gorm:"column:class_roll_no;size:50" json:"class_roll_no"`
	UniversityRollNo       string     `gorm:"column:university_roll_no;size:50" json:"university_roll_no"`
	HighSchoolPercentage   *float64   `gorm:"column:high_school_percentage" json:"high_school_percentage"`
	IntermediatePercentage *float64   `gorm:"column:intermediate_percentage" json:"intermediate_percentage"`
}

func (d StudentDetails) columns() map[string]any {
	return map[string]any{
		"student_name":            d.StudentName,
		"father_name":             d.FatherName,
		"mother_name":             d.MotherName,
		"date_of_birth":           d.DateOfBirth,
		"course":                  d.Course,
		"semester":                d.Semester,
		"branch":                  d.Branch,
		"section":                 d.Section,
		"class_roll_no":           d.ClassRollNo,
		"university_roll_no":      d.UniversityRollNo,
		"high_school_percentage":  d.HighSchoolPercentage,
		"intermediate_percentage": d.IntermediatePercentage,
	}
}

// User is a registered student account.
type User struct {
	ID             uint    `gorm:"primaryKey"`
	Email          string  `gorm:"column:email;size:255;uniqueIndex;not null"`
	Username       string  `gorm:"column:username;size:255;not null"`
	PasswordHash   string  `gorm:"column:password;size:255;not null"`
	ProfilePicture *string `gorm:"column:profile_picture;size:512"`
	StudentDetails `gorm:"embedded"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

// TableName overrides the default table name.
func (User) TableName() string {
	return "users"
}

// HasPicture reports whether the user has a current profile picture.
func (u *User) HasPicture() bool {
	return u.ProfilePicture != nil && *u.ProfilePicture != ""
}

// VerificationLog records one face verification attempt.
type VerificationLog struct {
	ID           uint      `gorm:"primaryKey"`
	RequestID    string    `gorm:"column:request_id;uniqueIndex;size:64"`
	UserID       uint      `gorm:"column:user_id;index"`
	Outcome      string    `gorm:"column:outcome;size:32"`
	IsMatch      bool      `gorm:"column:is_match"`
	Distance     *float64  `gorm:"column:distance"`
	Threshold    float64   `gorm:"column:threshold"`
	ErrorKind    string    `gorm:"column:error_kind;size:64"`
	Message      string    `gorm:"column:message;type:text"`
	ProcessingMs float64   `gorm:"column:processing_ms"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

// TableName overrides the default table name.
func (VerificationLog) TableName() string {
	return "verification_logs"
}

// MetricsAggregation is the raw rollup of verification_logs.
type MetricsAggregation struct {
	TotalCount          int64
	MatchedCount        int64
	AverageDistance     float64
	AverageProcessingMs float64
}
