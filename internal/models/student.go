package models

import "time"

// Student statuses.
const (
	StudentStatusActive   = "activo"
	StudentStatusInactive = "inactivo"
	StudentStatusGraduate = "egresado"
)

// Student is a pupil record.
type Student struct {
	ID              string     `db:"id" json:"id"`
	Code            string     `db:"code" json:"code"`
	FirstName       string     `db:"first_name" json:"first_name"`
	PaternalSurname string     `db:"paternal_surname" json:"paternal_surname"`
	MaternalSurname string     `db:"maternal_surname" json:"maternal_surname"`
	CI              *string    `db:"ci" json:"ci,omitempty"`
	BirthDate       *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	Gender          string     `db:"gender" json:"gender"`
	Address         string     `db:"address" json:"address"`
	Phone           string     `db:"phone" json:"phone"`
	Email           string     `db:"email" json:"email"`
	UserID          *string    `db:"user_id" json:"user_id,omitempty"`
	PhotoURL        *string    `db:"photo_url" json:"photo_url,omitempty"`
	Status          string     `db:"status" json:"status"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt       *time.Time `db:"deleted_at" json:"-"`
}

// FullName renders "first paternal maternal".
func (s Student) FullName() string {
	return joinName(s.FirstName, s.PaternalSurname, s.MaternalSurname)
}

// StudentDetail adds linked guardians.
type StudentDetail struct {
	Student
	Guardians []StudentGuardianDetail `json:"guardians"`
}

// StudentFilter narrows student listings.
type StudentFilter struct {
	Search    string
	Status    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// StudentRequest creates or updates a student.
type StudentRequest struct {
	FirstName       string  `json:"first_name" validate:"required,max=100"`
	PaternalSurname string  `json:"paternal_surname" validate:"required_without=MaternalSurname,max=100"`
	MaternalSurname string  `json:"maternal_surname" validate:"max=100"`
	CI              string  `json:"ci" validate:"omitempty,max=30"`
	BirthDate       *string `json:"birth_date" validate:"omitempty,datetime=2006-01-02"`
	Gender          string  `json:"gender" validate:"omitempty,oneof=M F"`
	Address         string  `json:"address" validate:"max=500"`
	Phone           string  `json:"phone" validate:"max=40"`
	Email           string  `json:"email" validate:"omitempty,email"`
	Status          string  `json:"status" validate:"omitempty,oneof=activo inactivo egresado"`
	CreateAccount   bool    `json:"create_account"`
}

// Guardian is a parent or legal tutor.
type Guardian struct {
	ID              string     `db:"id" json:"id"`
	FirstName       string     `db:"first_name" json:"first_name"`
	PaternalSurname string     `db:"paternal_surname" json:"paternal_surname"`
	MaternalSurname string     `db:"maternal_surname" json:"maternal_surname"`
	CI              *string    `db:"ci" json:"ci,omitempty"`
	Phone           string     `db:"phone" json:"phone"`
	Email           string     `db:"email" json:"email"`
	Occupation      string     `db:"occupation" json:"occupation"`
	Address         string     `db:"address" json:"address"`
	UserID          *string    `db:"user_id" json:"user_id,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt       *time.Time `db:"deleted_at" json:"-"`
}

// FullName renders "first paternal maternal".
func (g Guardian) FullName() string {
	return joinName(g.FirstName, g.PaternalSurname, g.MaternalSurname)
}

// GuardianRequest creates or updates a guardian.
type GuardianRequest struct {
	FirstName       string `json:"first_name" validate:"required,max=100"`
	PaternalSurname string `json:"paternal_surname" validate:"max=100"`
	MaternalSurname string `json:"maternal_surname" validate:"max=100"`
	CI              string `json:"ci" validate:"omitempty,max=30"`
	Phone           string `json:"phone" validate:"max=40"`
	Email           string `json:"email" validate:"omitempty,email"`
	Occupation      string `json:"occupation" validate:"max=120"`
	Address         string `json:"address" validate:"max=500"`
	CreateAccount   bool   `json:"create_account"`
}

// GuardianFilter narrows guardian listings.
type GuardianFilter struct {
	Search   string
	Page     int
	PageSize int
}

// StudentGuardian links a student with a guardian.
type StudentGuardian struct {
	ID                    string     `db:"id" json:"id"`
	StudentID             string     `db:"student_id" json:"student_id"`
	GuardianID            string     `db:"guardian_id" json:"guardian_id"`
	Relationship          string     `db:"relationship" json:"relationship"`
	IsPrimary             bool       `db:"is_primary" json:"is_primary"`
	CanPickUp             bool       `db:"can_pick_up" json:"can_pick_up"`
	ReceivesNotifications bool       `db:"receives_notifications" json:"receives_notifications"`
	ContactPriority       int        `db:"contact_priority" json:"contact_priority"`
	CreatedAt             time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt             *time.Time `db:"deleted_at" json:"-"`
}

// StudentGuardianDetail carries guardian contact data on a link.
type StudentGuardianDetail struct {
	StudentGuardian
	GuardianName  string  `db:"guardian_name" json:"guardian_name"`
	GuardianCI    *string `db:"guardian_ci" json:"guardian_ci,omitempty"`
	GuardianPhone string  `db:"guardian_phone" json:"guardian_phone"`
	GuardianEmail string  `db:"guardian_email" json:"guardian_email"`
}

// LinkGuardianRequest links an existing guardian to a student.
type LinkGuardianRequest struct {
	GuardianID            string `json:"guardian_id" validate:"required,uuid"`
	Relationship          string `json:"relationship" validate:"required,oneof=padre madre tutor abuelo abuela tio tia hermano hermana otro"`
	IsPrimary             bool   `json:"is_primary"`
	CanPickUp             *bool  `json:"can_pick_up"`
	ReceivesNotifications *bool  `json:"receives_notifications"`
	ContactPriority       int    `json:"contact_priority" validate:"omitempty,gte=1,lte=10"`
}

// ParentLookup is the public result of searching a guardian by CI.
type ParentLookup struct {
	Guardian Guardian         `json:"guardian"`
	Children []StudentSummary `json:"children"`
}

// StudentSummary is a short student view.
type StudentSummary struct {
	ID           string `db:"id" json:"id"`
	Code         string `db:"code" json:"code"`
	FullName     string `db:"full_name" json:"full_name"`
	Relationship string `db:"relationship" json:"relationship"`
}

func joinName(parts ...string) string {
	out := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		if out != "" {
			out += " "
		}
		out += p
	}
	return out
}
