package domain

// DoctorProfile is the directory record a doctor is validated against
// before being granted relay access.
type DoctorProfile struct {
	ID        string
	Name      string
	Specialty string
	Email     string
	AvatarURL string
}

// PatientProfile is fetched by the sync engine when a room references a
// patient that is not loaded locally.
type PatientProfile struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	AvatarURL string
}
