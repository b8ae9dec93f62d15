package auth

import (
	"context"
	"fmt"
	"log/slog"

	"clinic-relay/domain"
	"clinic-relay/repositories"
)

// DirectoryValidator checks a connecting doctor against the doctor
// directory. A doctor absent from the directory is refused at connect time;
// patients never go through this check.
type DirectoryValidator struct {
	log      *slog.Logger
	profiles repositories.IProfileRepository
}

func NewDirectoryValidator(log *slog.Logger, profiles repositories.IProfileRepository) DirectoryValidator {
	return DirectoryValidator{log: log, profiles: profiles}
}

func (d DirectoryValidator) Validate(ctx context.Context, doctorID string) (domain.DoctorProfile, error) {
	profile, err := d.profiles.GetDoctor(doctorID)
	if err != nil {
		return domain.DoctorProfile{}, fmt.Errorf("doctor %s not in directory: %w", doctorID, err)
	}

	d.log.Debug("Doctor validated against directory", "doctor_id", doctorID, "name", profile.Name)
	return profile, nil
}
