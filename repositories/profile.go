//go:generate go run go.uber.org/mock/mockgen -source=profile.go -destination=../mocks/mock_profile_repository.go -package=mocks
package repositories

import (
	"encoding/json"

	"clinic-relay/domain"
	"clinic-relay/errors"

	"github.com/dgraph-io/badger/v4"
)

type IProfileRepository interface {
	GetDoctor(id string) (domain.DoctorProfile, error)
	PutDoctor(profile domain.DoctorProfile) error
	GetPatient(id string) (domain.PatientProfile, error)
	PutPatient(profile domain.PatientProfile) error
}

// ProfileRepository stores the doctor directory and patient profiles.
// Doctors are looked up here at connect time by the identity validator.
type ProfileRepository struct {
	db *badger.DB
}

func NewProfileRepository(db *badger.DB) ProfileRepository {
	return ProfileRepository{db: db}
}

func (p ProfileRepository) GetDoctor(id string) (domain.DoctorProfile, error) {
	var profile domain.DoctorProfile
	if err := p.get("doctor:"+id, &profile); err != nil {
		return domain.DoctorProfile{}, err
	}
	return profile, nil
}

func (p ProfileRepository) PutDoctor(profile domain.DoctorProfile) error {
	return p.put("doctor:"+profile.ID, profile)
}

func (p ProfileRepository) GetPatient(id string) (domain.PatientProfile, error) {
	var profile domain.PatientProfile
	if err := p.get("patient:"+id, &profile); err != nil {
		return domain.PatientProfile{}, err
	}
	return profile, nil
}

func (p ProfileRepository) PutPatient(profile domain.PatientProfile) error {
	return p.put("patient:"+profile.ID, profile)
}

func (p ProfileRepository) get(key string, target any) error {
	err := p.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, target)
		})
	})
	if err == badger.ErrKeyNotFound {
		return errors.ErrProfileNotFound
	}
	return err
}

func (p ProfileRepository) put(key string, value any) error {
	bytes, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return p.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), bytes)
	})
}
