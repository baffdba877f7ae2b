package infrastructure

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yourusername/vidcollect-go/internal/domain"
)

// credentialRecord is the stored form of one platform's credentials
type credentialRecord struct {
	Platform  domain.Platform   `gorm:"primaryKey"`
	Cookies   map[string]string `gorm:"serializer:json;type:text"`
	Headers   map[string]string `gorm:"serializer:json;type:text"`
	ExpiresAt *time.Time
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (credentialRecord) TableName() string {
	return "platform_credentials"
}

// SQLiteCredentialStore implements domain.CredentialStore using SQLite
type SQLiteCredentialStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewSQLiteCredentialStore creates a new credential store
func NewSQLiteCredentialStore(db *gorm.DB) *SQLiteCredentialStore {
	return &SQLiteCredentialStore{db: db, now: time.Now}
}

// Load returns the credentials of a platform, or nil when none are stored
// or they have expired.
func (s *SQLiteCredentialStore) Load(platform domain.Platform) (*domain.Credentials, error) {
	var record credentialRecord
	err := s.db.First(&record, "platform = ?", platform).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	creds := &domain.Credentials{
		Platform:  record.Platform,
		Cookies:   record.Cookies,
		Headers:   record.Headers,
		ExpiresAt: record.ExpiresAt,
	}
	if creds.Expired(s.now()) {
		return nil, nil
	}
	return creds, nil
}

// Save stores credentials, replacing any previous ones for the platform
func (s *SQLiteCredentialStore) Save(creds *domain.Credentials) error {
	if !domain.ValidatePlatform(creds.Platform) {
		return fmt.Errorf("unsupported platform: %q", creds.Platform)
	}
	if len(creds.Cookies) == 0 && len(creds.Headers) == 0 {
		return fmt.Errorf("credentials for %s carry no cookies or headers", creds.Platform)
	}

	record := &credentialRecord{
		Platform:  creds.Platform,
		Cookies:   creds.Cookies,
		Headers:   creds.Headers,
		ExpiresAt: creds.ExpiresAt,
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "platform"}},
		DoUpdates: clause.AssignmentColumns([]string{"cookies", "headers", "expires_at", "updated_at"}),
	}).Create(record).Error
}

// Delete removes the credentials of a platform
func (s *SQLiteCredentialStore) Delete(platform domain.Platform) error {
	return s.db.Delete(&credentialRecord{}, "platform = ?", platform).Error
}
