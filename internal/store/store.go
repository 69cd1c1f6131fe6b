// Package store persists subscription, admin, and app-config records as flat
// JSON files, with receipt images saved alongside. The on-disk layout is the
// external contract: the admin panel reads these files directly.
package store

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/safewatch/signaling/internal/models"
)

const (
	receiptsDirName       = "receipts"
	subscriptionsFileName = "subscriptions.json"
	adminsFileName        = "admins.json"
	appConfigFileName     = "config.json"
)

var (
	ErrNotFound = errors.New("record not found")

	dataURLPrefix = regexp.MustCompile(`^data:image/\w+;base64,`)
	whitespace    = regexp.MustCompile(`\s+`)
)

// Store is the flat-file record store. All mutations are serialized by one
// mutex; the record volume is small enough that rewriting whole files wins
// over anything fancier.
type Store struct {
	mu          sync.Mutex
	dataDir     string
	receiptsDir string
}

// Open prepares the data directory and seeds default records on first boot.
func Open(dataDir string) (*Store, error) {
	receiptsDir := filepath.Join(dataDir, receiptsDirName)
	if err := os.MkdirAll(receiptsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create receipts dir: %w", err)
	}

	s := &Store{dataDir: dataDir, receiptsDir: receiptsDir}

	adminsPath := filepath.Join(dataDir, adminsFileName)
	if _, err := os.Stat(adminsPath); os.IsNotExist(err) {
		defaults := []models.Admin{{Username: "admin", Password: "change-me"}}
		if err := writeJSON(adminsPath, defaults); err != nil {
			return nil, err
		}
	}

	configPath := filepath.Join(dataDir, appConfigFileName)
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		defaults := models.AppConfig{SupportEmail: "support@safewatch.com"}
		if err := writeJSON(configPath, defaults); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// ReceiptsDir is the directory receipt images are written to, for static
// serving.
func (s *Store) ReceiptsDir() string { return s.receiptsDir }

// SaveReceipt decodes a base64 data-URL image and writes it next to the
// subscription records. Returns the generated file name.
func (s *Store) SaveReceipt(name, receipt string) (string, error) {
	raw := dataURLPrefix.ReplaceAllString(receipt, "")
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return "", fmt.Errorf("decode receipt: %w", err)
	}

	safeName := whitespace.ReplaceAllString(name, "_")
	fileName := fmt.Sprintf("receipt_%d_%s.png", time.Now().UnixMilli(), safeName)
	if err := os.WriteFile(filepath.Join(s.receiptsDir, fileName), data, 0o644); err != nil {
		return "", fmt.Errorf("save receipt: %w", err)
	}
	return fileName, nil
}

// AppendSubscription adds a new pending record.
func (s *Store) AppendSubscription(sub models.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs, err := s.readSubscriptions()
	if err != nil {
		return err
	}
	subs = append(subs, sub)
	return writeJSON(s.subscriptionsPath(), subs)
}

// ListSubscriptions returns all records, oldest first.
func (s *Store) ListSubscriptions() ([]models.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readSubscriptions()
}

// UpdateStatus sets a record's status and, when provided, activates the
// credentials assigned by the admin.
func (s *Store) UpdateStatus(id int64, status, username, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs, err := s.readSubscriptions()
	if err != nil {
		return err
	}
	for i := range subs {
		if subs[i].ID == id {
			subs[i].Status = status
			if username != "" && password != "" {
				subs[i].Username = username
				subs[i].Password = password
			}
			return writeJSON(s.subscriptionsPath(), subs)
		}
	}
	return ErrNotFound
}

// FindCustomer matches a confirmed subscription by credentials.
func (s *Store) FindCustomer(username, password string) (models.Subscription, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs, err := s.readSubscriptions()
	if err != nil {
		return models.Subscription{}, false
	}
	for _, sub := range subs {
		if sub.Status == models.SubscriptionConfirmed && sub.Username == username && sub.Password == password {
			return sub, true
		}
	}
	return models.Subscription{}, false
}

// VerifyAdmin checks operator credentials.
func (s *Store) VerifyAdmin(username, password string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	admins, err := s.readAdmins()
	if err != nil {
		return false
	}
	for _, admin := range admins {
		if admin.Username == username && admin.Password == password {
			return true
		}
	}
	return false
}

// ChangeAdminPassword updates an operator's password.
func (s *Store) ChangeAdminPassword(username, newPassword string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	admins, err := s.readAdmins()
	if err != nil {
		return err
	}
	for i := range admins {
		if admins[i].Username == username {
			admins[i].Password = newPassword
			return writeJSON(filepath.Join(s.dataDir, adminsFileName), admins)
		}
	}
	return ErrNotFound
}

// AppConfig reads the operator-editable app config.
func (s *Store) AppConfig() (models.AppConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cfg models.AppConfig
	if err := readJSON(filepath.Join(s.dataDir, appConfigFileName), &cfg); err != nil {
		return models.AppConfig{}, err
	}
	return cfg, nil
}

// SetAppConfig replaces the app config.
func (s *Store) SetAppConfig(cfg models.AppConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSON(filepath.Join(s.dataDir, appConfigFileName), cfg)
}

func (s *Store) subscriptionsPath() string {
	return filepath.Join(s.receiptsDir, subscriptionsFileName)
}

func (s *Store) readSubscriptions() ([]models.Subscription, error) {
	var subs []models.Subscription
	err := readJSON(s.subscriptionsPath(), &subs)
	if os.IsNotExist(err) {
		return nil, nil
	}
	return subs, err
}

func (s *Store) readAdmins() ([]models.Admin, error) {
	var admins []models.Admin
	err := readJSON(filepath.Join(s.dataDir, adminsFileName), &admins)
	return admins, err
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
