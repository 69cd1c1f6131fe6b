package store

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/safewatch/signaling/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func TestOpenSeedsDefaults(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if !s.VerifyAdmin("admin", "change-me") {
		t.Fatal("default admin not seeded")
	}
	cfg, err := s.AppConfig()
	if err != nil {
		t.Fatalf("AppConfig: %v", err)
	}
	if cfg.SupportEmail == "" {
		t.Fatal("default app config not seeded")
	}

	// Reopening must not clobber existing records.
	if err := s.ChangeAdminPassword("admin", "rotated"); err != nil {
		t.Fatal(err)
	}
	s2, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if !s2.VerifyAdmin("admin", "rotated") {
		t.Fatal("reopen reset the admin password")
	}
}

func TestSaveReceiptDecodesDataURL(t *testing.T) {
	s := openTestStore(t)

	img := []byte{0x89, 'P', 'N', 'G'}
	receipt := "data:image/png;base64," + base64.StdEncoding.EncodeToString(img)

	fileName, err := s.SaveReceipt("Jane Q Public", receipt)
	if err != nil {
		t.Fatalf("SaveReceipt: %v", err)
	}
	if strings.Contains(fileName, " ") {
		t.Fatalf("file name %q contains whitespace", fileName)
	}
	data, err := os.ReadFile(filepath.Join(s.ReceiptsDir(), fileName))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != string(img) {
		t.Fatalf("decoded receipt = %v, want %v", data, img)
	}

	if _, err := s.SaveReceipt("x", "not base64 at all"); err == nil {
		t.Fatal("bogus receipt accepted")
	}
}

func TestSubscriptionLifecycle(t *testing.T) {
	s := openTestStore(t)

	subs, err := s.ListSubscriptions()
	if err != nil || len(subs) != 0 {
		t.Fatalf("fresh store: subs=%v err=%v", subs, err)
	}

	sub := models.Subscription{
		ID: 42, Name: "Jane", Email: "jane@example.com",
		Status: models.SubscriptionPending,
	}
	if err := s.AppendSubscription(sub); err != nil {
		t.Fatal(err)
	}

	if _, ok := s.FindCustomer("jane", "pw"); ok {
		t.Fatal("pending subscription matched as customer")
	}

	if err := s.UpdateStatus(42, models.SubscriptionConfirmed, "jane", "pw"); err != nil {
		t.Fatal(err)
	}
	got, ok := s.FindCustomer("jane", "pw")
	if !ok || got.Name != "Jane" {
		t.Fatalf("FindCustomer = (%+v, %v)", got, ok)
	}
	if _, ok := s.FindCustomer("jane", "wrong"); ok {
		t.Fatal("wrong password matched")
	}

	if err := s.UpdateStatus(42, models.SubscriptionRejected, "", ""); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.FindCustomer("jane", "pw"); ok {
		t.Fatal("rejected subscription matched as customer")
	}

	if err := s.UpdateStatus(999, models.SubscriptionConfirmed, "", ""); err != ErrNotFound {
		t.Fatalf("UpdateStatus(999) = %v, want ErrNotFound", err)
	}
}

func TestAppConfigRoundTrip(t *testing.T) {
	s := openTestStore(t)
	if err := s.SetAppConfig(models.AppConfig{SupportEmail: "help@example.com"}); err != nil {
		t.Fatal(err)
	}
	cfg, err := s.AppConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SupportEmail != "help@example.com" {
		t.Fatalf("SupportEmail = %q", cfg.SupportEmail)
	}
}

func TestChangePasswordUnknownAdmin(t *testing.T) {
	s := openTestStore(t)
	if err := s.ChangeAdminPassword("nobody", "pw"); err != ErrNotFound {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}
