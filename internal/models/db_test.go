package models

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func setupModelsTestDB(t *testing.T) {
	t.Helper()
	dsn := fmt.Sprintf("file:models_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	if err := InitDB("sqlite", dsn, DBPoolConfig{MaxOpenConns: 1, MaxIdleConns: 1}); err != nil {
		t.Fatalf("init db failed: %v", err)
	}
	if err := AutoMigrate(); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
}

func TestInitDBRejectsUnknownDriver(t *testing.T) {
	if err := InitDB("oracle", "dsn", DBPoolConfig{}); err == nil {
		t.Fatalf("expected unsupported driver error")
	}
}

func TestInitDBCreatesSQLiteDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "db")
	if err := ensureSQLiteDir(filepath.Join(dir, "wxpay.db")); err != nil {
		t.Fatalf("ensure dir failed: %v", err)
	}
	if err := ensureSQLiteDir("file::memory:?cache=shared"); err != nil {
		t.Fatalf("memory dsn should be ignored: %v", err)
	}
}

func TestInitDefaultAdminCreatesOperatorOnce(t *testing.T) {
	setupModelsTestDB(t)

	if err := InitDefaultAdmin("", "s3cret-pass"); err != nil {
		t.Fatalf("init default admin failed: %v", err)
	}
	var admin Admin
	if err := DB.Where("username = ?", defaultAdminUsername).First(&admin).Error; err != nil {
		t.Fatalf("default admin not created: %v", err)
	}
	if admin.Role != defaultAdminRole {
		t.Fatalf("default admin role want %s got %s", defaultAdminRole, admin.Role)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte("s3cret-pass")); err != nil {
		t.Fatalf("password hash mismatch: %v", err)
	}

	if err := InitDefaultAdmin("second", "other"); err != nil {
		t.Fatalf("second init failed: %v", err)
	}
	var count int64
	DB.Model(&Admin{}).Count(&count)
	if count != 1 {
		t.Fatalf("admin count want 1 got %d", count)
	}
}

func TestStringMapRoundTrip(t *testing.T) {
	setupModelsTestDB(t)

	row := PaymentNotification{
		OutTradeNo: "T1",
		Status:     "received",
		Payload:    StringMap{"openid": "o-1", "attach": "a&b"},
	}
	if err := DB.Create(&row).Error; err != nil {
		t.Fatalf("create notification failed: %v", err)
	}
	var stored PaymentNotification
	if err := DB.First(&stored, row.ID).Error; err != nil {
		t.Fatalf("load notification failed: %v", err)
	}
	if stored.Payload["openid"] != "o-1" || stored.Payload["attach"] != "a&b" {
		t.Fatalf("payload mismatch: %+v", stored.Payload)
	}

	var empty StringMap
	if err := empty.Scan(nil); err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("nil scan should yield empty map, got %+v err=%v", empty, err)
	}
	if err := empty.Scan(42); err == nil {
		t.Fatalf("expected error for unsupported source")
	}
}
