package repository

import (
	"testing"
	"time"

	"github.com/wxpay-bridge/internal/models"
)

func TestFindPageOrdersNewestFirstAndClampsPage(t *testing.T) {
	db := setupRepositoryTestDB(t)
	for i := 0; i < 5; i++ {
		row := models.GatewayExchange{Operation: "order_query", Reference: string(rune('A' + i))}
		if err := db.Create(&row).Error; err != nil {
			t.Fatalf("create exchange failed: %v", err)
		}
	}

	rows, total, err := findPage[models.GatewayExchange](db.Model(&models.GatewayExchange{}), 0, 2)
	if err != nil {
		t.Fatalf("find page failed: %v", err)
	}
	if total != 5 || len(rows) != 2 || rows[0].Reference != "E" || rows[1].Reference != "D" {
		t.Fatalf("page below 1 should read the first page, total=%d rows=%+v", total, rows)
	}

	rows, _, err = findPage[models.GatewayExchange](db.Model(&models.GatewayExchange{}), 3, 2)
	if err != nil {
		t.Fatalf("find last page failed: %v", err)
	}
	if len(rows) != 1 || rows[0].Reference != "A" {
		t.Fatalf("last page should hold the oldest row, got %+v", rows)
	}

	rows, total, err = findPage[models.GatewayExchange](db.Model(&models.GatewayExchange{}), 1, 0)
	if err != nil {
		t.Fatalf("find all failed: %v", err)
	}
	if total != 5 || len(rows) != 5 {
		t.Fatalf("page size 0 should return all rows, total=%d len=%d", total, len(rows))
	}
}

func TestWhereCreatedBetween(t *testing.T) {
	db := setupRepositoryTestDB(t)
	base := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	for i := 0; i < 3; i++ {
		row := models.GatewayExchange{Operation: "refund", CreatedAt: base.Add(time.Duration(i) * time.Hour)}
		if err := db.Create(&row).Error; err != nil {
			t.Fatalf("create exchange failed: %v", err)
		}
	}
	from := base.Add(30 * time.Minute)
	to := base.Add(2 * time.Hour)
	var count int64
	query := whereCreatedBetween(db.Model(&models.GatewayExchange{}), &from, &to)
	if err := query.Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("created range should match 2 rows, got %d", count)
	}
	if err := whereCreatedBetween(db.Model(&models.GatewayExchange{}), nil, nil).Count(&count).Error; err != nil || count != 3 {
		t.Fatalf("open range should match all rows, count=%d err=%v", count, err)
	}
}
