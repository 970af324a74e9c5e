package dal

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type widget struct {
	Model
	Name   string
	Status int
}

func newRepo(t *testing.T) *BaseRepository[widget] {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&widget{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewBaseRepository[widget](db)
}

func TestBaseRepository(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	for i, name := range []string{"a", "b", "c"} {
		if err := repo.Create(ctx, &widget{Name: name, Status: i % 2}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	w, err := repo.FindOne(ctx, map[string]interface{}{"name": "b"})
	if err != nil || w == nil || w.Status != 1 {
		t.Fatalf("FindOne = %+v, %v", w, err)
	}

	if err := repo.UpdateFields(ctx, w.ID, map[string]interface{}{"status": 0}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	if n, _ := repo.Count(ctx, map[string]interface{}{"status": 0}); n != 3 {
		t.Fatalf("Count = %d", n)
	}

	if err := repo.Delete(ctx, w.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got, err := repo.FindByID(ctx, w.ID); err != nil || got != nil {
		t.Fatalf("soft deleted row visible: %+v, %v", got, err)
	}
	if got, _ := repo.FindByID(ctx, w.ID, WithUnscoped()); got == nil {
		t.Fatalf("unscoped should see soft deleted row")
	}

	page, err := repo.FindPaged(ctx, nil, NewPagination(1, 1), WithOrder("id desc"))
	if err != nil {
		t.Fatalf("FindPaged: %v", err)
	}
	if page.Total != 2 || len(page.List) != 1 || page.List[0].Name != "c" {
		t.Fatalf("page = %+v", page)
	}

	if ok, _ := repo.Exists(ctx, map[string]interface{}{"name": "zzz"}); ok {
		t.Fatalf("Exists on missing row")
	}
}

func TestPagination(t *testing.T) {
	p := NewPagination(0, 1000)
	if p.Page != 1 || p.PageSize != MaxPageSize || p.Offset() != 0 {
		t.Fatalf("clamp = %+v", p)
	}
	if NewPagination(3, 10).Offset() != 20 {
		t.Fatalf("offset")
	}
	if _, ok := ParseInt64ID("-1"); ok {
		t.Fatalf("negative id accepted")
	}
	if id, ok := ParseInt64ID("42"); !ok || id != 42 {
		t.Fatalf("ParseInt64ID = %d %v", id, ok)
	}
}
