package pricelist_test

import (
	"context"
	"errors"
	"testing"

	"github.com/velesk/smetka/internal/pricelist"
)

func TestMemStore_CRUD(t *testing.T) {
	ctx := context.Background()
	s := pricelist.NewMemStore()

	created, err := s.Create(ctx, pricelist.Item{
		Name:     "Светильник точечный",
		Unit:     "шт",
		Price:    500,
		Synonyms: []string{"светильник", "точка"},
		IsActive: true,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("Create did not assign an ID")
	}

	got, err := s.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != created.Name || len(got.Synonyms) != 2 {
		t.Errorf("Get = %+v", got)
	}

	got.Price = 550
	if _, err := s.Update(ctx, got); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, _ = s.Get(ctx, created.ID)
	if got.Price != 550 {
		t.Errorf("price after update = %v, want 550", got.Price)
	}

	if err := s.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, created.ID); !errors.Is(err, pricelist.ErrNotFound) {
		t.Errorf("Get after delete = %v, want ErrNotFound", err)
	}
}

func TestMemStore_ListOrderAndActiveFilter(t *testing.T) {
	ctx := context.Background()
	s := pricelist.NewMemStore()

	for _, it := range []pricelist.Item{
		{Name: "Полотно матовое", Unit: "м²", Price: 350, IsActive: true},
		{Name: "Багет стеновой", Unit: "пог.м", Price: 120, IsActive: true},
		{Name: "Снято с продажи", Unit: "шт", Price: 1, IsActive: false},
	} {
		if _, err := s.Create(ctx, it); err != nil {
			t.Fatalf("Create %q: %v", it.Name, err)
		}
	}

	all, err := s.List(ctx, false)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("List(false) = %d items, want 3", len(all))
	}
	if all[0].Name != "Багет стеновой" {
		t.Errorf("List not sorted by name: first = %q", all[0].Name)
	}

	active, err := s.List(ctx, true)
	if err != nil {
		t.Fatalf("List active: %v", err)
	}
	if len(active) != 2 {
		t.Errorf("List(true) = %d items, want 2", len(active))
	}
}

func TestMemStore_Validation(t *testing.T) {
	ctx := context.Background()
	s := pricelist.NewMemStore()

	tests := []struct {
		name string
		item pricelist.Item
	}{
		{"empty name", pricelist.Item{Unit: "шт", Price: 1}},
		{"empty unit", pricelist.Item{Name: "x", Price: 1}},
		{"negative price", pricelist.Item{Name: "x", Unit: "шт", Price: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Create(ctx, tt.item); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestCatalog_SkipsInactive(t *testing.T) {
	items := []pricelist.Item{
		{ID: 1, Name: "Полотно", Unit: "м²", Price: 350, IsActive: true},
		{ID: 2, Name: "Старое", Unit: "шт", Price: 10, IsActive: false},
	}
	catalog := pricelist.Catalog(items)
	if len(catalog) != 1 {
		t.Fatalf("catalog = %+v, want 1 entry", catalog)
	}
	if catalog[0].ID != 1 || catalog[0].Price != 350 {
		t.Errorf("catalog entry = %+v", catalog[0])
	}
}
