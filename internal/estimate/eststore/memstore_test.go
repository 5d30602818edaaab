package eststore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/velesk/smetka/internal/estimate/eststore"
)

func samplePayload(client string) eststore.EstimatePayload {
	return eststore.EstimatePayload{
		ClientName: client,
		Status:     eststore.StatusDraft,
		Rooms: []eststore.RoomPayload{
			{
				Name: "Кухня",
				Area: 12,
				Items: []eststore.ItemPayload{
					{Name: "Покраска стен", Unit: "м²", Quantity: 12, Price: 350},
					{Name: "Шпаклёвка", Unit: "м²", Quantity: 12, Price: 250},
				},
			},
			{
				Name: "Ванная",
				Area: 4,
				Items: []eststore.ItemPayload{
					{Name: "Укладка плитки", Unit: "м²", Quantity: 4, Price: 1200},
				},
			},
		},
	}
}

func TestCreate_ComputesDerivedNumbers(t *testing.T) {
	store := eststore.NewMemStore()

	est, err := store.Create(context.Background(), samplePayload("Анна"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if est.ID == 0 {
		t.Error("ID not assigned")
	}
	if est.CreatedAt.IsZero() || est.UpdatedAt.IsZero() {
		t.Error("timestamps not set")
	}
	if got, want := est.Rooms[0].Subtotal, float64(12*350+12*250); got != want {
		t.Errorf("kitchen subtotal = %v, want %v", got, want)
	}
	if got, want := est.Rooms[1].Subtotal, float64(4*1200); got != want {
		t.Errorf("bathroom subtotal = %v, want %v", got, want)
	}
	if got, want := est.TotalSum, float64(12*350+12*250+4*1200); got != want {
		t.Errorf("TotalSum = %v, want %v", got, want)
	}
	if est.TotalArea != 16 {
		t.Errorf("TotalArea = %v, want 16", est.TotalArea)
	}
	if got, want := est.Rooms[0].Items[0].Sum, float64(12*350); got != want {
		t.Errorf("item sum = %v, want %v", got, want)
	}
}

func TestCreate_EmptyStatusDefaultsToDraft(t *testing.T) {
	store := eststore.NewMemStore()
	payload := samplePayload("Анна")
	payload.Status = ""

	est, err := store.Create(context.Background(), payload)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if est.Status != eststore.StatusDraft {
		t.Fatalf("status = %q, want %q", est.Status, eststore.StatusDraft)
	}
}

func TestUpdate_ReplacesRoomsWholesale(t *testing.T) {
	ctx := context.Background()
	store := eststore.NewMemStore()
	created, err := store.Create(ctx, samplePayload("Анна"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	replacement := eststore.EstimatePayload{
		ClientName: "Анна",
		Status:     eststore.StatusCompleted,
		Rooms: []eststore.RoomPayload{
			{Name: "Коридор", Area: 6, Items: []eststore.ItemPayload{
				{Name: "Ламинат", Unit: "м²", Quantity: 6, Price: 800},
			}},
		},
	}
	updated, err := store.Update(ctx, created.ID, replacement)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	if len(updated.Rooms) != 1 || updated.Rooms[0].Name != "Коридор" {
		t.Fatalf("rooms = %+v, want single Коридор", updated.Rooms)
	}
	if updated.TotalSum != 4800 {
		t.Errorf("TotalSum = %v, want 4800", updated.TotalSum)
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Error("Update must preserve CreatedAt")
	}
}

func TestGet_ReturnsDeepCopy(t *testing.T) {
	ctx := context.Background()
	store := eststore.NewMemStore()
	created, err := store.Create(ctx, samplePayload("Анна"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	first, err := store.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	first.Rooms[0].Items[0].Price = 999999
	first.ClientName = "mutated"

	second, err := store.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if second.Rooms[0].Items[0].Price != 350 || second.ClientName != "Анна" {
		t.Fatal("mutating a returned estimate leaked into the store")
	}
}

func TestList_FiltersAndOrders(t *testing.T) {
	ctx := context.Background()
	store := eststore.NewMemStore()

	draft, _ := store.Create(ctx, samplePayload("Первый"))
	completedPayload := samplePayload("Второй")
	completedPayload.Status = eststore.StatusCompleted
	completed, _ := store.Create(ctx, completedPayload)
	later, _ := store.Create(ctx, samplePayload("Третий"))

	all, err := store.List(ctx, eststore.ListOptions{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}
	// Newest first; identical timestamps fall back to descending ID.
	if all[0].ID != later.ID || all[2].ID != draft.ID {
		t.Fatalf("order = [%d %d %d], want newest first", all[0].ID, all[1].ID, all[2].ID)
	}

	drafts, err := store.List(ctx, eststore.ListOptions{Status: eststore.StatusDraft})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	for _, est := range drafts {
		if est.ID == completed.ID {
			t.Fatal("status filter leaked a completed estimate")
		}
	}
	if len(drafts) != 2 {
		t.Fatalf("drafts = %d, want 2", len(drafts))
	}

	limited, err := store.List(ctx, eststore.ListOptions{Limit: 1})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("limited = %d, want 1", len(limited))
	}
}

func TestDelete_RemovesEstimate(t *testing.T) {
	ctx := context.Background()
	store := eststore.NewMemStore()
	created, _ := store.Create(ctx, samplePayload("Анна"))

	if err := store.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, created.ID); !errors.Is(err, eststore.ErrNotFound) {
		t.Fatalf("Get after delete: err = %v, want ErrNotFound", err)
	}
}

func TestNotFound(t *testing.T) {
	ctx := context.Background()
	store := eststore.NewMemStore()

	if _, err := store.Get(ctx, 7); !errors.Is(err, eststore.ErrNotFound) {
		t.Errorf("Get: err = %v, want ErrNotFound", err)
	}
	if _, err := store.Update(ctx, 7, samplePayload("x")); !errors.Is(err, eststore.ErrNotFound) {
		t.Errorf("Update: err = %v, want ErrNotFound", err)
	}
	if err := store.Delete(ctx, 7); !errors.Is(err, eststore.ErrNotFound) {
		t.Errorf("Delete: err = %v, want ErrNotFound", err)
	}
}
