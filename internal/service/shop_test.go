package service

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"shop-locator/internal/metrics"
	"shop-locator/internal/model"
	"shop-locator/internal/validate"
)

// stubPostcodes：仅识别规范化后的键
type stubPostcodes struct {
	rows map[string]model.Postcode
	err  error
	seen []string
}

func (s *stubPostcodes) FindPostcode(_ context.Context, pc string) (*model.Postcode, error) {
	s.seen = append(s.seen, pc)
	if s.err != nil {
		return nil, s.err
	}
	p, ok := s.rows[pc]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

type stubShops struct {
	shops   []model.Shop
	listErr error
	created []model.Shop
	nextID  int64
}

func (s *stubShops) ListOpenShops(context.Context) ([]model.Shop, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []model.Shop
	for _, sh := range s.shops {
		if sh.Status == model.StatusOpen {
			out = append(out, sh)
		}
	}
	return out, nil
}

func (s *stubShops) CreateShop(_ context.Context, sh model.Shop) (model.Shop, error) {
	s.nextID++
	sh.ID = s.nextID
	s.created = append(s.created, sh)
	return sh, nil
}

func newFixture() (*ShopService, *stubPostcodes, *stubShops) {
	pcs := &stubPostcodes{rows: map[string]model.Postcode{
		"EC1A 1BB": {Postcode: "EC1A 1BB", Latitude: 51.5074, Longitude: -0.1278},
	}}
	shops := &stubShops{shops: []model.Shop{
		{ID: 1, Name: "Test Shop", Status: model.StatusOpen, Type: model.TypeShop, Latitude: 51.5074, Longitude: -0.1278, MaxDeliveryDistance: 1},
		{ID: 2, Name: "Test Shop 2", Status: model.StatusOpen, Type: model.TypeShop, Latitude: 51.5074, Longitude: -0.1278, MaxDeliveryDistance: 5},
		{ID: 3, Name: "Closed", Status: model.StatusClosed, Type: model.TypeShop, Latitude: 51.5074, Longitude: -0.1278, MaxDeliveryDistance: 5},
		{ID: 4, Name: "Far", Status: model.StatusOpen, Type: model.TypeShop, Latitude: 52.4862, Longitude: -1.8904, MaxDeliveryDistance: 2},
	}}
	return NewShopService(pcs, shops), pcs, shops
}

func TestFindNearbyShops(t *testing.T) {
	svc, pcs, _ := newFixture()

	got, err := svc.FindNearbyShops(context.Background(), "ec1a1bb", 5)
	if err != nil {
		t.Fatalf("FindNearbyShops err: %v", err)
	}
	if len(got) != 2 || got[0].Name != "Test Shop" || got[1].Name != "Test Shop 2" {
		t.Fatalf("got = %+v", got)
	}
	if pcs.seen[0] != "EC1A 1BB" {
		t.Errorf("lookup key = %q, want normalized", pcs.seen[0])
	}
}

func TestFindDeliveringShops(t *testing.T) {
	svc, _, _ := newFixture()

	got, err := svc.FindDeliveringShops(context.Background(), "EC1A 1BB")
	if err != nil {
		t.Fatalf("FindDeliveringShops err: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got = %+v", got)
	}
	for _, r := range got {
		if r.Name == "Far" || r.Name == "Closed" {
			t.Errorf("unexpected shop %q", r.Name)
		}
	}
}

func TestRepeatedQueriesReadStore(t *testing.T) {
	svc, pcs, shops := newFixture()
	ctx := context.Background()

	if _, err := svc.FindNearbyShops(ctx, "EC1A 1BB", 5); err != nil {
		t.Fatalf("first query: %v", err)
	}
	shops.shops = append(shops.shops, model.Shop{ID: 5, Name: "New", Status: model.StatusOpen, Type: model.TypeShop, Latitude: 51.5074, Longitude: -0.1278, MaxDeliveryDistance: 1})
	pcs.rows["EC1A 1BB"] = model.Postcode{Postcode: "EC1A 1BB", Latitude: 51.5074, Longitude: -0.1278}

	got, err := svc.FindNearbyShops(ctx, "EC1A 1BB", 5)
	if err != nil {
		t.Fatalf("second query: %v", err)
	}
	if len(pcs.seen) != 2 {
		t.Errorf("postcode lookups = %d, want 2", len(pcs.seen))
	}
	if len(got) != 3 {
		t.Errorf("shop added between queries not visible: %+v", got)
	}
}

func TestUnknownPostcodeReturnsEmpty(t *testing.T) {
	svc, _, _ := newFixture()
	before := testutil.ToFloat64(metrics.PostcodeMissesTotal)

	for name, query := range map[string]func() ([]model.ShopDistance, error){
		"nearby":     func() ([]model.ShopDistance, error) { return svc.FindNearbyShops(context.Background(), "ZZ9 9ZZ", 10) },
		"delivering": func() ([]model.ShopDistance, error) { return svc.FindDeliveringShops(context.Background(), "ZZ9 9ZZ") },
	} {
		got, err := query()
		if err != nil {
			t.Fatalf("%s err: %v", name, err)
		}
		if got == nil || len(got) != 0 {
			t.Errorf("%s = %#v, want empty slice", name, got)
		}
	}
	if d := testutil.ToFloat64(metrics.PostcodeMissesTotal) - before; d != 2 {
		t.Errorf("postcode misses delta = %v, want 2", d)
	}
}

func TestQueryPropagatesStoreErrors(t *testing.T) {
	boom := errors.New("boom")

	svc, pcs, _ := newFixture()
	pcs.err = boom
	if _, err := svc.FindNearbyShops(context.Background(), "EC1A 1BB", 5); !errors.Is(err, boom) {
		t.Errorf("postcode err = %v", err)
	}

	svc, _, shops := newFixture()
	shops.listErr = boom
	if _, err := svc.FindDeliveringShops(context.Background(), "EC1A 1BB"); !errors.Is(err, boom) {
		t.Errorf("list err = %v", err)
	}
}

func TestCreateShop(t *testing.T) {
	svc, _, shops := newFixture()

	sh, err := svc.CreateShop(context.Background(), validate.ShopInput{
		Name: "New", Status: "open", Type: "takeaway", Latitude: "51.5", Longitude: "-0.1", MaxDeliveryDistance: "3",
	})
	if err != nil {
		t.Fatalf("CreateShop err: %v", err)
	}
	if sh.ID != 1 || sh.Type != model.TypeTakeaway || sh.MaxDeliveryDistance != 3 || len(shops.created) != 1 {
		t.Errorf("shop = %+v", sh)
	}
}

func TestCreateShop_ValidationErrors(t *testing.T) {
	svc, _, shops := newFixture()

	_, err := svc.CreateShop(context.Background(), validate.ShopInput{Name: "", Status: "maybe", Type: "shop", Latitude: "200", Longitude: "0", MaxDeliveryDistance: "-1"})
	var fe validate.FieldErrors
	if !errors.As(err, &fe) {
		t.Fatalf("err = %v, want FieldErrors", err)
	}
	for _, field := range []string{"name", "status", "latitude", "max_delivery_distance"} {
		if len(fe[field]) == 0 {
			t.Errorf("missing error for %s", field)
		}
	}
	if len(shops.created) != 0 {
		t.Error("invalid shop was persisted")
	}
}
