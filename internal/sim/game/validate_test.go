package game

import (
	"errors"
	"testing"

	"sitelocation.ai/internal/sim/catalogs"
	"sitelocation.ai/internal/sim/model"
)

func validatorConfig(t *testing.T, maxPerRound int) Config {
	t.Helper()
	cat, err := catalogs.NewStoreCatalog([]catalogs.StoreDef{
		{ID: "small", CapitalCost: 10, OperatingCost: 1, Attractiveness: 5, AttractivenessConstant: 1},
		{ID: "large", CapitalCost: 50, OperatingCost: 5, Attractiveness: 20, AttractivenessConstant: 1},
	})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	cfg := testConfig(t)
	cfg.Stores = cat
	cfg.MaxStoresPerRound = maxPerRound
	return cfg
}

func TestValidateStoresCapAndFunds(t *testing.T) {
	cases := []struct {
		name       string
		cap        int
		funds      float64
		candidates []model.Store
		want       int
		capital    float64
	}{
		{"empty", 3, 100, nil, 0, 0},
		{"cap reached", 2, 1000, []model.Store{
			model.NewStore(0, 0, "small"), model.NewStore(1, 1, "small"), model.NewStore(2, 2, "small"),
		}, 2, 20},
		{"zero cap", 0, 1000, []model.Store{model.NewStore(0, 0, "small")}, 0, 0},
		{"exact funds", 5, 60, []model.Store{
			model.NewStore(0, 0, "large"), model.NewStore(1, 1, "small"),
		}, 2, 60},
		{"first unaffordable stops", 5, 55, []model.Store{
			model.NewStore(0, 0, "large"), model.NewStore(1, 1, "small"), model.NewStore(2, 2, "small"),
		}, 1, 50},
		{"cheaper later candidate ignored", 5, 30, []model.Store{
			model.NewStore(0, 0, "large"), model.NewStore(1, 1, "small"),
		}, 0, 0},
		{"negative funds", 5, -1, []model.Store{model.NewStore(0, 0, "small")}, 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validatorConfig(t, tc.cap)
			got, capital, err := ValidateStores(cfg, 0, 1, tc.candidates, tc.funds)
			if err != nil {
				t.Fatalf("validate: %v", err)
			}
			if len(got) != tc.want || capital != tc.capital {
				t.Fatalf("accepted=%d capital=%v want %d/%v", len(got), capital, tc.want, tc.capital)
			}
			if capital > tc.funds && len(got) > 0 {
				t.Fatalf("capital %v exceeds funds %v", capital, tc.funds)
			}
			for i := range got {
				if got[i] != tc.candidates[i] {
					t.Fatalf("accepted[%d]=%v is not a prefix of candidates", i, got[i])
				}
			}
		})
	}
}

func TestValidateStoresRuleViolations(t *testing.T) {
	cfg := validatorConfig(t, 5)
	cases := []struct {
		name  string
		store model.Store
		code  string
	}{
		{"unknown type", model.NewStore(1, 1, "kiosk"), CodeRuleStoreType},
		{"row too large", model.NewStore(cfg.Rows, 0, "small"), CodeRuleOutOfBounds},
		{"col too large", model.NewStore(0, cfg.Cols, "small"), CodeRuleOutOfBounds},
		{"negative row", model.NewStore(-1, 0, "small"), CodeRuleOutOfBounds},
		{"negative col", model.NewStore(0, -3, "small"), CodeRuleOutOfBounds},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			candidates := []model.Store{model.NewStore(0, 0, "small"), tc.store}
			got, _, err := ValidateStores(cfg, 3, 2, candidates, 1000)
			var rv *RuleViolationError
			if !errors.As(err, &rv) {
				t.Fatalf("expected RuleViolationError, got %v", err)
			}
			if rv.Code != tc.code || rv.Index != 1 || rv.Player != 3 || rv.Round != 2 {
				t.Fatalf("violation=%+v", rv)
			}
			if got != nil {
				t.Fatalf("violating turn accepted %v", got)
			}
		})
	}
}

func TestValidateStoresStopsBeforeLateViolation(t *testing.T) {
	cfg := validatorConfig(t, 1)
	candidates := []model.Store{model.NewStore(0, 0, "small"), model.NewStore(99, 99, "nope")}
	got, _, err := ValidateStores(cfg, 0, 1, candidates, 100)
	if err != nil || len(got) != 1 {
		t.Fatalf("got=%v err=%v; candidates past the cap are never inspected", got, err)
	}
}

func TestStoreCost(t *testing.T) {
	cfg := validatorConfig(t, 5)
	placed := []model.Store{model.NewStore(0, 0, "large")}
	all := []model.Store{model.NewStore(5, 5, "small"), model.NewStore(0, 0, "large")}
	if got := StoreCost(cfg, placed, all); got != 50+1+5 {
		t.Fatalf("cost=%v want 56", got)
	}
	if got := StoreCost(cfg, nil, nil); got != 0 {
		t.Fatalf("cost=%v want 0", got)
	}
}
