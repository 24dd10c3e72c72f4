package market

import (
	"testing"
	"time"

	"github.com/safar/farm-market/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listing(id, name string, category models.Category, province string, price string) models.MarketplaceItem {
	return models.MarketplaceItem{
		ID:       id,
		Name:     name,
		Category: category,
		Location: models.Location{Province: province},
		Price:    decimal.RequireFromString(price),
		Quantity: decimal.NewFromInt(10),
		Status:   models.ItemStatusAvailable,
	}
}

func names(items []models.MarketplaceItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Name
	}
	return out
}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestApplyMaizeScenario(t *testing.T) {
	items := []models.MarketplaceItem{
		listing("1", "Maize Seed", models.CategoryInputs, "Lusaka", "45"),
		listing("2", "White Maize", models.CategoryProduce, "Eastern", "3.5"),
	}

	got := Apply(items, Criteria{Category: "inputs"})
	assert.Equal(t, []string{"Maize Seed"}, names(got))

	got = Apply(items, Criteria{Category: All, Province: All, Sort: SortPriceLow})
	assert.Equal(t, []string{"White Maize", "Maize Seed"}, names(got))
}

func TestApplyEmpty(t *testing.T) {
	got := Apply(nil, Criteria{Search: "maize", Category: "inputs", PriceMin: dec("1"), Sort: SortNewest})
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestApplySearch(t *testing.T) {
	items := []models.MarketplaceItem{
		{ID: "1", Name: "Compound D", Description: "Basal FERTILIZER"},
		{ID: "2", Name: "Urea", SellerName: "Fertilizer Depot"},
		{ID: "3", Name: "Soya Beans", Type: "fertilizer-free grain"},
		{ID: "4", Name: "Groundnuts", Description: "shelled"},
	}

	got := Apply(items, Criteria{Search: "Fertilizer"})
	assert.ElementsMatch(t, []string{"Compound D", "Urea", "Soya Beans"}, names(got))
}

func TestApplyPriceRange(t *testing.T) {
	items := []models.MarketplaceItem{
		listing("1", "a", models.CategoryInputs, "Lusaka", "10"),
		listing("2", "b", models.CategoryInputs, "Lusaka", "20"),
		listing("3", "c", models.CategoryInputs, "Lusaka", "30"),
	}

	assert.Equal(t, []string{"b", "c"}, names(Apply(items, Criteria{PriceMin: dec("20")})))
	assert.Equal(t, []string{"a", "b"}, names(Apply(items, Criteria{PriceMax: dec("20")})))
	assert.Equal(t, []string{"b"}, names(Apply(items, Criteria{PriceMin: dec("15"), PriceMax: dec("25")})))
	assert.Empty(t, Apply(items, Criteria{PriceMin: dec("31")}))
}

// Every combination of filters yields exactly the items that pass all of
// them.
func TestApplyFiltersAreConjunctive(t *testing.T) {
	items := []models.MarketplaceItem{
		listing("1", "Maize Seed", models.CategoryInputs, "Lusaka", "45"),
		listing("2", "White Maize", models.CategoryProduce, "Eastern", "3.5"),
		listing("3", "Maize Bran", models.CategoryProduce, "Lusaka", "12"),
		listing("4", "Sprayer", models.CategoryInputs, "Central", "800"),
		listing("5", "Yellow Maize", models.CategoryProduce, "Lusaka", "4"),
	}

	searches := []string{"", "maize", "spray"}
	categories := []string{All, "inputs", "produce"}
	provinces := []string{All, "Lusaka", "Eastern"}
	mins := []*decimal.Decimal{nil, dec("4")}
	maxes := []*decimal.Decimal{nil, dec("45")}

	for _, search := range searches {
		for _, category := range categories {
			for _, province := range provinces {
				for _, min := range mins {
					for _, max := range maxes {
						c := Criteria{Search: search, Category: category, Province: province, PriceMin: min, PriceMax: max, Sort: SortPriceLow}
						got := Apply(items, c)

						want := 0
						for _, it := range items {
							if c.Match(it) {
								want++
							}
						}
						require.Len(t, got, want, "%+v", c)

						for _, it := range got {
							if category != All {
								assert.Equal(t, category, string(it.Category))
							}
							if province != All {
								assert.Equal(t, province, it.Location.Province)
							}
							if min != nil {
								assert.True(t, it.Price.GreaterThanOrEqual(*min))
							}
							if max != nil {
								assert.True(t, it.Price.LessThanOrEqual(*max))
							}
						}
					}
				}
			}
		}
	}
}

func TestApplySortKeys(t *testing.T) {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	items := []models.MarketplaceItem{
		listing("1", "banana", models.CategoryProduce, "Lusaka", "20"),
		listing("2", "Apple", models.CategoryProduce, "Lusaka", "5"),
		listing("3", "cassava", models.CategoryProduce, "Lusaka", "12.5"),
	}
	items[0].CreatedAt = base.Add(2 * time.Hour)
	items[1].CreatedAt = base
	items[2].CreatedAt = base.Add(time.Hour)

	assert.Equal(t, []string{"Apple", "cassava", "banana"}, names(Apply(items, Criteria{Sort: SortPriceLow})))
	assert.Equal(t, []string{"banana", "cassava", "Apple"}, names(Apply(items, Criteria{Sort: SortPriceHigh})))
	assert.Equal(t, []string{"banana", "cassava", "Apple"}, names(Apply(items, Criteria{Sort: SortNewest})))
	assert.Equal(t, []string{"banana", "Apple", "cassava"}, names(Apply(items, Criteria{Sort: SortRating})))

	// Locale order, not byte order: "Apple" sorts before "banana".
	assert.Equal(t, []string{"Apple", "banana", "cassava"}, names(Apply(items, Criteria{})))
	assert.Equal(t, []string{"Apple", "banana", "cassava"}, names(Apply(items, Criteria{Sort: "bogus"})))
}

func TestApplyNameSortIdempotentAndStable(t *testing.T) {
	items := []models.MarketplaceItem{
		listing("1", "Maize", models.CategoryProduce, "Lusaka", "3"),
		listing("2", "beans", models.CategoryProduce, "Lusaka", "9"),
		listing("3", "Maize", models.CategoryProduce, "Eastern", "4"),
	}

	once := Apply(items, Criteria{Sort: SortName})
	twice := Apply(once, Criteria{Sort: SortName})
	assert.Equal(t, once, twice)

	assert.Equal(t, "beans", once[0].Name)
	assert.Equal(t, "1", once[1].ID, "equal names keep input order")
	assert.Equal(t, "3", once[2].ID)
}

func TestApplyPriceLowFirstIsMinimum(t *testing.T) {
	items := []models.MarketplaceItem{
		listing("1", "a", models.CategoryInputs, "Lusaka", "7.25"),
		listing("2", "b", models.CategoryProduce, "Lusaka", "7.2"),
		listing("3", "c", models.CategoryInputs, "Eastern", "0.5"),
		listing("4", "d", models.CategoryInputs, "Lusaka", "100"),
	}

	got := Apply(items, Criteria{Province: "Lusaka", Sort: SortPriceLow})
	require.NotEmpty(t, got)
	assert.Equal(t, "b", got[0].Name)
}

func TestApplyDoesNotModifyInput(t *testing.T) {
	items := []models.MarketplaceItem{
		listing("1", "z", models.CategoryInputs, "Lusaka", "1"),
		listing("2", "a", models.CategoryInputs, "Lusaka", "2"),
	}

	Apply(items, Criteria{Sort: SortName})
	assert.Equal(t, "z", items[0].Name)
}

func TestParseSortKey(t *testing.T) {
	assert.Equal(t, SortPriceHigh, ParseSortKey("price-high"))
	assert.Equal(t, SortRating, ParseSortKey("rating"))
	assert.Equal(t, SortName, ParseSortKey(""))
	assert.Equal(t, SortName, ParseSortKey("popularity"))
}
