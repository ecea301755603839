package domain

import (
	"fmt"
	"strings"
)

// Funnel identifies which purchase flow a product belongs to. The funnel
// decides the success/cancel URLs attached to a checkout session.
type Funnel string

const (
	FunnelCourse     Funnel = "course"
	FunnelChallenge  Funnel = "6wc"
	FunnelMembership Funnel = "membership"
	FunnelBundle     Funnel = "bundle"
)

// Currency is a lowercase ISO currency code as used by the payment provider.
type Currency string

const (
	CurrencyUSD Currency = "usd"
	CurrencyGBP Currency = "gbp"
	CurrencyEUR Currency = "eur"
	CurrencyAUD Currency = "aud"
	CurrencyCAD Currency = "cad"
)

// NormalizeCurrency lowercases a requested currency and falls back to USD
// for anything the catalog does not carry.
func NormalizeCurrency(raw string) Currency {
	c := Currency(strings.ToLower(strings.TrimSpace(raw)))
	switch c {
	case CurrencyUSD, CurrencyGBP, CurrencyEUR, CurrencyAUD, CurrencyCAD:
		return c
	default:
		return CurrencyUSD
	}
}

// Price is one currency-specific price list entry on the payment provider.
type Price struct {
	ID         string
	Currency   Currency
	UnitAmount int64 // minor units
	Recurring  bool
}

// Product is a sellable item: the entry courses, the challenge, the
// membership, the bundle upgrade and the order bumps.
type Product struct {
	ID        string
	Name      string
	Funnel    Funnel
	Recurring bool
	Prices    map[Currency]Price
}

// CartItem is a product reference with quantity, resolved to a price id at
// session build time. Ephemeral, never persisted.
type CartItem struct {
	ProductID string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
}

// Catalog maps products to their per-currency price ids and carries the
// conversion rates used to normalize reported revenue to USD.
type Catalog struct {
	products map[string]Product
	usdRates map[Currency]float64
}

// Well-known product ids referenced by the funnel pages.
const (
	ProductVaultCourse   = "prod_vault_course"
	ProductSixWeekChall  = "prod_6wc"
	ProductMembership    = "prod_membership"
	ProductBundleUpgrade = "prod_bundle"
	ProductCallReviews   = "prod_call_reviews"
	ProductHandWraps     = "prod_hand_wraps"
)

// NewCatalog builds the default product catalog. Price ids follow the
// provider's price-list naming so a session request maps one to one onto
// provider line items.
func NewCatalog() *Catalog {
	products := []Product{
		{
			ID:     ProductVaultCourse,
			Name:   "Boxing Masterclass Vault",
			Funnel: FunnelCourse,
			Prices: prices("price_vault", map[Currency]int64{
				CurrencyUSD: 14700, CurrencyGBP: 11700, CurrencyEUR: 13700,
				CurrencyAUD: 22700, CurrencyCAD: 19700,
			}, false),
		},
		{
			ID:     ProductSixWeekChall,
			Name:   "6-Week Fighter Challenge",
			Funnel: FunnelChallenge,
			Prices: prices("price_6wc", map[Currency]int64{
				CurrencyUSD: 29700, CurrencyGBP: 23700, CurrencyEUR: 27700,
				CurrencyAUD: 45700, CurrencyCAD: 39700,
			}, false),
		},
		{
			ID:        ProductMembership,
			Name:      "Oracle Boxing Membership",
			Funnel:    FunnelMembership,
			Recurring: true,
			Prices: prices("price_membership", map[Currency]int64{
				CurrencyUSD: 4700, CurrencyGBP: 3700, CurrencyEUR: 4400,
				CurrencyAUD: 7200, CurrencyCAD: 6400,
			}, true),
		},
		{
			ID:     ProductBundleUpgrade,
			Name:   "Complete Coaching Bundle",
			Funnel: FunnelBundle,
			Prices: prices("price_bundle", map[Currency]int64{
				CurrencyUSD: 24700, CurrencyGBP: 19700, CurrencyEUR: 23200,
				CurrencyAUD: 38200, CurrencyCAD: 33200,
			}, false),
		},
		{
			ID:     ProductCallReviews,
			Name:   "Monthly Call Reviews",
			Funnel: FunnelCourse,
			Prices: prices("price_call_reviews", map[Currency]int64{
				CurrencyUSD: 4700, CurrencyGBP: 3700, CurrencyEUR: 4400,
				CurrencyAUD: 7200, CurrencyCAD: 6400,
			}, false),
		},
		{
			ID:     ProductHandWraps,
			Name:   "Oracle Hand Wraps",
			Funnel: FunnelCourse,
			Prices: prices("price_hand_wraps", map[Currency]int64{
				CurrencyUSD: 1900, CurrencyGBP: 1500, CurrencyEUR: 1800,
				CurrencyAUD: 2900, CurrencyCAD: 2600,
			}, false),
		},
	}

	byID := make(map[string]Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	return &Catalog{
		products: byID,
		usdRates: map[Currency]float64{
			CurrencyUSD: 1.0,
			CurrencyGBP: 1.27,
			CurrencyEUR: 1.08,
			CurrencyAUD: 0.65,
			CurrencyCAD: 0.73,
		},
	}
}

func prices(base string, amounts map[Currency]int64, recurring bool) map[Currency]Price {
	out := make(map[Currency]Price, len(amounts))
	for cur, amount := range amounts {
		out[cur] = Price{
			ID:         fmt.Sprintf("%s_%s", base, cur),
			Currency:   cur,
			UnitAmount: amount,
			Recurring:  recurring,
		}
	}
	return out
}

// Product returns the product for an id.
func (c *Catalog) Product(id string) (Product, error) {
	p, ok := c.products[id]
	if !ok {
		return Product{}, fmt.Errorf("unknown product %q", id)
	}
	return p, nil
}

// ResolvePrice maps a product to its price in the requested currency. The
// returned price always carries the requested currency.
func (c *Catalog) ResolvePrice(productID string, currency Currency) (Price, error) {
	p, err := c.Product(productID)
	if err != nil {
		return Price{}, err
	}
	price, ok := p.Prices[currency]
	if !ok {
		return Price{}, fmt.Errorf("product %q has no price in %s", productID, currency)
	}
	return price, nil
}

// Total computes the cart total in minor units of the requested currency.
func (c *Catalog) Total(items []CartItem, currency Currency) (int64, error) {
	var total int64
	for _, item := range items {
		price, err := c.ResolvePrice(item.ProductID, currency)
		if err != nil {
			return 0, err
		}
		qty := item.Quantity
		if qty <= 0 {
			qty = 1
		}
		total += price.UnitAmount * qty
	}
	return total, nil
}

// ToUSD normalizes a minor-unit amount in the given currency to USD units
// for reporting.
func (c *Catalog) ToUSD(amount int64, currency Currency) float64 {
	rate, ok := c.usdRates[currency]
	if !ok {
		rate = 1.0
	}
	return float64(amount) / 100 * rate
}

// BuildCart assembles the final cart for a funnel order: the base product,
// the selected bumps, and the bundle substitution. When the bundle upgrade
// is among the bumps in a course funnel it replaces the base course, and it
// is never added twice.
func (c *Catalog) BuildCart(baseProductID string, bumps []string) ([]CartItem, error) {
	if _, err := c.Product(baseProductID); err != nil {
		return nil, err
	}

	bundleSelected := false
	for _, id := range bumps {
		if id == ProductBundleUpgrade {
			bundleSelected = true
			break
		}
	}

	var items []CartItem
	if bundleSelected {
		items = append(items, CartItem{ProductID: ProductBundleUpgrade, Quantity: 1})
	} else {
		items = append(items, CartItem{ProductID: baseProductID, Quantity: 1})
	}

	seen := map[string]bool{items[0].ProductID: true}
	for _, id := range bumps {
		if id == ProductBundleUpgrade || seen[id] {
			continue
		}
		if _, err := c.Product(id); err != nil {
			return nil, err
		}
		items = append(items, CartItem{ProductID: id, Quantity: 1})
		seen[id] = true
	}
	return items, nil
}
