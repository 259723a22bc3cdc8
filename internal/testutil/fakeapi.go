package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/dtroode/catalog-client/internal/model"
	"github.com/dtroode/catalog-client/internal/token"
)

const credentialsDetail = "Could not validate credentials"

type fakeUser struct {
	user     model.User
	password string
}

type failure struct {
	status int
	detail string
}

// FakeAPI is an in-memory catalog API served over httptest. It keeps just
// enough behavior for client tests: auth with real HS256 tokens, product
// filtering and paging, interaction recording.
type FakeAPI struct {
	Server *httptest.Server
	Issuer *token.Issuer

	mu           sync.Mutex
	users        map[string]*fakeUser
	products     []model.Product
	interactions []model.Interaction
	nextID       int64
	hits         map[string]int
	failures     map[string]failure
	delay        time.Duration
}

// NewFakeAPI starts a fake API and registers its shutdown with t.
func NewFakeAPI(t testing.TB) *FakeAPI {
	t.Helper()

	f := &FakeAPI{
		Issuer:   token.NewIssuer("test-secret", 30*time.Minute),
		users:    map[string]*fakeUser{},
		hits:     map[string]int{},
		failures: map[string]failure{},
		nextID:   1,
	}
	f.Server = httptest.NewServer(f.router())
	t.Cleanup(f.Server.Close)

	return f
}

// URL is the API base URL.
func (f *FakeAPI) URL() string {
	return f.Server.URL + "/api"
}

func (f *FakeAPI) id() int64 {
	id := f.nextID
	f.nextID++
	return id
}

// AddUser registers an account directly.
func (f *FakeAPI) AddUser(email, username, password string) model.User {
	f.mu.Lock()
	defer f.mu.Unlock()

	u := model.User{
		ID:        f.id(),
		Email:     email,
		Username:  username,
		IsActive:  true,
		CreatedAt: model.Timestamp{Time: time.Now().UTC()},
	}
	f.users[email] = &fakeUser{user: u, password: password}
	return u
}

// TokenFor issues a valid token for username.
func (f *FakeAPI) TokenFor(username string) string {
	raw, err := f.Issuer.Issue(username)
	if err != nil {
		panic(err)
	}
	return raw
}

// AddProduct stores p with a fresh ID and returns it.
func (f *FakeAPI) AddProduct(p model.Product) model.Product {
	f.mu.Lock()
	defer f.mu.Unlock()

	p.ID = f.id()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = model.Timestamp{Time: time.Now().UTC().Add(time.Duration(p.ID) * time.Second)}
	}
	f.products = append(f.products, p)
	return p
}

// SeedProducts adds n products spread over categories.
func (f *FakeAPI) SeedProducts(n int, categories ...string) []model.Product {
	if len(categories) == 0 {
		categories = []string{"Electronics"}
	}
	out := make([]model.Product, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, f.AddProduct(model.Product{
			Name:            fmt.Sprintf("Product %02d", i),
			Category:        categories[i%len(categories)],
			Price:           decimal.NewFromInt(int64(10 + i)),
			QuantityInStock: i % 7,
			IsFeatured:      i%5 == 0,
			Rating:          float64(i%5) + 0.5,
		}))
	}
	return out
}

// Hits returns how many requests hit route, e.g. "GET /products/3".
func (f *FakeAPI) Hits(route string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[route]
}

// Fail makes route answer with status and detail until cleared with status 0.
func (f *FakeAPI) Fail(route string, status int, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if status == 0 {
		delete(f.failures, route)
		return
	}
	f.failures[route] = failure{status: status, detail: detail}
}

// SetDelay delays every response.
func (f *FakeAPI) SetDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = d
}

// Interactions returns the recorded interactions.
func (f *FakeAPI) Interactions() []model.Interaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.interactions)
}

func (f *FakeAPI) router() http.Handler {
	r := chi.NewRouter()
	r.Use(f.instrument)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", f.login)
		r.Post("/auth/register", f.register)
		r.Group(func(r chi.Router) {
			r.Use(f.authenticate)
			r.Get("/auth/me", f.me)
			r.Put("/auth/me", f.updateMe)
			r.Post("/auth/change-password", f.changePassword)
			r.Post("/interactions", f.createInteraction)
			r.Get("/interactions/history", f.history)
			r.Get("/interactions/analytics", f.analytics)
			r.Get("/interactions/bulk", f.bulk)
			r.Delete("/interactions/{id}", f.deleteInteraction)
			r.Post("/products", f.createProduct)
			r.Put("/products/{id}", f.updateProduct)
			r.Delete("/products/{id}", f.deleteProduct)
		})

		r.Get("/products", f.listProducts)
		r.Get("/products/search", f.search)
		r.Get("/products/featured", f.featured)
		r.Get("/products/on-sale", f.onSale)
		r.Get("/products/stats", f.catalogStats)
		r.Get("/products/categories", f.categories)
		r.Get("/products/categories/{category}/subcategories", f.subcategories)
		r.Get("/products/{id}", f.getProduct)
		r.Get("/products/{id}/stats", f.productStats)
	})

	return r
}

// instrument counts hits per method and path (without the /api prefix) and
// applies injected failures and delays.
func (f *FakeAPI) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.Method + " " + strings.TrimPrefix(r.URL.Path, "/api")

		f.mu.Lock()
		f.hits[route]++
		fail, failing := f.failures[route]
		delay := f.delay
		f.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		if failing {
			writeDetail(w, fail.status, fail.detail)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type userKey struct{}

func (f *FakeAPI) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			writeDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		username, err := f.Issuer.Verify(raw)
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, credentialsDetail)
			return
		}

		f.mu.Lock()
		var found *fakeUser
		for _, u := range f.users {
			if u.user.Username == username {
				found = u
				break
			}
		}
		f.mu.Unlock()
		if found == nil {
			writeDetail(w, http.StatusUnauthorized, credentialsDetail)
			return
		}

		next.ServeHTTP(w, r.WithContext(contextWithUser(r, found)))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]any{"detail": detail})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": []map[string]any{{"loc": []string{"body"}, "msg": "Invalid JSON body", "type": "value_error"}},
		})
		return false
	}
	return true
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil
}

func queryInt(r *http.Request, name string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return def
	}
	return v
}

func page[T any](items []T, skip, limit int) []T {
	if skip >= len(items) {
		return []T{}
	}
	end := min(skip+limit, len(items))
	return items[skip:end]
}

func (f *FakeAPI) findProduct(id int64) int {
	return slices.IndexFunc(f.products, func(p model.Product) bool { return p.ID == id })
}

func (f *FakeAPI) filtered(r *http.Request) []model.Product {
	q := r.URL.Query()

	var categories []string
	if c := q.Get("category"); c != "" {
		categories = strings.Split(c, ",")
	}
	search := strings.ToLower(q.Get("search"))

	f.mu.Lock()
	out := make([]model.Product, 0, len(f.products))
	for _, p := range f.products {
		if len(categories) > 0 && !slices.Contains(categories, p.Category) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Name), search) {
			continue
		}
		if q.Get("is_featured") == "true" && !p.IsFeatured {
			continue
		}
		if q.Get("is_on_sale") == "true" && !p.IsOnSale {
			continue
		}
		if q.Get("in_stock") == "true" && p.QuantityInStock <= 0 {
			continue
		}
		if v, err := decimal.NewFromString(q.Get("min_price")); err == nil && p.Price.LessThan(v) {
			continue
		}
		if v, err := decimal.NewFromString(q.Get("max_price")); err == nil && p.Price.GreaterThan(v) {
			continue
		}
		out = append(out, p)
	}
	f.mu.Unlock()

	desc := q.Get("sort_order") != "asc"
	less := func(a, b model.Product) bool { return a.CreatedAt.Before(b.CreatedAt.Time) }
	switch q.Get("sort_by") {
	case "name":
		less = func(a, b model.Product) bool { return a.Name < b.Name }
	case "price":
		less = func(a, b model.Product) bool { return a.Price.LessThan(b.Price) }
	case "rating":
		less = func(a, b model.Product) bool { return a.Rating < b.Rating }
	}
	sort.SliceStable(out, func(i, j int) bool {
		if desc {
			return less(out[j], out[i])
		}
		return less(out[i], out[j])
	})

	return out
}

func (f *FakeAPI) listProducts(w http.ResponseWriter, r *http.Request) {
	items := f.filtered(r)
	writeJSON(w, http.StatusOK, page(items, queryInt(r, "skip", 0), queryInt(r, "limit", 100)))
}

func (f *FakeAPI) search(w http.ResponseWriter, r *http.Request) {
	term := strings.ToLower(r.URL.Query().Get("q"))
	if term == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "Search query is required")
		return
	}

	f.mu.Lock()
	var out []model.Product
	for _, p := range f.products {
		if strings.Contains(strings.ToLower(p.Name), term) {
			out = append(out, p)
		}
	}
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, page(out, 0, queryInt(r, "limit", 20)))
}

func (f *FakeAPI) selectProducts(w http.ResponseWriter, r *http.Request, keep func(model.Product) bool, defLimit int) {
	f.mu.Lock()
	out := []model.Product{}
	for _, p := range f.products {
		if keep(p) {
			out = append(out, p)
		}
	}
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, page(out, 0, queryInt(r, "limit", defLimit)))
}

func (f *FakeAPI) featured(w http.ResponseWriter, r *http.Request) {
	f.selectProducts(w, r, func(p model.Product) bool { return p.IsFeatured }, 10)
}

func (f *FakeAPI) onSale(w http.ResponseWriter, r *http.Request) {
	f.selectProducts(w, r, func(p model.Product) bool { return p.IsOnSale }, 20)
}

func (f *FakeAPI) catalogStats(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	stats := model.CatalogStats{TotalProducts: len(f.products)}
	counts := map[string]int{}
	total := decimal.Zero
	for _, p := range f.products {
		counts[p.Category]++
		total = total.Add(p.Price)
		if p.IsFeatured {
			stats.FeaturedProducts++
		}
		if p.IsOnSale {
			stats.OnSaleProducts++
		}
		if p.QuantityInStock == 0 {
			stats.OutOfStock++
		}
		stats.AverageRating += p.Rating
	}
	if n := len(f.products); n > 0 {
		stats.AveragePrice = total.Div(decimal.NewFromInt(int64(n))).Round(2)
		stats.AverageRating /= float64(n)
	}
	for c, n := range counts {
		stats.Categories = append(stats.Categories, model.CategoryCount{Category: c, Count: n})
	}
	sort.Slice(stats.Categories, func(i, j int) bool { return stats.Categories[i].Category < stats.Categories[j].Category })
	stats.TotalCategories = len(counts)

	writeJSON(w, http.StatusOK, stats)
}

func (f *FakeAPI) categories(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	out := []string{}
	for _, p := range f.products {
		if !slices.Contains(out, p.Category) {
			out = append(out, p.Category)
		}
	}
	f.mu.Unlock()

	sort.Strings(out)
	writeJSON(w, http.StatusOK, out)
}

func (f *FakeAPI) subcategories(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")

	f.mu.Lock()
	out := []string{}
	for _, p := range f.products {
		if p.Category == category && p.Subcategory != nil && !slices.Contains(out, *p.Subcategory) {
			out = append(out, *p.Subcategory)
		}
	}
	f.mu.Unlock()

	sort.Strings(out)
	writeJSON(w, http.StatusOK, out)
}

func (f *FakeAPI) getProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid product id")
		return
	}

	f.mu.Lock()
	idx := f.findProduct(id)
	var p model.Product
	if idx >= 0 {
		p = f.products[idx]
	}
	f.mu.Unlock()

	if idx < 0 {
		writeDetail(w, http.StatusNotFound, "Product not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (f *FakeAPI) createProduct(w http.ResponseWriter, r *http.Request) {
	var in model.ProductCreate
	if !decode(w, r, &in) {
		return
	}

	p := f.AddProduct(model.Product{
		Name:            in.Name,
		Category:        in.Category,
		Subcategory:     in.Subcategory,
		Price:           in.Price,
		Manufacturer:    in.Manufacturer,
		Description:     in.Description,
		QuantityInStock: in.QuantityInStock,
		IsFeatured:      in.IsFeatured,
		IsOnSale:        in.IsOnSale,
		SalePrice:       in.SalePrice,
		ImageURL:        in.ImageURL,
	})
	writeJSON(w, http.StatusCreated, p)
}

func (f *FakeAPI) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r)
	var in model.ProductUpdate
	if !decode(w, r, &in) {
		return
	}

	f.mu.Lock()
	idx := f.findProduct(id)
	if idx < 0 {
		f.mu.Unlock()
		writeDetail(w, http.StatusNotFound, "Product not found")
		return
	}
	p := &f.products[idx]
	if in.Name != nil {
		p.Name = *in.Name
	}
	if in.Category != nil {
		p.Category = *in.Category
	}
	if in.Price != nil {
		p.Price = *in.Price
	}
	if in.QuantityInStock != nil {
		p.QuantityInStock = *in.QuantityInStock
	}
	if in.IsOnSale != nil {
		p.IsOnSale = *in.IsOnSale
	}
	if in.SalePrice != nil {
		p.SalePrice = in.SalePrice
	}
	out := *p
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (f *FakeAPI) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r)

	f.mu.Lock()
	idx := f.findProduct(id)
	if idx >= 0 {
		f.products = slices.Delete(f.products, idx, idx+1)
	}
	f.mu.Unlock()

	if idx < 0 {
		writeDetail(w, http.StatusNotFound, "Product not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
