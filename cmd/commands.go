package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/dtroode/catalog-client/internal/filter"
	"github.com/dtroode/catalog-client/internal/model"
)

func (a *app) loginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with email and password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.session.Login(cmd.Context(), email, password); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", a.session.State().User.DisplayName())
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	return cmd
}

func (a *app) registerCmd() *cobra.Command {
	var email, username, password, fullName string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg := model.Registration{Email: email, Username: username, Password: password}
			if fullName != "" {
				reg.FullName = &fullName
			}

			user, err := a.session.Register(cmd.Context(), reg)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s, log in to continue\n", user.Username)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&username, "username", "", "user name, 3 to 50 characters")
	cmd.Flags().StringVar(&password, "password", "", "password, at least 8 characters")
	cmd.Flags().StringVar(&fullName, "full-name", "", "full name")
	return cmd
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a.session.Logout()
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func (a *app) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireAuth(cmd.Context()); err != nil {
				return err
			}

			st := a.session.State()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "Name:\t%s\n", st.User.DisplayName())
			fmt.Fprintf(w, "Email:\t%s\n", st.User.Email)
			fmt.Fprintf(w, "Username:\t%s\n", st.User.Username)
			if !st.TokenExpiresAt.IsZero() {
				fmt.Fprintf(w, "Session expires:\t%s\n", st.TokenExpiresAt.Local().Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}
}

func (a *app) profileCmd() *cobra.Command {
	var fullName, phone, address string
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Update profile fields",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// only the flags given on the command line are sent
			upd := model.ProfileUpdate{}
			if cmd.Flags().Changed("full-name") {
				upd.FullName = &fullName
			}
			if cmd.Flags().Changed("phone") {
				upd.Phone = &phone
			}
			if cmd.Flags().Changed("address") {
				upd.Address = &address
			}

			if err := a.requireAuth(cmd.Context()); err != nil {
				return err
			}
			user, err := a.session.UpdateProfile(cmd.Context(), upd)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Profile updated for %s\n", user.DisplayName())
			return nil
		},
	}
	cmd.Flags().StringVar(&fullName, "full-name", "", "new full name")
	cmd.Flags().StringVar(&phone, "phone", "", "new phone number")
	cmd.Flags().StringVar(&address, "address", "", "new address")
	return cmd
}

func (a *app) passwdCmd() *cobra.Command {
	var current, next string
	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Change the password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireAuth(cmd.Context()); err != nil {
				return err
			}
			if err := a.session.ChangePassword(cmd.Context(), current, next); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Password changed")
			return nil
		},
	}
	cmd.Flags().StringVar(&current, "current", "", "current password")
	cmd.Flags().StringVar(&next, "new", "", "new password, at least 8 characters")
	return cmd
}

// productFilters collects the filter flags of the products command and
// turns them into one filter transition.
type productFilters struct {
	search      string
	categories  []string
	subcategory string
	minPrice    string
	maxPrice    string
	minRating   float64
	maxRating   float64
	featured    bool
	onSale      bool
	inStock     bool
	sortBy      string
	sortOrder   string
	limit       int
}

func (f *productFilters) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.search, "search", "", "free-text search")
	fs.StringSliceVar(&f.categories, "category", nil, "categories, repeated or comma-separated")
	fs.StringVar(&f.subcategory, "subcategory", "", "subcategory")
	fs.StringVar(&f.minPrice, "min-price", "", "minimum price")
	fs.StringVar(&f.maxPrice, "max-price", "", "maximum price")
	fs.Float64Var(&f.minRating, "min-rating", 0, "minimum rating, 0 to 5")
	fs.Float64Var(&f.maxRating, "max-rating", 0, "maximum rating, 0 to 5")
	fs.BoolVar(&f.featured, "featured", false, "featured products only")
	fs.BoolVar(&f.onSale, "on-sale", false, "discounted products only")
	fs.BoolVar(&f.inStock, "in-stock", false, "products in stock only")
	fs.StringVar(&f.sortBy, "sort", string(filter.DefaultSortBy), "name, price, rating, created_at or popularity")
	fs.StringVar(&f.sortOrder, "order", string(filter.DefaultSortOrder), "asc or desc")
	fs.IntVar(&f.limit, "limit", 0, "page size")
}

func parsePrice(field, s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, &model.ValidationError{Field: field, Message: fmt.Sprintf("invalid price %q", s)}
	}
	return &d, nil
}

func optionalRating(fs *pflag.FlagSet, name string, r float64) *float64 {
	if !fs.Changed(name) {
		return nil
	}
	return &r
}

// transition validates the flags and returns the filter change they
// describe. Nothing is fetched when validation fails.
func (f *productFilters) transition(fs *pflag.FlagSet) (func(filter.State) filter.State, error) {
	minPrice, err := parsePrice("min_price", f.minPrice)
	if err != nil {
		return nil, err
	}
	maxPrice, err := parsePrice("max_price", f.maxPrice)
	if err != nil {
		return nil, err
	}
	if err := filter.ValidatePriceRange(minPrice, maxPrice); err != nil {
		return nil, err
	}

	minRating := optionalRating(fs, "min-rating", f.minRating)
	maxRating := optionalRating(fs, "max-rating", f.maxRating)
	if err := filter.ValidateRatingRange(minRating, maxRating); err != nil {
		return nil, err
	}

	sortBy, err := model.ParseSortBy(f.sortBy)
	if err != nil {
		return nil, err
	}
	sortOrder, err := model.ParseSortOrder(f.sortOrder)
	if err != nil {
		return nil, err
	}

	return func(s filter.State) filter.State {
		s = s.SetLimit(f.limit).
			SetSearch(f.search).
			SetSubcategory(f.subcategory).
			SetSort(sortBy, sortOrder)
		// both ranges were validated above
		if next, err := s.SetPriceRange(minPrice, maxPrice); err == nil {
			s = next
		}
		if next, err := s.SetRatingRange(minRating, maxRating); err == nil {
			s = next
		}
		for _, c := range f.categories {
			if c = strings.TrimSpace(c); c != "" {
				s = s.ToggleCategory(c)
			}
		}
		if f.featured {
			s = s.ToggleFeatured()
		}
		if f.onSale {
			s = s.ToggleOnSale()
		}
		if f.inStock {
			s = s.ToggleInStock()
		}
		return s
	}, nil
}

func (a *app) productsCmd() *cobra.Command {
	var (
		filters productFilters
		pages   int
	)
	cmd := &cobra.Command{
		Use:   "products",
		Short: "List products with filters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			transition, err := filters.transition(cmd.Flags())
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if err := a.browser.Apply(ctx, transition); err != nil {
				return err
			}
			for i := 1; i < pages && a.browser.View().HasMore; i++ {
				if err := a.browser.LoadMore(ctx); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			view := a.browser.View()
			if len(view.Products) == 0 {
				fmt.Fprintln(out, "No products found")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tPRICE\tRATING\tSTOCK")
			for _, p := range view.Products {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%.1f\t%s\n", p.ID, p.Name, p.Category, formatPrice(p), p.Rating, stockLabel(p))
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if n := view.Filter.ActiveCount(); n > 0 {
				fmt.Fprintf(out, "%d active filters\n", n)
			}
			if view.HasMore {
				fmt.Fprintf(out, "More results available, use --pages %d\n", pages+1)
			}
			return nil
		},
	}
	filters.register(cmd.Flags())
	cmd.Flags().IntVar(&pages, "pages", 1, "number of pages to load")
	return cmd
}

func formatPrice(p model.Product) string {
	price := "$" + p.EffectivePrice().StringFixed(2)
	if p.HasDiscount() {
		price += fmt.Sprintf(" (-%d%% from $%s)", p.DiscountPercent(), p.Price.StringFixed(2))
	}
	return price
}

func stockLabel(p model.Product) string {
	switch {
	case !p.InStock():
		return "out of stock"
	case p.LowStock():
		return fmt.Sprintf("only %d left", p.QuantityInStock)
	default:
		return "in stock"
	}
}

func (a *app) productCmd() *cobra.Command {
	var (
		id        int64
		withStats bool
	)
	cmd := &cobra.Command{
		Use:   "product",
		Short: "Show one product",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if id <= 0 {
				return &model.ValidationError{Field: "id", Message: "Product id is required"}
			}

			ctx := cmd.Context()
			p, err := a.catalog.Product(ctx, id)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "Name:\t%s\n", p.Name)
			fmt.Fprintf(w, "Category:\t%s\n", p.Category)
			if p.Subcategory != nil {
				fmt.Fprintf(w, "Subcategory:\t%s\n", *p.Subcategory)
			}
			fmt.Fprintf(w, "Price:\t%s\n", formatPrice(p))
			fmt.Fprintf(w, "Rating:\t%.1f\n", p.Rating)
			fmt.Fprintf(w, "Stock:\t%s\n", stockLabel(p))
			if p.Description != nil {
				fmt.Fprintf(w, "Description:\t%s\n", *p.Description)
			}

			// views are only recorded for signed-in users
			if err := a.session.RestoreSession(ctx); err == nil && a.session.State().IsAuthenticated {
				a.tracker.TrackView(ctx, p.ID, map[string]any{"source": "cli"})

				if withStats {
					stats, err := a.interactions.ProductStats(ctx, p.ID, 0)
					if err != nil {
						return err
					}
					fmt.Fprintf(w, "Views:\t%d\n", stats.TotalViews)
					fmt.Fprintf(w, "Likes:\t%d\n", stats.TotalLikes)
					fmt.Fprintf(w, "Purchases:\t%d\n", stats.TotalPurchases)
				}
			}

			return w.Flush()
		},
	}
	cmd.Flags().Int64Var(&id, "id", 0, "product id")
	cmd.Flags().BoolVar(&withStats, "stats", false, "include interaction statistics")
	return cmd
}

func (a *app) categoriesCmd() *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "List categories, or the subcategories of one category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				names []string
				err   error
			)
			if category != "" {
				names, err = a.catalog.Subcategories(cmd.Context(), category)
			} else {
				names, err = a.catalog.Categories(cmd.Context())
			}
			if err != nil {
				return err
			}

			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "list the subcategories of this category")
	return cmd
}

func (a *app) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show catalog statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.catalog.Stats(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "Products:\t%d\n", s.TotalProducts)
			fmt.Fprintf(w, "Categories:\t%d\n", s.TotalCategories)
			fmt.Fprintf(w, "Featured:\t%d\n", s.FeaturedProducts)
			fmt.Fprintf(w, "On sale:\t%d\n", s.OnSaleProducts)
			fmt.Fprintf(w, "Out of stock:\t%d\n", s.OutOfStock)
			fmt.Fprintf(w, "Average price:\t$%s\n", s.AveragePrice.StringFixed(2))
			fmt.Fprintf(w, "Average rating:\t%.2f\n", s.AverageRating)
			return w.Flush()
		},
	}
}

func (a *app) historyCmd() *cobra.Command {
	var (
		page, perPage int
		kind          string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List your interactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			params := model.HistoryParams{Page: page, PerPage: perPage}
			if kind != "" {
				t, err := model.ParseInteractionType(kind)
				if err != nil {
					return err
				}
				params.Type = t
			}

			if err := a.requireAuth(cmd.Context()); err != nil {
				return err
			}
			h, err := a.interactions.History(cmd.Context(), params)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "WHEN\tTYPE\tPRODUCT")
			for _, in := range h.Interactions {
				fmt.Fprintf(w, "%s\t%s\t%d\n", in.Timestamp.Local().Format("2006-01-02 15:04"), in.Type, in.ProductID)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			fmt.Fprintf(out, "%d of %d\n", len(h.Interactions), h.TotalCount)
			if h.HasNext() {
				fmt.Fprintf(out, "Next page: --page %d\n", h.Page+1)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&perPage, "per-page", 20, "interactions per page")
	cmd.Flags().StringVar(&kind, "type", "", "only this interaction type")
	return cmd
}

func (a *app) analyticsCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Summarize your activity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireAuth(cmd.Context()); err != nil {
				return err
			}
			s, err := a.interactions.Analytics(cmd.Context(), days)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "Views:\t%d\n", s.TotalViews)
			fmt.Fprintf(w, "Likes:\t%d\n", s.TotalLikes)
			fmt.Fprintf(w, "Added to cart:\t%d\n", s.TotalCartAdditions)
			fmt.Fprintf(w, "Purchases:\t%d\n", s.TotalPurchases)
			fmt.Fprintf(w, "Ratings:\t%d\n", s.TotalRatings)
			if s.AverageRating != nil {
				fmt.Fprintf(w, "Average rating:\t%.2f\n", *s.AverageRating)
			}
			for _, c := range s.MostViewedCategories {
				fmt.Fprintf(w, "Viewed in %s:\t%d\n", c.Category, c.Count)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "days of history to include")
	return cmd
}

func (a *app) trackCmd() *cobra.Command {
	var (
		id       int64
		kind     string
		quantity int
		rating   float64
	)
	cmd := &cobra.Command{
		Use:   "track",
		Short: "Record an interaction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if id <= 0 {
				return &model.ValidationError{Field: "product", Message: "Product id is required"}
			}
			t, err := model.ParseInteractionType(kind)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if err := a.requireAuth(ctx); err != nil {
				return err
			}

			metadata := map[string]any{"source": "cli"}
			switch t {
			case model.InteractionView:
				a.tracker.TrackView(ctx, id, metadata)
			case model.InteractionLike:
				a.tracker.TrackLike(ctx, id, metadata)
			case model.InteractionAddToCart:
				a.tracker.TrackAddToCart(ctx, id, quantity, metadata)
			case model.InteractionPurchase:
				a.tracker.TrackPurchase(ctx, id, quantity, metadata)
			case model.InteractionRating:
				a.tracker.TrackRating(ctx, id, rating, metadata)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Tracked %s for product %d\n", t, id)
			return nil
		},
	}
	cmd.Flags().Int64Var(&id, "product", 0, "product id")
	cmd.Flags().StringVar(&kind, "type", string(model.InteractionView), "view, like, add_to_cart, purchase or rating")
	cmd.Flags().IntVar(&quantity, "quantity", 1, "quantity for add_to_cart and purchase")
	cmd.Flags().Float64Var(&rating, "rating", 0, "rating from 1 to 5")
	return cmd
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			logAppVersion(cmd.OutOrStdout())
		},
	}
}
