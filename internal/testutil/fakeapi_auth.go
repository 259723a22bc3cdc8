package testutil

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dtroode/catalog-client/internal/model"
)

func contextWithUser(r *http.Request, u *fakeUser) context.Context {
	return context.WithValue(r.Context(), userKey{}, u)
}

func userFrom(r *http.Request) *fakeUser {
	u, _ := r.Context().Value(userKey{}).(*fakeUser)
	return u
}

func (f *FakeAPI) login(w http.ResponseWriter, r *http.Request) {
	var creds model.Credentials
	if !decode(w, r, &creds) {
		return
	}

	f.mu.Lock()
	u, ok := f.users[creds.Email]
	f.mu.Unlock()
	if !ok || u.password != creds.Password {
		writeDetail(w, http.StatusUnauthorized, "Incorrect email or password")
		return
	}
	if !u.user.IsActive {
		writeDetail(w, http.StatusBadRequest, "Inactive user")
		return
	}

	writeJSON(w, http.StatusOK, model.AuthToken{AccessToken: f.TokenFor(u.user.Username), TokenType: "bearer"})
}

func (f *FakeAPI) register(w http.ResponseWriter, r *http.Request) {
	var reg model.Registration
	if !decode(w, r, &reg) {
		return
	}
	if len(reg.Password) < model.MinPasswordLength {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": []map[string]any{{
				"loc":  []string{"body", "password"},
				"msg":  "String should have at least 8 characters",
				"type": "string_too_short",
			}},
		})
		return
	}

	f.mu.Lock()
	_, taken := f.users[reg.Email]
	f.mu.Unlock()
	if taken {
		writeDetail(w, http.StatusBadRequest, "Email already registered")
		return
	}

	u := f.AddUser(reg.Email, reg.Username, reg.Password)
	u.FullName = reg.FullName
	u.Phone = reg.Phone
	u.Address = reg.Address

	f.mu.Lock()
	f.users[reg.Email].user = u
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, u)
}

func (f *FakeAPI) me(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	u := userFrom(r).user
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, u)
}

func (f *FakeAPI) updateMe(w http.ResponseWriter, r *http.Request) {
	var upd model.ProfileUpdate
	if !decode(w, r, &upd) {
		return
	}

	f.mu.Lock()
	fu := userFrom(r)
	if upd.FullName != nil {
		fu.user.FullName = upd.FullName
	}
	if upd.Phone != nil {
		fu.user.Phone = upd.Phone
	}
	if upd.Address != nil {
		fu.user.Address = upd.Address
	}
	if upd.Username != nil {
		fu.user.Username = *upd.Username
	}
	now := model.Timestamp{Time: time.Now().UTC()}
	fu.user.UpdatedAt = &now
	out := fu.user
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (f *FakeAPI) changePassword(w http.ResponseWriter, r *http.Request) {
	var change model.PasswordChange
	if !decode(w, r, &change) {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	fu := userFrom(r)
	if fu.password != change.CurrentPassword {
		writeDetail(w, http.StatusBadRequest, "Incorrect password")
		return
	}
	fu.password = change.NewPassword
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password updated successfully"})
}

func (f *FakeAPI) createInteraction(w http.ResponseWriter, r *http.Request) {
	var in model.InteractionCreate
	if !decode(w, r, &in) {
		return
	}
	if _, err := model.ParseInteractionType(string(in.Type)); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	f.mu.Lock()
	if f.findProduct(in.ProductID) < 0 {
		f.mu.Unlock()
		writeDetail(w, http.StatusNotFound, "Product not found")
		return
	}
	rec := model.Interaction{
		ID:        f.id(),
		UserID:    userFrom(r).user.ID,
		ProductID: in.ProductID,
		Type:      in.Type,
		Rating:    in.Rating,
		Quantity:  in.Quantity,
		SessionID: in.SessionID,
		Metadata:  in.Metadata,
		Timestamp: model.Timestamp{Time: time.Now().UTC()},
	}
	f.interactions = append(f.interactions, rec)
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, rec)
}

func (f *FakeAPI) userInteractions(r *http.Request) []model.Interaction {
	userID := userFrom(r).user.ID

	f.mu.Lock()
	defer f.mu.Unlock()

	// newest first
	out := []model.Interaction{}
	for i := len(f.interactions) - 1; i >= 0; i-- {
		if f.interactions[i].UserID == userID {
			out = append(out, f.interactions[i])
		}
	}
	return out
}

func (f *FakeAPI) history(w http.ResponseWriter, r *http.Request) {
	pageNum := max(queryInt(r, "page", 1), 1)
	perPage := queryInt(r, "per_page", 20)
	kind := model.InteractionType(r.URL.Query().Get("interaction_type"))

	all := f.userInteractions(r)
	if kind != "" {
		kept := all[:0]
		for _, in := range all {
			if in.Type == kind {
				kept = append(kept, in)
			}
		}
		all = kept
	}

	writeJSON(w, http.StatusOK, model.InteractionHistory{
		Interactions: page(all, (pageNum-1)*perPage, perPage),
		TotalCount:   len(all),
		Page:         pageNum,
		PerPage:      perPage,
	})
}

func (f *FakeAPI) analytics(w http.ResponseWriter, r *http.Request) {
	var out model.Analytics
	var ratingSum float64
	for _, in := range f.userInteractions(r) {
		switch in.Type {
		case model.InteractionView:
			out.TotalViews++
		case model.InteractionLike:
			out.TotalLikes++
		case model.InteractionAddToCart:
			out.TotalCartAdditions++
		case model.InteractionPurchase:
			out.TotalPurchases++
		case model.InteractionRating:
			out.TotalRatings++
			if in.Rating != nil {
				ratingSum += *in.Rating
			}
		}
		if len(out.RecentActivity) < 10 {
			out.RecentActivity = append(out.RecentActivity, in)
		}
	}
	if out.TotalRatings > 0 {
		avg := ratingSum / float64(out.TotalRatings)
		out.AverageRating = &avg
	}

	writeJSON(w, http.StatusOK, out)
}

func (f *FakeAPI) productStats(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.findProduct(id) < 0 {
		writeDetail(w, http.StatusNotFound, "Product not found")
		return
	}

	out := model.InteractionStats{ProductID: id}
	for _, in := range f.interactions {
		if in.ProductID != id {
			continue
		}
		switch in.Type {
		case model.InteractionView:
			out.TotalViews++
		case model.InteractionLike:
			out.TotalLikes++
		case model.InteractionAddToCart:
			out.TotalCartAdditions++
		case model.InteractionPurchase:
			out.TotalPurchases++
		case model.InteractionRating:
			out.TotalRatings++
		}
	}
	if out.TotalViews > 0 {
		ratio := float64(out.TotalCartAdditions) / float64(out.TotalViews)
		out.ViewToCartRatio = &ratio
	}

	writeJSON(w, http.StatusOK, out)
}

func (f *FakeAPI) bulk(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ids := map[string]bool{}
	for _, id := range strings.Split(q.Get("product_ids"), ",") {
		if id != "" {
			ids[id] = true
		}
	}
	types := map[string]bool{}
	for _, t := range strings.Split(q.Get("interaction_types"), ",") {
		if t != "" {
			types[t] = true
		}
	}

	f.mu.Lock()
	out := []model.Interaction{}
	for _, in := range f.interactions {
		if len(ids) > 0 && !ids[formatID(in.ProductID)] {
			continue
		}
		if len(types) > 0 && !types[string(in.Type)] {
			continue
		}
		out = append(out, in)
	}
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, page(out, 0, queryInt(r, "limit", 100)))
}

func (f *FakeAPI) deleteInteraction(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r)
	userID := userFrom(r).user.ID

	f.mu.Lock()
	defer f.mu.Unlock()

	for i, in := range f.interactions {
		if in.ID == id && in.UserID == userID {
			f.interactions = append(f.interactions[:i], f.interactions[i+1:]...)
			writeJSON(w, http.StatusOK, map[string]string{"message": "Interaction deleted successfully"})
			return
		}
	}
	writeDetail(w, http.StatusNotFound, "Interaction not found")
}
