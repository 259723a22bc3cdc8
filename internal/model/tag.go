package model

import (
	"strconv"
)

// Cache tag types.
const (
	TagProduct              = "Product"
	TagProductStats         = "ProductStats"
	TagCategories           = "Categories"
	TagInteraction          = "Interaction"
	TagInteractionHistory   = "InteractionHistory"
	TagInteractionAnalytics = "InteractionAnalytics"
	TagInteractionStats     = "InteractionStats"
)

// Tag labels cached data so mutations can invalidate it. A tag without an ID
// stands for the whole type.
type Tag struct {
	Type string
	ID   string
}

// TypeTag returns a tag covering every entity of the type.
func TypeTag(t string) Tag {
	return Tag{Type: t}
}

// IDTag returns a tag for a single entity.
func IDTag(t string, id int64) Tag {
	return Tag{Type: t, ID: strconv.FormatInt(id, 10)}
}

func (t Tag) String() string {
	if t.ID == "" {
		return t.Type
	}
	return t.Type + ":" + t.ID
}

// Matches reports whether invalidating t affects data provided under other.
// A type tag matches every tag of its type; an id tag only matches itself.
func (t Tag) Matches(other Tag) bool {
	if t.Type != other.Type {
		return false
	}
	return t.ID == "" || t.ID == other.ID
}
