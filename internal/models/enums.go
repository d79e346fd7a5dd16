package models

// Gender is the self-reported tag shown next to a confession or comment.
type Gender string

const (
	GenderMale      Gender = "male"
	GenderFemale    Gender = "female"
	GenderIncognito Gender = "incognito"
	// GenderAI marks comments written by the automated responder. Users
	// cannot pick it.
	GenderAI Gender = "ai"
)

// Valid reports whether g may be chosen by a user.
func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderIncognito:
		return true
	}
	return false
}

// Known reports whether g is any recognised gender tag, including GenderAI.
func (g Gender) Known() bool {
	return g.Valid() || g == GenderAI
}

// Category is one value of the closed set of confession topics.
type Category string

// CategoryAll is the filter sentinel matching every category. It is never
// stored on a confession.
const CategoryAll Category = "All"

const (
	CategoryLove       Category = "Love"
	CategoryEducation  Category = "Education"
	CategoryFamily     Category = "Family"
	CategoryFriendship Category = "Friendship"
	CategoryWork       Category = "Work"
	CategoryHealth     Category = "Health"
	CategorySecrets    Category = "Secrets"
	CategoryFunny      Category = "Funny"
	CategoryOther      Category = "Other"
)

// Categories lists every storable category in display order.
var Categories = []Category{
	CategoryLove,
	CategoryEducation,
	CategoryFamily,
	CategoryFriendship,
	CategoryWork,
	CategoryHealth,
	CategorySecrets,
	CategoryFunny,
	CategoryOther,
}

// Valid reports whether c can be stored on a confession.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ValidFilter reports whether c can be used as a feed filter.
func (c Category) ValidFilter() bool {
	return c == CategoryAll || c == "" || c.Valid()
}

// Matches reports whether a confession in category other belongs to a feed
// filtered by c.
func (c Category) Matches(other Category) bool {
	return c == CategoryAll || c == "" || c == other
}
