package knowledge

// Collection names. Each is an independently searched partition of the
// knowledge base.
const (
	// DefaultCollection holds the codified acts and is searched when no
	// profile (or an unknown one) is selected.
	DefaultCollection = "nepali_law_ai"

	CollectionPrecedents   = "nepali_law_precedents"
	CollectionConstitution = "nepali_law_constitution"
	CollectionOrdinances   = "nepali_law_ordinances"
	CollectionOrders       = "nepali_law_orders"
	CollectionRegulations  = "nepali_law_regulations"
)

// Profile is a user-facing mode selection that determines which
// collection is searched.
type Profile struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
	Collection  string `json:"-"`
}

// profiles is the static profile catalog. Every profile routable by a
// caller resolves to exactly one collection.
var profiles = []Profile{
	{
		Name:        "General",
		DisplayName: "General",
		Description: "Questions about Nepali acts and codified law.",
		Collection:  DefaultCollection,
	},
	{
		Name:        "Lawyer",
		DisplayName: "Lawyer",
		Description: "Court precedents and case law for legal professionals.",
		Collection:  CollectionPrecedents,
	},
	{
		Name:        "Constitution",
		DisplayName: "Constitution",
		Description: "The Constitution of Nepal.",
		Collection:  CollectionConstitution,
	},
	{
		Name:        "Ordinances",
		DisplayName: "Ordinances",
		Description: "Ordinances currently in force.",
		Collection:  CollectionOrdinances,
	},
	{
		Name:        "Orders",
		DisplayName: "Orders",
		Description: "Government and court orders.",
		Collection:  CollectionOrders,
	},
	{
		Name:        "Regulations",
		DisplayName: "Regulations",
		Description: "Regulations made under Nepali acts.",
		Collection:  CollectionRegulations,
	},
}

// Router maps profile selectors to knowledge-base collections.
// Pure lookup, no I/O; the zero value is not useful, use NewRouter.
type Router struct {
	byName map[string]string
}

// NewRouter builds a Router over the static profile catalog.
func NewRouter() *Router {
	byName := make(map[string]string, len(profiles))
	for _, p := range profiles {
		byName[p.Name] = p.Collection
	}
	return &Router{byName: byName}
}

// Resolve returns the collection for a profile selector.
//
// Total function: an exact profile match returns its collection; an
// empty or unrecognized profile falls through to DefaultCollection.
// Never fails.
func (r *Router) Resolve(profile string) string {
	if collection, ok := r.byName[profile]; ok {
		return collection
	}
	return DefaultCollection
}

// Profiles returns the profile catalog exposed to callers at session
// start.
func (r *Router) Profiles() []Profile {
	out := make([]Profile, len(profiles))
	copy(out, profiles)
	return out
}
