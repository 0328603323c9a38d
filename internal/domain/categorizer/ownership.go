package categorizer

// Ownership says who a category belongs to: the shared system taxonomy or
// a single user. Modeled as a tagged variant so callers have to handle
// both cases instead of testing a nullable foreign key.
type Ownership struct {
	userID string
	owned  bool
}

// Shared returns the system-wide ownership.
func Shared() Ownership {
	return Ownership{}
}

// OwnedBy returns ownership scoped to one user.
func OwnedBy(userID string) Ownership {
	return Ownership{userID: userID, owned: true}
}

// Owner returns the owning user id and whether the category is user-owned.
func (o Ownership) Owner() (string, bool) {
	return o.userID, o.owned
}

// IsShared reports whether the category belongs to the shared taxonomy.
func (o Ownership) IsShared() bool {
	return !o.owned
}

// ownerColumn maps the variant to the nullable storage column.
func (o Ownership) ownerColumn() *string {
	if !o.owned {
		return nil
	}
	id := o.userID
	return &id
}
