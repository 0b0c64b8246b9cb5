package domain

// Identity is the authenticated caller. It is passed explicitly into every
// service operation that depends on who is asking.
type Identity struct {
	UserID int
	Role   string
}

func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

// CanAccess reports whether the caller may act on a resource owned by ownerID.
func (i Identity) CanAccess(ownerID int) bool {
	return i.IsAdmin() || i.UserID == ownerID
}
