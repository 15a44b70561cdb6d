package messaging

import "fmt"

// IdentityKind tells which side of the product an identity belongs to.
type IdentityKind string

const (
	IdentityUser   IdentityKind = "user"
	IdentityDriver IdentityKind = "driver"
)

// Identity is the resolved domain identity of a session: a company user (staff)
// or a driver. Exactly one of the two, never both.
type Identity struct {
	Kind      IdentityKind
	ID        string
	CompanyID string
	Name      string
}

func UserIdentity(id, companyID string) Identity {
	return Identity{Kind: IdentityUser, ID: id, CompanyID: companyID}
}

func DriverIdentity(id, companyID string) Identity {
	return Identity{Kind: IdentityDriver, ID: id, CompanyID: companyID}
}

func (i Identity) IsDriver() bool { return i.Kind == IdentityDriver }
func (i Identity) IsUser() bool   { return i.Kind == IdentityUser }

// Valid reports whether the identity carries a known kind and an id.
func (i Identity) Valid() bool {
	return (i.Kind == IdentityUser || i.Kind == IdentityDriver) && i.ID != ""
}

// Key is a stable string used to index sessions and cache entries.
func (i Identity) Key() string {
	return fmt.Sprintf("%s:%s", i.Kind, i.ID)
}

// Sender returns the message sender variant for this identity.
func (i Identity) Sender() Sender {
	if i.IsDriver() {
		return DriverSender(i.ID)
	}
	return UserSender(i.ID)
}

// SenderKind discriminates the Sender variant.
type SenderKind string

const (
	SenderUser   SenderKind = "user"
	SenderDriver SenderKind = "driver"
	SenderSystem SenderKind = "system"
)

// Sender identifies who authored a message: a user, a driver, or the system.
// Constructed only through UserSender, DriverSender and SystemSender so the
// "both set" and "user/driver without id" states cannot be expressed.
type Sender struct {
	kind SenderKind
	id   string
}

func UserSender(id string) Sender   { return Sender{kind: SenderUser, id: id} }
func DriverSender(id string) Sender { return Sender{kind: SenderDriver, id: id} }
func SystemSender() Sender          { return Sender{kind: SenderSystem} }

// SenderFromColumns maps the two nullable storage columns onto the variant.
// Both set is rejected; both empty is a system message.
func SenderFromColumns(userID, driverID *string) (Sender, error) {
	hasUser := userID != nil && *userID != ""
	hasDriver := driverID != nil && *driverID != ""
	switch {
	case hasUser && hasDriver:
		return Sender{}, ErrInvalidSender
	case hasUser:
		return UserSender(*userID), nil
	case hasDriver:
		return DriverSender(*driverID), nil
	default:
		return SystemSender(), nil
	}
}

func (s Sender) Kind() SenderKind {
	if s.kind == "" {
		return SenderSystem
	}
	return s.kind
}

func (s Sender) ID() string { return s.id }

// Columns returns the (sender_user_id, sender_driver_id) pair for persistence.
func (s Sender) Columns() (userID, driverID *string) {
	switch s.Kind() {
	case SenderUser:
		id := s.id
		return &id, nil
	case SenderDriver:
		id := s.id
		return nil, &id
	default:
		return nil, nil
	}
}

// Is reports whether the identity authored messages as this sender.
func (s Sender) Is(id Identity) bool {
	switch s.Kind() {
	case SenderUser:
		return id.IsUser() && id.ID == s.id
	case SenderDriver:
		return id.IsDriver() && id.ID == s.id
	}
	return false
}
