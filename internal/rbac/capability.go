package rbac

// Capability names one permitted action in the admin interface. The
// vocabulary is part of the wire contract with the front-end and with
// stored custom permission sets; it must not change shape silently.
type Capability string

const (
	CapViewListings   Capability = "view-listings"
	CapAddListing     Capability = "add-listing"
	CapEditListing    Capability = "edit-listing"
	CapDeleteListing  Capability = "delete-listing"
	CapAccessSettings Capability = "access-settings"
	CapManageUsers    Capability = "manage-users"
)

// Capabilities lists the full capability vocabulary.
func Capabilities() []Capability {
	return []Capability{
		CapViewListings,
		CapAddListing,
		CapEditListing,
		CapDeleteListing,
		CapAccessSettings,
		CapManageUsers,
	}
}

// Valid reports whether the capability belongs to the vocabulary.
func (c Capability) Valid() bool {
	switch c {
	case CapViewListings, CapAddListing, CapEditListing, CapDeleteListing, CapAccessSettings, CapManageUsers:
		return true
	}
	return false
}

// PermissionSet maps each capability to allow or deny for one identity.
// A missing key denies.
type PermissionSet map[Capability]bool

// Allows reports whether the set grants the capability.
func (p PermissionSet) Allows(c Capability) bool {
	if p == nil {
		return false
	}
	return p[c]
}

// Clone returns an independent copy of the set.
func (p PermissionSet) Clone() PermissionSet {
	if p == nil {
		return nil
	}
	out := make(PermissionSet, len(p))
	for c, v := range p {
		out[c] = v
	}
	return out
}

// defaultPermissions is the role default table. It is never mutated at
// runtime; Defaults hands out copies.
var defaultPermissions = map[Role]PermissionSet{
	RoleAdministrator: {
		CapViewListings:   true,
		CapAddListing:     true,
		CapEditListing:    true,
		CapDeleteListing:  true,
		CapAccessSettings: true,
		CapManageUsers:    true,
	},
	RoleEditor: {
		CapViewListings:   true,
		CapAddListing:     true,
		CapEditListing:    true,
		CapDeleteListing:  false,
		CapAccessSettings: false,
		CapManageUsers:    false,
	},
	RoleCollaborator: {
		CapViewListings:   true,
		CapAddListing:     true,
		CapEditListing:    false,
		CapDeleteListing:  false,
		CapAccessSettings: false,
		CapManageUsers:    false,
	},
	RoleViewer: {
		CapViewListings:   true,
		CapAddListing:     false,
		CapEditListing:    false,
		CapDeleteListing:  false,
		CapAccessSettings: false,
		CapManageUsers:    false,
	},
}

// Defaults returns the default permission set for a role. Total over the
// closed role enum; an unknown role gets an all-deny set.
func Defaults(role Role) PermissionSet {
	defaults, ok := defaultPermissions[role]
	if !ok {
		out := make(PermissionSet, len(defaultPermissions[RoleViewer]))
		for _, c := range Capabilities() {
			out[c] = false
		}
		return out
	}
	return defaults.Clone()
}
