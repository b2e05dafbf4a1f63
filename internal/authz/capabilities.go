package authz

// CapabilitySet is the set of named permissions a role holds. It is derived
// from the role alone, fixed at build time, and never stored.
//
// ManageableRoles restricts who the holder may assign roles to: an empty
// slice means the holder cannot manage roles at all, a non-empty slice means
// exactly those roles. AllStores marks cross-store reach (platform operator
// only).
type CapabilitySet struct {
	ManageSubscriptions bool
	ManageAllAccounts   bool
	AccessBilling       bool
	ManageUsers         bool
	ManageSettings      bool
	ManageShop          bool
	ManageInventory     bool
	ManageRepairs       bool
	CreateRepairs       bool
	ManageClients       bool
	ViewClients         bool
	ViewInventory       bool
	AccessMetrics       bool
	AllStores           bool

	// ManageableRoles is the exhaustive list of roles the holder may assign.
	ManageableRoles []Role

	// RepairStatuses restricts which repair statuses the holder may set.
	// nil means unrestricted (subject to ManageRepairs / CreateRepairs).
	RepairStatuses []string
}

var capabilityTable = map[Role]CapabilitySet{
	RoleSuperAdmin: {
		ManageSubscriptions: true,
		ManageAllAccounts:   true,
		AccessBilling:       true,
		ManageUsers:         true,
		ManageSettings:      true,
		ManageShop:          true,
		ManageInventory:     true,
		ManageRepairs:       true,
		CreateRepairs:       true,
		ManageClients:       true,
		ViewClients:         true,
		ViewInventory:       true,
		AccessMetrics:       true,
		AllStores:           true,
		ManageableRoles:     []Role{RoleSuperAdmin, RoleOwner, RoleAdmin, RoleManager, RoleTechnician, RoleReception},
	},
	RoleOwner: {
		ManageSubscriptions: true,
		AccessBilling:       true,
		ManageUsers:         true,
		ManageSettings:      true,
		ManageShop:          true,
		ManageInventory:     true,
		ManageRepairs:       true,
		CreateRepairs:       true,
		ManageClients:       true,
		ViewClients:         true,
		ViewInventory:       true,
		AccessMetrics:       true,
		ManageableRoles:     []Role{RoleAdmin, RoleManager, RoleTechnician, RoleReception},
	},
	RoleAdmin: {
		ManageSubscriptions: true,
		AccessBilling:       true,
		ManageUsers:         true,
		ManageSettings:      true,
		ManageShop:          true,
		ManageInventory:     true,
		ManageRepairs:       true,
		CreateRepairs:       true,
		ManageClients:       true,
		ViewClients:         true,
		ViewInventory:       true,
		AccessMetrics:       true,
		ManageableRoles:     []Role{RoleManager, RoleTechnician, RoleReception},
	},
	RoleManager: {
		ManageShop:      true,
		ManageInventory: true,
		ManageRepairs:   true,
		CreateRepairs:   true,
		ManageClients:   true,
		ViewClients:     true,
		ViewInventory:   true,
		AccessMetrics:   true,
		ManageableRoles: []Role{RoleTechnician, RoleReception},
	},
	RoleTechnician: {
		ManageRepairs: true,
		ViewClients:   true,
		ViewInventory: true,
	},
	RoleReception: {
		CreateRepairs:  true,
		ManageClients:  true,
		ViewClients:    true,
		ViewInventory:  true,
		RepairStatuses: []string{"created", "waiting_parts"},
	},
}

// CapabilitiesFor returns the capability set for a role. It is total over
// the Role enum; an unknown role gets the empty set (no capabilities),
// never a panic.
func CapabilitiesFor(role Role) CapabilitySet {
	caps, ok := capabilityTable[role]
	if !ok {
		return CapabilitySet{}
	}
	return caps
}

// CanAssignRole reports whether a holder of managerRole may assign
// targetRole to another user. Nobody assigns upward or sideways: the target
// must appear in the manager's ManageableRoles list.
func CanAssignRole(managerRole, targetRole Role) bool {
	for _, r := range CapabilitiesFor(managerRole).ManageableRoles {
		if r == targetRole {
			return true
		}
	}
	return false
}

// CanSetRepairStatus reports whether a holder of role may move a repair
// into the given status.
func CanSetRepairStatus(role Role, status string) bool {
	caps := CapabilitiesFor(role)
	if !caps.ManageRepairs && !caps.CreateRepairs {
		return false
	}
	if caps.RepairStatuses == nil {
		return true
	}
	for _, s := range caps.RepairStatuses {
		if s == status {
			return true
		}
	}
	return false
}
