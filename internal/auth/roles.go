package auth

// Role is the single global role an actor holds for the duration of a
// session. Roles are assigned by the membership system; this package only
// resolves what a role may do.
type Role string

const (
	RoleAdmin           Role = "admin"
	RolePresident       Role = "president"
	RolePastPresident   Role = "past-president"
	RoleVPActivities    Role = "vp-activities"
	RoleEventChair      Role = "event-chair"
	RoleWebmaster       Role = "webmaster"
	RoleSecretary       Role = "secretary"
	RoleParliamentarian Role = "parliamentarian"
	RoleMember          Role = "member"
)

// AllRoles lists every recognised role. Tests enumerate this to prove the
// capability table is total.
var AllRoles = []Role{
	RoleAdmin,
	RolePresident,
	RolePastPresident,
	RoleVPActivities,
	RoleEventChair,
	RoleWebmaster,
	RoleSecretary,
	RoleParliamentarian,
	RoleMember,
}

// Capability names a permitted action class. Capabilities are additive and
// fixed per role at compile time; nothing is stored per user.
type Capability string

const (
	CapEventsView       Capability = "events:view"
	CapEventsEdit       Capability = "events:edit"
	CapEventsApprove    Capability = "events:approve"
	CapEventsPublish    Capability = "events:publish"
	CapCommsSend        Capability = "comms:send"
	CapUsersView        Capability = "users:view"
	CapUsersManage      Capability = "users:manage"
	CapRolesAssign      Capability = "roles:assign"
	CapMinutesEdit      Capability = "governance:minutes:edit"
	CapMinutesApprove   Capability = "governance:minutes:approve"
	CapMinutesPublish   Capability = "governance:minutes:publish"
	CapAnnotationsWrite Capability = "governance:annotations:write"
	CapPlanEdit         Capability = "transition:plan:edit"
	CapPlanApprove      Capability = "transition:plan:approve"
	CapPlanApply        Capability = "transition:plan:apply"
	CapCasesOpen        Capability = "support:cases:open"
	CapCasesWork        Capability = "support:cases:work"
	CapCasesClose       Capability = "support:cases:close"
	CapAuditView        Capability = "audit:view"
	CapAdminFull        Capability = "admin:full"
)

// AllCapabilities lists every declared capability.
var AllCapabilities = []Capability{
	CapEventsView,
	CapEventsEdit,
	CapEventsApprove,
	CapEventsPublish,
	CapCommsSend,
	CapUsersView,
	CapUsersManage,
	CapRolesAssign,
	CapMinutesEdit,
	CapMinutesApprove,
	CapMinutesPublish,
	CapAnnotationsWrite,
	CapPlanEdit,
	CapPlanApprove,
	CapPlanApply,
	CapCasesOpen,
	CapCasesWork,
	CapCasesClose,
	CapAuditView,
	CapAdminFull,
}

// roleCapabilities is the single source of truth for role → capability
// associations. No other code may compare role names to gate an action;
// add a capability here instead.
var roleCapabilities = map[Role][]Capability{
	RoleAdmin: AllCapabilities,
	RolePresident: {
		CapEventsView, CapEventsApprove, CapCommsSend,
		CapUsersView, CapRolesAssign,
		CapMinutesApprove,
		CapPlanEdit, CapPlanApprove, CapPlanApply,
		CapCasesOpen, CapAuditView,
	},
	RolePastPresident: {
		CapEventsView, CapUsersView, CapPlanEdit, CapCasesOpen,
	},
	RoleVPActivities: {
		CapEventsView, CapEventsEdit, CapEventsApprove, CapEventsPublish,
		CapCommsSend, CapUsersView, CapRolesAssign,
		CapPlanEdit, CapCasesOpen,
	},
	RoleEventChair: {
		CapEventsView, CapEventsEdit, CapCasesOpen,
	},
	RoleWebmaster: {
		CapEventsView, CapEventsPublish, CapCommsSend,
		CapMinutesPublish, CapUsersView,
		CapCasesOpen, CapCasesWork, CapCasesClose,
	},
	RoleSecretary: {
		CapEventsView, CapUsersView,
		CapMinutesEdit, CapMinutesPublish,
		CapCasesOpen, CapCasesWork,
	},
	RoleParliamentarian: {
		CapEventsView, CapUsersView,
		CapAnnotationsWrite, CapCasesOpen,
	},
	RoleMember: {
		CapEventsView, CapCasesOpen,
	},
}

var capabilitySets = buildCapabilitySets()

func buildCapabilitySets() map[Role]map[Capability]struct{} {
	sets := make(map[Role]map[Capability]struct{}, len(roleCapabilities))
	for role, caps := range roleCapabilities {
		set := make(map[Capability]struct{}, len(caps))
		for _, c := range caps {
			set[c] = struct{}{}
		}
		sets[role] = set
	}
	return sets
}

// CapabilitiesFor returns the declared capability set for role. Unknown
// roles hold nothing.
func CapabilitiesFor(role Role) []Capability {
	caps, ok := roleCapabilities[role]
	if !ok {
		return nil
	}
	out := make([]Capability, len(caps))
	copy(out, caps)
	return out
}

// HasCapability reports whether role holds the capability per the table.
// Pure lookup, no fallthrough.
func HasCapability(role Role, c Capability) bool {
	set, ok := capabilitySets[role]
	if !ok {
		return false
	}
	_, ok = set[c]
	return ok
}

// readCapabilities are the capabilities exempt from the impersonation
// write-block. Everything not listed here is treated as a write.
var readCapabilities = map[Capability]struct{}{
	CapEventsView: {},
	CapUsersView:  {},
	CapAuditView:  {},
}

// IsWriteCapability reports whether c mutates state. Unknown capabilities
// count as writes so the impersonation block fails closed.
func IsWriteCapability(c Capability) bool {
	_, read := readCapabilities[c]
	return !read
}
