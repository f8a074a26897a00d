package models

// Role is the closed set of actor roles. Authorization enforcement lives in
// the presentation layer; the table below is the capability reference it
// consults.
type Role string

const (
	RoleAdmin           Role = "admin"
	RoleVolunteer       Role = "volunteer"
	RoleReporter        Role = "reporter"
	RoleAnalyst         Role = "analyst"
	RoleOrganizationRep Role = "organization_rep"
)

type Capability string

const (
	CapSubmitReports       Capability = "submit_reports"
	CapValidateReports     Capability = "validate_reports"
	CapAllocateResources   Capability = "allocate_resources"
	CapManageCenters       Capability = "manage_centers"
	CapDispatchVolunteers  Capability = "dispatch_volunteers"
	CapTransitionDisasters Capability = "transition_disasters"
	CapViewAnalytics       Capability = "view_analytics"
)

var roleCapabilities = map[Role][]Capability{
	RoleAdmin: {
		CapSubmitReports, CapValidateReports, CapAllocateResources,
		CapManageCenters, CapDispatchVolunteers, CapTransitionDisasters,
		CapViewAnalytics,
	},
	RoleVolunteer:       {CapSubmitReports},
	RoleReporter:        {CapSubmitReports},
	RoleAnalyst:         {CapViewAnalytics},
	RoleOrganizationRep: {CapSubmitReports, CapAllocateResources, CapManageCenters},
}

// RoleCapabilities returns a copy of the capability table.
func RoleCapabilities() map[Role][]Capability {
	out := make(map[Role][]Capability, len(roleCapabilities))
	for r, caps := range roleCapabilities {
		out[r] = append([]Capability(nil), caps...)
	}
	return out
}

func (r Role) Can(c Capability) bool {
	for _, have := range roleCapabilities[r] {
		if have == c {
			return true
		}
	}
	return false
}
