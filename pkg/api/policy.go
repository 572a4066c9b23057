package api

import "github.com/cuemby/hardwared/pkg/errs"

// requireAdmin enforces a ROLE_ADMIN rule (spec §9 Open Question: enroll
// is server-assigned and admin-only), mirroring doni's
// policies/hardware.py "hardware:create" check_str.
func requireAdmin(auth AuthContext, action string) error {
	if !auth.IsAdmin() {
		return errs.PolicyNotAuthorized(action)
	}
	return nil
}

// requireAdminOrOwner enforces doni's RULE_ADMIN_OR_OWNER
// ("is_admin:True or project_id:%(project_id)s") used by hardware:get,
// hardware:update, and hardware:delete.
func requireAdminOrOwner(auth AuthContext, ownerProjectID, action string) error {
	if auth.IsAdmin() || auth.ProjectID == ownerProjectID {
		return nil
	}
	return errs.PolicyNotAuthorized(action)
}
