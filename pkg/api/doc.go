/*
Package api implements the spec §6 HTTP surface: a gorilla/mux REST router
under /v1/hardware (list, export, get, enroll, patch, destroy, sync,
availability), a bearer-token AuthMiddleware that resolves requests into
an AuthContext(user_id, project_id, roles), and an admin-or-owner policy
check mirrored from doni's common/policies/hardware.py.

Server wraps the router in an http.Server with graceful shutdown.
HealthServer exposes a separate /health, /ready, /metrics surface bound to
the Store and loaded drivers rather than the REST API's own readiness.
*/
package api
