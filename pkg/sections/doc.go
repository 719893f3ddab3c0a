// Package sections implements the section container and its role-based
// access control.
//
// Access to a section resolves in three layers: platform-wide admins see
// everything, a direct membership row carries its stored role, and
// membership in any workspace under the section grants a synthesized
// viewer capped below admin. Membership mutations dispatch a best-effort
// permission invalidation after every successful write.
package sections
