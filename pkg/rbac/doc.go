// Package rbac holds the role catalog backing section membership.
//
// Legacy section roles ("viewer", "admin") are mapped onto catalog slugs
// so that permission checks can eventually move to catalog-driven
// permission sets. Missing catalog entries are tolerated: a legacy role
// with no matching catalog row simply carries no catalog id.
package rbac
