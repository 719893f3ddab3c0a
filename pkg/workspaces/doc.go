// Package workspaces provides read access to workspaces and their
// memberships. Sections consult this data for two things: whether a
// section still contains workspaces (blocking removal) and whether a user
// belongs to any workspace in a section (inherited viewer access).
package workspaces
