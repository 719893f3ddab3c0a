package sections

import (
	"context"
)

// ResolveAccess computes a user's effective role on a section.
//
// Resolution order, first match wins:
//  1. Platform-wide admins get admin without any store lookup; a global
//     admin is never blocked by a missing membership row.
//  2. A direct membership row determines access. When required is set and
//     the member's rank falls short, the result is no access.
//  3. Membership in any workspace under the section yields a synthesized
//     viewer. Inherited access is capped: it can never satisfy a required
//     admin, whatever the user's role inside that workspace.
//
// No access — including a section that does not exist — is (nil, nil).
// An error is only returned when the store itself fails.
func (s *PostgresService) ResolveAccess(ctx context.Context, sectionID, userID int64, globalRole GlobalRole, required *SectionRole) (*EffectiveAccess, error) {
	if globalRole.IsAdmin() {
		return &EffectiveAccess{Role: RoleAdmin, Source: SourceGlobal}, nil
	}

	member, err := s.GetMember(ctx, sectionID, userID)
	if err != nil {
		return nil, err
	}
	if member != nil {
		if required != nil && !Satisfies(member.Role, *required) {
			return nil, nil
		}
		return &EffectiveAccess{Role: member.Role, Source: SourceDirect}, nil
	}

	exists, err := s.sectionExists(ctx, sectionID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}

	inherited, err := s.workspaces.HasMemberInSection(ctx, sectionID, userID)
	if err != nil {
		return nil, err
	}
	if inherited {
		if required != nil && !Satisfies(RoleViewer, *required) {
			return nil, nil
		}
		return &EffectiveAccess{Role: RoleViewer, Source: SourceInherited}, nil
	}

	return nil, nil
}

func (s *PostgresService) sectionExists(ctx context.Context, id int64) (bool, error) {
	_, err := s.GetSection(ctx, id)
	if IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
