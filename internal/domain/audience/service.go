package audience

import (
	"context"
	"log/slog"

	"pushdesk/internal/common"
)

// SegmentSource provides access to the upstream CRM's segments.
// Implementations live in infra/crm/.
type SegmentSource interface {
	// FetchSegments retrieves all segments.
	FetchSegments(ctx context.Context) ([]Segment, error)

	// FetchSegmentMembers retrieves the users belonging to a segment.
	FetchSegmentMembers(ctx context.Context, segmentID string) ([]User, error)

	// SyncSegments triggers an upstream segment recomputation. The result is
	// never read synchronously.
	SyncSegments(ctx context.Context) error
}

// Service exposes the directory, groups, and segments to the console.
type Service struct {
	directory DirectorySource
	segments  SegmentSource
}

// NewService creates a new audience service.
func NewService(directory DirectorySource, segments SegmentSource) *Service {
	return &Service{directory: directory, segments: segments}
}

// ListDevices retrieves the full device directory.
func (s *Service) ListDevices(ctx context.Context) ([]User, error) {
	users, err := s.directory.FetchDirectory(ctx)
	if err != nil {
		return nil, common.NewUpstreamError("fetch devices", err)
	}
	return users, nil
}

// ListGroups retrieves all selectable user groups. The synthetic "All Users"
// group is filtered out: everyone-targeting is the AllUsers selector, not a
// group.
func (s *Service) ListGroups(ctx context.Context) ([]UserGroup, error) {
	groups, err := s.directory.FetchGroups(ctx)
	if err != nil {
		return nil, common.NewUpstreamError("fetch groups", err)
	}

	selectable := make([]UserGroup, 0, len(groups))
	for _, g := range groups {
		if g.Name == AllUsersGroupName {
			continue
		}
		selectable = append(selectable, g)
	}
	return selectable, nil
}

// ListSegments retrieves all segments from the upstream CRM.
func (s *Service) ListSegments(ctx context.Context) ([]Segment, error) {
	segments, err := s.segments.FetchSegments(ctx)
	if err != nil {
		return nil, common.NewUpstreamError("fetch segments", err)
	}
	return segments, nil
}

// SegmentMembers retrieves a segment's membership, fetched on demand.
func (s *Service) SegmentMembers(ctx context.Context, segmentID string) ([]User, error) {
	members, err := s.segments.FetchSegmentMembers(ctx, segmentID)
	if err != nil {
		return nil, common.NewUpstreamError("fetch segment members", err)
	}
	return members, nil
}

// SyncSegments asks the CRM to recompute segment membership.
func (s *Service) SyncSegments(ctx context.Context) error {
	if err := s.segments.SyncSegments(ctx); err != nil {
		return common.NewUpstreamError("sync segments", err)
	}
	slog.Info("segment sync triggered")
	return nil
}
