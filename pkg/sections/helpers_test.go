package sections

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/canopyhq/canopy/pkg/observability"
	"github.com/canopyhq/canopy/pkg/rbac"
	"github.com/canopyhq/canopy/pkg/workspaces"
)

// recordingDispatcher counts invalidation dispatches so tests can assert
// exactly-once behavior despite the fire-and-forget goroutine.
type recordingDispatcher struct {
	mu       sync.Mutex
	calls    []int64
	notified chan int64
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{notified: make(chan int64, 16)}
}

func (d *recordingDispatcher) NotifyPermissionsChanged(ctx context.Context, userID int64) error {
	d.mu.Lock()
	d.calls = append(d.calls, userID)
	d.mu.Unlock()
	d.notified <- userID
	return nil
}

func (d *recordingDispatcher) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

func waitForDispatch(t *testing.T, d *recordingDispatcher, wantUserID int64) {
	t.Helper()
	select {
	case userID := <-d.notified:
		require.Equal(t, wantUserID, userID)
	case <-time.After(2 * time.Second):
		t.Fatal("expected an invalidation dispatch")
	}
}

func assertNoDispatch(t *testing.T, d *recordingDispatcher) {
	t.Helper()
	select {
	case userID := <-d.notified:
		t.Fatalf("unexpected invalidation dispatch for user %d", userID)
	case <-time.After(50 * time.Millisecond):
	}
}

// fakeCatalog serves slug lookups from a map; unknown slugs resolve to nil
type fakeCatalog struct {
	roles map[string]*rbac.Role
	err   error
}

func (c *fakeCatalog) GetRoleBySlug(ctx context.Context, slug string) (*rbac.Role, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.roles[slug], nil
}

func seededCatalog() *fakeCatalog {
	return &fakeCatalog{roles: map[string]*rbac.Role{
		rbac.SlugSectionAdmin:  {ID: 1, Slug: rbac.SlugSectionAdmin},
		rbac.SlugSectionViewer: {ID: 2, Slug: rbac.SlugSectionViewer},
	}}
}

func newTestService(t *testing.T) (*PostgresService, sqlmock.Sqlmock, *recordingDispatcher) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	dispatcher := newRecordingDispatcher()
	service := NewPostgresService(db, workspaces.NewStore(db), seededCatalog(), dispatcher, logger)
	return service, mock, dispatcher
}

func sectionRows(sections ...*Section) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "name", "description", "icon", "display_order", "created_at", "updated_at"})
	now := time.Now()
	for _, s := range sections {
		rows.AddRow(s.ID, s.Name, s.Description, s.Icon, s.DisplayOrder, now, now)
	}
	return rows
}

func memberRows(members ...*SectionMember) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "section_id", "user_id", "role", "catalog_role_id", "created_at"})
	now := time.Now()
	for _, m := range members {
		var catalogRoleID interface{}
		if m.CatalogRoleID != nil {
			catalogRoleID = *m.CatalogRoleID
		}
		rows.AddRow(m.ID, m.SectionID, m.UserID, m.Role, catalogRoleID, now)
	}
	return rows
}
