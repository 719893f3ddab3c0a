package workspaces

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetWorkspace(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)
	now := time.Now()

	t.Run("attached to section", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"id", "section_id", "name", "description", "owner_id", "created_at", "updated_at"}).
			AddRow(int64(10), int64(3), "Design", "", int64(42), now, now)

		mock.ExpectQuery(regexp.QuoteMeta("SELECT id, section_id, name, description, owner_id, created_at, updated_at")).
			WithArgs(int64(10)).
			WillReturnRows(rows)

		ws, err := store.GetWorkspace(context.Background(), 10)
		require.NoError(t, err)
		require.NotNil(t, ws)
		require.NotNil(t, ws.SectionID)
		assert.Equal(t, int64(3), *ws.SectionID)
	})

	t.Run("unattached", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"id", "section_id", "name", "description", "owner_id", "created_at", "updated_at"}).
			AddRow(int64(11), nil, "Scratch", "", int64(42), now, now)

		mock.ExpectQuery(regexp.QuoteMeta("SELECT id, section_id, name, description, owner_id, created_at, updated_at")).
			WithArgs(int64(11)).
			WillReturnRows(rows)

		ws, err := store.GetWorkspace(context.Background(), 11)
		require.NoError(t, err)
		require.NotNil(t, ws)
		assert.Nil(t, ws.SectionID)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("SELECT id, section_id, name, description, owner_id, created_at, updated_at")).
			WithArgs(int64(99)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "section_id", "name", "description", "owner_id", "created_at", "updated_at"}))

		ws, err := store.GetWorkspace(context.Background(), 99)
		require.NoError(t, err)
		assert.Nil(t, ws)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListBySection(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)
	now := time.Now()

	rows := sqlmock.NewRows([]string{"id", "section_id", "name", "description", "owner_id", "created_at", "updated_at"}).
		AddRow(int64(1), int64(3), "Alpha", "", int64(1), now, now).
		AddRow(int64(2), int64(3), "Beta", "", int64(2), now, now)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE section_id = $1")).
		WithArgs(int64(3)).
		WillReturnRows(rows)

	result, err := store.ListBySection(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, "Alpha", result[0].Name)
	assert.Equal(t, "Beta", result[1].Name)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountBySection(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM workspaces WHERE section_id = $1")).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	count, err := store.CountBySection(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsMember(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM workspace_members WHERE workspace_id = $1 AND user_id = $2)")).
		WithArgs(int64(10), int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := store.IsMember(context.Background(), 10, 42)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHasMemberInSection(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)

	t.Run("member of contained workspace", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("JOIN workspaces w ON w.id = wm.workspace_id")).
			WithArgs(int64(3), int64(42)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		ok, err := store.HasMemberInSection(context.Background(), 3, 42)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("no membership", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("JOIN workspaces w ON w.id = wm.workspace_id")).
			WithArgs(int64(3), int64(77)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		ok, err := store.HasMemberInSection(context.Background(), 3, 77)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListSectionIDsForUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT w.section_id")).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"section_id"}).AddRow(int64(3)).AddRow(int64(5)))

	ids, err := store.ListSectionIDsForUser(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 5}, ids)

	assert.NoError(t, mock.ExpectationsWereMet())
}
