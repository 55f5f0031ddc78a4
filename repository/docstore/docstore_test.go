package docstore

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &Store{db: sqlx.NewDb(db, "postgres")}, mock
}

func TestCollection_Get_NotFound(t *testing.T) {
	store, mock := newMockStore(t)
	col := NewCollection[widget](store, "widgets")

	mock.ExpectQuery("SELECT id, data, index1, index2 FROM widgets WHERE id = \\$1").
		WithArgs("w1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "data", "index1", "index2"}))

	_, err := col.Get(context.Background(), "w1")

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCollection_Get_Found(t *testing.T) {
	store, mock := newMockStore(t)
	col := NewCollection[widget](store, "widgets")

	mock.ExpectQuery("SELECT id, data, index1, index2 FROM widgets WHERE id = \\$1").
		WithArgs("w1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "data", "index1", "index2"}).
			AddRow("w1", []byte(`{"id":"w1","name":"gadget"}`), nil, nil))

	got, err := col.Get(context.Background(), "w1")

	require.NoError(t, err)
	assert.Equal(t, "gadget", got.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCollection_Upsert(t *testing.T) {
	store, mock := newMockStore(t)
	col := NewCollection[widget](store, "widgets")

	mock.ExpectExec("INSERT INTO widgets").
		WithArgs("w1", []byte(`{"id":"w1","name":"gadget"}`), "inst-1", "").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := col.Upsert(context.Background(), "w1", widget{ID: "w1", Name: "gadget"}, "inst-1", "")

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCollection_UpdateMany_ContinuesOnPartialFailure(t *testing.T) {
	store, mock := newMockStore(t)
	col := NewCollection[widget](store, "widgets")

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO widgets").WithArgs("w1", []byte(`{"id":"w1","name":"a"}`), "", "").
		WillReturnError(assertErr("duplicate key"))
	mock.ExpectExec("INSERT INTO widgets").WithArgs("w2", []byte(`{"id":"w2","name":"b"}`), "", "").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := col.UpdateMany(context.Background(), []Item[widget]{
		{ID: "w1", Doc: widget{ID: "w1", Name: "a"}},
		{ID: "w2", Doc: widget{ID: "w2", Name: "b"}},
	})

	assert.Error(t, err) // first row's error is surfaced...
	assert.NoError(t, mock.ExpectationsWereMet()) // ...but the second row still committed
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
