// internal/common/database/database_test.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"loan-origination/internal/common/config"
	apperrors "loan-origination/internal/common/errors"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Postgres
// ==========================

func TestWithTx_Commits(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO audit_log").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	pg := NewPostgresFromDB(db)
	err = pg.WithTx(context.Background(), func(tx *sql.Tx) error {
		_, err := tx.Exec("INSERT INTO audit_log VALUES (1)")
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err = NewPostgresFromDB(db).WithTx(context.Background(), func(*sql.Tx) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_BeginFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	called := false
	err = NewPostgresFromDB(db).WithTx(context.Background(), func(*sql.Tx) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin transaction")
	assert.False(t, called)
}

func TestMigrations_ArePaired(t *testing.T) {
	entries, err := fs.ReadDir(migrationFS, "migrations")
	require.NoError(t, err)

	ups, downs := 0, 0
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			ups++
		case strings.HasSuffix(e.Name(), ".down.sql"):
			downs++
		}
	}
	assert.Positive(t, ups)
	assert.Equal(t, ups, downs)
}

// ==========================
// Redis
// ==========================

func TestRedis_Ping(t *testing.T) {
	mr := miniredis.RunT(t)

	rc, err := NewRedis(config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	defer rc.Close()

	require.NoError(t, rc.Ping(context.Background()))

	mr.Close()
	err = rc.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping failed")
}

func TestRedisOptions(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.RedisConfig
		wantAddr string
		wantDB   int
		wantPool int
		wantPass string
		wantErr  bool
	}{
		{name: "host and port", cfg: config.RedisConfig{Address: "localhost:6379"}, wantAddr: "localhost:6379", wantPool: 10},
		{name: "url", cfg: config.RedisConfig{Address: "redis://:secret@cache:6380/2", PoolSize: 4}, wantAddr: "cache:6380", wantDB: 2, wantPool: 4, wantPass: "secret"},
		{name: "explicit settings win", cfg: config.RedisConfig{Address: "redis://:secret@cache:6380/2", Password: "override", DB: 5}, wantAddr: "cache:6380", wantDB: 5, wantPool: 10, wantPass: "override"},
		{name: "bad url", cfg: config.RedisConfig{Address: "http://cache:6380"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := redisOptions(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAddr, opts.Addr)
			assert.Equal(t, tt.wantDB, opts.DB)
			assert.Equal(t, tt.wantPool, opts.PoolSize)
			assert.Equal(t, tt.wantPass, opts.Password)
		})
	}
}

// ==========================
// Elasticsearch
// ==========================

func newESServer(t *testing.T, handler http.HandlerFunc) *ElasticsearchClient {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	es, err := NewElasticsearch(config.ElasticsearchConfig{URL: srv.URL})
	require.NoError(t, err)
	return es
}

func TestElasticsearch_Ping(t *testing.T) {
	es := newESServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	assert.NoError(t, es.Ping(context.Background()))

	down := newESServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	err := down.Ping(context.Background())
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeElasticsearchConnectionFailed))
}

func TestEnsureIndex(t *testing.T) {
	tests := []struct {
		name       string
		existsCode int
		createCode int
		createBody string
		wantCreate bool
		wantErr    bool
	}{
		{"already exists", http.StatusOK, 0, "", false, false},
		{"created", http.StatusNotFound, http.StatusOK, `{"acknowledged":true}`, true, false},
		{"lost creation race", http.StatusNotFound, http.StatusBadRequest, `{"error":{"type":"resource_already_exists_exception"}}`, true, false},
		{"create rejected", http.StatusNotFound, http.StatusBadRequest, `{"error":{"type":"mapper_parsing_exception"}}`, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var mu sync.Mutex
			created := false
			es := newESServer(t, func(w http.ResponseWriter, r *http.Request) {
				mu.Lock()
				defer mu.Unlock()
				if r.Method == http.MethodHead {
					w.WriteHeader(tt.existsCode)
					return
				}
				created = true
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.createCode)
				_, _ = w.Write([]byte(tt.createBody))
			})

			err := es.EnsureIndex(context.Background(), "loan_applications", `{"mappings":{}}`)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			mu.Lock()
			assert.Equal(t, tt.wantCreate, created)
			mu.Unlock()
		})
	}
}
