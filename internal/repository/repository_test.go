package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"file-share-bot/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.FileRecord{}, &model.BotUser{}, &model.Setting{}))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func shortRecord(id int) *model.FileRecord {
	return &model.FileRecord{ID: id, FileRef: model.FileRef(fmt.Sprint(id)), Category: model.CategoryShort}
}

func TestFileRepositoryLookup(t *testing.T) {
	ctx := context.Background()
	repo := NewFileRepository(newTestDB(t))
	for _, id := range []int{10, 20, 30} {
		inserted, err := repo.Put(ctx, shortRecord(id))
		require.NoError(t, err)
		assert.True(t, inserted)
	}

	rec, err := repo.Get(ctx, 20)
	require.NoError(t, err)
	assert.Equal(t, model.CategoryShort, rec.Category)
	assert.Equal(t, model.FileRef("20"), rec.FileRef)

	_, err = repo.Get(ctx, 15)
	assert.ErrorIs(t, err, ErrNotFound)

	ok, err := repo.Exists(ctx, 30)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.Exists(ctx, 31)
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestFileRepositoryPutDoesNotOverwrite(t *testing.T) {
	ctx := context.Background()
	repo := NewFileRepository(newTestDB(t))

	_, err := repo.Put(ctx, shortRecord(5))
	require.NoError(t, err)

	again := &model.FileRecord{ID: 5, FileRef: "5", Category: model.CategoryMovie}
	inserted, err := repo.Put(ctx, again)
	require.NoError(t, err)
	assert.False(t, inserted)

	rec, err := repo.Get(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, model.CategoryShort, rec.Category)
}

func TestFileRepositoryDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewFileRepository(newTestDB(t))
	_, err := repo.Put(ctx, shortRecord(1))
	require.NoError(t, err)

	deleted, err := repo.Delete(ctx, 1)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = repo.Delete(ctx, 1)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestUserRepositoryUpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newTestDB(t))

	require.NoError(t, repo.Upsert(ctx, &model.BotUser{ID: 1, FirstName: "Ann"}))
	require.NoError(t, repo.Upsert(ctx, &model.BotUser{ID: 1, FirstName: "Anna", Username: "anna"}))
	require.NoError(t, repo.Upsert(ctx, &model.BotUser{ID: 2, FirstName: "Bob"}))

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	var seen []model.BotUser
	require.NoError(t, repo.Each(ctx, func(u model.BotUser) error {
		seen = append(seen, u)
		return nil
	}))
	require.Len(t, seen, 2)
	assert.Equal(t, "Anna", seen[0].FirstName)
	assert.Equal(t, "anna", seen[0].Username)

	require.NoError(t, repo.Delete(ctx, 1))
	ok, err := repo.Exists(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUserRepositoryEachStopsOnError(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newTestDB(t))
	for i := int64(1); i <= 3; i++ {
		require.NoError(t, repo.Upsert(ctx, &model.BotUser{ID: i}))
	}
	stop := errors.New("stop")
	calls := 0
	err := repo.Each(ctx, func(model.BotUser) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestSettingRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewSettingRepository(newTestDB(t))

	var secs int
	found, err := repo.Get(ctx, model.SettingAutoDeleteTime, &secs)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, repo.Set(ctx, model.SettingAutoDeleteTime, 60))
	require.NoError(t, repo.Set(ctx, model.SettingAutoDeleteTime, 0))
	found, err = repo.Get(ctx, model.SettingAutoDeleteTime, &secs)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 0, secs)

	require.NoError(t, repo.Set(ctx, model.SettingForceSubChannels, []int64{-1001, -1002}))
	var channels []int64
	_, err = repo.Get(ctx, model.SettingForceSubChannels, &channels)
	require.NoError(t, err)
	assert.Equal(t, []int64{-1001, -1002}, channels)

	all, err := repo.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.JSONEq(t, `[-1001,-1002]`, string(all[model.SettingForceSubChannels]))
}

func TestMemorySessionRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySessionRepository(time.Minute)

	_, err := repo.Get(ctx, 7)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.Put(ctx, &model.FlowState{AdminID: 7, Kind: model.FlowBatch, Step: model.StepAwaitLast, FirstID: 10}))
	st, err := repo.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, model.StepAwaitLast, st.Step)
	assert.Equal(t, 10, st.FirstID)

	require.NoError(t, repo.Delete(ctx, 7))
	_, err = repo.Get(ctx, 7)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemorySessionRepositoryExpires(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySessionRepository(20 * time.Millisecond)
	require.NoError(t, repo.Put(ctx, &model.FlowState{AdminID: 1, Kind: model.FlowGenLink, Step: model.StepAwaitMessage}))

	require.Eventually(t, func() bool {
		_, err := repo.Get(ctx, 1)
		return errors.Is(err, ErrNotFound)
	}, time.Second, 10*time.Millisecond)
}
