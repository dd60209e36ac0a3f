package service

import (
	"context"
	"testing"

	"file-share-bot/internal/model"
	"file-share-bot/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForceSubChannelList(t *testing.T) {
	db := newTestDB(t)
	s := NewSettingsService(repository.NewSettingRepository(db), 25200)
	ctx := context.Background()

	channels, err := s.ForceSubChannels(ctx)
	require.NoError(t, err)
	assert.Empty(t, channels)

	added, err := s.AddForceSubChannel(ctx, -100)
	require.NoError(t, err)
	assert.True(t, added)
	added, err = s.AddForceSubChannel(ctx, -100)
	require.NoError(t, err)
	assert.False(t, added, "adding twice keeps a single entry")
	_, err = s.AddForceSubChannel(ctx, -200)
	require.NoError(t, err)

	channels, err = s.ForceSubChannels(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{-100, -200}, channels)

	removed, err := s.RemoveForceSubChannel(ctx, -100)
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = s.RemoveForceSubChannel(ctx, -100)
	require.NoError(t, err)
	assert.False(t, removed)

	channels, err = s.ForceSubChannels(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{-200}, channels)
}

func TestAutoDeleteTimeSetting(t *testing.T) {
	db := newTestDB(t)
	s := NewSettingsService(repository.NewSettingRepository(db), 25200)
	ctx := context.Background()

	secs, err := s.AutoDeleteTime(ctx)
	require.NoError(t, err)
	assert.Equal(t, 25200, secs, "default when nothing is stored")

	require.NoError(t, s.SetAutoDeleteTime(ctx, 3600))
	secs, err = s.AutoDeleteTime(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3600, secs)

	require.NoError(t, s.SetAutoDeleteTime(ctx, 0))
	secs, err = s.AutoDeleteTime(ctx)
	require.NoError(t, err)
	assert.Zero(t, secs, "0 is stored, not replaced by the default")

	assert.ErrorIs(t, s.SetAutoDeleteTime(ctx, -1), ErrInvalidInput)

	all, err := s.All(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, "0", string(all[model.SettingAutoDeleteTime]))
}

func TestAutoDeleteTimeStoreError(t *testing.T) {
	s := NewSettingsService(failingSettings{}, 25200)
	secs, err := s.AutoDeleteTime(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 25200, secs)
}
