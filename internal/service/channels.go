package service

import (
	"fmt"

	"file-share-bot/internal/model"
)

// Channels 是两个存储频道的 ID。Movie 为 0 表示未启用。
type Channels struct {
	Short int64
	Movie int64
}

// For 返回类别对应的存储频道。
func (ch Channels) For(c model.Category) int64 {
	switch c {
	case model.CategoryShort:
		return ch.Short
	case model.CategoryMovie:
		return ch.Movie
	}
	panic(fmt.Sprintf("unhandled category %q", string(c)))
}

// CategoryOf 判断 chatID 是否为存储频道，并返回对应类别。
func (ch Channels) CategoryOf(chatID int64) (model.Category, bool) {
	switch {
	case chatID == 0:
		return "", false
	case chatID == ch.Short:
		return model.CategoryShort, true
	case chatID == ch.Movie:
		return model.CategoryMovie, true
	}
	return "", false
}
