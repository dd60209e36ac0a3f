package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestFileRecordDecodesLegacyDocument(t *testing.T) {
	raw, err := bson.Marshal(bson.D{
		{Key: "_id", Value: int32(10)},
		{Key: "file_ref", Value: int32(10)},
		{Key: "category", Value: "short"},
	})
	require.NoError(t, err)

	var rec FileRecord
	require.NoError(t, bson.Unmarshal(raw, &rec))
	assert.Equal(t, 10, rec.ID)
	assert.Equal(t, FileRef("10"), rec.FileRef)
	assert.Equal(t, CategoryShort, rec.Category)
	assert.Nil(t, rec.Caption, "legacy records carry no caption snapshot")
	assert.False(t, rec.IsDocument)
}

func TestFileRefDecodesStoredShapes(t *testing.T) {
	cases := []struct {
		name  string
		value interface{}
		want  FileRef
	}{
		{"int32", int32(10), "10"},
		{"int64", int64(4294967296), "4294967296"},
		{"string", "42", "42"},
		{"whole double", float64(12), "12"},
		{"null", nil, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw, err := bson.Marshal(bson.D{{Key: "file_ref", Value: tc.value}})
			require.NoError(t, err)
			var doc struct {
				Ref FileRef `bson:"file_ref"`
			}
			require.NoError(t, bson.Unmarshal(raw, &doc))
			assert.Equal(t, tc.want, doc.Ref)
		})
	}

	for name, bad := range map[string]interface{}{"fraction": 1.5, "bool": true} {
		raw, err := bson.Marshal(bson.D{{Key: "file_ref", Value: bad}})
		require.NoError(t, err)
		var doc struct {
			Ref FileRef `bson:"file_ref"`
		}
		assert.Error(t, bson.Unmarshal(raw, &doc), name)
	}
}

func TestFileRecordWritesStringRefAndCaption(t *testing.T) {
	caption := "<b>clip</b>"
	raw, err := bson.Marshal(&FileRecord{ID: 11, FileRef: "11", Category: CategoryMovie, Caption: &caption})
	require.NoError(t, err)

	doc := bson.Raw(raw)
	assert.Equal(t, "11", doc.Lookup("file_ref").StringValue())
	assert.Equal(t, "<b>clip</b>", doc.Lookup("caption").StringValue())

	var back FileRecord
	require.NoError(t, bson.Unmarshal(raw, &back))
	require.NotNil(t, back.Caption)
	assert.Equal(t, caption, *back.Caption)
	assert.Equal(t, FileRef("11"), back.FileRef)
}

func TestBotUserDecodesNullNames(t *testing.T) {
	raw, err := bson.Marshal(bson.D{
		{Key: "_id", Value: int32(555)},
		{Key: "first_name", Value: nil},
		{Key: "username", Value: nil},
	})
	require.NoError(t, err)

	var u BotUser
	require.NoError(t, bson.Unmarshal(raw, &u))
	assert.Equal(t, int64(555), u.ID)
	assert.Empty(t, u.FirstName)
	assert.Empty(t, u.Username)
	assert.True(t, u.CreatedAt.IsZero())
}
