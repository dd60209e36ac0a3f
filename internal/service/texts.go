package service

import (
	"strconv"
	"strings"

	"file-share-bot/pkg/telegram"
)

// Texts 是可配置的文案模板。
type Texts struct {
	Start             string
	StartPic          string
	ForceSub          string
	AutoDelete        string
	AutoDeleteSuccess string
	CustomCaption     string
	NotAuthorized     string
}

// 固定的用户提示。
const (
	textInvalidLink   = "❌ Invalid or expired link!"
	textFileNotFound  = "❌ File not found or has been deleted!"
	textFileError     = "❌ Error retrieving file. Please try again later."
	textBatchOrder    = "❌ Invalid batch link! The last file comes before the first."
	textBatchTooLarge = "❌ Batch size too large! Maximum %d files at once."
	textBatchStarted  = "📦 Sending batch files... Please wait."
	textBatchDone     = "✅ All available files sent!"
	textBatchError    = "❌ Error processing batch request!"
	textTryAgain      = "🔄 Try Again"
)

// FormatUserText 替换 {first} {last} {username} {mention} {id} 占位符。
func FormatUserText(tmpl string, u telegram.User) string {
	username := "None"
	if u.Username != "" {
		username = "@" + u.Username
	}
	return strings.NewReplacer(
		"{first}", telegram.EscapeHTML(u.FirstName),
		"{last}", telegram.EscapeHTML(u.LastName),
		"{username}", username,
		"{mention}", u.Mention(),
		"{id}", strconv.FormatInt(u.ID, 10),
	).Replace(tmpl)
}

// autoDeleteWarning 用可读时长填充 {time} 占位符。
func autoDeleteWarning(tmpl string, seconds int) string {
	return strings.ReplaceAll(tmpl, "{time}", HumanDuration(seconds))
}
