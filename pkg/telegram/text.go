package telegram

import (
	"html"
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// EscapeHTML 转义 HTML parse mode 下的特殊字符。
func EscapeHTML(s string) string {
	return htmlEscape(s)
}

func htmlEscape(s string) string {
	return html.EscapeString(s)
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}

// EntitiesHTML 把带格式实体的文本渲染为 HTML parse mode 文本。
// 实体偏移按 UTF-16 码元计算；mention、hashtag、url 这类客户端自动识别的实体不需要标签。
func EntitiesHTML(text string, entities []tgbotapi.MessageEntity) string {
	if len(entities) == 0 {
		return htmlEscape(text)
	}
	units := utf16.Encode([]rune(text))

	ents := make([]tgbotapi.MessageEntity, 0, len(entities))
	for _, e := range entities {
		if e.Length <= 0 || e.Offset < 0 || e.Offset+e.Length > len(units) {
			continue
		}
		if open, _ := entityTags(e); open == "" {
			continue
		}
		ents = append(ents, e)
	}
	// 外层实体排在前面。
	sort.SliceStable(ents, func(i, j int) bool {
		if ents[i].Offset != ents[j].Offset {
			return ents[i].Offset < ents[j].Offset
		}
		return ents[i].Length > ents[j].Length
	})

	type span struct {
		end   int
		closeTag string
	}
	var (
		b     strings.Builder
		stack []span
		pos   int
	)
	flush := func(to int) {
		if to > pos {
			b.WriteString(htmlEscape(string(utf16.Decode(units[pos:to]))))
			pos = to
		}
	}
	pop := func() {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		flush(top.end)
		b.WriteString(top.closeTag)
	}

	for _, e := range ents {
		for len(stack) > 0 && stack[len(stack)-1].end <= e.Offset {
			pop()
		}
		end := e.Offset + e.Length
		// 平台保证实体要么嵌套要么不相交，交叉的实体直接丢弃。
		if len(stack) > 0 && end > stack[len(stack)-1].end {
			continue
		}
		flush(e.Offset)
		open, closeTag := entityTags(e)
		b.WriteString(open)
		stack = append(stack, span{end: end, closeTag: closeTag})
	}
	for len(stack) > 0 {
		pop()
	}
	flush(len(units))
	return b.String()
}

func entityTags(e tgbotapi.MessageEntity) (string, string) {
	switch e.Type {
	case "bold":
		return "<b>", "</b>"
	case "italic":
		return "<i>", "</i>"
	case "underline":
		return "<u>", "</u>"
	case "strikethrough":
		return "<s>", "</s>"
	case "spoiler":
		return "<tg-spoiler>", "</tg-spoiler>"
	case "code":
		return "<code>", "</code>"
	case "pre":
		if e.Language != "" {
			return `<pre><code class="language-` + htmlEscape(e.Language) + `">`, "</code></pre>"
		}
		return "<pre>", "</pre>"
	case "text_link":
		if e.URL != "" {
			return `<a href="` + htmlEscape(e.URL) + `">`, "</a>"
		}
	case "text_mention":
		if e.User != nil {
			return `<a href="tg://user?id=` + itoa(e.User.ID) + `">`, "</a>"
		}
	}
	return "", ""
}
