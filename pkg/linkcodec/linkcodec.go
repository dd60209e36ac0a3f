// Package linkcodec 实现深链接 token 的编解码。
//
// token 是明文 ASCII 字节的 URL-safe base64，编码时去掉尾部的 '='，解码时补齐。
// 明文要么是单个十进制消息 ID，要么是 "<first>-<last>" 形式的批量区间。
// 该格式没有版本字节，历史 token 必须永远可解码。
package linkcodec

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformed 表示 token 无法解码或明文格式不合法。
var ErrMalformed = errors.New("malformed link token")

// Encode 将 ASCII 明文编码为不带填充的 URL-safe base64。
func Encode(plaintext string) string {
	return strings.TrimRight(base64.URLEncoding.EncodeToString([]byte(plaintext)), "=")
}

// Decode 是 Encode 的逆运算，带填充与不带填充的输入均可接受。
func Decode(token string) (string, error) {
	token = strings.TrimRight(strings.TrimSpace(token), "=")
	if token == "" {
		return "", ErrMalformed
	}
	if rem := len(token) % 4; rem != 0 {
		token += strings.Repeat("=", 4-rem)
	}
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	for _, b := range raw {
		if b > 0x7f {
			return "", fmt.Errorf("%w: non-ascii payload", ErrMalformed)
		}
	}
	return string(raw), nil
}

// Request 是 token 解码后的请求：单文件或批量区间。
type Request struct {
	First int
	Last  int
	Batch bool
}

// Single 构造单文件请求。
func Single(id int) Request {
	return Request{First: id, Last: id}
}

// Range 构造批量请求，不做大小校验。
func Range(first, last int) Request {
	return Request{First: first, Last: last, Batch: true}
}

// Plaintext 返回请求对应的明文。
func (r Request) Plaintext() string {
	if r.Batch {
		return fmt.Sprintf("%d-%d", r.First, r.Last)
	}
	return strconv.Itoa(r.First)
}

// Token 返回请求对应的 token。
func (r Request) Token() string {
	return Encode(r.Plaintext())
}

// Size 返回区间内的 ID 数量；last < first 时为 0 或负数。
func (r Request) Size() int {
	return r.Last - r.First + 1
}

// Parse 解码 token 并解析出请求。区间的先后顺序与大小由调用方校验。
func Parse(token string) (Request, error) {
	plain, err := Decode(token)
	if err != nil {
		return Request{}, err
	}
	return ParsePlaintext(plain)
}

// ParsePlaintext 解析已解码的明文。
func ParsePlaintext(plain string) (Request, error) {
	if first, last, ok := strings.Cut(plain, "-"); ok {
		a, err := parseID(first)
		if err != nil {
			return Request{}, err
		}
		b, err := parseID(last)
		if err != nil {
			return Request{}, err
		}
		return Range(a, b), nil
	}
	id, err := parseID(plain)
	if err != nil {
		return Request{}, err
	}
	return Single(id), nil
}

func parseID(s string) (int, error) {
	if s == "" {
		return 0, ErrMalformed
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("%w: %q is not a message id", ErrMalformed, s)
		}
	}
	id, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return id, nil
}

// DeepLink 生成 https://t.me/<bot>?start=<token> 形式的分享链接。
func DeepLink(botUsername string, r Request) string {
	return fmt.Sprintf("https://t.me/%s?start=%s", botUsername, r.Token())
}

// ShareURL 生成 Telegram 分享按钮使用的链接。
func ShareURL(link string) string {
	return "https://t.me/share/url?url=" + link
}
