package util

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// GenerateUUID 生成一个标准的 UUID (v4)
func GenerateUUID() string {
	return uuid.New().String()
}

// GenerateShortUUID 生成一个不带中划线的短 UUID
func GenerateShortUUID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// GenerateID 带前缀的短 ID，如 Q3f2a...
func GenerateID(prefix string) string {
	return prefix + GenerateShortUUID()[:16]
}

// StableID 由若干片段派生确定性的 UUID (v5)，同样输入得到同样 ID
func StableID(parts ...string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(strings.Join(parts, "\x00"))).String()
}

// ContentHash 内容摘要，用于判断重复入库
func ContentHash(b []byte) string {
	sum := sha1.Sum(b)
	return hex.EncodeToString(sum[:])
}
