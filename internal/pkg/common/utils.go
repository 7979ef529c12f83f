package common

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
)

// GenerateUUID 生成 UUID
func GenerateUUID() string {
	return uuid.New().String()
}

// HashBytes 計算位元組切片的 SHA-256 哈希值（十六進位）
func HashBytes(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// HashString 計算字符串的 SHA-256 哈希值（十六進位）
func HashString(s string) string {
	return HashBytes([]byte(s))
}
