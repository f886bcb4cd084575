package codec

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// CtripCodec 携程报文编解码器
// 报文先 AES-128-CBC 加密（原始字节，不走 base64），再做 a..p 半字节编码；
// 签名为 header 字段与密文的 MD5 小写十六进制。
type CtripCodec struct {
	AccountID string
	Version   string
	Key       []byte // 16 字节 AES 密钥
	IV        []byte // 16 字节 IV
	SecretKey string // 签名密钥
}

// EncodeBytes 半字节编码：每个字节的高低 4 位各映射到 'a'..'p'
// 输出长度恒为输入的 2 倍，字符集只含 a..p。
func EncodeBytes(data []byte) string {
	var sb strings.Builder
	sb.Grow(len(data) * 2)
	for _, b := range data {
		sb.WriteByte('a' + (b >> 4))
		sb.WriteByte('a' + (b & 0x0f))
	}
	return sb.String()
}

// DecodeBytes 半字节解码，EncodeBytes 的逆运算
func DecodeBytes(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, NewDecodeError("编码串长度 %d 不是偶数", len(s))
	}
	out := make([]byte, len(s)/2)
	for i := 0; i < len(s); i += 2 {
		hi := s[i]
		lo := s[i+1]
		if hi < 'a' || hi > 'p' || lo < 'a' || lo > 'p' {
			return nil, NewDecodeError("位置 %d 出现非法字符 %q", i, s[i:i+2])
		}
		out[i/2] = (hi-'a')<<4 | (lo - 'a')
	}
	return out, nil
}

// Encrypt 加密业务报文并做 a..p 编码
func (c *CtripCodec) Encrypt(plaintext string) (string, error) {
	ciphertext, err := aesEncryptCBC([]byte(plaintext), c.Key, c.IV)
	if err != nil {
		return "", err
	}
	return EncodeBytes(ciphertext), nil
}

// Decrypt 解码 a..p 编码串并解密
func (c *CtripCodec) Decrypt(wire string) (string, error) {
	ciphertext, err := DecodeBytes(wire)
	if err != nil {
		return "", err
	}
	plaintext, err := aesDecryptCBC(ciphertext, c.Key, c.IV)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// Sign 计算请求签名
// 参与方: accountId + serviceName + requestTime + 密文串 + version + secretKey
func (c *CtripCodec) Sign(serviceName, requestTime, encryptedBody string) string {
	raw := c.AccountID + serviceName + requestTime + encryptedBody + c.Version + c.SecretKey
	sum := md5.Sum([]byte(raw))
	return strings.ToLower(hex.EncodeToString(sum[:]))
}
