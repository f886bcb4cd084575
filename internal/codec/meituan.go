package codec

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// MeituanCodec 美团报文签名与加解密
// 请求头签名走 MWS（HMAC-SHA1），报文体按接口能力开关选择是否 AES-128-CBC 加密。
type MeituanCodec struct {
	PartnerID string
	AppKey    string
	Secret    string // MWS 签名密钥
	key       []byte // 16 字节 AES 密钥
	iv        []byte
}

// NewMeituanCodec 创建编解码器
// bodyKey 为 16 字节原始密钥，或 32 位十六进制串（hex 解码为 16 字节）。
// IV 为密钥字节循环左移 8 位：iv[i] = key[(i+8) % 16]。
func NewMeituanCodec(partnerID, appKey, secret, bodyKey string) (*MeituanCodec, error) {
	key, err := deriveMeituanKey(bodyKey)
	if err != nil {
		return nil, err
	}
	return &MeituanCodec{
		PartnerID: partnerID,
		AppKey:    appKey,
		Secret:    secret,
		key:       key,
		iv:        RotateKeyIV(key),
	}, nil
}

// deriveMeituanKey 解析报文体密钥
func deriveMeituanKey(bodyKey string) ([]byte, error) {
	switch len(bodyKey) {
	case 16:
		return []byte(bodyKey), nil
	case 32:
		key, err := hex.DecodeString(bodyKey)
		if err != nil {
			return nil, fmt.Errorf("解析 32 位十六进制密钥失败: %w", err)
		}
		return key, nil
	default:
		return nil, fmt.Errorf("密钥长度 %d 非法，只支持 16 字节或 32 位十六进制", len(bodyKey))
	}
}

// RotateKeyIV 由密钥推导 IV：循环左移 8 个字节
func RotateKeyIV(key []byte) []byte {
	iv := make([]byte, len(key))
	for i := range key {
		iv[i] = key[(i+8)%len(key)]
	}
	return iv
}

// SignMWS 计算 MWS 签名
// 签名原文: METHOD + " " + URI + "\n" + GMT 日期
func (c *MeituanCodec) SignMWS(method, uri, dateGMT string) string {
	raw := method + " " + uri + "\n" + dateGMT
	mac := hmac.New(sha1.New, []byte(c.Secret))
	mac.Write([]byte(raw))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// AuthorizationHeader 构造 Authorization 请求头
func (c *MeituanCodec) AuthorizationHeader(method, uri, dateGMT string) string {
	return fmt.Sprintf("MWS %s:%s", c.AppKey, c.SignMWS(method, uri, dateGMT))
}

// EncryptBody 加密报文体，返回 base64 密文
func (c *MeituanCodec) EncryptBody(plaintext string) (string, error) {
	ciphertext, err := aesEncryptCBC([]byte(plaintext), c.key, c.iv)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// DecryptBody 解密 base64 密文
func (c *MeituanCodec) DecryptBody(wire string) (string, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(wire)
	if err != nil {
		return "", NewDecodeError("base64 解码失败: %v", err)
	}
	plaintext, err := aesDecryptCBC(ciphertext, c.key, c.iv)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
