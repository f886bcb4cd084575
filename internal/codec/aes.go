package codec

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
)

// aesEncryptCBC AES-CBC 加密，PKCS7 填充，返回原始密文字节
func aesEncryptCBC(plaintext, key, iv []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	padded := pkcs7Pad(plaintext, block.BlockSize())
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)
	return ciphertext, nil
}

// aesDecryptCBC AES-CBC 解密并去除 PKCS7 填充
// 密文长度或填充非法时返回 DecodeError
func aesDecryptCBC(ciphertext, key, iv []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) == 0 || len(ciphertext)%block.BlockSize() != 0 {
		return nil, NewDecodeError("密文长度 %d 不是块长的整数倍", len(ciphertext))
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)
	return pkcs7Unpad(plaintext, block.BlockSize())
}

// pkcs7Pad PKCS7 填充
func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(padding)}, padding)...)
}

// pkcs7Unpad 去除 PKCS7 填充，填充非法时返回 DecodeError
func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, NewDecodeError("明文为空")
	}
	padding := int(data[len(data)-1])
	if padding == 0 || padding > blockSize || padding > len(data) {
		return nil, NewDecodeError("填充字节 %d 非法", padding)
	}
	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return nil, NewDecodeError("填充内容不一致")
		}
	}
	return data[:len(data)-padding], nil
}
