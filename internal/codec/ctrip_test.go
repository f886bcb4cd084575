package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestCtripCodec() *CtripCodec {
	return &CtripCodec{
		AccountID: "ACC001",
		Version:   "1.0",
		Key:       []byte("0123456789abcdef"),
		IV:        []byte("fedcba9876543210"),
		SecretKey: "secret-key",
	}
}

// TestEncodeBytes_Alphabet 编码结果只含 a..p 且长度为输入两倍
func TestEncodeBytes_Alphabet(t *testing.T) {
	data := []byte{0x00, 0x7f, 0xff, 0x12, 0xab}
	encoded := EncodeBytes(data)

	assert.Equal(t, len(data)*2, len(encoded))
	for _, ch := range encoded {
		assert.True(t, ch >= 'a' && ch <= 'p', "非法字符: %c", ch)
	}
	assert.Equal(t, "aa", EncodeBytes([]byte{0x00}))
	assert.Equal(t, "pp", EncodeBytes([]byte{0xff}))
	assert.Equal(t, "bc", EncodeBytes([]byte{0x12}))
}

// TestDecodeBytes_RoundTrip 任意字节串编码后可无损解码
func TestDecodeBytes_RoundTrip(t *testing.T) {
	cases := [][]byte{
		{},
		{0x00},
		{0xff, 0x00, 0x80, 0x7f},
		[]byte("任意业务报文 with mixed content 123"),
	}
	for _, data := range cases {
		decoded, err := DecodeBytes(EncodeBytes(data))
		assert.NoError(t, err)
		assert.Equal(t, data, decoded)
	}
}

// TestDecodeBytes_Invalid 非法输入必须返回 DecodeError 而不是崩溃
func TestDecodeBytes_Invalid(t *testing.T) {
	_, err := DecodeBytes("abc")
	assert.True(t, IsDecodeError(err), "奇数长度应报解码错误")

	_, err = DecodeBytes("az")
	assert.True(t, IsDecodeError(err), "字符越界应报解码错误")

	_, err = DecodeBytes("aA")
	assert.True(t, IsDecodeError(err), "大写字符应报解码错误")
}

// TestCtripCodec_EncryptDecrypt 加解密往返
func TestCtripCodec_EncryptDecrypt(t *testing.T) {
	c := newTestCtripCodec()

	plaintext := `{"supplierOptionId":"S1","date":"2025-12-27","price":19800}`
	wire, err := c.Encrypt(plaintext)
	assert.NoError(t, err)

	// 密文串只含 a..p
	for _, ch := range wire {
		assert.True(t, ch >= 'a' && ch <= 'p')
	}

	decrypted, err := c.Decrypt(wire)
	assert.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

// TestCtripCodec_DecryptInvalid 篡改后的密文必须报解码错误
func TestCtripCodec_DecryptInvalid(t *testing.T) {
	c := newTestCtripCodec()

	_, err := c.Decrypt("abcde")
	assert.True(t, IsDecodeError(err))

	// 长度合法但不是块长整数倍
	_, err = c.Decrypt("abab")
	assert.True(t, IsDecodeError(err))
}

// TestCtripCodec_Sign 签名确定性：同输入同签名，任一字段变化则签名变化
func TestCtripCodec_Sign(t *testing.T) {
	c := newTestCtripCodec()

	sign1 := c.Sign("DatePriceModify", "2025-12-27 10:00:00", "abcd")
	sign2 := c.Sign("DatePriceModify", "2025-12-27 10:00:00", "abcd")
	assert.Equal(t, sign1, sign2)

	// 32 位小写十六进制
	assert.Len(t, sign1, 32)
	assert.Equal(t, sign1, string([]byte(sign1)))
	for _, ch := range sign1 {
		assert.True(t, (ch >= '0' && ch <= '9') || (ch >= 'a' && ch <= 'f'))
	}

	assert.NotEqual(t, sign1, c.Sign("DateInventoryModify", "2025-12-27 10:00:00", "abcd"))
	assert.NotEqual(t, sign1, c.Sign("DatePriceModify", "2025-12-27 10:00:01", "abcd"))
	assert.NotEqual(t, sign1, c.Sign("DatePriceModify", "2025-12-27 10:00:00", "abce"))
}
