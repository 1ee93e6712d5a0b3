// Package crypto шифрует локальное состояние кассы ключом из пароля.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

const (
	saltLength = 16
	keyLength  = 32 // AES-256
)

var ErrDecrypt = errors.New("не удалось расшифровать данные")

// Params - параметры Argon2id.
type Params struct {
	Time    uint32
	Memory  uint32
	Threads uint8
}

func DefaultParams() Params {
	return Params{
		Time:    1,
		Memory:  64 * 1024, // 64 MB
		Threads: 4,
	}
}

// DeriveKey получает ключ AES-256 из пароля.
func DeriveKey(passphrase, salt []byte, p Params) ([]byte, error) {
	if len(passphrase) == 0 {
		return nil, fmt.Errorf("пароль не может быть пустым")
	}
	if len(salt) < saltLength {
		return nil, fmt.Errorf("соль слишком короткая: %d байт", len(salt))
	}
	return argon2.IDKey(passphrase, salt, p.Time, p.Memory, p.Threads, keyLength), nil
}

// Seal шифрует данные AES-GCM. Nonce идет в начале результата.
func Seal(key, plaintext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("ошибка генерации nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Open расшифровывает результат Seal.
func Open(key, ciphertext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, ErrDecrypt
	}
	nonce, data := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, data, nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания шифра: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания GCM: %w", err)
	}
	return gcm, nil
}

// GenerateSalt возвращает случайную соль.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return salt, nil
}

// clearMemory затирает ключ после использования.
func clearMemory(data []byte) {
	for i := range data {
		data[i] = 0
	}
}
