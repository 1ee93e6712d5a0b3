package crypto

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"

	"possync/internal/infrastructure/storage"
)

const (
	saltKey  = "possync:crypto:salt"
	checkKey = "possync:crypto:check"
	checkVal = "possync"
)

var ErrWrongPassphrase = errors.New("неверный пароль локального хранилища")

// SealedKV шифрует значения перед записью во вложенное хранилище.
// Ключи остаются открытыми.
type SealedKV struct {
	kv  storage.KV
	mu  sync.RWMutex
	key []byte
}

// NewSealedKV выводит ключ из пароля. При первом запуске создает соль
// и контрольную запись, при следующих проверяет пароль.
func NewSealedKV(ctx context.Context, kv storage.KV, passphrase string, p Params) (*SealedKV, error) {
	salt, err := loadSalt(ctx, kv)
	if err != nil {
		return nil, err
	}

	key, err := DeriveKey([]byte(passphrase), salt, p)
	if err != nil {
		return nil, err
	}
	s := &SealedKV{kv: kv, key: key}

	check, ok, err := s.Get(ctx, checkKey)
	switch {
	case errors.Is(err, ErrDecrypt):
		clearMemory(key)
		return nil, ErrWrongPassphrase
	case err != nil:
		return nil, err
	case !ok:
		if err := s.Set(ctx, checkKey, checkVal); err != nil {
			return nil, err
		}
	case check != checkVal:
		clearMemory(key)
		return nil, ErrWrongPassphrase
	}
	return s, nil
}

func loadSalt(ctx context.Context, kv storage.KV) ([]byte, error) {
	raw, ok, err := kv.Get(ctx, saltKey)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения соли: %w", err)
	}
	if ok {
		salt, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("поврежденная соль: %w", err)
		}
		return salt, nil
	}

	salt, err := GenerateSalt()
	if err != nil {
		return nil, err
	}
	if err := kv.Set(ctx, saltKey, base64.StdEncoding.EncodeToString(salt)); err != nil {
		return nil, fmt.Errorf("ошибка сохранения соли: %w", err)
	}
	return salt, nil
}

func (s *SealedKV) Get(ctx context.Context, key string) (string, bool, error) {
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil || !ok {
		return "", ok, err
	}

	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return "", false, ErrDecrypt
	}

	s.mu.RLock()
	plaintext, err := Open(s.key, data)
	s.mu.RUnlock()
	if err != nil {
		return "", false, err
	}
	return string(plaintext), true, nil
}

func (s *SealedKV) Set(ctx context.Context, key, value string) error {
	s.mu.RLock()
	sealed, err := Seal(s.key, []byte(value))
	s.mu.RUnlock()
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, key, base64.StdEncoding.EncodeToString(sealed))
}

func (s *SealedKV) Remove(ctx context.Context, key string) error {
	return s.kv.Remove(ctx, key)
}

// Close затирает ключ и закрывает вложенное хранилище.
func (s *SealedKV) Close() error {
	s.mu.Lock()
	clearMemory(s.key)
	s.mu.Unlock()
	return s.kv.Close()
}
