package redis

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/leavenotify/internal/domain"
	"github.com/pscheid92/leavenotify/internal/platform/crypto"
)

const defaultKeyPrefix = "leavenotify:session"

type CredentialStore struct {
	rdb    goredis.Cmdable
	sealer crypto.Sealer
	prefix string
}

var _ domain.CredentialStore = (*CredentialStore)(nil)

// NewCredentialStore stores entries under "<prefix>:token" and "<prefix>:user".
// An empty prefix uses "leavenotify:session".
func NewCredentialStore(rdb goredis.Cmdable, sealer crypto.Sealer, prefix string) *CredentialStore {
	if sealer == nil {
		sealer = crypto.Passthrough{}
	}
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &CredentialStore{rdb: rdb, sealer: sealer, prefix: prefix}
}

func (s *CredentialStore) tokenKey() string { return s.prefix + ":token" }
func (s *CredentialStore) userKey() string  { return s.prefix + ":user" }

func (s *CredentialStore) Load(ctx context.Context) (string, []byte, error) {
	var tokenCmd, userCmd *goredis.StringCmd
	_, err := s.rdb.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		tokenCmd = pipe.Get(ctx, s.tokenKey())
		userCmd = pipe.Get(ctx, s.userKey())
		return nil
	})
	if err != nil && !errors.Is(err, goredis.Nil) {
		return "", nil, fmt.Errorf("redis load session: %w", err)
	}

	sealed, err := tokenCmd.Bytes()
	if errors.Is(err, goredis.Nil) {
		return "", nil, domain.ErrStoreNotFound
	}
	if err != nil {
		return "", nil, fmt.Errorf("redis get token: %w", err)
	}
	token, err := s.sealer.Open(sealed)
	if err != nil {
		return "", nil, fmt.Errorf("open token: %w", err)
	}

	identity, err := userCmd.Bytes()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return "", nil, fmt.Errorf("redis get user: %w", err)
	}
	return string(token), identity, nil
}

func (s *CredentialStore) Save(ctx context.Context, credential string, identity []byte) error {
	sealed, err := s.sealer.Seal([]byte(credential))
	if err != nil {
		return fmt.Errorf("seal token: %w", err)
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, s.tokenKey(), sealed, 0)
		if len(identity) == 0 {
			pipe.Del(ctx, s.userKey())
		} else {
			pipe.Set(ctx, s.userKey(), identity, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save session: %w", err)
	}
	return nil
}

func (s *CredentialStore) Clear(ctx context.Context) error {
	if err := s.rdb.Del(ctx, s.tokenKey(), s.userKey()).Err(); err != nil {
		return fmt.Errorf("redis clear session: %w", err)
	}
	return nil
}
