package stores

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const nonceRecordVersionV1 = 1

var (
	ErrNonceNotFound         = errors.New("nonce not found")
	ErrNonceExists           = errors.New("nonce already issued")
	ErrNonceRedisUnavailable = errors.New("nonce redis unavailable")
)

// NonceRecord binds a flow nonce to the intent that produced it.
type NonceRecord struct {
	Purpose   string
	Email     string
	IntentID  string
	ExpiresAt int64
}

// NonceStore keeps single-use flow nonces. A nonce may be peeked any number
// of times while live and consumed exactly once.
type NonceStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewNonceStore(redisClient redis.UniversalClient, prefix string) *NonceStore {
	if prefix == "" {
		prefix = "ownid:nonce"
	}
	return &NonceStore{redis: redisClient, prefix: prefix}
}

func (s *NonceStore) key(nonce string) string {
	return s.prefix + ":" + nonce
}

func (s *NonceStore) Save(ctx context.Context, nonce string, record *NonceRecord, ttl time.Duration) error {
	if record.ExpiresAt == 0 {
		record.ExpiresAt = time.Now().Add(ttl).Unix()
	}
	encoded, err := encodeNonceRecord(record)
	if err != nil {
		return err
	}
	ok, err := s.redis.SetNX(ctx, s.key(nonce), encoded, ttl).Result()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNonceRedisUnavailable, err)
	}
	if !ok {
		return ErrNonceExists
	}
	return nil
}

// Peek returns the live record for nonce without consuming it.
func (s *NonceStore) Peek(ctx context.Context, nonce string) (*NonceRecord, error) {
	data, err := s.redis.Get(ctx, s.key(nonce)).Bytes()
	return s.decode(data, err)
}

// Consume atomically removes nonce and returns its record.
func (s *NonceStore) Consume(ctx context.Context, nonce string) (*NonceRecord, error) {
	data, err := s.redis.GetDel(ctx, s.key(nonce)).Bytes()
	return s.decode(data, err)
}

func (s *NonceStore) decode(data []byte, err error) (*NonceRecord, error) {
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNonceNotFound
		}
		return nil, fmt.Errorf("%w: %w", ErrNonceRedisUnavailable, err)
	}
	record, err := decodeNonceRecord(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNonceRedisUnavailable, err)
	}
	if time.Now().Unix() > record.ExpiresAt {
		return nil, ErrNonceNotFound
	}
	return record, nil
}

func encodeNonceRecord(record *NonceRecord) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(nonceRecordVersionV1)
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}
	for _, field := range []string{record.Purpose, record.Email, record.IntentID} {
		if len(field) > 0xFFFF {
			return nil, errors.New("nonce record field too long")
		}
		if err := binary.Write(&buf, binary.BigEndian, uint16(len(field))); err != nil {
			return nil, err
		}
		buf.WriteString(field)
	}
	return buf.Bytes(), nil
}

func decodeNonceRecord(data []byte) (*NonceRecord, error) {
	reader := bytes.NewReader(data)
	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != nonceRecordVersionV1 {
		return nil, errors.New("unsupported nonce record version")
	}

	record := &NonceRecord{}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}
	fields := []*string{&record.Purpose, &record.Email, &record.IntentID}
	for _, field := range fields {
		var n uint16
		if err := binary.Read(reader, binary.BigEndian, &n); err != nil {
			return nil, err
		}
		raw := make([]byte, n)
		if _, err := io.ReadFull(reader, raw); err != nil {
			return nil, err
		}
		*field = string(raw)
	}
	if reader.Len() != 0 {
		return nil, errors.New("trailing bytes in nonce record")
	}
	return record, nil
}
