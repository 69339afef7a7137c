package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrBadSignature = errors.New("invalid or expired file signature")
	ErrBadKey       = errors.New("invalid file key")
)

// Store keeps uploads on the local disk and hands out HMAC-signed, expiring
// URLs. The key is the only server-side identifier; the original name is
// carried in the product file record.
type Store struct {
	Dir        string
	SignSecret []byte
	URLTTL     time.Duration
	BaseURL    string
}

type FileInfo struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type"`
	Key  string `json:"key"`
	URL  string `json:"url"`
}

func New(dir string, signSecret []byte, urlTTL time.Duration, baseURL string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Store{Dir: dir, SignSecret: signSecret, URLTTL: urlTTL, BaseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *Store) Save(file *multipart.FileHeader) (*FileInfo, error) {
	src, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	key := uuid.NewString() + strings.ToLower(filepath.Ext(file.Filename))

	dst, err := os.Create(filepath.Join(s.Dir, key))
	if err != nil {
		return nil, err
	}
	defer dst.Close()

	size, err := io.Copy(dst, src)
	if err != nil {
		return nil, err
	}

	return &FileInfo{
		Name: file.Filename,
		Size: size,
		Type: file.Header.Get("Content-Type"),
		Key:  key,
		URL:  s.SignedURL(key),
	}, nil
}

// SignedURL produces /files/<key>?exp=<unix>&sig=<hmac> valid for URLTTL.
func (s *Store) SignedURL(key string) string {
	exp := time.Now().Add(s.URLTTL).Unix()
	return fmt.Sprintf("%s/files/%s?exp=%d&sig=%s", s.BaseURL, key, exp, s.sign(key, exp))
}

func (s *Store) Verify(key string, exp int64, sig string) error {
	if time.Now().Unix() > exp {
		return ErrBadSignature
	}
	want := s.sign(key, exp)
	if !hmac.Equal([]byte(want), []byte(sig)) {
		return ErrBadSignature
	}
	return nil
}

// Path rejects keys that escape the upload directory.
func (s *Store) Path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, "/\\") || strings.Contains(key, "..") {
		return "", ErrBadKey
	}
	return filepath.Join(s.Dir, key), nil
}

func (s *Store) Remove(key string) error {
	path, err := s.Path(key)
	if err != nil {
		return err
	}
	return os.Remove(path)
}

func (s *Store) sign(key string, exp int64) string {
	mac := hmac.New(sha256.New, s.SignSecret)
	mac.Write([]byte(key + "|" + strconv.FormatInt(exp, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}
