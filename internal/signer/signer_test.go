package signer_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dexquote/internal/signer"
)

func TestSign(t *testing.T) {
	t.Parallel()

	mac := hmac.New(sha256.New, []byte("secret"))
	mac.Write([]byte("payload"))
	want := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	require.Equal(t, want, signer.Sign("secret", "payload"))
	require.NotEqual(t, want, signer.Sign("other", "payload"))
}

func TestSelectCredential(t *testing.T) {
	t.Parallel()

	_, err := signer.SelectCredential(nil)
	require.ErrorIs(t, err, signer.ErrEmptyPool)

	one := []signer.Credentials{{APIKey: "k", Secret: "s"}}
	got, err := signer.SelectCredential(one)
	require.NoError(t, err)
	require.Equal(t, "k", got.APIKey)

	pool := []signer.Credentials{{APIKey: "a"}, {APIKey: "b"}, {APIKey: "c"}}
	for range 20 {
		got, err := signer.SelectCredential(pool)
		require.NoError(t, err)
		require.Contains(t, []string{"a", "b", "c"}, got.APIKey)
	}
}

func TestPoolSign(t *testing.T) {
	t.Parallel()

	// Arrange: a single credential and a frozen clock.
	fixed := time.Date(2024, 5, 1, 12, 30, 45, 123_000_000, time.UTC)
	pool, err := signer.NewPool([]signer.Credentials{
		{APIKey: "key", Secret: "sec", Passphrase: "pass"},
		{APIKey: "", Secret: "ignored"},
	}, signer.WithClock(func() time.Time { return fixed }))
	require.NoError(t, err)
	require.Equal(t, 1, pool.Size())

	// Act: sign a GET with a query string.
	sig, err := pool.Sign("get", "/api/v5/dex/aggregator/quote", "amount=1&chainIndex=1")

	// Assert: timestamp format and prehash layout.
	require.NoError(t, err)
	require.Equal(t, "2024-05-01T12:30:45.123Z", sig.Timestamp)
	require.Equal(t, "key", sig.APIKey)
	require.Equal(t, "pass", sig.Passphrase)
	require.Equal(t, signer.Sign("sec", "2024-05-01T12:30:45.123ZGET/api/v5/dex/aggregator/quote?amount=1&chainIndex=1"), sig.Signature)
}

func TestNewPoolRejectsEmpty(t *testing.T) {
	t.Parallel()

	_, err := signer.NewPool([]signer.Credentials{{APIKey: "k"}})
	require.ErrorIs(t, err, signer.ErrEmptyPool)
}

func TestParseCredentials(t *testing.T) {
	t.Parallel()

	got := signer.ParseCredentials("k1:s1:p1, k2:s2 ,")
	require.Equal(t, []signer.Credentials{
		{APIKey: "k1", Secret: "s1", Passphrase: "p1"},
		{APIKey: "k2", Secret: "s2"},
	}, got)
}
