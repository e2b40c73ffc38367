package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignedURLSignerGenerateAndParse(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, expiresAt, err := signer.Generate("job-1", "exports/classes.xlsx")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	jobID, path, parsedExpiry, err := signer.Parse(token, false)
	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)
	assert.Equal(t, "exports/classes.xlsx", path)
	assert.WithinDuration(t, expiresAt, parsedExpiry, time.Second)
}

func TestSignedURLSignerExpired(t *testing.T) {
	signer := NewSignedURLSigner("secret", 10*time.Millisecond)
	token, _, err := signer.Generate("job-1", "exports/classes.csv")
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)

	_, _, _, err = signer.Parse(token, false)
	require.ErrorIs(t, err, ErrInvalidToken)

	jobID, path, _, err := signer.Parse(token, true)
	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)
	assert.Equal(t, "exports/classes.csv", path)
}

func TestSignedURLSignerRejectsForeignSecret(t *testing.T) {
	token, _, err := NewSignedURLSigner("one", time.Hour).Generate("job-1", "a.pdf")
	require.NoError(t, err)

	_, _, _, err = NewSignedURLSigner("two", time.Hour).Parse(token, false)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestLocalStorageRoundTrip(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	name, err := store.Save("exports/job-1.csv", []byte("a,b\n"))
	require.NoError(t, err)

	f, info, err := store.Open(name)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, int64(4), info.Size())

	require.NoError(t, store.Delete(name))
	require.NoError(t, store.Delete(name), "deleting twice is fine")
}

func TestLocalStorageRejectsTraversal(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save("../escape.txt", []byte("x"))
	assert.ErrorIs(t, err, ErrInvalidPath)
	_, _, err = store.Open("/etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestLocalStorageCleanupOlderThan(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir)
	require.NoError(t, err)

	_, err = store.Save("old.xlsx", []byte("old"))
	require.NoError(t, err)
	_, err = store.Save("new.xlsx", []byte("new"))
	require.NoError(t, err)
	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "old.xlsx"), past, past))

	deleted, err := store.CleanupOlderThan(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{"old.xlsx"}, deleted)
}
