package koda

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSaveLoadTextFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.koda")
	v := NewObject()
	v.Set("name", NewString("my-app"))
	v.Set("version", NewInt(1))

	saveFut := SaveFile(path, v, StringifyOptions{Indent: "  "}, DefaultEncodeOptions())
	_, err := saveFut.Wait()
	require.NoError(t, err)

	loadFut := LoadFile(path, DefaultParseOptions(), DefaultDecodeOptions())
	got, err := loadFut.Wait()
	require.NoError(t, err)
	require.True(t, got.Equal(v))
}

func TestSaveLoadBinaryFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.kod")
	v := NewArray(NewInt(1), NewString("x"), NewBool(true))

	saveFut := SaveFile(path, v, StringifyOptions{}, DefaultEncodeOptions())
	_, err := saveFut.Wait()
	require.NoError(t, err)

	loadFut := LoadFile(path, DefaultParseOptions(), DefaultDecodeOptions())
	got, err := loadFut.Wait()
	require.NoError(t, err)
	require.True(t, got.Equal(v))
}

func TestLoadFileMissing(t *testing.T) {
	fut := LoadFile(filepath.Join(t.TempDir(), "missing.koda"), DefaultParseOptions(), DefaultDecodeOptions())
	_, err := fut.Wait()
	require.Error(t, err)
}
