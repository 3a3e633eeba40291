package probe

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte{}, 0o644))
}

func TestFindLinuxPrefersNativeWordSize(t *testing.T) {
	root := t.TempDir()
	native := filepath.Join(root, "JLink_V812", "libjlinkarm.so.8.12.0")
	x86 := filepath.Join(root, "JLink_V812", "x86", "libjlinkarm_x86.so.8.12.0")
	touch(t, native)
	touch(t, x86)

	require.Equal(t, native, findLinux(root))
}

func TestFindLinuxEmptyTree(t *testing.T) {
	require.Empty(t, findLinux(t.TempDir()))
	require.Empty(t, findLinux(filepath.Join(t.TempDir(), "does-not-exist")))
}

func TestFindDarwinPrefersUnversionedDylib(t *testing.T) {
	root := t.TempDir()
	versioned := filepath.Join(root, "JLink", "libjlinkarm.8.dylib")
	plain := filepath.Join(root, "JLink", "libjlinkarm.dylib")
	touch(t, versioned)
	touch(t, plain)

	require.Equal(t, plain, findDarwin(root))
}

func TestFindInLoaderPath(t *testing.T) {
	dir := t.TempDir()
	lib := filepath.Join(dir, "libjlinkarm.so.8")
	touch(t, lib)

	t.Setenv(loaderPathEnv(), dir)
	require.Equal(t, lib, findInLoaderPath())

	t.Setenv(loaderPathEnv(), "")
	require.Empty(t, findInLoaderPath())
}

func TestFindInLoaderPathSkipsMissingDirs(t *testing.T) {
	dir := t.TempDir()
	lib := filepath.Join(dir, "libjlinkarm.so")
	touch(t, lib)

	t.Setenv(loaderPathEnv(), "/does/not/exist:"+dir)
	require.Equal(t, lib, findInLoaderPath())
}
