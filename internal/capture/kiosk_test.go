package capture

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWithDefaults(t *testing.T) {
	_, err := Options{Output: "x.png"}.withDefaults()
	require.Error(t, err)
	_, err = Options{URL: "http://localhost/kiosk"}.withDefaults()
	require.Error(t, err)

	o, err := Options{URL: "http://localhost/kiosk", Output: "x.png"}.withDefaults()
	require.NoError(t, err)
	require.Equal(t, DefaultWidth, o.Width)
	require.Equal(t, DefaultHeight, o.Height)
	require.Equal(t, DefaultTimeout, o.Timeout)

	o, err = Options{URL: "u", Output: "o", Width: 800, Height: 480, Timeout: time.Second}.withDefaults()
	require.NoError(t, err)
	require.Equal(t, 800, o.Width)
	require.Equal(t, 480, o.Height)
}

func TestTasksAddAuthHeaderOnlyWhenConfigured(t *testing.T) {
	var png []byte
	plain := Options{URL: "u", Output: "o"}.tasks(&png)
	withAuth := Options{URL: "u", Output: "o", Username: "admin", Password: "pw"}.tasks(&png)
	require.Len(t, withAuth, len(plain)+2)
}

func TestBasicAuth(t *testing.T) {
	require.Equal(t, "Basic YWRtaW46cHc=", basicAuth("admin", "pw"))
}

func TestCaptureKioskValidatesBeforeLaunching(t *testing.T) {
	require.Error(t, CaptureKiosk(context.Background(), Options{}))
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "kiosk.png")
	require.NoError(t, writeFileAtomic(path, []byte("one")))
	require.NoError(t, writeFileAtomic(path, []byte("two")))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "two", string(got))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}
