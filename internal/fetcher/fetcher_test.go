package fetcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gemba-ops/shopsync/internal/config"
	"github.com/gemba-ops/shopsync/internal/report"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func testCtx(t *testing.T) report.RunContext {
	t.Helper()
	zone, err := time.LoadLocation("America/Phoenix")
	require.NoError(t, err)
	return report.NewRunContext(time.Date(2024, 6, 1, 7, 0, 0, 0, zone), zone)
}

func TestLocalDir_FindsExports(t *testing.T) {
	rc := testCtx(t)
	finDir := t.TempDir()
	mktDir := t.TempDir()

	finPath := filepath.Join(finDir, "6.1.2024_H07.csv")
	require.NoError(t, os.WriteFile(finPath, []byte("Location,Tempe\n"), 0o644))
	locPath := filepath.Join(mktDir, "Mesa-Broadway-06.01.24_H07.csv")
	require.NoError(t, os.WriteFile(locPath, []byte("Marketing Source,RO Count\n"), 0o644))

	f := NewLocalDir(config.DirsConfig{Financial: finDir, Marketing: mktDir})

	got, ok := f.Financial(rc)
	assert.True(t, ok)
	assert.Equal(t, finPath, got)

	got, ok = f.Location(config.Location{Name: "Mesa Broadway", FileTag: "Mesa-Broadway"}, rc)
	assert.True(t, ok)
	assert.Equal(t, locPath, got)
}

func TestLocalDir_MissingExport(t *testing.T) {
	rc := testCtx(t)
	f := NewLocalDir(config.DirsConfig{Financial: t.TempDir(), Marketing: t.TempDir()})

	path, ok := f.Financial(rc)
	assert.False(t, ok)
	assert.NotEmpty(t, path, "path is still reported for diagnostics")

	_, ok = f.Location(config.Location{Name: "Tempe", FileTag: "Tempe"}, rc)
	assert.False(t, ok)
}

func TestLocalDir_DirectoryIsNotAnExport(t *testing.T) {
	rc := testCtx(t)
	finDir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(finDir, "6.1.2024_H07.csv"), 0o755))

	f := NewLocalDir(config.DirsConfig{Financial: finDir})
	_, ok := f.Financial(rc)
	assert.False(t, ok)
}
