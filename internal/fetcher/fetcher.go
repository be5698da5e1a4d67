// Package fetcher resolves the export files an hourly run consumes.
package fetcher

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/gemba-ops/shopsync/internal/config"
	"github.com/gemba-ops/shopsync/internal/report"
)

// Fetcher locates the hour's export files. An absent export is a normal
// condition (the downloader may have produced nothing for a closed shop),
// so presence is reported alongside the path rather than as an error.
type Fetcher interface {
	// Financial returns the path of this run's financial export.
	Financial(rc report.RunContext) (string, bool)
	// Location returns the path of one location's marketing export.
	Location(loc config.Location, rc report.RunContext) (string, bool)
}

// LocalDir resolves exports dropped into local directories by the external
// report downloader, using the run-scoped naming convention.
type LocalDir struct {
	FinancialDir string
	MarketingDir string

	log *zap.Logger
}

// NewLocalDir builds a fetcher over the configured export directories.
func NewLocalDir(dirs config.DirsConfig) *LocalDir {
	return &LocalDir{
		FinancialDir: dirs.Financial,
		MarketingDir: dirs.Marketing,
		log:          zap.L().With(zap.String("component", "fetcher")),
	}
}

func (f *LocalDir) Financial(rc report.RunContext) (string, bool) {
	return f.resolve(filepath.Join(f.FinancialDir, rc.FinancialFilename()))
}

func (f *LocalDir) Location(loc config.Location, rc report.RunContext) (string, bool) {
	return f.resolve(filepath.Join(f.MarketingDir, rc.LocationFilename(loc.FileTag)))
}

func (f *LocalDir) resolve(path string) (string, bool) {
	info, err := os.Stat(path)
	if err != nil {
		f.log.Warn("export not found", zap.String("path", path))
		return path, false
	}
	if info.IsDir() {
		f.log.Warn("export path is a directory", zap.String("path", path))
		return path, false
	}
	return path, true
}
