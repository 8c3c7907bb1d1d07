package metrics

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/dustin/go-humanize"
)

// SysHealth represents real-time system metrics.
type SysHealth struct {
	Alloc        string
	TotalAlloc   string
	Sys          string
	NumGC        uint32
	Goroutines   int
	DataDiskSize string
	ExportsSize  string
}

// GetSysHealth collects real-time health data for the database and export
// directories.
func GetSysHealth(dataPath, exportPath string) SysHealth {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return SysHealth{
		Alloc:        humanize.IBytes(m.Alloc),
		TotalAlloc:   humanize.IBytes(m.TotalAlloc),
		Sys:          humanize.IBytes(m.Sys),
		NumGC:        m.NumGC,
		Goroutines:   runtime.NumGoroutine(),
		DataDiskSize: humanize.IBytes(dirSize(dataPath)),
		ExportsSize:  humanize.IBytes(dirSize(exportPath)),
	}
}

func dirSize(path string) uint64 {
	if path == "" {
		return 0
	}
	var size uint64
	_ = filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += uint64(info.Size())
		}
		return nil
	})
	return size
}
