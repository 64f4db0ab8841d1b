// Package naming builds and parses the file names of N2 EDM datasets.
//
// A dataset is a header file RRRRRR_CCCCCC_SSS_<subsystem>_<VVV>.hd and a
// data file RRRRRR_CCCCCC_SSS_<subsystem>.EDMdat, where R is the run, C the
// cycle, S the size index and V the header version. In the sharded layout
// both live under root/RRR/rrr/ with RRR = run/1000 and rrr = run%1000.
package naming

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	n2errors "github.com/n2edm/n2read/internal/errors"
	"github.com/n2edm/n2read/pkg/types"
)

const (
	// HeaderExt is the header (config) file extension.
	HeaderExt = ".hd"

	// DataExt is the data file extension.
	DataExt = ".EDMdat"

	// headerSuffixLen is the length of "_VVV.hd", the part of a header
	// name replaced by DataExt.
	headerSuffixLen = 7
)

var (
	headerNameRe = regexp.MustCompile(`^(\d{6})_(\d{6})_(\d{3})_([^.]+)\.hd$`)
	dataNameRe   = regexp.MustCompile(`^(\d{6})_(\d{6})_(\d{3})_([^.]+)\.EDMdat$`)
)

// RunDir returns the directory holding the files of run.
func RunDir(root string, layout types.Layout, run int32) string {
	if layout == types.Flat {
		return root
	}
	return filepath.Join(root, fmt.Sprintf("%03d", run/1000), fmt.Sprintf("%03d", run%1000))
}

// RunPrefix returns the slash-separated object key prefix of run's files
// relative to the root.
func RunPrefix(layout types.Layout, run int32) string {
	if layout == types.Flat {
		return fmt.Sprintf("%06d_", run)
	}
	return fmt.Sprintf("%03d/%03d/", run/1000, run%1000)
}

// HeaderName returns the base name of a header file.
func HeaderName(run, cycle, sizeIdx int32, subsystem string, hdrVer int32) string {
	return fmt.Sprintf("%06d_%06d_%03d_%s_%03d%s", run, cycle, sizeIdx, subsystem, hdrVer, HeaderExt)
}

// DataName returns the base name of a data file.
func DataName(run, cycle, sizeIdx int32, subsystem string) string {
	return fmt.Sprintf("%06d_%06d_%03d_%s%s", run, cycle, sizeIdx, subsystem, DataExt)
}

// ConfigPath returns the full path of a header file.
func ConfigPath(root string, layout types.Layout, run, cycle, sizeIdx int32, subsystem string, hdrVer int32) string {
	return filepath.Join(RunDir(root, layout, run), HeaderName(run, cycle, sizeIdx, subsystem, hdrVer))
}

// DataPath returns the full path of a data file.
func DataPath(root string, layout types.Layout, run, cycle, sizeIdx int32, subsystem string) string {
	return filepath.Join(RunDir(root, layout, run), DataName(run, cycle, sizeIdx, subsystem))
}

// ConfigToDataPath derives the data file path from a header path by
// replacing its last 7 characters ("_VVV.hd") with ".EDMdat".
func ConfigToDataPath(configPath string) string {
	if len(configPath) < headerSuffixLen {
		return configPath + DataExt
	}
	return configPath[:len(configPath)-headerSuffixLen] + DataExt
}

// HeaderVersion returns the leading decimal digits after the last '_' of
// path, or 0 when there are none. A path without '_' is not a header path.
func HeaderVersion(path string) (int32, error) {
	i := strings.LastIndexByte(path, '_')
	if i < 0 {
		return 0, n2errors.NewInvalidFilename(path)
	}
	digits := path[i+1:]
	n := 0
	for n < len(digits) && digits[n] >= '0' && digits[n] <= '9' {
		n++
	}
	if n == 0 {
		return 0, nil
	}
	v, err := strconv.ParseInt(digits[:n], 10, 32)
	if err != nil {
		return 0, n2errors.NewInvalidFilename(path)
	}
	return int32(v), nil
}

// Header is a parsed header file name.
type Header struct {
	Run       int32
	Cycle     int32
	SizeIndex int32

	// Segment is everything between the size index and ".hd", e.g.
	// "coils_000".
	Segment string

	// Subsystem is Segment without its trailing "_VVV" part. It is empty
	// when Segment has no '_'.
	Subsystem string

	// Version is the header version parsed from Segment.
	Version int32
}

// ParseHeaderName parses a header base name. The boolean is false when name
// does not match RRRRRR_CCCCCC_SSS_<segment>.hd.
func ParseHeaderName(name string) (Header, bool) {
	m := headerNameRe.FindStringSubmatch(name)
	if m == nil {
		return Header{}, false
	}
	run, _ := strconv.Atoi(m[1])
	cycle, _ := strconv.Atoi(m[2])
	size, _ := strconv.Atoi(m[3])
	h := Header{
		Run:       int32(run),
		Cycle:     int32(cycle),
		SizeIndex: int32(size),
		Segment:   m[4],
	}
	if i := strings.LastIndexByte(h.Segment, '_'); i >= 0 {
		h.Subsystem = h.Segment[:i]
		h.Version, _ = HeaderVersion(h.Segment)
	}
	return h, true
}

// IsShardDir reports whether name is exactly three decimal digits, and
// returns its value.
func IsShardDir(name string) (int32, bool) {
	if len(name) != 3 {
		return 0, false
	}
	for i := 0; i < 3; i++ {
		if name[i] < '0' || name[i] > '9' {
			return 0, false
		}
	}
	v, _ := strconv.Atoi(name)
	return int32(v), true
}

// DataFile is a parsed data file name.
type DataFile struct {
	Run       int32
	Cycle     int32
	SizeIndex int32
	Subsystem string
}

// ParseDataName parses a data file base name
// RRRRRR_CCCCCC_SSS_<subsystem>.EDMdat.
func ParseDataName(name string) (DataFile, bool) {
	m := dataNameRe.FindStringSubmatch(name)
	if m == nil {
		return DataFile{}, false
	}
	run, _ := strconv.Atoi(m[1])
	cycle, _ := strconv.Atoi(m[2])
	size, _ := strconv.Atoi(m[3])
	return DataFile{Run: int32(run), Cycle: int32(cycle), SizeIndex: int32(size), Subsystem: m[4]}, true
}
