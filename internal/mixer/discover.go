package mixer

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"sessionmix/internal/services"
)

// MixedBaseName is the file name stem of every mix output.
const MixedBaseName = "mixed"

// MixedPath returns <dir>/mixed.<format>.
func MixedPath(dir, format string) string {
	return filepath.Join(dir, MixedBaseName+"."+format)
}

// DiscoverTracks lists the regular files directly inside dir whose extension
// matches format, ignoring case. The result is sorted. An empty result is
// services.ErrNoTracksFound. A track occupying the mix output name is
// services.ErrMixFailed, since mixing would overwrite it.
func DiscoverTracks(dir, format string) ([]string, error) {
	ext := "." + strings.TrimPrefix(strings.ToLower(strings.TrimSpace(format)), ".")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, services.Fail(services.ErrNoTracksFound, "discover", services.NoIndex, dir, err)
	}

	mixed := strings.ToLower(MixedBaseName + ext)
	tracks := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		lower := strings.ToLower(name)
		if !strings.HasSuffix(lower, ext) {
			continue
		}
		if lower == mixed {
			path := filepath.Join(dir, name)
			return nil, services.Fail(services.ErrMixFailed, "discover", services.NoIndex, path,
				fmt.Errorf("track %q collides with mix output", name))
		}
		tracks = append(tracks, filepath.Join(dir, name))
	}
	if len(tracks) == 0 {
		return nil, services.Fail(services.ErrNoTracksFound, "discover", services.NoIndex, dir,
			fmt.Errorf("no *%s files", ext))
	}
	sort.Strings(tracks)
	return tracks, nil
}
