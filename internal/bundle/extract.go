package bundle

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/dstriage/dstriage/internal/common"
	"github.com/dstriage/dstriage/internal/logging"
)

// extraction is the routed, on-disk view of one opened bundle.
type extraction struct {
	dir   string
	files map[common.LogType][]string
	stats Stats
}

// extract opens the archive and unpacks every routable member into a
// fresh temp directory. Member failures are lenient: a member that cannot
// be extracted is logged and skipped, the bundle keeps going. Only a
// failure to open the archive itself is fatal.
func (a *Analyzer) extract(ctx context.Context, zipPath string) (*extraction, error) {
	reader, err := zip.OpenReader(zipPath)
	if err != nil {
		// Traversal-named members are handled per member by safeJoin, so
		// an archive merely containing them still opens.
		if !errors.Is(err, zip.ErrInsecurePath) || reader == nil {
			return nil, &common.ReadError{Path: zipPath, Err: err}
		}
	}
	defer reader.Close()

	dir, err := os.MkdirTemp(a.opts.WorkDir, "dstriage-bundle-*")
	if err != nil {
		return nil, fmt.Errorf("create extraction dir: %w", err)
	}

	ex := &extraction{
		dir:   dir,
		files: make(map[common.LogType][]string),
		stats: Stats{ByType: make(map[common.LogType]int)},
	}

	for _, member := range reader.File {
		if err := ctx.Err(); err != nil {
			return ex, err
		}
		if member.FileInfo().IsDir() {
			continue
		}
		ex.stats.Members++

		logType, ok := Classify(member.Name)
		if !ok {
			ex.stats.Skipped++
			continue
		}
		if ex.stats.Routed >= a.opts.MaxMembers {
			ex.stats.Skipped++
			continue
		}

		target, n, err := a.extractMember(dir, member)
		if err != nil {
			logging.L().Warn("bundle member skipped",
				zap.String("member", member.Name), zap.Error(err))
			ex.stats.Skipped++
			continue
		}

		ex.files[logType] = append(ex.files[logType], target)
		ex.stats.Routed++
		ex.stats.ByType[logType]++
		ex.stats.ExtractedBytes += n
	}
	return ex, nil
}

// extractMember unpacks one member under destDir, preserving its relative
// path. Gzip members are decompressed transparently. The per-member size
// cap counts decompressed bytes.
func (a *Analyzer) extractMember(destDir string, member *zip.File) (string, int64, error) {
	target, err := safeJoin(destDir, member.Name)
	if err != nil {
		return "", 0, err
	}

	rc, err := member.Open()
	if err != nil {
		return "", 0, fmt.Errorf("open member: %w", err)
	}
	defer rc.Close()

	var src io.Reader = rc
	if strings.HasSuffix(strings.ToLower(target), ".gz") {
		gz, err := gzip.NewReader(rc)
		if err != nil {
			return "", 0, fmt.Errorf("gzip member: %w", err)
		}
		defer gz.Close()
		src = gz
		target = target[:len(target)-len(".gz")]
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return "", 0, err
	}
	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600) // #nosec G304 - target is confined to the extraction dir
	if err != nil {
		return "", 0, err
	}

	n, err := io.Copy(dst, io.LimitReader(src, a.opts.MaxMemberSize+1))
	closeErr := dst.Close()
	switch {
	case err != nil:
		_ = os.Remove(target)
		return "", 0, fmt.Errorf("extract member: %w", err)
	case closeErr != nil:
		_ = os.Remove(target)
		return "", 0, closeErr
	case n > a.opts.MaxMemberSize:
		_ = os.Remove(target)
		return "", 0, fmt.Errorf("member exceeds size cap (%d bytes)", a.opts.MaxMemberSize)
	}
	return target, n, nil
}

// safeJoin places a member name under destDir, rejecting names that would
// escape it. Bundles come from support uploads and are untrusted.
func safeJoin(destDir, memberName string) (string, error) {
	name := strings.ReplaceAll(memberName, `\`, "/")
	if strings.Contains(name, "..") {
		return "", fmt.Errorf("member name %q contains a parent reference", memberName)
	}
	target := filepath.Join(destDir, filepath.FromSlash(name))
	if !strings.HasPrefix(filepath.Clean(target), filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("member %q escapes the extraction directory", memberName)
	}
	return target, nil
}
