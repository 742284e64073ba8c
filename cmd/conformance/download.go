package main

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	testSuiteURL   = "https://www.w3.org/XML/2004/xml-schema-test-suite/xmlschema2006-11-06/xsts-2007-06-20.tar.gz"
	cacheDuration  = 7 * 24 * time.Hour
	downloadMarker = ".xsd_test_suite_downloaded"
)

// ensureTestSuite reports whether it downloaded the suite into dir. An
// existing directory is used as is unless autoDownload is set and the
// marker is missing or older than cacheDuration.
func ensureTestSuite(dir string, autoDownload bool) (bool, error) {
	if fresh(dir) {
		return false, nil
	}
	if !autoDownload {
		if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
			return false, fmt.Errorf("test suite not found at %s; use -auto-download or fetch %s", dir, testSuiteURL)
		}
		return false, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	slog.Info("downloading test suite", "url", testSuiteURL, "dir", dir)
	if err := download(ctx, testSuiteURL, dir); err != nil {
		return false, fmt.Errorf("failed to download test suite: %w", err)
	}
	stamp := []byte(time.Now().Format(time.RFC3339))
	if err := os.WriteFile(filepath.Join(dir, downloadMarker), stamp, 0o644); err != nil {
		slog.Warn("failed to write download marker", "error", err)
	}
	return true, nil
}

func fresh(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, downloadMarker))
	if err != nil {
		return false
	}
	age := time.Since(info.ModTime())
	if age >= cacheDuration {
		slog.Info("test suite cache is stale", "age", age.Round(time.Hour), "max", cacheDuration)
		return false
	}
	return true
}

// download fetches a tar.gz archive and extracts it into dest, replacing
// any previous contents once extraction succeeded.
func download(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "go-xsdcheck-conformance/1.0")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %s", resp.Status)
	}

	tmp := dest + ".tmp"
	if err := os.RemoveAll(tmp); err != nil {
		return err
	}
	n, err := extractTarGz(&progressReader{r: resp.Body, total: resp.ContentLength}, tmp)
	if err != nil {
		os.RemoveAll(tmp)
		return err
	}
	slog.Info("extracted test suite", "files", n)
	if err := os.RemoveAll(dest); err != nil {
		return err
	}
	return os.Rename(tmp, dest)
}

// extractTarGz writes the regular files of a gzipped tar stream below
// dest. A single top-level directory shared by the archive is stripped.
func extractTarGz(r io.Reader, dest string) (int, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return 0, fmt.Errorf("failed to open gzip stream: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	var prefix string
	files := 0
	for first := true; ; first = false {
		hdr, err := tr.Next()
		if err == io.EOF {
			return files, nil
		}
		if err != nil {
			return files, fmt.Errorf("tar read error: %w", err)
		}
		if first && hdr.Typeflag == tar.TypeDir {
			if i := strings.Index(hdr.Name, "/"); i > 0 {
				prefix = hdr.Name[:i+1]
			}
		}
		name := strings.TrimPrefix(hdr.Name, prefix)
		if name == "" {
			continue
		}
		target := filepath.Join(dest, filepath.FromSlash(name))
		if !strings.HasPrefix(target, filepath.Clean(dest)+string(os.PathSeparator)) {
			return files, fmt.Errorf("illegal path in archive: %s", hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return files, err
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, os.FileMode(hdr.Mode)); err != nil {
				return files, err
			}
			files++
		}
	}
}

func writeFile(path string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

// progressReader logs download progress at most every five seconds.
type progressReader struct {
	r     io.Reader
	total int64
	read  int64
	last  time.Time
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)
	if now := time.Now(); now.Sub(p.last) > 5*time.Second {
		p.last = now
		slog.Info("download progress", "bytes", p.read, "total", p.total)
	}
	return n, err
}
