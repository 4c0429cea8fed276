package fetch

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"

	"github.com/veery/veery/platform"
)

// ExtractZip extracts a ZIP archive to destDir. If stripPrefix is
// provided, it is removed from extracted file paths, which flattens the
// top-level directory most release archives carry.
func ExtractZip(archivePath, destDir, stripPrefix string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open zip archive: %w", err)
	}
	defer reader.Close()

	for _, file := range reader.File {
		name := strippedName(file.Name, stripPrefix)
		if name == "" || file.FileInfo().IsDir() {
			continue
		}

		destPath := filepath.Join(destDir, name)
		if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}

		rc, err := file.Open()
		if err != nil {
			return fmt.Errorf("open %s in archive: %w", file.Name, err)
		}
		err = writeFile(destPath, rc)
		rc.Close()
		if err != nil {
			return err
		}

		if file.Mode()&0111 != 0 {
			_ = platform.EnsureExecutable(destPath)
		}
	}
	return nil
}

// Extract7z extracts a 7z archive to destDir, stripping stripPrefix from
// entry paths when set.
func Extract7z(archivePath, destDir, stripPrefix string) error {
	reader, err := sevenzip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open 7z archive: %w", err)
	}
	defer reader.Close()

	for _, file := range reader.File {
		name := strippedName(file.Name, stripPrefix)
		if name == "" || file.FileInfo().IsDir() {
			continue
		}

		destPath := filepath.Join(destDir, name)
		if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}

		rc, err := file.Open()
		if err != nil {
			return fmt.Errorf("open %s in archive: %w", file.Name, err)
		}
		err = writeFile(destPath, rc)
		rc.Close()
		if err != nil {
			return err
		}

		if file.Mode()&0111 != 0 {
			_ = platform.EnsureExecutable(destPath)
		}
	}
	return nil
}

// ExtractTarGz extracts a tar.gz archive to destDir, stripping stripPrefix
// from entry paths when set.
func ExtractTarGz(archivePath, destDir, stripPrefix string) error {
	file, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer file.Close()

	gzReader, err := gzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("create gzip reader: %w", err)
	}
	defer gzReader.Close()

	tarReader := tar.NewReader(gzReader)
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read tar: %w", err)
		}

		name := strippedName(header.Name, stripPrefix)
		if name == "" {
			continue
		}
		destPath := filepath.Join(destDir, name)

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(destPath, 0755); err != nil {
				return fmt.Errorf("create directory: %w", err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
				return fmt.Errorf("create directory: %w", err)
			}
			if err := writeFile(destPath, tarReader); err != nil {
				return err
			}
			if header.Mode&0111 != 0 {
				_ = platform.EnsureExecutable(destPath)
			}
		}
	}
	return nil
}

// ExtractTarXz extracts a tar.xz archive using the system tar command;
// stdlib has no xz decoder. stripComponents maps to tar's
// --strip-components.
func ExtractTarXz(archivePath, destDir string, stripComponents int) error {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	args := []string{"-xf", archivePath, "-C", destDir}
	if stripComponents > 0 {
		args = append(args, fmt.Sprintf("--strip-components=%d", stripComponents))
	}

	cmd := exec.Command("tar", args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("tar extraction failed: %w (output: %s)", err, string(output))
	}
	return nil
}

// ExtractArchive picks an extractor by file extension.
func ExtractArchive(archivePath, destDir, stripPrefix string) error {
	switch {
	case strings.HasSuffix(archivePath, ".zip"):
		return ExtractZip(archivePath, destDir, stripPrefix)
	case strings.HasSuffix(archivePath, ".7z"):
		return Extract7z(archivePath, destDir, stripPrefix)
	case strings.HasSuffix(archivePath, ".tar.gz"), strings.HasSuffix(archivePath, ".tgz"):
		return ExtractTarGz(archivePath, destDir, stripPrefix)
	case strings.HasSuffix(archivePath, ".tar.xz"):
		return ExtractTarXz(archivePath, destDir, strings.Count(stripPrefix, "/"))
	default:
		return fmt.Errorf("unsupported archive format: %s", filepath.Base(archivePath))
	}
}

func strippedName(name, stripPrefix string) string {
	if stripPrefix != "" {
		name = strings.TrimPrefix(name, stripPrefix)
	}
	return strings.TrimPrefix(name, "/")
}

func writeFile(destPath string, r io.Reader) error {
	outFile, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", destPath, err)
	}
	if _, err := io.Copy(outFile, r); err != nil {
		outFile.Close()
		return fmt.Errorf("extract %s: %w", destPath, err)
	}
	return outFile.Close()
}
