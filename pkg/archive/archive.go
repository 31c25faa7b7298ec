// Package archive bundles a run's downloaded files into a single tar.gz
// and removes the loose copies, leaving the archive as the only output.
package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/edgar-tools/bulkfetch/pkg/logging"
	"github.com/klauspost/compress/gzip"
)

// Create bundles files into <dir>/<prefix>.tar.gz. Each file is stored
// under its base name and deleted as soon as its bytes are in the
// archive stream. An empty file list still produces a valid empty
// archive. Returns the archive path.
func Create(dir, prefix string, files []string) (string, error) {
	logger := logging.NewLogger("archiver")

	archivePath := filepath.Join(dir, prefix+".tar.gz")

	out, err := os.Create(archivePath)
	if err != nil {
		return "", fmt.Errorf("create archive: %w", err)
	}

	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	for _, file := range files {
		if err := addFile(tw, file); err != nil {
			tw.Close()
			gz.Close()
			out.Close()
			return "", fmt.Errorf("archive %s: %w", file, err)
		}

		// Remove the loose copy once its bytes are in the stream.
		if err := os.Remove(file); err != nil {
			logger.Warn().Err(err).Str("file", file).Msg("Failed to remove archived file")
		}

		ArchivedFiles.Inc()
	}

	// Close order matters: tar flushes its trailer into gzip, gzip its
	// footer into the file.
	if err := tw.Close(); err != nil {
		gz.Close()
		out.Close()
		return "", fmt.Errorf("close tar stream: %w", err)
	}
	if err := gz.Close(); err != nil {
		out.Close()
		return "", fmt.Errorf("close gzip stream: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("close archive: %w", err)
	}

	if info, err := os.Stat(archivePath); err == nil {
		ArchivedBytes.Add(float64(info.Size()))
	}

	logger.Info().
		Str("archive", archivePath).
		Int("files", len(files)).
		Msg("Created archive")

	return archivePath, nil
}

// addFile streams one file into the tar under its base name.
func addFile(tw *tar.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	hdr.Name = filepath.Base(path)

	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	if _, err := io.Copy(tw, f); err != nil {
		return err
	}

	return nil
}
