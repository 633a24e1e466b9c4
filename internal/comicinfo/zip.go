package comicinfo

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

func readZipEntry(path string) ([]byte, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("comicinfo: open zip: %w", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !isEntry(f.Name) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("comicinfo: open entry: %w", err)
		}
		defer rc.Close()
		return io.ReadAll(io.LimitReader(rc, maxRecordSize))
	}
	return nil, errEntryNotFound
}

// extractZip unpacks src into dst and returns the paths, relative to dst,
// of every metadata entry found.
func (c *Codec) extractZip(src, dst string) ([]string, error) {
	zr, err := zip.OpenReader(src)
	if err != nil {
		return nil, fmt.Errorf("comicinfo: open zip: %w", err)
	}
	defer zr.Close()

	var entries []string
	for _, f := range zr.File {
		target, err := safeJoin(dst, f.Name)
		if err != nil {
			return nil, err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return nil, fmt.Errorf("comicinfo: mkdir: %w", err)
			}
			continue
		}
		if isEntry(f.Name) {
			rel, err := filepath.Rel(dst, target)
			if err != nil {
				return nil, fmt.Errorf("comicinfo: entry path %s: %w", f.Name, err)
			}
			entries = append(entries, rel)
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("comicinfo: open entry %s: %w", f.Name, err)
		}
		err = c.writeFile(target, rc, f.Modified)
		rc.Close()
		if err != nil {
			return nil, err
		}
	}
	return entries, nil
}

// ZipPacker packs a directory into a deflate-compressed ZIP archive.
type ZipPacker struct{}

// Pack writes every file under srcDir into a new archive at dst. Paths are
// stored relative to srcDir with forward slashes; empty directories are
// kept as directory entries.
func (ZipPacker) Pack(ctx context.Context, srcDir, dst string) (err error) {
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("comicinfo: create zip: %w", err)
	}
	defer func() {
		if cerr := out.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("comicinfo: close zip: %w", cerr)
		}
	}()

	zw := zip.NewWriter(out)
	walkErr := filepath.WalkDir(srcDir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if p == srcDir {
			return nil
		}
		rel, err := filepath.Rel(srcDir, p)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		info, err := d.Info()
		if err != nil {
			return err
		}

		if d.IsDir() {
			children, err := os.ReadDir(p)
			if err != nil {
				return err
			}
			if len(children) > 0 {
				return nil
			}
			hdr, err := zip.FileInfoHeader(info)
			if err != nil {
				return err
			}
			hdr.Name = name + "/"
			_, err = zw.CreateHeader(hdr)
			return err
		}

		hdr, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		hdr.Name = name
		hdr.Method = zip.Deflate
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return err
		}
		f, err := os.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(w, f)
		return err
	})
	if walkErr != nil {
		return fmt.Errorf("comicinfo: pack zip: %w", walkErr)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("comicinfo: finish zip: %w", err)
	}
	return nil
}
