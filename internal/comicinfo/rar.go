package comicinfo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/nwaples/rardecode"
)

func readRarEntry(path string) ([]byte, error) {
	rc, err := rardecode.OpenReader(path, "")
	if err != nil {
		return nil, fmt.Errorf("comicinfo: open rar: %w", err)
	}
	defer rc.Close()

	for {
		hdr, err := rc.Next()
		if errors.Is(err, io.EOF) {
			return nil, errEntryNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("comicinfo: read rar: %w", err)
		}
		if hdr.IsDir || !isEntry(hdr.Name) {
			continue
		}
		return io.ReadAll(io.LimitReader(rc, maxRecordSize))
	}
}

// extractRar unpacks src into dst and returns the paths, relative to dst,
// of every metadata entry found.
func (c *Codec) extractRar(src, dst string) ([]string, error) {
	rc, err := rardecode.OpenReader(src, "")
	if err != nil {
		return nil, fmt.Errorf("comicinfo: open rar: %w", err)
	}
	defer rc.Close()

	var entries []string
	for {
		hdr, err := rc.Next()
		if errors.Is(err, io.EOF) {
			return entries, nil
		}
		if err != nil {
			return nil, fmt.Errorf("comicinfo: read rar: %w", err)
		}
		target, err := safeJoin(dst, hdr.Name)
		if err != nil {
			return nil, err
		}
		if hdr.IsDir {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return nil, fmt.Errorf("comicinfo: mkdir: %w", err)
			}
			continue
		}
		if isEntry(hdr.Name) {
			rel, err := filepath.Rel(dst, target)
			if err != nil {
				return nil, fmt.Errorf("comicinfo: entry path %s: %w", hdr.Name, err)
			}
			entries = append(entries, rel)
		}
		if err := c.writeFile(target, rc, hdr.ModificationTime); err != nil {
			return nil, err
		}
	}
}

// RarPacker repacks a directory by running the external rar tool.
type RarPacker struct {
	Binary  string        // defaults to "rar"
	Timeout time.Duration // zero means no timeout beyond ctx
}

// Pack runs `rar a` inside srcDir. A non-zero exit is returned as an error
// carrying the tool's stderr; dst is never renamed or reused on failure.
func (p RarPacker) Pack(ctx context.Context, srcDir, dst string) error {
	bin := p.Binary
	if bin == "" {
		bin = "rar"
	}
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	// -r recurse, -idq quiet, -y assume yes.
	cmd := exec.CommandContext(ctx, bin, "a", "-r", "-idq", "-y", dst, "*")
	cmd.Dir = srcDir
	cmd.Stdout = io.Discard
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return fmt.Errorf("comicinfo: %s: %w", bin, err)
		}
		return fmt.Errorf("comicinfo: %s: %w: %s", bin, err, msg)
	}
	if _, err := os.Stat(dst); err != nil {
		return fmt.Errorf("comicinfo: %s produced no archive: %w", bin, err)
	}
	return nil
}
