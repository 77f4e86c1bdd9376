package ingest

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"

	"shop-locator/internal/logger"
)

// Source：数据集来源；Download 返回本地归档路径，Extract 返回可流式读取的成员文件
type Source interface {
	Download(ctx context.Context) (string, error)
	Extract(ctx context.Context, archivePath string) (io.ReadCloser, error)
}

// HTTPSource：从上游拉取 ONSPD 压缩包并解出单个 CSV 成员
// 约束：WorkDir 下的归档在解压后删除（KeepFiles 为 true 时保留）
type HTTPSource struct {
	URL       string
	Member    string
	WorkDir   string
	Client    *http.Client
	KeepFiles bool
}

func (s *HTTPSource) client() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	return http.DefaultClient
}

func (s *HTTPSource) Download(ctx context.Context) (string, error) {
	if s.URL == "" {
		return "", errors.New("empty source url")
	}
	if err := os.MkdirAll(s.WorkDir, 0o755); err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return "", err
	}
	logger.L().Info("import_download_start", "src", s.URL)
	resp, err := s.client().Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("bad status %d", resp.StatusCode)
	}

	dst := filepath.Join(s.WorkDir, "postcodes.zip")
	f, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	n, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dst)
		return "", err
	}
	logger.L().Info("import_download_done", "path", dst, "bytes", n)
	return dst, nil
}

// Extract：将 Member 解压到 WorkDir 并打开；返回的 ReadCloser 关闭时按 KeepFiles 清理
func (s *HTTPSource) Extract(ctx context.Context, archivePath string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var member *zip.File
	for _, f := range zr.File {
		if f.Name == s.Member {
			member = f
			break
		}
	}
	if member == nil {
		return nil, fmt.Errorf("member %q not found in %s", s.Member, filepath.Base(archivePath))
	}

	dst := filepath.Join(s.WorkDir, path.Base(s.Member))
	if err := extractTo(member, dst); err != nil {
		_ = os.Remove(dst)
		return nil, err
	}
	if !s.KeepFiles {
		_ = os.Remove(archivePath)
	}
	f, err := os.Open(dst)
	if err != nil {
		return nil, err
	}
	logger.L().Info("import_extract_done", "member", s.Member, "path", dst)
	return &extractedFile{File: f, remove: !s.KeepFiles}, nil
}

func extractTo(member *zip.File, dst string) error {
	rc, err := member.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

type extractedFile struct {
	*os.File
	remove bool
}

func (f *extractedFile) Close() error {
	err := f.File.Close()
	if f.remove {
		_ = os.Remove(f.Name())
	}
	return err
}

// FileSource：已解压的本地 CSV，下载与解压阶段为空操作
type FileSource struct {
	Path string
}

func (s FileSource) Download(ctx context.Context) (string, error) {
	if _, err := os.Stat(s.Path); err != nil {
		return "", err
	}
	return s.Path, nil
}

func (s FileSource) Extract(ctx context.Context, p string) (io.ReadCloser, error) {
	return os.Open(p)
}
