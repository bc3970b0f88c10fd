package utils

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	MaxUploadSize = 5 * 1024 * 1024 // 5MB
	UploadDir     = "./uploads"
)

// Extensions accepted for sponsor material, with the content type the first
// 512 bytes must sniff as.
var allowedUploads = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".pdf":  "application/pdf",
}

var ErrInvalidUpload = errors.New("invalid upload")

// UploadResult describes a stored file
type UploadResult struct {
	Filename string
	Path     string
	URL      string
	Size     int64
}

// ValidateUpload checks size, extension and sniffed content type, then
// rewinds the file.
func ValidateUpload(file multipart.File, header *multipart.FileHeader) error {
	if header.Size > MaxUploadSize {
		return fmt.Errorf("%w: file size exceeds maximum allowed size of 5MB", ErrInvalidUpload)
	}
	if header.Size == 0 {
		return fmt.Errorf("%w: file is empty", ErrInvalidUpload)
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	want, ok := allowedUploads[ext]
	if !ok {
		return fmt.Errorf("%w: file extension %q is not allowed", ErrInvalidUpload, ext)
	}

	buffer := make([]byte, 512)
	n, err := file.Read(buffer)
	if err != nil && err != io.EOF {
		return fmt.Errorf("%w: failed to read file", ErrInvalidUpload)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("%w: failed to reset file pointer", ErrInvalidUpload)
	}

	got := http.DetectContentType(buffer[:n])
	if got != want {
		return fmt.Errorf("%w: content type %s does not match extension %s", ErrInvalidUpload, got, ext)
	}
	return nil
}

// SaveUpload validates and stores the file under UploadDir/subfolder
func SaveUpload(file multipart.File, header *multipart.FileHeader, subfolder string) (*UploadResult, error) {
	if err := ValidateUpload(file, header); err != nil {
		return nil, err
	}

	uploadPath := filepath.Join(UploadDir, subfolder)
	if err := os.MkdirAll(uploadPath, 0755); err != nil {
		return nil, errors.New("failed to create upload directory")
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	filename := fmt.Sprintf("%s_%d%s", uuid.New().String(), time.Now().Unix(), ext)
	fullPath := filepath.Join(uploadPath, filename)

	dst, err := os.Create(fullPath)
	if err != nil {
		return nil, errors.New("failed to create file")
	}
	defer dst.Close()

	size, err := io.Copy(dst, io.LimitReader(file, MaxUploadSize+1))
	if err != nil || size > MaxUploadSize {
		os.Remove(fullPath)
		return nil, errors.New("failed to save file")
	}

	return &UploadResult{
		Filename: filename,
		Path:     fullPath,
		URL:      fmt.Sprintf("/uploads/%s/%s", subfolder, filename),
		Size:     size,
	}, nil
}

// DeleteUpload removes a stored file by its /uploads/ URL
func DeleteUpload(fileURL string) error {
	if fileURL == "" || !strings.HasPrefix(fileURL, "/uploads/") {
		return nil
	}

	filePath := filepath.Join(".", filepath.Clean(strings.TrimPrefix(fileURL, "/")))
	if !strings.HasPrefix(filePath, "uploads"+string(filepath.Separator)) {
		return nil
	}
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil
	}
	if err := os.Remove(filePath); err != nil {
		return errors.New("failed to delete file")
	}
	return nil
}

// PrependBaseURL makes local upload paths absolute against baseURL
func PrependBaseURL(fileURL, baseURL string) string {
	if fileURL == "" || baseURL == "" {
		return fileURL
	}

	// Stored absolute URLs for local uploads may carry a stale host
	if idx := strings.Index(fileURL, "/uploads/"); idx != -1 {
		return strings.TrimRight(baseURL, "/") + fileURL[idx:]
	}

	if strings.HasPrefix(fileURL, "http://") || strings.HasPrefix(fileURL, "https://") {
		return fileURL
	}
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(fileURL, "/")
}
