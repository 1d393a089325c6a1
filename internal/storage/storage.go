// Package storage issues presigned URLs for service-ticket attachments. File
// bytes never pass through the API; clients upload and download directly.
package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

type ObjectStorage interface {
	UploadURL(ctx context.Context, key, contentType string) (string, time.Time, error)
	DownloadURL(ctx context.Context, key string) (string, time.Time, error)
}

// AttachmentKey builds service/<record>/<stage>/<uuid>-<file>. The file name is
// reduced to its base name with spaces replaced.
func AttachmentKey(recordID, stage, fileName string) string {
	base := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	base = strings.Join(strings.Fields(base), "_")
	if base == "" || base == "." || base == "/" {
		base = "file"
	}
	return fmt.Sprintf("service/%s/%s/%s-%s", recordID, stage, uuid.NewString(), base)
}
