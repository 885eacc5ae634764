package logsink

import (
	"fmt"
	"os"
	"time"
)

// DateFolderFormat lays blobs out as YYYY/MM/DD.
const DateFolderFormat = "%d/%02d/%02d"

func FormatDateFolder(year int, month int, day int) string {
	return fmt.Sprintf(DateFolderFormat, year, month, day)
}

// BlobName is where a process started at t appends its log lines.
func BlobName(t time.Time) string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "fridgefeast"
	}
	t = t.UTC()
	return fmt.Sprintf("%s/%s-%d.jsonl", FormatDateFolder(t.Year(), int(t.Month()), t.Day()), host, os.Getpid())
}
