package api

import (
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/ag0st/cryptovault/vaultfs"
)

// DirEntryItem is the JSON projection of a vaultfs.DirEntry returned to the
// CLI's "ls"/"stat" output.
type DirEntryItem struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Size    int64  `json:"size"`
	Mode    uint32 `json:"mode"`
	ModTime string `json:"mod_time"`
}

// MirrorBlobItem is the JSON projection of a mirrored ciphertext object,
// returned by the CLI's "mirror-list" output.
type MirrorBlobItem struct {
	Key  string `json:"key"`
	Size int64  `json:"size"`
}

func DirEntryItemFromVault(entries []vaultfs.DirEntry) []DirEntryItem {
	res := make([]DirEntryItem, len(entries))
	for i, e := range entries {
		res[i] = DirEntryItem{
			Name:    e.Name,
			Kind:    e.Kind.String(),
			Size:    e.Size,
			Mode:    e.Mode,
			ModTime: e.ModTime.Format(time.RFC3339),
		}
	}
	return res
}

func MirrorBlobItemFromMinio(list []minio.ObjectInfo) []MirrorBlobItem {
	res := make([]MirrorBlobItem, len(list))
	for i, it := range list {
		res[i] = MirrorBlobItem{Key: it.Key, Size: it.Size}
	}
	return res
}
