package model

import "time"

// Asset is a platform-owned audio file: an uploaded recording or a
// materialized stem. StorageKey points into our own bucket.
type Asset struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Kind        AssetKind `json:"kind"`
	Stem        StemName  `json:"stem,omitempty"`
	JobID       string    `json:"jobId,omitempty"`
	StorageKey  string    `json:"storageKey"`
	FileURL     string    `json:"fileUrl"`
	Size        int64     `json:"size"`
	ContentType string    `json:"contentType"`
	CreatedAt   time.Time `json:"createdAt"`
}
