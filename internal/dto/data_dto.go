package dto

// FileInfo is one object in a bucket listing. Source fields are only set on
// combined listings.
type FileInfo struct {
	Name        string  `json:"name"`
	Size        int64   `json:"size"`
	ContentType *string `json:"contentType"`
	Updated     *string `json:"updated"`
	Created     *string `json:"created"`
	Source      string  `json:"source,omitempty"`
	Bucket      string  `json:"bucket,omitempty"`
	SourceInfo  string  `json:"source_info,omitempty"`
}

// PreviewQuery binds the preview query string.
type PreviewQuery struct {
	Rows *int `form:"rows" binding:"omitempty,min=0"`
}

// CombinedFilesQuery binds the combined listing query string.
type CombinedFilesQuery struct {
	PublicBucket string `form:"public_bucket"`
}

// UploadResponse is returned after a successful upload.
type UploadResponse struct {
	Message     string `json:"message"`
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
}
