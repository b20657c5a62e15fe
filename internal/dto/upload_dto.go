package dto

// UploadResponse describes a stored answer image. Path can be passed straight to an evaluation endpoint.
type UploadResponse struct {
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
	MimeType  string `json:"mime_type"`
	Checksum  string `json:"checksum"`
	FileName  string `json:"file_name"`
}
