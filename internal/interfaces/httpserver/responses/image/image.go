package imageresponses

type UploadImageResponse struct {
	Success bool   `json:"success"`
	URL     string `json:"url"`
}
