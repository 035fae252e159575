package model

// DownloadRequest asks for a persisted artifact in a given container format.
type DownloadRequest struct {
	Format  string // raw client value, coerced with ParseFormat
	Locator string // the imageUrl previously returned by the upload endpoint
}

// Download is a re-encoded artifact ready to be sent as an attachment.
type Download struct {
	Data   []byte
	Format Format
}

// ContentType returns the MIME type of the payload.
func (d Download) ContentType() string {
	return d.Format.ContentType()
}

// Filename returns the attachment name offered to the client.
func (d Download) Filename() string {
	return "image." + d.Format.Extension()
}
