package models

// RequestMeta carries caller details needed for auditing.
type RequestMeta struct {
	Principal *Principal
	IP        string
	UserAgent string
}

// ActorID returns the caller's user id or nil for anonymous requests.
func (m RequestMeta) ActorID() *string {
	if m.Principal == nil || m.Principal.UserID == "" {
		return nil
	}
	id := m.Principal.UserID
	return &id
}

// UploadedFile is a validated multipart part held in memory.
type UploadedFile struct {
	Field       string
	FileName    string
	ContentType string
	Size        int64
	Data        []byte
}
